package models

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// ErrInvalidValue is returned when a value falls outside its enumeration.
var ErrInvalidValue = errors.New("invalid value")

// ErrInvalidWeight is returned for an empty, unparseable or negative weight.
var ErrInvalidWeight = errors.New("invalid weight")

type CrossFitLevel string

const (
	CrossFitBeginner     CrossFitLevel = "beginner"
	CrossFitIntermediate CrossFitLevel = "intermediate"
	CrossFitAdvanced     CrossFitLevel = "advanced"
	CrossFitRx           CrossFitLevel = "rx"
)

var CrossFitLevels = []CrossFitLevel{CrossFitBeginner, CrossFitIntermediate, CrossFitAdvanced, CrossFitRx}

type LiftingLevel string

const (
	LiftingBeginner     LiftingLevel = "beginner"
	LiftingIntermediate LiftingLevel = "intermediate"
	LiftingAdvanced     LiftingLevel = "advanced"
	LiftingCompetitive  LiftingLevel = "competitive"
)

var LiftingLevels = []LiftingLevel{LiftingBeginner, LiftingIntermediate, LiftingAdvanced, LiftingCompetitive}

type RunningLevel string

const (
	RunningBeginner     RunningLevel = "beginner"
	RunningIntermediate RunningLevel = "intermediate"
	RunningAdvanced     RunningLevel = "advanced"
	RunningSubElite     RunningLevel = "sub-elite"
)

var RunningLevels = []RunningLevel{RunningBeginner, RunningIntermediate, RunningAdvanced, RunningSubElite}

type Goal string

const (
	GoalGeneralFitness Goal = "general_fitness"
	GoalHyroxPrep      Goal = "hyrox_prep"
	GoalStrengthFocus  Goal = "strength_focus"
	GoalEnduranceFocus Goal = "endurance_focus"
)

var Goals = []Goal{GoalGeneralFitness, GoalHyroxPrep, GoalStrengthFocus, GoalEnduranceFocus}

type LiftName string

const (
	LiftCleanAndJerk  LiftName = "clean_and_jerk"
	LiftSnatch        LiftName = "snatch"
	LiftBackSquat     LiftName = "back_squat"
	LiftDeadlift      LiftName = "deadlift"
	LiftClean         LiftName = "clean"
	LiftJerk          LiftName = "jerk"
	LiftFrontSquat    LiftName = "front_squat"
	LiftOverheadSquat LiftName = "overhead_squat"
)

var LiftNames = []LiftName{
	LiftCleanAndJerk, LiftSnatch, LiftBackSquat, LiftDeadlift,
	LiftClean, LiftJerk, LiftFrontSquat, LiftOverheadSquat,
}

// OnboardingLifts are the benchmark lifts offered during onboarding.
var OnboardingLifts = LiftNames[:4]

type SessionType string

const (
	SessionCrossFit       SessionType = "crossfit"
	SessionOlympicLifting SessionType = "olympic_lifting"
	SessionRun            SessionType = "run"
	SessionStrength       SessionType = "strength"
	SessionRest           SessionType = "rest"
	SessionActiveRecovery SessionType = "active_recovery"
)

type Priority string

const (
	PriorityKey      Priority = "key"
	PriorityStandard Priority = "standard"
	PriorityOptional Priority = "optional"
)

type SessionStatus string

const (
	StatusScheduled SessionStatus = "scheduled"
	StatusCompleted SessionStatus = "completed"
	StatusSkipped   SessionStatus = "skipped"
	StatusMoved     SessionStatus = "moved"
	StatusCancelled SessionStatus = "cancelled"
)

// SessionDurations are the selectable typical session lengths in minutes.
var SessionDurations = []int{45, 60, 75, 90, 120}

// DefaultSessionDuration is used until the athlete picks one.
const DefaultSessionDuration = 60

func parseEnum[T ~string](field, raw string, allowed []T) (T, error) {
	v := T(strings.TrimSpace(raw))
	if !slices.Contains(allowed, v) {
		return "", fmt.Errorf("%w: %s %q", ErrInvalidValue, field, raw)
	}
	return v, nil
}

func ParseCrossFitLevel(s string) (CrossFitLevel, error) {
	return parseEnum("crossfit_level", s, CrossFitLevels)
}

func ParseLiftingLevel(s string) (LiftingLevel, error) {
	return parseEnum("lifting_level", s, LiftingLevels)
}

func ParseRunningLevel(s string) (RunningLevel, error) {
	return parseEnum("running_level", s, RunningLevels)
}

func ParseGoal(s string) (Goal, error) {
	return parseEnum("primary_goal", s, Goals)
}

func ParseLiftName(s string) (LiftName, error) {
	return parseEnum("lift_name", s, LiftNames)
}

// ParseSessionDuration accepts only the durations offered in SessionDurations.
func ParseSessionDuration(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || !slices.Contains(SessionDurations, n) {
		return 0, fmt.Errorf("%w: typical_session_duration_mins %q", ErrInvalidValue, s)
	}
	return n, nil
}

// ParseWeekday parses a weekday index where 0 is Sunday.
func ParseWeekday(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n > 6 {
		return 0, fmt.Errorf("%w: weekday %q", ErrInvalidValue, s)
	}
	return n, nil
}

// ParseWeight parses a user-entered weight in kilograms.
func ParseWeight(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidWeight)
	}
	w, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWeight, raw)
	}
	return w, nil
}
