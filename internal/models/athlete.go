package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire and storage form of a calendar date.
const DateLayout = "2006-01-02"

// Date is a calendar date in YYYY-MM-DD form.
type Date string

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// ParseDate validates s as a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", fmt.Errorf("%w: date %q", ErrInvalidValue, s)
	}
	return Date(s), nil
}

// Time returns midnight UTC of the date.
func (d Date) Time() (time.Time, error) {
	return time.Parse(DateLayout, string(d))
}

func (d Date) String() string { return string(d) }

// DaySet is a set of weekday indices (0 = Sunday). It is kept sorted and free
// of duplicates; the zero value is the empty set.
type DaySet []int

// NewDaySet builds a normalized set, dropping duplicates and out-of-range days.
func NewDaySet(days ...int) DaySet {
	out := DaySet{}
	for _, d := range days {
		if d < 0 || d > 6 || slices.Contains(out, d) {
			continue
		}
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

// Has reports whether day is in the set.
func (s DaySet) Has(day int) bool {
	return slices.Contains(s, day)
}

// Toggle returns a new set with day's membership flipped.
func (s DaySet) Toggle(day int) DaySet {
	if s.Has(day) {
		out := DaySet{}
		for _, d := range s {
			if d != day {
				out = append(out, d)
			}
		}
		return out
	}
	return NewDaySet(append(slices.Clone(s), day)...)
}

// Clone returns an independent copy.
func (s DaySet) Clone() DaySet {
	return NewDaySet(s...)
}

// MarshalJSON always emits an array, never null.
func (s DaySet) MarshalJSON() ([]byte, error) {
	return json.Marshal([]int(NewDaySet(s...)))
}

func (s *DaySet) UnmarshalJSON(data []byte) error {
	var days []int
	if err := json.Unmarshal(data, &days); err != nil {
		return err
	}
	*s = NewDaySet(days...)
	return nil
}

// User is an authenticated identity, keyed by login.
type User struct {
	ID          uuid.UUID `json:"id"`
	Login       string    `json:"login"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	LastSeen    time.Time `json:"last_seen"`
}

// Profile is the primary profile of a user. Its ID equals the user ID.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Timezone  string    `json:"timezone"`
	AvatarURL *string   `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AthleteProfile holds training-specific attributes. A user has at most one.
type AthleteProfile struct {
	ID                  uuid.UUID      `json:"id"`
	UserID              uuid.UUID      `json:"user_id"`
	CrossFitLevel       *CrossFitLevel `json:"crossfit_level"`
	LiftingLevel        *LiftingLevel  `json:"lifting_level"`
	RunningLevel        *RunningLevel  `json:"running_level"`
	TrainingDays        DaySet         `json:"typical_training_days"`
	SessionDurationMins int            `json:"typical_session_duration_mins"`
	PrimaryGoal         *Goal          `json:"primary_goal"`
	Notes               *string        `json:"notes"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// BenchmarkLift is a recorded one-rep-max style result.
type BenchmarkLift struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	LiftName   LiftName  `json:"lift_name"`
	WeightKg   float64   `json:"weight_kg"`
	RecordedAt Date      `json:"recorded_at"`
	Notes      *string   `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
}

// Session is a planned training session.
type Session struct {
	ID            uuid.UUID     `json:"id"`
	UserID        uuid.UUID     `json:"user_id"`
	BlockID       *uuid.UUID    `json:"block_id"`
	Title         string        `json:"title"`
	Description   *string       `json:"description"`
	SessionType   SessionType   `json:"session_type"`
	Priority      Priority      `json:"priority"`
	Status        SessionStatus `json:"status"`
	ScheduledDate Date          `json:"scheduled_date"`
	DurationMins  *int          `json:"duration_mins"`
}

// DateKey returns the scheduled date, used for week bucketing.
func (s Session) DateKey() string { return string(s.ScheduledDate) }

// DateKey returns the recorded date.
func (b BenchmarkLift) DateKey() string { return string(b.RecordedAt) }

// TrainingBlock is a generated multi-week plan.
type TrainingBlock struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	StartDate Date      `json:"start_date"`
	EndDate   Date      `json:"end_date"`
	CreatedAt time.Time `json:"created_at"`
}
