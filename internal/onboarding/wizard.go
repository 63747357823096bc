// Package onboarding implements the four-step intake wizard that creates a
// user's athlete profile and first benchmark lifts, then starts generation of
// their first training block.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/claude/hybridathlete/internal/generation"
	"github.com/claude/hybridathlete/internal/models"
	"github.com/claude/hybridathlete/internal/observability"
	"github.com/google/uuid"
)

// TotalSteps is the number of wizard steps. The last one is optional benchmarks.
const TotalSteps = 4

const (
	FieldCrossFitLevel   = "crossfit_level"
	FieldLiftingLevel    = "lifting_level"
	FieldRunningLevel    = "running_level"
	FieldTrainingDays    = "typical_training_days"
	FieldSessionDuration = "typical_session_duration_mins"
	FieldPrimaryGoal     = "primary_goal"

	// BenchmarkFieldPrefix is followed by a lift name, e.g. "benchmarks.snatch".
	BenchmarkFieldPrefix = "benchmarks."
)

var (
	ErrUnknownField      = errors.New("unknown wizard field")
	ErrNotOnFinalStep    = errors.New("wizard is not on the final step")
	ErrSubmissionPending = errors.New("onboarding submission in progress")
	ErrAlreadySubmitted  = errors.New("onboarding already submitted")
)

type Phase string

const (
	PhaseSteps      Phase = "steps"
	PhaseSubmitting Phase = "submitting"
	PhaseGenerating Phase = "generating"
	PhaseDone       Phase = "done"
)

// Submitter persists the wizard's result. Implementations must apply the
// profile and lifts atomically.
type Submitter interface {
	CompleteOnboarding(ctx context.Context, ap models.AthleteProfile, lifts []models.BenchmarkLift) error
}

// Generator is the generation orchestrator as seen by the wizard.
type Generator interface {
	Start(ctx context.Context, userID uuid.UUID) (<-chan struct{}, bool)
	Status() generation.Status
}

// Draft is the wizard's accumulated, unsaved input. Benchmark weights are kept
// as typed so partially entered values survive navigation between steps.
type Draft struct {
	CrossFitLevel       *models.CrossFitLevel      `json:"crossfit_level"`
	LiftingLevel        *models.LiftingLevel       `json:"lifting_level"`
	RunningLevel        *models.RunningLevel       `json:"running_level"`
	TrainingDays        models.DaySet              `json:"typical_training_days"`
	SessionDurationMins int                        `json:"typical_session_duration_mins"`
	PrimaryGoal         *models.Goal               `json:"primary_goal"`
	Benchmarks          map[models.LiftName]string `json:"benchmarks"`
}

func newDraft() Draft {
	b := make(map[models.LiftName]string, len(models.OnboardingLifts))
	for _, l := range models.OnboardingLifts {
		b[l] = ""
	}
	return Draft{
		TrainingDays:        models.NewDaySet(),
		SessionDurationMins: models.DefaultSessionDuration,
		Benchmarks:          b,
	}
}

func (d Draft) clone() Draft {
	out := d
	out.TrainingDays = d.TrainingDays.Clone()
	out.Benchmarks = make(map[models.LiftName]string, len(d.Benchmarks))
	for k, v := range d.Benchmarks {
		out.Benchmarks[k] = v
	}
	return out
}

// View is what the client renders for the wizard.
type View struct {
	Step       int                `json:"step"`
	TotalSteps int                `json:"total_steps"`
	Progress   int                `json:"progress_pct"`
	CanAdvance bool               `json:"can_advance"`
	Phase      Phase              `json:"phase"`
	Error      string             `json:"error,omitempty"`
	Draft      Draft              `json:"draft"`
	Generation *generation.Status `json:"generation,omitempty"`
}

// Wizard is one user's onboarding session.
type Wizard struct {
	userID uuid.UUID
	sub    Submitter
	gen    Generator
	log    *slog.Logger
	now    func() time.Time
	newID  func() uuid.UUID

	mu      sync.Mutex
	step    int
	phase   Phase
	draft   Draft
	errMsg  string
	genDone <-chan struct{}

	// IDs are fixed per wizard so a retried submission writes the same rows.
	profileID uuid.UUID
	liftIDs   map[models.LiftName]uuid.UUID
}

// New creates a wizard on step 1 with an empty draft.
func New(userID uuid.UUID, sub Submitter, gen Generator, log *slog.Logger) *Wizard {
	return &Wizard{
		userID:  userID,
		sub:     sub,
		gen:     gen,
		log:     log,
		now:     time.Now,
		newID:   uuid.New,
		step:    1,
		phase:   PhaseSteps,
		draft:   newDraft(),
		liftIDs: make(map[models.LiftName]uuid.UUID),
	}
}

// View returns a copy of the wizard state.
func (w *Wizard) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	v := View{
		Step:       w.step,
		TotalSteps: TotalSteps,
		Progress:   int(math.Round(float64(w.step) / TotalSteps * 100)),
		CanAdvance: w.canAdvance(),
		Phase:      w.currentPhase(),
		Error:      w.errMsg,
		Draft:      w.draft.clone(),
	}
	if v.Phase == PhaseGenerating || v.Phase == PhaseDone {
		st := w.gen.Status()
		v.Generation = &st
	}
	return v
}

// CanAdvance reports whether the current step's input is complete.
func (w *Wizard) CanAdvance() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canAdvance()
}

func (w *Wizard) canAdvance() bool {
	d := w.draft
	switch w.step {
	case 1:
		return d.CrossFitLevel != nil && d.LiftingLevel != nil && d.RunningLevel != nil
	case 2:
		return len(d.TrainingDays) > 0
	case 3:
		return d.PrimaryGoal != nil
	default:
		return true
	}
}

// currentPhase reports PhaseDone once the generation job has settled.
func (w *Wizard) currentPhase() Phase {
	if w.phase != PhaseGenerating {
		return w.phase
	}
	if w.genDone != nil {
		select {
		case <-w.genDone:
			return PhaseDone
		default:
			return PhaseGenerating
		}
	}
	if w.gen.Status().State != generation.StateGenerating {
		return PhaseDone
	}
	return PhaseGenerating
}

// editable returns the error for the current phase when input is not accepted.
func (w *Wizard) editable() error {
	switch w.phase {
	case PhaseSteps:
		return nil
	case PhaseSubmitting:
		return ErrSubmissionPending
	default:
		return ErrAlreadySubmitted
	}
}

// Set updates one draft field. Training days toggle; benchmark weights are
// stored raw and only parsed on submission.
func (w *Wizard) Set(field, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}

	d := &w.draft
	switch field {
	case FieldCrossFitLevel:
		v, err := models.ParseCrossFitLevel(value)
		if err != nil {
			return err
		}
		d.CrossFitLevel = &v
	case FieldLiftingLevel:
		v, err := models.ParseLiftingLevel(value)
		if err != nil {
			return err
		}
		d.LiftingLevel = &v
	case FieldRunningLevel:
		v, err := models.ParseRunningLevel(value)
		if err != nil {
			return err
		}
		d.RunningLevel = &v
	case FieldTrainingDays:
		day, err := models.ParseWeekday(value)
		if err != nil {
			return err
		}
		d.TrainingDays = d.TrainingDays.Toggle(day)
	case FieldSessionDuration:
		n, err := models.ParseSessionDuration(value)
		if err != nil {
			return err
		}
		d.SessionDurationMins = n
	case FieldPrimaryGoal:
		v, err := models.ParseGoal(value)
		if err != nil {
			return err
		}
		d.PrimaryGoal = &v
	default:
		name, ok := strings.CutPrefix(field, BenchmarkFieldPrefix)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
		lift := models.LiftName(name)
		if _, offered := d.Benchmarks[lift]; !offered {
			return fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
		d.Benchmarks[lift] = value
	}
	return nil
}

// Advance moves to the next step when the current one is complete. On the
// final step it submits. An incomplete step is left untouched.
func (w *Wizard) Advance(ctx context.Context) error {
	w.mu.Lock()
	if err := w.editable(); err != nil {
		w.mu.Unlock()
		return err
	}
	if !w.canAdvance() {
		w.mu.Unlock()
		return nil
	}
	if w.step < TotalSteps {
		w.step++
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()
	return w.Complete(ctx)
}

// Back returns to the previous step without validating anything.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	if w.step > 1 {
		w.step--
	}
	return nil
}

// Skip submits without benchmark validation beyond what earlier steps gated.
// It is the same submission as Complete.
func (w *Wizard) Skip(ctx context.Context) error {
	return w.Complete(ctx)
}

// Complete persists the athlete profile and every non-blank benchmark, then
// starts training block generation. On an invalid benchmark or a persistence
// failure the wizard stays on the final step with the message set so the user
// can retry.
func (w *Wizard) Complete(ctx context.Context) error {
	w.mu.Lock()
	if err := w.editable(); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.step != TotalSteps {
		w.mu.Unlock()
		return ErrNotOnFinalStep
	}
	ap, lifts, err := w.build()
	if err != nil {
		w.errMsg = err.Error()
		w.mu.Unlock()
		return err
	}
	w.phase = PhaseSubmitting
	w.errMsg = ""
	w.mu.Unlock()

	if err := w.sub.CompleteOnboarding(ctx, ap, lifts); err != nil {
		observability.OnboardingSubmissions.WithLabelValues("failure").Inc()
		w.log.Error("onboarding submission failed", "user_id", w.userID, "error", err)
		w.mu.Lock()
		w.phase = PhaseSteps
		w.errMsg = err.Error()
		w.mu.Unlock()
		return err
	}

	observability.OnboardingSubmissions.WithLabelValues("success").Inc()
	w.log.Info("onboarding submitted", "user_id", w.userID, "benchmarks", len(lifts))

	w.mu.Lock()
	defer w.mu.Unlock()
	w.phase = PhaseGenerating
	done, started := w.gen.Start(ctx, w.userID)
	if started {
		w.genDone = done
	}
	return nil
}

// build turns the draft into the records to persist. Callers hold w.mu.
func (w *Wizard) build() (models.AthleteProfile, []models.BenchmarkLift, error) {
	if w.profileID == uuid.Nil {
		w.profileID = w.newID()
	}
	d := w.draft
	ap := models.AthleteProfile{
		ID:                  w.profileID,
		UserID:              w.userID,
		CrossFitLevel:       d.CrossFitLevel,
		LiftingLevel:        d.LiftingLevel,
		RunningLevel:        d.RunningLevel,
		TrainingDays:        d.TrainingDays.Clone(),
		SessionDurationMins: d.SessionDurationMins,
		PrimaryGoal:         d.PrimaryGoal,
	}

	today := models.DateOf(w.now())
	var lifts []models.BenchmarkLift
	for _, name := range models.OnboardingLifts {
		raw := strings.TrimSpace(d.Benchmarks[name])
		if raw == "" {
			continue
		}
		weight, err := models.ParseWeight(raw)
		if err != nil {
			return models.AthleteProfile{}, nil, fmt.Errorf("%s: %w", name, err)
		}
		id, ok := w.liftIDs[name]
		if !ok {
			id = w.newID()
			w.liftIDs[name] = id
		}
		lifts = append(lifts, models.BenchmarkLift{
			ID:         id,
			UserID:     w.userID,
			LiftName:   name,
			WeightKg:   weight,
			RecordedAt: today,
		})
	}
	return ap, lifts, nil
}
