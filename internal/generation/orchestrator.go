// Package generation runs the external training-block generation job and
// moves the user on to the dashboard whether it succeeds or fails.
package generation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/hybridathlete/internal/observability"
	"github.com/google/uuid"
)

// DashboardRoute is where the user lands after generation settles.
const DashboardRoute = "/dashboard"

// DefaultFallbackDelay is how long a failure message stays visible.
const DefaultFallbackDelay = 3 * time.Second

const (
	WizardFallbackMessage     = "Failed to generate training block. You can retry from the dashboard."
	StandaloneFallbackMessage = "Generation failed. Please try again."
)

// Result is the job's own report of its outcome.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Job runs one generation for a user. A non-nil error is a transport failure.
type Job interface {
	Generate(ctx context.Context, userID uuid.UUID) (Result, error)
}

// Navigator moves the user and refreshes server-derived data.
type Navigator interface {
	GoTo(route string)
	RefreshCachedData()
}

// Timer is the handle returned by AfterFunc.
type Timer interface {
	Stop() bool
}

type State string

const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateDone       State = "done"
)

// Status is a point-in-time view of the orchestrator.
type Status struct {
	State   State  `json:"state"`
	Message string `json:"message,omitempty"`
}

// Orchestrator allows at most one job in flight.
type Orchestrator struct {
	job             Job
	nav             Navigator
	log             *slog.Logger
	fallbackMessage string
	delay           time.Duration

	// AfterFunc schedules the fallback navigation; replaced in tests.
	AfterFunc func(d time.Duration, f func()) Timer

	mu      sync.Mutex
	state   State
	message string
	timer   Timer
	seq     uint64
}

// New creates an idle orchestrator. fallbackMessage is shown when the job
// fails without a message of its own; a zero delay means DefaultFallbackDelay.
func New(job Job, nav Navigator, fallbackMessage string, delay time.Duration, log *slog.Logger) *Orchestrator {
	if delay <= 0 {
		delay = DefaultFallbackDelay
	}
	return &Orchestrator{
		job:             job,
		nav:             nav,
		log:             log,
		fallbackMessage: fallbackMessage,
		delay:           delay,
		AfterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		state: StateIdle,
	}
}

// Status returns the current state and message.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{State: o.state, Message: o.message}
}

// Start issues the job for userID unless one is already in flight, in which
// case it returns started=false. The returned channel closes once the job
// settles. Cancelling ctx does not abort the job.
func (o *Orchestrator) Start(ctx context.Context, userID uuid.UUID) (done <-chan struct{}, started bool) {
	o.mu.Lock()
	if o.state == StateGenerating {
		o.mu.Unlock()
		return nil, false
	}
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.state = StateGenerating
	o.message = ""
	o.seq++
	o.mu.Unlock()

	ch := make(chan struct{})
	jobCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(ch)
		o.run(jobCtx, userID)
	}()
	return ch, true
}

// Trigger runs Start and waits for the job to settle. It returns the status at
// settlement; a failure's fallback navigation still happens after the delay.
func (o *Orchestrator) Trigger(ctx context.Context, userID uuid.UUID) Status {
	done, started := o.Start(ctx, userID)
	if !started {
		return o.Status()
	}
	<-done
	return o.Status()
}

func (o *Orchestrator) run(ctx context.Context, userID uuid.UUID) {
	start := time.Now()
	res, err := o.job.Generate(ctx, userID)
	observability.GenerationDuration.Observe(time.Since(start).Seconds())

	if err == nil && res.Success {
		observability.GenerationJobs.WithLabelValues("success").Inc()
		o.log.Info("training block generated", "user_id", userID, "duration", time.Since(start).String())
		o.mu.Lock()
		o.state = StateSucceeded
		o.mu.Unlock()
		o.nav.GoTo(DashboardRoute)
		o.nav.RefreshCachedData()
		return
	}

	msg := res.Error
	if err != nil {
		observability.GenerationJobs.WithLabelValues("transport_error").Inc()
		o.log.Error("generation job transport error", "user_id", userID, "error", err)
		msg = err.Error()
	} else {
		observability.GenerationJobs.WithLabelValues("failed").Inc()
		o.log.Warn("generation job failed", "user_id", userID, "message", res.Error)
	}
	if msg == "" {
		msg = o.fallbackMessage
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = StateFailed
	o.message = msg
	seq := o.seq
	o.timer = o.AfterFunc(o.delay, func() { o.fallback(seq) })
}

// fallback navigates after a failure unless a newer Start superseded it.
func (o *Orchestrator) fallback(seq uint64) {
	o.mu.Lock()
	if o.seq != seq || o.state != StateFailed {
		o.mu.Unlock()
		return
	}
	o.timer = nil
	o.state = StateDone
	o.mu.Unlock()

	o.nav.GoTo(DashboardRoute)
	o.nav.RefreshCachedData()
}
