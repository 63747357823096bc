package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/claude/hybridathlete/internal/generation"
	"github.com/claude/hybridathlete/internal/models"
	"github.com/claude/hybridathlete/internal/onboarding"
	"github.com/claude/hybridathlete/internal/profile"
	"github.com/claude/hybridathlete/internal/storage"
	"github.com/claude/hybridathlete/internal/storage/sqlitestore"
	"github.com/google/uuid"
)

// TestHandleMeDefault verifies the /api/v1/me endpoint returns the dev user
// identity when no identity middleware is active.
func TestHandleMeDefault(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	rec := httptest.NewRecorder()

	s.handleMe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var info meResponse
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if info.Login != "local" {
		t.Errorf("login = %q, want %q", info.Login, "local")
	}
	if info.DisplayName != "Local Dev User" {
		t.Errorf("display_name = %q, want %q", info.DisplayName, "Local Dev User")
	}
	if info.UserID != nil {
		t.Errorf("user_id = %s, want none", info.UserID)
	}
}

// TestHandleMeResolvedUser verifies the /api/v1/me endpoint returns the
// caller's identity and resolved user ID.
func TestHandleMeResolvedUser(t *testing.T) {
	s := &Server{}
	id := uuid.New()
	req := withUserInfo(httptest.NewRequest(http.MethodGet, "/api/v1/me", nil), UserInfo{Login: "alice@example.com", DisplayName: "Alice"})
	req = req.WithContext(context.WithValue(req.Context(), userIDKey, id))
	rec := httptest.NewRecorder()

	s.handleMe(rec, req)

	var info meResponse
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if info.Login != "alice@example.com" {
		t.Errorf("login = %q, want %q", info.Login, "alice@example.com")
	}
	if info.DisplayName != "Alice" {
		t.Errorf("display_name = %q, want %q", info.DisplayName, "Alice")
	}
	if info.UserID == nil || *info.UserID != id {
		t.Errorf("user_id = %v, want %s", info.UserID, id)
	}
}

// TestStatusFor verifies the mapping from domain errors to status codes.
func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", models.ErrInvalidValue), http.StatusUnprocessableEntity},
		{models.ErrInvalidWeight, http.StatusUnprocessableEntity},
		{profile.ErrUnknownSection, http.StatusUnprocessableEntity},
		{profile.ErrFieldNotInSection, http.StatusUnprocessableEntity},
		{onboarding.ErrUnknownField, http.StatusUnprocessableEntity},
		{profile.ErrNotEditing, http.StatusConflict},
		{profile.ErrCommitPending, http.StatusConflict},
		{onboarding.ErrNotOnFinalStep, http.StatusConflict},
		{onboarding.ErrAlreadySubmitted, http.StatusConflict},
		{errAlreadyOnboarded, http.StatusConflict},
		{fmt.Errorf("loading: %w", storage.ErrNotFound), http.StatusNotFound},
		{errors.New("connection reset"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

// TestRawWeight verifies weights are accepted as JSON strings or numbers.
func TestRawWeight(t *testing.T) {
	tests := map[string]string{
		`"102.5"`: "102.5",
		`102.5`:   "102.5",
		`" 80 "`:  " 80 ",
		`null`:    "",
	}
	for raw, want := range tests {
		if got := rawWeight(json.RawMessage(raw)); got != want {
			t.Errorf("rawWeight(%s) = %q, want %q", raw, got, want)
		}
	}
}

// --- End-to-end through the router ---

type fakeJob struct {
	mu     sync.Mutex
	result generation.Result
	err    error
	calls  int
}

func (f *fakeJob) Generate(context.Context, uuid.UUID) (generation.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result, f.err
}

func (f *fakeJob) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestServer(t *testing.T, job generation.Job) *Server {
	t.Helper()
	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(store.Close)
	return New(store, job, Options{FallbackDelay: 10 * time.Millisecond, Version: "test"}, discardLogger())
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

type profileBody struct {
	Loaded    bool                   `json:"loaded"`
	Profile   *models.Profile        `json:"profile"`
	Lifts     []models.BenchmarkLift `json:"benchmark_lifts"`
	Onboarded bool                   `json:"onboarded"`
	Edit      *struct {
		Section string          `json:"section"`
		Draft   json.RawMessage `json:"draft"`
	} `json:"edit"`
	Error string `json:"error"`
}

type onboardingBody struct {
	Step       int                `json:"step"`
	Phase      onboarding.Phase   `json:"phase"`
	CanAdvance bool               `json:"can_advance"`
	Error      string             `json:"error"`
	Generation *generation.Status `json:"generation"`
	Onboarded  bool               `json:"onboarded"`
	Redirect   string             `json:"redirect"`
}

// pollOnboarding polls until the wizard reaches want, returning any redirect
// seen, including one already handed out in the submitting response.
func pollOnboarding(t *testing.T, s *Server, want onboarding.Phase, redirect string) (onboardingBody, string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		body := decode[onboardingBody](t, do(t, s, http.MethodGet, "/api/v1/onboarding", nil))
		if body.Redirect != "" {
			redirect = body.Redirect
		}
		if body.Phase == want && redirect != "" {
			return body, redirect
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("wizard never reached %s with a redirect", want)
	return onboardingBody{}, ""
}

// TestProfileFirstLoad verifies the dev user is created with an empty,
// not-onboarded profile.
func TestProfileFirstLoad(t *testing.T) {
	s := newTestServer(t, &fakeJob{})

	rec := do(t, s, http.MethodGet, "/api/v1/profile", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	body := decode[profileBody](t, rec)
	if !body.Loaded || body.Onboarded || body.Edit != nil {
		t.Errorf("body = %+v", body)
	}
	if body.Profile == nil || body.Profile.FullName != "Local Dev User" {
		t.Errorf("profile = %+v", body.Profile)
	}
}

// TestProfileEditFlow verifies start, mutate, commit and the errors in between.
func TestProfileEditFlow(t *testing.T) {
	s := newTestServer(t, &fakeJob{})

	if rec := do(t, s, http.MethodPatch, "/api/v1/profile/edit", fieldRequest{Field: "full_name", Value: "Alice"}); rec.Code != http.StatusConflict {
		t.Errorf("mutate without edit: status = %d, want 409", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/profile/edit/billing", nil); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown section: status = %d, want 422", rec.Code)
	}

	rec := do(t, s, http.MethodPost, "/api/v1/profile/edit/personal", nil)
	if body := decode[profileBody](t, rec); body.Edit == nil || body.Edit.Section != "personal" {
		t.Fatalf("start edit: %d %+v", rec.Code, body)
	}
	if rec := do(t, s, http.MethodPatch, "/api/v1/profile/edit", fieldRequest{Field: "primary_goal", Value: "hyrox_prep"}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("foreign field: status = %d, want 422", rec.Code)
	}
	if rec := do(t, s, http.MethodPatch, "/api/v1/profile/edit", fieldRequest{Field: "full_name", Value: "Alice"}); rec.Code != http.StatusOK {
		t.Fatalf("mutate: status = %d: %s", rec.Code, rec.Body)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/profile/edit/commit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("commit: status = %d: %s", rec.Code, rec.Body)
	}
	body := decode[profileBody](t, rec)
	if body.Edit != nil || body.Profile.FullName != "Alice" {
		t.Errorf("after commit: %+v", body)
	}

	body = decode[profileBody](t, do(t, s, http.MethodGet, "/api/v1/profile", nil))
	if body.Profile.FullName != "Alice" {
		t.Errorf("cached full name = %q", body.Profile.FullName)
	}
}

// TestProfileCancelEdit verifies cancel discards the draft.
func TestProfileCancelEdit(t *testing.T) {
	s := newTestServer(t, &fakeJob{})

	do(t, s, http.MethodPost, "/api/v1/profile/edit/personal", nil)
	do(t, s, http.MethodPatch, "/api/v1/profile/edit", fieldRequest{Field: "full_name", Value: "Bob"})
	rec := do(t, s, http.MethodDelete, "/api/v1/profile/edit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: status = %d", rec.Code)
	}
	body := decode[profileBody](t, rec)
	if body.Edit != nil || body.Profile.FullName != "Local Dev User" {
		t.Errorf("after cancel: %+v", body)
	}
}

// TestBenchmarks verifies add with string and numeric weights, validation
// and delete.
func TestBenchmarks(t *testing.T) {
	s := newTestServer(t, &fakeJob{})

	rec := do(t, s, http.MethodPost, "/api/v1/benchmarks", map[string]any{"lift_name": "snatch", "weight_kg": "72.5"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: status = %d: %s", rec.Code, rec.Body)
	}
	snatch := decode[models.BenchmarkLift](t, rec)
	if snatch.WeightKg != 72.5 || snatch.ID == uuid.Nil {
		t.Errorf("lift = %+v", snatch)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/benchmarks", map[string]any{"lift_name": "deadlift", "weight_kg": 200, "notes": "belt"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add numeric: status = %d: %s", rec.Code, rec.Body)
	}

	for _, bad := range []map[string]any{
		{"lift_name": "snatch", "weight_kg": "heavy"},
		{"lift_name": "snatch", "weight_kg": -5},
		{"lift_name": "bench_press", "weight_kg": 100},
	} {
		if rec := do(t, s, http.MethodPost, "/api/v1/benchmarks", bad); rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("add %v: status = %d, want 422", bad, rec.Code)
		}
	}

	rec = do(t, s, http.MethodDelete, "/api/v1/benchmarks/"+snatch.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status = %d: %s", rec.Code, rec.Body)
	}
	if lifts := decode[[]models.BenchmarkLift](t, rec); len(lifts) != 1 || lifts[0].LiftName != models.LiftDeadlift {
		t.Errorf("lifts after delete = %+v", lifts)
	}
	if rec := do(t, s, http.MethodDelete, "/api/v1/benchmarks/not-a-uuid", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want 400", rec.Code)
	}
}

func fillWizard(t *testing.T, s *Server) {
	t.Helper()
	steps := [][]fieldRequest{
		{{"crossfit_level", "rx"}, {"lifting_level", "advanced"}, {"running_level", "intermediate"}},
		{{"typical_training_days", "1"}, {"typical_training_days", "3"}, {"typical_session_duration_mins", "90"}},
		{{"primary_goal", "hyrox_prep"}},
	}
	for i, fields := range steps {
		for _, f := range fields {
			if rec := do(t, s, http.MethodPatch, "/api/v1/onboarding", f); rec.Code != http.StatusOK {
				t.Fatalf("set %s: status = %d: %s", f.Field, rec.Code, rec.Body)
			}
		}
		rec := do(t, s, http.MethodPost, "/api/v1/onboarding/advance", nil)
		if body := decode[onboardingBody](t, rec); body.Step != i+2 {
			t.Fatalf("advance from step %d: %d %+v", i+1, rec.Code, body)
		}
	}
}

// TestOnboardingFlow verifies the wizard persists the athlete profile and
// lands on the dashboard after generation succeeds.
func TestOnboardingFlow(t *testing.T) {
	job := &fakeJob{result: generation.Result{Success: true}}
	s := newTestServer(t, job)

	rec := do(t, s, http.MethodPost, "/api/v1/onboarding/advance", nil)
	if body := decode[onboardingBody](t, rec); body.Step != 1 || body.CanAdvance {
		t.Fatalf("incomplete step advanced: %+v", body)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/onboarding/complete", nil); rec.Code != http.StatusConflict {
		t.Errorf("complete on step 1: status = %d, want 409", rec.Code)
	}
	if rec := do(t, s, http.MethodPatch, "/api/v1/onboarding", fieldRequest{"crossfit_level", "elite"}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad level: status = %d, want 422", rec.Code)
	}

	fillWizard(t, s)
	do(t, s, http.MethodPatch, "/api/v1/onboarding", fieldRequest{"benchmarks.back_squat", "140"})

	rec = do(t, s, http.MethodPost, "/api/v1/onboarding/complete", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("complete: status = %d: %s", rec.Code, rec.Body)
	}
	submitted := decode[onboardingBody](t, rec)

	body, redirect := pollOnboarding(t, s, onboarding.PhaseDone, submitted.Redirect)
	if redirect != generation.DashboardRoute || !body.Onboarded {
		t.Errorf("after generation: redirect %q, body %+v", redirect, body)
	}
	if job.Calls() != 1 {
		t.Errorf("job calls = %d, want 1", job.Calls())
	}

	prof := decode[profileBody](t, do(t, s, http.MethodGet, "/api/v1/profile", nil))
	if !prof.Onboarded || len(prof.Lifts) != 1 || prof.Lifts[0].WeightKg != 140 {
		t.Errorf("profile after onboarding: %+v", prof)
	}

	if rec := do(t, s, http.MethodPatch, "/api/v1/onboarding", fieldRequest{"primary_goal", "strength_focus"}); rec.Code != http.StatusConflict {
		t.Errorf("edit after submit: status = %d, want 409", rec.Code)
	}
}

// TestOnboardingInvalidBenchmark verifies a bad weight blocks submission and
// nothing is persisted.
func TestOnboardingInvalidBenchmark(t *testing.T) {
	job := &fakeJob{result: generation.Result{Success: true}}
	s := newTestServer(t, job)

	fillWizard(t, s)
	do(t, s, http.MethodPatch, "/api/v1/onboarding", fieldRequest{"benchmarks.snatch", "lots"})

	rec := do(t, s, http.MethodPost, "/api/v1/onboarding/complete", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if body := decode[onboardingBody](t, rec); body.Phase != onboarding.PhaseSteps || body.Error == "" {
		t.Errorf("body = %+v", body)
	}
	if job.Calls() != 0 {
		t.Errorf("job ran %d times", job.Calls())
	}
	if prof := decode[profileBody](t, do(t, s, http.MethodGet, "/api/v1/profile", nil)); prof.Onboarded {
		t.Error("athlete profile persisted")
	}
	if body := decode[onboardingBody](t, do(t, s, http.MethodGet, "/api/v1/onboarding", nil)); body.Error == "" {
		t.Errorf("reloaded wizard lost the weight message: %+v", body)
	}
}

// TestOnboardingGenerationFailure verifies the wizard reports the job's
// message and still redirects after the delay.
func TestOnboardingGenerationFailure(t *testing.T) {
	s := newTestServer(t, &fakeJob{result: generation.Result{Success: false}})

	fillWizard(t, s)
	rec := do(t, s, http.MethodPost, "/api/v1/onboarding/skip", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("skip: status = %d: %s", rec.Code, rec.Body)
	}
	submitted := decode[onboardingBody](t, rec)

	body, redirect := pollOnboarding(t, s, onboarding.PhaseDone, submitted.Redirect)
	if redirect != generation.DashboardRoute {
		t.Errorf("redirect = %q", redirect)
	}
	if body.Generation == nil || body.Generation.Message != generation.WizardFallbackMessage {
		t.Errorf("generation = %+v", body.Generation)
	}
}

// TestUnknownOnboardingAction verifies unknown actions are 404s.
func TestUnknownOnboardingAction(t *testing.T) {
	s := newTestServer(t, &fakeJob{})
	if rec := do(t, s, http.MethodPost, "/api/v1/onboarding/jump", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// TestDashboardEmpty verifies a new user sees an empty week without a block.
func TestDashboardEmpty(t *testing.T) {
	s := newTestServer(t, &fakeJob{})

	rec := do(t, s, http.MethodGet, "/api/v1/dashboard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var view struct {
		Days     []json.RawMessage `json:"days"`
		HasBlock bool              `json:"has_block"`
		Empty    bool              `json:"empty"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if len(view.Days) != 7 || view.HasBlock || !view.Empty {
		t.Errorf("view = %+v", view)
	}
}

// TestStandaloneGeneration verifies the dashboard action runs once at a time
// and uses its own failure message.
func TestStandaloneGeneration(t *testing.T) {
	job := &fakeJob{err: errors.New("dial tcp: connection refused")}
	s := newTestServer(t, job)

	rec := do(t, s, http.MethodPost, "/api/v1/generation", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decode[generationResponse](t, rec); !body.Started {
		t.Errorf("body = %+v", body)
	}

	var (
		status   generationResponse
		redirect string
	)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && redirect == "" {
		status = decode[generationResponse](t, do(t, s, http.MethodGet, "/api/v1/generation", nil))
		redirect = status.Redirect
		time.Sleep(5 * time.Millisecond)
	}
	if redirect != generation.DashboardRoute || status.State != generation.StateDone {
		t.Errorf("status = %+v", status)
	}
	if status.Message != "dial tcp: connection refused" {
		t.Errorf("message = %q", status.Message)
	}
}

// TestMetricsAPIKey verifies /metrics is guarded when a key is configured.
func TestMetricsAPIKey(t *testing.T) {
	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(store.Close)
	s := New(store, &fakeJob{}, Options{APIKey: "k"}, discardLogger())

	if rec := do(t, s, http.MethodGet, "/metrics", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-API-Key", "k")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with key: status = %d, want 200", rec.Code)
	}
}

// TestJWTModeRequiresToken verifies user routes reject anonymous requests in jwt mode.
func TestJWTModeRequiresToken(t *testing.T) {
	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(store.Close)
	s := New(store, &fakeJob{}, Options{AuthMode: AuthJWT, JWTSecret: "s"}, discardLogger())

	if rec := do(t, s, http.MethodGet, "/api/v1/profile", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// devSession returns the dev user's live session, or nil if none is held.
func devSession(t *testing.T, s *Server) *session {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, ok := s.users["local"]
	if !ok {
		t.Fatal("dev user not resolved")
	}
	return s.sessions[uid]
}

// TestGenerationRedirectsAreSeparate verifies a redirect from one orchestrator
// is only handed out by its own status endpoint.
func TestGenerationRedirectsAreSeparate(t *testing.T) {
	tests := []struct {
		name  string
		run   func(s *Server, sess *session) generation.Status
		other string
		own   string
	}{
		{
			name: "standalone",
			run: func(_ *Server, sess *session) generation.Status {
				return sess.standalone.Trigger(context.Background(), sess.store.UserID())
			},
			other: "/api/v1/onboarding",
			own:   "/api/v1/generation",
		},
		{
			name: "wizard",
			run: func(s *Server, sess *session) generation.Status {
				s.onboardingWizard(sess)
				return sess.wizardGen.Trigger(context.Background(), sess.store.UserID())
			},
			other: "/api/v1/generation",
			own:   "/api/v1/onboarding",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeJob{result: generation.Result{Success: true}})
			do(t, s, http.MethodGet, "/api/v1/profile", nil)
			sess := devSession(t, s)

			if st := tt.run(s, sess); st.State != generation.StateSucceeded {
				t.Fatalf("state = %s, want succeeded", st.State)
			}
			for range 2 {
				if r := decode[struct{ Redirect string }](t, do(t, s, http.MethodGet, tt.other, nil)); r.Redirect != "" {
					t.Fatalf("%s handed out %q", tt.other, r.Redirect)
				}
			}
			if r := decode[struct{ Redirect string }](t, do(t, s, http.MethodGet, tt.own, nil)); r.Redirect != generation.DashboardRoute {
				t.Errorf("%s redirect = %q, want %q", tt.own, r.Redirect, generation.DashboardRoute)
			}
		})
	}
}

type blockingJob struct {
	release chan struct{}
}

func (j *blockingJob) Generate(ctx context.Context, _ uuid.UUID) (generation.Result, error) {
	select {
	case <-j.release:
		return generation.Result{Success: true}, nil
	case <-ctx.Done():
		return generation.Result{}, ctx.Err()
	}
}

// TestIdleSessionsAreDropped verifies sessions untouched for longer than the
// idle timeout are dropped unless a generation is still running.
func TestIdleSessionsAreDropped(t *testing.T) {
	job := &blockingJob{release: make(chan struct{})}
	s := newTestServer(t, job)
	s.opts.SessionIdle = time.Hour
	clock := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	if rec := do(t, s, http.MethodPost, "/api/v1/generation", nil); rec.Code != http.StatusAccepted {
		t.Fatalf("start generation: status = %d", rec.Code)
	}
	first := devSession(t, s)

	clock = clock.Add(2 * time.Hour)
	do(t, s, http.MethodGet, "/api/v1/profile", nil)
	if got := devSession(t, s); got != first {
		t.Fatal("session dropped while generation was running")
	}

	close(job.release)
	deadline := time.Now().Add(2 * time.Second)
	for first.standalone.Status().State == generation.StateGenerating && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	clock = clock.Add(30 * time.Minute)
	do(t, s, http.MethodGet, "/api/v1/profile", nil)
	if got := devSession(t, s); got != first {
		t.Fatal("session dropped before the idle timeout")
	}

	clock = clock.Add(2 * time.Hour)
	rec := do(t, s, http.MethodGet, "/api/v1/profile", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile after eviction: status = %d", rec.Code)
	}
	if got := devSession(t, s); got == first || got == nil {
		t.Error("idle session was not replaced")
	}
}
