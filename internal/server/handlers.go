package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/claude/hybridathlete/internal/generation"
	"github.com/claude/hybridathlete/internal/models"
	"github.com/claude/hybridathlete/internal/onboarding"
	"github.com/claude/hybridathlete/internal/profile"
	"github.com/claude/hybridathlete/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// errAlreadyOnboarded rejects wizard input from a user who already has an athlete profile.
var errAlreadyOnboarded = errors.New("athlete profile already exists")

// statusFor maps domain errors to HTTP status codes. Unknown errors come from
// persistence and are reported as a bad gateway.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidValue),
		errors.Is(err, models.ErrInvalidWeight),
		errors.Is(err, profile.ErrFieldNotInSection),
		errors.Is(err, profile.ErrUnknownSection),
		errors.Is(err, onboarding.ErrUnknownField):
		return http.StatusUnprocessableEntity
	case errors.Is(err, profile.ErrNotEditing),
		errors.Is(err, profile.ErrCommitPending),
		errors.Is(err, onboarding.ErrNotOnFinalStep),
		errors.Is(err, onboarding.ErrSubmissionPending),
		errors.Is(err, onboarding.ErrAlreadySubmitted),
		errors.Is(err, errAlreadyOnboarded):
		return http.StatusConflict
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusBadGateway {
		s.log.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

// sessionFor resolves the caller's session, writing the error response on failure.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) (*session, bool) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return nil, false
	}
	sess, err := s.session(r.Context(), uid)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return sess, true
}

type meResponse struct {
	UserInfo
	UserID *uuid.UUID `json:"user_id,omitempty"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	resp := meResponse{UserInfo: userInfoFromContext(r)}
	if uid, ok := userIDFromContext(r); ok {
		resp.UserID = &uid
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Profile sections ---

type editView struct {
	Section profile.Section `json:"section,omitempty"`
	Draft   profile.Draft   `json:"draft,omitempty"`
}

type profileResponse struct {
	profile.Snapshot
	Edit    *editView `json:"edit"`
	Error   string    `json:"error,omitempty"`
	Pending bool      `json:"pending"`
}

func profileView(sess *session) profileResponse {
	resp := profileResponse{
		Snapshot: sess.store.Snapshot(),
		Error:    sess.editor.Error(),
		Pending:  sess.editor.Pending(),
	}
	if e, ok := sess.editor.State().(profile.Editing); ok {
		resp.Edit = &editView{Section: e.Section, Draft: e.Draft}
	}
	return resp
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, profileView(sess))
}

func (s *Server) handleStartEdit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	if err := sess.editor.StartEdit(profile.Section(chi.URLParam(r, "section"))); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileView(sess))
}

type fieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (s *Server) handleMutateDraft(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	var req fieldRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := sess.editor.MutateDraft(req.Field, req.Value); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileView(sess))
}

func (s *Server) handleCommitEdit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	if err := sess.editor.Commit(r.Context()); err != nil {
		status := statusFor(err)
		writeJSON(w, status, profileErrorView(sess, err))
		return
	}
	s.dash.Invalidate(sess.store.UserID())
	writeJSON(w, http.StatusOK, profileView(sess))
}

// profileErrorView is the profile view with the failed operation's message.
func profileErrorView(sess *session, err error) profileResponse {
	v := profileView(sess)
	if v.Error == "" {
		v.Error = err.Error()
	}
	return v
}

func (s *Server) handleCancelEdit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	if err := sess.editor.Cancel(); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileView(sess))
}

// --- Benchmarks ---

type addBenchmarkRequest struct {
	LiftName string          `json:"lift_name"`
	WeightKg json.RawMessage `json:"weight_kg"`
	Notes    string          `json:"notes"`
}

// rawWeight accepts the weight as a JSON number or string so the store can
// apply one validation rule to both.
func rawWeight(raw json.RawMessage) string {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return strings.TrimSpace(string(raw))
}

func (s *Server) handleAddBenchmark(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	var req addBenchmarkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	lift, err := sess.store.AddBenchmark(r.Context(), req.LiftName, rawWeight(req.WeightKg), req.Notes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lift)
}

func (s *Server) handleDeleteBenchmark(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid benchmark ID"})
		return
	}
	if err := sess.store.DeleteBenchmark(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.store.Lifts())
}

// --- Onboarding ---

type onboardingResponse struct {
	onboarding.View
	Onboarded bool   `json:"onboarded"`
	Redirect  string `json:"redirect,omitempty"`
}

func (s *Server) onboardingView(sess *session, wiz *onboarding.Wizard) onboardingResponse {
	return onboardingResponse{
		View:      wiz.View(),
		Onboarded: sess.store.Snapshot().Onboarded,
		Redirect:  wizardRedirect(sess),
	}
}

// wizardRedirect takes the wizard's pending redirect, if a wizard exists.
func wizardRedirect(sess *session) string {
	sess.mu.Lock()
	nav := sess.wizardNav
	sess.mu.Unlock()
	if nav == nil {
		return ""
	}
	return nav.take()
}

// wizardFor returns the wizard, refusing input once the user is onboarded
// unless this wizard is the one that onboarded them.
func (s *Server) wizardFor(sess *session) (*onboarding.Wizard, error) {
	wiz := s.onboardingWizard(sess)
	if sess.store.Snapshot().Onboarded && wiz.View().Phase == onboarding.PhaseSteps {
		return nil, errAlreadyOnboarded
	}
	return wiz, nil
}

func (s *Server) handleGetOnboarding(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.onboardingView(sess, s.onboardingWizard(sess)))
}

func (s *Server) handleSetOnboarding(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	var req fieldRequest
	if !decodeBody(w, r, &req) {
		return
	}
	wiz, err := s.wizardFor(sess)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := wiz.Set(req.Field, req.Value); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.onboardingView(sess, wiz))
}

func (s *Server) handleOnboardingAction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	wiz, err := s.wizardFor(sess)
	if err != nil {
		s.writeError(w, err)
		return
	}

	switch chi.URLParam(r, "action") {
	case "advance":
		err = wiz.Advance(r.Context())
	case "back":
		err = wiz.Back()
	case "complete":
		err = wiz.Complete(r.Context())
	case "skip":
		err = wiz.Skip(r.Context())
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown onboarding action"})
		return
	}
	if err != nil {
		status := statusFor(err)
		resp := s.onboardingView(sess, wiz)
		if resp.Error == "" {
			resp.Error = err.Error()
		}
		writeJSON(w, status, resp)
		return
	}

	resp := s.onboardingView(sess, wiz)
	status := http.StatusOK
	if resp.Phase != onboarding.PhaseSteps {
		status = http.StatusAccepted
	}
	writeJSON(w, status, resp)
}

// --- Dashboard and standalone generation ---

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	view, err := s.dash.Week(r.Context(), uid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type generationResponse struct {
	generation.Status
	Started  bool   `json:"started"`
	Redirect string `json:"redirect,omitempty"`
}

func (s *Server) handleGenerationStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, generationResponse{
		Status:   sess.standalone.Status(),
		Redirect: sess.standaloneNav.take(),
	})
}

func (s *Server) handleStartGeneration(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	_, started := sess.standalone.Start(r.Context(), sess.store.UserID())
	writeJSON(w, http.StatusAccepted, generationResponse{
		Status:  sess.standalone.Status(),
		Started: started,
	})
}
