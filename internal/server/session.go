package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/hybridathlete/internal/dashboard"
	"github.com/claude/hybridathlete/internal/generation"
	"github.com/claude/hybridathlete/internal/onboarding"
	"github.com/claude/hybridathlete/internal/profile"
	"github.com/google/uuid"
)

// session is one user's server-side UI state.
type session struct {
	store  *profile.Store
	editor *profile.Controller

	// standalone serves the dashboard's "generate a block" action. The wizard
	// has its own orchestrator and navigator so each shows its own failure
	// message and redirect.
	standalone    *generation.Orchestrator
	standaloneNav *navigator

	// lastUsed is guarded by Server.mu.
	lastUsed time.Time

	mu        sync.Mutex
	wizard    *onboarding.Wizard
	wizardGen *generation.Orchestrator
	wizardNav *navigator
}

// navigator implements generation.Navigator for one user. GoTo records a
// redirect that the next status poll hands to the client.
type navigator struct {
	userID uuid.UUID
	dash   *dashboard.Service
	store  *profile.Store
	log    *slog.Logger

	mu       sync.Mutex
	redirect string
}

func (n *navigator) GoTo(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.redirect = route
}

func (n *navigator) RefreshCachedData() {
	n.dash.Invalidate(n.userID)
	if err := n.store.Load(context.Background()); err != nil {
		n.log.Warn("refreshing profile cache", "user_id", n.userID, "error", err)
	}
}

// take returns and clears the pending redirect.
func (n *navigator) take() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	r := n.redirect
	n.redirect = ""
	return r
}

func (s *Server) newNavigator(store *profile.Store) *navigator {
	return &navigator{userID: store.UserID(), dash: s.dash, store: store, log: s.log}
}

func (s *Server) newSession(uid uuid.UUID) *session {
	store := profile.NewStore(s.repo, uid, s.log)
	nav := s.newNavigator(store)
	return &session{
		store:         store,
		editor:        profile.NewController(store, s.log),
		standalone:    generation.New(s.job, nav, generation.StandaloneFallbackMessage, s.opts.FallbackDelay, s.log),
		standaloneNav: nav,
	}
}

// busy reports whether the session has a write or generation in flight.
func (sess *session) busy() bool {
	if sess.editor.Pending() || sess.standalone.Status().State == generation.StateGenerating {
		return true
	}
	sess.mu.Lock()
	wiz := sess.wizard
	sess.mu.Unlock()
	if wiz == nil {
		return false
	}
	switch wiz.View().Phase {
	case onboarding.PhaseSubmitting, onboarding.PhaseGenerating:
		return true
	}
	return false
}

// sweepLocked drops sessions idle for longer than SessionIdle, keeping those
// with work in flight. It runs at most once per idle period. s.mu must be held.
func (s *Server) sweepLocked(now time.Time) {
	idle := s.opts.SessionIdle
	if idle <= 0 || now.Sub(s.lastSweep) < idle {
		return
	}
	s.lastSweep = now
	for uid, sess := range s.sessions {
		if now.Sub(sess.lastUsed) > idle && !sess.busy() {
			delete(s.sessions, uid)
			s.log.Debug("dropped idle session", "user_id", uid)
		}
	}
}

// session returns uid's session, creating it and loading the profile cache
// on first use or after a failed load.
func (s *Server) session(ctx context.Context, uid uuid.UUID) (*session, error) {
	s.mu.Lock()
	now := s.now()
	s.sweepLocked(now)
	sess, ok := s.sessions[uid]
	if !ok {
		sess = s.newSession(uid)
		s.sessions[uid] = sess
	}
	sess.lastUsed = now
	s.mu.Unlock()

	if !sess.store.Snapshot().Loaded {
		if err := sess.store.Load(ctx); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// onboardingWizard returns the session's wizard, starting one if needed.
func (s *Server) onboardingWizard(sess *session) *onboarding.Wizard {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.wizard == nil {
		sess.wizardNav = s.newNavigator(sess.store)
		sess.wizardGen = generation.New(s.job, sess.wizardNav, generation.WizardFallbackMessage, s.opts.FallbackDelay, s.log)
		sess.wizard = onboarding.New(sess.store.UserID(), s.repo, sess.wizardGen, s.log)
	}
	return sess.wizard
}

// userID maps a login to its user ID, caching the answer.
func (s *Server) userID(ctx context.Context, info UserInfo) (uuid.UUID, error) {
	s.mu.Lock()
	id, ok := s.users[info.Login]
	s.mu.Unlock()
	if ok {
		return id, nil
	}

	id, err := s.repo.GetOrCreateUser(ctx, info.Login, info.DisplayName)
	if err != nil {
		return uuid.Nil, err
	}
	s.mu.Lock()
	s.users[info.Login] = id
	s.mu.Unlock()
	return id, nil
}
