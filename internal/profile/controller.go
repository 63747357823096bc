package profile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/claude/hybridathlete/internal/observability"
)

// State is the controller's edit state: NoActiveEdit or Editing.
type State interface {
	editState()
}

// NoActiveEdit means no section is open for editing.
type NoActiveEdit struct{}

// Editing means exactly one section is open, with its draft.
type Editing struct {
	Section Section
	Draft   Draft
}

func (NoActiveEdit) editState() {}
func (Editing) editState()      {}

// Controller lets one section at a time be edited and committed through a
// Store. Opening a section discards any other open draft.
type Controller struct {
	store *Store
	log   *slog.Logger

	mu      sync.Mutex
	state   State
	pending bool
	errMsg  string
}

// NewController returns a controller with no open section.
func NewController(store *Store, log *slog.Logger) *Controller {
	return &Controller{store: store, log: log, state: NoActiveEdit{}}
}

// State returns the current edit state. The draft is a copy.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.state.(Editing); ok {
		return Editing{Section: e.Section, Draft: e.Draft.clone()}
	}
	return NoActiveEdit{}
}

// Error returns the message of the last failed commit, if any.
func (c *Controller) Error() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// Pending reports whether a commit is in flight.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// StartEdit opens section with a fresh draft of the cached values. It does
// nothing when the entity behind the section has not been loaded.
func (c *Controller) StartEdit(section Section) error {
	if _, err := ParseSection(string(section)); err != nil {
		return err
	}
	p, ap := c.store.entities()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending {
		return ErrCommitPending
	}
	draft, ok := newDraft(section, p, ap)
	if !ok {
		return nil
	}
	c.state = Editing{Section: section, Draft: draft}
	c.errMsg = ""
	return nil
}

// MutateDraft sets one field of the open draft. Training days toggle.
func (c *Controller) MutateDraft(field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending {
		return ErrCommitPending
	}
	e, ok := c.state.(Editing)
	if !ok {
		return ErrNotEditing
	}
	return e.Draft.set(field, value)
}

// Commit writes the open draft. On success the cache is merged and the
// section closes; on failure the draft stays open and Error reports why.
func (c *Controller) Commit(ctx context.Context) error {
	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return ErrCommitPending
	}
	e, ok := c.state.(Editing)
	if !ok {
		c.mu.Unlock()
		return ErrNotEditing
	}
	draft := e.Draft.clone()
	c.pending = true
	c.mu.Unlock()

	var err error
	switch d := draft.(type) {
	case ProfileDraft:
		err = c.store.updateProfile(ctx, d.Patch())
	case AthleteDraft:
		err = c.store.updateAthlete(ctx, d.Patch())
	default:
		err = fmt.Errorf("no writer for %s draft", draft.Section())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = false
	if err != nil {
		observability.ProfileCommits.WithLabelValues(string(e.Section), "error").Inc()
		c.errMsg = err.Error()
		c.log.Warn("profile commit failed", "user_id", c.store.UserID(), "section", e.Section, "error", err)
		return err
	}
	observability.ProfileCommits.WithLabelValues(string(e.Section), "ok").Inc()
	c.state = NoActiveEdit{}
	c.errMsg = ""
	return nil
}

// Cancel discards the open draft without writing anything.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending {
		return ErrCommitPending
	}
	c.state = NoActiveEdit{}
	return nil
}
