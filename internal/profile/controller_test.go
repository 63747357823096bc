package profile

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/claude/hybridathlete/internal/models"
	"github.com/google/uuid"
)

func newController(t *testing.T) (*Controller, *Store, *fakeRepo) {
	t.Helper()
	uid := uuid.New()
	repo := seededRepo(uid)
	s := loadedStore(t, repo, uid)
	return NewController(s, testLog), s, repo
}

func editing(t *testing.T, c *Controller) Editing {
	t.Helper()
	e, ok := c.State().(Editing)
	if !ok {
		t.Fatalf("state = %T, want Editing", c.State())
	}
	return e
}

// TestStartEditSwitchesSection verifies opening a second section discards the first draft.
func TestStartEditSwitchesSection(t *testing.T) {
	c, _, _ := newController(t)

	if err := c.StartEdit(SectionPersonal); err != nil {
		t.Fatal(err)
	}
	if err := c.MutateDraft(FieldFullName, "Changed"); err != nil {
		t.Fatal(err)
	}
	if err := c.StartEdit(SectionGoal); err != nil {
		t.Fatal(err)
	}

	e := editing(t, c)
	if e.Section != SectionGoal || e.Draft.Section() != SectionGoal {
		t.Fatalf("section = %s / draft %s, want goal", e.Section, e.Draft.Section())
	}

	// Reopening personal starts from the cached value, not the abandoned draft.
	if err := c.StartEdit(SectionPersonal); err != nil {
		t.Fatal(err)
	}
	if d := editing(t, c).Draft.(*PersonalDraft); d.FullName != "Alice Doe" {
		t.Errorf("full name = %q, want cached value", d.FullName)
	}
}

// TestStartEditNotLoaded verifies editing an unloaded entity is a silent no-op.
func TestStartEditNotLoaded(t *testing.T) {
	uid := uuid.New()
	repo := seededRepo(uid)
	repo.athlete = nil
	c := NewController(loadedStore(t, repo, uid), testLog)

	for _, sec := range []Section{SectionLevels, SectionSchedule, SectionGoal, SectionNotes} {
		if err := c.StartEdit(sec); err != nil {
			t.Errorf("StartEdit(%s) err = %v", sec, err)
		}
		if _, ok := c.State().(NoActiveEdit); !ok {
			t.Errorf("StartEdit(%s) opened a section without an athlete profile", sec)
		}
	}

	if err := c.StartEdit(SectionPersonal); err != nil {
		t.Fatal(err)
	}
	editing(t, c)
}

// TestStartEditUnknownSection verifies bad section names are rejected.
func TestStartEditUnknownSection(t *testing.T) {
	c, _, _ := newController(t)
	if err := c.StartEdit("billing"); !errors.Is(err, ErrUnknownSection) {
		t.Errorf("err = %v, want ErrUnknownSection", err)
	}
}

// TestCancelRestoresValues verifies cancel after mutations leaves cached
// fields exactly as before and writes nothing.
func TestCancelRestoresValues(t *testing.T) {
	c, s, repo := newController(t)
	before := s.Snapshot()

	if err := c.StartEdit(SectionSchedule); err != nil {
		t.Fatal(err)
	}
	for _, step := range [][2]string{
		{FieldTrainingDays, "1"},
		{FieldTrainingDays, "0"},
		{FieldTrainingDays, "6"},
		{FieldSessionDuration, "120"},
	} {
		if err := c.MutateDraft(step[0], step[1]); err != nil {
			t.Fatalf("MutateDraft(%s, %s): %v", step[0], step[1], err)
		}
	}
	if err := c.Cancel(); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.State().(NoActiveEdit); !ok {
		t.Errorf("state = %T, want NoActiveEdit", c.State())
	}
	if !reflect.DeepEqual(before, s.Snapshot()) {
		t.Errorf("cache changed by cancelled edit")
	}
	if repo.writes() != 0 {
		t.Errorf("writes = %d, want 0", repo.writes())
	}
}

// TestMutateDraftTogglesDays verifies the training-day field toggles membership.
func TestMutateDraftTogglesDays(t *testing.T) {
	c, _, _ := newController(t)
	if err := c.StartEdit(SectionSchedule); err != nil {
		t.Fatal(err)
	}
	_ = c.MutateDraft(FieldTrainingDays, "3") // remove
	_ = c.MutateDraft(FieldTrainingDays, "2") // add
	d := editing(t, c).Draft.(*ScheduleDraft)
	if !slices.Equal(d.TrainingDays, models.DaySet{1, 2, 5}) {
		t.Errorf("days = %v, want [1 2 5]", d.TrainingDays)
	}
}

// TestMutateDraftRejections verifies the three rejection classes.
func TestMutateDraftRejections(t *testing.T) {
	c, _, _ := newController(t)

	if err := c.MutateDraft(FieldNotes, "x"); !errors.Is(err, ErrNotEditing) {
		t.Errorf("no edit: err = %v, want ErrNotEditing", err)
	}

	if err := c.StartEdit(SectionLevels); err != nil {
		t.Fatal(err)
	}
	if err := c.MutateDraft(FieldFullName, "x"); !errors.Is(err, ErrFieldNotInSection) {
		t.Errorf("wrong section: err = %v, want ErrFieldNotInSection", err)
	}
	if err := c.MutateDraft(FieldRunningLevel, "olympian"); !errors.Is(err, models.ErrInvalidValue) {
		t.Errorf("bad enum: err = %v, want ErrInvalidValue", err)
	}
	if d := editing(t, c).Draft.(*LevelsDraft); *d.RunningLevel != models.RunningAdvanced {
		t.Errorf("rejected value changed the draft: %s", *d.RunningLevel)
	}
}

// TestCommitMergesOnlyDraftFields verifies a successful commit writes once,
// merges the section's fields, and leaves every other field unchanged.
func TestCommitMergesOnlyDraftFields(t *testing.T) {
	c, s, repo := newController(t)
	before := s.Snapshot()

	if err := c.StartEdit(SectionLevels); err != nil {
		t.Fatal(err)
	}
	if err := c.MutateDraft(FieldLiftingLevel, "competitive"); err != nil {
		t.Fatal(err)
	}
	if err := c.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if repo.athleteWrites != 1 || repo.profileWrites != 0 {
		t.Errorf("writes = athlete %d profile %d, want 1 / 0", repo.athleteWrites, repo.profileWrites)
	}
	if _, ok := c.State().(NoActiveEdit); !ok {
		t.Errorf("state = %T, want NoActiveEdit", c.State())
	}

	after := s.Snapshot()
	if *after.Athlete.LiftingLevel != models.LiftingCompetitive {
		t.Errorf("lifting level = %s, want competitive", *after.Athlete.LiftingLevel)
	}
	want := *before.Athlete
	want.LiftingLevel = after.Athlete.LiftingLevel
	if !reflect.DeepEqual(&want, after.Athlete) {
		t.Errorf("untouched fields changed:\nbefore %+v\nafter  %+v", before.Athlete, after.Athlete)
	}
	if !reflect.DeepEqual(before.Profile, after.Profile) {
		t.Errorf("profile changed by levels commit")
	}
}

// TestCommitClearsLevel verifies a blank level value clears it on commit while
// the other levels keep their values.
func TestCommitClearsLevel(t *testing.T) {
	c, s, _ := newController(t)
	before := s.Snapshot()

	if err := c.StartEdit(SectionLevels); err != nil {
		t.Fatal(err)
	}
	for _, v := range []string{"", "  "} {
		if err := c.MutateDraft(FieldRunningLevel, v); err != nil {
			t.Fatalf("MutateDraft(%q): %v", v, err)
		}
		if d := editing(t, c).Draft.(*LevelsDraft); d.RunningLevel != nil {
			t.Errorf("draft running level = %s after %q, want nil", *d.RunningLevel, v)
		}
	}
	if err := c.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	after := s.Snapshot().Athlete
	if after.RunningLevel != nil {
		t.Errorf("running level = %s, want cleared", *after.RunningLevel)
	}
	if !reflect.DeepEqual(before.Athlete.LiftingLevel, after.LiftingLevel) ||
		!reflect.DeepEqual(before.Athlete.CrossFitLevel, after.CrossFitLevel) {
		t.Errorf("other levels changed: before %+v after %+v", before.Athlete, after)
	}
}

// TestCommitPersonalSection verifies the personal draft targets the primary profile.
func TestCommitPersonalSection(t *testing.T) {
	c, s, repo := newController(t)
	if err := c.StartEdit(SectionPersonal); err != nil {
		t.Fatal(err)
	}
	_ = c.MutateDraft(FieldTimezone, "America/Denver")
	if err := c.Commit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if repo.profileWrites != 1 || repo.athleteWrites != 0 {
		t.Errorf("writes = profile %d athlete %d, want 1 / 0", repo.profileWrites, repo.athleteWrites)
	}
	p := s.Snapshot().Profile
	if p.Timezone != "America/Denver" || p.FullName != "Alice Doe" {
		t.Errorf("profile = %+v", p)
	}
}

// TestCommitNotesClears verifies committing empty notes clears them.
func TestCommitNotesClears(t *testing.T) {
	c, s, _ := newController(t)
	_ = c.StartEdit(SectionNotes)
	_ = c.MutateDraft(FieldNotes, "")
	if err := c.Commit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := s.Snapshot().Athlete.Notes; n != nil {
		t.Errorf("notes = %q, want nil", *n)
	}
}

// TestCommitFailureKeepsDraft verifies a failed commit leaves the draft open,
// surfaces the message, and allows a retry.
func TestCommitFailureKeepsDraft(t *testing.T) {
	c, s, repo := newController(t)
	before := s.Snapshot()
	repo.failWrites = errors.New("permission denied")

	_ = c.StartEdit(SectionGoal)
	_ = c.MutateDraft(FieldPrimaryGoal, "strength_focus")
	if err := c.Commit(context.Background()); err == nil {
		t.Fatal("expected commit error")
	}

	e := editing(t, c)
	if g := e.Draft.(*GoalDraft).PrimaryGoal; *g != models.GoalStrengthFocus {
		t.Errorf("draft goal = %s, want strength_focus", *g)
	}
	if c.Error() == "" {
		t.Error("no error message surfaced")
	}
	if !reflect.DeepEqual(before, s.Snapshot()) {
		t.Error("cache changed by failed commit")
	}

	repo.failWrites = nil
	if err := c.Commit(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if c.Error() != "" {
		t.Errorf("error not cleared after successful retry: %q", c.Error())
	}
	if *s.Snapshot().Athlete.PrimaryGoal != models.GoalStrengthFocus {
		t.Error("retry did not merge")
	}
}

// TestCommitWithoutEdit verifies Commit outside an edit is rejected.
func TestCommitWithoutEdit(t *testing.T) {
	c, _, repo := newController(t)
	if err := c.Commit(context.Background()); !errors.Is(err, ErrNotEditing) {
		t.Errorf("err = %v, want ErrNotEditing", err)
	}
	if repo.writes() != 0 {
		t.Errorf("writes = %d, want 0", repo.writes())
	}
}

// TestCommitPendingBlocksEdits verifies nothing else can start while a commit
// is in flight.
func TestCommitPendingBlocksEdits(t *testing.T) {
	c, _, repo := newController(t)
	repo.block = make(chan struct{})

	_ = c.StartEdit(SectionNotes)
	_ = c.MutateDraft(FieldNotes, "new notes")

	done := make(chan error, 1)
	go func() { done <- c.Commit(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for !c.Pending() {
		if time.Now().After(deadline) {
			t.Fatal("commit never became pending")
		}
		time.Sleep(time.Millisecond)
	}

	if err := c.StartEdit(SectionGoal); !errors.Is(err, ErrCommitPending) {
		t.Errorf("StartEdit during commit: err = %v, want ErrCommitPending", err)
	}
	if err := c.Cancel(); !errors.Is(err, ErrCommitPending) {
		t.Errorf("Cancel during commit: err = %v, want ErrCommitPending", err)
	}
	if err := c.Commit(context.Background()); !errors.Is(err, ErrCommitPending) {
		t.Errorf("second Commit: err = %v, want ErrCommitPending", err)
	}

	close(repo.block)
	if err := <-done; err != nil {
		t.Fatalf("commit: %v", err)
	}
	if repo.writes() != 1 {
		t.Errorf("writes = %d, want 1", repo.writes())
	}
}
