package profile

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/hybridathlete/internal/models"
	"github.com/claude/hybridathlete/internal/storage"
	"github.com/google/uuid"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeRepo is an in-memory Repository that counts writes and can be told to fail.
type fakeRepo struct {
	mu sync.Mutex

	profile *models.Profile
	athlete *models.AthleteProfile
	lifts   []models.BenchmarkLift

	failWrites error
	block      chan struct{} // when non-nil, writes wait for it to close

	profileWrites int
	athleteWrites int
	inserts       int
	deletes       int
}

func ptr[T any](v T) *T { return &v }

func seededRepo(uid uuid.UUID) *fakeRepo {
	return &fakeRepo{
		profile: &models.Profile{ID: uid, FullName: "Alice Doe", Email: "alice@example.com", Timezone: "UTC"},
		athlete: &models.AthleteProfile{
			ID:                  uuid.New(),
			UserID:              uid,
			CrossFitLevel:       ptr(models.CrossFitIntermediate),
			LiftingLevel:        ptr(models.LiftingBeginner),
			RunningLevel:        ptr(models.RunningAdvanced),
			TrainingDays:        models.NewDaySet(1, 3, 5),
			SessionDurationMins: 60,
			PrimaryGoal:         ptr(models.GoalHyroxPrep),
			Notes:               ptr("left knee"),
		},
		lifts: []models.BenchmarkLift{
			{ID: uuid.New(), UserID: uid, LiftName: models.LiftBackSquat, WeightKg: 140, RecordedAt: "2024-05-01"},
			{ID: uuid.New(), UserID: uid, LiftName: models.LiftSnatch, WeightKg: 70, RecordedAt: "2024-05-01"},
		},
	}
}

func (f *fakeRepo) wait() {
	if f.block != nil {
		<-f.block
	}
}

func (f *fakeRepo) GetProfile(_ context.Context, _ uuid.UUID) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profile == nil {
		return nil, storage.ErrNotFound
	}
	return cloneProfile(f.profile), nil
}

func (f *fakeRepo) UpdateProfile(_ context.Context, _ uuid.UUID, patch models.ProfilePatch) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profileWrites++
	if f.failWrites != nil {
		return f.failWrites
	}
	patch.Apply(f.profile)
	return nil
}

func (f *fakeRepo) GetAthleteProfile(_ context.Context, _ uuid.UUID) (*models.AthleteProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.athlete == nil {
		return nil, storage.ErrNotFound
	}
	return cloneAthlete(f.athlete), nil
}

func (f *fakeRepo) UpdateAthleteProfile(_ context.Context, _ uuid.UUID, patch models.AthletePatch) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.athleteWrites++
	if f.failWrites != nil {
		return f.failWrites
	}
	patch.Apply(f.athlete)
	return nil
}

func (f *fakeRepo) ListBenchmarkLifts(_ context.Context, _ uuid.UUID) ([]models.BenchmarkLift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.BenchmarkLift, len(f.lifts))
	copy(out, f.lifts)
	return out, nil
}

func (f *fakeRepo) InsertBenchmarkLift(_ context.Context, lift models.BenchmarkLift) (models.BenchmarkLift, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.failWrites != nil {
		return models.BenchmarkLift{}, f.failWrites
	}
	lift.CreatedAt = time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)
	f.lifts = append(f.lifts, lift)
	return lift, nil
}

func (f *fakeRepo) DeleteBenchmarkLift(_ context.Context, _ uuid.UUID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.failWrites != nil {
		return f.failWrites
	}
	for i, l := range f.lifts {
		if l.ID == id {
			f.lifts = append(f.lifts[:i], f.lifts[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeRepo) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profileWrites + f.athleteWrites
}
