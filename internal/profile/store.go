// Package profile holds the per-user cache of profile data and the
// single-section edit controller that writes through it.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/claude/hybridathlete/internal/models"
	"github.com/claude/hybridathlete/internal/observability"
	"github.com/claude/hybridathlete/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotEditing        = errors.New("no section is being edited")
	ErrFieldNotInSection = errors.New("field does not belong to the section being edited")
	ErrUnknownSection    = errors.New("unknown section")
	ErrCommitPending     = errors.New("a previous write has not settled")
)

// Repository is the persistence the store needs.
type Repository interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, patch models.ProfilePatch) error
	GetAthleteProfile(ctx context.Context, userID uuid.UUID) (*models.AthleteProfile, error)
	UpdateAthleteProfile(ctx context.Context, userID uuid.UUID, patch models.AthletePatch) error
	ListBenchmarkLifts(ctx context.Context, userID uuid.UUID) ([]models.BenchmarkLift, error)
	InsertBenchmarkLift(ctx context.Context, lift models.BenchmarkLift) (models.BenchmarkLift, error)
	DeleteBenchmarkLift(ctx context.Context, userID, id uuid.UUID) error
}

// Snapshot is a copy of the store's cache.
type Snapshot struct {
	Loaded    bool                   `json:"loaded"`
	Profile   *models.Profile        `json:"profile"`
	Athlete   *models.AthleteProfile `json:"athlete_profile"`
	Lifts     []models.BenchmarkLift `json:"benchmark_lifts"`
	Onboarded bool                   `json:"onboarded"`
}

// Store caches one user's profile, athlete profile and benchmark lifts. The
// cache only changes after a repository call succeeds.
type Store struct {
	repo   Repository
	userID uuid.UUID
	log    *slog.Logger
	now    func() time.Time
	newID  func() uuid.UUID

	mu      sync.Mutex
	loaded  bool
	profile *models.Profile
	athlete *models.AthleteProfile
	lifts   []models.BenchmarkLift
	adding  bool
}

// NewStore creates an empty store for userID. Call Load before reading.
func NewStore(repo Repository, userID uuid.UUID, log *slog.Logger) *Store {
	return &Store{
		repo:   repo,
		userID: userID,
		log:    log,
		now:    time.Now,
		newID:  uuid.New,
	}
}

// UserID returns the user the store belongs to.
func (s *Store) UserID() uuid.UUID { return s.userID }

// Load reads the profile, athlete profile and benchmark lifts concurrently and
// swaps them in together. A missing athlete profile means "not onboarded".
func (s *Store) Load(ctx context.Context) error {
	var (
		p     *models.Profile
		ap    *models.AthleteProfile
		lifts []models.BenchmarkLift
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		p, err = s.repo.GetProfile(gctx, s.userID)
		if err != nil {
			return fmt.Errorf("loading profile: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		ap, err = s.repo.GetAthleteProfile(gctx, s.userID)
		if errors.Is(err, storage.ErrNotFound) {
			ap = nil
			return nil
		}
		if err != nil {
			return fmt.Errorf("loading athlete profile: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		lifts, err = s.repo.ListBenchmarkLifts(gctx, s.userID)
		if err != nil {
			return fmt.Errorf("loading benchmark lifts: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile, s.athlete, s.lifts = p, ap, lifts
	s.loaded = true
	return nil
}

// Snapshot returns a copy of the cached data.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Loaded:    s.loaded,
		Profile:   cloneProfile(s.profile),
		Athlete:   cloneAthlete(s.athlete),
		Lifts:     slices.Clone(s.lifts),
		Onboarded: s.athlete != nil,
	}
	if snap.Lifts == nil {
		snap.Lifts = []models.BenchmarkLift{}
	}
	return snap
}

// Lifts returns a copy of the benchmark list in cache order.
func (s *Store) Lifts() []models.BenchmarkLift {
	return s.Snapshot().Lifts
}

func (s *Store) entities() (*models.Profile, *models.AthleteProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneProfile(s.profile), cloneAthlete(s.athlete)
}

// updateProfile writes a patch and merges it into the cached profile.
func (s *Store) updateProfile(ctx context.Context, patch models.ProfilePatch) error {
	if err := s.repo.UpdateProfile(ctx, s.userID, patch); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile != nil {
		patch.Apply(s.profile)
	}
	return nil
}

// updateAthlete writes a patch and merges it into the cached athlete profile.
func (s *Store) updateAthlete(ctx context.Context, patch models.AthletePatch) error {
	if err := s.repo.UpdateAthleteProfile(ctx, s.userID, patch); err != nil {
		return fmt.Errorf("saving athlete profile: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.athlete != nil {
		patch.Apply(s.athlete)
	}
	return nil
}

// AddBenchmark validates and stores a new lift dated today, then appends it
// to the cached list without re-sorting.
func (s *Store) AddBenchmark(ctx context.Context, liftName, weight, note string) (models.BenchmarkLift, error) {
	name, err := models.ParseLiftName(liftName)
	if err != nil {
		return models.BenchmarkLift{}, err
	}
	kg, err := models.ParseWeight(weight)
	if err != nil {
		return models.BenchmarkLift{}, err
	}

	s.mu.Lock()
	if s.adding {
		s.mu.Unlock()
		return models.BenchmarkLift{}, ErrCommitPending
	}
	s.adding = true
	s.mu.Unlock()

	lift := models.BenchmarkLift{
		ID:         s.newID(),
		UserID:     s.userID,
		LiftName:   name,
		WeightKg:   kg,
		RecordedAt: models.DateOf(s.now()),
	}
	if n := strings.TrimSpace(note); n != "" {
		lift.Notes = &n
	}

	saved, err := s.repo.InsertBenchmarkLift(ctx, lift)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.adding = false
	if err != nil {
		observability.BenchmarkWrites.WithLabelValues("add", "error").Inc()
		s.log.Error("add benchmark", "user_id", s.userID, "lift", name, "error", err)
		return models.BenchmarkLift{}, fmt.Errorf("saving benchmark lift: %w", err)
	}
	observability.BenchmarkWrites.WithLabelValues("add", "ok").Inc()
	s.lifts = append(s.lifts, saved)
	return saved, nil
}

// DeleteBenchmark removes a lift. Deleting an id that is already gone succeeds.
func (s *Store) DeleteBenchmark(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteBenchmarkLift(ctx, s.userID, id); err != nil {
		observability.BenchmarkWrites.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("deleting benchmark lift: %w", err)
	}
	observability.BenchmarkWrites.WithLabelValues("delete", "ok").Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lifts = slices.DeleteFunc(s.lifts, func(l models.BenchmarkLift) bool { return l.ID == id })
	return nil
}

func cloneProfile(p *models.Profile) *models.Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.AvatarURL = clonePtr(p.AvatarURL)
	return &c
}

func cloneAthlete(ap *models.AthleteProfile) *models.AthleteProfile {
	if ap == nil {
		return nil
	}
	c := *ap
	c.CrossFitLevel = clonePtr(ap.CrossFitLevel)
	c.LiftingLevel = clonePtr(ap.LiftingLevel)
	c.RunningLevel = clonePtr(ap.RunningLevel)
	c.TrainingDays = ap.TrainingDays.Clone()
	c.PrimaryGoal = clonePtr(ap.PrimaryGoal)
	c.Notes = clonePtr(ap.Notes)
	return &c
}
