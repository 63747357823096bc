package storage

import (
	"context"
	"errors"

	"github.com/claude/hybridathlete/internal/models"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a single-row lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Repository is the full persistence surface of the service. *DB (Postgres)
// and sqlitestore.Store both satisfy it.
type Repository interface {
	GetOrCreateUser(ctx context.Context, login, displayName string) (uuid.UUID, error)

	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, patch models.ProfilePatch) error

	GetAthleteProfile(ctx context.Context, userID uuid.UUID) (*models.AthleteProfile, error)
	UpdateAthleteProfile(ctx context.Context, userID uuid.UUID, patch models.AthletePatch) error

	ListBenchmarkLifts(ctx context.Context, userID uuid.UUID) ([]models.BenchmarkLift, error)
	InsertBenchmarkLift(ctx context.Context, lift models.BenchmarkLift) (models.BenchmarkLift, error)
	DeleteBenchmarkLift(ctx context.Context, userID, id uuid.UUID) error

	CompleteOnboarding(ctx context.Context, ap models.AthleteProfile, lifts []models.BenchmarkLift) error

	QuerySessions(ctx context.Context, userID uuid.UUID, start, end models.Date) ([]models.Session, error)
	HasTrainingBlock(ctx context.Context, userID uuid.UUID) (bool, error)

	Close()
}

// Compile-time check: *DB satisfies Repository.
var _ Repository = (*DB)(nil)
