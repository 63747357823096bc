package mcp

import (
	"context"

	"github.com/claude/hybridathlete/internal/models"
	"github.com/claude/hybridathlete/internal/storage"
	"github.com/google/uuid"
)

// DataSource abstracts the read side of the data layer for MCP tools. Both
// *storage.DB and sqlitestore.Store satisfy it.
type DataSource interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	GetAthleteProfile(ctx context.Context, userID uuid.UUID) (*models.AthleteProfile, error)
	ListBenchmarkLifts(ctx context.Context, userID uuid.UUID) ([]models.BenchmarkLift, error)
	QuerySessions(ctx context.Context, userID uuid.UUID, start, end models.Date) ([]models.Session, error)
	HasTrainingBlock(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
