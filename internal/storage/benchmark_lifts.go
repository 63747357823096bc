package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/hybridathlete/internal/models"
	"github.com/google/uuid"
)

// ListBenchmarkLifts returns a user's benchmark lifts ordered by lift name.
func (db *DB) ListBenchmarkLifts(ctx context.Context, userID uuid.UUID) ([]models.BenchmarkLift, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, lift_name, weight_kg, recorded_at, notes, created_at
		FROM benchmark_lifts
		WHERE user_id = $1
		ORDER BY lift_name, recorded_at, created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying benchmark lifts: %w", err)
	}
	defer rows.Close()

	result := []models.BenchmarkLift{}
	for rows.Next() {
		var (
			l        models.BenchmarkLift
			name     string
			recorded time.Time
		)
		if err := rows.Scan(&l.ID, &l.UserID, &name, &l.WeightKg, &recorded, &l.Notes, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning benchmark lift: %w", err)
		}
		l.LiftName = models.LiftName(name)
		l.RecordedAt = models.DateOf(recorded)
		result = append(result, l)
	}
	return result, rows.Err()
}

// InsertBenchmarkLift stores a new benchmark lift and returns it with its
// server-assigned creation time.
func (db *DB) InsertBenchmarkLift(ctx context.Context, lift models.BenchmarkLift) (models.BenchmarkLift, error) {
	recorded, err := lift.RecordedAt.Time()
	if err != nil {
		return models.BenchmarkLift{}, fmt.Errorf("benchmark lift date: %w", err)
	}
	if lift.ID == uuid.Nil {
		lift.ID = uuid.New()
	}
	err = db.Pool.QueryRow(ctx, `
		INSERT INTO benchmark_lifts (id, user_id, lift_name, weight_kg, recorded_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, lift.ID, lift.UserID, string(lift.LiftName), lift.WeightKg, recorded, lift.Notes).Scan(&lift.CreatedAt)
	if err != nil {
		return models.BenchmarkLift{}, fmt.Errorf("inserting benchmark lift: %w", err)
	}
	return lift, nil
}

// DeleteBenchmarkLift removes a benchmark lift. Deleting a missing id is not an error.
func (db *DB) DeleteBenchmarkLift(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := db.Pool.Exec(ctx,
		`DELETE FROM benchmark_lifts WHERE id = $1 AND user_id = $2`, id, userID); err != nil {
		return fmt.Errorf("deleting benchmark lift: %w", err)
	}
	return nil
}
