package storage

import (
	"context"
	"fmt"

	"github.com/claude/hybridathlete/internal/models"
	"github.com/jackc/pgx/v5"
)

// CompleteOnboarding stores the athlete profile and the initial benchmark
// lifts in one transaction. The profile is upserted on user_id and lifts are
// inserted with ON CONFLICT (id) DO NOTHING, so a retried submission with the
// same ids neither duplicates nor half-applies.
func (db *DB) CompleteOnboarding(ctx context.Context, ap models.AthleteProfile, lifts []models.BenchmarkLift) error {
	err := db.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertAthleteSQL, upsertAthleteArgs(ap)...); err != nil {
			return fmt.Errorf("upserting athlete profile: %w", err)
		}

		batch := &pgx.Batch{}
		for _, l := range lifts {
			recorded, err := l.RecordedAt.Time()
			if err != nil {
				return fmt.Errorf("benchmark lift date: %w", err)
			}
			batch.Queue(`
				INSERT INTO benchmark_lifts (id, user_id, lift_name, weight_kg, recorded_at, notes)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO NOTHING
			`, l.ID, ap.UserID, string(l.LiftName), l.WeightKg, recorded, l.Notes)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting benchmark lifts: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("completing onboarding: %w", err)
	}
	return nil
}
