package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/claude/hybridathlete/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetProfile returns the primary profile of a user, or ErrNotFound.
func (db *DB) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	err := db.Pool.QueryRow(ctx, `
		SELECT id, email, full_name, timezone, avatar_url, created_at, updated_at
		FROM profiles WHERE id = $1
	`, userID).Scan(&p.ID, &p.Email, &p.FullName, &p.Timezone, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}
	return &p, nil
}

// UpdateProfile applies a partial update. Nil patch fields keep their column value.
func (db *DB) UpdateProfile(ctx context.Context, userID uuid.UUID, patch models.ProfilePatch) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE profiles SET
			full_name  = COALESCE($2, full_name),
			timezone   = COALESCE($3, timezone),
			updated_at = NOW()
		WHERE id = $1
	`, userID, patch.FullName, patch.Timezone)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
