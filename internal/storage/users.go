package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetOrCreateUser finds or creates a user by login name and makes sure the
// user has a primary profile. Returns the user ID. Updates last_seen and
// display_name on each call.
func (db *DB) GetOrCreateUser(ctx context.Context, login, displayName string) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.withTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO users (login, display_name)
			VALUES ($1, $2)
			ON CONFLICT (login) DO UPDATE
				SET last_seen = NOW(), display_name = COALESCE(NULLIF($2, ''), users.display_name)
			RETURNING id
		`, login, displayName).Scan(&id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO profiles (id, email, full_name)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING
		`, id, login, displayName)
		return err
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("upserting user %q: %w", login, err)
	}
	return id, nil
}
