package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/hybridathlete/internal/models"
	"github.com/google/uuid"
)

// QuerySessions returns a user's sessions scheduled between start and end
// inclusive, ordered by date.
func (db *DB) QuerySessions(ctx context.Context, userID uuid.UUID, start, end models.Date) ([]models.Session, error) {
	from, err := start.Time()
	if err != nil {
		return nil, fmt.Errorf("session range start: %w", err)
	}
	to, err := end.Time()
	if err != nil {
		return nil, fmt.Errorf("session range end: %w", err)
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, block_id, title, description, session_type, priority, status,
		       scheduled_date, duration_mins
		FROM sessions
		WHERE user_id = $1 AND scheduled_date BETWEEN $2 AND $3
		ORDER BY scheduled_date, created_at
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	result := []models.Session{}
	for rows.Next() {
		var (
			s                             models.Session
			sessionType, priority, status string
			scheduled                     time.Time
			duration                      *int32
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.BlockID, &s.Title, &s.Description,
			&sessionType, &priority, &status, &scheduled, &duration); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		s.SessionType = models.SessionType(sessionType)
		s.Priority = models.Priority(priority)
		s.Status = models.SessionStatus(status)
		s.ScheduledDate = models.DateOf(scheduled)
		if duration != nil {
			d := int(*duration)
			s.DurationMins = &d
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// HasTrainingBlock reports whether the user has at least one generated block.
func (db *DB) HasTrainingBlock(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM training_blocks WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking training blocks: %w", err)
	}
	return exists, nil
}
