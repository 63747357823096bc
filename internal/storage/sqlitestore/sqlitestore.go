// Package sqlitestore is a single-file SQLite implementation of
// storage.Repository for local development and tests.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/claude/hybridathlete/internal/models"
	"github.com/claude/hybridathlete/internal/storage"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Compile-time check: *Store satisfies storage.Repository.
var _ storage.Repository = (*Store)(nil)

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// One writer at a time; transactions would otherwise hit SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.configurePragmas(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configuring pragmas: %w", err)
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() {
	_ = s.db.Close()
}

func (s *Store) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS users (
		id           TEXT PRIMARY KEY,
		login        TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		created_at   TEXT NOT NULL,
		last_seen    TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS profiles (
		id         TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		email      TEXT NOT NULL DEFAULT '',
		full_name  TEXT NOT NULL DEFAULT '',
		timezone   TEXT NOT NULL DEFAULT 'UTC',
		avatar_url TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS athlete_profiles (
		id                            TEXT PRIMARY KEY,
		user_id                       TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		crossfit_level                TEXT,
		lifting_level                 TEXT,
		running_level                 TEXT,
		typical_training_days         TEXT NOT NULL DEFAULT '[]',
		typical_session_duration_mins INTEGER NOT NULL DEFAULT 60,
		primary_goal                  TEXT,
		notes                         TEXT,
		created_at                    TEXT NOT NULL,
		updated_at                    TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS benchmark_lifts (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		lift_name   TEXT NOT NULL,
		weight_kg   REAL NOT NULL,
		recorded_at TEXT NOT NULL,
		notes       TEXT,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_benchmark_lifts_user ON benchmark_lifts (user_id, lift_name);
	CREATE TABLE IF NOT EXISTS training_blocks (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date   TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS sessions (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		block_id       TEXT REFERENCES training_blocks(id) ON DELETE CASCADE,
		title          TEXT NOT NULL,
		description    TEXT,
		session_type   TEXT NOT NULL,
		priority       TEXT NOT NULL DEFAULT 'standard',
		status         TEXT NOT NULL DEFAULT 'scheduled',
		scheduled_date TEXT NOT NULL,
		duration_mins  INTEGER,
		created_at     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user_date ON sessions (user_id, scheduled_date);
	`)
	return err
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func parseStamp(v string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, v)
	return t
}

// GetOrCreateUser finds or creates a user by login and ensures a profile row.
func (s *Store) GetOrCreateUser(ctx context.Context, login, displayName string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.stamp()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, login, display_name, created_at, last_seen)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (login) DO UPDATE
				SET last_seen = excluded.last_seen,
				    display_name = COALESCE(NULLIF(excluded.display_name, ''), users.display_name)
		`, uuid.NewString(), login, displayName, now, now); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE login = ?`, login).Scan(&id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO profiles (id, email, full_name, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (id) DO NOTHING
		`, id, login, displayName, now, now)
		return err
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("upserting user %q: %w", login, err)
	}
	return id, nil
}

// GetProfile returns the primary profile of a user, or storage.ErrNotFound.
func (s *Store) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var (
		p                models.Profile
		created, updated string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, timezone, avatar_url, created_at, updated_at
		FROM profiles WHERE id = ?
	`, userID).Scan(&p.ID, &p.Email, &p.FullName, &p.Timezone, &p.AvatarURL, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}
	p.CreatedAt, p.UpdatedAt = parseStamp(created), parseStamp(updated)
	return &p, nil
}

// UpdateProfile applies a partial update.
func (s *Store) UpdateProfile(ctx context.Context, userID uuid.UUID, patch models.ProfilePatch) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET
			full_name  = COALESCE(?, full_name),
			timezone   = COALESCE(?, timezone),
			updated_at = ?
		WHERE id = ?
	`, patch.FullName, patch.Timezone, s.stamp(), userID)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func encodeDays(d models.DaySet) string {
	data, _ := json.Marshal(d)
	return string(data)
}

// GetAthleteProfile returns the athlete profile of a user, or storage.ErrNotFound.
func (s *Store) GetAthleteProfile(ctx context.Context, userID uuid.UUID) (*models.AthleteProfile, error) {
	var (
		ap                     models.AthleteProfile
		cf, lift, run, goal    *string
		days, created, updated string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, crossfit_level, lifting_level, running_level,
		       typical_training_days, typical_session_duration_mins, primary_goal, notes,
		       created_at, updated_at
		FROM athlete_profiles WHERE user_id = ?
	`, userID).Scan(&ap.ID, &ap.UserID, &cf, &lift, &run, &days, &ap.SessionDurationMins,
		&goal, &ap.Notes, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying athlete profile: %w", err)
	}
	if err := json.Unmarshal([]byte(days), &ap.TrainingDays); err != nil {
		return nil, fmt.Errorf("decoding training days: %w", err)
	}
	ap.CrossFitLevel = (*models.CrossFitLevel)(cf)
	ap.LiftingLevel = (*models.LiftingLevel)(lift)
	ap.RunningLevel = (*models.RunningLevel)(run)
	ap.PrimaryGoal = (*models.Goal)(goal)
	ap.CreatedAt, ap.UpdatedAt = parseStamp(created), parseStamp(updated)
	return &ap, nil
}

// UpdateAthleteProfile applies a partial update keyed by user. An empty
// level or Notes value clears the column.
func (s *Store) UpdateAthleteProfile(ctx context.Context, userID uuid.UUID, patch models.AthletePatch) error {
	var days *string
	if patch.TrainingDays != nil {
		d := encodeDays(*patch.TrainingDays)
		days = &d
	}
	cf, lift, run := (*string)(patch.CrossFitLevel), (*string)(patch.LiftingLevel), (*string)(patch.RunningLevel)
	res, err := s.db.ExecContext(ctx, `
		UPDATE athlete_profiles SET
			crossfit_level = CASE WHEN ? IS NULL THEN crossfit_level ELSE NULLIF(?, '') END,
			lifting_level  = CASE WHEN ? IS NULL THEN lifting_level ELSE NULLIF(?, '') END,
			running_level  = CASE WHEN ? IS NULL THEN running_level ELSE NULLIF(?, '') END,
			typical_training_days         = COALESCE(?, typical_training_days),
			typical_session_duration_mins = COALESCE(?, typical_session_duration_mins),
			primary_goal                  = COALESCE(?, primary_goal),
			notes = CASE WHEN ? IS NULL THEN notes ELSE NULLIF(?, '') END,
			updated_at = ?
		WHERE user_id = ?
	`, cf, cf, lift, lift, run, run,
		days, patch.SessionDurationMins, (*string)(patch.PrimaryGoal), patch.Notes, patch.Notes,
		s.stamp(), userID)
	if err != nil {
		return fmt.Errorf("updating athlete profile: %w", err)
	}
	return requireRow(res)
}

// ListBenchmarkLifts returns a user's lifts ordered by lift name.
func (s *Store) ListBenchmarkLifts(ctx context.Context, userID uuid.UUID) ([]models.BenchmarkLift, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, lift_name, weight_kg, recorded_at, notes, created_at
		FROM benchmark_lifts
		WHERE user_id = ?
		ORDER BY lift_name, recorded_at, created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying benchmark lifts: %w", err)
	}
	defer rows.Close()

	result := []models.BenchmarkLift{}
	for rows.Next() {
		var (
			l                       models.BenchmarkLift
			name, recorded, created string
		)
		if err := rows.Scan(&l.ID, &l.UserID, &name, &l.WeightKg, &recorded, &l.Notes, &created); err != nil {
			return nil, fmt.Errorf("scanning benchmark lift: %w", err)
		}
		l.LiftName = models.LiftName(name)
		l.RecordedAt = models.Date(recorded)
		l.CreatedAt = parseStamp(created)
		result = append(result, l)
	}
	return result, rows.Err()
}

// InsertBenchmarkLift stores a new lift.
func (s *Store) InsertBenchmarkLift(ctx context.Context, lift models.BenchmarkLift) (models.BenchmarkLift, error) {
	if lift.ID == uuid.Nil {
		lift.ID = uuid.New()
	}
	now := s.stamp()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO benchmark_lifts (id, user_id, lift_name, weight_kg, recorded_at, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, lift.ID, lift.UserID, string(lift.LiftName), lift.WeightKg, string(lift.RecordedAt), lift.Notes, now); err != nil {
		return models.BenchmarkLift{}, fmt.Errorf("inserting benchmark lift: %w", err)
	}
	lift.CreatedAt = parseStamp(now)
	return lift, nil
}

// DeleteBenchmarkLift removes a lift. A missing id is not an error.
func (s *Store) DeleteBenchmarkLift(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM benchmark_lifts WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("deleting benchmark lift: %w", err)
	}
	return nil
}

// CompleteOnboarding upserts the athlete profile and inserts the lifts in one
// transaction.
func (s *Store) CompleteOnboarding(ctx context.Context, ap models.AthleteProfile, lifts []models.BenchmarkLift) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.stamp()
		notes := ""
		if ap.Notes != nil {
			notes = *ap.Notes
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO athlete_profiles (id, user_id, crossfit_level, lifting_level, running_level,
				typical_training_days, typical_session_duration_mins, primary_goal, notes,
				created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?)
			ON CONFLICT (user_id) DO UPDATE SET
				crossfit_level                = excluded.crossfit_level,
				lifting_level                 = excluded.lifting_level,
				running_level                 = excluded.running_level,
				typical_training_days         = excluded.typical_training_days,
				typical_session_duration_mins = excluded.typical_session_duration_mins,
				primary_goal                  = excluded.primary_goal,
				notes                         = excluded.notes,
				updated_at                    = excluded.updated_at
		`, ap.ID, ap.UserID, (*string)(ap.CrossFitLevel), (*string)(ap.LiftingLevel),
			(*string)(ap.RunningLevel), encodeDays(ap.TrainingDays), ap.SessionDurationMins,
			(*string)(ap.PrimaryGoal), notes, now, now); err != nil {
			return fmt.Errorf("upserting athlete profile: %w", err)
		}
		for _, l := range lifts {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO benchmark_lifts (id, user_id, lift_name, weight_kg, recorded_at, notes, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO NOTHING
			`, l.ID, ap.UserID, string(l.LiftName), l.WeightKg, string(l.RecordedAt), l.Notes, now); err != nil {
				return fmt.Errorf("inserting benchmark lift: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("completing onboarding: %w", err)
	}
	return nil
}

// QuerySessions returns sessions scheduled between start and end inclusive.
func (s *Store) QuerySessions(ctx context.Context, userID uuid.UUID, start, end models.Date) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, block_id, title, description, session_type, priority, status,
		       scheduled_date, duration_mins
		FROM sessions
		WHERE user_id = ? AND scheduled_date BETWEEN ? AND ?
		ORDER BY scheduled_date, created_at
	`, userID, string(start), string(end))
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	result := []models.Session{}
	for rows.Next() {
		var (
			sess                                     models.Session
			blockID                                  *string
			sessionType, priority, status, scheduled string
		)
		if err := rows.Scan(&sess.ID, &sess.UserID, &blockID, &sess.Title, &sess.Description,
			&sessionType, &priority, &status, &scheduled, &sess.DurationMins); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		if blockID != nil {
			id, err := uuid.Parse(*blockID)
			if err != nil {
				return nil, fmt.Errorf("session block id: %w", err)
			}
			sess.BlockID = &id
		}
		sess.SessionType = models.SessionType(sessionType)
		sess.Priority = models.Priority(priority)
		sess.Status = models.SessionStatus(status)
		sess.ScheduledDate = models.Date(scheduled)
		result = append(result, sess)
	}
	return result, rows.Err()
}

// HasTrainingBlock reports whether the user has any training block.
func (s *Store) HasTrainingBlock(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM training_blocks WHERE user_id = ?)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking training blocks: %w", err)
	}
	return exists, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
