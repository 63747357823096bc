package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/claude/hybridathlete/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// athleteRow mirrors the athlete_profiles columns in driver-friendly types.
type athleteRow struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	CrossFitLevel *string
	LiftingLevel  *string
	RunningLevel  *string
	TrainingDays  []int32
	DurationMins  int32
	PrimaryGoal   *string
	Notes         *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r athleteRow) toModel() *models.AthleteProfile {
	days := make([]int, len(r.TrainingDays))
	for i, d := range r.TrainingDays {
		days[i] = int(d)
	}
	return &models.AthleteProfile{
		ID:                  r.ID,
		UserID:              r.UserID,
		CrossFitLevel:       (*models.CrossFitLevel)(r.CrossFitLevel),
		LiftingLevel:        (*models.LiftingLevel)(r.LiftingLevel),
		RunningLevel:        (*models.RunningLevel)(r.RunningLevel),
		TrainingDays:        models.NewDaySet(days...),
		SessionDurationMins: int(r.DurationMins),
		PrimaryGoal:         (*models.Goal)(r.PrimaryGoal),
		Notes:               r.Notes,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func daysParam(s models.DaySet) []int32 {
	out := make([]int32, 0, len(s))
	for _, d := range models.NewDaySet(s...) {
		out = append(out, int32(d))
	}
	return out
}

// GetAthleteProfile returns the athlete profile of a user, or ErrNotFound when
// the user has not been onboarded.
func (db *DB) GetAthleteProfile(ctx context.Context, userID uuid.UUID) (*models.AthleteProfile, error) {
	var r athleteRow
	err := db.Pool.QueryRow(ctx, `
		SELECT id, user_id, crossfit_level, lifting_level, running_level,
		       typical_training_days, typical_session_duration_mins, primary_goal, notes,
		       created_at, updated_at
		FROM athlete_profiles WHERE user_id = $1
	`, userID).Scan(&r.ID, &r.UserID, &r.CrossFitLevel, &r.LiftingLevel, &r.RunningLevel,
		&r.TrainingDays, &r.DurationMins, &r.PrimaryGoal, &r.Notes, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying athlete profile: %w", err)
	}
	return r.toModel(), nil
}

// UpdateAthleteProfile applies a partial update keyed by user. An empty
// level or Notes value clears the column.
func (db *DB) UpdateAthleteProfile(ctx context.Context, userID uuid.UUID, patch models.AthletePatch) error {
	var days []int32
	if patch.TrainingDays != nil {
		days = daysParam(*patch.TrainingDays)
	}
	tag, err := db.Pool.Exec(ctx, `
		UPDATE athlete_profiles SET
			crossfit_level = CASE WHEN $2::text IS NULL THEN crossfit_level ELSE NULLIF($2::text, '') END,
			lifting_level  = CASE WHEN $3::text IS NULL THEN lifting_level ELSE NULLIF($3::text, '') END,
			running_level  = CASE WHEN $4::text IS NULL THEN running_level ELSE NULLIF($4::text, '') END,
			typical_training_days         = COALESCE($5, typical_training_days),
			typical_session_duration_mins = COALESCE($6, typical_session_duration_mins),
			primary_goal                  = COALESCE($7, primary_goal),
			notes = CASE WHEN $8::text IS NULL THEN notes ELSE NULLIF($8::text, '') END,
			updated_at = NOW()
		WHERE user_id = $1
	`, userID,
		(*string)(patch.CrossFitLevel), (*string)(patch.LiftingLevel), (*string)(patch.RunningLevel),
		days, patch.SessionDurationMins, (*string)(patch.PrimaryGoal), patch.Notes)
	if err != nil {
		return fmt.Errorf("updating athlete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const upsertAthleteSQL = `
	INSERT INTO athlete_profiles (id, user_id, crossfit_level, lifting_level, running_level,
		typical_training_days, typical_session_duration_mins, primary_goal, notes)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))
	ON CONFLICT (user_id) DO UPDATE SET
		crossfit_level                = EXCLUDED.crossfit_level,
		lifting_level                 = EXCLUDED.lifting_level,
		running_level                 = EXCLUDED.running_level,
		typical_training_days         = EXCLUDED.typical_training_days,
		typical_session_duration_mins = EXCLUDED.typical_session_duration_mins,
		primary_goal                  = EXCLUDED.primary_goal,
		notes                         = EXCLUDED.notes,
		updated_at                    = NOW()
`

func upsertAthleteArgs(ap models.AthleteProfile) []any {
	notes := ""
	if ap.Notes != nil {
		notes = *ap.Notes
	}
	return []any{ap.ID, ap.UserID,
		(*string)(ap.CrossFitLevel), (*string)(ap.LiftingLevel), (*string)(ap.RunningLevel),
		daysParam(ap.TrainingDays), ap.SessionDurationMins, (*string)(ap.PrimaryGoal), notes}
}
