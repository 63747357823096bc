package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/claude/hybridathlete/internal/calendar"
	"github.com/claude/hybridathlete/internal/models"
	"github.com/claude/hybridathlete/internal/storage"
	"github.com/mark3labs/mcp-go/mcp"
)

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolGetProfile = mcp.NewTool("get_profile",
	mcp.WithDescription("Get the athlete's profile: name and timezone, CrossFit/lifting/running levels, typical training days and session length, primary goal and notes. Includes readable labels for each value."),
)

var toolListBenchmarkLifts = mcp.NewTool("list_benchmark_lifts",
	mcp.WithDescription("List recorded benchmark lifts (weight in kg and date), ordered by lift name then date."),
	mcp.WithString("lift", mcp.Description("Only return this lift (e.g. back_squat, snatch)"),
		mcp.Enum("clean_and_jerk", "snatch", "back_squat", "deadlift", "clean", "jerk", "front_squat", "overhead_squat")),
)

var toolGetWeekSessions = mcp.NewTool("get_week_sessions",
	mcp.WithDescription("Get planned training sessions for one Monday-to-Sunday week, grouped by day."),
	mcp.WithString("date", mcp.Description("Any date in the week (ISO 8601 or YYYY-MM-DD). Defaults to today.")),
)

// --- Tool handlers ---

// profileView is the get_profile payload.
type profileView struct {
	Profile   *models.Profile        `json:"profile"`
	Athlete   *models.AthleteProfile `json:"athlete_profile"`
	Onboarded bool                   `json:"onboarded"`
	Labels    map[string]string      `json:"labels,omitempty"`
}

func athleteLabels(ap *models.AthleteProfile) map[string]string {
	labels := map[string]string{
		"typical_training_days": ap.TrainingDays.Summary(),
	}
	if ap.CrossFitLevel != nil {
		labels["crossfit_level"] = models.Humanize(string(*ap.CrossFitLevel))
	}
	if ap.LiftingLevel != nil {
		labels["lifting_level"] = models.Humanize(string(*ap.LiftingLevel))
	}
	if ap.RunningLevel != nil {
		labels["running_level"] = models.Humanize(string(*ap.RunningLevel))
	}
	if ap.PrimaryGoal != nil {
		labels["primary_goal"] = models.Humanize(string(*ap.PrimaryGoal))
	}
	return labels
}

func (h *handlers) getProfile(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, ok := UserIDFromContext(ctx)
	if !ok {
		return mcp.NewToolResultError("no authenticated user"), nil
	}

	p, err := h.ds.GetProfile(ctx, uid)
	if err != nil {
		h.log.Error("mcp get_profile", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	view := profileView{Profile: p}

	ap, err := h.ds.GetAthleteProfile(ctx, uid)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		h.log.Error("mcp get_profile athlete", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	default:
		view.Athlete = ap
		view.Onboarded = true
		view.Labels = athleteLabels(ap)
	}

	result, err := mcp.NewToolResultJSON(view)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listBenchmarkLifts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, ok := UserIDFromContext(ctx)
	if !ok {
		return mcp.NewToolResultError("no authenticated user"), nil
	}

	var only models.LiftName
	if raw := req.GetString("lift", ""); raw != "" {
		name, err := models.ParseLiftName(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		only = name
	}

	lifts, err := h.ds.ListBenchmarkLifts(ctx, uid)
	if err != nil {
		h.log.Error("mcp list_benchmark_lifts", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	out := make([]models.BenchmarkLift, 0, len(lifts))
	for _, l := range lifts {
		if only == "" || l.LiftName == only {
			out = append(out, l)
		}
	}

	result, err := mcp.NewToolResultJSON(out)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWeekSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, ok := UserIDFromContext(ctx)
	if !ok {
		return mcp.NewToolResultError("no authenticated user"), nil
	}

	anchor := time.Now()
	if raw := req.GetString("date", ""); raw != "" {
		t, err := parseFlexTime(raw)
		if err != nil {
			return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
		}
		anchor = t
	}

	monday, sunday := calendar.WeekRange(anchor)
	sessions, err := h.ds.QuerySessions(ctx, uid, monday, sunday)
	if err != nil {
		h.log.Error("mcp get_week_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(calendar.BucketWeek(anchor, sessions))
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
