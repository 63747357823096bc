package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/claude/hybridathlete/internal/models"
	"github.com/claude/hybridathlete/internal/storage"
	"github.com/mark3labs/mcp-go/mcp"
)

func (h *handlers) athleteSummary(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uid, ok := UserIDFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("no authenticated user")
	}

	summary := map[string]any{"onboarded": false}

	ap, err := h.ds.GetAthleteProfile(ctx, uid)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		summary["onboarded"] = true
		summary["labels"] = athleteLabels(ap)
		summary["typical_session_duration_mins"] = ap.SessionDurationMins
	}

	lifts, err := h.ds.ListBenchmarkLifts(ctx, uid)
	if err != nil {
		h.log.Warn("athlete_summary: benchmark query failed", "error", err)
	}
	summary["best_lifts"] = bestLifts(lifts)

	hasBlock, err := h.ds.HasTrainingBlock(ctx, uid)
	if err != nil {
		h.log.Warn("athlete_summary: training block check failed", "error", err)
	}
	summary["has_training_block"] = hasBlock

	data, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// bestLifts returns the heaviest recorded weight per lift, keyed by lift name.
func bestLifts(lifts []models.BenchmarkLift) map[models.LiftName]float64 {
	best := make(map[models.LiftName]float64)
	for _, l := range lifts {
		if cur, ok := best[l.LiftName]; !ok || l.WeightKg > cur {
			best[l.LiftName] = l.WeightKg
		}
	}
	return best
}
