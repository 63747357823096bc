package mcp

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the user ID injected by the transport layer.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("HybridAthlete", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Hybrid athlete profile server. Read the athlete's profile, skill levels, training availability, benchmark lifts and this week's planned sessions. All data is scoped to the authenticated user and read-only."),
	)

	h := &handlers{ds: ds, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetProfile, Handler: h.getProfile},
		server.ServerTool{Tool: toolListBenchmarkLifts, Handler: h.listBenchmarkLifts},
		server.ServerTool{Tool: toolGetWeekSessions, Handler: h.getWeekSessions},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resAthleteSummary, Handler: h.athleteSummary},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

// --- Resource definitions ---

var resAthleteSummary = mcp.NewResource(
	"hybridathlete://athlete_summary",
	"Athlete Summary",
	mcp.WithResourceDescription("The athlete's levels, schedule and goal in readable form, their best lift per movement, and whether a training block exists"),
	mcp.WithMIMEType("application/json"),
)
