package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/claude/hybridathlete/internal/dashboard"
	"github.com/claude/hybridathlete/internal/generation"
	hamcp "github.com/claude/hybridathlete/internal/mcp"
	"github.com/claude/hybridathlete/internal/observability"
	"github.com/claude/hybridathlete/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"tailscale.com/client/local"
)

// Identity modes accepted in Options.AuthMode.
const (
	AuthDev       = "dev"
	AuthTailscale = "tailscale"
	AuthJWT       = "jwt"
)

// Options configures the Server.
type Options struct {
	AuthMode  string
	JWTSecret string
	JWTIssuer string
	// APIKey guards /metrics when non-empty.
	APIKey        string
	FallbackDelay time.Duration
	// SessionIdle is how long an untouched session is kept. Zero keeps
	// sessions forever.
	SessionIdle time.Duration
	Version     string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	repo   storage.Repository
	job    generation.Job
	dash   *dashboard.Service
	log    *slog.Logger
	opts   Options
	router chi.Router

	tsMu      sync.RWMutex
	tailscale whoIser

	now func() time.Time

	mu        sync.Mutex
	users     map[string]uuid.UUID
	sessions  map[uuid.UUID]*session
	lastSweep time.Time
}

// New creates a new Server with all routes configured.
func New(repo storage.Repository, job generation.Job, opts Options, log *slog.Logger) *Server {
	if opts.AuthMode == "" {
		opts.AuthMode = AuthDev
	}
	s := &Server{
		repo:     repo,
		job:      job,
		dash:     dashboard.New(repo, log),
		log:      log,
		opts:     opts,
		router:   chi.NewRouter(),
		now:      time.Now,
		users:    make(map[string]uuid.UUID),
		sessions: make(map[uuid.UUID]*session),
	}
	s.routes()
	return s
}

// SetTailscale attaches the tsnet local client used by the tailscale identity mode.
func (s *Server) SetTailscale(lc *local.Client) {
	s.setWhoIser(lc)
}

func (s *Server) setWhoIser(wi whoIser) {
	s.tsMu.Lock()
	defer s.tsMu.Unlock()
	s.tailscale = wi
}

func (s *Server) whoIs() whoIser {
	s.tsMu.RLock()
	defer s.tsMu.RUnlock()
	return s.tailscale
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) identity() func(http.Handler) http.Handler {
	switch s.opts.AuthMode {
	case AuthTailscale:
		return TailscaleIdentity(s.whoIs, s.log)
	case AuthJWT:
		return JWTIdentity(s.opts.JWTSecret, s.opts.JWTIssuer)
	default:
		return DevIdentity
	}
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	// Prometheus metrics (API key required when configured)
	s.router.Group(func(r chi.Router) {
		if s.opts.APIKey != "" {
			r.Use(APIKeyAuth(s.opts.APIKey))
		}
		r.Handle("/metrics", observability.Handler())
	})

	// Everything else is per user
	s.router.Group(func(r chi.Router) {
		r.Use(s.identity())
		r.Use(s.resolveUser)

		r.Get("/api/v1/me", s.handleMe)

		r.Get("/api/v1/profile", s.handleGetProfile)
		r.Post("/api/v1/profile/edit/commit", s.handleCommitEdit)
		r.Post("/api/v1/profile/edit/{section}", s.handleStartEdit)
		r.Patch("/api/v1/profile/edit", s.handleMutateDraft)
		r.Delete("/api/v1/profile/edit", s.handleCancelEdit)

		r.Post("/api/v1/benchmarks", s.handleAddBenchmark)
		r.Delete("/api/v1/benchmarks/{id}", s.handleDeleteBenchmark)

		r.Get("/api/v1/onboarding", s.handleGetOnboarding)
		r.Patch("/api/v1/onboarding", s.handleSetOnboarding)
		r.Post("/api/v1/onboarding/{action}", s.handleOnboardingAction)

		r.Get("/api/v1/dashboard", s.handleDashboard)
		r.Get("/api/v1/generation", s.handleGenerationStatus)
		r.Post("/api/v1/generation", s.handleStartGeneration)

		r.Handle("/mcp", s.mcpHandler())
	})
}

// mcpHandler serves the read-only MCP tools over streamable HTTP, scoped to
// the request's user.
func (s *Server) mcpHandler() http.Handler {
	srv := hamcp.New(s.repo, s.opts.Version, s.log)
	return mcpserver.NewStreamableHTTPServer(srv,
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if uid, ok := userIDFromContext(r); ok {
				return hamcp.WithUserID(ctx, uid)
			}
			return ctx
		}),
	)
}
