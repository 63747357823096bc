package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/hybridathlete/internal/config"
	"github.com/claude/hybridathlete/internal/generation"
	"github.com/claude/hybridathlete/internal/jobclient"
	"github.com/claude/hybridathlete/internal/storage"
	"github.com/claude/hybridathlete/internal/storage/sqlitestore"
)

// logNavigator reports where a browser session would have been sent.
type logNavigator struct {
	log *slog.Logger
}

func (n logNavigator) GoTo(route string)  { n.log.Info("would navigate", "route", route) }
func (n logNavigator) RefreshCachedData() {}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	login := flag.String("user", "", "login of the user to generate a block for (required)")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *login == "" {
		fmt.Fprintf(os.Stderr, "Usage: hybridathlete-generate -config config.yaml -user alice@example.com\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	repo, err := open(ctx, cfg.Database)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	userID, err := repo.GetOrCreateUser(ctx, *login, "")
	if err != nil {
		log.Error("failed to resolve user", "login", *login, "error", err)
		os.Exit(1)
	}

	job := jobclient.New(cfg.Generation.Endpoint, cfg.Generation.APIKey)
	orch := generation.New(job, logNavigator{log: log}, generation.StandaloneFallbackMessage, cfg.Generation.FallbackDelay, log)

	log.Info("generating training block", "login", *login, "user_id", userID)
	status := orch.Trigger(ctx, userID)
	if status.State != generation.StateSucceeded {
		log.Error("generation failed", "state", status.State, "message", status.Message)
		os.Exit(1)
	}
	log.Info("generation complete")
}

// open connects to an already migrated database.
func open(ctx context.Context, cfg config.DatabaseConfig) (storage.Repository, error) {
	if cfg.Driver == config.DriverSQLite {
		return sqlitestore.Open(cfg.Path)
	}
	return storage.New(ctx, cfg.DSN())
}
