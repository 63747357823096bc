package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/hybridathlete/internal/config"
	"github.com/claude/hybridathlete/internal/jobclient"
	"github.com/claude/hybridathlete/internal/server"
	"github.com/claude/hybridathlete/internal/storage"
	"github.com/claude/hybridathlete/internal/storage/sqlitestore"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	log.Info("HybridAthlete starting", "version", Version, "driver", cfg.Database.Driver, "auth", cfg.Auth.Mode)

	ctx := context.Background()
	repo, err := openRepository(ctx, cfg.Database, *migrateOnly, log)
	if err != nil {
		log.Error("database setup failed", "error", err)
		os.Exit(1)
	}
	if repo == nil {
		log.Info("migrate-only: exiting")
		return
	}
	defer repo.Close()
	log.Info("database connected")

	job := jobclient.New(cfg.Generation.Endpoint, cfg.Generation.APIKey)

	srv := server.New(repo, job, server.Options{
		AuthMode:      cfg.Auth.Mode,
		JWTSecret:     cfg.Auth.JWTSecret,
		JWTIssuer:     cfg.Auth.JWTIssuer,
		APIKey:        cfg.Auth.APIKey,
		FallbackDelay: cfg.Generation.FallbackDelay,
		SessionIdle:   cfg.Server.SessionIdleTimeout,
		Version:       Version,
	}, log)

	// Start server: tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr)
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}

// openRepository connects the configured backend. With migrateOnly it applies
// the schema and returns a nil repository.
func openRepository(ctx context.Context, cfg config.DatabaseConfig, migrateOnly bool, log *slog.Logger) (storage.Repository, error) {
	if cfg.Driver == config.DriverSQLite {
		store, err := sqlitestore.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		log.Info("sqlite schema ready", "path", cfg.Path)
		if migrateOnly {
			store.Close()
			return nil, nil
		}
		return store, nil
	}

	dsn := cfg.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("migrations applied")
	if migrateOnly {
		return nil, nil
	}

	db, err := storage.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting database: %w", err)
	}
	return db, nil
}
