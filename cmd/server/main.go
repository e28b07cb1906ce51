package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/questline/internal/crypto"
	"github.com/iudanet/questline/internal/scheduler"
	"github.com/iudanet/questline/internal/server/config"
	"github.com/iudanet/questline/internal/server/credentials"
	"github.com/iudanet/questline/internal/server/handlers"
	"github.com/iudanet/questline/internal/server/metrics"
	"github.com/iudanet/questline/internal/server/middleware"
	"github.com/iudanet/questline/internal/server/roles"
	"github.com/iudanet/questline/internal/server/router"
	"github.com/iudanet/questline/internal/server/session"
	"github.com/iudanet/questline/internal/server/storage/sqlstore"
	"github.com/iudanet/questline/internal/server/tracker"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Parse flags
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "", "Path to YAML config file (optional, env QUESTLINE_* overrides it)")
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.InfoContext(ctx, "Questline server starting",
		slog.String("version", Version),
		slog.String("env", cfg.Env),
		slog.String("address", cfg.Server.Address),
		slog.String("db_driver", cfg.Database.Driver),
	)

	store, err := sqlstore.New(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage", slog.Any("error", err))
		}
	}()

	// Таймеры живут до остановки процесса и получают собственный контекст
	sched := scheduler.NewMemory(context.Background(), logger)
	defer sched.Stop()

	m := metrics.New()
	hasher := crypto.NewHasher(cfg.Auth.HashCost)

	users := credentials.New(logger, store, hasher, credentials.WithOwnerLogin(cfg.Auth.OwnerLogin))
	sessions := session.NewManager(logger, store, hasher, sched, session.Config{
		AccessSecret:  []byte(cfg.Auth.AccessSecret),
		RefreshSecret: []byte(cfg.Auth.RefreshSecret),
		AccessTTL:     cfg.Auth.AccessTTL(),
		RefreshTTL:    cfg.Auth.RefreshTTL(),
		SecureCookies: cfg.Auth.SecureCookies,
	}, session.WithRecorder(m))
	roleSvc := roles.New(logger, store)
	trackerSvc := tracker.New(logger, store, sched, tracker.WithRecorder(m))

	// Восстанавливаем таймеры, потерянные при рестарте
	if err := sessions.Rearm(ctx); err != nil {
		return fmt.Errorf("failed to rearm session timers: %w", err)
	}
	if err := trackerSvc.Rearm(ctx); err != nil {
		return fmt.Errorf("failed to rearm task timers: %w", err)
	}

	authLimiter := middleware.NewRateLimiter(cfg.RateLimit.AuthPerMinute, logger)
	defer authLimiter.Stop()
	defaultLimiter := middleware.NewRateLimiter(cfg.RateLimit.DefaultPerMinute, logger)
	defer defaultLimiter.Stop()

	handler := router.New(router.Config{
		Logger:         logger,
		Metrics:        m,
		Auth:           sessions,
		Users:          users,
		Roles:          roleSvc,
		AuthLimiter:    authLimiter,
		DefaultLimiter: defaultLimiter,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Handlers: router.Handlers{
			Auth:   handlers.NewAuthHandler(logger, users, sessions),
			User:   handlers.NewUserHandler(logger, users, roleSvc, sessions),
			Task:   handlers.NewTaskHandler(logger, trackerSvc),
			Quest:  handlers.NewQuestHandler(logger, trackerSvc),
			Role:   handlers.NewRoleHandler(logger, roleSvc),
			Health: handlers.NewHealthHandler(logger, store, Version),
		},
	})

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down gracefully...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown http server: %w", err)
	}

	logger.Info("Server stopped gracefully")
	return nil
}

func newLogger(params config.LogParams) *slog.Logger {
	opts := &slog.HandlerOptions{Level: params.SlogLevel()}
	if params.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func printVersion() {
	fmt.Printf("Questline Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
