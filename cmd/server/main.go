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

	"github.com/fleetkeeper/fleetkeeper/internal/server/handlers"
	"github.com/fleetkeeper/fleetkeeper/internal/server/middleware"
	"github.com/fleetkeeper/fleetkeeper/internal/server/storage/sqlite"
	syncsvc "github.com/fleetkeeper/fleetkeeper/internal/sync"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	addr := flag.String("addr", envOrDefault("FLEETKEEPER_ADDR", ":8080"), "HTTP listen address")
	dbPath := flag.String("db", envOrDefault("FLEETKEEPER_DB", "fleetkeeper.db"), "Path to SQLite database")
	tokenTTL := flag.Duration("token-ttl", 12*time.Hour, "Access token lifetime")
	logLevel := flag.String("log-level", envOrDefault("FLEETKEEPER_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	logger := newLogger(*logLevel)

	if err := run(logger, *addr, *dbPath, *tokenTTL); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, addr, dbPath string, tokenTTL time.Duration) error {
	// JWT секрет приходит только из окружения, не из флагов
	jwtSecret := os.Getenv("FLEETKEEPER_JWT_SECRET")
	if jwtSecret == "" {
		return fmt.Errorf("FLEETKEEPER_JWT_SECRET environment variable is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close storage", "error", err)
		}
	}()

	jwtConfig := handlers.JWTConfig{
		Secret:         []byte(jwtSecret),
		AccessTokenTTL: tokenTTL,
	}

	service := syncsvc.NewService(store, logger)

	authHandler := handlers.NewAuthHandler(logger, store, jwtConfig)
	syncHandler := handlers.NewSyncHandler(logger, service)
	healthHandler := handlers.NewHealthHandler(logger, store, Version)

	requireAuth := middleware.AuthMiddleware(logger, jwtConfig)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.Handle("POST /api/v1/records/write", requireAuth(http.HandlerFunc(syncHandler.HandleWrite)))
	mux.Handle("GET /api/v1/conflicts", requireAuth(http.HandlerFunc(syncHandler.HandleListConflicts)))
	mux.Handle("POST /api/v1/conflicts/resolve", requireAuth(http.HandlerFunc(syncHandler.HandleResolve)))
	mux.HandleFunc("GET /api/v1/health", healthHandler.Health)

	// Цепочка: recovery снаружи, затем логирование, затем rate limit
	var handler http.Handler = mux
	handler = middleware.RateLimitMiddleware(600, time.Minute, logger)(handler)
	handler = middleware.LoggingWithSkip(logger, []string{"/api/v1/health"})(handler)
	handler = middleware.RecoveryMiddleware(logger)(handler)

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"addr", addr,
			"db", dbPath,
			"version", Version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// newLogger создает slog логгер с заданным уровнем
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// envOrDefault возвращает значение переменной окружения или дефолт
func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func printVersion() {
	fmt.Printf("FleetKeeper Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
