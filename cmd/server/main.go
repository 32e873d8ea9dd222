package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mintgate/whitelist/internal"
	"github.com/mintgate/whitelist/internal/handler"
	"github.com/mintgate/whitelist/internal/middleware"
	"github.com/mintgate/whitelist/internal/postgres"
	"github.com/mintgate/whitelist/internal/router"
	"github.com/mintgate/whitelist/internal/service"
	"github.com/mintgate/whitelist/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Migrations run over database/sql on the pgx stdlib driver; the pool the
	// server uses is opened afterwards against the migrated schema.
	if err := migrate(ctx, cfg.DatabaseUrl, logger); err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	logger.Info("database connected")

	store := postgres.NewRegistrationStore(pool)
	svc := service.NewWhitelistService(store)

	businessMetrics := telemetry.NewBusinessMetrics(prometheus.DefaultRegisterer)
	httpMetrics := middleware.NewMetrics("whitelist")

	whitelistHandler := handler.NewWhitelistHandler(svc, businessMetrics, logger)
	healthHandler := handler.NewHealthHandler(store, logger)

	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		middleware.WithClientIP(),
		httpMetrics.Middleware,
		middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig()),
		middleware.MaxBodySize(),
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
	)

	r.Post("/api/whitelist/register", whitelistHandler.Register)
	r.Get("/api/whitelist/check/{address}", whitelistHandler.Check)
	r.Get("/api/whitelist/list", whitelistHandler.List)
	r.Get("/api/whitelist/stats", whitelistHandler.Stats)
	r.Delete("/api/whitelist/{address}", whitelistHandler.Remove)
	r.Get("/health", healthHandler.Health)
	r.Handle(http.MethodGet, "/metrics", httpMetrics.Handler())
	r.NotFound(handler.NotFoundHandler)

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		// CORS wraps the router itself so preflights are answered before
		// ServeMux method matching can 405 them.
		Handler:           router.CORS(cfg.AllowedOrigins)(r),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")

	// Stop accepting connections and drain in-flight requests before the
	// deferred pool.Close() runs.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func migrate(ctx context.Context, databaseURL string, logger *slog.Logger) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database for migrations: %w", err)
	}

	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	logger.Info("migrations applied")
	return nil
}
