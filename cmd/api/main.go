// Package main is the entry point for the BalanceGuard API server.
//
// It loads configuration, connects the database pool and the rate limit
// store, wires the auth and billing services into the HTTP chassis, and
// serves until SIGINT or SIGTERM triggers a graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"balanceguard/internal/api/handlers"
	"balanceguard/internal/auth"
	"balanceguard/internal/billing"
	"balanceguard/internal/config"
	"balanceguard/internal/core"
	"balanceguard/internal/db"
	"balanceguard/internal/external"
	"balanceguard/internal/ratelimit"
	"balanceguard/internal/types"
)

const janitorInterval = time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("balanceguard API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := types.RealClock{}

	pool, err := newDBPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database pool: %w", err)
	}

	store, redisClient, err := newRateLimitStore(cfg, clock)
	if err != nil {
		pool.Close()
		return fmt.Errorf("connecting rate limit store: %w", err)
	}
	limiter := ratelimit.NewLimiter(store, logger)

	sessionRepo := db.NewSessionRepo(pool)
	accountRepo := db.NewAccountRepo(pool)
	billingRepo := db.NewBillingRepo(pool)

	sessions := auth.NewSessionService(sessionRepo, auth.CryptoTokenGenerator{},
		auth.SessionConfig{TTL: cfg.Session.TTL}, clock, logger)
	logins := auth.NewLoginService(accountRepo, sessions, nil, clock, logger)

	alertClient := external.NewBaseClient(
		&http.Client{Timeout: cfg.Alert.Timeout},
		"ops-alerts",
		external.DefaultRetryPolicy(),
		"balanceguard/"+cfg.Build.Version,
	)
	alerter := external.NewAlertNotifier(alertClient, cfg.Alert.WebhookURL, cfg.Alert.Timeout, logger)
	pipeline := billing.NewPipeline(billingRepo, alerter, clock, logger)

	srv := core.NewServer(cfg, logger, sessions, limiter)
	srv.AddCloser(closerFunc(func() error {
		pool.Close()
		return nil
	}))
	if redisClient != nil {
		srv.AddCloser(redisClient)
	}

	authHandler := handlers.NewAuthHandler(logins, sessions, srv.Validate, cfg.IsProduction(), logger)
	healthHandler := handlers.NewHealthHandler(cfg.Build, pool)
	webhookHandler := handlers.NewStripeWebhookHandler(pipeline,
		cfg.Billing.StripeWebhookSecret.Unmask(), cfg.Billing.SignatureTolerance,
		cfg.Billing.MaxBodyBytes, clock, logger)

	srv.MountRoutes(
		[]core.RouteRegistrar{healthHandler.RegisterRoutes},
		[]core.RouteRegistrar{healthHandler.RegisterRoutes, authHandler.RegisterRoutes},
		[]core.RouteRegistrar{healthHandler.RegisterRoutes, authHandler.RegisterRoutes},
		[]func(chi.Router){webhookHandler.RegisterRoutes},
	)

	return serve(ctx, srv, cfg, store, logger)
}

// serve runs the HTTP listener, and when the memory store backs the rate
// limiter, its janitor. The group winds down when the signal context fires
// or the listener fails.
func serve(ctx context.Context, srv *core.Server, cfg *config.Config, store ratelimit.Store, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if mem, ok := store.(*ratelimit.MemoryStore); ok {
		g.Go(func() error {
			err := mem.Janitor(gctx, janitorInterval)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server resource shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}

func newDBPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	poolCfg.ConnConfig.ConnectTimeout = cfg.AcquireTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// newRateLimitStore picks Redis when a URL is configured, otherwise the
// in-process store. Production without Redis is rejected at config load.
func newRateLimitStore(cfg *config.Config, clock types.Clock) (ratelimit.Store, *redis.Client, error) {
	redisURL := cfg.RateLimit.RedisURL.Unmask()
	if redisURL == "" {
		return ratelimit.NewMemoryStore(clock), nil, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	return ratelimit.NewRedisStore(client, clock), client, nil
}

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

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
