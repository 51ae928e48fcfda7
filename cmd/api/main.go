// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/cms-backend/internal/account"
	"github.com/carterperez-dev/cms-backend/internal/admin"
	"github.com/carterperez-dev/cms-backend/internal/auth"
	"github.com/carterperez-dev/cms-backend/internal/config"
	"github.com/carterperez-dev/cms-backend/internal/core"
	"github.com/carterperez-dev/cms-backend/internal/health"
	"github.com/carterperez-dev/cms-backend/internal/mail"
	"github.com/carterperez-dev/cms-backend/internal/middleware"
	"github.com/carterperez-dev/cms-backend/internal/server"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	var metrics *core.Metrics
	if cfg.Metrics.Enabled {
		metrics = core.NewMetrics()
	}

	hasher, err := core.NewPasswordHasher()
	if err != nil {
		return err
	}

	codec, err := auth.NewAccessTokenCodec(cfg.JWT.Secret)
	if err != nil {
		return err
	}

	var tokenStore auth.Repository
	switch cfg.Auth.TokenStore {
	case config.TokenStoreRedis:
		tokenStore = auth.NewRedisRepository(redis.Client, redis.Key("rt"))
	case config.TokenStorePostgres:
		tokenStore = auth.NewPostgresRepository(db.DB)
	default:
		return fmt.Errorf("token store %q: %w", cfg.Auth.TokenStore, core.ErrConfiguration)
	}
	logger.Info("refresh token store selected", "store", cfg.Auth.TokenStore)

	accountRepo := account.NewRepository(db.DB)
	accountSvc := account.NewService(accountRepo, hasher)
	accountHandler := account.NewHandler(accountSvc)

	notifier := mail.NewNotifier(mail.NewLogSender(logger), cfg.Mail)

	lifecycle := auth.NewLifecycle(tokenStore, accountSvc, cfg.JWT.RefreshTokenTTLDays)
	authSvc := auth.NewService(
		accountSvc,
		lifecycle,
		codec,
		hasher,
		notifier,
		auth.Config{
			AccessTokenTTL:       cfg.JWT.AccessTokenExpire,
			RefreshRetention:     cfg.JWT.RefreshTokenRetention(),
			ResetTokenTTL:        cfg.Auth.ResetTokenExpire,
			RequireVerifiedEmail: cfg.Auth.RequireVerifiedEmail,
		},
		auth.WithMetrics(metrics),
		auth.WithLogger(logger),
	)
	authHandler := auth.NewHandler(authSvc)

	healthHandler := health.NewHandler(
		health.Dependency{Name: "database", Checker: db},
		health.Dependency{Name: "redis", Checker: redis},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
		Accounts:   accountSvc,
	})

	proxyTrust, err := middleware.NewProxyTrust(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP(proxyTrust))
	router.Use(middleware.Logger(logger))
	if metrics != nil {
		router.Use(middleware.Metrics(metrics))
	}
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerWindow(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
				cfg.RateLimit.Window,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))
	router.Use(middleware.Identify(codec))

	authLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Limit: middleware.PerWindow(
			cfg.RateLimit.AuthRequests,
			cfg.RateLimit.AuthBurst,
			cfg.RateLimit.Window,
		),
		KeyFunc: middleware.KeyByIPAndEndpoint,
	}).Handler

	healthHandler.RegisterRoutes(router)

	if metrics != nil {
		router.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	router.Route("/v1", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			authHandler.RegisterRoutes(r, authLimiter)
			accountHandler.RegisterRoutes(r)
		})
		adminHandler.RegisterRoutes(r)
	})

	if telemetry != nil {
		srv.Handler(middleware.Tracing(core.ServiceName(cfg))(router))
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
