// Egen Lista | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/egenlista/api/internal/admin"
	"github.com/egenlista/api/internal/analytics"
	"github.com/egenlista/api/internal/auth"
	"github.com/egenlista/api/internal/cleanup"
	"github.com/egenlista/api/internal/config"
	"github.com/egenlista/api/internal/contact"
	"github.com/egenlista/api/internal/core"
	"github.com/egenlista/api/internal/health"
	"github.com/egenlista/api/internal/mail"
	"github.com/egenlista/api/internal/middleware"
	"github.com/egenlista/api/internal/server"
	"github.com/egenlista/api/internal/subscription"
	"github.com/egenlista/api/internal/user"
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
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
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
		if err := db.Migrate(); err != nil {
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

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	mailer := mail.New(cfg.Mail, cfg.App.BaseURL)

	var google *auth.GoogleAuthenticator
	if cfg.OAuth.Google.ClientID != "" {
		google, err = auth.NewGoogleAuthenticator(ctx, cfg.OAuth.Google)
		if err != nil {
			return err
		}
		logger.Info("google sign-in enabled")
	}

	userRepo := user.NewRepository(db.DB)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc)

	subRepo := subscription.NewRepository(db.DB)
	subSvc := subscription.NewService(subRepo)
	subHandler := subscription.NewHandler(subSvc)

	authRepo := auth.NewRepository(db.DB)
	authSvc := auth.NewService(db.DB, authRepo, jwtManager, userSvc, subSvc, mailer)
	authHandler := auth.NewHandler(authSvc, google, cfg.Cleanup.Secret)

	contactRepo := contact.NewRepository(db.DB)
	contactSvc := contact.NewService(
		db.DB,
		contactRepo,
		subSvc,
		mailer,
		cfg.App.BaseURL,
	)
	contactHandler := contact.NewHandler(contactSvc)

	analyticsHandler := analytics.NewHandler(contactRepo)

	healthHandler := health.NewHandler(db, redis)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DB:         db.DB,
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.App.Environment == "production"))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(jwtManager)
	adminOnly := middleware.RequireAdmin

	// Contact and analytics traffic is throttled per subscription plan,
	// which requires the authenticated claims to already be in context.
	planLimiter := middleware.PlanRateLimiter(
		redis.Client,
		middleware.DefaultPlanLimits,
	)
	planLimited := func(next http.Handler) http.Handler {
		return authenticator(planLimiter(next))
	}

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)
		authHandler.RegisterInternalRoutes(r)

		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		subHandler.RegisterRoutes(r, authenticator)
		subHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		contactHandler.RegisterRoutes(r, planLimited)
		analyticsHandler.RegisterRoutes(r, planLimited)
		contactHandler.RegisterPublicRoutes(r)

		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	var sweeper *cleanup.Scheduler
	if cfg.Cleanup.Schedule != "" {
		sweeper, err = cleanup.NewScheduler(cfg.Cleanup.Schedule, authSvc, logger)
		if err != nil {
			return err
		}
		sweeper.Start()
		logger.Info("cleanup scheduler started",
			"schedule", cfg.Cleanup.Schedule,
		)
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

	if sweeper != nil {
		sweeper.Stop()
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
