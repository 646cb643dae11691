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

	"attendly/api/routes"
	"attendly/internal/notifications"
	"attendly/internal/shared/config"
	"attendly/internal/shared/database"
	"attendly/internal/shared/middleware"
	"attendly/pkg/logger"
	"attendly/pkg/metrics"
	"attendly/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	bootLogger := logger.GetDefault()

	// Smart environment loading
	if err := godotenv.Load(); err != nil {
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			bootLogger.Info("Production environment: using container environment variables")
		} else {
			bootLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		bootLogger.Info("Development environment: loaded .env file")
	}

	cfg := config.Load()

	appLogger := logger.NewWithWriter(cfg.LogLevel, os.Stdout)
	logger.SetDefault(appLogger)
	appLogger.Info("Starting attendly",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("commit", GitCommit),
	)

	gin.SetMode(cfg.GinMode)

	db, err := database.InitDB(cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing storage", slog.Any("error", err))
		}
	}()

	dispatcher, err := notifications.NewDispatcher(cfg.Notifications, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize notification dispatcher", slog.Any("error", err))
		appLogger.Info("Continuing without notifications")
		dispatcher = notifications.NoopDispatcher{}
	}
	defer func() {
		appLogger.Info("Stopping notification dispatcher...")
		if err := dispatcher.Close(); err != nil {
			appLogger.Error("Error stopping notification dispatcher", slog.Any("error", err))
		}
	}()

	var admissionMetrics *metrics.Admission
	if cfg.Metrics.Enabled {
		admissionMetrics = metrics.New()
	}

	var rateLimiter *ratelimit.RateLimiter
	switch {
	case !cfg.RateLimit.Enabled:
		appLogger.Info("Rate limiting disabled")
	case db.Redis == nil:
		appLogger.Warn("Rate limiting requires Redis, skipping")
	default:
		rateLimiter = ratelimit.NewRateLimiter(db.Redis, ratelimit.Config{
			Enabled:              cfg.RateLimit.Enabled,
			Window:               cfg.RateLimit.WindowDuration,
			DefaultRequests:      cfg.RateLimit.DefaultRequests,
			PublicRequests:       cfg.RateLimit.PublicRequests,
			RegistrationRequests: cfg.RateLimit.RegistrationRequests,
			AdminRequests:        cfg.RateLimit.AdminRequests,
			WhitelistedIPs:       cfg.RateLimit.WhitelistedIPs,
		})
		appLogger.Info("Rate limiter initialized",
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("default_requests", cfg.RateLimit.DefaultRequests),
		)
	}

	appRouter, err := routes.NewRouter(cfg, db, appLogger, dispatcher, admissionMetrics)
	if err != nil {
		appLogger.Error("Failed to wire admission engine", slog.Any("error", err))
		os.Exit(1)
	}
	defer appRouter.Close()

	jobCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	if cfg.Admission.AuditEnabled {
		appRouter.Jobs().Start(jobCtx)
		defer appRouter.Jobs().Stop()
	}

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        setupEngine(cfg, appLogger, appRouter, rateLimiter),
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("🚀 Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("store", cfg.Admission.StoreDriver),
			slog.String("lock", cfg.Admission.LockDriver),
			slog.String("notifications", cfg.Notifications.Driver),
			slog.Bool("redis", db.Redis != nil),
			slog.Bool("rate_limiting", rateLimiter != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

func setupEngine(cfg *config.Config, log *logger.Logger, appRouter *routes.Router, rateLimiter *ratelimit.RateLimiter) *gin.Engine {
	engine := gin.New()

	engine.Use(middleware.RequestID(), RequestLoggerMiddleware(log), gin.Recovery())

	engine.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter, log))
	}

	appRouter.SetupRoutes(engine)
	return engine
}

func RequestLoggerMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		reqLogger := l.WithRequestID(c.GetString("request_id"))
		if userID, ok := c.Get("user_id"); ok {
			reqLogger = reqLogger.WithUserID(fmt.Sprint(userID))
		}
		reqLogger.LogHTTPRequest(c, time.Since(start))
	}
}
