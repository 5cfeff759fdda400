package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"focusQuestAPI/handlers"
	"focusQuestAPI/internal/achievement"
	"focusQuestAPI/internal/auth"
	"focusQuestAPI/internal/cache"
	"focusQuestAPI/internal/config"
	"focusQuestAPI/internal/database"
	"focusQuestAPI/internal/mailer"
	"focusQuestAPI/middleware"
	"focusQuestAPI/services"
)

const (
	emailWorkers   = 2
	emailQueueSize = 100
)

func main() {
	logLevel := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger := newLogger(logLevel)
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		zap.S().Fatalf("Invalid configuration: %v", err)
	}
	if err := setLogLevel(logLevel, cfg.LogLevel); err != nil {
		zap.S().Warnf("Keeping log level %s: %v", logLevel.Level(), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	dbPool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		cancel()
		zap.S().Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(ctx, dbPool); err != nil {
		cancel()
		zap.S().Fatalf("Failed to apply schema: %v", err)
	}
	cancel()

	defer func() {
		zap.S().Info("Closing database connection pool...")
		dbPool.Close()
	}()

	middleware.InitPrometheus()
	services.InitMetrics()

	catalog, err := achievement.LoadCatalog()
	if err != nil {
		zap.S().Fatalf("Failed to load achievement catalog: %v", err)
	}

	userService := services.NewUserService(dbPool)
	leaderboardCache := connectLeaderboardCache(cfg.RedisURL)
	if leaderboardCache != nil {
		userService.SetLeaderboardCache(leaderboardCache)
	}

	hub := services.NewTimerHub()
	go hub.Run()

	achievementService := services.NewAchievementService(dbPool, catalog, userService)
	timerService := services.NewTimerService(dbPool, userService, achievementService, hub)
	taskService := services.NewTaskService(dbPool, userService, achievementService)
	projectService := services.NewProjectService(dbPool, achievementService)
	leaderboardService := services.NewLeaderboardService(dbPool, leaderboardCache)
	if leaderboardCache != nil {
		// load the ranking before any XP increments reach Redis
		rebuildCtx, rebuildCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := leaderboardService.RebuildCache(rebuildCtx); err != nil {
			zap.S().Warnf("Initial leaderboard cache rebuild failed: %v", err)
		}
		rebuildCancel()
	}
	analyticsService := services.NewAnalyticsService(dbPool)

	var sender services.EmailSender = mailer.LogMailer{}
	if cfg.EmailEnabled() {
		sender = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.EmailUser,
			Password: cfg.EmailAppPassword,
		})
	} else {
		zap.S().Warn("EMAIL_USER/EMAIL_APP_PASSWORD not set, feedback mail will only be logged")
	}
	dispatcher := services.NewEmailDispatcher(sender, emailWorkers, emailQueueSize)
	feedbackService := services.NewFeedbackService(dbPool, dispatcher, cfg.FeedbackRecipient)

	// Left as a nil interface when Google is not configured so the handler answers 503.
	var google handlers.GoogleAuthenticator
	if cfg.GoogleEnabled() {
		google = services.NewGoogleAuthService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, userService)
	} else {
		zap.S().Info("Google sign-in disabled (GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set)")
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	cookies := handlers.CookieOptions{Secure: cfg.CookieSecure, TTL: tokens.TTL()}
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.TrustedProxies...)

	router := newRouter(apiHandlers{
		auth:        handlers.NewAuthHandler(userService, tokens, cookies),
		oauth:       handlers.NewOAuthHandler(google, tokens, cookies, cfg.AppURL),
		user:        handlers.NewUserHandler(userService, achievementService, cookies),
		timer:       handlers.NewTimerHandler(timerService, hub, cfg.AllowedOrigins),
		task:        handlers.NewTaskHandler(taskService),
		project:     handlers.NewProjectHandler(projectService),
		leaderboard: handlers.NewLeaderboardHandler(leaderboardService),
		analytics:   handlers.NewAnalyticsHandler(analyticsService),
		feedback:    handlers.NewFeedbackHandler(feedbackService),
		pages:       handlers.NewPagesHandler(cfg.WebDir, cfg.AppVersion, dbPool),
	}, routerOptions{
		authenticator:  middleware.NewAuthenticator(tokens),
		limiter:        limiter,
		metricsUser:    cfg.MetricsUser,
		metricsPass:    cfg.MetricsPass,
		allowedOrigins: cfg.AllowedOrigins,
	})

	scheduler, err := services.NewScheduler(
		services.ScheduledJob{
			Name:     "rate-limit-cleanup",
			Interval: time.Minute,
			Run: func(ctx context.Context) error {
				if n := limiter.CleanupVisitors(); n > 0 {
					zap.S().Debugf("Evicted %d idle visitors", n)
				}
				return nil
			},
		},
		services.ScheduledJob{
			Name:     "leaderboard-cache-rebuild",
			Interval: 10 * time.Minute,
			Run:      leaderboardService.RebuildCache,
		},
		services.ScheduledJob{
			Name:     "stale-timer-cleanup",
			Interval: 15 * time.Minute,
			Run: func(ctx context.Context) error {
				stopped, err := timerService.AutoStopStale(ctx)
				if stopped > 0 {
					zap.S().Infof("Auto-stopped %d stale timer sessions", stopped)
				}
				return err
			},
		},
	)
	if err != nil {
		zap.S().Fatalf("Failed to start scheduler: %v", err)
	}
	scheduler.Start()

	server := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		zap.S().Infof("Starting server on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.S().Fatalf("Error starting server: %v", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	zap.S().Infof("Got signal: %v", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.S().Errorf("Server shutdown error: %v", err)
	}
	if err := scheduler.Shutdown(); err != nil {
		zap.S().Errorf("Scheduler shutdown error: %v", err)
	}
	dispatcher.Stop()
	hub.Stop()

	zap.S().Info("Server shutdown complete")
}

// newLogger builds the production logger on a level that can be changed
// once the configuration is loaded.
func newLogger(level zap.AtomicLevel) *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = level
	logger, err := zapCfg.Build()
	if err != nil {
		return zap.NewExample()
	}
	return logger
}

func setLogLevel(level zap.AtomicLevel, raw string) error {
	lvl, err := zapcore.ParseLevel(raw)
	if err != nil {
		return err
	}
	level.SetLevel(lvl)
	return nil
}

// connectLeaderboardCache returns nil when Redis is not configured or not
// reachable; the leaderboard then reads straight from Postgres.
func connectLeaderboardCache(redisURL string) *cache.LeaderboardCache {
	if redisURL == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := cache.NewClient(ctx, redisURL)
	if err != nil {
		zap.S().Warnf("Redis unavailable, leaderboard cache disabled: %v", err)
		return nil
	}
	zap.S().Info("Leaderboard cache connected to Redis")
	return cache.NewLeaderboardCache(rdb)
}
