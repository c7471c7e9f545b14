package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	"github.com/wolfman30/booking-widget/internal/api/router"
	"github.com/wolfman30/booking-widget/internal/booking"
	appconfig "github.com/wolfman30/booking-widget/internal/config"
	httpmiddleware "github.com/wolfman30/booking-widget/internal/http/middleware"
	"github.com/wolfman30/booking-widget/internal/session"
	"github.com/wolfman30/booking-widget/internal/widget"
	"github.com/wolfman30/booking-widget/pkg/logging"
)

func main() {
	cfg, err := appconfig.LoadWithDotenv()
	if err != nil {
		logging.Default().Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting booking widget api",
		"port", cfg.Port,
		"env", cfg.Env,
		"submit_mode", cfg.SubmitMode,
		"email_provider", cfg.EmailProvider,
	)

	rdb := connectRedis(cfg)
	defer func() { _ = rdb.Close() }()

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
	}
	sqlDB := openSQLDB(cfg.DatabaseURL, logger)
	if sqlDB != nil {
		defer func() { _ = sqlDB.Close() }()
	}

	cat, err := setupCatalog(cfg, sqlDB, logger)
	if err != nil {
		logger.Error("failed to set up catalog", "error", err)
		os.Exit(1)
	}
	schedules, err := setupSchedules(cfg, pool, rdb, logger)
	if err != nil {
		logger.Error("failed to set up schedules", "error", err)
		os.Exit(1)
	}

	submitter, deliverer, err := setupSubmitter(ctx, cfg, pool, logger)
	if err != nil {
		logger.Error("failed to set up submitter", "error", err)
		os.Exit(1)
	}
	if deliverer != nil {
		go deliverer.Start(ctx)
	}
	email, err := setupEmail(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to set up email", "error", err)
		os.Exit(1)
	}

	metricsHandler, widgetMetrics := setupMetrics()
	hub := widget.NewHub()

	deps := booking.Deps{
		Sessions:  session.NewStore(rdb, cfg.SessionTTL),
		Catalog:   cat,
		Schedules: schedules,
		Submitter: submitter,
		Email:     email,
		Metrics:   widgetMetrics,
		Publisher: hub,
		Logger:    logger,
	}
	if sqlDB != nil {
		deps.Audit = booking.NewAuditLog(sqlDB)
	}
	svc := booking.NewService(deps, booking.Options{
		Locale:              cfg.Locale,
		Location:            cfg.Location(),
		ActiveDays:          cfg.ActiveDays,
		SlotIntervalMinutes: cfg.SlotIntervalMinutes,
	})

	limiter := httpmiddleware.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)
	widgetHandler := widget.NewHandler(svc, cat, hub, logger).WithRateLimiter(limiter)

	handler := router.New(&router.Config{
		Logger:             logger,
		Widget:             widgetHandler.Routes(),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		HealthChecks:       healthChecks(rdb, pool),
	})

	// No WriteTimeout: the session stream holds its connection open.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited")
}
