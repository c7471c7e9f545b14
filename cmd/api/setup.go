package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/booking-widget/cmd/mainconfig"
	"github.com/wolfman30/booking-widget/internal/api/router"
	"github.com/wolfman30/booking-widget/internal/booking"
	"github.com/wolfman30/booking-widget/internal/catalog"
	appconfig "github.com/wolfman30/booking-widget/internal/config"
	"github.com/wolfman30/booking-widget/internal/notify"
	"github.com/wolfman30/booking-widget/internal/observability/metrics"
	"github.com/wolfman30/booking-widget/internal/schedule"
	"github.com/wolfman30/booking-widget/pkg/logging"
)

func connectRedis(cfg *appconfig.Config) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}

func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if databaseURL == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		return nil
	}
	return pool
}

// openSQLDB backs the catalog repository and the audit log. It shares
// DATABASE_URL with the pgx pool.
func openSQLDB(databaseURL string, logger *logging.Logger) *sql.DB {
	if databaseURL == "" {
		return nil
	}
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return nil
	}
	return db
}

func setupCatalog(cfg *appconfig.Config, db *sql.DB, logger *logging.Logger) (catalog.Catalog, error) {
	if cfg.CatalogSeedPath != "" {
		cat, err := catalog.LoadFile(cfg.CatalogSeedPath)
		if err != nil {
			return nil, err
		}
		logger.Info("catalog loaded from seed", "path", cfg.CatalogSeedPath)
		return cat, nil
	}
	if db != nil {
		return catalog.NewRepository(db), nil
	}
	logger.Warn("no catalog configured; serving an empty catalog")
	return catalog.NewMemoryCatalog(nil, nil, nil), nil
}

func setupSchedules(cfg *appconfig.Config, pool *pgxpool.Pool, rdb *redis.Client, logger *logging.Logger) (schedule.Source, error) {
	var src schedule.Source
	switch {
	case cfg.ScheduleSeedPath != "":
		mem, err := schedule.LoadFile(cfg.ScheduleSeedPath)
		if err != nil {
			return nil, err
		}
		logger.Info("schedules loaded from seed", "path", cfg.ScheduleSeedPath)
		// Seeds are already in memory; caching them in Redis would only add a hop.
		return mem, nil
	case pool != nil:
		src = schedule.NewRepository(pool)
	default:
		logger.Warn("no schedule source configured; every day is unavailable")
		return schedule.NewMemorySource(), nil
	}
	if rdb != nil && cfg.ScheduleCacheTTL > 0 {
		src = schedule.NewCachedSource(src, rdb, cfg.ScheduleCacheTTL, logger)
	}
	return src, nil
}

// setupSubmitter returns the transport Submit hands bookings to. In outbox mode
// the returned Deliverer forwards queued bookings over SUBMIT_URL, or
// SUBMIT_QUEUE_URL when no URL is set.
func setupSubmitter(ctx context.Context, cfg *appconfig.Config, pool *pgxpool.Pool, logger *logging.Logger) (booking.Submitter, *booking.Deliverer, error) {
	switch cfg.SubmitMode {
	case appconfig.SubmitModeHTTP:
		return booking.NewHTTPSubmitter(cfg.SubmitURL, cfg.SubmitTimeout), nil, nil
	case appconfig.SubmitModeSQS:
		sub, err := newSQSSubmitter(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return sub, nil, nil
	case appconfig.SubmitModeOutbox:
		if pool == nil {
			return nil, nil, fmt.Errorf("outbox mode needs a postgres connection")
		}
		var next booking.Submitter
		if cfg.SubmitURL != "" {
			next = booking.NewHTTPSubmitter(cfg.SubmitURL, cfg.SubmitTimeout)
		} else {
			sub, err := newSQSSubmitter(ctx, cfg)
			if err != nil {
				return nil, nil, err
			}
			next = sub
		}
		store := booking.NewOutboxStore(pool)
		deliverer := booking.NewDeliverer(store, next, logger).WithInterval(cfg.OutboxInterval)
		return booking.NewOutboxSubmitter(store), deliverer, nil
	default:
		return nil, nil, fmt.Errorf("unknown submit mode %q", cfg.SubmitMode)
	}
}

func newSQSSubmitter(ctx context.Context, cfg *appconfig.Config) (*booking.SQSSubmitter, error) {
	if cfg.SubmitQueueURL == "" {
		return nil, fmt.Errorf("SUBMIT_QUEUE_URL is required for sqs delivery")
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return booking.NewSQSSubmitter(sqs.NewFromConfig(awsCfg), cfg.SubmitQueueURL), nil
}

func setupEmail(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (notify.EmailSender, error) {
	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender == nil {
			return nil, fmt.Errorf("sendgrid sender needs an api key")
		}
		return sender, nil
	case "ses":
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger), nil
	default:
		return notify.NewStubEmailSender(logger), nil
	}
}

func setupMetrics() (http.Handler, *metrics.WidgetMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewWidgetMetrics(reg)
}

func healthChecks(rdb *redis.Client, pool *pgxpool.Pool) map[string]router.HealthCheck {
	checks := map[string]router.HealthCheck{
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	return checks
}
