// Package main is the entry point of the xAPI worker.
//
// The worker runs two periodic jobs against a remote LRS:
//   - flush_outbox delivers statements queued in Redis
//   - archive_statements copies stored statements into Postgres
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/alem-hub/xapi/config"
	"github.com/alem-hub/xapi/internal/application/command"
	"github.com/alem-hub/xapi/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/xapi/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/xapi/internal/infrastructure/scheduler"
	"github.com/alem-hub/xapi/internal/infrastructure/scheduler/jobs"
	adminhttp "github.com/alem-hub/xapi/internal/interface/http"
	"github.com/alem-hub/xapi/pkg/circuitbreaker"
	"github.com/alem-hub/xapi/pkg/logger"
	"github.com/alem-hub/xapi/pkg/retry"
	"github.com/alem-hub/xapi/pkg/xapi"
	"github.com/alem-hub/xapi/pkg/xapi/lrs"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
		Format: logger.ParseFormat(cfg.Observability.LogFormat),
	})
	slog.SetDefault(log)
	log.Info("starting xAPI worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. METRICS REGISTRY
	// ─────────────────────────────────────────────────────────────────────────
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. LRS CLIENT
	// ─────────────────────────────────────────────────────────────────────────
	client, err := newLRSClient(cfg, registry, log)
	if err != nil {
		return fmt.Errorf("failed to create LRS client: %w", err)
	}
	log.Info("LRS client ready", "lrs", client.String())

	if cfg.Features.IsEnabled(config.FeatureAboutCheck) {
		if err := checkAbout(ctx, client, log); err != nil {
			return err
		}
	}

	retrier := retry.LRSRetrier().With(
		retry.WithMaxAttempts(cfg.Worker.RetryAttempts),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("retrying LRS request", "attempt", attempt, "delay", delay.String(), logger.Err(err))
		}),
	)
	breaker := circuitbreaker.LRSBreaker(
		circuitbreaker.WithFailureThreshold(cfg.Worker.BreakerThreshold),
		circuitbreaker.WithTimeout(cfg.Worker.BreakerTimeout),
		circuitbreaker.WithIsFailure(command.IsOutage),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		}),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS OUTBOX (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisClient *goredis.Client
		outbox      *redis.Outbox
	)
	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...", "addr", cfg.Redis.RedisAddr())
		redisClient, err = connectRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer func() {
			log.Info("closing Redis connection...")
			_ = redisClient.Close()
		}()

		outbox = redis.NewOutbox(redisClient,
			redis.WithKey(cfg.Redis.OutboxKey),
			redis.WithStamping(cfg.Features.IsEnabled(config.FeatureOutboxStamp)),
			redis.WithLogger(log),
		)
		if n, err := outbox.Len(ctx); err == nil {
			dead, _ := outbox.DeadLetterLen(ctx)
			log.Info("outbox ready", "key", outbox.Key(), "pending", n, "dead_letter", dead)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. POSTGRES ARCHIVE (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		dbConn  *postgres.Connection
		archive *postgres.StatementArchive
	)
	if !cfg.Database.Disabled && cfg.Database.URL != "" {
		log.Info("connecting to database...")
		dbConn, err = connectDatabase(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			log.Info("closing database connection...")
			dbConn.Close()
		}()

		applied, err := postgres.NewMigrator(dbConn).Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		stats := dbConn.Stats()
		log.Info("database schema is up to date",
			"applied", applied,
			"pool_max_conns", stats.MaxConns,
			"pool_idle_conns", stats.IdleConns,
		)

		archive = postgres.NewStatementArchive(dbConn)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. SCHEDULER & JOBS
	// ─────────────────────────────────────────────────────────────────────────
	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = log
	schedCfg.JobTimeout = cfg.Worker.JobTimeout
	sched := scheduler.NewScheduler(schedCfg)

	if outbox != nil && cfg.Features.IsEnabled(config.FeatureOutboxFlush) {
		handler := command.NewFlushOutboxHandler(outbox, client, retrier, breaker, log, command.FlushOutboxHandlerConfig{
			BatchSize: cfg.Worker.FlushBatch,
		})
		job := jobs.NewFlushOutboxJob(handler, redisClient, log, jobs.FlushOutboxConfig{
			LockTTL: cfg.Worker.JobTimeout,
			Timeout: cfg.Worker.JobTimeout,
		})
		if err := sched.Register(job, scheduler.NewIntervalSchedule(cfg.Worker.FlushInterval)); err != nil {
			return fmt.Errorf("failed to register %s: %w", job.Name(), err)
		}
	}

	if archive != nil && cfg.Features.IsEnabled(config.FeatureArchiveSync) {
		schedule, err := archiveSchedule(cfg.Worker)
		if err != nil {
			return fmt.Errorf("invalid archive schedule: %w", err)
		}
		handler := command.NewArchiveStatementsHandler(client, archive, retrier, log, command.ArchiveStatementsHandlerConfig{
			PageLimit: cfg.Worker.ArchivePageLimit,
		})
		job := jobs.NewArchiveStatementsJob(handler, log, jobs.ArchiveStatementsConfig{
			Timeout: cfg.Worker.JobTimeout,
		})
		if err := sched.Register(job, schedule); err != nil {
			return fmt.Errorf("failed to register %s: %w", job.Name(), err)
		}
	}

	if len(sched.ListJobs()) == 0 {
		log.Warn("no jobs enabled, the worker will idle")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ADMIN SERVER (health, metrics, intake, job control)
	// ─────────────────────────────────────────────────────────────────────────
	var admin *adminhttp.Server
	if cfg.HTTP.Enabled || cfg.Observability.MetricsEnabled {
		deps := adminhttp.Dependencies{
			Health: healthChecks(redisClient, dbConn, breaker),
			Logger: log,
		}
		if cfg.Observability.MetricsEnabled {
			deps.Metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
		}
		if cfg.HTTP.Enabled {
			deps.Scheduler = sched
			if outbox != nil {
				deps.Outbox = outbox
			}
		}

		httpCfg := adminhttp.DefaultConfig()
		httpCfg.Addr = cfg.HTTP.Addr
		httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
		httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
		httpCfg.APIKeys = cfg.HTTP.APIKeys
		admin = adminhttp.NewServer(httpCfg, deps)

		go func() {
			if err := <-admin.StartAsync(); err != nil {
				log.Error("admin server failed", logger.Err(err))
			}
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. RUN & GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.Info("xAPI worker is running", "jobs", len(sched.ListJobs()))

	<-ctx.Done()
	log.Info("received shutdown signal", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	stopped := make(chan error, 1)
	go func() { stopped <- sched.Stop() }()
	select {
	case err := <-stopped:
		if err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			log.Error("scheduler stop failed", logger.Err(err))
		}
	case <-shutdownCtx.Done():
		log.Warn("shutdown timeout reached, abandoning running jobs")
	}

	if admin != nil {
		if err := admin.Shutdown(shutdownCtx); err != nil {
			log.Error("admin server shutdown failed", logger.Err(err))
		}
	}

	if m := sched.GetMetrics(); m != nil {
		log.Info("scheduler summary", "metrics", m.Snapshot())
	}
	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// newLRSClient builds the RemoteLRS with metrics registered on reg.
func newLRSClient(cfg *config.Config, reg prometheus.Registerer, log *slog.Logger) (*lrs.RemoteLRS, error) {
	version, err := xapi.ParseVersion(cfg.LRS.Version)
	if err != nil {
		return nil, err
	}

	lrsCfg := lrs.DefaultConfig(cfg.LRS.Endpoint)
	lrsCfg.Version = version
	lrsCfg.Username = cfg.LRS.Username
	lrsCfg.Password = cfg.LRS.Password
	lrsCfg.Timeout = cfg.LRS.Timeout
	lrsCfg.Logger = log
	lrsCfg.Metrics = lrs.NewMetrics(reg)
	return lrs.New(lrsCfg)
}

// checkAbout verifies the LRS advertises the configured version.
func checkAbout(ctx context.Context, client *lrs.RemoteLRS, log *slog.Logger) error {
	resp, err := client.About(ctx)
	if err != nil {
		return fmt.Errorf("about: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("about: %w", &command.LRSError{
			Op:         "about",
			StatusCode: resp.StatusCode,
			Message:    resp.ErrMessage,
			Err:        resp.Err,
		})
	}
	for _, v := range resp.Content.Version {
		if v == client.Version() {
			log.Info("LRS supports configured version", "version", v.String())
			return nil
		}
	}
	return fmt.Errorf("about: LRS does not advertise version %s (got %v)", client.Version(), resp.Content.Version)
}

// connectRedis dials Redis, retrying while it is starting up.
func connectRedis(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	redisCfg := redis.DefaultConfig()
	redisCfg.URL = cfg.URL
	redisCfg.Host = cfg.Host
	redisCfg.Port = cfg.Port
	redisCfg.Password = cfg.Password
	redisCfg.DB = cfg.DB
	redisCfg.PoolSize = cfg.PoolSize
	redisCfg.DialTimeout = cfg.DialTimeout
	redisCfg.ReadTimeout = cfg.ReadTimeout
	redisCfg.WriteTimeout = cfg.WriteTimeout

	var client *goredis.Client
	retrier := retry.RedisRetrier().With(retry.WithMaxAttempts(5), retry.WithMaxDelay(5*time.Second))
	err := retrier.Do(ctx, func(ctx context.Context) error {
		c, err := redis.Connect(ctx, redisCfg)
		if errors.Is(err, redis.ErrConnection) {
			return retry.Retryable(err)
		}
		if err != nil {
			return err
		}
		client = c
		return nil
	})
	return client, err
}

// connectDatabase opens the archive pool, retrying while Postgres is starting up.
func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*postgres.Connection, error) {
	dbCfg := postgres.DefaultConfig(cfg.URL)
	dbCfg.MaxConns = cfg.MaxConns
	dbCfg.MinConns = cfg.MinConns
	dbCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	dbCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime

	var conn *postgres.Connection
	err := retry.DatabaseRetrier().With(retry.WithMaxAttempts(5)).Do(ctx, func(ctx context.Context) error {
		c, err := postgres.NewConnection(ctx, dbCfg)
		if err != nil {
			return retry.Retryable(err)
		}
		conn = c
		return nil
	})
	return conn, err
}

// archiveSchedule prefers the cron expression over the plain interval.
func archiveSchedule(cfg config.WorkerConfig) (scheduler.Schedule, error) {
	if cfg.ArchiveCron != "" {
		return scheduler.ParseSchedule(cfg.ArchiveCron)
	}
	return scheduler.NewIntervalSchedule(cfg.ArchiveInterval), nil
}

// healthChecks probes the dependencies that are configured.
func healthChecks(redisClient *goredis.Client, db *postgres.Connection, breaker *circuitbreaker.CircuitBreaker) adminhttp.HealthChecks {
	checks := adminhttp.HealthChecks{
		"lrs": func(context.Context) error {
			if breaker.IsOpen() {
				return errors.New("circuit open")
			}
			return nil
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if db != nil {
		checks["postgres"] = db.Ping
	}
	return checks
}
