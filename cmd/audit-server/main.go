// cmd/audit-server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"visibility-audit/internal/audit/orchestrator"
	"visibility-audit/internal/audit/providers"
	"visibility-audit/internal/common/config"
	"visibility-audit/internal/common/database"
	"visibility-audit/internal/common/logger"
	"visibility-audit/internal/common/observability"
	"visibility-audit/internal/notify"
	"visibility-audit/internal/ratelimit"
	"visibility-audit/internal/server"
	"visibility-audit/internal/store"
)

const (
	auditBurstLimit = 10
	betaBurstLimit  = 5
	burstWindow     = time.Minute
	sweeperInterval = time.Minute
	schemaTimeout   = 30 * time.Second
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting audit server...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Persistence ---
	st := store.New(pg.DB, log)
	schemaCtx, cancel := context.WithTimeout(ctx, schemaTimeout)
	if err := st.EnsureSchema(schemaCtx); err != nil {
		cancel()
		zapLog.Fatal("schema bootstrap failed", zap.Error(err))
	}
	cancel()

	// --- Optional Elasticsearch archive ---
	var archiver orchestrator.Archiver
	if cfg.Database.Elasticsearch.Enabled() {
		esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			zapLog.Warn("elasticsearch unavailable, archive disabled", zap.Error(err))
		} else {
			archiver = store.NewArchiver(esClient.Client, log)
			zapLog.Info("Elasticsearch archive enabled")
		}
	}

	// --- Audit pipeline ---
	runner := providers.NewRunner(cfg, log)
	orch := orchestrator.New(st, runner, archiver, obs, log)
	orch.StartSweeper(ctx, sweeperInterval)

	// --- Notifications ---
	var notifier server.Notifier
	if cfg.Notify.Email.Enabled || cfg.Notify.SMS.Enabled {
		n, err := notify.New(ctx, cfg.Notify, log)
		if err != nil {
			zapLog.Warn("notifications unavailable", zap.Error(err))
		} else {
			notifier = n
		}
	}

	// --- Rate limiters ---
	auditLimiter := ratelimit.New(redisClient.Client, "audit-create", auditBurstLimit, burstWindow, log)
	betaLimiter := ratelimit.New(redisClient.Client, "beta-apply", betaBurstLimit, burstWindow, log)

	srv := server.New(cfg, st, orch, auditLimiter, betaLimiter, notifier, pg.DB, log)
	if err := srv.ListenAndServe(ctx); err != nil {
		zapLog.Fatal("http server failed", zap.Error(err))
	}

	zapLog.Info("Shutdown complete")
}
