// cmd/worker-manager/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"readiness-workers/internal/api"
	"readiness-workers/internal/bootstrap"
	"readiness-workers/internal/common/camunda"
	"readiness-workers/internal/common/coalesce"
	"readiness-workers/internal/common/config"
	"readiness-workers/internal/common/database"
	"readiness-workers/internal/common/logger"
	"readiness-workers/internal/common/observability"
	"readiness-workers/internal/matching"
	"readiness-workers/internal/readiness/store"
	"readiness-workers/pkg/registry"

	gms "readiness-workers/internal/workers/matching/get-match-status"
	lsb "readiness-workers/internal/workers/matching/load-startup-bootstrap"
	prs "readiness-workers/internal/workers/readiness/project-readiness-score"
	sr "readiness-workers/internal/workers/readiness/score-readiness"
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
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// checkActivityRegistry warns about started task types the activity registry
// does not describe. A missing or invalid registry never stops the service.
func checkActivityRegistry(path string, started []string, log *zap.Logger) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		log.Warn("activity registry not loaded", zap.String("path", path), zap.Error(err))
		return
	}
	if err := reg.Validate(); err != nil {
		log.Warn("activity registry invalid", zap.String("path", path), zap.Error(err))
		return
	}
	if missing := reg.Unregistered(started); len(missing) > 0 {
		log.Warn("task types missing from activity registry", zap.Strings("taskTypes", missing))
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("observability init failed, job metrics disabled", zap.Error(err))
	}
	defer obs.Shutdown(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL (service role) with retry ---
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

	// --- Init PostgreSQL (caller-scoped role) ---
	// The scoped role only serves the fallback read, so a failure here is
	// not fatal: the orchestrator runs without a fallback.
	var scopedReader matching.MatchReader
	scoped, err := database.NewPostgres(cfg.Database.PostgresScoped)
	if err == nil {
		err = scoped.Ping(ctx)
	}
	if err != nil {
		zapLog.Warn("scoped postgres unavailable, match reads have no fallback", zap.Error(err))
	} else {
		defer scoped.Close()
		scopedReader = matching.NewSQLMatchReader(scoped.DB, "scoped")
		zapLog.Info("Scoped PostgreSQL connected successfully")
	}

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Zeebe ---
	zeebe, err := camunda.Connect(ctx, camunda.ConfigFrom(cfg.Camunda), log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- Domain services ---
	rubrics := store.New(pg.DB, redis.Client, config.GetDuration(cfg.Readiness.CacheTTL), log)

	pipeline := matching.NewHTTPPipeline(cfg.Pipeline, log)

	var throttle = redis.Client
	if !cfg.Pipeline.TopUpThrottleEnable {
		throttle = nil
	}
	topUp := matching.NewTopUpDispatcher(pipeline, throttle, matching.TopUpConfig{
		TargetMatches: cfg.Pipeline.TargetMatches,
		Timeout:       config.GetDuration(cfg.Pipeline.TopUpTimeout),
		ThrottleTTL:   config.GetDuration(cfg.Pipeline.TopUpThrottleTTL),
	}, log)

	orchestrator := matching.NewOrchestrator(matching.Config{
		TargetMatches:  cfg.Pipeline.TargetMatches,
		ReadTimeout:    config.GetDuration(cfg.Pipeline.ReadTimeout),
		StatusTimeout:  config.GetDuration(cfg.Pipeline.StatusTimeout),
		TriggerTimeout: config.GetDuration(cfg.Pipeline.TriggerTimeout),
	}, matching.NewSQLMatchReader(pg.DB, "service"), scopedReader, pipeline, topUp, log)

	coalescer := coalesce.New(
		coalesce.WithCooldown(config.GetDuration(cfg.Coalescer.Cooldown)),
		coalesce.WithLogger(log),
	)
	boot := bootstrap.NewLoader(bootstrap.Config{MaxGaps: cfg.Readiness.DefaultMaxGaps}, rubrics, orchestrator, coalescer, log)

	// --- Register workers ---
	workers := camunda.NewRegistry(zeebe.Zeebe(), log)

	if wcfg := config.GetWorkerConfig(cfg, sr.TaskType); wcfg.Enabled {
		handler := sr.NewHandler(&sr.Config{
			Timeout:        config.GetDuration(wcfg.Timeout),
			DefaultMaxGaps: cfg.Readiness.DefaultMaxGaps,
		}, rubrics, obs, log)
		workers.Start(sr.TaskType, wcfg, handler.Handle)
	}

	if wcfg := config.GetWorkerConfig(cfg, prs.TaskType); wcfg.Enabled {
		handler := prs.NewHandler(&prs.Config{Timeout: config.GetDuration(wcfg.Timeout)}, obs, log)
		workers.Start(prs.TaskType, wcfg, handler.Handle)
	}

	if wcfg := config.GetWorkerConfig(cfg, gms.TaskType); wcfg.Enabled {
		handler := gms.NewHandler(&gms.Config{Timeout: config.GetDuration(wcfg.Timeout)}, orchestrator, obs, log)
		workers.Start(gms.TaskType, wcfg, handler.Handle)
	}

	if wcfg := config.GetWorkerConfig(cfg, lsb.TaskType); wcfg.Enabled {
		handler := lsb.NewHandler(&lsb.Config{Timeout: config.GetDuration(wcfg.Timeout)}, boot, obs, log)
		workers.Start(lsb.TaskType, wcfg, handler.Handle)
	}

	zapLog.Info("Workers registered", zap.Strings("taskTypes", workers.Started()))
	checkActivityRegistry(cfg.App.ActivityRegistry, workers.Started(), zapLog)

	// --- HTTP API, health & metrics ---
	router := api.NewRouter(api.Dependencies{
		Reports:        rubrics,
		Matches:        orchestrator,
		Bootstrap:      boot,
		DefaultMaxGaps: cfg.Readiness.DefaultMaxGaps,
		Checks: map[string]api.ReadinessCheck{
			"postgres": pg.Ping,
			"redis":    redis.Ping,
			"zeebe":    zeebe.HealthCheck,
		},
	}, log)
	server := api.NewServer(cfg.Server.Address, router, log)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// --- Graceful Shutdown ---
	select {
	case <-ctx.Done():
		zapLog.Info("Shutdown signal received, stopping workers...")
	case err := <-serverErr:
		if err != nil {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP server", zap.Error(err))
	}
	workers.Close()

	topUpDone := make(chan struct{})
	go func() {
		topUp.Wait()
		close(topUpDone)
	}()
	select {
	case <-topUpDone:
	case <-shutdownCtx.Done():
		zapLog.Warn("Background top-ups still running at shutdown")
	}

	zapLog.Info("Worker manager stopped gracefully")
}
