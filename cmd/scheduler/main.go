package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dpehub_backend/internal/dpe/cache"
	"dpehub_backend/internal/dpe/catalog"
	"dpehub_backend/internal/dpe/client"
	"dpehub_backend/internal/dpe/service"
	"dpehub_backend/internal/scheduler"
	"dpehub_backend/platform/config"
	"dpehub_backend/platform/logger"
	"dpehub_backend/platform/metrics"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	if !cfg.IsSchedulerEnabled() {
		log.Warn("REDIS_URL or WARMUP_CRON not configured; cache warm-up disabled")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	communes, err := catalog.Load(cfg.GetCommunesFile())
	if err != nil {
		log.Error("failed to load communes catalog", "error", err)
		panic("failed to load communes catalog: " + err.Error())
	}

	// The warm-up is only useful against the cache the API reads, so Redis
	// must be reachable here.
	var store *cache.Redis
	if err := withRetry(ctx, log, "redis connection", 5, 2*time.Second, func() error {
		s, err := cache.NewRedis(cfg.GetRedisURL(), cfg.GetCacheTTL())
		if err != nil {
			return err
		}
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return err
		}
		store = s
		return nil
	}); err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	defer func() { _ = store.Close() }()

	svc := service.New(client.New(cfg, communes, log), service.Config{
		DatasetID: cfg.GetAdemeDatasetID(),
		FetchSize: cfg.GetAdemeFetchSize(),
		Cache:     store,
		Metrics:   metrics.New(),
	}, log)

	enqueuer, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = enqueuer.Close() }()

	worker, err := scheduler.NewWorker(cfg, svc, enqueuer, communes.Communes, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	cron, err := scheduler.NewCron(cfg, log)
	if err != nil {
		log.Error("failed to initialize warm-up cron", "error", err)
		panic("failed to initialize warm-up cron: " + err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.Run(gctx)
		if gctx.Err() == nil {
			return errors.New("scheduler worker exited")
		}
		return nil
	})
	g.Go(func() error {
		return cron.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		log.Error("scheduler stopped", "error", err)
		os.Exit(1)
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
