package scheduler

import (
	"context"
	"errors"
	"fmt"

	"dpehub_backend/platform/config"
	"dpehub_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Warmer refreshes the cached upstream response of a commune.
type Warmer interface {
	Warm(ctx context.Context, commune string) error
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	warmer   Warmer
	enqueuer WarmupScheduler
	communes []string
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, warmer Warmer, enqueuer WarmupScheduler, communes []string, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 2
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newHandlers(warmer, enqueuer, communes, log)
	w.server = server
	return w, nil
}

func newHandlers(warmer Warmer, enqueuer WarmupScheduler, communes []string, log *logger.Logger) *Worker {
	mux := asynq.NewServeMux()
	w := &Worker{
		mux:      mux,
		warmer:   warmer,
		enqueuer: enqueuer,
		communes: communes,
		log:      log,
	}

	mux.HandleFunc(TaskWarmCommune, w.handleWarmCommune)
	mux.HandleFunc(TaskWarmCatalog, w.handleWarmCatalog)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleWarmCommune(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseWarmCommunePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	if err := w.warmer.Warm(ctx, payload.Commune); err != nil {
		w.log.Warn("cache warm-up failed", "commune", payload.Commune, "error", err)
		return err
	}
	w.log.Debug("cache warmed", "commune", payload.Commune)
	return nil
}

// handleWarmCatalog queues one warm-up per commune, or warms inline when no
// enqueuer is configured.
func (w *Worker) handleWarmCatalog(ctx context.Context, _ *asynq.Task) error {
	var errs []error
	for _, commune := range w.communes {
		var err error
		if w.enqueuer != nil {
			err = w.enqueuer.EnqueueWarmCommune(ctx, commune)
			if errors.Is(err, asynq.ErrDuplicateTask) {
				continue
			}
		} else {
			err = w.warmer.Warm(ctx, commune)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", commune, err))
		}
	}
	if len(errs) > 0 {
		w.log.Warn("catalog warm-up incomplete", "failed", len(errs), "communes", len(w.communes))
	}
	return errors.Join(errs...)
}
