package scheduler

import (
	"context"
	"fmt"

	"dpehub_backend/platform/config"
	"dpehub_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Cron periodically enqueues a catalog warm-up.
type Cron struct {
	scheduler *asynq.Scheduler
	spec      string
	queue     string
	log       *logger.Logger
}

func NewCron(cfg config.SchedulerConfig, log *logger.Logger) (*Cron, error) {
	if !cfg.IsSchedulerEnabled() {
		return nil, fmt.Errorf("scheduler not configured")
	}

	opt, err := redisClientOpt(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Cron{
		scheduler: asynq.NewScheduler(opt, nil),
		spec:      cfg.GetWarmupCron(),
		queue:     queueName(cfg),
		log:       log,
	}, nil
}

// Run registers the warm-up entry and blocks until ctx is done.
func (c *Cron) Run(ctx context.Context) error {
	if c == nil || c.scheduler == nil {
		return nil
	}

	entryID, err := c.scheduler.Register(c.spec, NewWarmCatalogTask(), asynq.Queue(c.queue), asynq.MaxRetry(0))
	if err != nil {
		return fmt.Errorf("register warm-up cron %q: %w", c.spec, err)
	}
	c.log.Info("warm-up cron registered", "spec", c.spec, "entry", entryID)

	if err := c.scheduler.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	c.scheduler.Shutdown()
	return nil
}
