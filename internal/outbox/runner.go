package outbox

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/merchantlabs/backoffice/internal/config"
)

// Runner owns the schedule for the publisher and the retention sweeper. The
// core operations themselves process one bounded batch per invocation; the
// runner just re-triggers them on fixed intervals.
type Runner struct {
	publisher     *Publisher
	sweeper       *Sweeper
	logger        *zap.Logger
	pollInterval  time.Duration
	sweepInterval time.Duration
	retentionDays int
}

func NewRunner(publisher *Publisher, sweeper *Sweeper, cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{
		publisher:     publisher,
		sweeper:       sweeper,
		logger:        logger,
		pollInterval:  time.Duration(cfg.OutboxPollIntervalSeconds) * time.Second,
		sweepInterval: time.Duration(cfg.OutboxSweepIntervalHours) * time.Hour,
		retentionDays: cfg.OutboxRetentionDays,
	}
}

// Run polls the outbox until the context is cancelled. Side effects happen
// only after durable writes, keeping database state authoritative.
func (r *Runner) Run(ctx context.Context) {
	if err := r.publisher.ProcessMessages(ctx); err != nil {
		r.logger.Error("outbox_initial_poll_failed", zap.Error(err))
	}

	poll := time.NewTicker(r.pollInterval)
	defer poll.Stop()
	sweep := time.NewTicker(r.sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			if err := r.publisher.ProcessMessages(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("outbox_poll_failed", zap.Error(err))
			}
		case <-sweep.C:
			if _, err := r.sweeper.CleanupOldMessages(ctx, r.retentionDays); err != nil {
				r.logger.Error("outbox_sweep_failed", zap.Error(err))
			}
		}
	}
}
