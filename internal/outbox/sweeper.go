package outbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Sweeper bounds growth of the message store by deleting processed envelopes
// older than a retention window. Failed and pending messages are never swept;
// operators resolve stuck messages explicitly.
type Sweeper struct {
	store  Store
	logger *zap.Logger
}

func NewSweeper(store Store, logger *zap.Logger) *Sweeper {
	return &Sweeper{store: store, logger: logger}
}

// CleanupOldMessages purges processed messages older than daysToKeep days and
// returns the count removed.
func (s *Sweeper) CleanupOldMessages(ctx context.Context, daysToKeep int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -daysToKeep)

	removed, err := s.store.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete processed messages: %w", err)
	}

	if removed > 0 {
		messagesSwept.Add(float64(removed))
		s.logger.Info("outbox_messages_swept",
			zap.Int64("removed", removed),
			zap.Int("days_kept", daysToKeep),
		)
	}
	return removed, nil
}
