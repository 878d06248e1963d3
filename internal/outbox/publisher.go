package outbox

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/merchantlabs/backoffice/internal/event"
)

// BatchSize bounds how many messages one ProcessMessages invocation handles.
const BatchSize = 50

// Publisher delivers due outbox messages to their in-process consumers,
// batch by batch, with each message's outcome committed independently.
type Publisher struct {
	store      Store
	registry   *event.Registry
	dispatcher *event.Dispatcher
	logger     *zap.Logger
}

func NewPublisher(store Store, registry *event.Registry, dispatcher *event.Dispatcher, logger *zap.Logger) *Publisher {
	return &Publisher{
		store:      store,
		registry:   registry,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// ProcessMessages executes one bounded batch of pending deliveries. It is
// idempotent to call repeatedly; an empty eligible set is a no-op. Messages
// are processed sequentially so every outcome is durable before the next
// message is attempted; one message's failure never stops the rest of the
// batch. Cancellation is honored between messages, not within one message's
// dispatch and status commit.
func (p *Publisher) ProcessMessages(ctx context.Context) error {
	msgs, err := p.store.FetchDue(ctx, BatchSize)
	if err != nil {
		return fmt.Errorf("fetch due messages: %w", err)
	}

	for i := range msgs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		p.process(ctx, &msgs[i])
	}

	return nil
}

func (p *Publisher) process(ctx context.Context, msg *Message) {
	evt, err := p.registry.Decode(msg.Type, msg.Content)
	if err != nil {
		// Unknown discriminators and undecodable payloads cannot succeed on
		// retry; the failure is recorded for operator remediation.
		p.fail(ctx, msg, err)
		p.logger.Warn("outbox_message_unresolvable",
			zap.Int64("message_id", msg.ID),
			zap.String("type", msg.Type),
			zap.Bool("unknown_type", errors.Is(err, event.ErrUnknownType)),
			zap.Error(err),
		)
		return
	}

	if err := p.dispatcher.Dispatch(ctx, evt); err != nil {
		p.fail(ctx, msg, err)
		p.logger.Warn("outbox_dispatch_failed",
			zap.Int64("message_id", msg.ID),
			zap.String("type", msg.Type),
			zap.Int("retry_count", msg.RetryCount),
			zap.Time("next_attempt_at", msg.ScheduledAt),
			zap.Error(err),
		)
		return
	}

	if err := p.store.MarkProcessed(ctx, msg.ID); err != nil {
		// The dispatch already happened; the message will be redelivered.
		// Consumers must tolerate the duplicate.
		p.logger.Error("outbox_mark_processed_failed",
			zap.Int64("message_id", msg.ID),
			zap.Error(err),
		)
		return
	}

	messagesProcessed.WithLabelValues(msg.Type).Inc()
	p.logger.Info("outbox_message_processed",
		zap.Int64("message_id", msg.ID),
		zap.String("type", msg.Type),
	)
}

func (p *Publisher) fail(ctx context.Context, msg *Message, cause error) {
	if err := p.store.MarkFailed(ctx, msg, cause); err != nil {
		p.logger.Error("outbox_mark_failed_errored",
			zap.Int64("message_id", msg.ID),
			zap.Error(err),
		)
		return
	}
	messagesFailed.WithLabelValues(msg.Type).Inc()
}
