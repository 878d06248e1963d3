package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Enqueuer persists a serialized event envelope. When tx is non-nil the
// envelope is written inside that transaction, so it commits atomically with
// the business change that produced it.
type Enqueuer interface {
	Enqueue(ctx context.Context, tx *gorm.DB, discriminator string, content []byte, scheduledAt time.Time) error
}

// Bus is the bridge between domain events and their two delivery modes.
//
// PublishImmediate hands the event to in-process consumers synchronously,
// within the current request. EnqueueForOutbox stores the event for delivery
// after the surrounding transaction is durably committed; external side
// effects belong on this path.
type Bus struct {
	dispatcher *Dispatcher
	enqueuer   Enqueuer
}

func NewBus(dispatcher *Dispatcher, enqueuer Enqueuer) *Bus {
	return &Bus{dispatcher: dispatcher, enqueuer: enqueuer}
}

// PublishImmediate dispatches the event to in-process consumers and waits.
func (b *Bus) PublishImmediate(ctx context.Context, evt Event) error {
	return b.dispatcher.Dispatch(ctx, evt)
}

// EnqueueForOutbox wraps the event in an outbox envelope due immediately.
func (b *Bus) EnqueueForOutbox(ctx context.Context, tx *gorm.DB, evt Event) error {
	return b.EnqueueForOutboxAt(ctx, tx, evt, time.Now().UTC())
}

// EnqueueForOutboxAt wraps the event in an outbox envelope that becomes
// eligible for delivery at scheduledAt.
func (b *Bus) EnqueueForOutboxAt(ctx context.Context, tx *gorm.DB, evt Event, scheduledAt time.Time) error {
	content, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", evt.EventName(), err)
	}
	return b.enqueuer.Enqueue(ctx, tx, AliasPrefix+evt.EventName(), content, scheduledAt)
}
