package outbox

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/merchantlabs/backoffice/pkg/snowflake"
)

// Store is the durable outbox message store.
//
// Enqueue runs inside the caller's transaction; all other operations commit
// independently, one small transaction per message, so a long-lived
// transaction is never held across an external dispatch call.
type Store interface {
	Enqueue(ctx context.Context, tx *gorm.DB, discriminator string, content []byte, scheduledAt time.Time) error
	FetchDue(ctx context.Context, limit int) ([]Message, error)
	MarkProcessed(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, msg *Message, cause error) error
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormStore struct {
	db   *gorm.DB
	node *snowflake.Node
}

func NewGormStore(db *gorm.DB, node *snowflake.Node) *GormStore {
	return &GormStore{db: db, node: node}
}

// Enqueue persists a pending envelope. Passing the business transaction as tx
// makes the envelope and the business change commit atomically or not at all.
func (s *GormStore) Enqueue(ctx context.Context, tx *gorm.DB, discriminator string, content []byte, scheduledAt time.Time) error {
	if tx == nil {
		tx = s.db
	}
	now := time.Now().UTC()
	if scheduledAt.IsZero() {
		scheduledAt = now
	}

	msg := Message{
		ID:          s.node.GenerateID(),
		Type:        discriminator,
		Content:     content,
		Status:      StatusPending,
		ScheduledAt: scheduledAt.UTC(),
		CreatedAt:   now,
	}

	if err := tx.WithContext(ctx).Create(&msg).Error; err != nil {
		return fmt.Errorf("enqueue outbox message: %w", err)
	}
	return nil
}

// FetchDue selects up to limit messages eligible for delivery, oldest-due
// first to bound worst-case staleness. A message is eligible when it is not
// processed and its schedule has elapsed.
func (s *GormStore) FetchDue(ctx context.Context, limit int) ([]Message, error) {
	var msgs []Message
	err := s.db.WithContext(ctx).
		Where("status <> ? AND scheduled_at <= ?", StatusProcessed, time.Now().UTC()).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("fetch due outbox messages: %w", err)
	}
	return msgs, nil
}

func (s *GormStore) MarkProcessed(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Model(&Message{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       StatusProcessed,
			"processed_at": now,
			"last_error":   nil,
		}).Error
}

// MarkFailed records a delivery failure and reschedules the message with
// capped exponential backoff. The passed message is updated in place so the
// caller observes the new retry state.
func (s *GormStore) MarkFailed(ctx context.Context, msg *Message, cause error) error {
	retries := msg.RetryCount + 1
	next := time.Now().UTC().Add(Backoff(retries))
	errMsg := cause.Error()

	err := s.db.WithContext(ctx).Model(&Message{}).
		Where("id = ?", msg.ID).
		Updates(map[string]any{
			"status":       StatusFailed,
			"retry_count":  retries,
			"last_error":   errMsg,
			"scheduled_at": next,
		}).Error
	if err != nil {
		return fmt.Errorf("mark outbox message failed: %w", err)
	}

	msg.Status = StatusFailed
	msg.RetryCount = retries
	msg.LastError = &errMsg
	msg.ScheduledAt = next
	return nil
}

// DeleteProcessedBefore removes processed messages older than cutoff.
// Pending and failed messages are never deleted regardless of age.
func (s *GormStore) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", StatusProcessed, cutoff).
		Delete(&Message{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
