// Package outbox implements the transactional outbox: durable event
// envelopes written in the same transaction as the business change that
// produced them, delivered asynchronously with at-least-once semantics.
package outbox

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	// StatusPending marks a message that has never been delivered.
	StatusPending Status = "pending"
	// StatusProcessed marks a successfully delivered message.
	StatusProcessed Status = "processed"
	// StatusFailed marks a delivery failure. Failed is retry-eligible, not
	// terminal: the message is re-selected once its backoff window elapses.
	StatusFailed Status = "failed"
)

// Message is a durable envelope for a not-yet-delivered event. It is created
// inside the producing transaction, mutated only by the publisher, and
// destroyed only by the retention sweeper once processed.
type Message struct {
	ID          int64          `gorm:"primaryKey"`
	Type        string         `gorm:"type:varchar(255);not null"`
	Content     datatypes.JSON `gorm:"type:jsonb;not null"`
	Status      Status         `gorm:"type:varchar(20);not null;index:idx_outbox_due,priority:1"`
	ScheduledAt time.Time      `gorm:"not null;index:idx_outbox_due,priority:2"`
	RetryCount  int            `gorm:"not null;default:0"`
	LastError   *string        `gorm:"type:text"`
	ProcessedAt *time.Time
	CreatedAt   time.Time
}

func (Message) TableName() string {
	return "outbox_messages"
}

// maxBackoffShift caps retry delay at 2^6 = 64 minutes.
const maxBackoffShift = 6

// Backoff returns the delay before the next delivery attempt after the given
// number of failures: min(2^retryCount, 64) minutes.
func Backoff(retryCount int) time.Duration {
	shift := retryCount
	if shift < 0 {
		shift = 0
	}
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	return time.Duration(1<<shift) * time.Minute
}
