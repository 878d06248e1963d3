// Package audit captures a verifiable before/after snapshot of every
// persisted entity mutation, written in the same transaction as the mutation
// it describes.
package audit

import (
	"context"
	"time"

	"gorm.io/datatypes"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Log is an immutable record of a single entity mutation. Rows are append
// only: never updated, never deleted by this subsystem.
type Log struct {
	ID          int64             `gorm:"primaryKey"`
	EntityType  string            `gorm:"type:varchar(255);not null;index:idx_audit_entity,priority:1"`
	EntityID    string            `gorm:"type:varchar(255);not null;index:idx_audit_entity,priority:2"`
	Action      Action            `gorm:"type:varchar(20);not null"`
	ActorUserID *int64            `gorm:"column:actor_user_id"`
	OldValues   datatypes.JSONMap `gorm:"type:jsonb;not null"`
	NewValues   datatypes.JSONMap `gorm:"type:jsonb;not null"`
	IPAddress   *string           `gorm:"type:varchar(64)"`
	UserAgent   *string           `gorm:"type:text"`
	OccurredAt  time.Time         `gorm:"not null;index"`
}

func (Log) TableName() string {
	return "audit_logs"
}

// Meta is embedded by auditable models. The interceptor stamps the actor
// columns and bumps Version on every update; Version supports
// optimistic-concurrency-style auditing, not locking.
type Meta struct {
	CreatedBy  *int64 `gorm:"column:created_by" json:"created_by"`
	ModifiedBy *int64 `gorm:"column:modified_by" json:"modified_by"`
	Version    int64  `gorm:"column:version;not null;default:0" json:"version"`
}

func (m *Meta) AuditMeta() *Meta { return m }

// Auditable is implemented by models whose mutations are captured. Audit logs
// and outbox messages deliberately do not implement it, which is what keeps
// the trail from recursively auditing itself.
type Auditable interface {
	// AuditResource identifies the audited entity kind and instance.
	AuditResource() (entityType string, entityID string)
	AuditMeta() *Meta
}

// placeholderKey satisfies the not-null constraint on the value columns when
// a side of the snapshot is legitimately empty (creates and deletes).
const placeholderKey = "_empty"

func placeholder() map[string]any {
	return map[string]any{placeholderKey: true}
}

// newEntry builds one audit row. Actor and provenance come from the request
// context; both are nullable for unauthenticated and background mutations.
func newEntry(ctx context.Context, id int64, action Action, entityType, entityID string, oldValues, newValues map[string]any) *Log {
	if len(oldValues) == 0 {
		oldValues = placeholder()
	}
	if len(newValues) == 0 {
		newValues = placeholder()
	}

	entry := &Log{
		ID:         id,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		OldValues:  datatypes.JSONMap(oldValues),
		NewValues:  datatypes.JSONMap(newValues),
		OccurredAt: time.Now().UTC(),
	}

	if actor, ok := ActorFrom(ctx); ok {
		entry.ActorUserID = &actor
	}
	if info, ok := RequestInfoFrom(ctx); ok {
		if info.IPAddress != "" {
			ip := info.IPAddress
			entry.IPAddress = &ip
		}
		if info.UserAgent != "" {
			ua := info.UserAgent
			entry.UserAgent = &ua
		}
	}
	return entry
}
