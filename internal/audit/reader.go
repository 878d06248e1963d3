package audit

import (
	"context"

	"gorm.io/gorm"
)

// Reader serves audit trail queries for the back office UI.
type Reader struct {
	db *gorm.DB
}

func NewReader(db *gorm.DB) *Reader {
	return &Reader{db: db}
}

// ListRecent returns the newest audit entries, optionally filtered by entity
// type or a specific entity.
func (r *Reader) ListRecent(ctx context.Context, entityType, entityID string, limit int) ([]Log, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	q := r.db.WithContext(ctx).Model(&Log{})
	if entityType != "" {
		q = q.Where("entity_type = ?", entityType)
	}
	if entityID != "" {
		q = q.Where("entity_id = ?", entityID)
	}

	var entries []Log
	err := q.Order("occurred_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}
