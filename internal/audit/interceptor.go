package audit

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/merchantlabs/backoffice/pkg/snowflake"
)

const oldValuesKey = "audit:old_values"

// Plugin hooks gorm's write path. For every auditable model it stamps
// creation/modification metadata, bumps the version counter on updates, and
// appends one audit row to the same transaction as the mutation, so both
// commit atomically or not at all.
//
// Capture failures (snapshotting, actor resolution) are swallowed and logged;
// auditing must never abort the business transaction it rides on. A failing
// audit-row write is the one exception: it surfaces as a statement error so
// the transaction rolls back rather than committing unaudited.
type Plugin struct {
	node   *snowflake.Node
	logger *zap.Logger

	// skipTables are never audited: the audit trail itself plus anything the
	// wiring adds (outbox envelopes).
	skipTables map[string]struct{}
	// preAuthTables are skipped when no actor context is established, keeping
	// pre-authentication identity churn out of the trail.
	preAuthTables map[string]struct{}
}

type Option func(*Plugin)

// WithSkipTables excludes tables from capture entirely.
func WithSkipTables(tables ...string) Option {
	return func(p *Plugin) {
		for _, t := range tables {
			p.skipTables[t] = struct{}{}
		}
	}
}

// WithPreAuthTables excludes tables from capture when no actor is established.
func WithPreAuthTables(tables ...string) Option {
	return func(p *Plugin) {
		for _, t := range tables {
			p.preAuthTables[t] = struct{}{}
		}
	}
}

func New(node *snowflake.Node, logger *zap.Logger, opts ...Option) *Plugin {
	p := &Plugin{
		node:   node,
		logger: logger,
		skipTables: map[string]struct{}{
			Log{}.TableName(): {},
		},
		preAuthTables: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Plugin) Name() string { return "audit" }

func (p *Plugin) Initialize(db *gorm.DB) error {
	create := db.Callback().Create()
	if err := create.Before("gorm:create").Register("audit:before_create", p.beforeCreate); err != nil {
		return err
	}
	if err := create.After("gorm:create").Register("audit:after_create", p.afterCreate); err != nil {
		return err
	}

	update := db.Callback().Update()
	if err := update.Before("gorm:update").Register("audit:before_update", p.beforeUpdate); err != nil {
		return err
	}
	if err := update.After("gorm:update").Register("audit:after_update", p.afterUpdate); err != nil {
		return err
	}

	del := db.Callback().Delete()
	if err := del.Before("gorm:delete").Register("audit:before_delete", p.beforeDelete); err != nil {
		return err
	}
	return del.After("gorm:delete").Register("audit:after_delete", p.afterDelete)
}

// target returns the auditable model for the current statement, or false when
// the statement is out of scope for capture.
func (p *Plugin) target(db *gorm.DB) (Auditable, bool) {
	stmt := db.Statement
	if stmt == nil || stmt.Schema == nil {
		return nil, false
	}
	if _, skip := p.skipTables[stmt.Table]; skip {
		return nil, false
	}
	if _, preAuth := p.preAuthTables[stmt.Table]; preAuth {
		if _, ok := ActorFrom(stmt.Context); !ok {
			return nil, false
		}
	}

	a, ok := stmt.Model.(Auditable)
	if !ok {
		return nil, false
	}
	// Batch and criteria-only statements carry no concrete instance to
	// snapshot; those mutations are not captured.
	if _, id := a.AuditResource(); id == "" || id == "0" {
		return nil, false
	}
	return a, true
}

func (p *Plugin) beforeCreate(db *gorm.DB) {
	a, ok := p.target(db)
	if !ok {
		return
	}
	if actor, ok := ActorFrom(db.Statement.Context); ok {
		meta := a.AuditMeta()
		meta.CreatedBy = &actor
		meta.ModifiedBy = &actor
	}
}

func (p *Plugin) afterCreate(db *gorm.DB) {
	if db.Error != nil || db.RowsAffected == 0 {
		return
	}
	a, ok := p.target(db)
	if !ok {
		return
	}
	p.record(db, ActionCreate, a, nil, p.snapshotCurrent(db.Statement.Model))
}

func (p *Plugin) beforeUpdate(db *gorm.DB) {
	a, ok := p.target(db)
	if !ok {
		return
	}

	if old, err := p.loadStored(db, a); err != nil {
		p.logger.Warn("audit_old_values_unavailable",
			zap.String("table", db.Statement.Table),
			zap.Error(err),
		)
	} else {
		db.InstanceSet(oldValuesKey, old)
	}

	meta := a.AuditMeta()
	meta.Version++
	if actor, ok := ActorFrom(db.Statement.Context); ok {
		meta.ModifiedBy = &actor
	}
}

func (p *Plugin) afterUpdate(db *gorm.DB) {
	if db.Error != nil || db.RowsAffected == 0 {
		return
	}
	a, ok := p.target(db)
	if !ok {
		return
	}

	var old map[string]any
	if v, ok := db.InstanceGet(oldValuesKey); ok {
		old, _ = v.(map[string]any)
	}
	p.record(db, ActionUpdate, a, old, p.snapshotCurrent(db.Statement.Model))
}

func (p *Plugin) beforeDelete(db *gorm.DB) {
	a, ok := p.target(db)
	if !ok {
		return
	}
	if old, err := p.loadStored(db, a); err != nil {
		p.logger.Warn("audit_old_values_unavailable",
			zap.String("table", db.Statement.Table),
			zap.Error(err),
		)
	} else {
		db.InstanceSet(oldValuesKey, old)
	}
}

func (p *Plugin) afterDelete(db *gorm.DB) {
	if db.Error != nil || db.RowsAffected == 0 {
		return
	}
	a, ok := p.target(db)
	if !ok {
		return
	}

	var old map[string]any
	if v, ok := db.InstanceGet(oldValuesKey); ok {
		old, _ = v.(map[string]any)
	}
	p.record(db, ActionDelete, a, old, nil)
}

// loadStored re-reads the row as last committed, inside the same transaction,
// to capture the before-image for updates and deletes.
func (p *Plugin) loadStored(db *gorm.DB, a Auditable) (map[string]any, error) {
	_, id := a.AuditResource()

	t := reflect.TypeOf(db.Statement.Model)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	dest := reflect.New(t).Interface()

	err := db.Session(&gorm.Session{NewDB: true, SkipHooks: true}).
		Table(db.Statement.Table).
		Where("id = ?", id).
		Take(dest).Error
	if err != nil {
		return nil, err
	}
	return Snapshot(dest), nil
}

func (p *Plugin) snapshotCurrent(model any) (out map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("audit_snapshot_panic", zap.Any("recover", r))
			out = nil
		}
	}()
	return Snapshot(model)
}

// record appends the audit row to the transaction the mutation runs in.
func (p *Plugin) record(db *gorm.DB, action Action, a Auditable, oldValues, newValues map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("audit_capture_panic", zap.Any("recover", r))
		}
	}()

	entityType, entityID := a.AuditResource()
	entry := newEntry(db.Statement.Context, p.node.GenerateID(), action, entityType, entityID, oldValues, newValues)

	if err := db.Session(&gorm.Session{NewDB: true, SkipHooks: true}).Create(entry).Error; err != nil {
		// The trail must never silently diverge from committed state: surface
		// the write failure so the enclosing transaction rolls back.
		_ = db.AddError(fmt.Errorf("write audit entry for %s %s: %w", entityType, entityID, err))
		p.logger.Error("audit_write_failed",
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}
