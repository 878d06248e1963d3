package audit_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/merchantlabs/backoffice/internal/audit"
	"github.com/merchantlabs/backoffice/pkg/snowflake"
	"github.com/merchantlabs/backoffice/pkg/testhelper"
)

type widget struct {
	ID    int64  `gorm:"primaryKey"`
	Name  string `gorm:"type:varchar(64)"`
	Price int64

	audit.Meta
}

func (widget) TableName() string { return "widgets" }

func (w *widget) AuditResource() (string, string) {
	return "widget", strconv.FormatInt(w.ID, 10)
}

type signup struct {
	ID    int64  `gorm:"primaryKey"`
	Email string `gorm:"type:varchar(255)"`

	audit.Meta
}

func (signup) TableName() string { return "signups" }

func (s *signup) AuditResource() (string, string) {
	return "signup", strconv.FormatInt(s.ID, 10)
}

func setupAuditDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	pg, err := testhelper.SetupPostgres(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Teardown(context.Background()) })

	gdb, err := gorm.Open(postgres.Open(pg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&widget{}, &signup{}, &audit.Log{}))

	node, err := snowflake.NewNode()
	require.NoError(t, err)

	plugin := audit.New(node, zap.NewNop(), audit.WithPreAuthTables(signup{}.TableName()))
	require.NoError(t, gdb.Use(plugin))

	return gdb
}

func actorCtx(userID int64) context.Context {
	ctx := audit.WithActor(context.Background(), userID)
	return audit.WithRequestInfo(ctx, audit.RequestInfo{IPAddress: "198.51.100.4", UserAgent: "go-test"})
}

func fetchEntries(t *testing.T, gdb *gorm.DB, entityID string) []audit.Log {
	t.Helper()
	var entries []audit.Log
	require.NoError(t, gdb.Where("entity_id = ?", entityID).Order("occurred_at").Find(&entries).Error)
	return entries
}

func TestAudit_CreateStampsActorAndSnapshots(t *testing.T) {
	gdb := setupAuditDB(t)

	w := &widget{ID: 1, Name: "gear", Price: 500}
	require.NoError(t, gdb.WithContext(actorCtx(77)).Create(w).Error)

	require.NotNil(t, w.CreatedBy)
	assert.Equal(t, int64(77), *w.CreatedBy)
	require.NotNil(t, w.ModifiedBy)
	assert.Equal(t, int64(77), *w.ModifiedBy)

	entries := fetchEntries(t, gdb, "1")
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, audit.ActionCreate, entry.Action)
	assert.Equal(t, "widget", entry.EntityType)
	require.NotNil(t, entry.ActorUserID)
	assert.Equal(t, int64(77), *entry.ActorUserID)
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "198.51.100.4", *entry.IPAddress)

	assert.Equal(t, "gear", entry.NewValues["Name"])
	assert.Contains(t, entry.OldValues, "_empty", "creates have no before image")
}

func TestAudit_UpdateCapturesBeforeAfterAndBumpsVersion(t *testing.T) {
	gdb := setupAuditDB(t)

	w := &widget{ID: 2, Name: "gear", Price: 500}
	require.NoError(t, gdb.WithContext(actorCtx(77)).Create(w).Error)
	require.Equal(t, int64(0), w.Version)

	w.Price = 750
	require.NoError(t, gdb.WithContext(actorCtx(88)).
		Model(w).
		Select("*").
		Omit("id", "created_by").
		Updates(w).Error)

	assert.Equal(t, int64(1), w.Version)
	require.NotNil(t, w.ModifiedBy)
	assert.Equal(t, int64(88), *w.ModifiedBy)

	entries := fetchEntries(t, gdb, "2")
	require.Len(t, entries, 2)
	update := entries[1]
	assert.Equal(t, audit.ActionUpdate, update.Action)
	assert.EqualValues(t, 500, update.OldValues["Price"])
	assert.EqualValues(t, 750, update.NewValues["Price"])
	require.NotNil(t, update.ActorUserID)
	assert.Equal(t, int64(88), *update.ActorUserID)
}

func TestAudit_RepeatedUpdatesIncrementVersion(t *testing.T) {
	gdb := setupAuditDB(t)

	w := &widget{ID: 3, Name: "gear", Price: 100}
	require.NoError(t, gdb.WithContext(actorCtx(1)).Create(w).Error)

	for i := 0; i < 4; i++ {
		w.Price += 10
		require.NoError(t, gdb.WithContext(actorCtx(1)).
			Model(w).
			Select("*").
			Omit("id", "created_by").
			Updates(w).Error)
	}
	assert.Equal(t, int64(4), w.Version)

	var stored widget
	require.NoError(t, gdb.First(&stored, "id = ?", 3).Error)
	assert.Equal(t, int64(4), stored.Version)
}

func TestAudit_DeleteCapturesBeforeImage(t *testing.T) {
	gdb := setupAuditDB(t)

	w := &widget{ID: 4, Name: "doomed", Price: 10}
	require.NoError(t, gdb.WithContext(actorCtx(5)).Create(w).Error)
	require.NoError(t, gdb.WithContext(actorCtx(5)).Delete(&widget{ID: 4}).Error)

	entries := fetchEntries(t, gdb, "4")
	require.Len(t, entries, 2)
	del := entries[1]
	assert.Equal(t, audit.ActionDelete, del.Action)
	assert.Equal(t, "doomed", del.OldValues["Name"])
	assert.Contains(t, del.NewValues, "_empty", "deletes have no after image")
}

func TestAudit_EntriesAreNotRecursivelyAudited(t *testing.T) {
	gdb := setupAuditDB(t)

	w := &widget{ID: 5, Name: "gear", Price: 1}
	require.NoError(t, gdb.WithContext(actorCtx(9)).Create(w).Error)

	var total int64
	require.NoError(t, gdb.Model(&audit.Log{}).Count(&total).Error)
	assert.Equal(t, int64(1), total, "writing an audit row must not audit itself")
}

func TestAudit_PreAuthTableSkippedWithoutActor(t *testing.T) {
	gdb := setupAuditDB(t)

	// Registration path: no actor in context.
	require.NoError(t, gdb.Create(&signup{ID: 10, Email: "a@example.com"}).Error)
	assert.Empty(t, fetchEntries(t, gdb, "10"))

	// The same table is captured once an actor exists.
	require.NoError(t, gdb.WithContext(actorCtx(3)).
		Model(&signup{ID: 10}).
		Update("email", "b@example.com").Error)
	entries := fetchEntries(t, gdb, "10")
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionUpdate, entries[0].Action)
}

func TestAudit_BackgroundWritesHaveNullActor(t *testing.T) {
	gdb := setupAuditDB(t)

	w := &widget{ID: 6, Name: "batch", Price: 9}
	require.NoError(t, gdb.Create(w).Error)

	entries := fetchEntries(t, gdb, "6")
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].ActorUserID)
	assert.Nil(t, w.CreatedBy)
}

func TestAudit_MutationAndEntryCommitTogether(t *testing.T) {
	gdb := setupAuditDB(t)

	require.NoError(t, gdb.Transaction(func(tx *gorm.DB) error {
		return tx.WithContext(actorCtx(2)).Create(&widget{ID: 7, Name: "tx", Price: 3}).Error
	}))

	entries := fetchEntries(t, gdb, "7")
	assert.Len(t, entries, 1)
}
