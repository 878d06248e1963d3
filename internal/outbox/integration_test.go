package outbox_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/merchantlabs/backoffice/internal/event"
	"github.com/merchantlabs/backoffice/internal/outbox"
	"github.com/merchantlabs/backoffice/pkg/snowflake"
	"github.com/merchantlabs/backoffice/pkg/testhelper"
)

type pingEvent struct {
	N int `json:"n"`
}

func (pingEvent) EventName() string { return "Ping" }

func setupOutboxDB(t *testing.T) (*gorm.DB, *outbox.GormStore) {
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
	require.NoError(t, gdb.AutoMigrate(&outbox.Message{}))

	node, err := snowflake.NewNode()
	require.NoError(t, err)

	return gdb, outbox.NewGormStore(gdb, node)
}

func TestGormStore_EnqueueInsideRolledBackTransaction(t *testing.T) {
	gdb, store := setupOutboxDB(t)
	ctx := context.Background()

	sentinel := errors.New("business failure")
	err := gdb.Transaction(func(tx *gorm.DB) error {
		if err := store.Enqueue(ctx, tx, "Event:Ping", []byte(`{"n":1}`), time.Time{}); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	var count int64
	require.NoError(t, gdb.Model(&outbox.Message{}).Count(&count).Error)
	assert.Zero(t, count, "rolled back transaction must leave no envelope behind")
}

func TestGormStore_EnqueueCommitsWithTransaction(t *testing.T) {
	gdb, store := setupOutboxDB(t)
	ctx := context.Background()

	err := gdb.Transaction(func(tx *gorm.DB) error {
		return store.Enqueue(ctx, tx, "Event:Ping", []byte(`{"n":1}`), time.Time{})
	})
	require.NoError(t, err)

	msgs, err := store.FetchDue(ctx, outbox.BatchSize)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Event:Ping", msgs[0].Type)
	assert.Equal(t, outbox.StatusPending, msgs[0].Status)
}

func TestPublisher_EndToEndDelivery(t *testing.T) {
	gdb, store := setupOutboxDB(t)
	ctx := context.Background()

	require.NoError(t, store.Enqueue(ctx, nil, "Event:Ping", []byte(`{"n":7}`), time.Time{}))

	registry := event.NewRegistry()
	event.RegisterJSON[pingEvent](registry)
	dispatcher := event.NewDispatcher(zap.NewNop())

	var got []pingEvent
	dispatcher.Subscribe("Ping", func(ctx context.Context, evt event.Event) error {
		got = append(got, evt.(pingEvent))
		return nil
	})

	pub := outbox.NewPublisher(store, registry, dispatcher, zap.NewNop())
	require.NoError(t, pub.ProcessMessages(ctx))

	require.Len(t, got, 1)
	assert.Equal(t, 7, got[0].N)

	var msg outbox.Message
	require.NoError(t, gdb.First(&msg).Error)
	assert.Equal(t, outbox.StatusProcessed, msg.Status)
	assert.NotNil(t, msg.ProcessedAt)

	// Processed messages are not re-fetched.
	due, err := store.FetchDue(ctx, outbox.BatchSize)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestPublisher_FailureReschedulesWithBackoff(t *testing.T) {
	gdb, store := setupOutboxDB(t)
	ctx := context.Background()

	require.NoError(t, store.Enqueue(ctx, nil, "Event:Ping", []byte(`{"n":1}`), time.Time{}))

	registry := event.NewRegistry()
	event.RegisterJSON[pingEvent](registry)
	dispatcher := event.NewDispatcher(zap.NewNop())
	dispatcher.Subscribe("Ping", func(ctx context.Context, evt event.Event) error {
		return errors.New("consumer down")
	})

	pub := outbox.NewPublisher(store, registry, dispatcher, zap.NewNop())
	before := time.Now().UTC()
	require.NoError(t, pub.ProcessMessages(ctx))

	var msg outbox.Message
	require.NoError(t, gdb.First(&msg).Error)
	assert.Equal(t, outbox.StatusFailed, msg.Status)
	assert.Equal(t, 1, msg.RetryCount)
	require.NotNil(t, msg.LastError)
	assert.Contains(t, *msg.LastError, "consumer down")
	assert.WithinDuration(t, before.Add(2*time.Minute), msg.ScheduledAt, 10*time.Second)

	// Not due again until the backoff elapses.
	due, err := store.FetchDue(ctx, outbox.BatchSize)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestSweeper_DeletesOnlyOldProcessedMessages(t *testing.T) {
	gdb, store := setupOutboxDB(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-10 * 24 * time.Hour)
	recent := time.Now().UTC().Add(-time.Hour)

	seed := []outbox.Message{
		{ID: 1, Type: "Event:Ping", Content: []byte(`{}`), Status: outbox.StatusProcessed, ScheduledAt: old, ProcessedAt: &old, CreatedAt: old},
		{ID: 2, Type: "Event:Ping", Content: []byte(`{}`), Status: outbox.StatusProcessed, ScheduledAt: recent, ProcessedAt: &recent, CreatedAt: recent},
		{ID: 3, Type: "Event:Ping", Content: []byte(`{}`), Status: outbox.StatusPending, ScheduledAt: old, CreatedAt: old},
		{ID: 4, Type: "Event:Ping", Content: []byte(`{}`), Status: outbox.StatusFailed, ScheduledAt: old, RetryCount: 12, CreatedAt: old},
	}
	require.NoError(t, gdb.Create(&seed).Error)

	sweeper := outbox.NewSweeper(store, zap.NewNop())
	deleted, err := sweeper.CleanupOldMessages(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining []outbox.Message
	require.NoError(t, gdb.Order("id").Find(&remaining).Error)
	require.Len(t, remaining, 3)
	assert.Equal(t, int64(2), remaining[0].ID)
	assert.Equal(t, int64(3), remaining[1].ID, "pending messages survive regardless of age")
	assert.Equal(t, int64(4), remaining[2].ID, "failed messages survive regardless of age")
}
