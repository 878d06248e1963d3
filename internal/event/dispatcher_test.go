package event

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func TestDispatcher_DeliversToAllSubscribers(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	var first, second int
	d.Subscribe("ThingHappened", func(ctx context.Context, evt Event) error {
		first++
		return nil
	})
	d.Subscribe("ThingHappened", func(ctx context.Context, evt Event) error {
		second++
		return nil
	})

	require.NoError(t, d.Dispatch(context.Background(), thingHappened{}))
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

func TestDispatcher_NoSubscribersIsSuccess(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	assert.NoError(t, d.Dispatch(context.Background(), thingHappened{}))
}

func TestDispatcher_FailingHandlerDoesNotStopOthers(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	boom := errors.New("boom")
	var later int
	d.Subscribe("ThingHappened", func(ctx context.Context, evt Event) error {
		return boom
	})
	d.Subscribe("ThingHappened", func(ctx context.Context, evt Event) error {
		later++
		return nil
	})

	err := d.Dispatch(context.Background(), thingHappened{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, later)
}

func TestDispatcher_AggregatesAllHandlerErrors(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	d.Subscribe("ThingHappened", func(ctx context.Context, evt Event) error {
		return errors.New("first failure")
	})
	d.Subscribe("ThingHappened", func(ctx context.Context, evt Event) error {
		return errors.New("second failure")
	})

	err := d.Dispatch(context.Background(), thingHappened{})
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
}

func TestDispatcher_RoutesByEventName(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	var calls int
	d.Subscribe("SomethingElse", func(ctx context.Context, evt Event) error {
		calls++
		return nil
	})

	require.NoError(t, d.Dispatch(context.Background(), thingHappened{}))
	assert.Zero(t, calls)
}
