package ordering

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/merchantlabs/backoffice/internal/domain/order"
)

func newStatusFixture(t *testing.T, existing *order.Order) (*UpdateStatusUseCase, *mockOrderStore, *mockBus) {
	t.Helper()
	orders := newMockOrderStore()
	if existing != nil {
		orders.orders[existing.ID] = existing
	}
	bus := &mockBus{}
	tx := &fakeTx{stores: []rollbackable{orders, bus}}

	return NewUpdateStatusUseCase(tx, orders, bus, zap.NewNop()), orders, bus
}

func TestMarkPaid_EnqueuesAndPublishesStatusChange(t *testing.T) {
	existing, err := order.NewOrder(1, 99, "EUR", testOrderLines())
	require.NoError(t, err)
	uc, _, bus := newStatusFixture(t, existing)

	updated, err := uc.MarkPaid(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, updated.Status)

	require.Len(t, bus.enqueued, 1)
	changed, ok := bus.enqueued[0].(order.OrderStatusChanged)
	require.True(t, ok)
	assert.Equal(t, order.StatusPending, changed.OldStatus)
	assert.Equal(t, order.StatusPaid, changed.NewStatus)

	require.Len(t, bus.published, 1)
	assert.Equal(t, changed.OrderID, bus.published[0].(order.OrderStatusChanged).OrderID)
}

func TestMarkShipped_RejectsInvalidTransition(t *testing.T) {
	existing, err := order.NewOrder(1, 99, "EUR", testOrderLines())
	require.NoError(t, err)
	uc, _, bus := newStatusFixture(t, existing)

	_, err = uc.MarkShipped(context.Background(), 1)
	require.ErrorIs(t, err, order.ErrInvalidTransition)
	assert.Empty(t, bus.enqueued)
	assert.Empty(t, bus.published)
}

func TestTransition_UnknownOrder(t *testing.T) {
	uc, _, _ := newStatusFixture(t, nil)

	_, err := uc.Cancel(context.Background(), 404)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func testOrderLines() []order.Line {
	return []order.Line{{ID: 1, ProductID: 10, SKU: "SKU-A", Quantity: 1, UnitPriceCents: 1500}}
}
