package ordering

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/merchantlabs/backoffice/internal/domain/catalog"
	"github.com/merchantlabs/backoffice/internal/domain/order"
	"github.com/merchantlabs/backoffice/internal/event"
	"github.com/merchantlabs/backoffice/pkg/snowflake"
)

// fakeTx runs the transaction body with a nil handle and simulates rollback
// semantics: when the body errors, writes recorded during it are discarded.
type fakeTx struct {
	stores []rollbackable
}

type rollbackable interface {
	begin()
	commit()
	rollback()
}

func (f *fakeTx) Transaction(fn func(tx *gorm.DB) error, opts ...*sql.TxOptions) error {
	for _, s := range f.stores {
		s.begin()
	}
	if err := fn(nil); err != nil {
		for _, s := range f.stores {
			s.rollback()
		}
		return err
	}
	for _, s := range f.stores {
		s.commit()
	}
	return nil
}

type mockOrderStore struct {
	orders  map[int64]*order.Order
	staged  []*order.Order
	saveErr error
}

func newMockOrderStore() *mockOrderStore {
	return &mockOrderStore{orders: make(map[int64]*order.Order)}
}

func (m *mockOrderStore) begin()  { m.staged = nil }
func (m *mockOrderStore) commit() {
	for _, o := range m.staged {
		m.orders[o.ID] = o
	}
	m.staged = nil
}
func (m *mockOrderStore) rollback() { m.staged = nil }

func (m *mockOrderStore) FindByID(ctx context.Context, id int64) (*order.Order, error) {
	return m.orders[id], nil
}

func (m *mockOrderStore) ListByCustomer(ctx context.Context, customerID int64, limit int) ([]*order.Order, error) {
	var out []*order.Order
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderStore) CreateTx(ctx context.Context, tx *gorm.DB, o *order.Order) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.staged = append(m.staged, o)
	return nil
}

func (m *mockOrderStore) UpdateTx(ctx context.Context, tx *gorm.DB, o *order.Order) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.staged = append(m.staged, o)
	return nil
}

type mockProductStore struct {
	products map[int64]*catalog.Product
	staged   map[int64]catalog.Product
}

func newMockProductStore(products ...*catalog.Product) *mockProductStore {
	m := &mockProductStore{products: make(map[int64]*catalog.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockProductStore) begin() { m.staged = make(map[int64]catalog.Product) }
func (m *mockProductStore) commit() {
	for id, p := range m.staged {
		copied := p
		m.products[id] = &copied
	}
	m.staged = nil
}
func (m *mockProductStore) rollback() { m.staged = nil }

func (m *mockProductStore) FindByIDTx(ctx context.Context, tx *gorm.DB, id int64) (*catalog.Product, error) {
	if p, ok := m.staged[id]; ok {
		copied := p
		return &copied, nil
	}
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (m *mockProductStore) UpdateTx(ctx context.Context, tx *gorm.DB, p *catalog.Product) error {
	m.staged[p.ID] = *p
	return nil
}

type mockBus struct {
	enqueued  []event.Event
	staged    []event.Event
	published []event.Event
}

func (m *mockBus) begin()  { m.staged = nil }
func (m *mockBus) commit() {
	m.enqueued = append(m.enqueued, m.staged...)
	m.staged = nil
}
func (m *mockBus) rollback() { m.staged = nil }

func (m *mockBus) PublishImmediate(ctx context.Context, evt event.Event) error {
	m.published = append(m.published, evt)
	return nil
}

func (m *mockBus) EnqueueForOutbox(ctx context.Context, tx *gorm.DB, evt event.Event) error {
	m.staged = append(m.staged, evt)
	return nil
}

func testNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode()
	require.NoError(t, err)
	return node
}

func newFixture(t *testing.T, products ...*catalog.Product) (*PlaceOrderUseCase, *mockOrderStore, *mockProductStore, *mockBus) {
	orders := newMockOrderStore()
	store := newMockProductStore(products...)
	bus := &mockBus{}
	tx := &fakeTx{stores: []rollbackable{orders, store, bus}}

	uc := NewPlaceOrderUseCase(tx, orders, store, bus, testNode(t), zap.NewNop())
	return uc, orders, store, bus
}

func TestPlaceOrder_ReservesStockAndEnqueuesEvent(t *testing.T) {
	product := catalog.NewProduct(10, "SKU-A", "Widget", "", 1500, "EUR", 5)
	uc, orders, store, bus := newFixture(t, product)

	placed, err := uc.Execute(context.Background(), PlaceOrderInput{
		CustomerID: 99,
		Currency:   "EUR",
		Lines:      []PlaceOrderLine{{ProductID: 10, Quantity: 2}},
	})
	require.NoError(t, err)
	require.NotNil(t, placed)

	assert.Equal(t, int64(3000), placed.TotalCents)
	assert.Equal(t, order.StatusPending, placed.Status)
	assert.Len(t, orders.orders, 1)
	assert.Equal(t, 3, store.products[10].Stock)

	require.Len(t, bus.enqueued, 1)
	enqueued, ok := bus.enqueued[0].(order.OrderPlaced)
	require.True(t, ok)
	assert.Equal(t, placed.ID, enqueued.OrderID)

	// In-process consumers are notified only after the commit.
	require.Len(t, bus.published, 1)
	assert.IsType(t, order.OrderPlaced{}, bus.published[0])
}

func TestPlaceOrder_UnknownProduct(t *testing.T) {
	uc, orders, _, bus := newFixture(t)

	_, err := uc.Execute(context.Background(), PlaceOrderInput{
		CustomerID: 99,
		Currency:   "EUR",
		Lines:      []PlaceOrderLine{{ProductID: 404, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrProductNotFound)
	assert.Empty(t, orders.orders)
	assert.Empty(t, bus.enqueued)
	assert.Empty(t, bus.published)
}

func TestPlaceOrder_InsufficientStockRollsBack(t *testing.T) {
	a := catalog.NewProduct(10, "SKU-A", "Widget", "", 1500, "EUR", 5)
	b := catalog.NewProduct(11, "SKU-B", "Gadget", "", 4200, "EUR", 1)
	uc, orders, store, bus := newFixture(t, a, b)

	_, err := uc.Execute(context.Background(), PlaceOrderInput{
		CustomerID: 99,
		Currency:   "EUR",
		Lines: []PlaceOrderLine{
			{ProductID: 10, Quantity: 2},
			{ProductID: 11, Quantity: 3},
		},
	})
	require.ErrorIs(t, err, catalog.ErrInsufficientStock)

	// The first line's reservation must not survive the failed transaction.
	assert.Equal(t, 5, store.products[10].Stock)
	assert.Equal(t, 1, store.products[11].Stock)
	assert.Empty(t, orders.orders)
	assert.Empty(t, bus.enqueued)
}

func TestPlaceOrder_EmptyLines(t *testing.T) {
	uc, _, _, _ := newFixture(t)

	_, err := uc.Execute(context.Background(), PlaceOrderInput{CustomerID: 99, Currency: "EUR"})
	assert.ErrorIs(t, err, order.ErrEmptyOrder)
}

func TestPlaceOrder_PersistFailureRollsBackAndSkipsEvents(t *testing.T) {
	product := catalog.NewProduct(10, "SKU-A", "Widget", "", 1500, "EUR", 5)
	uc, orders, store, bus := newFixture(t, product)
	orders.saveErr = errors.New("insert failed")

	_, err := uc.Execute(context.Background(), PlaceOrderInput{
		CustomerID: 99,
		Currency:   "EUR",
		Lines:      []PlaceOrderLine{{ProductID: 10, Quantity: 1}},
	})
	require.Error(t, err)

	assert.Equal(t, 5, store.products[10].Stock)
	assert.Empty(t, bus.enqueued)
	assert.Empty(t, bus.published)
}
