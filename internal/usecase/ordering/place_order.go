package ordering

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/merchantlabs/backoffice/internal/domain/catalog"
	"github.com/merchantlabs/backoffice/internal/domain/order"
	"github.com/merchantlabs/backoffice/internal/event"
	"github.com/merchantlabs/backoffice/pkg/snowflake"
)

var ErrProductNotFound = errors.New("product not found")

// txRunner starts a transaction and passes its handle to fn. *gorm.DB
// satisfies it directly; tests substitute a fake that hands fn a nil handle.
type txRunner interface {
	Transaction(fn func(tx *gorm.DB) error, opts ...*sql.TxOptions) error
}

type orderStore interface {
	FindByID(ctx context.Context, id int64) (*order.Order, error)
	ListByCustomer(ctx context.Context, customerID int64, limit int) ([]*order.Order, error)
	CreateTx(ctx context.Context, tx *gorm.DB, o *order.Order) error
	UpdateTx(ctx context.Context, tx *gorm.DB, o *order.Order) error
}

type productStore interface {
	FindByIDTx(ctx context.Context, tx *gorm.DB, id int64) (*catalog.Product, error)
	UpdateTx(ctx context.Context, tx *gorm.DB, p *catalog.Product) error
}

type eventBus interface {
	PublishImmediate(ctx context.Context, evt event.Event) error
	EnqueueForOutbox(ctx context.Context, tx *gorm.DB, evt event.Event) error
}

// PlaceOrderUseCase accepts a customer's order: it reserves stock, writes the
// order, and enqueues OrderPlaced, all in one transaction. In-process
// consumers are notified synchronously after the commit.
type PlaceOrderUseCase struct {
	tx       txRunner
	orders   orderStore
	products productStore
	bus      eventBus
	node     *snowflake.Node
	logger   *zap.Logger
}

func NewPlaceOrderUseCase(
	tx txRunner,
	orders orderStore,
	products productStore,
	bus eventBus,
	node *snowflake.Node,
	logger *zap.Logger,
) *PlaceOrderUseCase {
	return &PlaceOrderUseCase{
		tx:       tx,
		orders:   orders,
		products: products,
		bus:      bus,
		node:     node,
		logger:   logger,
	}
}

type PlaceOrderLine struct {
	ProductID int64
	Quantity  int
}

type PlaceOrderInput struct {
	CustomerID int64
	Currency   string
	Lines      []PlaceOrderLine
}

func (uc *PlaceOrderUseCase) Execute(ctx context.Context, in PlaceOrderInput) (*order.Order, error) {
	if len(in.Lines) == 0 {
		return nil, order.ErrEmptyOrder
	}

	var placed *order.Order
	err := uc.tx.Transaction(func(tx *gorm.DB) error {
		lines := make([]order.Line, 0, len(in.Lines))
		for _, l := range in.Lines {
			product, err := uc.products.FindByIDTx(ctx, tx, l.ProductID)
			if err != nil {
				return err
			}
			if product == nil {
				return ErrProductNotFound
			}
			if err := product.ReserveStock(l.Quantity); err != nil {
				return err
			}
			if err := uc.products.UpdateTx(ctx, tx, product); err != nil {
				return err
			}
			lines = append(lines, order.Line{
				ID:             uc.node.GenerateID(),
				ProductID:      product.ID,
				SKU:            product.SKU,
				Quantity:       l.Quantity,
				UnitPriceCents: product.PriceCents,
			})
		}

		entity, err := order.NewOrder(uc.node.GenerateID(), in.CustomerID, in.Currency, lines)
		if err != nil {
			return err
		}
		if err := uc.orders.CreateTx(ctx, tx, entity); err != nil {
			return err
		}
		if err := uc.bus.EnqueueForOutbox(ctx, tx, order.OrderPlaced{
			OrderID:    entity.ID,
			CustomerID: entity.CustomerID,
			TotalCents: entity.TotalCents,
			Currency:   entity.Currency,
			OccurredAt: entity.CreatedAt,
		}); err != nil {
			return err
		}

		placed = entity
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The transaction is committed; in-process consumers see the final state.
	if err := uc.bus.PublishImmediate(ctx, order.OrderPlaced{
		OrderID:    placed.ID,
		CustomerID: placed.CustomerID,
		TotalCents: placed.TotalCents,
		Currency:   placed.Currency,
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		uc.logger.Warn("order_placed_consumers_failed",
			zap.Int64("order_id", placed.ID),
			zap.Error(err))
	}

	uc.logger.Info("order_placed",
		zap.Int64("order_id", placed.ID),
		zap.Int64("customer_id", placed.CustomerID),
		zap.Int64("total_cents", placed.TotalCents))
	return placed, nil
}
