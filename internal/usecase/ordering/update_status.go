package ordering

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/merchantlabs/backoffice/internal/domain/order"
)

var ErrOrderNotFound = errors.New("order not found")

// UpdateStatusUseCase drives order lifecycle transitions. Every transition
// enqueues OrderStatusChanged atomically with the update and then notifies
// in-process consumers.
type UpdateStatusUseCase struct {
	tx     txRunner
	orders orderStore
	bus    eventBus
	logger *zap.Logger
}

func NewUpdateStatusUseCase(
	tx txRunner,
	orders orderStore,
	bus eventBus,
	logger *zap.Logger,
) *UpdateStatusUseCase {
	return &UpdateStatusUseCase{
		tx:     tx,
		orders: orders,
		bus:    bus,
		logger: logger,
	}
}

func (uc *UpdateStatusUseCase) MarkPaid(ctx context.Context, orderID int64) (*order.Order, error) {
	return uc.transition(ctx, orderID, (*order.Order).MarkPaid)
}

func (uc *UpdateStatusUseCase) MarkShipped(ctx context.Context, orderID int64) (*order.Order, error) {
	return uc.transition(ctx, orderID, (*order.Order).MarkShipped)
}

func (uc *UpdateStatusUseCase) Cancel(ctx context.Context, orderID int64) (*order.Order, error) {
	return uc.transition(ctx, orderID, (*order.Order).Cancel)
}

func (uc *UpdateStatusUseCase) Get(ctx context.Context, orderID int64) (*order.Order, error) {
	return uc.orders.FindByID(ctx, orderID)
}

func (uc *UpdateStatusUseCase) ListByCustomer(ctx context.Context, customerID int64, limit int) ([]*order.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return uc.orders.ListByCustomer(ctx, customerID, limit)
}

func (uc *UpdateStatusUseCase) transition(ctx context.Context, orderID int64, apply func(*order.Order) error) (*order.Order, error) {
	entity, err := uc.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, ErrOrderNotFound
	}

	oldStatus := entity.Status
	if err := apply(entity); err != nil {
		return nil, err
	}

	evt := order.OrderStatusChanged{
		OrderID:    entity.ID,
		OldStatus:  oldStatus,
		NewStatus:  entity.Status,
		OccurredAt: time.Now().UTC(),
	}

	err = uc.tx.Transaction(func(tx *gorm.DB) error {
		if err := uc.orders.UpdateTx(ctx, tx, entity); err != nil {
			return err
		}
		return uc.bus.EnqueueForOutbox(ctx, tx, evt)
	})
	if err != nil {
		return nil, err
	}

	if err := uc.bus.PublishImmediate(ctx, evt); err != nil {
		uc.logger.Warn("order_status_consumers_failed",
			zap.Int64("order_id", entity.ID),
			zap.Error(err))
	}

	uc.logger.Info("order_status_changed",
		zap.Int64("order_id", entity.ID),
		zap.String("old_status", string(oldStatus)),
		zap.String("new_status", string(entity.Status)))
	return entity, nil
}
