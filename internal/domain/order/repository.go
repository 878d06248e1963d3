package order

import "context"

// Repository defines the interface for persisting Order entities.
type Repository interface {
	// FindByID retrieves an order with its lines, nil when absent.
	FindByID(ctx context.Context, id int64) (*Order, error)

	// ListByCustomer retrieves up to limit orders for a customer, newest first.
	ListByCustomer(ctx context.Context, customerID int64, limit int) ([]*Order, error)

	// Create inserts a new order with its lines.
	Create(ctx context.Context, o *Order) error

	// Update persists changes to the order row; lines are immutable.
	Update(ctx context.Context, o *Order) error
}
