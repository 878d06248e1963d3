package order

import (
	"errors"
	"time"
)

// Status represents the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusCancelled Status = "cancelled"
)

var (
	ErrEmptyOrder        = errors.New("order has no lines")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Line is one purchased item within an order.
type Line struct {
	ID             int64  `json:"id,string"`
	ProductID      int64  `json:"product_id,string"`
	SKU            string `json:"sku"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// Order is the core ordering entity.
type Order struct {
	ID         int64  `json:"id,string"`
	CustomerID int64  `json:"customer_id,string"`
	Status     Status `json:"status"`
	Currency   string `json:"currency"`
	TotalCents int64  `json:"total_cents"`
	Lines      []Line `json:"lines"`

	CreatedBy  *int64 `json:"created_by,omitempty"`
	ModifiedBy *int64 `json:"modified_by,omitempty"`
	Version    int64  `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewOrder creates a pending order and computes its total from the lines.
func NewOrder(id, customerID int64, currency string, lines []Line) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}

	var total int64
	for _, l := range lines {
		total += l.UnitPriceCents * int64(l.Quantity)
	}

	now := time.Now().UTC()
	return &Order{
		ID:         id,
		CustomerID: customerID,
		Status:     StatusPending,
		Currency:   currency,
		TotalCents: total,
		Lines:      lines,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// MarkPaid transitions a pending order to paid.
func (o *Order) MarkPaid() error {
	if o.Status != StatusPending {
		return ErrInvalidTransition
	}
	o.Status = StatusPaid
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkShipped transitions a paid order to shipped.
func (o *Order) MarkShipped() error {
	if o.Status != StatusPaid {
		return ErrInvalidTransition
	}
	o.Status = StatusShipped
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// Cancel aborts an order that has not shipped yet.
func (o *Order) Cancel() error {
	if o.Status != StatusPending && o.Status != StatusPaid {
		return ErrInvalidTransition
	}
	o.Status = StatusCancelled
	o.UpdatedAt = time.Now().UTC()
	return nil
}
