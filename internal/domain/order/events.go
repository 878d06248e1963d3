package order

import "time"

// OrderPlaced is raised when a customer's order is accepted.
type OrderPlaced struct {
	OrderID    int64     `json:"order_id,string"`
	CustomerID int64     `json:"customer_id,string"`
	TotalCents int64     `json:"total_cents"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (OrderPlaced) EventName() string { return "OrderPlaced" }

// OrderStatusChanged is raised on every order lifecycle transition.
type OrderStatusChanged struct {
	OrderID    int64     `json:"order_id,string"`
	OldStatus  Status    `json:"old_status"`
	NewStatus  Status    `json:"new_status"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (OrderStatusChanged) EventName() string { return "OrderStatusChanged" }
