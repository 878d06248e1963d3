package catalog

import "time"

// ProductCreated is raised when a new product enters the catalog.
type ProductCreated struct {
	ProductID  int64     `json:"product_id,string"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (ProductCreated) EventName() string { return "ProductCreated" }

// ProductPriceChanged is raised when a product's unit price changes.
type ProductPriceChanged struct {
	ProductID     int64     `json:"product_id,string"`
	OldPriceCents int64     `json:"old_price_cents"`
	NewPriceCents int64     `json:"new_price_cents"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (ProductPriceChanged) EventName() string { return "ProductPriceChanged" }
