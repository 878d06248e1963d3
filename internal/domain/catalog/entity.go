package catalog

import (
	"errors"
	"time"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInactiveProduct   = errors.New("product is not active")
)

// Product is the core catalog entity.
// It contains no database tags or infrastructure details.
type Product struct {
	ID          int64  `json:"id,string"`
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Currency    string `json:"currency"`
	Stock       int    `json:"stock"`
	Active      bool   `json:"active"`

	CreatedBy  *int64 `json:"created_by,omitempty"`
	ModifiedBy *int64 `json:"modified_by,omitempty"`
	Version    int64  `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProduct creates an active product with the given identity and price.
func NewProduct(id int64, sku, name, description string, priceCents int64, currency string, stock int) *Product {
	now := time.Now().UTC()
	return &Product{
		ID:          id,
		SKU:         sku,
		Name:        name,
		Description: description,
		PriceCents:  priceCents,
		Currency:    currency,
		Stock:       stock,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ChangePrice sets a new unit price.
func (p *Product) ChangePrice(priceCents int64) {
	p.PriceCents = priceCents
	p.UpdatedAt = time.Now().UTC()
}

// ReserveStock decrements available stock for an order line.
func (p *Product) ReserveStock(qty int) error {
	if !p.Active {
		return ErrInactiveProduct
	}
	if p.Stock < qty {
		return ErrInsufficientStock
	}
	p.Stock -= qty
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Deactivate hides the product from sale without deleting it.
func (p *Product) Deactivate() {
	p.Active = false
	p.UpdatedAt = time.Now().UTC()
}
