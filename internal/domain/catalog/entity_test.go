package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveStock_Decrements(t *testing.T) {
	p := NewProduct(1, "SKU-A", "Widget", "", 1500, "EUR", 10)

	require.NoError(t, p.ReserveStock(4))
	assert.Equal(t, 6, p.Stock)
}

func TestReserveStock_InsufficientStock(t *testing.T) {
	p := NewProduct(1, "SKU-A", "Widget", "", 1500, "EUR", 3)

	err := p.ReserveStock(4)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 3, p.Stock, "failed reservation must not change stock")
}

func TestReserveStock_InactiveProduct(t *testing.T) {
	p := NewProduct(1, "SKU-A", "Widget", "", 1500, "EUR", 10)
	p.Deactivate()

	assert.ErrorIs(t, p.ReserveStock(1), ErrInactiveProduct)
}

func TestChangePrice(t *testing.T) {
	p := NewProduct(1, "SKU-A", "Widget", "", 1500, "EUR", 10)
	p.ChangePrice(1999)
	assert.Equal(t, int64(1999), p.PriceCents)
}
