package catalog

import "context"

// Repository defines the interface for persisting Product entities.
type Repository interface {
	// FindByID retrieves a product by its ID, nil when absent.
	FindByID(ctx context.Context, id int64) (*Product, error)

	// FindBySKU retrieves a product by SKU, nil when absent.
	FindBySKU(ctx context.Context, sku string) (*Product, error)

	// List retrieves up to limit products ordered by creation time.
	List(ctx context.Context, limit, offset int) ([]*Product, error)

	// Create inserts a new product.
	Create(ctx context.Context, product *Product) error

	// Update persists changes to an existing product.
	Update(ctx context.Context, product *Product) error

	// Delete removes a product.
	Delete(ctx context.Context, id int64) error
}
