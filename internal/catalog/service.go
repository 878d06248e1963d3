package catalog

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/merchantlabs/backoffice/internal/domain/catalog"
	"github.com/merchantlabs/backoffice/internal/event"
	"github.com/merchantlabs/backoffice/pkg/snowflake"
)

var ErrSKUTaken = errors.New("sku already in use")

// productStore is the subset of the catalog repository the service needs,
// with transactional variants for writes that must commit with their events.
type productStore interface {
	FindByID(ctx context.Context, id int64) (*catalog.Product, error)
	FindBySKU(ctx context.Context, sku string) (*catalog.Product, error)
	List(ctx context.Context, limit, offset int) ([]*catalog.Product, error)
	CreateTx(ctx context.Context, tx *gorm.DB, p *catalog.Product) error
	UpdateTx(ctx context.Context, tx *gorm.DB, p *catalog.Product) error
	Delete(ctx context.Context, id int64) error
}

// productCache is a read-through cache for product lookups. Implementations
// treat a disabled cache as a miss on every read.
type productCache interface {
	Get(ctx context.Context, productID int64) (*catalog.Product, error)
	Set(ctx context.Context, p *catalog.Product) error
	Invalidate(ctx context.Context, productID int64) error
}

type Service struct {
	db       *gorm.DB
	products productStore
	cache    productCache
	bus      *event.Bus
	node     *snowflake.Node
	logger   *zap.Logger
}

func NewService(db *gorm.DB, products productStore, cache productCache, bus *event.Bus, node *snowflake.Node, logger *zap.Logger) *Service {
	return &Service{
		db:       db,
		products: products,
		cache:    cache,
		bus:      bus,
		node:     node,
		logger:   logger,
	}
}

type CreateProductInput struct {
	SKU         string
	Name        string
	Description string
	PriceCents  int64
	Currency    string
	Stock       int
}

// CreateProduct inserts a product and enqueues ProductCreated in the same
// transaction, so the announcement cannot outlive a rolled-back insert.
func (s *Service) CreateProduct(ctx context.Context, in CreateProductInput) (*catalog.Product, error) {
	existing, err := s.products.FindBySKU(ctx, in.SKU)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrSKUTaken
	}

	product := catalog.NewProduct(
		s.node.GenerateID(),
		in.SKU,
		in.Name,
		in.Description,
		in.PriceCents,
		in.Currency,
		in.Stock,
	)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.products.CreateTx(ctx, tx, product); err != nil {
			return err
		}
		return s.bus.EnqueueForOutbox(ctx, tx, catalog.ProductCreated{
			ProductID:  product.ID,
			SKU:        product.SKU,
			Name:       product.Name,
			PriceCents: product.PriceCents,
			Currency:   product.Currency,
			OccurredAt: product.CreatedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("product_created",
		zap.Int64("product_id", product.ID),
		zap.String("sku", product.SKU))
	return product, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	if cached, err := s.cache.Get(ctx, id); err != nil {
		s.logger.Warn("product_cache_read_failed", zap.Int64("product_id", id), zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}

	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product != nil {
		if err := s.cache.Set(ctx, product); err != nil {
			s.logger.Warn("product_cache_write_failed", zap.Int64("product_id", id), zap.Error(err))
		}
	}
	return product, nil
}

func (s *Service) ListProducts(ctx context.Context, limit, offset int) ([]*catalog.Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.products.List(ctx, limit, offset)
}

// ChangePrice updates a product's unit price and enqueues ProductPriceChanged
// atomically with the update.
func (s *Service) ChangePrice(ctx context.Context, id, priceCents int64) (*catalog.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, gorm.ErrRecordNotFound
	}

	oldPrice := product.PriceCents
	product.ChangePrice(priceCents)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.products.UpdateTx(ctx, tx, product); err != nil {
			return err
		}
		return s.bus.EnqueueForOutbox(ctx, tx, catalog.ProductPriceChanged{
			ProductID:     product.ID,
			OldPriceCents: oldPrice,
			NewPriceCents: product.PriceCents,
			Currency:      product.Currency,
			OccurredAt:    time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("product_price_changed",
		zap.Int64("product_id", product.ID),
		zap.Int64("old_price_cents", oldPrice),
		zap.Int64("new_price_cents", product.PriceCents))
	return product, nil
}

// DeactivateProduct hides a product from sale without deleting it.
func (s *Service) DeactivateProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, gorm.ErrRecordNotFound
	}

	product.Deactivate()
	if err := s.products.UpdateTx(ctx, nil, product); err != nil {
		return nil, err
	}
	if err := s.cache.Invalidate(ctx, product.ID); err != nil {
		s.logger.Warn("product_cache_invalidate_failed", zap.Int64("product_id", product.ID), zap.Error(err))
	}

	s.logger.Info("product_deactivated", zap.Int64("product_id", product.ID))
	return product, nil
}

// DeleteProduct removes a product permanently. The deletion lands in the
// audit trail like any other change.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if product == nil {
		return gorm.ErrRecordNotFound
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("product_cache_invalidate_failed", zap.Int64("product_id", id), zap.Error(err))
	}
	return nil
}
