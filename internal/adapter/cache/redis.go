package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/merchantlabs/backoffice/internal/config"
	"github.com/merchantlabs/backoffice/internal/domain/catalog"
	"github.com/merchantlabs/backoffice/internal/event"
)

const productTTL = 10 * time.Minute

// ProductCache is a read-through cache for catalog products. It subscribes
// to price changes so stale entries are dropped as soon as the change event
// is delivered.
type ProductCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewProductCache returns nil when Redis is not configured; callers treat a
// nil cache as a miss on every read.
func NewProductCache(cfg *config.Config, logger *zap.Logger) *ProductCache {
	if cfg.RedisAddr == "" {
		logger.Info("product_cache_disabled")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &ProductCache{client: client, logger: logger}
}

func key(productID int64) string {
	return fmt.Sprintf("product:%d", productID)
}

func (c *ProductCache) Get(ctx context.Context, productID int64) (*catalog.Product, error) {
	if c == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, key(productID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var product catalog.Product
	if err := json.Unmarshal(raw, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *ProductCache) Set(ctx context.Context, product *catalog.Product) error {
	if c == nil || product == nil {
		return nil
	}
	raw, err := json.Marshal(product)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(product.ID), raw, productTTL).Err()
}

func (c *ProductCache) Invalidate(ctx context.Context, productID int64) error {
	if c == nil {
		return nil
	}
	return c.client.Del(ctx, key(productID)).Err()
}

// Register subscribes cache invalidation to catalog change events.
func (c *ProductCache) Register(d *event.Dispatcher) {
	if c == nil {
		return
	}
	d.Subscribe(catalog.ProductPriceChanged{}.EventName(), func(ctx context.Context, evt event.Event) error {
		changed, ok := evt.(catalog.ProductPriceChanged)
		if !ok {
			return nil
		}
		if err := c.Invalidate(ctx, changed.ProductID); err != nil {
			c.logger.Warn("product_cache_invalidate_failed",
				zap.Int64("product_id", changed.ProductID),
				zap.Error(err))
			return err
		}
		return nil
	})
}

func (c *ProductCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
