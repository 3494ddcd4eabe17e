package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GTDGit/gtd_bundle/internal/models"
)

// DefaultProductTTL is used when the configured TTL is not positive.
const DefaultProductTTL = 15 * time.Minute

// KV is the subset of RedisClient used by the typed caches.
type KV interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
}

// cachedProduct wraps a product with the time it was stored.
type cachedProduct struct {
	Product  *models.Product `json:"product"`
	CachedAt time.Time       `json:"cachedAt"`
}

// ProductCache stores normalized products in Redis so that instances share
// catalog fetches.
type ProductCache struct {
	kv  KV
	ttl time.Duration
}

// NewProductCache creates a new ProductCache.
func NewProductCache(kv KV, ttl time.Duration) *ProductCache {
	if ttl <= 0 {
		ttl = DefaultProductTTL
	}
	return &ProductCache{kv: kv, ttl: ttl}
}

// keyByHandle returns the Redis key for a product handle.
func (c *ProductCache) keyByHandle(handle string) string {
	return fmt.Sprintf("catalog:product:%s", strings.ToLower(strings.TrimSpace(handle)))
}

// Set stores the product under its handle.
func (c *ProductCache) Set(ctx context.Context, p *models.Product) error {
	jsonData, err := json.Marshal(cachedProduct{Product: p, CachedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}
	if err := c.kv.Set(ctx, c.keyByHandle(p.Handle), string(jsonData), c.ttl); err != nil {
		return fmt.Errorf("failed to set product key: %w", err)
	}
	return nil
}

// Get returns the cached product. A missing key is reported as found=false
// with a nil error.
func (c *ProductCache) Get(ctx context.Context, handle string) (*models.Product, bool, error) {
	jsonData, err := c.kv.Get(ctx, c.keyByHandle(handle))
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var data cachedProduct
	if err := json.Unmarshal([]byte(jsonData), &data); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal product: %w", err)
	}
	if data.Product == nil {
		return nil, false, nil
	}
	return data.Product, true, nil
}

// Delete removes the cached product.
func (c *ProductCache) Delete(ctx context.Context, handle string) error {
	return c.kv.Delete(ctx, c.keyByHandle(handle))
}
