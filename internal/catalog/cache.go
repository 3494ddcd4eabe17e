// Package catalog memoizes normalized product data by handle.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_bundle/internal/metrics"
	"github.com/GTDGit/gtd_bundle/internal/models"
	"github.com/GTDGit/gtd_bundle/internal/utils"
)

// DefaultFetchTimeout bounds a single product fetch.
const DefaultFetchTimeout = 10 * time.Second

// Fetcher loads a product from the storefront.
type Fetcher interface {
	FetchProduct(ctx context.Context, handle string) (*models.Product, error)
}

// Store is an optional second cache tier shared between instances.
type Store interface {
	Get(ctx context.Context, handle string) (*models.Product, bool, error)
	Set(ctx context.Context, p *models.Product) error
}

// Cache resolves products from memory, then the Store, then the Fetcher.
// Concurrent misses for the same handle are not coalesced; the last write
// wins, which is safe because product payloads are request-idempotent.
type Cache struct {
	mu      sync.RWMutex
	items   map[string]*models.Product
	fetcher Fetcher
	store   Store
	timeout time.Duration
}

// New creates a Cache. store may be nil; timeout <= 0 uses DefaultFetchTimeout.
func New(fetcher Fetcher, store Store, timeout time.Duration) *Cache {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Cache{
		items:   make(map[string]*models.Product),
		fetcher: fetcher,
		store:   store,
		timeout: timeout,
	}
}

func key(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

// Get returns the product for handle. Failures are *utils.FetchError.
func (c *Cache) Get(ctx context.Context, handle string) (*models.Product, error) {
	k := key(handle)
	if k == "" {
		return nil, &utils.FetchError{Handle: handle, Err: errors.New("empty handle")}
	}

	c.mu.RLock()
	p, ok := c.items[k]
	c.mu.RUnlock()
	if ok {
		metrics.CatalogLookups.WithLabelValues(metrics.CatalogHitMemory).Inc()
		return p, nil
	}

	if c.store != nil {
		sp, found, err := c.store.Get(ctx, k)
		if err != nil {
			log.Warn().Err(err).Str("handle", k).Msg("catalog store lookup failed")
		} else if found && Validate(sp) == nil {
			c.put(k, sp)
			metrics.CatalogLookups.WithLabelValues(metrics.CatalogHitRedis).Inc()
			return sp, nil
		}
	}

	return c.fetch(ctx, k)
}

// Refresh fetches handle from the storefront regardless of cached tiers.
func (c *Cache) Refresh(ctx context.Context, handle string) (*models.Product, error) {
	return c.fetch(ctx, key(handle))
}

func (c *Cache) fetch(ctx context.Context, k string) (*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	p, err := c.fetcher.FetchProduct(ctx, k)
	metrics.CatalogFetchDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		err = Validate(p)
	}
	if err != nil {
		metrics.CatalogLookups.WithLabelValues(metrics.CatalogError).Inc()
		var fe *utils.FetchError
		if errors.As(err, &fe) {
			return nil, err
		}
		return nil, &utils.FetchError{Handle: k, Err: err}
	}

	c.put(k, p)
	if c.store != nil {
		if err := c.store.Set(ctx, p); err != nil {
			log.Warn().Err(err).Str("handle", k).Msg("catalog store write failed")
		}
	}
	metrics.CatalogLookups.WithLabelValues(metrics.CatalogFetched).Inc()
	return p, nil
}

// Put stores an inlined product, e.g. one embedded in the storefront page.
func (c *Cache) Put(p *models.Product) error {
	if err := Validate(p); err != nil {
		return err
	}
	c.put(key(p.Handle), p)
	return nil
}

func (c *Cache) put(k string, p *models.Product) {
	c.mu.Lock()
	c.items[k] = p
	c.mu.Unlock()
}

// Invalidate drops handle from the memory tier.
func (c *Cache) Invalidate(handle string) {
	c.mu.Lock()
	delete(c.items, key(handle))
	c.mu.Unlock()
}

// Len returns the number of products held in memory.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Validate checks the structural invariants the engines rely on.
func Validate(p *models.Product) error {
	if p == nil {
		return errors.New("empty product payload")
	}
	if p.Handle == "" {
		return errors.New("product has no handle")
	}
	if len(p.Variants) == 0 {
		return fmt.Errorf("product %q has no variants", p.Handle)
	}
	for _, v := range p.Variants {
		if len(v.Options) != len(p.Options) {
			return fmt.Errorf("product %q variant %d has %d option values, want %d",
				p.Handle, v.ID, len(v.Options), len(p.Options))
		}
	}
	return nil
}
