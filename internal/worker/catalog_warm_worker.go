package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/GTDGit/gtd_bundle/internal/models"
)

// Refresher reloads one product from the storefront.
type Refresher interface {
	Refresh(ctx context.Context, handle string) (*models.Product, error)
}

// CatalogWarmWorker periodically refetches every bundle product so sessions
// rarely wait on the storefront.
type CatalogWarmWorker struct {
	catalog  Refresher
	handles  []string
	interval time.Duration
}

// NewCatalogWarmWorker constructs a CatalogWarmWorker.
func NewCatalogWarmWorker(catalog Refresher, handles []string, interval time.Duration) *CatalogWarmWorker {
	return &CatalogWarmWorker{
		catalog:  catalog,
		handles:  handles,
		interval: interval,
	}
}

// Start warms the catalog immediately and then on every tick until ctx is
// cancelled.
func (w *CatalogWarmWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Int("handles", len(w.handles)).Msg("Starting catalog warm worker")

	w.run(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Catalog warm worker stopped")
			return
		}
	}
}

// run refreshes all handles in parallel and returns how many failed. One
// failing product does not stop the others.
func (w *CatalogWarmWorker) run(ctx context.Context) int {
	start := time.Now()
	failed := make([]bool, len(w.handles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, h := range w.handles {
		g.Go(func() error {
			if _, err := w.catalog.Refresh(gctx, h); err != nil {
				failed[i] = true
				log.Warn().Err(err).Str("handle", h).Msg("Catalog refresh failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, f := range failed {
		if f {
			n++
		}
	}
	log.Debug().Dur("duration", time.Since(start)).Int("failed", n).Msg("Catalog warm completed")
	return n
}
