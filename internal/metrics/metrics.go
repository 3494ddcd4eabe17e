// Package metrics exposes the configurator's Prometheus collectors.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Catalog lookup outcomes.
const (
	CatalogHitMemory = "memory"
	CatalogHitRedis  = "redis"
	CatalogFetched   = "fetched"
	CatalogError     = "error"
)

var (
	// CatalogLookups counts product lookups by the tier that answered.
	CatalogLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bundle_catalog_lookups_total",
			Help: "Product lookups by answering tier",
		},
		[]string{"result"},
	)

	// CatalogFetchDuration observes storefront product fetch latency.
	CatalogFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bundle_catalog_fetch_duration_seconds",
			Help:    "Latency of product fetches from the storefront",
			Buckets: prometheus.DefBuckets,
		},
	)

	// LockFallbacks counts slots whose product could not honor the size lock.
	LockFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bundle_lock_fallbacks_total",
			Help: "Slots that fell back to their first available variant because no variant matched the locked size",
		},
		[]string{"handle"},
	)

	// StaleEvents counts events discarded because the session had moved on.
	StaleEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bundle_stale_events_total",
			Help: "Events discarded because their guard no longer matched the session position",
		},
	)

	// Checkouts counts bundle submissions by outcome.
	Checkouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bundle_checkouts_total",
			Help: "Bundle submissions to the cart by outcome",
		},
		[]string{"result"},
	)

	// DiscountApplications counts voucher applications by outcome.
	DiscountApplications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bundle_discount_applications_total",
			Help: "Voucher applications after checkout by outcome",
		},
		[]string{"result"},
	)

	// PricingFailures counts quotes rejected for lack of pricing data.
	PricingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bundle_pricing_failures_total",
			Help: "Summary entries that could not be priced",
		},
	)

	// ActiveSessions reports the number of live configurator sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bundle_active_sessions",
			Help: "Configurator sessions currently held in memory",
		},
	)
)

// Handler serves the Prometheus exposition format.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
