package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/gtd_bundle/internal/utils"
)

var startTime = time.Now()

// StorefrontHealth reports whether the storefront answered the last fetch.
type StorefrontHealth interface {
	Healthy() bool
}

// Pinger checks an optional backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStats are the counters reported by the health endpoint.
type HealthStats interface {
	ActiveSessions() int
}

// CatalogStats reports the size of the in-memory catalog.
type CatalogStats interface {
	Len() int
}

// HealthHandler provides health endpoint.
type HealthHandler struct {
	storefront StorefrontHealth
	sessions   HealthStats
	catalog    CatalogStats
	redis      Pinger
}

// NewHealthHandler creates a new HealthHandler. redis may be nil.
func NewHealthHandler(storefront StorefrontHealth, sessions HealthStats, catalog CatalogStats, redis Pinger) *HealthHandler {
	return &HealthHandler{storefront: storefront, sessions: sessions, catalog: catalog, redis: redis}
}

// GetHealth responds with service, storefront and cache status.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	status := "healthy"

	storefrontStatus := "connected"
	if !h.storefront.Healthy() {
		storefrontStatus = "degraded"
		status = "degraded"
	}

	redisStatus := "disabled"
	if h.redis != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		redisStatus = "connected"
		if err := h.redis.Ping(ctx); err != nil {
			redisStatus = "disconnected"
			status = "degraded"
		}
	}

	utils.Success(c, 200, "Service is "+status, gin.H{
		"status":         status,
		"version":        "1.0.0",
		"uptime":         int(time.Since(startTime).Seconds()),
		"activeSessions": h.sessions.ActiveSessions(),
		"cachedProducts": h.catalog.Len(),
		"storefront":     gin.H{"status": storefrontStatus},
		"redis":          gin.H{"status": redisStatus},
	})
}
