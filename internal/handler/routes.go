package handler

import "github.com/gin-gonic/gin"

// RegisterBundleRoutes mounts the configurator API on r. auth authenticates
// the session-scoped routes and operator the checkout audit routes. events
// may be nil.
func RegisterBundleRoutes(r gin.IRouter, h *BundleHandler, events *SSEHandler, auth, operator gin.HandlerFunc) {
	b := r.Group("/bundle")
	b.POST("/sessions", h.CreateSession)

	ops := b.Group("", operator)
	ops.GET("/checkouts", h.ListCheckouts)
	ops.GET("/checkouts/:groupId", h.GetCheckout)
	if events != nil {
		ops.GET("/checkout-events", events.Stream)
	}

	s := b.Group("/session", auth)
	s.GET("", h.GetSession)
	s.POST("/events", h.DispatchEvent)
	s.POST("/checkout", h.Checkout)
}
