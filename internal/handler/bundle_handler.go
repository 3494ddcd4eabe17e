package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_bundle/internal/bundle"
	"github.com/GTDGit/gtd_bundle/internal/middleware"
	"github.com/GTDGit/gtd_bundle/internal/service"
	"github.com/GTDGit/gtd_bundle/internal/utils"
)

// BundleHandler handles the configurator HTTP endpoints.
type BundleHandler struct {
	bundleService *service.BundleService
}

// NewBundleHandler constructs a BundleHandler.
func NewBundleHandler(bundleService *service.BundleService) *BundleHandler {
	return &BundleHandler{bundleService: bundleService}
}

// CreateSessionRequest input
type CreateSessionRequest struct {
	CartToken string `json:"cartToken"`
}

// CreateSession handles POST /v1/bundle/sessions
func (h *BundleHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
			return
		}
	}
	if req.CartToken == "" {
		req.CartToken = c.GetHeader("X-Cart-Token")
	}

	resp, err := h.bundleService.CreateSession(c.Request.Context(), req.CartToken)
	if err != nil {
		h.handleError(c, err, nil)
		return
	}
	utils.Success(c, 201, "Session created", resp)
}

// GetSession handles GET /v1/bundle/session
func (h *BundleHandler) GetSession(c *gin.Context) {
	view, err := h.bundleService.View(c.GetString(middleware.SessionIDKey))
	if err != nil {
		h.handleError(c, err, nil)
		return
	}
	utils.Success(c, 200, "Session retrieved", view)
}

// DispatchEvent handles POST /v1/bundle/session/events
func (h *BundleHandler) DispatchEvent(c *gin.Context) {
	var ev bundle.Event
	if err := c.ShouldBindJSON(&ev); err != nil || ev.Kind == "" {
		utils.Error(c, 400, "INVALID_REQUEST", "Event type is required")
		return
	}

	view, err := h.bundleService.Dispatch(c.Request.Context(), c.GetString(middleware.SessionIDKey), ev)
	if err != nil {
		h.handleError(c, err, view)
		return
	}
	utils.Success(c, 200, "Event applied", view)
}

// Checkout handles POST /v1/bundle/session/checkout
func (h *BundleHandler) Checkout(c *gin.Context) {
	resp, err := h.bundleService.Checkout(c.Request.Context(), c.GetString(middleware.SessionIDKey))
	if err != nil {
		var data interface{}
		if resp != nil {
			data = resp.View
		}
		h.handleError(c, err, data)
		return
	}
	utils.Success(c, 200, "Bundle added to cart", resp)
}

// GetCheckout handles GET /v1/bundle/checkouts/:groupId
func (h *BundleHandler) GetCheckout(c *gin.Context) {
	rows, err := h.bundleService.GetCheckout(c.Request.Context(), c.Param("groupId"))
	if err != nil {
		h.handleError(c, err, nil)
		return
	}
	utils.Success(c, 200, "Checkout retrieved", rows)
}

// ListCheckouts handles GET /v1/bundle/checkouts
func (h *BundleHandler) ListCheckouts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	switch {
	case limit <= 0:
		limit = 50
	case limit > 200:
		limit = 200
	}
	rows, err := h.bundleService.ListCheckouts(c.Request.Context(), limit)
	if err != nil {
		h.handleError(c, err, nil)
		return
	}
	utils.SuccessWithPagination(c, 200, "Checkouts retrieved", rows, 1, limit, len(rows))
}

// handleError maps service errors to HTTP responses. data is the session view
// to render alongside the error, if any.
func (h *BundleHandler) handleError(c *gin.Context, err error, data interface{}) {
	switch {
	case errors.Is(err, utils.ErrSessionNotFound):
		utils.Error(c, 404, utils.ErrSessionNotFound.Error(), "Session not found or expired")
	case errors.Is(err, utils.ErrBundleDisabled):
		utils.Error(c, 404, utils.ErrBundleDisabled.Error(), "Bundle is not available")
	case errors.Is(err, utils.ErrCheckoutNotFound):
		utils.Error(c, 404, utils.ErrCheckoutNotFound.Error(), "Checkout not found")
	case errors.Is(err, utils.ErrStaleEvent):
		utils.ErrorWithData(c, 409, utils.ErrStaleEvent.Error(), "Event was issued from an outdated view", data)
	case errors.Is(err, utils.ErrCheckoutInProgress):
		utils.ErrorWithData(c, 409, utils.ErrCheckoutInProgress.Error(), "A checkout is already in progress", data)
	case errors.Is(err, utils.ErrInvalidEvent):
		utils.ErrorWithData(c, 422, utils.ErrInvalidEvent.Error(), err.Error(), data)
	case errors.Is(err, utils.ErrNothingToCheckout):
		utils.ErrorWithData(c, 422, utils.ErrNothingToCheckout.Error(), "No product selected", data)
	case errors.Is(err, utils.ErrNoValidPricingData):
		utils.ErrorWithData(c, 422, utils.ErrNoValidPricingData.Error(), "Bundle could not be priced", data)
	case errors.Is(err, utils.ErrCartFailed):
		utils.ErrorRetryable(c, 502, utils.ErrCartFailed.Error(), err.Error(), data)
	case errors.Is(err, utils.ErrFetchFailed):
		utils.ErrorRetryable(c, 502, utils.ErrFetchFailed.Error(), err.Error(), data)
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Unhandled bundle error")
		utils.Error(c, 500, "INTERNAL_ERROR", "Internal server error")
	}
}
