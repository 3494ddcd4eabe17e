package bundle

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_bundle/internal/metrics"
	"github.com/GTDGit/gtd_bundle/internal/models"
	"github.com/GTDGit/gtd_bundle/internal/pricing"
	"github.com/GTDGit/gtd_bundle/internal/utils"
)

// CartCollaborator is the storefront cart as seen by the checkout.
type CartCollaborator interface {
	AddCartLines(ctx context.Context, lines []models.CartLine) (*models.CartSnapshot, error)
	ApplyDiscount(ctx context.Context, code string) (*models.CartSnapshot, error)
	UpdateLineProperties(ctx context.Context, key string, quantity int, properties map[string]string) error
	GetCart(ctx context.Context) (*models.CartSnapshot, error)
}

// CheckoutPlan is the immutable input of one submission. A retry after a
// failure reuses the same plan, group id included.
type CheckoutPlan struct {
	SessionID      string            `json:"sessionId"`
	GroupID        string            `json:"groupId"`
	BundleTitle    string            `json:"bundleTitle"`
	Lines          []models.CartLine `json:"lines"`
	VoucherCode    string            `json:"voucherCode,omitempty"`
	BundleQuantity int               `json:"bundleQuantity"`
	Quote          pricing.Quote     `json:"quote"`
	Attempt        int               `json:"attempt"`
}

// CheckoutResult is the outcome of a successful submission.
type CheckoutResult struct {
	GroupID         string               `json:"groupId"`
	Lines           []models.CartLine    `json:"lines"`
	Cart            *models.CartSnapshot `json:"cart,omitempty"`
	DiscountApplied bool                 `json:"discountApplied"`
	DiscountError   string               `json:"discountError,omitempty"`
}

type checkoutState struct {
	inFlight bool
	pending  *CheckoutPlan
	last     *CheckoutResult
	lastErr  string
}

// invalidate drops a plan built from a selection that has since changed.
func (s *checkoutState) invalidate() {
	s.pending = nil
	s.lastErr = ""
}

// BeginCheckout builds (or reuses) the plan for the current selection and
// marks the checkout in flight. Every successful call must be followed by
// CompleteCheckout.
func (c *Controller) BeginCheckout() (*CheckoutPlan, error) {
	if c.checkout.inFlight {
		return nil, utils.ErrCheckoutInProgress
	}
	if c.state.CurrentStep != models.StepSummary {
		return nil, fmt.Errorf("%w: checkout is only available from the summary", utils.ErrInvalidEvent)
	}
	if c.quote == nil {
		return nil, utils.ErrNoValidPricingData
	}

	if c.checkout.pending == nil {
		plan, err := c.buildPlan()
		if err != nil {
			return nil, err
		}
		c.checkout.pending = plan
	}
	c.checkout.pending.Attempt++
	c.checkout.inFlight = true

	plan := *c.checkout.pending
	plan.Lines = cloneLines(plan.Lines)
	c.logger.Info().
		Str("group_id", plan.GroupID).
		Int("lines", len(plan.Lines)).
		Int("attempt", plan.Attempt).
		Msg("Checkout started")
	return &plan, nil
}

// CheckoutInFlight reports whether a submission is running.
func (c *Controller) CheckoutInFlight() bool {
	return c.checkout.inFlight
}

func (c *Controller) buildPlan() (*CheckoutPlan, error) {
	records := c.state.ConfirmedSelections()
	if len(records) == 0 {
		return nil, utils.ErrNothingToCheckout
	}
	groupID := uuid.New().String()
	lines := make([]models.CartLine, 0, len(records))
	for _, r := range records {
		lines = append(lines, models.CartLine{
			VariantID: r.VariantID,
			Quantity:  r.Quantity * c.state.BundleQuantity,
			Properties: map[string]string{
				models.PropBundleGroupID: groupID,
				models.PropBundleTitle:   c.cfg.Title,
				models.PropSlotProduct:   r.ProductTitle,
				models.PropSlotVariant:   r.VariantTitle,
			},
		})
	}
	return &CheckoutPlan{
		SessionID:      c.id,
		GroupID:        groupID,
		BundleTitle:    c.cfg.Title,
		Lines:          lines,
		VoucherCode:    c.cfg.VoucherCode,
		BundleQuantity: c.state.BundleQuantity,
		Quote:          *c.quote,
	}, nil
}

// CompleteCheckout records the outcome of the plan returned by BeginCheckout.
// On failure the plan is kept so that the next submission resends the same
// lines under the same group id.
func (c *Controller) CompleteCheckout(plan *CheckoutPlan, result *CheckoutResult, err error) {
	c.checkout.inFlight = false
	if err != nil {
		c.checkout.lastErr = err.Error()
		c.logger.Warn().Err(err).Str("group_id", plan.GroupID).Msg("Checkout failed")
		return
	}
	c.checkout.pending = nil
	c.checkout.lastErr = ""
	c.checkout.last = result
	c.logger.Info().
		Str("group_id", plan.GroupID).
		Bool("discount_applied", result.DiscountApplied).
		Msg("Checkout completed")
}

// Checkout runs a whole submission against cart. Callers that must not hold
// their session lock across network calls use BeginCheckout, RunCheckout and
// CompleteCheckout instead.
func (c *Controller) Checkout(ctx context.Context, cart CartCollaborator) (*CheckoutResult, error) {
	plan, err := c.BeginCheckout()
	if err != nil {
		return nil, err
	}
	result, err := RunCheckout(ctx, cart, plan)
	c.CompleteCheckout(plan, result, err)
	return result, err
}

// RunCheckout submits plan to the cart: one atomic batch add, then the
// voucher, then a best-effort voucher tag on every bundle line, then a cart
// refresh. Only the batch add can fail the checkout.
func RunCheckout(ctx context.Context, cart CartCollaborator, plan *CheckoutPlan) (*CheckoutResult, error) {
	snapshot, err := cart.AddCartLines(ctx, plan.Lines)
	if err != nil {
		metrics.Checkouts.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.Checkouts.WithLabelValues("added").Inc()

	result := &CheckoutResult{
		GroupID: plan.GroupID,
		Lines:   cloneLines(plan.Lines),
		Cart:    snapshot,
	}
	logger := log.With().Str("session_id", plan.SessionID).Str("group_id", plan.GroupID).Logger()

	if plan.VoucherCode != "" {
		discounted, derr := cart.ApplyDiscount(ctx, plan.VoucherCode)
		if derr != nil {
			metrics.DiscountApplications.WithLabelValues("failed").Inc()
			result.DiscountError = derr.Error()
			logger.Warn().Err(derr).Str("code", plan.VoucherCode).Msg("Voucher not applied")
		} else {
			metrics.DiscountApplications.WithLabelValues("applied").Inc()
			result.DiscountApplied = true
			if discounted != nil {
				result.Cart = discounted
			}
			tagVoucher(ctx, cart, result.Cart, plan, logger)
		}
	}

	refreshed, err := cart.GetCart(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Cart refresh after checkout failed")
	} else if refreshed != nil {
		result.Cart = refreshed
	}
	return result, nil
}

func tagVoucher(ctx context.Context, cart CartCollaborator, snapshot *models.CartSnapshot, plan *CheckoutPlan, logger zerolog.Logger) {
	if snapshot == nil {
		return
	}
	for _, item := range snapshot.ItemsInGroup(plan.GroupID) {
		props := make(map[string]string, len(item.Properties)+1)
		for k, v := range item.Properties {
			props[k] = v
		}
		props[models.PropVoucher] = plan.VoucherCode
		if err := cart.UpdateLineProperties(ctx, item.Key, item.Quantity, props); err != nil {
			logger.Warn().Err(err).Str("line_key", item.Key).Msg("Voucher property not written")
		}
	}
}

func cloneLines(in []models.CartLine) []models.CartLine {
	out := make([]models.CartLine, len(in))
	for i, l := range in {
		props := make(map[string]string, len(l.Properties))
		for k, v := range l.Properties {
			props[k] = v
		}
		out[i] = models.CartLine{VariantID: l.VariantID, Quantity: l.Quantity, Properties: props}
	}
	return out
}
