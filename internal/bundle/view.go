package bundle

import (
	"errors"

	"github.com/tiendc/go-deepcopy"

	"github.com/GTDGit/gtd_bundle/internal/constraint"
	"github.com/GTDGit/gtd_bundle/internal/models"
	"github.com/GTDGit/gtd_bundle/internal/pricing"
	"github.com/GTDGit/gtd_bundle/internal/utils"
)

// ViewError is an inline error the shopper can retry.
type ViewError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func newViewError(err error) *ViewError {
	code := "INTERNAL_ERROR"
	switch {
	case errors.Is(err, utils.ErrFetchFailed):
		code = utils.ErrFetchFailed.Error()
	case errors.Is(err, utils.ErrNoValidPricingData):
		code = utils.ErrNoValidPricingData.Error()
	}
	return &ViewError{Code: code, Message: err.Error(), Retryable: true}
}

// View is a read-only snapshot of the session for rendering. It shares no
// memory with the controller.
type View struct {
	SessionID         string                   `json:"sessionId"`
	Title             string                   `json:"title"`
	Step              models.Step              `json:"step"`
	Slot              int                      `json:"slot"`
	SlotCount         int                      `json:"slotCount"`
	BundleQuantity    int                      `json:"bundleQuantity"`
	QuantityChoices   []int                    `json:"quantityChoices"`
	LockedOptionValue string                   `json:"lockedOptionValue,omitempty"`
	Product           *ProductView             `json:"product,omitempty"`
	Selections        []models.SelectionRecord `json:"selections"`
	Summary           *SummaryView             `json:"summary,omitempty"`
	Error             *ViewError               `json:"error,omitempty"`
	Checkout          CheckoutView             `json:"checkout"`

	// Guard is echoed back on events issued from this view.
	Guard Guard `json:"guard"`
}

// ProductView is the active slot's product with per-value availability.
type ProductView struct {
	Handle  string                   `json:"handle"`
	Title   string                   `json:"title"`
	Options []constraint.OptionState `json:"options"`
	Variant *models.Variant          `json:"variant,omitempty"`
	Price   string                   `json:"price,omitempty"`
}

// SummaryView is the priced bundle.
type SummaryView struct {
	Lines                       []SummaryLine `json:"lines"`
	Quote                       pricing.Quote `json:"quote"`
	TotalOriginal               string        `json:"totalOriginal"`
	FinalPrice                  string        `json:"finalPrice"`
	Savings                     string        `json:"savings"`
	SupplementalDiscountPercent int64         `json:"supplementalDiscountPercent"`
	VoucherCode                 string        `json:"voucherCode,omitempty"`
}

// SummaryLine is one confirmed slot on the summary.
type SummaryLine struct {
	Slot           int    `json:"slot"`
	ProductTitle   string `json:"productTitle"`
	VariantTitle   string `json:"variantTitle"`
	Quantity       int    `json:"quantity"`
	Price          string `json:"price"`
	CompareAtPrice string `json:"compareAtPrice"`
}

// CheckoutView reports the state of the cart hand-off.
type CheckoutView struct {
	InFlight bool            `json:"inFlight"`
	Pending  bool            `json:"pending"`
	Error    string          `json:"error,omitempty"`
	Result   *CheckoutResult `json:"result,omitempty"`
}

// View renders the current state.
func (c *Controller) View() *View {
	slot := c.state.ActiveSlot()
	v := &View{
		SessionID:         c.id,
		Title:             c.cfg.Title,
		Step:              c.state.CurrentStep,
		Slot:              slot,
		SlotCount:         c.cfg.SlotCount(),
		BundleQuantity:    c.state.BundleQuantity,
		LockedOptionValue: c.state.LockedOptionValue,
		Guard:             Guard{Step: c.state.CurrentStep, Slot: slot},
		Checkout: CheckoutView{
			InFlight: c.checkout.inFlight,
			Pending:  c.checkout.pending != nil,
			Error:    c.checkout.lastErr,
		},
	}
	v.QuantityChoices = append([]int(nil), c.cfg.QuantityChoices...)
	v.Selections = c.state.ConfirmedSelections()
	for i := range v.Selections {
		v.Selections[i].Options = cloneValues(v.Selections[i].Options)
	}
	if c.viewErr != nil {
		e := *c.viewErr
		v.Error = &e
	}
	// results are never mutated once stored
	v.Checkout.Result = c.checkout.last

	if c.state.CurrentStep == models.StepSummary {
		v.Summary = c.summaryView()
		return v
	}

	p := c.products[slot]
	if p == nil {
		return v
	}
	pv := &ProductView{
		Handle:  p.Handle,
		Title:   p.Title,
		Options: constraint.Availability(p, c.state.Checked[slot], c.restrict[slot]),
	}
	kinds := c.engine.Kinds(p)
	lockDim := -1
	for dim := range c.restrict[slot] {
		lockDim = dim
	}
	for d := range pv.Options {
		pv.Options[d].Kind = kinds[d]
		pv.Options[d].Locked = d == lockDim
	}
	if cur := exactVariant(p, c.state.Checked[slot]); cur != nil {
		variant := *cur
		variant.Options = cloneValues(cur.Options)
		if cur.CompareAtPrice != nil {
			compareAt := *cur.CompareAtPrice
			variant.CompareAtPrice = &compareAt
		}
		pv.Variant = &variant
		pv.Price = c.money.FormatInt(cur.Price)
	}
	v.Product = pv
	return v
}

func (c *Controller) summaryView() *SummaryView {
	if c.quote == nil {
		return nil
	}
	sv := &SummaryView{
		Quote:                       *c.quote,
		TotalOriginal:               c.money.Format(c.quote.TotalOriginalDisplayed),
		FinalPrice:                  c.money.Format(c.quote.FinalPriceDisplayed),
		Savings:                     c.money.Format(c.quote.Savings),
		SupplementalDiscountPercent: c.quote.SupplementalDiscountPct,
		VoucherCode:                 c.cfg.VoucherCode,
	}
	for _, r := range c.state.ConfirmedSelections() {
		sv.Lines = append(sv.Lines, SummaryLine{
			Slot:           r.Slot,
			ProductTitle:   r.ProductTitle,
			VariantTitle:   r.VariantTitle,
			Quantity:       r.Quantity * c.state.BundleQuantity,
			Price:          c.money.FormatInt(r.Price),
			CompareAtPrice: c.money.FormatInt(r.CompareAtPrice),
		})
	}
	return sv
}

// State returns a deep copy of the bundle state.
func (c *Controller) State() models.BundleState {
	var out models.BundleState
	if err := deepcopy.Copy(&out, c.state); err != nil {
		c.logger.Error().Err(err).Msg("Failed to copy bundle state")
	}
	return out
}

// Quote returns the current quote, nil outside the summary or when the
// bundle could not be priced.
func (c *Controller) Quote() *pricing.Quote {
	if c.quote == nil {
		return nil
	}
	q := *c.quote
	return &q
}
