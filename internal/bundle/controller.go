// Package bundle drives a shopper through the bundle configurator: main
// product, add-on slots, then the priced summary and the cart hand-off.
package bundle

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/gtd_bundle/internal/config"
	"github.com/GTDGit/gtd_bundle/internal/constraint"
	"github.com/GTDGit/gtd_bundle/internal/metrics"
	"github.com/GTDGit/gtd_bundle/internal/models"
	"github.com/GTDGit/gtd_bundle/internal/pricing"
	"github.com/GTDGit/gtd_bundle/internal/utils"
)

// Catalog resolves products by handle.
type Catalog interface {
	Get(ctx context.Context, handle string) (*models.Product, error)
}

// Controller owns the BundleState of one session. It is not safe for
// concurrent use; callers serialize access per session.
type Controller struct {
	id      string
	cfg     *config.BundleConfig
	catalog Catalog
	engine  *constraint.Engine
	money   *pricing.Formatter
	logger  zerolog.Logger

	state    *models.BundleState
	machine  *fsm.FSM
	products []*models.Product
	restrict []constraint.Restriction
	quote    *pricing.Quote

	// inline error and the action that retry re-runs
	viewErr *ViewError
	retryFn func(ctx context.Context) error

	checkout checkoutState
}

// New creates a controller positioned on the main product. A failed fetch of
// the main product does not fail construction; it is reported inline and can
// be retried.
func New(ctx context.Context, id string, cfg *config.BundleConfig, catalog Catalog, engine *constraint.Engine, money *pricing.Formatter) (*Controller, error) {
	if !cfg.Enabled {
		return nil, utils.ErrBundleDisabled
	}
	slots := cfg.SlotCount()
	c := &Controller{
		id:       id,
		cfg:      cfg,
		catalog:  catalog,
		engine:   engine,
		money:    money,
		logger:   log.With().Str("session_id", id).Logger(),
		state:    models.NewBundleState(slots),
		products: make([]*models.Product, slots),
		restrict: make([]constraint.Restriction, slots),
	}
	c.machine = newMachine(func(step models.Step) {
		c.state.CurrentStep = step
	})

	if err := c.loadSlot(ctx, 0); err != nil {
		c.fail(err, func(ctx context.Context) error { return c.loadSlot(ctx, 0) })
	}
	return c, nil
}

// ID returns the session id the controller was created for.
func (c *Controller) ID() string {
	return c.id
}

// Handles returns every product handle the bundle uses, main first.
func (c *Controller) Handles() []string {
	return c.cfg.Handles()
}

func (c *Controller) handle(slot int) string {
	if slot == 0 {
		return c.cfg.MainHandle
	}
	return c.cfg.AddOnHandles[slot-1]
}

func (c *Controller) addOnCount() int {
	return len(c.cfg.AddOnHandles)
}

// Dispatch applies one shopper event. Events rejected outright return
// ErrStaleEvent, ErrInvalidEvent or ErrCheckoutInProgress and leave the
// state untouched. Fetch and pricing failures are not returned; they are
// reported in the view and can be retried.
func (c *Controller) Dispatch(ctx context.Context, ev Event) error {
	if c.checkout.inFlight {
		return utils.ErrCheckoutInProgress
	}
	if ev.Guard != nil && !c.matches(*ev.Guard) {
		metrics.StaleEvents.Inc()
		c.logger.Debug().
			Str("event", string(ev.Kind)).
			Str("guard_step", string(ev.Guard.Step)).
			Int("guard_slot", ev.Guard.Slot).
			Str("step", string(c.state.CurrentStep)).
			Int("slot", c.state.ActiveSlot()).
			Msg("Discarding stale event")
		return utils.ErrStaleEvent
	}

	if ev.Kind == EventRetry {
		return c.retry(ctx)
	}

	prevErr, prevRetry := c.viewErr, c.retryFn
	c.clearError()

	var err error
	switch ev.Kind {
	case EventSelectOption:
		err = c.selectOption(ev.Option, ev.Value)
	case EventSelectVariant:
		err = c.selectVariant(ev.VariantID)
	case EventNext:
		err = c.next(ctx)
	case EventBack:
		err = c.back(ctx)
	case EventSkip:
		err = c.skip(ctx)
	case EventEdit:
		err = c.edit(ctx, ev.Slot)
	case EventSetQuantity:
		err = c.setQuantity(ev.Quantity)
	default:
		err = fmt.Errorf("%w: unknown event %q", utils.ErrInvalidEvent, ev.Kind)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, utils.ErrInvalidEvent) {
		c.viewErr, c.retryFn = prevErr, prevRetry
		return err
	}
	// The action could not complete; keep position and offer a retry.
	action := ev
	action.Guard = nil
	c.fail(err, func(ctx context.Context) error { return c.Dispatch(ctx, action) })
	return nil
}

func (c *Controller) matches(g Guard) bool {
	return g.Step == c.state.CurrentStep && g.Slot == c.state.ActiveSlot()
}

func (c *Controller) retry(ctx context.Context) error {
	fn := c.retryFn
	if fn == nil {
		return fmt.Errorf("%w: nothing to retry", utils.ErrInvalidEvent)
	}
	c.clearError()
	if err := fn(ctx); err != nil {
		if errors.Is(err, utils.ErrInvalidEvent) {
			return err
		}
		c.fail(err, fn)
	}
	return nil
}

func (c *Controller) fail(err error, retry func(ctx context.Context) error) {
	c.viewErr = newViewError(err)
	c.retryFn = retry
	c.logger.Warn().Err(err).
		Str("step", string(c.state.CurrentStep)).
		Int("slot", c.state.ActiveSlot()).
		Msg("Configurator action failed")
}

func (c *Controller) clearError() {
	c.viewErr = nil
	c.retryFn = nil
}

// loadSlot makes sure the slot's product is loaded and its checked values are
// populated, honoring the size lock for add-on slots.
func (c *Controller) loadSlot(ctx context.Context, slot int) error {
	if c.products[slot] == nil {
		p, err := c.catalog.Get(ctx, c.handle(slot))
		if err != nil {
			return err
		}
		c.products[slot] = p
	}
	if slot == 0 {
		if c.state.Checked[0] == nil {
			c.state.Checked[0] = cloneValues(c.products[0].FirstAvailable().Options)
		}
		return nil
	}
	c.applyLock(slot)
	return nil
}

// applyLock recomputes the slot's lock restriction and moves its checked
// values onto a variant the lock admits. Checked values that already name
// an admitted, available variant are kept.
func (c *Controller) applyLock(slot int) {
	p := c.products[slot]
	res, err := c.engine.ApplyLock(p, c.state.LockedOptionValue, c.state.Checked[slot])
	if err != nil {
		metrics.LockFallbacks.WithLabelValues(p.Handle).Inc()
		c.logger.Warn().Err(err).
			Int("slot", slot).
			Str("lock", c.state.LockedOptionValue).
			Msg("Size lock unsatisfiable, using first available variant")
	}
	c.restrict[slot] = res.Restriction()

	if cur := exactVariant(p, c.state.Checked[slot]); cur != nil && c.restrict[slot].Admits(cur) {
		return
	}
	if res.Variant != nil {
		c.state.Checked[slot] = cloneValues(res.Variant.Options)
	}
}

// checkedVariant resolves the slot's checked values to a variant.
func (c *Controller) checkedVariant(slot int) *models.Variant {
	p := c.products[slot]
	if v := exactVariant(p, c.state.Checked[slot]); v != nil {
		return v
	}
	return constraint.ResolveVariant(p, c.state.Checked[slot], -1, c.restrict[slot])
}

// record persists v as the slot's selection.
func (c *Controller) record(slot int, v *models.Variant) {
	p := c.products[slot]
	c.state.Selections[slot] = &models.SelectionRecord{
		Slot:           slot,
		ProductID:      p.ID,
		ProductHandle:  p.Handle,
		ProductTitle:   p.Title,
		VariantID:      v.ID,
		VariantTitle:   v.Title,
		Options:        cloneValues(v.Options),
		Price:          v.Price,
		CompareAtPrice: v.OriginalPrice(),
		Quantity:       c.cfg.SlotQuantity(slot),
	}
	c.checkout.invalidate()
}

func (c *Controller) selectOption(option, value string) error {
	if c.state.CurrentStep == models.StepSummary {
		return fmt.Errorf("%w: no product on the summary", utils.ErrInvalidEvent)
	}
	slot := c.state.ActiveSlot()
	p := c.products[slot]
	if p == nil {
		return fmt.Errorf("%w: product not loaded", utils.ErrInvalidEvent)
	}
	dim := p.OptionIndex(option)
	if dim < 0 {
		return fmt.Errorf("%w: unknown option %q", utils.ErrInvalidEvent, option)
	}

	states := constraint.Availability(p, c.state.Checked[slot], c.restrict[slot])
	enabled, known := false, false
	for _, vs := range states[dim].Values {
		if vs.Value == value {
			known, enabled = true, vs.Enabled
		}
	}
	if !known {
		return fmt.Errorf("%w: %q is not a value of %q", utils.ErrInvalidEvent, value, option)
	}
	if !enabled {
		return fmt.Errorf("%w: %q is not selectable", utils.ErrInvalidEvent, value)
	}

	checked := cloneValues(c.state.Checked[slot])
	checked[dim] = value
	v := constraint.ResolveVariant(p, checked, dim, c.restrict[slot])
	c.state.Checked[slot] = cloneValues(v.Options)
	c.record(slot, v)

	c.logger.Debug().
		Int("slot", slot).
		Str("option", option).
		Str("value", value).
		Int64("variant_id", v.ID).
		Msg("Option selected")
	return nil
}

func (c *Controller) selectVariant(id int64) error {
	if c.state.CurrentStep == models.StepSummary {
		return fmt.Errorf("%w: no product on the summary", utils.ErrInvalidEvent)
	}
	slot := c.state.ActiveSlot()
	p := c.products[slot]
	if p == nil {
		return fmt.Errorf("%w: product not loaded", utils.ErrInvalidEvent)
	}
	v := p.VariantByID(id)
	if v == nil || !v.Available || !c.restrict[slot].Admits(v) {
		return fmt.Errorf("%w: variant %d is not selectable", utils.ErrInvalidEvent, id)
	}
	c.state.Checked[slot] = cloneValues(v.Options)
	c.record(slot, v)
	return nil
}

// confirmMain records slot 0 and re-derives the size lock from it.
func (c *Controller) confirmMain(ctx context.Context) error {
	if c.products[0] == nil {
		if err := c.loadSlot(ctx, 0); err != nil {
			return err
		}
	}
	v := c.checkedVariant(0)
	c.record(0, v)

	lock := ""
	if _, value, ok := c.engine.DetectLock(c.products[0], v.Options); ok {
		lock = value
	}
	if lock == c.state.LockedOptionValue {
		return nil
	}
	c.logger.Info().
		Str("previous", c.state.LockedOptionValue).
		Str("lock", lock).
		Msg("Size lock changed")
	c.state.LockedOptionValue = lock

	for slot := 1; slot < len(c.products); slot++ {
		if c.products[slot] == nil {
			continue
		}
		c.applyLock(slot)
		if c.state.Selections[slot].Confirmed() {
			c.record(slot, c.checkedVariant(slot))
		}
	}
	return nil
}

func (c *Controller) next(ctx context.Context) error {
	switch c.state.CurrentStep {
	case models.StepMainVariant:
		if err := c.confirmMain(ctx); err != nil {
			return err
		}
		if c.addOnCount() == 0 {
			return c.enterSummary(ctx, eventSkipAddOns)
		}
		if err := c.loadSlot(ctx, 1); err != nil {
			return err
		}
		c.state.CurrentSlotIndex = 0
		return c.machine.Event(ctx, eventConfirmMain)

	case models.StepAddOnConfig:
		slot := c.state.ActiveSlot()
		if c.products[slot] == nil {
			if err := c.loadSlot(ctx, slot); err != nil {
				return err
			}
		}
		c.record(slot, c.checkedVariant(slot))
		if c.state.CurrentSlotIndex+1 < c.addOnCount() {
			if err := c.loadSlot(ctx, slot+1); err != nil {
				return err
			}
			c.state.CurrentSlotIndex++
			return nil
		}
		return c.enterSummary(ctx, eventFinishAddOns)

	default:
		return fmt.Errorf("%w: already on the summary", utils.ErrInvalidEvent)
	}
}

func (c *Controller) skip(ctx context.Context) error {
	switch c.state.CurrentStep {
	case models.StepMainVariant:
		if err := c.confirmMain(ctx); err != nil {
			return err
		}
		return c.enterSummary(ctx, eventSkipAddOns)
	case models.StepAddOnConfig:
		return c.enterSummary(ctx, eventSkipAddOns)
	default:
		return fmt.Errorf("%w: already on the summary", utils.ErrInvalidEvent)
	}
}

// enterSummary auto-populates the first add-on when no add-on was recorded,
// moves to the summary and prices the bundle.
func (c *Controller) enterSummary(ctx context.Context, event string) error {
	if c.addOnCount() > 0 && !c.state.HasAddOnSelection() {
		if err := c.loadSlot(ctx, 1); err != nil {
			return err
		}
		c.record(1, c.checkedVariant(1))
		c.logger.Debug().Int64("variant_id", c.state.Selections[1].VariantID).
			Msg("Auto-populated first add-on for summary")
	}
	if err := c.machine.Event(ctx, event); err != nil {
		return err
	}
	c.reprice()
	return nil
}

// reprice runs the pricing engine over the confirmed selections.
func (c *Controller) reprice() {
	q, err := pricing.Calculate(pricing.Input{
		Lines:                 pricing.LinesFromSelections(c.state.ConfirmedSelections()),
		BundleQuantity:        c.state.BundleQuantity,
		TargetDiscountPercent: decimal.NewFromFloat(c.cfg.TargetDiscountPercent),
	})
	if err != nil {
		c.quote = nil
		metrics.PricingFailures.Inc()
		c.fail(err, func(context.Context) error {
			c.reprice()
			return nil
		})
		return
	}
	c.quote = &q
}

func (c *Controller) back(ctx context.Context) error {
	switch c.state.CurrentStep {
	case models.StepAddOnConfig:
		if c.state.CurrentSlotIndex > 0 {
			// A skip followed by an edit can leave earlier slots unloaded.
			if err := c.loadSlot(ctx, c.state.ActiveSlot()-1); err != nil {
				return err
			}
			c.state.CurrentSlotIndex--
			return nil
		}
		return c.machine.Event(ctx, eventBackToMain)

	case models.StepSummary:
		if c.addOnCount() == 0 {
			return c.leaveSummary(ctx, eventEditMain)
		}
		last := c.addOnCount()
		if err := c.loadSlot(ctx, last); err != nil {
			return err
		}
		c.state.CurrentSlotIndex = last - 1
		return c.leaveSummary(ctx, eventBackFromSummary)

	default:
		return fmt.Errorf("%w: already on the first step", utils.ErrInvalidEvent)
	}
}

func (c *Controller) edit(ctx context.Context, slot int) error {
	if c.state.CurrentStep != models.StepSummary {
		return fmt.Errorf("%w: edit is only available from the summary", utils.ErrInvalidEvent)
	}
	if slot < 0 || slot > c.addOnCount() {
		return fmt.Errorf("%w: slot %d out of range", utils.ErrInvalidEvent, slot)
	}
	if slot == 0 {
		return c.leaveSummary(ctx, eventEditMain)
	}
	if err := c.loadSlot(ctx, slot); err != nil {
		return err
	}
	c.state.CurrentSlotIndex = slot - 1
	return c.leaveSummary(ctx, eventEditAddOn)
}

func (c *Controller) leaveSummary(ctx context.Context, event string) error {
	if err := c.machine.Event(ctx, event); err != nil {
		return err
	}
	c.quote = nil
	return nil
}

func (c *Controller) setQuantity(q int) error {
	if !c.cfg.AllowsQuantity(q) {
		return fmt.Errorf("%w: quantity %d is not offered", utils.ErrInvalidEvent, q)
	}
	if q == c.state.BundleQuantity {
		return nil
	}
	c.state.BundleQuantity = q
	c.checkout.invalidate()
	if c.state.CurrentStep == models.StepSummary {
		c.reprice()
	}
	return nil
}

// exactVariant returns the available variant whose options equal checked.
func exactVariant(p *models.Product, checked []string) *models.Variant {
	if len(checked) != len(p.Options) {
		return nil
	}
	for i := range p.Variants {
		v := &p.Variants[i]
		if !v.Available {
			continue
		}
		same := true
		for d, val := range checked {
			if v.Options[d] != val {
				same = false
				break
			}
		}
		if same {
			return v
		}
	}
	return nil
}

func cloneValues(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
