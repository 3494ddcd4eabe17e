package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/GTDGit/gtd_bundle/internal/bundle"
	"github.com/GTDGit/gtd_bundle/internal/config"
	"github.com/GTDGit/gtd_bundle/internal/constraint"
	"github.com/GTDGit/gtd_bundle/internal/metrics"
	"github.com/GTDGit/gtd_bundle/internal/models"
	"github.com/GTDGit/gtd_bundle/internal/pricing"
	"github.com/GTDGit/gtd_bundle/internal/sse"
	"github.com/GTDGit/gtd_bundle/internal/utils"
)

// CartSession is a cart collaborator bound to one storefront cart.
type CartSession interface {
	bundle.CartCollaborator
	Token() string
}

// CartFactory opens the cart identified by token. An empty token asks the
// storefront for a new cart.
type CartFactory func(token string) CartSession

// CheckoutStore persists the checkout audit log.
type CheckoutStore interface {
	Create(ctx context.Context, c *models.BundleCheckout) error
	GetByGroupID(ctx context.Context, groupID string) ([]models.BundleCheckout, error)
	ListRecent(ctx context.Context, limit int) ([]models.BundleCheckout, error)
}

// SessionOptions configures session tokens and expiry.
type SessionOptions struct {
	Secret   string
	TokenTTL time.Duration
	IdleTTL  time.Duration
}

type session struct {
	mu        sync.Mutex
	ctrl      *bundle.Controller
	cartToken string
	lastSeen  time.Time
}

// BundleService owns the live configurator sessions.
type BundleService struct {
	cfg      *config.BundleConfig
	catalog  bundle.Catalog
	engine   *constraint.Engine
	money    *pricing.Formatter
	carts    CartFactory
	audit    CheckoutStore
	notifier sse.CheckoutNotifier
	opts     SessionOptions
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewBundleService constructs a BundleService. audit may be nil, in which
// case checkouts are not recorded.
func NewBundleService(
	cfg *config.BundleConfig,
	catalog bundle.Catalog,
	carts CartFactory,
	audit CheckoutStore,
	opts SessionOptions,
) *BundleService {
	return &BundleService{
		cfg:      cfg,
		catalog:  catalog,
		engine:   bundle.NewEngine(cfg),
		money:    bundle.NewFormatter(cfg),
		carts:    carts,
		audit:    audit,
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// SetNotifier sets the SSE notifier for live checkout updates.
func (s *BundleService) SetNotifier(notifier sse.CheckoutNotifier) {
	s.notifier = notifier
}

// CreateSessionResponse is returned when a session starts.
type CreateSessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	View      *bundle.View `json:"view"`
}

// CreateSession starts a configurator session positioned on the main product.
func (s *BundleService) CreateSession(ctx context.Context, cartToken string) (*CreateSessionResponse, error) {
	id := uuid.New().String()
	ctrl, err := bundle.New(ctx, id, s.cfg, s.catalog, s.engine, s.money)
	if err != nil {
		return nil, err
	}
	token, err := utils.GenerateSessionToken(s.opts.Secret, id, s.opts.TokenTTL)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[id] = &session{ctrl: ctrl, cartToken: cartToken, lastSeen: s.now()}
	n := len(s.sessions)
	s.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))

	log.Info().Str("session_id", id).Int("active", n).Msg("Bundle session created")
	return &CreateSessionResponse{
		Token:     token,
		ExpiresAt: s.now().Add(s.opts.TokenTTL),
		View:      ctrl.View(),
	}, nil
}

// SessionID validates a session token and returns the session it names.
func (s *BundleService) SessionID(token string) (string, error) {
	claims, err := utils.ValidateSessionToken(s.opts.Secret, token)
	if err != nil {
		return "", err
	}
	return claims.SessionID, nil
}

func (s *BundleService) get(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, utils.ErrSessionNotFound
	}
	return sess, nil
}

// View returns the current view of a session.
func (s *BundleService) View(id string) (*bundle.View, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastSeen = s.now()
	return sess.ctrl.View(), nil
}

// Dispatch applies one event and returns the resulting view. The view is
// returned for rejected events too so the client can resynchronise.
func (s *BundleService) Dispatch(ctx context.Context, id string, ev bundle.Event) (*bundle.View, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if needsCatalog(ev.Kind) {
		s.prefetch(ctx)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastSeen = s.now()
	err = sess.ctrl.Dispatch(ctx, ev)
	return sess.ctrl.View(), err
}

func needsCatalog(kind bundle.EventKind) bool {
	switch kind {
	case bundle.EventNext, bundle.EventBack, bundle.EventSkip, bundle.EventEdit, bundle.EventRetry:
		return true
	}
	return false
}

// prefetch warms the catalog for every bundle product without holding a
// session lock. Failures are left for the controller to report.
func (s *BundleService) prefetch(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	for _, h := range s.cfg.Handles() {
		g.Go(func() error {
			if _, err := s.catalog.Get(gctx, h); err != nil {
				log.Debug().Err(err).Str("handle", h).Msg("Prefetch failed")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// CheckoutResponse is the outcome of a submission.
type CheckoutResponse struct {
	Result *bundle.CheckoutResult `json:"result,omitempty"`
	View   *bundle.View           `json:"view"`
}

// Checkout submits the session's bundle to its cart. The storefront calls run
// without the session lock; the controller rejects duplicate submissions
// meanwhile.
func (s *BundleService) Checkout(ctx context.Context, id string) (*CheckoutResponse, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	sess.lastSeen = s.now()
	plan, err := sess.ctrl.BeginCheckout()
	token := sess.cartToken
	if err != nil {
		view := sess.ctrl.View()
		sess.mu.Unlock()
		return &CheckoutResponse{View: view}, err
	}
	sess.mu.Unlock()

	cart := s.carts(token)
	result, runErr := bundle.RunCheckout(ctx, cart, plan)

	sess.mu.Lock()
	sess.ctrl.CompleteCheckout(plan, result, runErr)
	if t := cart.Token(); t != "" {
		sess.cartToken = t
	}
	view := sess.ctrl.View()
	sess.mu.Unlock()

	s.record(ctx, plan, result, runErr)
	return &CheckoutResponse{Result: result, View: view}, runErr
}

// record writes the audit row and notifies listeners. Audit failures never
// fail the checkout.
func (s *BundleService) record(ctx context.Context, plan *bundle.CheckoutPlan, result *bundle.CheckoutResult, runErr error) {
	if s.audit == nil && s.notifier == nil {
		return
	}
	row := auditRow(plan, result, runErr)
	if s.audit != nil {
		if err := s.audit.Create(ctx, row); err != nil {
			log.Error().Err(err).Str("group_id", plan.GroupID).Msg("Failed to record checkout")
		}
	}
	if s.notifier != nil {
		s.notifier.NotifyCheckout(row)
	}
}

func auditRow(plan *bundle.CheckoutPlan, result *bundle.CheckoutResult, runErr error) *models.BundleCheckout {
	lines, _ := json.Marshal(plan.Lines)
	row := &models.BundleCheckout{
		GroupID:             plan.GroupID,
		SessionID:           plan.SessionID,
		BundleTitle:         plan.BundleTitle,
		Status:              models.CheckoutStatusAdded,
		Lines:               lines,
		BundleQuantity:      plan.BundleQuantity,
		TotalOriginal:       pricing.Minor(plan.Quote.TotalOriginalDisplayed),
		FinalPrice:          pricing.Minor(plan.Quote.FinalPriceDisplayed),
		SupplementalPercent: plan.Quote.SupplementalDiscountPct,
	}
	if plan.VoucherCode != "" {
		code := plan.VoucherCode
		row.VoucherCode = &code
	}
	if runErr != nil {
		reason := runErr.Error()
		row.Status = models.CheckoutStatusFailed
		row.FailedReason = &reason
		return row
	}
	if result != nil {
		row.DiscountApplied = result.DiscountApplied
		if result.DiscountError != "" {
			reason := result.DiscountError
			row.FailedReason = &reason
		}
	}
	return row
}

// GetCheckout returns every recorded attempt for a bundle group.
func (s *BundleService) GetCheckout(ctx context.Context, groupID string) ([]models.BundleCheckout, error) {
	if s.audit == nil {
		return nil, utils.ErrCheckoutNotFound
	}
	return s.audit.GetByGroupID(ctx, groupID)
}

// ListCheckouts returns the most recent checkouts.
func (s *BundleService) ListCheckouts(ctx context.Context, limit int) ([]models.BundleCheckout, error) {
	if s.audit == nil {
		return []models.BundleCheckout{}, nil
	}
	return s.audit.ListRecent(ctx, limit)
}

// Sweep drops sessions idle for longer than the idle TTL. Sessions with a
// checkout in flight are kept. It returns the number removed.
func (s *BundleService) Sweep() int {
	cutoff := s.now().Add(-s.opts.IdleTTL)

	s.mu.Lock()
	removed := 0
	for id, sess := range s.sessions {
		if !sess.mu.TryLock() {
			continue
		}
		idle := sess.lastSeen.Before(cutoff) && !sess.ctrl.CheckoutInFlight()
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			removed++
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	if removed > 0 {
		log.Info().Int("removed", removed).Int("active", n).Msg("Idle bundle sessions swept")
	}
	return removed
}

// ActiveSessions returns the number of live sessions.
func (s *BundleService) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Handles returns the product handles of the configured bundle.
func (s *BundleService) Handles() []string {
	return s.cfg.Handles()
}

// IsRetryable reports whether err leaves the session able to resubmit.
func IsRetryable(err error) bool {
	return errors.Is(err, utils.ErrCartFailed) || errors.Is(err, utils.ErrFetchFailed)
}
