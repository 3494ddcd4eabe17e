package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/gtd_bundle/internal/bundle"
	"github.com/GTDGit/gtd_bundle/internal/config"
	"github.com/GTDGit/gtd_bundle/internal/models"
	"github.com/GTDGit/gtd_bundle/internal/utils"
)

func ptr(v int64) *int64 { return &v }

type syncCatalog struct {
	mu       sync.Mutex
	products map[string]*models.Product
	calls    map[string]int
}

func newSyncCatalog(products ...*models.Product) *syncCatalog {
	c := &syncCatalog{products: map[string]*models.Product{}, calls: map[string]int{}}
	for _, p := range products {
		c.products[p.Handle] = p
	}
	return c
}

func (c *syncCatalog) Get(_ context.Context, handle string) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[handle]++
	p, ok := c.products[handle]
	if !ok {
		return nil, &utils.FetchError{Handle: handle, Err: errors.New("not found")}
	}
	return p, nil
}

func testProducts() []*models.Product {
	return []*models.Product{
		{
			ID: 1, Handle: "cloud-mattress", Title: "Cloud Mattress",
			Options: []models.Option{{Name: "Size", Values: []string{"Queen 160x200", "King 180x200"}}},
			Variants: []models.Variant{
				{ID: 11, Title: "Queen 160x200", Options: []string{"Queen 160x200"}, Price: 800000, CompareAtPrice: ptr(1000000), Available: true},
				{ID: 12, Title: "King 180x200", Options: []string{"King 180x200"}, Price: 1000000, Available: true},
			},
		},
		{
			ID: 2, Handle: "memory-topper", Title: "Memory Topper",
			Options: []models.Option{{Name: "Size", Values: []string{"160x200", "180x200"}}},
			Variants: []models.Variant{
				{ID: 21, Title: "160x200", Options: []string{"160x200"}, Price: 1800000, CompareAtPrice: ptr(2000000), Available: true},
				{ID: 22, Title: "180x200", Options: []string{"180x200"}, Price: 2100000, Available: true},
			},
		},
	}
}

const serviceBundleYAML = `
title: Sleep Set
main_handle: cloud-mattress
addon_handles: [memory-topper]
target_discount_percent: 15
voucher_code: BUNDLE2
quantity_choices: [1, 2]
`

type mockCartSession struct {
	mock.Mock
	token string
}

func (m *mockCartSession) AddCartLines(ctx context.Context, lines []models.CartLine) (*models.CartSnapshot, error) {
	args := m.Called(ctx, lines)
	snap, _ := args.Get(0).(*models.CartSnapshot)
	return snap, args.Error(1)
}

func (m *mockCartSession) ApplyDiscount(ctx context.Context, code string) (*models.CartSnapshot, error) {
	args := m.Called(ctx, code)
	snap, _ := args.Get(0).(*models.CartSnapshot)
	return snap, args.Error(1)
}

func (m *mockCartSession) UpdateLineProperties(ctx context.Context, key string, quantity int, properties map[string]string) error {
	return m.Called(ctx, key, quantity, properties).Error(0)
}

func (m *mockCartSession) GetCart(ctx context.Context) (*models.CartSnapshot, error) {
	args := m.Called(ctx)
	snap, _ := args.Get(0).(*models.CartSnapshot)
	return snap, args.Error(1)
}

func (m *mockCartSession) Token() string { return m.token }

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Create(ctx context.Context, c *models.BundleCheckout) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockStore) GetByGroupID(ctx context.Context, groupID string) ([]models.BundleCheckout, error) {
	args := m.Called(ctx, groupID)
	rows, _ := args.Get(0).([]models.BundleCheckout)
	return rows, args.Error(1)
}

func (m *mockStore) ListRecent(ctx context.Context, limit int) ([]models.BundleCheckout, error) {
	args := m.Called(ctx, limit)
	rows, _ := args.Get(0).([]models.BundleCheckout)
	return rows, args.Error(1)
}

type fixture struct {
	svc      *BundleService
	catalog  *syncCatalog
	cart     *mockCartSession
	store    *mockStore
	opened   []string
	clockNow time.Time
}

func newFixture(t *testing.T, withStore bool) *fixture {
	t.Helper()
	cfg, err := config.ParseBundle(strings.NewReader(serviceBundleYAML))
	require.NoError(t, err)

	f := &fixture{
		catalog:  newSyncCatalog(testProducts()...),
		cart:     &mockCartSession{token: "cart-abc"},
		store:    &mockStore{},
		clockNow: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	carts := func(token string) CartSession {
		f.opened = append(f.opened, token)
		return f.cart
	}
	var store CheckoutStore
	if withStore {
		store = f.store
	}
	f.svc = NewBundleService(cfg, f.catalog, carts, store, SessionOptions{
		Secret:   "test-secret",
		TokenTTL: time.Hour,
		IdleTTL:  30 * time.Minute,
	})
	f.svc.now = func() time.Time { return f.clockNow }
	return f
}

func (f *fixture) summarySession(t *testing.T) string {
	t.Helper()
	resp, err := f.svc.CreateSession(context.Background(), "")
	require.NoError(t, err)
	id, err := f.svc.SessionID(resp.Token)
	require.NoError(t, err)
	view, err := f.svc.Dispatch(context.Background(), id, bundle.Event{Kind: bundle.EventSkip})
	require.NoError(t, err)
	require.Equal(t, models.StepSummary, view.Step)
	return id
}

func TestCreateSessionIssuesToken(t *testing.T) {
	f := newFixture(t, false)

	resp, err := f.svc.CreateSession(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, models.StepMainVariant, resp.View.Step)
	assert.Equal(t, f.clockNow.Add(time.Hour), resp.ExpiresAt)

	id, err := f.svc.SessionID(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.View.SessionID, id)
	assert.Equal(t, 1, f.svc.ActiveSessions())

	_, err = f.svc.SessionID(resp.Token + "x")
	assert.ErrorIs(t, err, utils.ErrInvalidToken)
}

func TestUnknownSession(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.View("missing")
	assert.ErrorIs(t, err, utils.ErrSessionNotFound)
	_, err = f.svc.Dispatch(context.Background(), "missing", bundle.Event{Kind: bundle.EventNext})
	assert.ErrorIs(t, err, utils.ErrSessionNotFound)
	_, err = f.svc.Checkout(context.Background(), "missing")
	assert.ErrorIs(t, err, utils.ErrSessionNotFound)
}

func TestDispatchPrefetchesEveryHandle(t *testing.T) {
	f := newFixture(t, false)
	resp, err := f.svc.CreateSession(context.Background(), "")
	require.NoError(t, err)

	_, err = f.svc.Dispatch(context.Background(), resp.View.SessionID, bundle.Event{Kind: bundle.EventNext})
	require.NoError(t, err)

	f.catalog.mu.Lock()
	defer f.catalog.mu.Unlock()
	assert.GreaterOrEqual(t, f.catalog.calls["memory-topper"], 2, "prefetch plus slot load")
}

func TestDispatchReturnsViewOnStaleEvent(t *testing.T) {
	f := newFixture(t, false)
	resp, err := f.svc.CreateSession(context.Background(), "")
	require.NoError(t, err)

	stale := &bundle.Guard{Step: models.StepSummary, Slot: 0}
	view, err := f.svc.Dispatch(context.Background(), resp.View.SessionID, bundle.Event{Kind: bundle.EventBack, Guard: stale})
	assert.ErrorIs(t, err, utils.ErrStaleEvent)
	require.NotNil(t, view)
	assert.Equal(t, models.StepMainVariant, view.Step)
}

func TestCheckoutRecordsAudit(t *testing.T) {
	f := newFixture(t, true)
	id := f.summarySession(t)

	f.cart.On("AddCartLines", mock.Anything, mock.Anything).
		Return(&models.CartSnapshot{Token: "cart-abc", ItemCount: 2}, nil).Once()
	f.cart.On("ApplyDiscount", mock.Anything, "BUNDLE2").
		Return(&models.CartSnapshot{Token: "cart-abc", ItemCount: 2}, nil).Once()
	f.cart.On("GetCart", mock.Anything).
		Return(&models.CartSnapshot{Token: "cart-abc", ItemCount: 2}, nil).Once()

	var recorded *models.BundleCheckout
	f.store.On("Create", mock.Anything, mock.AnythingOfType("*models.BundleCheckout")).
		Run(func(args mock.Arguments) { recorded = args.Get(1).(*models.BundleCheckout) }).
		Return(nil).Once()

	resp, err := f.svc.Checkout(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, resp.Result)
	assert.True(t, resp.Result.DiscountApplied)
	assert.False(t, resp.View.Checkout.InFlight)
	assert.Equal(t, []string{""}, f.opened, "first checkout opens a new cart")

	require.NotNil(t, recorded)
	assert.Equal(t, resp.Result.GroupID, recorded.GroupID)
	assert.Equal(t, id, recorded.SessionID)
	assert.Equal(t, models.CheckoutStatusAdded, recorded.Status)
	assert.True(t, recorded.DiscountApplied)
	require.NotNil(t, recorded.VoucherCode)
	assert.Equal(t, "BUNDLE2", *recorded.VoucherCode)
	assert.Greater(t, recorded.TotalOriginal, recorded.FinalPrice)
	assert.Contains(t, string(recorded.Lines), "_bundle_group_id")

	f.cart.AssertExpectations(t)
	f.store.AssertExpectations(t)
}

func TestCheckoutFailureIsRetryable(t *testing.T) {
	f := newFixture(t, true)
	id := f.summarySession(t)

	f.cart.On("AddCartLines", mock.Anything, mock.Anything).
		Return(nil, &utils.CartError{Status: 422, Message: "sold out"}).Once()
	f.store.On("Create", mock.Anything, mock.MatchedBy(func(c *models.BundleCheckout) bool {
		return c.Status == models.CheckoutStatusFailed && c.FailedReason != nil
	})).Return(nil).Once()

	resp, err := f.svc.Checkout(context.Background(), id)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Nil(t, resp.Result)
	assert.True(t, resp.View.Checkout.Pending)
	assert.False(t, resp.View.Checkout.InFlight)
	f.store.AssertExpectations(t)
}

func TestCheckoutKeepsCartToken(t *testing.T) {
	f := newFixture(t, false)
	id := f.summarySession(t)

	f.cart.On("AddCartLines", mock.Anything, mock.Anything).
		Return(nil, &utils.CartError{Status: 503}).Once()
	_, err := f.svc.Checkout(context.Background(), id)
	require.Error(t, err)

	f.cart.On("AddCartLines", mock.Anything, mock.Anything).
		Return(&models.CartSnapshot{Token: "cart-abc"}, nil).Once()
	f.cart.On("ApplyDiscount", mock.Anything, "BUNDLE2").Return(nil, &utils.DiscountError{Code: "BUNDLE2"}).Once()
	f.cart.On("GetCart", mock.Anything).Return(&models.CartSnapshot{Token: "cart-abc"}, nil).Once()

	resp, err := f.svc.Checkout(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, resp.Result.DiscountApplied)
	assert.Equal(t, []string{"", "cart-abc"}, f.opened)
}

func TestCheckoutOutsideSummary(t *testing.T) {
	f := newFixture(t, false)
	resp, err := f.svc.CreateSession(context.Background(), "")
	require.NoError(t, err)

	out, err := f.svc.Checkout(context.Background(), resp.View.SessionID)
	assert.ErrorIs(t, err, utils.ErrInvalidEvent)
	require.NotNil(t, out)
	assert.Equal(t, models.StepMainVariant, out.View.Step)
	assert.Empty(t, f.opened)
}

func TestGetCheckoutWithoutStore(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.GetCheckout(context.Background(), "g-1")
	assert.ErrorIs(t, err, utils.ErrCheckoutNotFound)

	rows, err := f.svc.ListCheckouts(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestGetCheckoutDelegates(t *testing.T) {
	f := newFixture(t, true)
	f.store.On("GetByGroupID", mock.Anything, "g-1").
		Return([]models.BundleCheckout{{GroupID: "g-1", Status: models.CheckoutStatusAdded}}, nil).Once()

	rows, err := f.svc.GetCheckout(context.Background(), "g-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "g-1", rows[0].GroupID)
}

func TestSweepDropsIdleSessions(t *testing.T) {
	f := newFixture(t, false)
	first, err := f.svc.CreateSession(context.Background(), "")
	require.NoError(t, err)

	f.clockNow = f.clockNow.Add(20 * time.Minute)
	second, err := f.svc.CreateSession(context.Background(), "")
	require.NoError(t, err)

	f.clockNow = f.clockNow.Add(15 * time.Minute)
	assert.Equal(t, 1, f.svc.Sweep())
	assert.Equal(t, 1, f.svc.ActiveSessions())

	_, err = f.svc.View(first.View.SessionID)
	assert.ErrorIs(t, err, utils.ErrSessionNotFound)
	_, err = f.svc.View(second.View.SessionID)
	assert.NoError(t, err)
}

type recordingNotifier struct {
	rows []*models.BundleCheckout
}

func (n *recordingNotifier) NotifyCheckout(row *models.BundleCheckout) {
	n.rows = append(n.rows, row)
}

func TestCheckoutNotifiesWithoutStore(t *testing.T) {
	f := newFixture(t, false)
	n := &recordingNotifier{}
	f.svc.SetNotifier(n)
	id := f.summarySession(t)

	f.cart.On("AddCartLines", mock.Anything, mock.Anything).
		Return(nil, &utils.CartError{Status: 422, Message: "sold out"}).Once()

	_, err := f.svc.Checkout(context.Background(), id)
	require.Error(t, err)
	require.Len(t, n.rows, 1)
	assert.Equal(t, models.CheckoutStatusFailed, n.rows[0].Status)
	assert.Equal(t, id, n.rows[0].SessionID)
}
