package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/gtd_bundle/internal/models"
	"github.com/GTDGit/gtd_bundle/internal/utils"
)

type stubFetcher struct {
	mu       sync.Mutex
	products map[string]*models.Product
	err      error
	calls    int
	delay    time.Duration
}

func (f *stubFetcher) FetchProduct(ctx context.Context, handle string) (*models.Product, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.products[handle]
	if !ok {
		return nil, errors.New("not found")
	}
	return p, nil
}

type stubStore struct {
	items map[string]*models.Product
	sets  int
}

func (s *stubStore) Get(_ context.Context, handle string) (*models.Product, bool, error) {
	p, ok := s.items[handle]
	return p, ok, nil
}

func (s *stubStore) Set(_ context.Context, p *models.Product) error {
	s.sets++
	s.items[p.Handle] = p
	return nil
}

func product(handle string) *models.Product {
	return &models.Product{
		ID:      1,
		Handle:  handle,
		Options: []models.Option{{Name: "Size", Values: []string{"Queen", "King"}}},
		Variants: []models.Variant{
			{ID: 11, Options: []string{"Queen"}, Price: 100, Available: true},
			{ID: 12, Options: []string{"King"}, Price: 120, Available: true},
		},
	}
}

func TestCacheFetchesOnce(t *testing.T) {
	f := &stubFetcher{products: map[string]*models.Product{"pillow": product("pillow")}}
	c := New(f, nil, time.Second)

	p1, err := c.Get(context.Background(), "pillow")
	require.NoError(t, err)
	p2, err := c.Get(context.Background(), "Pillow")
	require.NoError(t, err)

	assert.Same(t, p1, p2)
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, 1, c.Len())
}

func TestCacheUsesStoreBeforeFetcher(t *testing.T) {
	f := &stubFetcher{products: map[string]*models.Product{}}
	s := &stubStore{items: map[string]*models.Product{"topper": product("topper")}}
	c := New(f, s, time.Second)

	p, err := c.Get(context.Background(), "topper")
	require.NoError(t, err)
	assert.Equal(t, "topper", p.Handle)
	assert.Equal(t, 0, f.calls)
}

func TestCacheWritesThroughToStore(t *testing.T) {
	f := &stubFetcher{products: map[string]*models.Product{"pillow": product("pillow")}}
	s := &stubStore{items: map[string]*models.Product{}}
	c := New(f, s, time.Second)

	_, err := c.Get(context.Background(), "pillow")
	require.NoError(t, err)
	assert.Equal(t, 1, s.sets)
}

func TestCacheWrapsFetchFailure(t *testing.T) {
	f := &stubFetcher{err: errors.New("boom")}
	c := New(f, nil, time.Second)

	_, err := c.Get(context.Background(), "pillow")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrFetchFailed)

	var fe *utils.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "pillow", fe.Handle)
	assert.Equal(t, 0, c.Len())
}

func TestCacheFetchTimeout(t *testing.T) {
	f := &stubFetcher{products: map[string]*models.Product{"pillow": product("pillow")}, delay: time.Second}
	c := New(f, nil, 20*time.Millisecond)

	_, err := c.Get(context.Background(), "pillow")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrFetchFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCacheRejectsMalformedProduct(t *testing.T) {
	bad := product("pillow")
	bad.Variants[0].Options = nil
	f := &stubFetcher{products: map[string]*models.Product{"pillow": bad}}
	c := New(f, nil, time.Second)

	_, err := c.Get(context.Background(), "pillow")
	assert.ErrorIs(t, err, utils.ErrFetchFailed)
}

func TestCacheInvalidateAndRefresh(t *testing.T) {
	f := &stubFetcher{products: map[string]*models.Product{"pillow": product("pillow")}}
	c := New(f, nil, time.Second)

	require.NoError(t, c.Put(product("pillow")))
	_, err := c.Get(context.Background(), "pillow")
	require.NoError(t, err)
	assert.Equal(t, 0, f.calls)

	c.Invalidate("pillow")
	assert.Equal(t, 0, c.Len())

	_, err = c.Refresh(context.Background(), "pillow")
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, 1, c.Len())
}
