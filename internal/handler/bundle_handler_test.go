package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/gtd_bundle/internal/config"
	"github.com/GTDGit/gtd_bundle/internal/middleware"
	"github.com/GTDGit/gtd_bundle/internal/models"
	"github.com/GTDGit/gtd_bundle/internal/service"
	"github.com/GTDGit/gtd_bundle/internal/utils"
)

type staticCatalog map[string]*models.Product

func (s staticCatalog) Get(_ context.Context, handle string) (*models.Product, error) {
	if p, ok := s[handle]; ok {
		return p, nil
	}
	return nil, &utils.FetchError{Handle: handle, Err: errors.New("not found")}
}

type failingCart struct{}

func (failingCart) AddCartLines(context.Context, []models.CartLine) (*models.CartSnapshot, error) {
	return nil, &utils.CartError{Status: 503, Message: "Service Unavailable"}
}

func (failingCart) ApplyDiscount(context.Context, string) (*models.CartSnapshot, error) {
	return nil, errors.New("unexpected")
}

func (failingCart) UpdateLineProperties(context.Context, string, int, map[string]string) error {
	return errors.New("unexpected")
}

func (failingCart) GetCart(context.Context) (*models.CartSnapshot, error) {
	return nil, errors.New("unexpected")
}

func (failingCart) Token() string { return "" }

func testCatalog() staticCatalog {
	compare := int64(1000000)
	return staticCatalog{
		"cloud-mattress": {
			ID: 1, Handle: "cloud-mattress", Title: "Cloud Mattress",
			Options: []models.Option{{Name: "Size", Values: []string{"Queen 160x200", "King 180x200"}}},
			Variants: []models.Variant{
				{ID: 11, Title: "Queen 160x200", Options: []string{"Queen 160x200"}, Price: 800000, CompareAtPrice: &compare, Available: true},
				{ID: 12, Title: "King 180x200", Options: []string{"King 180x200"}, Price: 1000000, Available: true},
			},
		},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code      string `json:"code"`
		Retryable bool   `json:"retryable"`
	} `json:"error"`
	Meta struct {
		Pagination *struct {
			Limit int `json:"limit"`
		} `json:"pagination"`
	} `json:"meta"`
}

const testOperatorSecret = "ops-secret"

func operatorToken(t *testing.T) string {
	t.Helper()
	tok, err := utils.GenerateOperatorToken(testOperatorSecret, "alice", time.Hour)
	require.NoError(t, err)
	return tok
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg, err := config.ParseBundle(strings.NewReader("title: Sleep Set\nmain_handle: cloud-mattress\nquantity_choices: [1, 2]\n"))
	require.NoError(t, err)
	svc := service.NewBundleService(cfg, testCatalog(),
		func(string) service.CartSession { return failingCart{} }, nil,
		service.SessionOptions{Secret: "secret", TokenTTL: time.Hour, IdleTTL: time.Hour})

	r := gin.New()
	v1 := r.Group("/v1")
	RegisterBundleRoutes(v1, NewBundleHandler(svc), nil, middleware.NewSessionMiddleware(svc, nil).Handle(),
		middleware.NewOperatorMiddleware(testOperatorSecret).Handle())
	return r
}

func do(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env
}

func createSession(t *testing.T, r *gin.Engine) string {
	t.Helper()
	code, env := do(t, r, http.MethodPost, "/v1/bundle/sessions", "", nil)
	require.Equal(t, http.StatusCreated, code)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func TestSessionLifecycle(t *testing.T) {
	r := newTestRouter(t)
	token := createSession(t, r)

	code, env := do(t, r, http.MethodGet, "/v1/bundle/session", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"step":"main_variant"`)

	code, env = do(t, r, http.MethodPost, "/v1/bundle/session/events", token, map[string]interface{}{
		"type": "select_option", "option": "Size", "value": "King 180x200",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"id":12`)

	code, env = do(t, r, http.MethodPost, "/v1/bundle/session/events", token, map[string]interface{}{"type": "next"})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"step":"summary"`)
}

func TestEventErrors(t *testing.T) {
	r := newTestRouter(t)
	token := createSession(t, r)

	code, env := do(t, r, http.MethodPost, "/v1/bundle/session/events", token, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)

	code, env = do(t, r, http.MethodPost, "/v1/bundle/session/events", token, map[string]interface{}{
		"type": "back", "guard": map[string]interface{}{"step": "summary", "slot": 0},
	})
	assert.Equal(t, http.StatusConflict, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "STALE_EVENT", env.Error.Code)
	assert.Contains(t, string(env.Data), `"step":"main_variant"`, "stale events return the current view")

	code, env = do(t, r, http.MethodPost, "/v1/bundle/session/events", token, map[string]interface{}{"type": "teleport"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "INVALID_EVENT", env.Error.Code)
}

func TestCheckoutFailureIsRetryable(t *testing.T) {
	r := newTestRouter(t)
	token := createSession(t, r)

	code, _ := do(t, r, http.MethodPost, "/v1/bundle/session/checkout", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code, "checkout needs the summary")

	code, _ = do(t, r, http.MethodPost, "/v1/bundle/session/events", token, map[string]interface{}{"type": "next"})
	require.Equal(t, http.StatusOK, code)

	code, env := do(t, r, http.MethodPost, "/v1/bundle/session/checkout", token, nil)
	assert.Equal(t, http.StatusBadGateway, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CART_ERROR", env.Error.Code)
	assert.True(t, env.Error.Retryable)
	assert.Contains(t, string(env.Data), `"pending":true`)
}

func TestSessionRoutesRequireToken(t *testing.T) {
	r := newTestRouter(t)

	code, _ := do(t, r, http.MethodGet, "/v1/bundle/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := do(t, r, http.MethodGet, "/v1/bundle/session", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "INVALID_TOKEN", env.Error.Code)
}

func TestCheckoutLookupWithoutAudit(t *testing.T) {
	r := newTestRouter(t)
	ops := operatorToken(t)

	code, env := do(t, r, http.MethodGet, "/v1/bundle/checkouts/g-1", ops, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "CHECKOUT_NOT_FOUND", env.Error.Code)

	code, env = do(t, r, http.MethodGet, "/v1/bundle/checkouts?limit=5", ops, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	require.NotNil(t, env.Meta.Pagination)
	assert.Equal(t, 5, env.Meta.Pagination.Limit)
}

func TestCheckoutListLimitIsCapped(t *testing.T) {
	r := newTestRouter(t)
	ops := operatorToken(t)

	cases := map[string]int{"": 50, "?limit=0": 50, "?limit=abc": 50, "?limit=200": 200, "?limit=500": 200}
	for query, want := range cases {
		code, env := do(t, r, http.MethodGet, "/v1/bundle/checkouts"+query, ops, nil)
		require.Equal(t, http.StatusOK, code, query)
		require.NotNil(t, env.Meta.Pagination, query)
		assert.Equal(t, want, env.Meta.Pagination.Limit, query)
	}
}

func TestCheckoutEndpointsRequireOperator(t *testing.T) {
	r := newTestRouter(t)
	session := createSession(t, r)

	for _, path := range []string{"/v1/bundle/checkouts", "/v1/bundle/checkouts/g-1"} {
		code, env := do(t, r, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, code, path)
		assert.Equal(t, "UNAUTHORIZED", env.Error.Code, path)

		code, env = do(t, r, http.MethodGet, path, session, nil)
		assert.Equal(t, http.StatusUnauthorized, code, "session token on %s", path)
		assert.Equal(t, "INVALID_TOKEN", env.Error.Code, path)
	}

	other, err := utils.GenerateOperatorToken("another-secret", "mallory", time.Hour)
	require.NoError(t, err)
	code, _ := do(t, r, http.MethodGet, "/v1/bundle/checkouts", other, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

type healthyStub bool

func (h healthyStub) Healthy() bool { return bool(h) }

type countStub int

func (c countStub) ActiveSessions() int { return int(c) }
func (c countStub) Len() int            { return int(c) }

type pingStub struct{ err error }

func (p pingStub) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		h      *HealthHandler
		status string
	}{
		{"healthy without redis", NewHealthHandler(healthyStub(true), countStub(2), countStub(3), nil), "healthy"},
		{"storefront down", NewHealthHandler(healthyStub(false), countStub(0), countStub(0), nil), "degraded"},
		{"redis down", NewHealthHandler(healthyStub(true), countStub(0), countStub(0), pingStub{errors.New("refused")}), "degraded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/health", tc.h.GetHealth)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			require.Equal(t, http.StatusOK, w.Code)
			var env envelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
			assert.Contains(t, string(env.Data), `"status":"`+tc.status+`"`)
		})
	}
}
