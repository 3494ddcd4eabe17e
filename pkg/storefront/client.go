package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 15 * time.Second

	// DefaultRetryMax is the retry budget for idempotent reads.
	DefaultRetryMax = 3

	// CartCookie carries the cart identity between requests.
	CartCookie = "cart"
)

// Client talks to the storefront AJAX API. Reads (product and cart fetches)
// are retried; cart mutations are sent exactly once.
type Client struct {
	baseURL string
	reader  *retryablehttp.Client
	writer  *retryablehttp.Client
	debug   bool
}

// NewClient constructs a storefront client for baseURL, e.g.
// "https://shop.example.com".
func NewClient(baseURL string, timeout time.Duration, retryMax int) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if retryMax < 0 {
		retryMax = DefaultRetryMax
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		reader:  newHTTPClient(timeout, retryMax),
		writer:  newHTTPClient(timeout, 0),
		debug:   os.Getenv("ENV") == "development",
	}
}

func newHTTPClient(timeout time.Duration, retryMax int) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.Logger = retryLogger{}
	rc.RetryMax = retryMax
	rc.HTTPClient.Timeout = timeout
	// Hand the final response back so its status and error payload can be mapped.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return rc
}

// FetchProduct retrieves and normalizes /products/{handle}.js.
func (c *Client) FetchProduct(ctx context.Context, handle string) (*Product, error) {
	path := "/products/" + url.PathEscape(handle) + ".js"
	resp, err := c.doRequest(ctx, c.reader, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	if resp.status >= 400 {
		return nil, parseAPIError(resp.status, resp.body)
	}
	return ParseProduct(resp.body)
}

// AddItems adds all items to the cart identified by cartToken in one batch.
// An empty token lets the storefront create a cart; the issued token is
// returned in AddResponse.Token.
func (c *Client) AddItems(ctx context.Context, cartToken string, items []LineItem) (*AddResponse, error) {
	resp, err := c.doRequest(ctx, c.writer, http.MethodPost, "/cart/add.js", cartToken, AddRequest{Items: items})
	if err != nil {
		return nil, err
	}
	if resp.status >= 400 {
		return nil, parseAPIError(resp.status, resp.body)
	}
	var out AddResponse
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	out.Token = resp.cartToken
	return &out, nil
}

// GetCart returns the current cart.
func (c *Client) GetCart(ctx context.Context, cartToken string) (*Cart, error) {
	resp, err := c.doRequest(ctx, c.reader, http.MethodGet, "/cart.js", cartToken, nil)
	if err != nil {
		return nil, err
	}
	return decodeCart(resp)
}

// ApplyDiscount enters a discount code on the cart and returns the updated
// cart. Whether the code took effect is reported in Cart.DiscountCodes.
func (c *Client) ApplyDiscount(ctx context.Context, cartToken, code string) (*Cart, error) {
	resp, err := c.doRequest(ctx, c.writer, http.MethodPost, "/cart/update.js", cartToken, UpdateRequest{Discount: code})
	if err != nil {
		return nil, err
	}
	return decodeCart(resp)
}

// ChangeLine updates one cart line by key.
func (c *Client) ChangeLine(ctx context.Context, cartToken string, req ChangeRequest) (*Cart, error) {
	resp, err := c.doRequest(ctx, c.writer, http.MethodPost, "/cart/change.js", cartToken, req)
	if err != nil {
		return nil, err
	}
	return decodeCart(resp)
}

func decodeCart(resp *response) (*Cart, error) {
	if resp.status >= 400 {
		return nil, parseAPIError(resp.status, resp.body)
	}
	var cart Cart
	if err := json.Unmarshal(resp.body, &cart); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if cart.Token == "" {
		cart.Token = resp.cartToken
	}
	return &cart, nil
}

type response struct {
	status    int
	body      []byte
	cartToken string
}

// doRequest sends a JSON request and reads the whole response body.
func (c *Client) doRequest(ctx context.Context, hc *retryablehttp.Client, method, path, cartToken string, body any) (*response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	if c.debug {
		ev := log.Debug().Str("method", method).Str("endpoint", c.baseURL+path)
		if payload != nil {
			ev = ev.RawJSON("request", payload)
		}
		ev.Msg("[STOREFRONT] Outgoing request")
	}

	var rawBody interface{}
	if payload != nil {
		rawBody = payload
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, rawBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cartToken != "" {
		req.AddCookie(&http.Cookie{Name: CartCookie, Value: cartToken})
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if c.debug {
		log.Debug().
			Str("endpoint", path).
			Int("status_code", resp.StatusCode).
			Bytes("response", respBody).
			Msg("[STOREFRONT] Incoming response")
	}

	out := &response{status: resp.StatusCode, body: respBody, cartToken: cartToken}
	for _, ck := range resp.Cookies() {
		if ck.Name == CartCookie && ck.Value != "" {
			out.cartToken = ck.Value
		}
	}
	return out, nil
}

func statusText(status int) string {
	if t := http.StatusText(status); t != "" {
		return t
	}
	return "unexpected status"
}

// retryLogger routes retryablehttp's leveled logs to zerolog.
type retryLogger struct{}

func (retryLogger) Error(msg string, kv ...interface{}) { log.Error().Fields(kv).Msg(msg) }
func (retryLogger) Warn(msg string, kv ...interface{})  { log.Warn().Fields(kv).Msg(msg) }
func (retryLogger) Info(msg string, kv ...interface{})  { log.Debug().Fields(kv).Msg(msg) }
func (retryLogger) Debug(msg string, kv ...interface{}) { log.Trace().Fields(kv).Msg(msg) }
