package handler

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/gtd_bundle/internal/middleware"
	"github.com/GTDGit/gtd_bundle/internal/sse"
)

// readEvent reads one "event:/data:" block from an SSE stream.
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if name != "" {
				return name, data
			}
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		}
	}
}

func TestSSEStreamsCheckoutEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := sse.NewHub()
	h := NewSSEHandler(hub)
	h.ping = time.Hour

	r := gin.New()
	r.GET("/v1/bundle/checkout-events", middleware.NewOperatorMiddleware(testOperatorSecret).Handle(), h.Stream)
	srv := httptest.NewServer(r)
	defer srv.Close()

	unauth, err := http.Get(srv.URL + "/v1/bundle/checkout-events")
	require.NoError(t, err)
	unauth.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, unauth.StatusCode)
	assert.Equal(t, 0, hub.ClientCount())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := srv.URL + "/v1/bundle/checkout-events?token=" + operatorToken(t)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	body := bufio.NewReader(resp.Body)

	name, _ := readEvent(t, body)
	assert.Equal(t, "connected", name)
	assert.Equal(t, 1, hub.ClientCount())

	hub.Broadcast(&sse.CheckoutEvent{Event: sse.EventCheckoutAdded, GroupID: "g-1"})
	name, data := readEvent(t, body)
	assert.Equal(t, "checkout", name)
	assert.Contains(t, data, `"groupId":"g-1"`)

	cancel()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
