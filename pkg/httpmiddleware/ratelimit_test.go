package httpmiddleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func send(h http.Handler, remote string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/product", nil)
	req.RemoteAddr = remote
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_Window(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := RateLimit(ctx, RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	for i := range 2 {
		w := send(h, "10.0.0.1:1000")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, []string{"1", "0"}[i], w.Header().Get("X-RateLimit-Remaining"))
	}

	w := send(h, "10.0.0.1:1001")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, float64(429), body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])

	assert.Equal(t, http.StatusOK, send(h, "10.0.0.2:1000").Code, "clients are counted separately")
}

func TestLimiter_ResetsAfterWindow(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	l := newLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	l.now = func() time.Time { return now }

	_, _, ok := l.take("a")
	require.True(t, ok)
	_, _, ok = l.take("a")
	require.False(t, ok)

	now = now.Add(time.Minute)
	_, _, ok = l.take("a")
	assert.True(t, ok)

	l.sweep(now.Add(2 * time.Minute))
	assert.Empty(t, l.windows)
}

func TestRateLimit_ForwardedFor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := RateLimit(ctx, RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())
	xff := "203.0.113.50, 70.41.3.18"

	assert.Equal(t, http.StatusOK, send(h, "192.168.1.1:1", "X-Forwarded-For", xff).Code)
	assert.Equal(t, http.StatusTooManyRequests, send(h, "192.168.1.2:1", "X-Forwarded-For", xff).Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	h := RateLimit(context.Background(), RateLimitConfig{})(okHandler())
	for range 5 {
		w := send(h, "10.0.0.1:1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}
