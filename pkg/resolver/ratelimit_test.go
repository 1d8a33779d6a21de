package resolver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterWindow(t *testing.T) {
	l := newRateLimiter(2, nil)
	now := time.Now()

	assert.True(t, l.allow("10.0.0.1", now))
	assert.True(t, l.allow("10.0.0.1", now.Add(time.Second)))
	assert.False(t, l.allow("10.0.0.1", now.Add(2*time.Second)),
		"third hit inside the window must be rejected")

	assert.True(t, l.allow("10.0.0.2", now.Add(2*time.Second)),
		"budgets are per client")

	assert.True(t, l.allow("10.0.0.1", now.Add(61*time.Second)),
		"hits outside the window free the budget")
}

func TestRateLimiterSweep(t *testing.T) {
	l := newRateLimiter(5, nil)
	now := time.Now()

	l.allow("10.0.0.1", now)
	l.allow("10.0.0.2", now)
	require.Len(t, l.hits, 2)

	// A hit two windows later triggers the sweep of idle clients.
	l.allow("10.0.0.3", now.Add(3*time.Minute))
	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.hits, 1)
	assert.Contains(t, l.hits, "10.0.0.3")
}

func TestRateLimiterDisabled(t *testing.T) {
	assert.Nil(t, newRateLimiter(0, nil))
	assert.Nil(t, newRateLimiter(-1, nil))

	// A nil limiter must pass requests straight through.
	var l *rateLimiter
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	rec := httptest.NewRecorder()
	l.middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/resolve/x", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterMiddlewareRejects(t *testing.T) {
	l := newRateLimiter(1, nil)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := l.middleware(next)

	req := httptest.NewRequest(http.MethodGet, "/resolve/x", nil)
	req.RemoteAddr = "192.0.2.1:4242"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}
