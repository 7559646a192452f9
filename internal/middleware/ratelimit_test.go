package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youssefhesham2000/Catalog-Service/pkg/logger"
)

// stubLimiter records the keys it was asked about.
type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allow, s.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_AllowsWithinLimit(t *testing.T) {
	limiter := &stubLimiter{allow: true}
	h := RateLimit(limiter, logger.New("test", "error"))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=shoes", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, limiter.keys, 1)
	assert.Equal(t, "203.0.113.7", limiter.keys[0], "port is stripped from RemoteAddr")
}

func TestRateLimit_RejectsWith429(t *testing.T) {
	limiter := &stubLimiter{allow: false}
	h := RateLimit(limiter, logger.New("test", "error"))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=shoes", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMIT_EXCEEDED")
}

func TestRateLimit_FailsOpenOnBackendError(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("store down")}
	h := RateLimit(limiter, logger.New("test", "error"))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=shoes", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "limiter outage must not block traffic")
}

func TestClientIP_PrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:80"
	req.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.2")
	req.Header.Set("X-Real-IP", "198.51.100.10")

	assert.Equal(t, "198.51.100.9", clientIP(req))
}

func TestClientIP_FallsBackToRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:80"
	req.Header.Set("X-Forwarded-For", "not-an-ip")
	req.Header.Set("X-Real-IP", "198.51.100.10")

	assert.Equal(t, "198.51.100.10", clientIP(req))
}

func TestClientIP_FallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.4:39112"

	assert.Equal(t, "192.0.2.4", clientIP(req))
}
