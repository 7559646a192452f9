// Package middleware carries the gateway-specific HTTP middleware; the
// shared platform middleware lives in pkg/middleware.
package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/youssefhesham2000/Catalog-Service/internal/throttle"
	apperrors "github.com/youssefhesham2000/Catalog-Service/pkg/errors"
	"github.com/youssefhesham2000/Catalog-Service/pkg/httputil"
)

var throttledRequests = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "throttle_rejected_requests_total",
		Help: "Requests rejected by the rate limiter",
	},
)

// RateLimit enforces the per-client-IP request limit. Mount it on the API
// subtree only: health probes and metrics scrapes stay exempt. A limiter
// backend failure fails open so a degraded store never blocks traffic.
func RateLimit(limiter throttle.Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			ok, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable, failing open",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				throttledRequests.Inc()
				logger.WarnContext(r.Context(), "rate limit exceeded",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				httputil.WriteError(w, r, apperrors.RateLimited("too many requests"), logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the caller's address: first valid X-Forwarded-For hop,
// then X-Real-IP, then RemoteAddr without the port.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip.String()
			}
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
