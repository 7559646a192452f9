package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/youssefhesham2000/Catalog-Service/pkg/errors"
	"github.com/youssefhesham2000/Catalog-Service/pkg/httputil"
)

// Timeout bounds the total time a request may spend in the handler chain.
// When the deadline fires before the handler has written anything, the
// response is the standard error envelope with a GATEWAY_TIMEOUT code, not a
// bare 504.
func Timeout(timeout time.Duration, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			tw := &timeoutWriter{ResponseWriter: w}
			next.ServeHTTP(tw, r.WithContext(ctx))

			if ctx.Err() == context.DeadlineExceeded && !tw.wrote {
				httputil.WriteError(w, r, apperrors.GatewayTimeout("request timed out"), l)
			}
		})
	}
}

// timeoutWriter tracks whether the handler already produced a response, so
// the envelope is only written on an otherwise empty reply.
type timeoutWriter struct {
	http.ResponseWriter
	wrote bool
}

func (w *timeoutWriter) WriteHeader(status int) {
	w.wrote = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *timeoutWriter) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}
