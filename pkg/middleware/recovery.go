package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/youssefhesham2000/Catalog-Service/pkg/httputil"
	"github.com/youssefhesham2000/Catalog-Service/pkg/logger"
)

// Recovery recovers from panics and returns a 500 error instead of crashing.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					l.ErrorContext(r.Context(), "panic recovered",
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
					)

					httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorBody{
						Error: httputil.ErrorDetail{
							Code:    "INTERNAL_ERROR",
							Message: "an internal error occurred",
						},
						Meta: httputil.ErrorMeta{
							Timestamp:     httputil.Timestamp(),
							Path:          r.URL.Path,
							CorrelationID: logger.CorrelationIDFromContext(r.Context()),
						},
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
