package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	gwmiddleware "github.com/youssefhesham2000/Catalog-Service/internal/middleware"
	"github.com/youssefhesham2000/Catalog-Service/internal/search"
	"github.com/youssefhesham2000/Catalog-Service/internal/throttle"
	"github.com/youssefhesham2000/Catalog-Service/pkg/health"
	"github.com/youssefhesham2000/Catalog-Service/pkg/middleware"
)

// RouterConfig holds the HTTP-layer knobs for the gateway router.
type RouterConfig struct {
	// APIPrefix is the first path segment of the public API, e.g. "api"
	// yields /api/v1/search.
	APIPrefix string

	// RequestTimeout bounds the total time a request may spend in the
	// handler chain.
	RequestTimeout time.Duration

	// CacheControlMaxAge is the max-age (seconds) sent on API responses.
	CacheControlMaxAge int

	CORS middleware.CORSConfig

	// PprofCIDRs enables the pprof endpoints for the listed networks. Empty
	// leaves pprof unregistered.
	PprofCIDRs []string
}

// NewRouter creates a chi router with all gateway routes registered. The rate
// limiter guards only the API subtree: health probes and metrics scrapes are
// exempt.
func NewRouter(
	searchService *search.Service,
	limiter throttle.Limiter,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "api"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(middleware.Timeout(cfg.RequestTimeout, logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("search-gateway"))
	r.Use(middleware.Tracing("search-gateway"))

	// Health check endpoints. Readiness covers the hard dependencies only:
	// redis being down degrades the gateway (no cache, open throttle) but
	// does not pull it out of rotation.
	r.Get("/health", healthHandler.CheckHandler())
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler("opensearch", "postgres"))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	if len(cfg.PprofCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)
	}

	// Search API endpoints
	searchHandler := NewSearchHandler(searchService, logger)

	r.Route("/"+cfg.APIPrefix+"/v1/search", func(r chi.Router) {
		if limiter != nil {
			r.Use(gwmiddleware.RateLimit(limiter, logger))
		}
		if cfg.CacheControlMaxAge > 0 {
			r.Use(middleware.CacheControl(cfg.CacheControlMaxAge))
		}

		r.Get("/", searchHandler.Search)
		r.Get("/facets", searchHandler.Facets)
	})

	return r
}
