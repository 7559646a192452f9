// Package search orchestrates the search pipeline: cache lookup, engine
// query, relational enrichment, product grouping, suggestion fallback, and
// the opportunistic cache write.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/youssefhesham2000/Catalog-Service/internal/cache"
	"github.com/youssefhesham2000/Catalog-Service/internal/domain"
	"github.com/youssefhesham2000/Catalog-Service/internal/engine"
	"github.com/youssefhesham2000/Catalog-Service/internal/repository"
	apperrors "github.com/youssefhesham2000/Catalog-Service/pkg/errors"
	"github.com/youssefhesham2000/Catalog-Service/pkg/httputil"
	"github.com/youssefhesham2000/Catalog-Service/pkg/logger"
)

// Config holds the service-level tunables.
type Config struct {
	SearchTTL time.Duration
	FacetsTTL time.Duration
}

// DefaultConfig returns the default cache TTLs: 300s for search pages, 600s
// for facet responses.
func DefaultConfig() Config {
	return Config{
		SearchTTL: 5 * time.Minute,
		FacetsTTL: 10 * time.Minute,
	}
}

// Service executes search and facet requests. The engine is the only hard
// dependency: a nil variant repository or cache degrades the pipeline
// (thinner product cards, no caching) without failing requests.
type Service struct {
	engine   engine.SearchEngine
	variants repository.VariantOptionRepository
	cache    cache.ResponseCache
	cfg      Config
	logger   *slog.Logger
	flight   singleflight.Group
}

// NewService creates the search service.
func NewService(eng engine.SearchEngine, variants repository.VariantOptionRepository, responseCache cache.ResponseCache, cfg Config, log *slog.Logger) *Service {
	if cfg.SearchTTL <= 0 {
		cfg.SearchTTL = DefaultConfig().SearchTTL
	}
	if cfg.FacetsTTL <= 0 {
		cfg.FacetsTTL = DefaultConfig().FacetsTTL
	}
	return &Service{
		engine:   eng,
		variants: variants,
		cache:    responseCache,
		cfg:      cfg,
		logger:   log,
	}
}

// profile is the per-stage latency breakdown emitted with every uncached
// request completion log.
type profile struct {
	cacheCheck    time.Duration
	opensearch    time.Duration
	postgres      time.Duration
	grouping      time.Duration
	buildResponse time.Duration
	cacheWrite    time.Duration
	total         time.Duration
}

type searchOutcome struct {
	resp *domain.SearchResponse
	prof profile
}

type facetsOutcome struct {
	resp *domain.FacetsResponse
	prof profile
}

// Search runs the full search pipeline for a query. The query is normalized
// and validated before any external call; a validation failure is a
// BadRequest with no side effects.
func (s *Service) Search(ctx context.Context, query *domain.SearchQuery) (*domain.SearchResponse, error) {
	start := time.Now()

	query.Normalize()
	if err := query.Validate(); err != nil {
		return nil, err
	}

	key := cache.SearchKey(query)

	cacheStart := time.Now()
	entry := s.lookupCache(ctx, key)
	cacheCheck := time.Since(cacheStart)

	if entry != nil && !entry.Stale {
		if resp, err := decodeSearchResponse(entry.Payload); err == nil {
			s.stampSearchMeta(ctx, resp, start)
			prof := profile{cacheCheck: cacheCheck, total: time.Since(start)}
			s.logProfile(ctx, "search", prof)
			pipelineDuration.WithLabelValues("search", outcomeHit).Observe(time.Since(start).Seconds())
			return resp, nil
		}
		// Undecodable entry: fall through to the live pipeline.
		_ = s.cache.Delete(ctx, key)
		entry = nil
	}

	// Concurrent identical misses collapse into one engine round-trip. The
	// shared work is detached from the first caller's cancellation so a
	// client disconnect cannot fail the collapsed waiters; the engine's own
	// per-call timeout still bounds it.
	flightCtx := context.WithoutCancel(ctx)
	shared, err, _ := s.flight.Do(key, func() (any, error) {
		return s.searchPipeline(flightCtx, query, key)
	})
	if err != nil {
		if entry != nil {
			if resp, decErr := decodeSearchResponse(entry.Payload); decErr == nil {
				staleServed.Inc()
				logger.WithContext(ctx, s.logger).WarnContext(ctx, "serving stale search response",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
				s.stampSearchMeta(ctx, resp, start)
				pipelineDuration.WithLabelValues("search", outcomeStale).Observe(time.Since(start).Seconds())
				return resp, nil
			}
		}
		pipelineDuration.WithLabelValues("search", outcomeError).Observe(time.Since(start).Seconds())
		return nil, s.mapDependencyError(ctx, err, "search")
	}

	outcome := shared.(*searchOutcome)

	// The outcome may be shared between collapsed callers; stamp a copy so
	// each response carries its own correlation id and timing.
	resp := *outcome.resp
	s.stampSearchMeta(ctx, &resp, start)

	prof := outcome.prof
	prof.cacheCheck = cacheCheck
	prof.total = time.Since(start)
	s.logProfile(ctx, "search", prof)
	pipelineDuration.WithLabelValues("search", outcomeMiss).Observe(time.Since(start).Seconds())

	return &resp, nil
}

// searchPipeline is the uncached path: engine query, enrichment, grouping,
// suggestions, response assembly, cache write.
func (s *Service) searchPipeline(ctx context.Context, query *domain.SearchQuery, key string) (*searchOutcome, error) {
	var prof profile

	stage := time.Now()
	result, err := s.engine.Search(ctx, query)
	prof.opensearch = time.Since(stage)
	stageDuration.WithLabelValues("opensearch").Observe(prof.opensearch.Seconds())
	if err != nil {
		return nil, fmt.Errorf("engine search: %w", err)
	}

	stage = time.Now()
	options := s.variantOptions(ctx, result.Hits)
	prof.postgres = time.Since(stage)
	stageDuration.WithLabelValues("postgres").Observe(prof.postgres.Seconds())

	stage = time.Now()
	products := groupHits(result.Hits, options)
	cursor := nextCursor(result.Hits, query.Limit)
	prof.grouping = time.Since(stage)
	stageDuration.WithLabelValues("grouping").Observe(prof.grouping.Seconds())

	var suggestions []domain.Suggestion
	if result.Total == 0 {
		suggestions = s.suggest(ctx, query.Text)
	}

	stage = time.Now()
	resp := &domain.SearchResponse{
		Data: products,
		Meta: domain.SearchMeta{
			Timestamp: httputil.Timestamp(),
			Pagination: domain.Pagination{
				Total:      result.Total,
				Count:      len(products),
				NextCursor: cursor,
			},
			Took: result.TookMs,
		},
		Suggestions: suggestions,
	}
	prof.buildResponse = time.Since(stage)

	stage = time.Now()
	s.writeCache(ctx, key, resp, s.cfg.SearchTTL)
	prof.cacheWrite = time.Since(stage)
	stageDuration.WithLabelValues("cacheWrite").Observe(prof.cacheWrite.Seconds())

	return &searchOutcome{resp: resp, prof: prof}, nil
}

// Facets runs the aggregation pipeline. Invalid facet keys were dropped
// during normalization and are logged here, never rejected; a request whose
// keys all dropped is a BadRequest.
func (s *Service) Facets(ctx context.Context, query *domain.FacetQuery) (*domain.FacetsResponse, error) {
	start := time.Now()

	dropped := query.Normalize()
	if len(dropped) > 0 {
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "dropped invalid facet keys",
			slog.Any("keys", dropped),
		)
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	key := cache.FacetsKey(query)

	cacheStart := time.Now()
	entry := s.lookupCache(ctx, key)
	cacheCheck := time.Since(cacheStart)

	if entry != nil && !entry.Stale {
		if resp, err := decodeFacetsResponse(entry.Payload); err == nil {
			s.stampFacetsMeta(ctx, resp, start)
			s.logProfile(ctx, "facets", profile{cacheCheck: cacheCheck, total: time.Since(start)})
			pipelineDuration.WithLabelValues("facets", outcomeHit).Observe(time.Since(start).Seconds())
			return resp, nil
		}
		_ = s.cache.Delete(ctx, key)
		entry = nil
	}

	flightCtx := context.WithoutCancel(ctx)
	shared, err, _ := s.flight.Do(key, func() (any, error) {
		return s.facetsPipeline(flightCtx, query, key)
	})
	if err != nil {
		if entry != nil {
			if resp, decErr := decodeFacetsResponse(entry.Payload); decErr == nil {
				staleServed.Inc()
				logger.WithContext(ctx, s.logger).WarnContext(ctx, "serving stale facets response",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
				s.stampFacetsMeta(ctx, resp, start)
				pipelineDuration.WithLabelValues("facets", outcomeStale).Observe(time.Since(start).Seconds())
				return resp, nil
			}
		}
		pipelineDuration.WithLabelValues("facets", outcomeError).Observe(time.Since(start).Seconds())
		return nil, s.mapDependencyError(ctx, err, "facets")
	}

	outcome := shared.(*facetsOutcome)
	resp := *outcome.resp
	s.stampFacetsMeta(ctx, &resp, start)

	prof := outcome.prof
	prof.cacheCheck = cacheCheck
	prof.total = time.Since(start)
	s.logProfile(ctx, "facets", prof)
	pipelineDuration.WithLabelValues("facets", outcomeMiss).Observe(time.Since(start).Seconds())

	return &resp, nil
}

func (s *Service) facetsPipeline(ctx context.Context, query *domain.FacetQuery, key string) (*facetsOutcome, error) {
	var prof profile

	stage := time.Now()
	result, err := s.engine.Facets(ctx, query)
	prof.opensearch = time.Since(stage)
	stageDuration.WithLabelValues("opensearch").Observe(prof.opensearch.Seconds())
	if err != nil {
		return nil, fmt.Errorf("engine facets: %w", err)
	}

	stage = time.Now()
	resp := &domain.FacetsResponse{
		Data: result.Facets,
		Meta: domain.FacetsMeta{
			Timestamp:    httputil.Timestamp(),
			TotalMatches: result.Total,
			Took:         result.TookMs,
		},
	}
	prof.buildResponse = time.Since(stage)

	stage = time.Now()
	s.writeCache(ctx, key, resp, s.cfg.FacetsTTL)
	prof.cacheWrite = time.Since(stage)

	return &facetsOutcome{resp: resp, prof: prof}, nil
}

// lookupCache reads the response cache. All cache failures are absorbed: the
// request proceeds as a miss.
func (s *Service) lookupCache(ctx context.Context, key string) *cache.Entry {
	if s.cache == nil {
		return nil
	}
	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "cache lookup failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return entry
}

// writeCache stores a response opportunistically. The write survives a
// client disconnect (the warm entry benefits the next caller) but carries
// its own short deadline so it cannot linger.
func (s *Service) writeCache(ctx context.Context, key string, resp any, ttl time.Duration) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "cache write marshal failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := s.cache.Set(writeCtx, key, payload, ttl); err != nil {
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// variantOptions batches the relational lookup for all products on the page.
// Failures degrade to an empty map: the grouper falls back to the variants
// observed in the hits.
func (s *Service) variantOptions(ctx context.Context, hits []engine.Hit) map[string][]domain.VariantOption {
	if s.variants == nil || len(hits) == 0 {
		return map[string][]domain.VariantOption{}
	}

	seen := make(map[string]struct{}, len(hits))
	productIDs := make([]string, 0, len(hits))
	for _, h := range hits {
		if _, ok := seen[h.Source.ProductID]; ok {
			continue
		}
		seen[h.Source.ProductID] = struct{}{}
		productIDs = append(productIDs, h.Source.ProductID)
	}

	options, err := s.variants.ListByProductIDs(ctx, productIDs)
	if err != nil {
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "variant enrichment failed, degrading to hit variants",
			slog.Int("products", len(productIDs)),
			slog.String("error", err.Error()),
		)
		return map[string][]domain.VariantOption{}
	}
	return options
}

// suggest runs the zero-result suggestion pipeline. It never contributes an
// error: a failed suggester yields no suggestions.
func (s *Service) suggest(ctx context.Context, text string) []domain.Suggestion {
	suggestions, err := s.engine.Suggest(ctx, text)
	if err != nil {
		suggestionRuns.WithLabelValues("error").Inc()
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "suggestion pipeline failed",
			slog.String("error", err.Error()),
		)
		return nil
	}
	suggestionRuns.WithLabelValues("ok").Inc()
	if len(suggestions) == 0 {
		return nil
	}
	return suggestions
}

// stampSearchMeta overwrites the per-request meta fields. Cached and shared
// payloads keep their data but always report the current request's
// timestamp, correlation id, and elapsed time.
func (s *Service) stampSearchMeta(ctx context.Context, resp *domain.SearchResponse, start time.Time) {
	resp.Meta.Timestamp = httputil.Timestamp()
	resp.Meta.CorrelationID = logger.CorrelationIDFromContext(ctx)
	resp.Meta.Took = time.Since(start).Milliseconds()
}

func (s *Service) stampFacetsMeta(ctx context.Context, resp *domain.FacetsResponse, start time.Time) {
	resp.Meta.Timestamp = httputil.Timestamp()
	resp.Meta.CorrelationID = logger.CorrelationIDFromContext(ctx)
	resp.Meta.Took = time.Since(start).Milliseconds()
}

// mapDependencyError translates a pipeline failure into its wire error. The
// raw cause stays in the logs; the engine path cannot degrade, so anything
// not already an AppError surfaces as 503 (or 504 on deadline).
func (s *Service) mapDependencyError(ctx context.Context, err error, pipeline string) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	logger.WithContext(ctx, s.logger).ErrorContext(ctx, "search engine request failed",
		slog.String("pipeline", pipeline),
		slog.String("error", err.Error()),
	)

	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.GatewayTimeout("search engine timed out")
	}
	return apperrors.ServiceUnavailable("search engine is unavailable")
}

// logProfile emits the per-stage latency breakdown of a completed request.
func (s *Service) logProfile(ctx context.Context, pipeline string, prof profile) {
	logger.WithContext(ctx, s.logger).InfoContext(ctx, "request profile",
		slog.String("pipeline", pipeline),
		slog.Int64("cacheCheck", prof.cacheCheck.Milliseconds()),
		slog.Int64("opensearch", prof.opensearch.Milliseconds()),
		slog.Int64("postgres", prof.postgres.Milliseconds()),
		slog.Int64("grouping", prof.grouping.Milliseconds()),
		slog.Int64("buildResponse", prof.buildResponse.Milliseconds()),
		slog.Int64("cacheWrite", prof.cacheWrite.Milliseconds()),
		slog.Int64("total", prof.total.Milliseconds()),
	)
}

func decodeSearchResponse(payload []byte) (*domain.SearchResponse, error) {
	var resp domain.SearchResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decode cached search response: %w", err)
	}
	return &resp, nil
}

func decodeFacetsResponse(payload []byte) (*domain.FacetsResponse, error) {
	var resp domain.FacetsResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decode cached facets response: %w", err)
	}
	return &resp, nil
}
