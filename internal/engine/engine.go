package engine

import (
	"context"

	"github.com/youssefhesham2000/Catalog-Service/internal/domain"
)

// Hit is a single variant-level hit as returned by the engine, in engine
// sort order. Sort carries the raw sort tuple used for search_after
// continuation; it is nil when the engine did not return sort values.
type Hit struct {
	Score  float64
	Source domain.VariantDocument
	Sort   []any
}

// Result is a page of variant hits.
type Result struct {
	Hits   []Hit
	Total  int64
	TookMs int64
}

// FacetsResult holds the aggregations for a facet query.
type FacetsResult struct {
	Facets []domain.Facet
	Total  int64
	TookMs int64
}

// SearchEngine is the read-side contract against the inverted index.
// Implementations wrap every round-trip in the engine circuit breaker and
// apply the per-call engine timeout; callers only thread the request context.
type SearchEngine interface {
	// Search executes a full-text query and returns a page of variant hits.
	Search(ctx context.Context, query *domain.SearchQuery) (*Result, error)

	// Facets executes the aggregation variant of the same query (size 0).
	Facets(ctx context.Context, query *domain.FacetQuery) (*FacetsResult, error)

	// Suggest proposes alternate query terms for a text that matched nothing.
	Suggest(ctx context.Context, text string) ([]domain.Suggestion, error)

	// DeleteDocument removes a variant document from the index. A missing
	// document is not an error.
	DeleteDocument(ctx context.Context, variantID string) error

	// Ping checks whether the engine cluster is reachable.
	Ping(ctx context.Context) error
}
