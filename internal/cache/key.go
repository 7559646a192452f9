package cache

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/youssefhesham2000/Catalog-Service/internal/domain"
)

// Key prefixes per pipeline.
const (
	SearchPrefix = "search"
	FacetsPrefix = "facets"
)

// SearchKey builds the canonical cache key for a normalized search query.
// Two permutations of the same filter set must map to the same key, so the
// key is assembled from k=json(v) pairs sorted by k. The cursor is included
// verbatim: distinct pages cache independently.
func SearchKey(q *domain.SearchQuery) string {
	return buildKey(SearchPrefix, queryPairs(q))
}

// FacetsKey builds the canonical cache key for a normalized facet query. The
// facet keys are sorted before encoding, so requests differing only in key
// order (or in dropped invalid keys) share one entry.
func FacetsKey(q *domain.FacetQuery) string {
	pairs := queryPairs(&q.SearchQuery)

	keys := make([]string, len(q.FacetKeys))
	copy(keys, q.FacetKeys)
	sort.Strings(keys)
	pairs["facetKeys"] = jsonValue(keys)

	return buildKey(FacetsPrefix, pairs)
}

// queryPairs flattens a normalized query into its key=value components.
// Attribute filter values are already sorted and deduped by Normalize.
func queryPairs(q *domain.SearchQuery) map[string]string {
	pairs := map[string]string{
		"q":     jsonValue(q.Text),
		"limit": jsonValue(q.Limit),
	}

	if q.CategoryID != nil {
		pairs["categoryId"] = jsonValue(*q.CategoryID)
	}
	if q.Brand != nil {
		pairs["brand"] = jsonValue(*q.Brand)
	}
	if q.PriceRange != nil {
		if q.PriceRange.Min != nil {
			pairs["priceRange.min"] = jsonValue(*q.PriceRange.Min)
		}
		if q.PriceRange.Max != nil {
			pairs["priceRange.max"] = jsonValue(*q.PriceRange.Max)
		}
	}
	for key, values := range q.AttributeFilters {
		pairs[domain.AttributeFacetPrefix+key] = jsonValue(values)
	}
	if q.Cursor != "" {
		pairs["cursor"] = jsonValue(q.Cursor)
	}

	return pairs
}

// buildKey renders "<prefix>:<sorted k=json(v) joined by '|'>".
func buildKey(prefix string, pairs map[string]string) string {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte(':')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(pairs[k])
	}
	return b.String()
}

// jsonValue encodes a value as compact JSON. Marshaling the primitive types
// used in keys cannot fail.
func jsonValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
