package opensearch

import (
	"sort"

	"github.com/youssefhesham2000/Catalog-Service/internal/domain"
)

// searchFields are the analyzed text fields targeted by the multi_match
// clause, with per-field boosts.
var searchFields = []string{
	"productName^3",
	"productDescription",
	"brand^2",
	"categoryName",
	"sku",
	"attributes.*",
}

// textQuery builds the full-text clause. The wildcard query "*" matches
// everything; anything else is a best-fields multi_match with automatic
// fuzziness behind a 2-character verbatim prefix.
func textQuery(text string) map[string]any {
	if text == "*" {
		return map[string]any{"match_all": map[string]any{}}
	}
	return map[string]any{
		"multi_match": map[string]any{
			"query":         text,
			"fields":        searchFields,
			"type":          "best_fields",
			"fuzziness":     "AUTO",
			"prefix_length": 2,
		},
	}
}

// buildFilters constructs the filter clauses shared by the search and facet
// bodies. Filters never contribute to the score. Attribute filters target
// the keyword sub-field; multi-valued filters become terms clauses.
func buildFilters(q *domain.SearchQuery) []any {
	var filters []any

	if q.CategoryID != nil {
		filters = append(filters, map[string]any{
			"term": map[string]any{"categoryId": *q.CategoryID},
		})
	}

	if q.Brand != nil {
		filters = append(filters, map[string]any{
			"term": map[string]any{"brand.keyword": *q.Brand},
		})
	}

	if q.PriceRange != nil {
		bounds := map[string]any{}
		if q.PriceRange.Min != nil {
			bounds["gte"] = *q.PriceRange.Min
		}
		if q.PriceRange.Max != nil {
			bounds["lte"] = *q.PriceRange.Max
		}
		if len(bounds) > 0 {
			filters = append(filters, map[string]any{
				"range": map[string]any{"priceFrom": bounds},
			})
		}
	}

	// Sorted key order keeps the generated body deterministic.
	keys := make([]string, 0, len(q.AttributeFilters))
	for k := range q.AttributeFilters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		field := domain.AttributeFacetPrefix + k + ".keyword"
		values := q.AttributeFilters[k]
		if len(values) == 1 {
			filters = append(filters, map[string]any{
				"term": map[string]any{field: values[0]},
			})
		} else {
			filters = append(filters, map[string]any{
				"terms": map[string]any{field: values},
			})
		}
	}

	return filters
}

// buildSearchBody constructs the search request body: the text clause wrapped
// in a function_score sales boost, unscored filters, the strictly total sort
// (_score desc, productId asc) that makes search_after deterministic, and the
// decoded cursor when one was supplied.
func (e *Engine) buildSearchBody(q *domain.SearchQuery) map[string]any {
	scored := map[string]any{
		"function_score": map[string]any{
			"query": textQuery(q.Text),
			"functions": []any{
				map[string]any{
					"field_value_factor": map[string]any{
						"field":    "sales30d",
						"factor":   e.boostFactor,
						"modifier": e.boostModifier,
						"missing":  1,
					},
				},
			},
			"score_mode": "multiply",
			"boost_mode": "multiply",
		},
	}

	boolQuery := map[string]any{"must": []any{scored}}
	if filters := buildFilters(q); len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	body := map[string]any{
		"query":            map[string]any{"bool": boolQuery},
		"size":             q.Limit,
		"sort":             []any{map[string]any{"_score": "desc"}, map[string]any{"productId": "asc"}},
		"track_total_hits": true,
	}

	if sortAfter, ok := domain.DecodeCursor(q.Cursor); ok {
		body["search_after"] = sortAfter
	}

	return body
}

// buildFacetsBody constructs the aggregation variant: same text and filters,
// size 0, one aggregation per requested facet key.
func buildFacetsBody(q *domain.FacetQuery) map[string]any {
	boolQuery := map[string]any{"must": []any{textQuery(q.Text)}}
	if filters := buildFilters(&q.SearchQuery); len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	aggs := make(map[string]any, len(q.FacetKeys))
	for _, key := range q.FacetKeys {
		aggs[key] = buildAggregation(key)
	}

	return map[string]any{
		"query":            map[string]any{"bool": boolQuery},
		"size":             0,
		"aggs":             aggs,
		"track_total_hits": true,
	}
}

// buildAggregation maps a facet key to its aggregation: priceFrom gets the
// fixed range buckets, everything else a terms aggregation on the keyword
// (sub-)field ordered by document count.
func buildAggregation(key string) map[string]any {
	if key == domain.FacetKeyPriceFrom {
		ranges := make([]any, 0, len(domain.PriceFacetBuckets))
		for _, b := range domain.PriceFacetBuckets {
			r := map[string]any{"key": b.Label}
			if b.From != nil {
				r["from"] = *b.From
			}
			if b.To != nil {
				r["to"] = *b.To
			}
			ranges = append(ranges, r)
		}
		return map[string]any{
			"range": map[string]any{
				"field":  "priceFrom",
				"ranges": ranges,
			},
		}
	}

	return map[string]any{
		"terms": map[string]any{
			"field": facetField(key),
			"size":  50,
			"order": map[string]any{"_count": "desc"},
		},
	}
}

// facetField resolves the indexed field behind a facet key. productId and
// categoryId are plain keyword fields; analyzed text fields carry a keyword
// sub-field, and so do the dynamic attributes.
func facetField(key string) string {
	switch key {
	case domain.FacetKeyBrand:
		return "brand.keyword"
	case domain.FacetKeyCategoryName:
		return "categoryName.keyword"
	case domain.FacetKeyCategoryID:
		return "categoryId"
	}
	return key + ".keyword"
}
