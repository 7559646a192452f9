package opensearch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youssefhesham2000/Catalog-Service/internal/domain"
)

func strPtr(s string) *string { return &s }
func f64(v float64) *float64  { return &v }

// queryEngine returns an engine with just the fields the body builders read.
func queryEngine() *Engine {
	return &Engine{boostFactor: 1.2, boostModifier: "log1p"}
}

func toJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

// --- Text clause ---

func TestTextQuery_Wildcard(t *testing.T) {
	assert.JSONEq(t, `{"match_all": {}}`, toJSON(t, textQuery("*")))
}

func TestTextQuery_MultiMatch(t *testing.T) {
	expected := `{
		"multi_match": {
			"query": "cotton shirt",
			"fields": ["productName^3", "productDescription", "brand^2", "categoryName", "sku", "attributes.*"],
			"type": "best_fields",
			"fuzziness": "AUTO",
			"prefix_length": 2
		}
	}`
	assert.JSONEq(t, expected, toJSON(t, textQuery("cotton shirt")))
}

// --- Filters ---

func TestBuildFilters_Empty(t *testing.T) {
	q := &domain.SearchQuery{Text: "shirt"}
	assert.Empty(t, buildFilters(q))
}

func TestBuildFilters_CategoryIDVerbatim(t *testing.T) {
	q := &domain.SearchQuery{Text: "shirt", CategoryID: strPtr("Cat-42")}
	filters := buildFilters(q)
	require.Len(t, filters, 1)
	assert.JSONEq(t, `{"term": {"categoryId": "Cat-42"}}`, toJSON(t, filters[0]))
}

func TestBuildFilters_BrandKeywordField(t *testing.T) {
	q := &domain.SearchQuery{Text: "shirt", Brand: strPtr("stylebasics")}
	filters := buildFilters(q)
	require.Len(t, filters, 1)
	assert.JSONEq(t, `{"term": {"brand.keyword": "stylebasics"}}`, toJSON(t, filters[0]))
}

func TestBuildFilters_PriceRange(t *testing.T) {
	tests := []struct {
		name     string
		rng      *domain.PriceRange
		expected string
	}{
		{
			name:     "both bounds",
			rng:      &domain.PriceRange{Min: f64(10), Max: f64(50)},
			expected: `{"range": {"priceFrom": {"gte": 10, "lte": 50}}}`,
		},
		{
			name:     "min only",
			rng:      &domain.PriceRange{Min: f64(25)},
			expected: `{"range": {"priceFrom": {"gte": 25}}}`,
		},
		{
			name:     "max only",
			rng:      &domain.PriceRange{Max: f64(200)},
			expected: `{"range": {"priceFrom": {"lte": 200}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &domain.SearchQuery{Text: "shirt", PriceRange: tt.rng}
			filters := buildFilters(q)
			require.Len(t, filters, 1)
			assert.JSONEq(t, tt.expected, toJSON(t, filters[0]))
		})
	}
}

func TestBuildFilters_AttributesSortedAndTyped(t *testing.T) {
	q := &domain.SearchQuery{
		Text: "shirt",
		AttributeFilters: map[string][]string{
			"size":  {"l", "m"},
			"color": {"blue"},
		},
	}

	filters := buildFilters(q)
	require.Len(t, filters, 2)

	// Attribute keys are emitted in sorted order; a single value becomes a
	// term clause, multiple values a terms clause.
	assert.JSONEq(t, `{"term": {"attributes.color.keyword": "blue"}}`, toJSON(t, filters[0]))
	assert.JSONEq(t, `{"terms": {"attributes.size.keyword": ["l", "m"]}}`, toJSON(t, filters[1]))
}

// --- Search body ---

func TestBuildSearchBody_Shape(t *testing.T) {
	q := &domain.SearchQuery{
		Text:  "running shoes",
		Brand: strPtr("nike"),
		Limit: 20,
	}

	body := queryEngine().buildSearchBody(q)

	expected := `{
		"query": {
			"bool": {
				"must": [{
					"function_score": {
						"query": {
							"multi_match": {
								"query": "running shoes",
								"fields": ["productName^3", "productDescription", "brand^2", "categoryName", "sku", "attributes.*"],
								"type": "best_fields",
								"fuzziness": "AUTO",
								"prefix_length": 2
							}
						},
						"functions": [{
							"field_value_factor": {
								"field": "sales30d",
								"factor": 1.2,
								"modifier": "log1p",
								"missing": 1
							}
						}],
						"score_mode": "multiply",
						"boost_mode": "multiply"
					}
				}],
				"filter": [{"term": {"brand.keyword": "nike"}}]
			}
		},
		"size": 20,
		"sort": [{"_score": "desc"}, {"productId": "asc"}],
		"track_total_hits": true
	}`
	assert.JSONEq(t, expected, toJSON(t, body))
}

func TestBuildSearchBody_BoostConfigurable(t *testing.T) {
	e := &Engine{boostFactor: 2.5, boostModifier: "sqrt"}
	body := e.buildSearchBody(&domain.SearchQuery{Text: "shirt", Limit: 10})

	raw := toJSON(t, body)
	assert.Contains(t, raw, `"factor":2.5`)
	assert.Contains(t, raw, `"modifier":"sqrt"`)
}

func TestBuildSearchBody_NoFilterKeyWhenUnfiltered(t *testing.T) {
	body := queryEngine().buildSearchBody(&domain.SearchQuery{Text: "shirt", Limit: 10})

	boolQuery := body["query"].(map[string]any)["bool"].(map[string]any)
	_, hasFilter := boolQuery["filter"]
	assert.False(t, hasFilter)
}

func TestBuildSearchBody_SearchAfterFromCursor(t *testing.T) {
	cursor := domain.EncodeCursor([]any{12.5, "prod-42"})
	body := queryEngine().buildSearchBody(&domain.SearchQuery{Text: "shirt", Limit: 10, Cursor: cursor})

	require.Contains(t, body, "search_after")
	assert.JSONEq(t, `[12.5, "prod-42"]`, toJSON(t, body["search_after"]))
}

func TestBuildSearchBody_MalformedCursorIgnored(t *testing.T) {
	for _, cursor := range []string{"", "%%%not-base64%%%", "bm90LWpzb24="} {
		body := queryEngine().buildSearchBody(&domain.SearchQuery{Text: "shirt", Limit: 10, Cursor: cursor})
		_, has := body["search_after"]
		assert.False(t, has, "cursor %q should not produce search_after", cursor)
	}
}

func TestBuildSearchBody_WildcardMatchesAll(t *testing.T) {
	body := queryEngine().buildSearchBody(&domain.SearchQuery{Text: "*", Limit: 10})

	raw := toJSON(t, body)
	assert.Contains(t, raw, `"match_all"`)
	assert.NotContains(t, raw, `"multi_match"`)
}

// --- Facets body ---

func TestBuildFacetsBody_Shape(t *testing.T) {
	q := &domain.FacetQuery{
		SearchQuery: domain.SearchQuery{Text: "shirt", CategoryID: strPtr("cat-1")},
		FacetKeys:   []string{"brand", "priceFrom"},
	}

	body := buildFacetsBody(q)

	assert.Equal(t, 0, body["size"])
	assert.Equal(t, true, body["track_total_hits"])

	// The facet query is not sales-boosted.
	raw := toJSON(t, body)
	assert.NotContains(t, raw, "function_score")

	boolQuery := body["query"].(map[string]any)["bool"].(map[string]any)
	assert.JSONEq(t, `[{"term": {"categoryId": "cat-1"}}]`, toJSON(t, boolQuery["filter"]))

	aggs := body["aggs"].(map[string]any)
	require.Len(t, aggs, 2)
	assert.Contains(t, aggs, "brand")
	assert.Contains(t, aggs, "priceFrom")
}

func TestBuildAggregation_PriceRanges(t *testing.T) {
	expected := `{
		"range": {
			"field": "priceFrom",
			"ranges": [
				{"key": "Under 25", "to": 25},
				{"key": "25 to 50", "from": 25, "to": 50},
				{"key": "50 to 100", "from": 50, "to": 100},
				{"key": "100 to 200", "from": 100, "to": 200},
				{"key": "200 and up", "from": 200}
			]
		}
	}`
	assert.JSONEq(t, expected, toJSON(t, buildAggregation(domain.FacetKeyPriceFrom)))
}

func TestBuildAggregation_Terms(t *testing.T) {
	expected := `{
		"terms": {
			"field": "brand.keyword",
			"size": 50,
			"order": {"_count": "desc"}
		}
	}`
	assert.JSONEq(t, expected, toJSON(t, buildAggregation(domain.FacetKeyBrand)))
}

func TestFacetField(t *testing.T) {
	tests := []struct {
		key      string
		expected string
	}{
		{domain.FacetKeyBrand, "brand.keyword"},
		{domain.FacetKeyCategoryName, "categoryName.keyword"},
		{domain.FacetKeyCategoryID, "categoryId"},
		{"attributes.color", "attributes.color.keyword"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, facetField(tt.key), "key %s", tt.key)
	}
}
