package domain

// Pagination describes the page of results inside a search response.
// Total counts variant-level engine hits; Count is the number of grouped
// products on this page.
type Pagination struct {
	Total      int64   `json:"total"`
	Count      int     `json:"count"`
	NextCursor *string `json:"nextCursor,omitempty"`
}

// SearchMeta carries response metadata. Timestamp and CorrelationID always
// describe the current request, even when the body came from the cache.
type SearchMeta struct {
	Timestamp     string     `json:"timestamp"`
	CorrelationID string     `json:"correlationId,omitempty"`
	Pagination    Pagination `json:"pagination"`
	Took          int64      `json:"took"`
}

// SearchResponse is the envelope returned by GET /search.
type SearchResponse struct {
	Data        []ProductResult `json:"data"`
	Meta        SearchMeta      `json:"meta"`
	Suggestions []Suggestion    `json:"suggestions,omitempty"`
}

// FacetsMeta carries response metadata for the facet endpoint.
type FacetsMeta struct {
	Timestamp     string `json:"timestamp"`
	CorrelationID string `json:"correlationId,omitempty"`
	TotalMatches  int64  `json:"totalMatches"`
	Took          int64  `json:"took"`
}

// FacetsResponse is the envelope returned by GET /search/facets.
type FacetsResponse struct {
	Data []Facet    `json:"data"`
	Meta FacetsMeta `json:"meta"`
}
