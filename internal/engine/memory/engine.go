package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/youssefhesham2000/Catalog-Service/internal/domain"
	"github.com/youssefhesham2000/Catalog-Service/internal/engine"
)

// salesBoostFactor mirrors the default sales-popularity boost of the real
// engine: scores are multiplied by log1p(factor * sales30d).
const salesBoostFactor = 1.2

// Engine is an in-memory implementation of the SearchEngine interface for
// local development and tests. It scores variants with a token-weight model
// that approximates the real engine's field boosts (name 3, brand 2, the
// rest 1). Thread-safe via sync.RWMutex.
type Engine struct {
	mu       sync.RWMutex
	variants map[string]domain.VariantDocument
}

// New creates a new in-memory search engine.
func New() *Engine {
	return &Engine{
		variants: make(map[string]domain.VariantDocument),
	}
}

// Index adds or updates a single variant document.
func (e *Engine) Index(_ context.Context, doc *domain.VariantDocument) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.variants[doc.VariantID] = *doc
	return nil
}

// BulkIndex adds or updates multiple variant documents.
func (e *Engine) BulkIndex(_ context.Context, docs []domain.VariantDocument) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range docs {
		e.variants[docs[i].VariantID] = docs[i]
	}
	return nil
}

// DeleteDocument removes a variant document. Deleting an unknown ID is not
// an error, matching the real engine's treatment of missing documents.
func (e *Engine) DeleteDocument(_ context.Context, variantID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.variants, variantID)
	return nil
}

// Ping reports the engine as always available.
func (e *Engine) Ping(_ context.Context) error {
	return nil
}

// scoredHit pairs a document with its relevance score during ranking.
type scoredHit struct {
	doc   domain.VariantDocument
	score float64
}

// Search executes a query against the in-memory index: score, filter, sort
// by (score desc, productId asc), apply the cursor, cut the page.
func (e *Engine) Search(_ context.Context, query *domain.SearchQuery) (*engine.Result, error) {
	start := time.Now()

	e.mu.RLock()
	defer e.mu.RUnlock()

	tokens := queryTokens(query.Text)

	matched := make([]scoredHit, 0)
	for _, doc := range e.variants {
		if !matchesFilters(doc, query) {
			continue
		}
		score := scoreDocument(doc, tokens)
		if score <= 0 {
			continue
		}
		matched = append(matched, scoredHit{doc: doc, score: score})
	}

	sortHits(matched)
	total := int64(len(matched))

	if after, ok := cursorPosition(query.Cursor); ok {
		matched = afterPosition(matched, after)
	}

	limit := query.Limit
	if limit < 1 {
		limit = domain.DefaultLimit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	hits := make([]engine.Hit, 0, len(matched))
	for _, m := range matched {
		hits = append(hits, engine.Hit{
			Score:  m.score,
			Source: m.doc,
			Sort:   []any{m.score, m.doc.ProductID},
		})
	}

	return &engine.Result{
		Hits:   hits,
		Total:  total,
		TookMs: time.Since(start).Milliseconds(),
	}, nil
}

// Facets aggregates the matching documents into the requested facets.
func (e *Engine) Facets(_ context.Context, query *domain.FacetQuery) (*engine.FacetsResult, error) {
	start := time.Now()

	e.mu.RLock()
	defer e.mu.RUnlock()

	tokens := queryTokens(query.Text)

	matched := make([]domain.VariantDocument, 0)
	for _, doc := range e.variants {
		if !matchesFilters(doc, &query.SearchQuery) {
			continue
		}
		if scoreDocument(doc, tokens) <= 0 {
			continue
		}
		matched = append(matched, doc)
	}

	facets := make([]domain.Facet, 0, len(query.FacetKeys))
	for _, key := range query.FacetKeys {
		facets = append(facets, buildFacet(key, matched))
	}

	return &engine.FacetsResult{
		Facets: facets,
		Total:  int64(len(matched)),
		TookMs: time.Since(start).Milliseconds(),
	}, nil
}

// Suggest proposes brand and category alternatives whose documents still
// match the query text, mirroring the shape of the real engine's
// aggregation strategy. It never fails.
func (e *Engine) Suggest(_ context.Context, text string) ([]domain.Suggestion, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	tokens := queryTokens(text)
	suggestions := make([]domain.Suggestion, 0, 5)
	if len(tokens) == 0 {
		return suggestions, nil
	}

	brandCounts := make(map[string]int64)
	categoryCounts := make(map[string]int64)
	for _, doc := range e.variants {
		if scoreDocument(doc, tokens) <= 0 {
			continue
		}
		if doc.Brand != "" {
			brandCounts[doc.Brand]++
		}
		if doc.CategoryName != "" {
			categoryCounts[doc.CategoryName]++
		}
	}

	seen := make(map[string]struct{})
	add := func(term string, count int64) {
		if term == "" || len(suggestions) >= 5 {
			return
		}
		folded := strings.ToLower(term)
		if _, ok := seen[folded]; ok {
			return
		}
		seen[folded] = struct{}{}
		suggestions = append(suggestions, domain.Suggestion{Term: term, EstimatedCount: &count})
	}

	for _, term := range topTerms(brandCounts, 3) {
		add(mergeTokens(tokens, term), brandCounts[term])
	}
	for _, term := range topTerms(categoryCounts, 3) {
		add(term, categoryCounts[term])
	}

	return suggestions, nil
}

// queryTokens splits a lowercased query into tokens. The wildcard query
// produces no tokens and matches everything.
func queryTokens(text string) []string {
	if text == "*" {
		return nil
	}
	return strings.Fields(strings.ToLower(text))
}

// scoreDocument computes the relevance score of a document: for each token
// the best matching field weight (name 3, brand 2, others 1), summed, then
// multiplied by the sales-popularity boost. A tokenless (wildcard) query
// scores every document.
func scoreDocument(doc domain.VariantDocument, tokens []string) float64 {
	base := 0.0
	if len(tokens) == 0 {
		base = 1
	}

	for _, tok := range tokens {
		best := 0.0
		if strings.Contains(strings.ToLower(doc.ProductName), tok) {
			best = 3
		}
		if best < 2 && strings.Contains(strings.ToLower(doc.Brand), tok) {
			best = 2
		}
		if best < 1 && matchesSecondaryField(doc, tok) {
			best = 1
		}
		base += best
	}

	if base <= 0 {
		return 0
	}
	return base * salesBoost(doc.Sales30d)
}

func matchesSecondaryField(doc domain.VariantDocument, tok string) bool {
	if strings.Contains(strings.ToLower(doc.ProductDescription), tok) ||
		strings.Contains(strings.ToLower(doc.CategoryName), tok) ||
		strings.Contains(strings.ToLower(doc.SKU), tok) {
		return true
	}
	for _, v := range doc.Attributes {
		if strings.Contains(strings.ToLower(v), tok) {
			return true
		}
	}
	return false
}

// salesBoost mirrors the log1p field_value_factor of the real engine.
// Documents without sales are treated as having one sale so text relevance
// still separates them.
func salesBoost(sales int) float64 {
	value := float64(sales)
	if value < 1 {
		value = 1
	}
	return math.Log1p(salesBoostFactor * value)
}

// matchesFilters applies the structured filters: exact category, folded
// brand equality, inclusive price bounds, attribute membership.
func matchesFilters(doc domain.VariantDocument, query *domain.SearchQuery) bool {
	if query.CategoryID != nil && doc.CategoryID != *query.CategoryID {
		return false
	}

	if query.Brand != nil && !strings.EqualFold(doc.Brand, *query.Brand) {
		return false
	}

	if query.PriceRange != nil {
		if query.PriceRange.Min != nil && doc.PriceFrom < *query.PriceRange.Min {
			return false
		}
		if query.PriceRange.Max != nil && doc.PriceFrom > *query.PriceRange.Max {
			return false
		}
	}

	for key, values := range query.AttributeFilters {
		got, ok := doc.Attributes[key]
		if !ok {
			return false
		}
		found := false
		for _, v := range values {
			if strings.EqualFold(got, v) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// sortHits orders by score desc, then productId asc, then variantId asc so
// map iteration never leaks into the result order.
func sortHits(hits []scoredHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		if hits[i].doc.ProductID != hits[j].doc.ProductID {
			return hits[i].doc.ProductID < hits[j].doc.ProductID
		}
		return hits[i].doc.VariantID < hits[j].doc.VariantID
	})
}

// cursorPosition decodes a continuation cursor into its (score, productId)
// position. Malformed cursors are ignored.
func cursorPosition(cursor string) (scoredHit, bool) {
	values, ok := domain.DecodeCursor(cursor)
	if !ok || len(values) != 2 {
		return scoredHit{}, false
	}
	score, ok := values[0].(float64)
	if !ok {
		return scoredHit{}, false
	}
	productID, ok := values[1].(string)
	if !ok {
		return scoredHit{}, false
	}
	return scoredHit{score: score, doc: domain.VariantDocument{ProductID: productID}}, true
}

// afterPosition drops every hit at or before the cursor position in the
// (score desc, productId asc) order.
func afterPosition(hits []scoredHit, after scoredHit) []scoredHit {
	out := hits[:0:0]
	for _, h := range hits {
		if h.score < after.score || (h.score == after.score && h.doc.ProductID > after.doc.ProductID) {
			out = append(out, h)
		}
	}
	return out
}

// buildFacet aggregates one facet key over the matched documents.
func buildFacet(key string, docs []domain.VariantDocument) domain.Facet {
	facet := domain.Facet{
		Key:  key,
		Name: domain.FacetDisplayName(key),
	}

	if key == domain.FacetKeyPriceFrom {
		facet.Type = domain.FacetTypeRange
		facet.Ranges = make([]domain.FacetRange, 0, len(domain.PriceFacetBuckets))
		for _, b := range domain.PriceFacetBuckets {
			var count int64
			for _, doc := range docs {
				if b.Contains(doc.PriceFrom) {
					count++
				}
			}
			facet.Ranges = append(facet.Ranges, domain.FacetRange{
				From:  b.From,
				To:    b.To,
				Count: count,
				Label: b.Label,
			})
		}
		return facet
	}

	counts := make(map[string]int64)
	for _, doc := range docs {
		if v := facetValue(key, doc); v != "" {
			counts[v]++
		}
	}

	facet.Type = domain.FacetTypeTerms
	facet.Buckets = make([]domain.FacetBucket, 0, len(counts))
	for _, term := range topTerms(counts, 50) {
		facet.Buckets = append(facet.Buckets, domain.FacetBucket{Value: term, Count: counts[term]})
	}
	return facet
}

// facetValue extracts the document value behind a terms facet key.
func facetValue(key string, doc domain.VariantDocument) string {
	switch key {
	case domain.FacetKeyBrand:
		return doc.Brand
	case domain.FacetKeyCategoryID:
		return doc.CategoryID
	case domain.FacetKeyCategoryName:
		return doc.CategoryName
	}
	if attr, ok := strings.CutPrefix(key, domain.AttributeFacetPrefix); ok {
		return doc.Attributes[attr]
	}
	return ""
}

// topTerms returns up to n keys ordered by count desc, ties by key asc.
func topTerms(counts map[string]int64, n int) []string {
	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

// mergeTokens unions a term's tokens into the query tokens, keeping query
// order, the same way the real engine builds brand suggestions.
func mergeTokens(queryTokens []string, term string) string {
	present := make(map[string]struct{}, len(queryTokens))
	for _, tok := range queryTokens {
		present[tok] = struct{}{}
	}

	merged := make([]string, len(queryTokens))
	copy(merged, queryTokens)
	for _, tok := range strings.Fields(strings.ToLower(term)) {
		if _, ok := present[tok]; !ok {
			present[tok] = struct{}{}
			merged = append(merged, tok)
		}
	}
	return strings.Join(merged, " ")
}
