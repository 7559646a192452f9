package opensearch

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/youssefhesham2000/Catalog-Service/internal/domain"
)

// maxSuggestions caps the merged "did you mean" list.
const maxSuggestions = 5

// osSuggestResponse decodes the phrase-suggester section of a response.
type osSuggestResponse struct {
	Suggest map[string][]struct {
		Text    string `json:"text"`
		Options []struct {
			Text  string  `json:"text"`
			Score float64 `json:"score"`
		} `json:"options"`
	} `json:"suggest"`
}

// buildPhraseSuggestBody asks the phrase suggester for up to three corrected
// phrases based on the product-name bigram model.
func buildPhraseSuggestBody(text string) map[string]any {
	return map[string]any{
		"size": 0,
		"suggest": map[string]any{
			"text": text,
			"name_suggestion": map[string]any{
				"phrase": map[string]any{
					"field":     "productName.bigram",
					"gram_size": 2,
					"size":      3,
					"direct_generator": []any{
						map[string]any{
							"field":        "productName.bigram",
							"suggest_mode": "popular",
						},
					},
				},
			},
		},
	}
}

// buildFuzzyAggBody runs a fuzzy match over name, brand and category and
// collects the top brand and category buckets without fetching documents.
func buildFuzzyAggBody(text string) map[string]any {
	return map[string]any{
		"size": 0,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     text,
				"fields":    []string{"productName", "brand", "categoryName"},
				"fuzziness": "AUTO",
			},
		},
		"aggs": map[string]any{
			"brands": map[string]any{
				"terms": map[string]any{
					"field": "brand.keyword",
					"size":  3,
				},
			},
			"categories": map[string]any{
				"terms": map[string]any{
					"field": "categoryName.keyword",
					"size":  3,
				},
			},
		},
	}
}

// Suggest produces "did you mean" alternatives for a query that matched
// nothing. Both strategies are best-effort: if one fails the other still
// contributes, and a total failure yields an empty list rather than an error.
func (e *Engine) Suggest(ctx context.Context, text string) ([]domain.Suggestion, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []domain.Suggestion{}, nil
	}

	var phrases []string
	if body, err := json.Marshal(buildPhraseSuggestBody(text)); err == nil {
		raw, err := e.rawSearch(ctx, body)
		if err != nil {
			e.logger.WarnContext(ctx, "phrase suggester failed", slog.String("error", err.Error()))
		} else {
			var resp osSuggestResponse
			if err := json.Unmarshal(raw, &resp); err != nil {
				e.logger.WarnContext(ctx, "phrase suggester decode failed", slog.String("error", err.Error()))
			} else {
				for _, entry := range resp.Suggest["name_suggestion"] {
					for _, opt := range entry.Options {
						phrases = append(phrases, opt.Text)
					}
				}
			}
		}
	}

	var brands, categories osTermsAgg
	if body, err := json.Marshal(buildFuzzyAggBody(text)); err == nil {
		raw, err := e.rawSearch(ctx, body)
		if err != nil {
			e.logger.WarnContext(ctx, "fuzzy suggest aggregation failed", slog.String("error", err.Error()))
		} else {
			var resp osSearchResponse
			if err := json.Unmarshal(raw, &resp); err != nil {
				e.logger.WarnContext(ctx, "fuzzy suggest decode failed", slog.String("error", err.Error()))
			} else {
				if rawAgg, ok := resp.Aggregations["brands"]; ok {
					_ = json.Unmarshal(rawAgg, &brands)
				}
				if rawAgg, ok := resp.Aggregations["categories"]; ok {
					_ = json.Unmarshal(rawAgg, &categories)
				}
			}
		}
	}

	return mergeSuggestions(text, phrases, brands.Buckets, categories.Buckets), nil
}

// mergeSuggestions combines the three candidate sources into a single
// case-folded-deduplicated list: corrected phrases first, then the query
// with each top brand's tokens merged in, then category names verbatim.
func mergeSuggestions(text string, phrases []string, brands, categories []osTermsBucket) []domain.Suggestion {
	suggestions := make([]domain.Suggestion, 0, maxSuggestions)
	seen := make(map[string]struct{})

	add := func(term string, count *int64) {
		term = strings.TrimSpace(term)
		if term == "" || len(suggestions) >= maxSuggestions {
			return
		}
		folded := strings.ToLower(term)
		if _, ok := seen[folded]; ok {
			return
		}
		seen[folded] = struct{}{}
		suggestions = append(suggestions, domain.Suggestion{Term: term, EstimatedCount: count})
	}

	for _, phrase := range phrases {
		add(phrase, nil)
	}

	queryTokens := strings.Fields(strings.ToLower(text))
	for _, b := range brands {
		brand := bucketKeyString(b.Key)
		count := b.DocCount
		add(mergeBrandTokens(queryTokens, brand), &count)
	}

	for _, c := range categories {
		count := c.DocCount
		add(bucketKeyString(c.Key), &count)
	}

	return suggestions
}

// mergeBrandTokens unions a brand's tokens into the query's token set,
// keeping query order and appending only tokens not already present.
func mergeBrandTokens(queryTokens []string, brand string) string {
	present := make(map[string]struct{}, len(queryTokens))
	for _, tok := range queryTokens {
		present[tok] = struct{}{}
	}

	merged := make([]string, len(queryTokens))
	copy(merged, queryTokens)
	for _, tok := range strings.Fields(strings.ToLower(brand)) {
		if _, ok := present[tok]; !ok {
			present[tok] = struct{}{}
			merged = append(merged, tok)
		}
	}
	return strings.Join(merged, " ")
}
