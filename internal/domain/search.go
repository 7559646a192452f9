package domain

import (
	"sort"
	"strings"

	apperrors "github.com/youssefhesham2000/Catalog-Service/pkg/errors"
	"github.com/youssefhesham2000/Catalog-Service/pkg/validator"
)

// Limits applied to search requests.
const (
	DefaultLimit = 20
	MaxLimit     = 100
	MaxQueryLen  = 200
)

// PriceRange is an inclusive price filter on priceFrom.
type PriceRange struct {
	Min *float64 `json:"min,omitempty" validate:"omitempty,gte=0"`
	Max *float64 `json:"max,omitempty" validate:"omitempty,gte=0"`
}

// SearchQuery holds all parameters for a search request.
// Call Normalize before Validate: normalization canonicalizes filter values
// so that equivalent requests map to the same cache key.
type SearchQuery struct {
	Text             string              `json:"q" validate:"required,min=1,max=200"`
	CategoryID       *string             `json:"categoryId,omitempty"`
	Brand            *string             `json:"brand,omitempty"`
	PriceRange       *PriceRange         `json:"priceRange,omitempty"`
	AttributeFilters map[string][]string `json:"attributeFilters,omitempty"`
	Limit            int                 `json:"limit" validate:"gte=1,lte=100"`
	Cursor           string              `json:"cursor,omitempty"`
}

// FacetQuery carries the same filter fields as SearchQuery plus the facet
// keys to aggregate on. Keys outside the allow-list are dropped during
// normalization, not rejected.
type FacetQuery struct {
	SearchQuery
	FacetKeys []string `json:"facetKeys" validate:"required,min=1"`
}

// Normalize canonicalizes the query in place: trims the text, lower-cases
// values of case-insensitive filter keys (brand and attributes.*; the index
// applies a lowercase normalizer to those keyword fields, categoryId stays
// verbatim), sorts and dedupes multi-valued filters, drops empty filters,
// and applies the default limit.
func (q *SearchQuery) Normalize() {
	q.Text = strings.TrimSpace(q.Text)

	if q.Brand != nil {
		b := strings.ToLower(strings.TrimSpace(*q.Brand))
		if b == "" {
			q.Brand = nil
		} else {
			q.Brand = &b
		}
	}
	if q.CategoryID != nil && strings.TrimSpace(*q.CategoryID) == "" {
		q.CategoryID = nil
	}

	if len(q.AttributeFilters) > 0 {
		normalized := make(map[string][]string, len(q.AttributeFilters))
		for key, values := range q.AttributeFilters {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			seen := make(map[string]struct{}, len(values))
			canonical := make([]string, 0, len(values))
			for _, v := range values {
				v = strings.ToLower(strings.TrimSpace(v))
				if v == "" {
					continue
				}
				if _, dup := seen[v]; dup {
					continue
				}
				seen[v] = struct{}{}
				canonical = append(canonical, v)
			}
			if len(canonical) == 0 {
				continue
			}
			sort.Strings(canonical)
			normalized[key] = canonical
		}
		q.AttributeFilters = normalized
	}

	if q.PriceRange != nil && q.PriceRange.Min == nil && q.PriceRange.Max == nil {
		q.PriceRange = nil
	}

	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
}

// Validate checks the query against its schema constraints. It must run
// after Normalize and before any external call.
func (q *SearchQuery) Validate() error {
	if err := validator.Validate(q); err != nil {
		return apperrors.BadRequest(err.Error())
	}
	if q.PriceRange != nil && q.PriceRange.Min != nil && q.PriceRange.Max != nil && *q.PriceRange.Min > *q.PriceRange.Max {
		return apperrors.BadRequest("priceRange.min must not exceed priceRange.max")
	}
	return nil
}

// Normalize canonicalizes the embedded search fields and filters the facet
// keys through the allow-list. Dropped keys are returned so the caller can
// log them; an invalid key never fails the request.
func (q *FacetQuery) Normalize() (dropped []string) {
	q.SearchQuery.Normalize()
	q.FacetKeys, dropped = NormalizeFacetKeys(q.FacetKeys)
	return dropped
}

// Validate checks the facet query after normalization. A request whose keys
// were all dropped still carries validate:"min=1" semantics: at least one
// valid key must remain.
func (q *FacetQuery) Validate() error {
	if err := q.SearchQuery.Validate(); err != nil {
		return err
	}
	if len(q.FacetKeys) == 0 {
		return apperrors.BadRequest("facetKeys must contain at least one valid key")
	}
	return nil
}

// Facet keys accepted by the facet pipeline. Any key under attributes. is
// also accepted; everything else is dropped.
const (
	FacetKeyBrand        = "brand"
	FacetKeyCategoryID   = "categoryId"
	FacetKeyCategoryName = "categoryName"
	FacetKeyPriceFrom    = "priceFrom"

	// AttributeFacetPrefix marks dynamic attribute facet keys, e.g. "attributes.color".
	AttributeFacetPrefix = "attributes."
)

// IsValidFacetKey reports whether key is on the facet allow-list.
func IsValidFacetKey(key string) bool {
	switch key {
	case FacetKeyBrand, FacetKeyCategoryID, FacetKeyCategoryName, FacetKeyPriceFrom:
		return true
	}
	return strings.HasPrefix(key, AttributeFacetPrefix) && len(key) > len(AttributeFacetPrefix)
}

// NormalizeFacetKeys filters keys through the allow-list, preserving first-seen
// order and removing duplicates. The second return value lists the dropped keys.
func NormalizeFacetKeys(keys []string) (valid, dropped []string) {
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if IsValidFacetKey(key) {
			valid = append(valid, key)
		} else {
			dropped = append(dropped, key)
		}
	}
	return valid, dropped
}

// FacetDisplayName maps a facet key to the human label used in facet payloads.
func FacetDisplayName(key string) string {
	switch key {
	case FacetKeyBrand:
		return "Brand"
	case FacetKeyCategoryID:
		return "Category"
	case FacetKeyCategoryName:
		return "Category Name"
	case FacetKeyPriceFrom:
		return "Price"
	}
	if strings.HasPrefix(key, AttributeFacetPrefix) {
		return titleWords(strings.TrimPrefix(key, AttributeFacetPrefix))
	}
	return titleWords(key)
}

// titleWords turns "screen_size" or "screen-size" into "Screen Size".
func titleWords(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
