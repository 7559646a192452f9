// Package http exposes the gateway's public search API.
package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/youssefhesham2000/Catalog-Service/internal/domain"
	"github.com/youssefhesham2000/Catalog-Service/internal/search"
	apperrors "github.com/youssefhesham2000/Catalog-Service/pkg/errors"
	"github.com/youssefhesham2000/Catalog-Service/pkg/httputil"
)

// SearchHandler handles HTTP requests for the search endpoints.
type SearchHandler struct {
	service *search.Service
	logger  *slog.Logger
}

// NewSearchHandler creates a new search HTTP handler.
func NewSearchHandler(svc *search.Service, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		service: svc,
		logger:  logger,
	}
}

// Search handles GET /api/v1/search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query, err := parseSearchQuery(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	resp, err := h.service.Search(r.Context(), query)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Facets handles GET /api/v1/search/facets.
func (h *SearchHandler) Facets(w http.ResponseWriter, r *http.Request) {
	base, err := parseSearchQuery(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	query := &domain.FacetQuery{SearchQuery: *base}
	for _, key := range strings.Split(r.URL.Query().Get("facetKeys"), ",") {
		if key = strings.TrimSpace(key); key != "" {
			query.FacetKeys = append(query.FacetKeys, key)
		}
	}
	if len(query.FacetKeys) == 0 {
		httputil.WriteError(w, r, apperrors.BadRequest("facetKeys is required"), h.logger)
		return
	}

	resp, err := h.service.Facets(r.Context(), query)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// parseSearchQuery extracts the shared query parameters of both endpoints.
// Only structurally invalid parameters fail here; range checks belong to the
// domain validation the service runs after normalization.
func parseSearchQuery(r *http.Request) (*domain.SearchQuery, error) {
	params := r.URL.Query()

	query := &domain.SearchQuery{
		Text:   params.Get("q"),
		Cursor: params.Get("cursor"),
	}

	if v := params.Get("categoryId"); v != "" {
		query.CategoryID = &v
	}
	if v := params.Get("brand"); v != "" {
		query.Brand = &v
	}

	if v := params.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return nil, apperrors.BadRequest("limit must be an integer")
		}
		query.Limit = limit
	}

	var priceRange domain.PriceRange
	if v := params.Get("priceRange[min]"); v != "" {
		min, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, apperrors.BadRequest("priceRange[min] must be a number")
		}
		priceRange.Min = &min
	}
	if v := params.Get("priceRange[max]"); v != "" {
		max, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, apperrors.BadRequest("priceRange[max] must be a number")
		}
		priceRange.Max = &max
	}
	if priceRange.Min != nil || priceRange.Max != nil {
		query.PriceRange = &priceRange
	}

	if v := params.Get("filters"); v != "" {
		filters, err := parseFilters(v)
		if err != nil {
			return nil, err
		}
		query.AttributeFilters = filters
	}

	return query, nil
}

// parseFilters decodes the filters parameter: a JSON object whose values are
// either a string or an array of strings, e.g. {"color":"red","size":["m","l"]}.
func parseFilters(raw string) (map[string][]string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, apperrors.BadRequest("filters must be a JSON object")
	}

	filters := make(map[string][]string, len(obj))
	for key, rawValue := range obj {
		var single string
		if err := json.Unmarshal(rawValue, &single); err == nil {
			filters[key] = []string{single}
			continue
		}

		var many []string
		if err := json.Unmarshal(rawValue, &many); err != nil {
			return nil, apperrors.BadRequest(
				fmt.Sprintf("filters.%s must be a string or an array of strings", key),
			)
		}
		filters[key] = many
	}

	return filters, nil
}
