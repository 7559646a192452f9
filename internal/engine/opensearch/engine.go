package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/youssefhesham2000/Catalog-Service/internal/domain"
	"github.com/youssefhesham2000/Catalog-Service/internal/engine"
	"github.com/youssefhesham2000/Catalog-Service/pkg/breaker"
)

// DefaultIndexName is the default index holding variant documents.
const DefaultIndexName = "variants"

// Config holds the OpenSearch adapter configuration.
type Config struct {
	Node          string
	Index         string
	Timeout       time.Duration
	BoostFactor   float64
	BoostModifier string
	Breaker       breaker.Config
}

// DefaultConfig returns the adapter defaults for the given node URL.
func DefaultConfig(node string) Config {
	return Config{
		Node:          node,
		Index:         DefaultIndexName,
		Timeout:       15 * time.Second,
		BoostFactor:   1.2,
		BoostModifier: "log1p",
		Breaker:       breaker.DefaultConfig("engine-search"),
	}
}

// Engine is an OpenSearch-backed implementation of engine.SearchEngine.
// Every round-trip goes through the engine-search circuit breaker and its
// own per-call timeout; the cluster does not have to be reachable at
// construction time.
type Engine struct {
	client        *opensearch.Client
	index         string
	timeout       time.Duration
	boostFactor   float64
	boostModifier string
	breaker       *breaker.Breaker[[]byte]
	logger        *slog.Logger
}

// New creates an OpenSearch engine for the configured node and index.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if cfg.Index == "" {
		cfg.Index = DefaultIndexName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.BoostFactor == 0 {
		cfg.BoostFactor = 1.2
	}
	if cfg.BoostModifier == "" {
		cfg.BoostModifier = "log1p"
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker = breaker.DefaultConfig("engine-search")
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.Node},
	})
	if err != nil {
		return nil, fmt.Errorf("opensearch: create client: %w", err)
	}

	return &Engine{
		client:        client,
		index:         cfg.Index,
		timeout:       cfg.Timeout,
		boostFactor:   cfg.BoostFactor,
		boostModifier: cfg.BoostModifier,
		breaker:       breaker.New[[]byte](cfg.Breaker, logger),
		logger:        logger,
	}, nil
}

// osSearchResponse decodes OpenSearch search responses, including the
// aggregations block used by the facet pipeline.
type osSearchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total hitsTotal `json:"total"`
		Hits  []struct {
			Score  *float64               `json:"_score"`
			Source domain.VariantDocument `json:"_source"`
			Sort   []any                  `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
}

// hitsTotal tolerates both wire shapes of hits.total: the {value, relation}
// object and a bare number.
type hitsTotal struct {
	Value int64
}

func (t *hitsTotal) UnmarshalJSON(data []byte) error {
	var obj struct {
		Value int64 `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		t.Value = obj.Value
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("hits.total: %w", err)
	}
	t.Value = n
	return nil
}

// osErrorResponse decodes OpenSearch error bodies.
type osErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// osTermsBucket is one bucket of a terms aggregation. Keys may come back
// as strings or numbers depending on the field type.
type osTermsBucket struct {
	Key      any   `json:"key"`
	DocCount int64 `json:"doc_count"`
}

// osTermsAgg decodes a terms aggregation.
type osTermsAgg struct {
	Buckets []osTermsBucket `json:"buckets"`
}

// osRangeAgg decodes a range aggregation with keyed:false buckets.
type osRangeAgg struct {
	Buckets []struct {
		Key      string   `json:"key"`
		From     *float64 `json:"from"`
		To       *float64 `json:"to"`
		DocCount int64    `json:"doc_count"`
	} `json:"buckets"`
}

func engineError(op string, status int, body []byte) error {
	var errResp osErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Type != "" {
		return fmt.Errorf("opensearch %s: %s: %s", op, errResp.Error.Type, errResp.Error.Reason)
	}
	return fmt.Errorf("opensearch %s: unexpected status %d", op, status)
}

// rawSearch executes a _search body against the variants index through the
// circuit breaker, returning the raw response body. The suggestion pipeline
// shares it with the structured search paths.
func (e *Engine) rawSearch(ctx context.Context, body []byte) ([]byte, error) {
	return e.breaker.Execute(func() ([]byte, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		req := opensearchapi.SearchRequest{
			Index: []string{e.index},
			Body:  bytes.NewReader(body),
		}
		res, err := req.Do(callCtx, e.client)
		if err != nil {
			return nil, fmt.Errorf("opensearch search: %w", err)
		}
		defer func() { _ = res.Body.Close() }()

		raw, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, fmt.Errorf("opensearch search: read response: %w", err)
		}
		if res.IsError() {
			return nil, engineError("search", res.StatusCode, raw)
		}
		return raw, nil
	})
}

// Search executes a search query and returns the page of variant hits.
func (e *Engine) Search(ctx context.Context, query *domain.SearchQuery) (*engine.Result, error) {
	body, err := json.Marshal(e.buildSearchBody(query))
	if err != nil {
		return nil, fmt.Errorf("opensearch search: marshal query: %w", err)
	}

	raw, err := e.rawSearch(ctx, body)
	if err != nil {
		return nil, err
	}

	var resp osSearchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("opensearch search: decode response: %w", err)
	}

	hits := make([]engine.Hit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		var score float64
		if h.Score != nil {
			score = *h.Score
		}
		hits = append(hits, engine.Hit{Score: score, Source: h.Source, Sort: h.Sort})
	}

	e.logger.DebugContext(ctx, "engine search executed",
		slog.Int("hits", len(hits)),
		slog.Int64("total", resp.Hits.Total.Value),
		slog.Int64("took_ms", resp.Took),
	)

	return &engine.Result{Hits: hits, Total: resp.Hits.Total.Value, TookMs: resp.Took}, nil
}

// Facets executes the aggregation variant of a query and transforms the
// aggregations into facet payloads, in requested key order.
func (e *Engine) Facets(ctx context.Context, query *domain.FacetQuery) (*engine.FacetsResult, error) {
	body, err := json.Marshal(buildFacetsBody(query))
	if err != nil {
		return nil, fmt.Errorf("opensearch facets: marshal query: %w", err)
	}

	raw, err := e.rawSearch(ctx, body)
	if err != nil {
		return nil, err
	}

	var resp osSearchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("opensearch facets: decode response: %w", err)
	}

	facets := make([]domain.Facet, 0, len(query.FacetKeys))
	for _, key := range query.FacetKeys {
		rawAgg, ok := resp.Aggregations[key]
		if !ok {
			continue
		}
		facet, err := decodeFacet(key, rawAgg)
		if err != nil {
			return nil, fmt.Errorf("opensearch facets: decode %q aggregation: %w", key, err)
		}
		facets = append(facets, facet)
	}

	return &engine.FacetsResult{Facets: facets, Total: resp.Hits.Total.Value, TookMs: resp.Took}, nil
}

// decodeFacet turns one raw aggregation into its facet payload.
func decodeFacet(key string, raw json.RawMessage) (domain.Facet, error) {
	facet := domain.Facet{
		Key:  key,
		Name: domain.FacetDisplayName(key),
	}

	if key == domain.FacetKeyPriceFrom {
		var agg osRangeAgg
		if err := json.Unmarshal(raw, &agg); err != nil {
			return facet, err
		}
		facet.Type = domain.FacetTypeRange
		facet.Ranges = make([]domain.FacetRange, 0, len(agg.Buckets))
		for _, b := range agg.Buckets {
			facet.Ranges = append(facet.Ranges, domain.FacetRange{
				From:  b.From,
				To:    b.To,
				Count: b.DocCount,
				Label: b.Key,
			})
		}
		return facet, nil
	}

	var agg osTermsAgg
	if err := json.Unmarshal(raw, &agg); err != nil {
		return facet, err
	}
	facet.Type = domain.FacetTypeTerms
	facet.Buckets = make([]domain.FacetBucket, 0, len(agg.Buckets))
	for _, b := range agg.Buckets {
		facet.Buckets = append(facet.Buckets, domain.FacetBucket{
			Value: bucketKeyString(b.Key),
			Count: b.DocCount,
		})
	}
	return facet, nil
}

// bucketKeyString renders an aggregation bucket key, which the engine may
// return as a string or a number.
func bucketKeyString(key any) string {
	switch v := key.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// DeleteDocument removes a variant document from the index. A 404 is
// swallowed (the document might already be gone); no other status is.
func (e *Engine) DeleteDocument(ctx context.Context, variantID string) error {
	_, err := e.breaker.Execute(func() ([]byte, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		req := opensearchapi.DeleteRequest{
			Index:      e.index,
			DocumentID: variantID,
		}
		res, err := req.Do(callCtx, e.client)
		if err != nil {
			return nil, fmt.Errorf("opensearch delete: %w", err)
		}
		defer func() { _ = res.Body.Close() }()

		raw, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, fmt.Errorf("opensearch delete: read response: %w", err)
		}
		if res.IsError() && res.StatusCode != http.StatusNotFound {
			return nil, engineError("delete", res.StatusCode, raw)
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	e.logger.DebugContext(ctx, "deleted variant document", slog.String("variant_id", variantID))
	return nil
}

// Ping checks whether the OpenSearch cluster is reachable. It bypasses the
// circuit breaker so health probes keep reporting the real cluster state
// while the breaker is open.
func (e *Engine) Ping(ctx context.Context) error {
	res, err := opensearchapi.PingRequest{}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("opensearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("opensearch ping: unexpected status %s", res.Status())
	}
	return nil
}

// Breaker exposes the engine circuit breaker, mainly for observability.
func (e *Engine) Breaker() *breaker.Breaker[[]byte] {
	return e.breaker
}
