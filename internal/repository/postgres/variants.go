// Package postgres implements the variant-option lookup against the
// relational catalog store.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/youssefhesham2000/Catalog-Service/internal/domain"
	"github.com/youssefhesham2000/Catalog-Service/pkg/breaker"
	"github.com/youssefhesham2000/Catalog-Service/pkg/database"

	"github.com/jackc/pgx/v5"
)

// DB is the subset of pgxpool.Pool used by the repository. pgxmock satisfies
// it, so tests run against a mock pool.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

const listVariantsQuery = `
	SELECT variant_id, product_id, attributes, image_url
	FROM product_variants
	WHERE product_id = ANY($1)
	ORDER BY product_id, variant_id`

// VariantOptionRepository is the PostgreSQL-backed enrichment lookup. Every
// query runs through the catalog-variants circuit breaker with its own
// timeout, so a slow or dead database trips fast instead of holding request
// goroutines.
type VariantOptionRepository struct {
	db      DB
	timeout time.Duration
	breaker *breaker.Breaker[map[string][]domain.VariantOption]
	logger  *slog.Logger
}

// NewVariantOptionRepository creates the repository. A zero timeout defaults
// to 10s.
func NewVariantOptionRepository(db DB, timeout time.Duration, brk breaker.Config, logger *slog.Logger) *VariantOptionRepository {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if brk.Name == "" {
		brk = breaker.DefaultConfig("catalog-variants")
	}
	return &VariantOptionRepository{
		db:      db,
		timeout: timeout,
		breaker: breaker.New[map[string][]domain.VariantOption](brk, logger),
		logger:  logger,
	}
}

// ListByProductIDs fetches all variants of the given products in a single
// batched query and groups them by product. An empty input returns an empty
// map without touching the pool.
func (r *VariantOptionRepository) ListByProductIDs(ctx context.Context, productIDs []string) (map[string][]domain.VariantOption, error) {
	if len(productIDs) == 0 {
		return map[string][]domain.VariantOption{}, nil
	}

	return r.breaker.Execute(func() (map[string][]domain.VariantOption, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		callCtx, end := database.TraceQuery(callCtx, "ListVariantOptions", listVariantsQuery)
		options, err := r.listByProductIDs(callCtx, productIDs)
		end(err)
		return options, err
	})
}

func (r *VariantOptionRepository) listByProductIDs(ctx context.Context, productIDs []string) (map[string][]domain.VariantOption, error) {
	rows, err := r.db.Query(ctx, listVariantsQuery, productIDs)
	if err != nil {
		return nil, fmt.Errorf("query variant options: %w", err)
	}
	defer rows.Close()

	options := make(map[string][]domain.VariantOption, len(productIDs))
	for rows.Next() {
		var (
			variantID  string
			productID  string
			attributes []byte
			imageURL   *string
		)
		if err := rows.Scan(&variantID, &productID, &attributes, &imageURL); err != nil {
			return nil, fmt.Errorf("scan variant option: %w", err)
		}

		opt := domain.VariantOption{VariantID: variantID}
		if len(attributes) > 0 {
			if err := json.Unmarshal(attributes, &opt.Attributes); err != nil {
				return nil, fmt.Errorf("unmarshal variant attributes: %w", err)
			}
		}
		if imageURL != nil {
			opt.ImageURL = *imageURL
		}

		options[productID] = append(options[productID], opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variant options: %w", err)
	}

	return options, nil
}

// Ping checks database reachability, bypassing the circuit breaker so health
// probes keep reporting the real store state while the breaker is open.
func (r *VariantOptionRepository) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}
