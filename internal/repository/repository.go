// Package repository defines the read-side contracts against the relational
// catalog store.
package repository

import (
	"context"

	"github.com/youssefhesham2000/Catalog-Service/internal/domain"
)

// VariantOptionRepository returns all variant options of a set of products in
// one batched lookup. Implementations absorb their own resilience concerns
// (circuit breaker, per-call timeout); a failed lookup is surfaced as an
// error and degraded to an empty map by the caller.
type VariantOptionRepository interface {
	// ListByProductIDs returns a mapping productId -> variant options for
	// every requested product that has variants. Products without rows are
	// simply absent from the map.
	ListByProductIDs(ctx context.Context, productIDs []string) (map[string][]domain.VariantOption, error)

	// Ping checks whether the relational store is reachable.
	Ping(ctx context.Context) error
}
