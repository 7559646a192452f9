// Package event handles catalog domain events that invalidate gateway state.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/youssefhesham2000/Catalog-Service/internal/cache"
	"github.com/youssefhesham2000/Catalog-Service/internal/engine"
	pkgkafka "github.com/youssefhesham2000/Catalog-Service/pkg/kafka"
)

// Kafka topics for product domain events consumed by the gateway. The catalog
// indexer owns document writes; the gateway only reacts to keep its cache and
// index view consistent.
const (
	TopicProductUpdated = "catalog.product.updated"
	TopicProductDeleted = "catalog.product.deleted"
)

// ProductUpdatedData is the payload of a product.updated event. The gateway
// only needs the identity; the indexer has already rewritten the documents.
type ProductUpdatedData struct {
	ProductID string `json:"productId"`
}

// ProductDeletedData is the payload of a product.deleted event, carrying the
// variant documents to drop from the index.
type ProductDeletedData struct {
	ProductID  string   `json:"productId"`
	VariantIDs []string `json:"variantIds"`
}

// Consumer invalidates cached responses (and, on deletes, index documents)
// when the catalog changes.
type Consumer struct {
	cache  cache.ResponseCache
	engine engine.SearchEngine
	logger *slog.Logger
}

// NewConsumer creates an invalidation consumer.
func NewConsumer(responseCache cache.ResponseCache, searchEngine engine.SearchEngine, logger *slog.Logger) *Consumer {
	return &Consumer{
		cache:  responseCache,
		engine: searchEngine,
		logger: logger,
	}
}

// Handle processes a Kafka event based on its type.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicProductUpdated:
		return c.handleProductUpdated(ctx, event)
	case TopicProductDeleted:
		return c.handleProductDeleted(ctx, event)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

// handleProductUpdated purges every cached response. Cached pages are keyed
// by query, not by product, so there is no way to purge selectively.
func (c *Consumer) handleProductUpdated(ctx context.Context, event *pkgkafka.Event) error {
	var data ProductUpdatedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal product.updated data: %w", err)
	}

	if err := c.purgeCache(ctx); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "purged response cache after product update",
		slog.String("product_id", data.ProductID),
	)
	return nil
}

// handleProductDeleted drops the product's variant documents from the index
// and then purges the cache so no response keeps referencing them.
func (c *Consumer) handleProductDeleted(ctx context.Context, event *pkgkafka.Event) error {
	var data ProductDeletedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal product.deleted data: %w", err)
	}

	for _, variantID := range data.VariantIDs {
		if err := c.engine.DeleteDocument(ctx, variantID); err != nil {
			return fmt.Errorf("delete variant document %s: %w", variantID, err)
		}
	}

	if err := c.purgeCache(ctx); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "removed product from index and purged cache",
		slog.String("product_id", data.ProductID),
		slog.Int("variants", len(data.VariantIDs)),
	)
	return nil
}

func (c *Consumer) purgeCache(ctx context.Context) error {
	for _, prefix := range []string{cache.SearchPrefix, cache.FacetsPrefix} {
		if err := c.cache.DeletePattern(ctx, prefix+":*"); err != nil {
			return fmt.Errorf("purge %s cache: %w", prefix, err)
		}
	}
	return nil
}
