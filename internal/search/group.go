package search

import (
	"sort"

	"github.com/youssefhesham2000/Catalog-Service/internal/domain"
	"github.com/youssefhesham2000/Catalog-Service/internal/engine"
)

// group accumulates the variant hits of one product while walking a page.
type group struct {
	productID string
	maxScore  float64
	hits      []engine.Hit
}

// groupHits folds an ordered page of variant hits into product-level results.
// Hits arrive in engine sort order; the grouper keeps one group per
// productId, picks the matched variant and buy-box offer, and attaches the
// enricher's variant options (falling back to the variants observed in the
// hits when the relational store had nothing for the product).
func groupHits(hits []engine.Hit, options map[string][]domain.VariantOption) []domain.ProductResult {
	groups := make(map[string]*group, len(hits))
	order := make([]string, 0, len(hits))

	for _, hit := range hits {
		productID := hit.Source.ProductID
		g, ok := groups[productID]
		if !ok {
			g = &group{productID: productID}
			groups[productID] = g
			order = append(order, productID)
		}
		if hit.Score > g.maxScore {
			g.maxScore = hit.Score
		}
		g.hits = append(g.hits, hit)
	}

	results := make([]domain.ProductResult, 0, len(order))
	for _, productID := range order {
		g := groups[productID]
		matched := matchedVariant(g.hits)

		result := domain.ProductResult{
			ProductID:    productID,
			Name:         matched.Source.ProductName,
			Description:  matched.Source.ProductDescription,
			Brand:        matched.Source.Brand,
			CategoryID:   matched.Source.CategoryID,
			CategoryName: matched.Source.CategoryName,
			MatchedVariant: domain.MatchedVariant{
				VariantID:  matched.Source.VariantID,
				SKU:        matched.Source.SKU,
				Attributes: matched.Source.Attributes,
				ImageURL:   matched.Source.ImageURL,
				PriceFrom:  matched.Source.PriceFrom,
				TotalStock: matched.Source.TotalStock,
			},
			BestOffer:      bestOffer(matched.Source),
			VariantOptions: variantOptions(productID, g.hits, options),
			OfferCount:     offerCount(g.hits),
			Score:          g.maxScore,
		}
		results = append(results, result)
	}

	// The engine already delivered hits in score order, but the matched
	// variant of a later group can outscore an earlier group's, so re-sort
	// at product level. Ties break by productId to keep the order stable.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ProductID < results[j].ProductID
	})

	return results
}

// matchedVariant selects the winning variant of a group: highest score,
// ties broken by lower priceFrom.
func matchedVariant(hits []engine.Hit) engine.Hit {
	best := hits[0]
	for _, h := range hits[1:] {
		if h.Score > best.Score ||
			(h.Score == best.Score && h.Source.PriceFrom < best.Source.PriceFrom) {
			best = h
		}
	}
	return best
}

// bestOffer selects the buy-box offer of the matched variant: the cheapest
// in-stock offer, else the cheapest offer of any stock, else a placeholder
// priced at the variant's priceFrom. The placeholder shape (empty offerId,
// supplier "Unknown") is part of the response contract.
func bestOffer(variant domain.VariantDocument) domain.BestOffer {
	var (
		cheapestInStock *domain.Offer
		cheapest        *domain.Offer
	)
	for i := range variant.Offers {
		offer := &variant.Offers[i]
		if cheapest == nil || offer.Price < cheapest.Price {
			cheapest = offer
		}
		if offer.Stock > 0 && (cheapestInStock == nil || offer.Price < cheapestInStock.Price) {
			cheapestInStock = offer
		}
	}

	winner := cheapestInStock
	if winner == nil {
		winner = cheapest
	}
	if winner == nil {
		return domain.BestOffer{
			Price:    variant.PriceFrom,
			Supplier: domain.Supplier{Name: "Unknown"},
		}
	}

	return domain.BestOffer{
		OfferID: winner.OfferID,
		Price:   winner.Price,
		Stock:   winner.Stock,
		Supplier: domain.Supplier{
			ID:     winner.SupplierID,
			Name:   winner.SupplierName,
			Rating: winner.SupplierRating,
		},
	}
}

// variantOptions prefers the enricher's relational lookup; when the store
// had nothing for this product (or was down), the variants observed in the
// page's own hits stand in, so a relational outage thins the product card
// instead of failing the request.
func variantOptions(productID string, hits []engine.Hit, options map[string][]domain.VariantOption) []domain.VariantOption {
	if opts := options[productID]; len(opts) > 0 {
		return opts
	}

	opts := make([]domain.VariantOption, 0, len(hits))
	for _, h := range hits {
		opts = append(opts, domain.VariantOption{
			VariantID:  h.Source.VariantID,
			Attributes: h.Source.Attributes,
			ImageURL:   h.Source.ImageURL,
		})
	}
	return opts
}

// offerCount sums the offers across the group's hits on this page. Variants
// of the product outside the page are not counted; the response documents
// the field as an approximation.
func offerCount(hits []engine.Hit) int {
	count := 0
	for _, h := range hits {
		count += len(h.Source.Offers)
	}
	return count
}

// nextCursor derives the continuation token from the last engine hit, not
// the last product: continuation lives in variant-sort space. A cursor is
// emitted only when the engine filled the page and the last hit carries
// sort values.
func nextCursor(hits []engine.Hit, limit int) *string {
	if len(hits) < limit {
		return nil
	}
	last := hits[len(hits)-1]
	if len(last.Sort) == 0 {
		return nil
	}
	token := domain.EncodeCursor(last.Sort)
	if token == "" {
		return nil
	}
	return &token
}
