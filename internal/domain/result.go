package domain

// Supplier identifies the supplier behind a buy-box offer.
type Supplier struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Rating float64 `json:"rating"`
}

// BestOffer is the buy-box offer surfaced on a product card: the lowest-price
// in-stock offer of the matched variant, falling back to the lowest-price
// offer of any stock, falling back to a placeholder with an empty offerId.
type BestOffer struct {
	OfferID  string   `json:"offerId"`
	Price    float64  `json:"price"`
	Stock    int      `json:"stock"`
	Supplier Supplier `json:"supplier"`
}

// MatchedVariant is the winning variant within a product group: the hit with
// the highest score, ties broken by lower priceFrom.
type MatchedVariant struct {
	VariantID  string            `json:"variantId"`
	SKU        string            `json:"sku,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	ImageURL   string            `json:"imageUrl,omitempty"`
	PriceFrom  float64           `json:"priceFrom"`
	TotalStock int               `json:"totalStock"`
}

// VariantOption is one selectable variant of a product, as shown on the
// product card. Sourced from the relational store when available, otherwise
// from the variants observed in the engine hits.
type VariantOption struct {
	VariantID  string            `json:"variantId"`
	Attributes map[string]string `json:"attributes,omitempty"`
	ImageURL   string            `json:"imageUrl,omitempty"`
}

// ProductResult is one product-level search result, grouped from the
// variant-level hits of a page.
type ProductResult struct {
	ProductID      string          `json:"productId"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Brand          string          `json:"brand,omitempty"`
	CategoryID     string          `json:"categoryId,omitempty"`
	CategoryName   string          `json:"categoryName,omitempty"`
	MatchedVariant MatchedVariant  `json:"matchedVariant"`
	BestOffer      BestOffer       `json:"bestOffer"`
	VariantOptions []VariantOption `json:"variantOptions"`
	// OfferCount sums the offers across this product's hits on the current
	// page; it is an approximation, not a product-wide count.
	OfferCount int     `json:"offerCount"`
	Score      float64 `json:"score"`
}

// Suggestion is an alternate query proposed when a search matched nothing.
type Suggestion struct {
	Term           string `json:"term"`
	EstimatedCount *int64 `json:"estimatedCount,omitempty"`
}

// Facet types.
const (
	FacetTypeTerms = "terms"
	FacetTypeRange = "range"
)

// FacetBucket is one value bucket of a terms facet.
type FacetBucket struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// FacetRange is one bucket of a range facet. From/To are absent on the
// unbounded ends.
type FacetRange struct {
	From  *float64 `json:"from,omitempty"`
	To    *float64 `json:"to,omitempty"`
	Count int64    `json:"count"`
	Label string   `json:"label"`
}

// Facet is one aggregation result powering a filter UI.
type Facet struct {
	Key     string        `json:"key"`
	Name    string        `json:"name"`
	Type    string        `json:"type"`
	Buckets []FacetBucket `json:"buckets,omitempty"`
	Ranges  []FacetRange  `json:"ranges,omitempty"`
}

// PriceFacetBucket is one fixed bucket of the priceFrom range facet.
// From is inclusive, To exclusive; either end may be unbounded.
type PriceFacetBucket struct {
	Label string
	From  *float64
	To    *float64
}

func fptr(v float64) *float64 { return &v }

// PriceFacetBuckets are the fixed priceFrom facet buckets, in display order.
var PriceFacetBuckets = []PriceFacetBucket{
	{Label: "Under 25", To: fptr(25)},
	{Label: "25 to 50", From: fptr(25), To: fptr(50)},
	{Label: "50 to 100", From: fptr(50), To: fptr(100)},
	{Label: "100 to 200", From: fptr(100), To: fptr(200)},
	{Label: "200 and up", From: fptr(200)},
}

// Contains reports whether a price falls inside the bucket.
func (b PriceFacetBucket) Contains(price float64) bool {
	if b.From != nil && price < *b.From {
		return false
	}
	if b.To != nil && price >= *b.To {
		return false
	}
	return true
}
