package domain

import "time"

// Offer is one supplier's price and stock position for a variant.
type Offer struct {
	OfferID        string  `json:"offerId"`
	SupplierID     string  `json:"supplierId"`
	SupplierName   string  `json:"supplierName"`
	SupplierRating float64 `json:"supplierRating"`
	Price          float64 `json:"price"`
	Stock          int     `json:"stock"`
}

// VariantDocument is the denormalized per-variant document stored in the
// search index. It is written by the out-of-scope ingestion path; the
// gateway only reads it.
type VariantDocument struct {
	VariantID          string            `json:"variantId"`
	ProductID          string            `json:"productId"`
	SKU                string            `json:"sku"`
	ProductName        string            `json:"productName"`
	ProductDescription string            `json:"productDescription"`
	Brand              string            `json:"brand"`
	CategoryName       string            `json:"categoryName"`
	CategoryID         string            `json:"categoryId"`
	Attributes         map[string]string `json:"attributes,omitempty"`
	ImageURL           string            `json:"imageUrl,omitempty"`
	PriceFrom          float64           `json:"priceFrom"`
	TotalStock         int               `json:"totalStock"`
	Sales30d           int               `json:"sales30d"`
	Offers             []Offer           `json:"offers,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}
