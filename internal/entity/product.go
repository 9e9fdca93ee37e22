package entity

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Product is the storefront product as returned by the upstream API.
type Product struct {
	ID            string          `json:"_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	Image         string          `json:"image,omitempty"`
	Category      string          `json:"category,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Stock         int             `json:"stock"`
	DiscountTiers []DiscountTier  `json:"quantityDiscounts,omitempty"`
}

// UnmarshalJSON reads tiers from quantityDiscounts and falls back to the
// older discountTiers field.
func (p *Product) UnmarshalJSON(data []byte) error {
	type product Product
	aux := struct {
		*product
		LegacyTiers []DiscountTier `json:"discountTiers"`
	}{product: (*product)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if p.DiscountTiers == nil {
		p.DiscountTiers = aux.LegacyTiers
	}
	return nil
}

// DiscountTier grants DiscountPercent off the unit price from MinQty units upward.
type DiscountTier struct {
	MinQty          int             `json:"minQty"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
}

// ProductQuery holds the filters accepted by GET /products.
type ProductQuery struct {
	Search   string
	Category string
	MinPrice string
	MaxPrice string
	Sort     string
	Page     int
	Limit    int
}

// ViewedProduct is a product entry in the recently viewed list.
type ViewedProduct struct {
	Product
	ViewedAt string `json:"viewedAt"`
}

// UnmarshalJSON keeps ViewedAt, which the promoted Product.UnmarshalJSON would drop.
func (v *ViewedProduct) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &v.Product); err != nil {
		return err
	}
	var aux struct {
		ViewedAt string `json:"viewedAt"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	v.ViewedAt = aux.ViewedAt
	return nil
}
