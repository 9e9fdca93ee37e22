package entity

import "github.com/shopspring/decimal"

// Pricing represents the pricing data for a product at a given quantity.
type Pricing struct {
	UnitPrice         decimal.Decimal `json:"unit_price"`          // Unit price after discount
	TotalPrice        decimal.Decimal `json:"total_price"`         // UnitPrice * quantity, unrounded
	OriginalUnitPrice decimal.Decimal `json:"original_unit_price"` // Product base price
	HasDiscount       bool            `json:"has_discount"`
	DiscountPercent   decimal.Decimal `json:"discount_percent"`
	Tiers             []DiscountTier  `json:"tiers"`
}
