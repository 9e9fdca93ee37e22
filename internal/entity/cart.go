package entity

import "github.com/shopspring/decimal"

// LineItem is one product-and-quantity entry of a cart.
type LineItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Totals are derived from the current line items and never stored.
type Totals struct {
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}
