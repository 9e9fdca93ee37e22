package pricing

import "github.com/shopspring/decimal"

// DefaultCurrency is the label the storefront renders amounts with.
const DefaultCurrency = "PKR"

// FormatAmount renders amount with the currency label and 2 decimal places.
// This is the only place amounts get rounded.
func FormatAmount(currency string, amount decimal.Decimal) string {
	return currency + " " + amount.StringFixed(2)
}
