// Package pricing turns a product's base price and a quantity into unit
// and total prices using the product's quantity discount tiers.
package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"storefront-cart-service/internal/entity"
)

var hundred = decimal.NewFromInt(100)

// PriceFor calculates the pricing for quantity units of product.
// Quantities below 1 are priced as 1. Results are not rounded.
func PriceFor(product entity.Product, quantity int) entity.Pricing {
	if quantity < 1 {
		quantity = 1
	}

	original := product.Price
	discount := decimal.Zero
	if tier, ok := applicableTier(product.DiscountTiers, quantity); ok {
		discount = tier.DiscountPercent
	}

	unit := original
	if !discount.IsZero() {
		unit = original.Mul(hundred.Sub(discount)).Div(hundred)
	}

	return entity.Pricing{
		UnitPrice:         unit,
		TotalPrice:        unit.Mul(decimal.NewFromInt(int64(quantity))),
		OriginalUnitPrice: original,
		HasDiscount:       discount.GreaterThan(decimal.Zero),
		DiscountPercent:   discount,
		Tiers:             product.DiscountTiers,
	}
}

// applicableTier returns the tier with the highest MinQty <= quantity.
// Tiers with MinQty < 1 never apply. On equal thresholds the later tier wins.
func applicableTier(tiers []entity.DiscountTier, quantity int) (entity.DiscountTier, bool) {
	var best entity.DiscountTier
	found := false
	for _, tier := range tiers {
		if tier.MinQty < 1 || tier.MinQty > quantity {
			continue
		}
		if !found || tier.MinQty >= best.MinQty {
			best = tier
			found = true
		}
	}
	return best, found
}

// TierStep is one rung of a product's discount ladder.
type TierStep struct {
	MinQty          int             `json:"min_qty"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
}

// Ladder lists the product's usable tiers by ascending MinQty together with
// the unit price each one yields.
func Ladder(product entity.Product) []TierStep {
	steps := make([]TierStep, 0, len(product.DiscountTiers))
	seen := make(map[int]int)
	for _, tier := range product.DiscountTiers {
		if tier.MinQty < 1 {
			continue
		}
		step := TierStep{
			MinQty:          tier.MinQty,
			DiscountPercent: tier.DiscountPercent,
			UnitPrice:       PriceFor(product, tier.MinQty).UnitPrice,
		}
		if i, ok := seen[tier.MinQty]; ok {
			steps[i] = step
			continue
		}
		seen[tier.MinQty] = len(steps)
		steps = append(steps, step)
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].MinQty < steps[j].MinQty })
	return steps
}
