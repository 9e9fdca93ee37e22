package pricing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"storefront-cart-service/internal/entity"
)

// ErrInvalidTier reports discount tier data that should not have been ingested.
var ErrInvalidTier = errors.New("invalid discount tier")

// ValidateTiers checks tier data at product ingestion. PriceFor never clamps
// or rejects, so products should be checked here before reaching a cart.
func ValidateTiers(tiers []entity.DiscountTier) error {
	seen := make(map[int]bool, len(tiers))
	for i, tier := range tiers {
		if tier.MinQty < 1 {
			return errors.Wrap(ErrInvalidTier, fmt.Sprintf("tier %d: minQty %d must be at least 1", i, tier.MinQty))
		}
		if seen[tier.MinQty] {
			return errors.Wrap(ErrInvalidTier, fmt.Sprintf("tier %d: duplicate minQty %d", i, tier.MinQty))
		}
		seen[tier.MinQty] = true
		if tier.DiscountPercent.LessThan(decimal.Zero) || tier.DiscountPercent.GreaterThan(hundred) {
			return errors.Wrap(ErrInvalidTier, fmt.Sprintf("tier %d: discountPercent %s outside [0,100]", i, tier.DiscountPercent))
		}
	}
	return nil
}

// ParseTier reads a "minQty:percent" pair such as "5:10".
func ParseTier(s string) (entity.DiscountTier, error) {
	qty, percent, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return entity.DiscountTier{}, errors.Wrapf(ErrInvalidTier, "%q is not minQty:percent", s)
	}
	minQty, err := strconv.Atoi(qty)
	if err != nil {
		return entity.DiscountTier{}, errors.Wrapf(ErrInvalidTier, "minQty %q", qty)
	}
	discount, err := decimal.NewFromString(percent)
	if err != nil {
		return entity.DiscountTier{}, errors.Wrapf(ErrInvalidTier, "discountPercent %q", percent)
	}
	return entity.DiscountTier{MinQty: minQty, DiscountPercent: discount}, nil
}
