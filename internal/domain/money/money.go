// Package money holds the pricing helpers shared by the cart, coupon and
// checkout packages. Amounts are shopspring decimals; floats never enter the
// pricing chain.
package money

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DiscountPercent returns the whole-number percentage by which discounted is
// below original, in the range 0..100. An absent original, or one that is not
// above the discounted price, yields 0.
func DiscountPercent(original decimal.NullDecimal, discounted decimal.Decimal) int {
	if !original.Valid || !original.Decimal.IsPositive() {
		return 0
	}
	if original.Decimal.LessThanOrEqual(discounted) {
		return 0
	}

	pct := original.Decimal.Sub(discounted).Div(original.Decimal).Mul(hundred).Round(0)
	switch {
	case pct.IsNegative():
		return 0
	case pct.GreaterThan(hundred):
		return 100
	}
	return int(pct.IntPart())
}

// LineTotal returns unitPrice × quantity.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// RoundUnits rounds to whole currency units, half away from zero.
func RoundUnits(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// FloorAtZero clamps negative values to zero.
func FloorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Format renders an amount for display with two decimal places.
func Format(d decimal.Decimal, symbol string) string {
	return symbol + d.StringFixed(2)
}
