package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func some(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(d(v))
}

func TestDiscountPercent(t *testing.T) {
	tests := []struct {
		name       string
		original   decimal.NullDecimal
		discounted decimal.Decimal
		want       int
	}{
		{name: "missing original", original: decimal.NullDecimal{}, discounted: d("30"), want: 0},
		{name: "original equals price", original: some("30"), discounted: d("30"), want: 0},
		{name: "original below price", original: some("25"), discounted: d("30"), want: 0},
		{name: "zero original", original: some("0"), discounted: d("0"), want: 0},
		{name: "35 to 30 rounds to 14", original: some("35"), discounted: d("30"), want: 14},
		{name: "half price", original: some("200"), discounted: d("100"), want: 50},
		{name: "fraction rounds down", original: some("8"), discounted: d("7.5"), want: 6},
		{name: "half rounds up", original: some("200"), discounted: d("199"), want: 1},
		{name: "free item", original: some("99.99"), discounted: d("0"), want: 100},
		{name: "negative discounted clamps", original: some("10"), discounted: d("-5"), want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DiscountPercent(tt.original, tt.discounted))
		})
	}
}

func TestLineTotal(t *testing.T) {
	assert.True(t, d("60").Equal(LineTotal(d("30"), 2)))
	assert.True(t, d("0").Equal(LineTotal(d("30"), 0)))
	assert.True(t, d("37.47").Equal(LineTotal(d("12.49"), 3)))
}

func TestRoundUnits(t *testing.T) {
	assert.True(t, d("6").Equal(RoundUnits(d("6.0"))))
	assert.True(t, d("7").Equal(RoundUnits(d("6.5"))))
	assert.True(t, d("6").Equal(RoundUnits(d("6.49"))))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "₹94.00", Format(d("94"), "₹"))
	assert.Equal(t, "$6.50", Format(d("6.5"), "$"))
}
