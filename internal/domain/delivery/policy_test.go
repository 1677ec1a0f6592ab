package delivery

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPolicy_Fee(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		subtotal int64
		want     int64
	}{
		{subtotal: 0, want: 40},
		{subtotal: 60, want: 40},
		{subtotal: 499, want: 40},
		{subtotal: 500, want: 0},
		{subtotal: 600, want: 0},
	}
	for _, tt := range tests {
		got := p.Fee(decimal.NewFromInt(tt.subtotal))
		assert.True(t, decimal.NewFromInt(tt.want).Equal(got), "subtotal %d: got %s", tt.subtotal, got)
	}

	assert.True(t, decimal.NewFromInt(40).Equal(p.Fee(decimal.RequireFromString("499.99"))))
}

func TestPolicy_CustomValues(t *testing.T) {
	p := Policy{FreeThreshold: decimal.NewFromInt(1000), FlatFee: decimal.NewFromInt(75)}

	assert.True(t, decimal.NewFromInt(75).Equal(p.Fee(decimal.NewFromInt(999))))
	assert.True(t, p.Fee(decimal.NewFromInt(1000)).IsZero())
}

func TestPolicy_Remaining(t *testing.T) {
	p := DefaultPolicy()

	assert.True(t, decimal.NewFromInt(440).Equal(p.Remaining(decimal.NewFromInt(60))))
	assert.True(t, p.Remaining(decimal.NewFromInt(500)).IsZero())
}

func TestPolicy_ExpectedDelivery(t *testing.T) {
	p := DefaultPolicy()
	from := time.Date(2025, 6, 28, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2025, 7, 3, 10, 0, 0, 0, time.UTC), p.ExpectedDelivery(from))
}
