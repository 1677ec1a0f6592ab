package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMedicine_DiscountPercent(t *testing.T) {
	m := Medicine{Price: decimal.NewFromInt(30), MRP: decimal.NewNullDecimal(decimal.NewFromInt(40))}
	assert.Equal(t, 25, m.DiscountPercent())

	m.MRP = decimal.NullDecimal{}
	assert.Equal(t, 0, m.DiscountPercent())
}

func TestMedicine_CartItem(t *testing.T) {
	m := Medicine{
		ID:                   "amox-500",
		Name:                 "Amoxicillin 500mg",
		Price:                decimal.NewFromInt(120),
		MRP:                  decimal.NewNullDecimal(decimal.NewFromInt(150)),
		RequiresPrescription: true,
	}

	item := m.CartItem()
	assert.Equal(t, "amox-500", item.ProductRef)
	assert.Equal(t, "Amoxicillin 500mg", item.Name)
	assert.True(t, item.UnitPrice.Equal(decimal.NewFromInt(120)))
	assert.True(t, item.MRP.Valid)
	assert.True(t, item.RequiresPrescription)
}
