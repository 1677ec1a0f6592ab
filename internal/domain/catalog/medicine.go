// Package catalog is the read model of the medicines the storefront sells.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/medcart/internal/domain/cart"
	"github.com/xenking/medcart/internal/domain/money"
)

// ErrNotFound is returned when a requested medicine does not exist.
var ErrNotFound = errors.New("medicine not found")

// Medicine is a catalog item available for purchase.
type Medicine struct {
	ID                   string
	Name                 string
	Price                decimal.Decimal
	MRP                  decimal.NullDecimal
	Category             string
	Manufacturer         string
	RequiresPrescription bool
	ImageURL             string
	InStock              bool
}

// DiscountPercent returns the whole-number discount from MRP to price.
func (m Medicine) DiscountPercent() int {
	return money.DiscountPercent(m.MRP, m.Price)
}

// CartItem converts the medicine into the data a cart line needs.
func (m Medicine) CartItem() cart.Item {
	return cart.Item{
		ProductRef:           m.ID,
		Name:                 m.Name,
		UnitPrice:            m.Price,
		MRP:                  m.MRP,
		RequiresPrescription: m.RequiresPrescription,
	}
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Category string
	Search   string
}

// Repository defines read operations for the medicine catalog.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Medicine, error)
	GetByID(ctx context.Context, id string) (*Medicine, error)
	GetByIDs(ctx context.Context, ids []string) ([]Medicine, error)
}
