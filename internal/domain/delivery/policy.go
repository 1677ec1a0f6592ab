// Package delivery implements the delivery fee threshold rule.
package delivery

import (
	"time"

	"github.com/shopspring/decimal"
)

// Default policy values.
const (
	DefaultFreeThreshold = 500
	DefaultFlatFee       = 40
	DefaultETADays       = 5
)

// Policy charges FlatFee for orders whose subtotal is below FreeThreshold.
type Policy struct {
	FreeThreshold decimal.Decimal
	FlatFee       decimal.Decimal
	ETADays       int
}

// DefaultPolicy returns the storefront's standard policy.
func DefaultPolicy() Policy {
	return Policy{
		FreeThreshold: decimal.NewFromInt(DefaultFreeThreshold),
		FlatFee:       decimal.NewFromInt(DefaultFlatFee),
		ETADays:       DefaultETADays,
	}
}

// Fee returns the delivery fee for the given subtotal.
func (p Policy) Fee(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.LessThan(p.FreeThreshold) {
		return p.FlatFee
	}
	return decimal.Zero
}

// Remaining returns how much more must be spent to qualify for free delivery.
func (p Policy) Remaining(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(p.FreeThreshold) {
		return decimal.Zero
	}
	return p.FreeThreshold.Sub(subtotal)
}

// ExpectedDelivery returns the estimated delivery date for an order placed at from.
func (p Policy) ExpectedDelivery(from time.Time) time.Time {
	return from.AddDate(0, 0, p.ETADays)
}
