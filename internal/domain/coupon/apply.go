package coupon

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/medcart/internal/domain/money"
)

// Check reports why rule cannot be applied at now to subtotal, or nil.
func Check(rule *Rule, now time.Time, subtotal decimal.Decimal) error {
	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return ErrCouponExpired
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return ErrCouponExpired
	}
	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return ErrCouponUsageLimitReached
	}
	if rule.MinSubtotal.Valid && subtotal.LessThan(rule.MinSubtotal.Decimal) {
		return ErrMinSubtotal
	}
	return nil
}

// Discount returns round(subtotal × rate), capped by the rule's MaxDiscount and
// by the subtotal itself.
func Discount(rule *Rule, subtotal decimal.Decimal) decimal.Decimal {
	amount := money.RoundUnits(subtotal.Mul(rule.Rate))
	if rule.MaxDiscount.Valid && amount.GreaterThan(rule.MaxDiscount.Decimal) {
		amount = rule.MaxDiscount.Decimal
	}
	amount = decimal.Min(amount, subtotal)
	return money.FloorAtZero(amount)
}

// Apply checks the rule and computes its discount.
func Apply(rule *Rule, now time.Time, subtotal decimal.Decimal) Result {
	if err := Check(rule, now, subtotal); err != nil {
		return rejected(rule.Code, err)
	}
	return Result{
		Valid:          true,
		Code:           rule.Code,
		Rate:           rule.Rate,
		DiscountAmount: Discount(rule, subtotal),
		Description:    rule.Description,
	}
}
