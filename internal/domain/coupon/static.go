package coupon

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultRules is the storefront's built-in code table.
func DefaultRules() []Rule {
	return []Rule{
		{
			Code:        "SAVE10",
			Rate:        decimal.RequireFromString("0.10"),
			Description: "10% off your order",
		},
	}
}

// StaticEvaluator matches codes against a fixed table.
type StaticEvaluator struct {
	rules map[string]Rule
	now   func() time.Time
}

var (
	_ Evaluator = (*StaticEvaluator)(nil)
	_ Redeemer  = (*StaticEvaluator)(nil)
)

// NewStaticEvaluator returns an evaluator over rules. With no rules it uses
// DefaultRules.
func NewStaticEvaluator(rules ...Rule) *StaticEvaluator {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	m := make(map[string]Rule, len(rules))
	for _, r := range rules {
		r.Code = Normalize(r.Code)
		m[r.Code] = r
	}
	return &StaticEvaluator{rules: m, now: time.Now}
}

// Apply implements Evaluator.
func (e *StaticEvaluator) Apply(_ context.Context, code string, subtotal decimal.Decimal) (Result, error) {
	code = Normalize(code)
	rule, ok := e.rules[code]
	if !ok {
		return rejected(code, ErrInvalidCoupon), nil
	}
	return Apply(&rule, e.now(), subtotal), nil
}

// Redeem is a no-op; static codes have no usage limits.
func (e *StaticEvaluator) Redeem(context.Context, string) error {
	return nil
}

// Release is a no-op.
func (e *StaticEvaluator) Release(context.Context, string) error {
	return nil
}
