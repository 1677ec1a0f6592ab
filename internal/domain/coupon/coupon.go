// Package coupon evaluates promotional codes against a cart subtotal.
package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidCoupon is returned when a coupon code is not known.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrCouponExpired is returned when a coupon is outside its valid time window.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponUsageLimitReached is returned when a coupon has exhausted its allowed uses.
	ErrCouponUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrMinSubtotal is returned when the subtotal is below the coupon minimum.
	ErrMinSubtotal = errors.New("subtotal below coupon minimum")
)

// Rule defines a coupon's discount rate and eligibility constraints.
type Rule struct {
	Code        string
	Rate        decimal.Decimal // fraction of the subtotal, 0.10 is 10%
	Description string
	ValidFrom   *time.Time
	ValidUntil  *time.Time
	MaxUses     int
	Uses        int
	MaxDiscount decimal.NullDecimal
	MinSubtotal decimal.NullDecimal
}

// Result is the outcome of applying a code. Reason explains Valid=false.
type Result struct {
	Valid          bool
	Code           string
	Rate           decimal.Decimal
	DiscountAmount decimal.Decimal
	Description    string
	Reason         error
}

func rejected(code string, reason error) Result {
	return Result{
		Code:           code,
		DiscountAmount: decimal.Zero,
		Reason:         reason,
	}
}

// Evaluator applies a coupon code to a subtotal. A code that does not apply
// is reported through Result; the error is reserved for lookup failures.
type Evaluator interface {
	Apply(ctx context.Context, code string, subtotal decimal.Decimal) (Result, error)
}

// Redeemer claims a use of a coupon for an order about to be placed. Redeem
// returns ErrCouponUsageLimitReached when no use is left. Release gives back a
// use whose order was not kept.
type Redeemer interface {
	Redeem(ctx context.Context, code string) error
	Release(ctx context.Context, code string) error
}

// Repository provides lookup and mutation of coupon rules.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	IncrementUses(ctx context.Context, code string) error
	DecrementUses(ctx context.Context, code string) error
}

// CodeSource lists every active coupon code.
type CodeSource interface {
	ListCodes(ctx context.Context) ([]string, error)
}

// Normalize returns the canonical form used to match codes.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
