package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// RepoEvaluator implements Evaluator by looking up coupon rules from a
// Repository. An optional Prefilter rejects unknown codes without a lookup.
type RepoEvaluator struct {
	repo      Repository
	prefilter *Prefilter
	now       func() time.Time
}

var (
	_ Evaluator = (*RepoEvaluator)(nil)
	_ Redeemer  = (*RepoEvaluator)(nil)
)

// NewRepoEvaluator creates a RepoEvaluator backed by the given Repository.
// prefilter may be nil.
func NewRepoEvaluator(repo Repository, prefilter *Prefilter) *RepoEvaluator {
	return &RepoEvaluator{repo: repo, prefilter: prefilter, now: time.Now}
}

// Apply looks up the rule for code, checks temporal validity, usage limits
// and minimum subtotal, and computes the discount. It does not consume a use.
func (e *RepoEvaluator) Apply(ctx context.Context, code string, subtotal decimal.Decimal) (Result, error) {
	code = Normalize(code)
	if code == "" {
		return rejected(code, ErrInvalidCoupon), nil
	}
	if e.prefilter != nil && !e.prefilter.MayContain(code) {
		return rejected(code, ErrInvalidCoupon), nil
	}

	rule, err := e.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return rejected(code, ErrInvalidCoupon), nil
		}
		return Result{}, errors.Wrap(err, "lookup coupon")
	}

	return Apply(rule, e.now(), subtotal), nil
}

// Redeem increments the usage counter of code.
func (e *RepoEvaluator) Redeem(ctx context.Context, code string) error {
	if err := e.repo.IncrementUses(ctx, Normalize(code)); err != nil {
		return errors.Wrap(err, "increment coupon uses")
	}
	return nil
}

// Release decrements the usage counter of code.
func (e *RepoEvaluator) Release(ctx context.Context, code string) error {
	if err := e.repo.DecrementUses(ctx, Normalize(code)); err != nil {
		return errors.Wrap(err, "decrement coupon uses")
	}
	return nil
}
