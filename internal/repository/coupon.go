package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/medcart/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, rate, description, valid_from, valid_until,
		max_uses, uses, max_discount, min_subtotal
		FROM coupons WHERE code = UPPER($1) AND active = TRUE`

	// The usage check and increment happen in one statement so concurrent
	// checkouts cannot claim more than max_uses.
	incrementCouponUsesSQL = `UPDATE coupons SET uses = uses + 1
		WHERE code = $1 AND active = TRUE AND (max_uses = 0 OR uses < max_uses)`

	decrementCouponUsesSQL = `UPDATE coupons SET uses = uses - 1
		WHERE code = $1 AND uses > 0`

	listCouponCodesSQL = `SELECT code FROM coupons WHERE active = TRUE`

	// couponsChangedChannel is notified by the coupons_changed trigger.
	couponsChangedChannel = "coupons_changed"

	upsertCouponSQL = `INSERT INTO coupons
		(code, rate, description, valid_from, valid_until, max_uses, max_discount, min_subtotal, active)
		VALUES (UPPER($1), $2, $3, $4, $5, $6, $7, $8, TRUE)
		ON CONFLICT (code) DO UPDATE SET
			rate = EXCLUDED.rate,
			description = EXCLUDED.description,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			max_uses = EXCLUDED.max_uses,
			max_discount = EXCLUDED.max_discount,
			min_subtotal = EXCLUDED.min_subtotal,
			active = TRUE`
)

var (
	_ coupon.Repository = (*CouponRepository)(nil)
	_ coupon.CodeSource = (*CouponRepository)(nil)
	_ coupon.ChangeFeed = (*CouponRepository)(nil)
)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up an active coupon by its code (case-insensitive).
// Returns coupon.ErrInvalidCoupon when no matching active coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &rule, nil
}

// IncrementUses atomically increments the usage counter for the given coupon
// code. Returns coupon.ErrCouponUsageLimitReached when the coupon has no uses
// left.
func (r *CouponRepository) IncrementUses(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, incrementCouponUsesSQL, code)
	if err != nil {
		return fmt.Errorf("incrementing uses for coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrCouponUsageLimitReached
	}
	return nil
}

// DecrementUses gives back one use of the given coupon code. It is a no-op
// when the counter is already zero.
func (r *CouponRepository) DecrementUses(ctx context.Context, code string) error {
	if _, err := r.pool.Exec(ctx, decrementCouponUsesSQL, code); err != nil {
		return fmt.Errorf("decrementing uses for coupon %q: %w", code, err)
	}
	return nil
}

// ListCodes returns every active coupon code.
func (r *CouponRepository) ListCodes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listCouponCodesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupon codes: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Upsert inserts or replaces a coupon rule. The usage counter of an existing
// coupon is kept.
func (r *CouponRepository) Upsert(ctx context.Context, rule coupon.Rule) error {
	_, err := r.pool.Exec(ctx, upsertCouponSQL,
		rule.Code, rule.Rate, rule.Description, rule.ValidFrom, rule.ValidUntil,
		int32(rule.MaxUses), rule.MaxDiscount, rule.MinSubtotal,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", rule.Code, err)
	}
	return nil
}

// Listen holds a pool connection subscribed to coupon changes and calls
// changed for every notification until ctx is done or the connection fails.
func (r *CouponRepository) Listen(ctx context.Context, changed func()) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring listen connection: %w", err)
	}
	defer func() {
		if !conn.Conn().IsClosed() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if _, err := conn.Exec(cleanupCtx, "UNLISTEN "+couponsChangedChannel); err != nil {
				_ = conn.Conn().Close(cleanupCtx)
			}
		}
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+couponsChangedChannel); err != nil {
		return fmt.Errorf("listening on %s: %w", couponsChangedChannel, err)
	}
	changed()

	for {
		if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("waiting for coupon notification: %w", err)
		}
		changed()
	}
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule        coupon.Rule
		rate        decimal.Decimal
		validFrom   *time.Time
		validUntil  *time.Time
		maxUses     int32
		uses        int32
		maxDiscount decimal.NullDecimal
		minSubtotal decimal.NullDecimal
	)
	err := row.Scan(
		&rule.Code, &rate, &rule.Description, &validFrom, &validUntil,
		&maxUses, &uses, &maxDiscount, &minSubtotal,
	)
	rule.Rate = rate
	rule.ValidFrom = validFrom
	rule.ValidUntil = validUntil
	rule.MaxUses = int(maxUses)
	rule.Uses = int(uses)
	rule.MaxDiscount = maxDiscount
	rule.MinSubtotal = minSubtotal
	return rule, err
}
