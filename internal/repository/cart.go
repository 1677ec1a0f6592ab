package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/medcart/internal/domain/cart"
)

const (
	loadCartSQL = `SELECT product_ref, name, unit_price, mrp, quantity, requires_prescription
		FROM cart_items WHERE user_id = $1 ORDER BY position`

	clearCartSQL = `DELETE FROM cart_items WHERE user_id = $1`
)

var cartColumns = []string{
	"user_id", "product_ref", "name", "unit_price", "mrp", "quantity", "requires_prescription", "position",
}

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository persists carts as one row per line.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Load returns the stored cart for userID. A user without a stored cart gets
// an empty one.
func (r *CartRepository) Load(ctx context.Context, userID string) (*cart.Cart, error) {
	rows, err := r.pool.Query(ctx, loadCartSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("loading cart for %q: %w", userID, err)
	}

	lines, err := pgx.CollectRows(rows, scanCartLine)
	if err != nil {
		return nil, fmt.Errorf("loading cart for %q: %w", userID, err)
	}
	return cart.FromLines(lines), nil
}

// Save replaces the stored cart for userID with c.
func (r *CartRepository) Save(ctx context.Context, userID string, c *cart.Cart) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning cart tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, clearCartSQL, userID); err != nil {
		return fmt.Errorf("clearing cart for %q: %w", userID, err)
	}

	lines := c.Lines()
	if len(lines) > 0 {
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"cart_items"}, cartColumns,
			pgx.CopyFromSlice(len(lines), func(i int) ([]any, error) {
				l := lines[i]
				return []any{
					userID, l.ProductRef, l.Name, l.UnitPrice, l.MRP,
					int32(l.Quantity), l.RequiresPrescription, int32(i),
				}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("writing cart lines for %q: %w", userID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing cart for %q: %w", userID, err)
	}
	return nil
}

// Clear removes the stored cart for userID.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, clearCartSQL, userID); err != nil {
		return fmt.Errorf("clearing cart for %q: %w", userID, err)
	}
	return nil
}

func scanCartLine(row pgx.CollectableRow) (cart.Line, error) {
	var (
		l         cart.Line
		unitPrice decimal.Decimal
		mrp       decimal.Decimal
		quantity  int32
	)
	err := row.Scan(&l.ProductRef, &l.Name, &unitPrice, &mrp, &quantity, &l.RequiresPrescription)
	l.UnitPrice = unitPrice
	l.MRP = mrp
	l.Quantity = int(quantity)
	return l, err
}
