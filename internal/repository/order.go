package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/medcart/internal/domain/order"
)

const (
	orderColumns = `id::text, user_id, idempotency_key, lines, subtotal, mrp_total, mrp_discount,
		coupon_code, coupon_discount, delivery_fee, total,
		delivery_address, delivery_phone, delivery_notes, customer_email,
		payment_method, payment_status, status, payment_session_id, tracking_number,
		version, created_at, updated_at, expected_delivery`

	createOrderSQL = `INSERT INTO orders (id, user_id, idempotency_key, lines,
		subtotal, mrp_total, mrp_discount, coupon_code, coupon_discount, delivery_fee, total,
		delivery_address, delivery_phone, delivery_notes, customer_email,
		payment_method, payment_status, status, expected_delivery)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING version, created_at, updated_at`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	listOrdersSQL = `SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR payment_status = $2)
		  AND ($3 = '' OR user_id = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`

	updateOrderSQL = `UPDATE orders SET
			status = COALESCE($3, status),
			payment_status = COALESCE($4, payment_status),
			tracking_number = COALESCE($5, tracking_number),
			payment_session_id = COALESCE($6, payment_session_id),
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING ` + orderColumns

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`

	uniqueViolation = "23505"
	idempotencyKey  = "orders_user_idempotency_key"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The order lines are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}

	linesJSON, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("marshaling order lines: %w", err)
	}

	err = r.pool.QueryRow(ctx, createOrderSQL,
		o.ID, o.UserID, o.IdempotencyKey, linesJSON,
		o.Subtotal, o.MRPTotal, o.MRPDiscount, o.CouponCode, o.CouponDiscount, o.DeliveryFee, o.Total,
		o.DeliveryAddress, o.DeliveryPhone, o.DeliveryNotes, o.CustomerEmail,
		string(o.PaymentMethod), string(o.PaymentStatus), string(o.Status), o.ExpectedDelivery,
	).Scan(&o.Version, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == idempotencyKey {
			return order.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	return nil
}

// Get returns a single order by its identifier.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, order.ErrNotFound
	}

	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ListByUser returns the orders of one user, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// List returns orders matching f, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL,
		string(f.Status), string(f.PaymentStatus), f.UserID, f.Limit, f.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// Update applies p when the stored version still equals expectedVersion.
func (r *OrderRepository) Update(ctx context.Context, id string, expectedVersion int, p order.Patch) (*order.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, order.ErrNotFound
	}

	var status, paymentStatus *string
	if p.Status != nil {
		s := string(*p.Status)
		status = &s
	}
	if p.PaymentStatus != nil {
		s := string(*p.PaymentStatus)
		paymentStatus = &s
	}

	rows, err := r.pool.Query(ctx, updateOrderSQL,
		id, expectedVersion, status, paymentStatus, p.TrackingNumber, p.PaymentSessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err == nil {
		return &o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("updating order %q: %w", id, err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking order %q: %w", id, err)
	}
	if !exists {
		return nil, order.ErrNotFound
	}
	return nil, order.ErrVersionConflict
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o              order.Order
		linesJSON      []byte
		subtotal       decimal.Decimal
		mrpTotal       decimal.Decimal
		mrpDiscount    decimal.Decimal
		couponDiscount decimal.Decimal
		deliveryFee    decimal.Decimal
		total          decimal.Decimal
		paymentMethod  string
		paymentStatus  string
		status         string
		version        int32
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.IdempotencyKey, &linesJSON,
		&subtotal, &mrpTotal, &mrpDiscount,
		&o.CouponCode, &couponDiscount, &deliveryFee, &total,
		&o.DeliveryAddress, &o.DeliveryPhone, &o.DeliveryNotes, &o.CustomerEmail,
		&paymentMethod, &paymentStatus, &status, &o.PaymentSessionID, &o.TrackingNumber,
		&version, &o.CreatedAt, &o.UpdatedAt, &o.ExpectedDelivery,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(linesJSON, &o.Lines); err != nil {
		return o, fmt.Errorf("unmarshaling lines of order %q: %w", o.ID, err)
	}

	o.Subtotal = subtotal
	o.MRPTotal = mrpTotal
	o.MRPDiscount = mrpDiscount
	o.CouponDiscount = couponDiscount
	o.DeliveryFee = deliveryFee
	o.Total = total
	o.PaymentMethod = order.PaymentMethod(paymentMethod)
	o.PaymentStatus = order.PaymentStatus(paymentStatus)
	o.Status = order.Status(status)
	o.Version = int(version)
	return o, nil
}
