// Package order holds the placed-order entity, its lifecycle state machine
// and the back-office operations that advance it.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/medcart/internal/domain/cart"
)

var (
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrVersionConflict is returned when an order changed since it was read.
	ErrVersionConflict = errors.New("order was modified concurrently")
	// ErrDuplicateIdempotencyKey is returned when a user reuses a checkout key.
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// PaymentMethod selects how the customer pays.
type PaymentMethod string

const (
	MethodCOD    PaymentMethod = "cod"
	MethodOnline PaymentMethod = "online"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == MethodCOD || m == MethodOnline
}

// Line is a snapshot of a cart line at placement time.
type Line struct {
	ProductRef           string          `json:"product_ref"`
	Name                 string          `json:"name"`
	UnitPrice            decimal.Decimal `json:"unit_price"`
	MRP                  decimal.Decimal `json:"mrp"`
	Quantity             int             `json:"quantity"`
	RequiresPrescription bool            `json:"requires_prescription,omitempty"`
}

// Total returns UnitPrice × Quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LinesFromCart copies cart lines into order lines.
func LinesFromCart(lines []cart.Line) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = Line{
			ProductRef:           l.ProductRef,
			Name:                 l.Name,
			UnitPrice:            l.UnitPrice,
			MRP:                  l.MRP,
			Quantity:             l.Quantity,
			RequiresPrescription: l.RequiresPrescription,
		}
	}
	return out
}

// CartLines converts order lines back to cart lines.
func CartLines(lines []Line) []cart.Line {
	out := make([]cart.Line, len(lines))
	for i, l := range lines {
		out[i] = cart.Line{
			ProductRef:           l.ProductRef,
			Name:                 l.Name,
			UnitPrice:            l.UnitPrice,
			MRP:                  l.MRP,
			Quantity:             l.Quantity,
			RequiresPrescription: l.RequiresPrescription,
		}
	}
	return out
}

// Order is a placed order. Lines and money fields never change after
// creation; only status, payment status and tracking metadata do.
type Order struct {
	ID               string
	UserID           string
	IdempotencyKey   string
	Lines            []Line
	Subtotal         decimal.Decimal
	MRPTotal         decimal.Decimal
	MRPDiscount      decimal.Decimal
	CouponCode       string
	CouponDiscount   decimal.Decimal
	DeliveryFee      decimal.Decimal
	Total            decimal.Decimal
	DeliveryAddress  string
	DeliveryPhone    string
	DeliveryNotes    string
	CustomerEmail    string
	PaymentMethod    PaymentMethod
	PaymentStatus    PaymentStatus
	Status           Status
	PaymentSessionID string
	TrackingNumber   string
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ExpectedDelivery time.Time
}

// Balanced reports whether Total equals Subtotal − CouponDiscount + DeliveryFee.
func (o *Order) Balanced() bool {
	return o.Total.Equal(o.Subtotal.Sub(o.CouponDiscount).Add(o.DeliveryFee))
}

// Patch lists the mutable fields to change. Nil fields are left unchanged.
type Patch struct {
	Status           *Status
	PaymentStatus    *PaymentStatus
	TrackingNumber   *string
	PaymentSessionID *string
}

// ListFilter narrows admin listings. Zero values match everything.
type ListFilter struct {
	Status        Status
	PaymentStatus PaymentStatus
	UserID        string
	Limit         int
	Offset        int
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create inserts o and fills its ID, Version and timestamps. A reused
	// (UserID, IdempotencyKey) pair returns ErrDuplicateIdempotencyKey.
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
	// Update applies p if the stored version equals expectedVersion and
	// returns the updated order. A stale version returns ErrVersionConflict.
	Update(ctx context.Context, id string, expectedVersion int, p Patch) (*Order, error)
}
