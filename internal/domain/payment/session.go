// Package payment declares the hosted payment-session collaborator.
package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrUnavailable is returned when the provider is not accepting requests,
// for example while its circuit breaker is open.
var ErrUnavailable = errors.New("payment provider unavailable")

// Item is one line of the payment session.
type Item struct {
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// SessionRequest describes the order the customer is paying for.
type SessionRequest struct {
	OrderID         string
	Items           []Item
	DeliveryFee     decimal.Decimal
	CouponDiscount  decimal.Decimal
	Total           decimal.Decimal
	DeliveryAddress string
	DeliveryPhone   string
	CustomerEmail   string
}

// Session is a hosted checkout the customer is redirected to.
type Session struct {
	ID  string
	URL string
}

// SessionProvider creates hosted payment sessions.
type SessionProvider interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
}
