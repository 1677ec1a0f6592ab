// Package payment creates hosted payment sessions with Stripe Checkout.
package payment

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"go.uber.org/zap"

	domain "github.com/xenking/medcart/internal/domain/payment"
)

// Config configures the Stripe Checkout provider.
type Config struct {
	SecretKey  string
	Currency   string
	SuccessURL string
	CancelURL  string
	Breaker    BreakerConfig
}

type sessionFunc func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

// StripeCheckout implements domain.SessionProvider with Stripe Checkout.
type StripeCheckout struct {
	cfg     Config
	create  sessionFunc
	breaker *gobreaker.CircuitBreaker
}

var _ domain.SessionProvider = (*StripeCheckout)(nil)

// NewStripeCheckout creates a provider and sets the Stripe API key.
func NewStripeCheckout(cfg Config, lg *zap.Logger) *StripeCheckout {
	stripe.Key = cfg.SecretKey
	return newStripeCheckout(cfg, checkoutsession.New, lg)
}

func newStripeCheckout(cfg Config, create sessionFunc, lg *zap.Logger) *StripeCheckout {
	if cfg.Currency == "" {
		cfg.Currency = "inr"
	}
	cfg.Currency = strings.ToLower(cfg.Currency)
	return &StripeCheckout{
		cfg:     cfg,
		create:  create,
		breaker: newBreaker("stripe-checkout", cfg.Breaker, lg),
	}
}

// BreakerState returns the circuit breaker state name.
func (s *StripeCheckout) BreakerState() string {
	return s.breaker.State().String()
}

// Available reports whether the breaker lets requests through.
func (s *StripeCheckout) Available() bool {
	return s.breaker.State() != gobreaker.StateOpen
}

// CreateSession creates a Checkout Session in payment mode for the order.
// The order id is the idempotency key, so retries return the same session.
func (s *StripeCheckout) CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := s.params(req)
	params.Context = ctx
	params.SetIdempotencyKey("order-" + req.OrderID)

	sess, err := executeWithBreaker(s.breaker, func() (*stripe.CheckoutSession, error) {
		return s.create(params)
	})
	if err != nil {
		return nil, errors.Wrap(err, "create checkout session")
	}
	if sess.URL == "" {
		return nil, errors.Errorf("checkout session %s has no url", sess.ID)
	}

	return &domain.Session{ID: sess.ID, URL: sess.URL}, nil
}

func (s *StripeCheckout) params(req domain.SessionRequest) *stripe.CheckoutSessionParams {
	p := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:         s.lineItems(req),
		SuccessURL:        stripe.String(s.cfg.SuccessURL + "?order_id=" + req.OrderID + "&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(s.cfg.CancelURL + "?order_id=" + req.OrderID),
		ClientReferenceID: stripe.String(req.OrderID),
		Metadata: map[string]string{
			"order_id":         req.OrderID,
			"delivery_address": req.DeliveryAddress,
			"delivery_phone":   req.DeliveryPhone,
		},
	}
	if req.CustomerEmail != "" {
		p.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	return p
}

// lineItems itemizes the order. Checkout has no negative line items, so a
// coupon discount collapses the order into a single line for the total.
func (s *StripeCheckout) lineItems(req domain.SessionRequest) []*stripe.CheckoutSessionLineItemParams {
	if req.CouponDiscount.IsPositive() {
		return []*stripe.CheckoutSessionLineItemParams{
			s.lineItem("Order "+req.OrderID, req.Total, 1),
		}
	}

	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items)+1)
	for _, it := range req.Items {
		items = append(items, s.lineItem(it.Name, it.Price, it.Quantity))
	}
	if req.DeliveryFee.IsPositive() {
		items = append(items, s.lineItem("Delivery", req.DeliveryFee, 1))
	}
	return items
}

func (s *StripeCheckout) lineItem(name string, price decimal.Decimal, qty int) *stripe.CheckoutSessionLineItemParams {
	return &stripe.CheckoutSessionLineItemParams{
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency: stripe.String(s.cfg.Currency),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(name),
			},
			UnitAmount: stripe.Int64(minorUnits(price)),
		},
		Quantity: stripe.Int64(int64(qty)),
	}
}

var hundred = decimal.NewFromInt(100)

// minorUnits converts an amount to the smallest currency unit.
func minorUnits(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}
