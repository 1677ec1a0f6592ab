// Package checkout turns a cart plus shipping and payment input into a placed
// order, and prices carts for display.
package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/medcart/internal/domain/cart"
	"github.com/xenking/medcart/internal/domain/coupon"
	"github.com/xenking/medcart/internal/domain/delivery"
	"github.com/xenking/medcart/internal/domain/money"
	"github.com/xenking/medcart/internal/domain/notification"
	"github.com/xenking/medcart/internal/domain/order"
	"github.com/xenking/medcart/internal/domain/payment"
)

// DefaultPaymentTimeout bounds the payment-session request.
const DefaultPaymentTimeout = 30 * time.Second

// Input is a checkout attempt.
type Input struct {
	UserID          string              `json:"userId" validate:"required"`
	IdempotencyKey  string              `json:"idempotencyKey" validate:"required,max=128"`
	Cart            *cart.Cart          `json:"-" validate:"-"`
	CouponCode      string              `json:"couponCode" validate:"max=64"`
	DeliveryAddress string              `json:"deliveryAddress" validate:"required,max=1000"`
	DeliveryPhone   string              `json:"deliveryPhone" validate:"required,max=32"`
	DeliveryNotes   string              `json:"deliveryNotes" validate:"max=1000"`
	PaymentMethod   order.PaymentMethod `json:"paymentMethod" validate:"required,oneof=cod online"`
	Email           string              `json:"email" validate:"omitempty,email"`
}

// Quote is the priced view of a cart. MRPDiscount is informational and is
// not subtracted from Total.
type Quote struct {
	ItemCount             int
	Subtotal              decimal.Decimal
	MRPTotal              decimal.Decimal
	MRPDiscount           decimal.Decimal
	Coupon                *coupon.Result
	CouponDiscount        decimal.Decimal
	DeliveryFee           decimal.Decimal
	FreeDeliveryRemaining decimal.Decimal
	Total                 decimal.Decimal
}

// Result is a placed order. PaymentURL is set for online payments.
// CouponRejected explains why a submitted code gave no discount.
type Result struct {
	Order          *order.Order
	Quote          Quote
	CouponRejected error
	PaymentURL     string
}

// Config tunes the orchestrator.
type Config struct {
	PaymentTimeout time.Duration
	// Compensate cancels the order and restores the cart when no payment
	// session can be created. Otherwise the order is left pending.
	Compensate bool
}

// Deps are the collaborators of the orchestrator. Carts, Payments and
// Notifier may be nil.
type Deps struct {
	Coupons  coupon.Evaluator
	Policy   delivery.Policy
	Orders   order.Repository
	Carts    cart.Repository
	Payments payment.SessionProvider
	Notifier notification.Enqueuer
	Tracer   trace.Tracer
	Meter    metric.Meter
}

// Service is the checkout orchestrator.
type Service struct {
	coupons  coupon.Evaluator
	policy   delivery.Policy
	orders   order.Repository
	carts    cart.Repository
	payments payment.SessionProvider
	notifier notification.Enqueuer
	tracer   trace.Tracer
	metrics  *metrics
	validate *validator.Validate
	cfg      Config
	now      func() time.Time
}

// NewService creates a checkout Service.
func NewService(deps Deps, cfg Config) (*Service, error) {
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = DefaultPaymentTimeout
	}
	m, err := newMetrics(deps.Meter)
	if err != nil {
		return nil, err
	}
	return &Service{
		coupons:  deps.Coupons,
		policy:   deps.Policy,
		orders:   deps.Orders,
		carts:    deps.Carts,
		payments: deps.Payments,
		notifier: deps.Notifier,
		tracer:   deps.Tracer,
		metrics:  m,
		validate: newValidator(),
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

// Quote prices c with an optional coupon code without writing anything.
func (s *Service) Quote(ctx context.Context, c *cart.Cart, couponCode string) (Quote, error) {
	subtotal := c.Subtotal()
	mrpTotal := c.MRPTotal()

	q := Quote{
		ItemCount:             c.ItemCount(),
		Subtotal:              subtotal,
		MRPTotal:              mrpTotal,
		MRPDiscount:           money.FloorAtZero(mrpTotal.Sub(subtotal)),
		CouponDiscount:        decimal.Zero,
		DeliveryFee:           s.policy.Fee(subtotal),
		FreeDeliveryRemaining: s.policy.Remaining(subtotal),
	}

	if couponCode != "" {
		res, err := s.coupons.Apply(ctx, couponCode, subtotal)
		if err != nil {
			return Quote{}, errors.Wrap(err, "apply coupon")
		}
		q.Coupon = &res
		if res.Valid {
			q.CouponDiscount = res.DiscountAmount
		}
	}

	q.Total = total(q)
	return q, nil
}

func total(q Quote) decimal.Decimal {
	return money.FloorAtZero(q.Subtotal.Sub(q.CouponDiscount).Add(q.DeliveryFee))
}

// withoutCoupon reprices q as if the coupon had been rejected for reason.
func withoutCoupon(q Quote, reason error) Quote {
	rejected := coupon.Result{Code: q.Coupon.Code, DiscountAmount: decimal.Zero, Reason: reason}
	q.Coupon = &rejected
	q.CouponDiscount = decimal.Zero
	q.Total = total(q)
	return q
}

// Checkout validates in, prices the cart, claims a coupon use, persists the
// order, clears the cart and, for online payments, requests a hosted payment
// session. Steps run in that order; a failure before the order write leaves
// the cart untouched and gives the coupon use back.
func (s *Service) Checkout(ctx context.Context, in Input) (_ *Result, rerr error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Checkout")
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	in = normalize(in)
	s.metrics.attempt(ctx, in.PaymentMethod)

	if err := s.validateInput(in); err != nil {
		s.metrics.fail(ctx, "validation")
		return nil, err
	}

	q, err := s.Quote(ctx, in.Cart, in.CouponCode)
	if err != nil {
		s.metrics.fail(ctx, "pricing")
		return nil, errors.Wrap(err, "price cart")
	}

	q, claimed, err := s.claimCoupon(ctx, q)
	if err != nil {
		s.metrics.fail(ctx, "coupon")
		return nil, errors.Wrap(err, "claim coupon")
	}

	o := s.newOrder(in, q)
	if err := s.orders.Create(ctx, o); err != nil {
		if claimed {
			s.release(ctx, zctx.From(ctx), o.CouponCode)
		}
		if errors.Is(err, order.ErrDuplicateIdempotencyKey) {
			s.metrics.fail(ctx, "duplicate")
			return nil, ErrDuplicateSubmission
		}
		s.metrics.fail(ctx, "persistence")
		return nil, &PersistenceError{Err: err}
	}
	span.SetAttributes(attribute.String("order.id", o.ID))

	lg := zctx.From(ctx).With(zap.String("order_id", o.ID))
	snapshot := in.Cart.Snapshot()
	in.Cart.Clear()
	if s.carts != nil {
		if err := s.carts.Clear(ctx, in.UserID); err != nil {
			lg.Warn("Clear stored cart", zap.Error(err))
		}
	}

	res := &Result{Order: o, Quote: q}
	if q.Coupon != nil && !q.Coupon.Valid {
		res.CouponRejected = q.Coupon.Reason
	}
	s.notifyPlaced(ctx, lg, o)
	s.metrics.placed(ctx, o)

	if o.PaymentMethod != order.MethodOnline {
		return res, nil
	}

	sess, err := s.requestSession(ctx, o, in.Email)
	if err != nil {
		s.metrics.fail(ctx, "payment_session")
		lg.Error("Payment session failed", zap.Error(err))
		perr := &PaymentSessionError{OrderID: o.ID, Err: err}
		if s.cfg.Compensate {
			perr.Cancelled = s.compensate(ctx, lg, in, o, snapshot, claimed)
		}
		return nil, perr
	}

	res.PaymentURL = sess.URL
	updated, err := s.orders.Update(ctx, o.ID, o.Version, order.Patch{PaymentSessionID: &sess.ID})
	if err != nil {
		lg.Warn("Store payment session id", zap.Error(err))
		o.PaymentSessionID = sess.ID
	} else {
		res.Order = updated
	}

	return res, nil
}

func (s *Service) newOrder(in Input, q Quote) *order.Order {
	now := s.now()

	status := order.StatusConfirmed
	if in.PaymentMethod == order.MethodOnline {
		status = order.StatusPending
	}

	var couponCode string
	if q.Coupon != nil && q.Coupon.Valid {
		couponCode = q.Coupon.Code
	}

	return &order.Order{
		ID:               uuid.New().String(),
		UserID:           in.UserID,
		IdempotencyKey:   in.IdempotencyKey,
		Lines:            order.LinesFromCart(in.Cart.Snapshot()),
		Subtotal:         q.Subtotal,
		MRPTotal:         q.MRPTotal,
		MRPDiscount:      q.MRPDiscount,
		CouponCode:       couponCode,
		CouponDiscount:   q.CouponDiscount,
		DeliveryFee:      q.DeliveryFee,
		Total:            q.Total,
		DeliveryAddress:  in.DeliveryAddress,
		DeliveryPhone:    in.DeliveryPhone,
		DeliveryNotes:    in.DeliveryNotes,
		CustomerEmail:    in.Email,
		PaymentMethod:    in.PaymentMethod,
		PaymentStatus:    order.PaymentPending,
		Status:           status,
		CreatedAt:        now,
		UpdatedAt:        now,
		ExpectedDelivery: s.policy.ExpectedDelivery(now),
	}
}

func (s *Service) requestSession(ctx context.Context, o *order.Order, email string) (*payment.Session, error) {
	if s.payments == nil {
		return nil, payment.ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "checkout.PaymentSession")
	defer span.End()

	items := make([]payment.Item, len(o.Lines))
	for i, l := range o.Lines {
		items[i] = payment.Item{Name: l.Name, Price: l.UnitPrice, Quantity: l.Quantity}
	}

	sess, err := s.payments.CreateSession(ctx, payment.SessionRequest{
		OrderID:         o.ID,
		Items:           items,
		DeliveryFee:     o.DeliveryFee,
		CouponDiscount:  o.CouponDiscount,
		Total:           o.Total,
		DeliveryAddress: o.DeliveryAddress,
		DeliveryPhone:   o.DeliveryPhone,
		CustomerEmail:   email,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return sess, nil
}

// compensate cancels an order whose payment session could not be created and
// puts its lines back into the cart. It reports whether the order was
// cancelled.
func (s *Service) compensate(ctx context.Context, lg *zap.Logger, in Input, o *order.Order, snapshot []cart.Line, claimed bool) bool {
	cancelled := order.StatusCancelled
	failed := order.PaymentFailed
	updated, err := s.orders.Update(ctx, o.ID, o.Version, order.Patch{
		Status:        &cancelled,
		PaymentStatus: &failed,
	})
	if err != nil {
		lg.Error("Cancel order after payment failure", zap.Error(err))
	} else {
		*o = *updated
		if claimed {
			s.release(ctx, lg, o.CouponCode)
		}
	}

	in.Cart.Restore(snapshot)
	if s.carts != nil {
		if err := s.carts.Save(ctx, in.UserID, in.Cart); err != nil {
			lg.Error("Restore stored cart", zap.Error(err))
		}
	}
	return err == nil
}

// claimCoupon takes one use of the quoted coupon before the order is written.
// An exhausted coupon reprices q without it. claimed reports whether a use
// was taken and must be given back if the order is not kept.
func (s *Service) claimCoupon(ctx context.Context, q Quote) (_ Quote, claimed bool, _ error) {
	if q.Coupon == nil || !q.Coupon.Valid {
		return q, false, nil
	}
	r, ok := s.coupons.(coupon.Redeemer)
	if !ok {
		return q, false, nil
	}
	err := r.Redeem(ctx, q.Coupon.Code)
	switch {
	case err == nil:
		return q, true, nil
	case errors.Is(err, coupon.ErrCouponUsageLimitReached):
		return withoutCoupon(q, coupon.ErrCouponUsageLimitReached), false, nil
	default:
		return Quote{}, false, err
	}
}

func (s *Service) release(ctx context.Context, lg *zap.Logger, code string) {
	r, ok := s.coupons.(coupon.Redeemer)
	if !ok {
		return
	}
	if err := r.Release(context.WithoutCancel(ctx), code); err != nil {
		lg.Warn("Release coupon", zap.String("coupon", code), zap.Error(err))
	}
}

func (s *Service) notifyPlaced(ctx context.Context, lg *zap.Logger, o *order.Order) {
	if s.notifier == nil {
		return
	}
	n := notification.Notification{
		Type:   notification.TypeOrderPlaced,
		UserID: o.UserID,
		Email:  o.CustomerEmail,
		Phone:  o.DeliveryPhone,
		Data: map[string]string{
			"order_id":          o.ID,
			"total":             o.Total.StringFixed(2),
			"payment_method":    string(o.PaymentMethod),
			"expected_delivery": o.ExpectedDelivery.Format(time.DateOnly),
		},
		Channels: notification.DefaultChannels(o.CustomerEmail, o.DeliveryPhone),
	}
	if err := s.notifier.Enqueue(ctx, n); err != nil {
		lg.Warn("Enqueue order placed notification", zap.Error(err))
	}
}
