package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/medcart/internal/domain/notification"
)

// TransitionRequest asks to move an order to a new status. A zero
// ExpectedVersion means the version read by the service.
type TransitionRequest struct {
	OrderID         string
	To              Status
	ExpectedVersion int
	Actor           Actor
	TrackingNumber  string
}

// PaymentStatusRequest asks to move an order's payment to a new status.
type PaymentStatusRequest struct {
	OrderID         string
	To              PaymentStatus
	ExpectedVersion int
	Actor           Actor
}

// Service implements the order reads and the back-office transitions.
type Service struct {
	orders      Repository
	notifier    notification.Enqueuer
	transitions metric.Int64Counter
}

// NewService creates an order Service. Transition counts are recorded on meter.
func NewService(orders Repository, notifier notification.Enqueuer, meter metric.Meter) (*Service, error) {
	transitions, err := meter.Int64Counter("order.transitions",
		metric.WithDescription("Order status and payment status changes"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "order.transitions")
	}
	return &Service{
		orders:      orders,
		notifier:    notifier,
		transitions: transitions,
	}, nil
}

// Get returns an order by id.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.Get(ctx, id)
}

// ListByUser returns the orders placed by userID, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// List returns orders matching f, newest first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, errors.Wrapf(ErrUnknownStatus, "%q", f.Status)
	}
	if f.PaymentStatus != "" && !f.PaymentStatus.Valid() {
		return nil, errors.Wrapf(ErrUnknownStatus, "payment %q", f.PaymentStatus)
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.orders.List(ctx, f)
}

// Transition validates and applies a status change in one versioned update,
// then enqueues an order_status notification.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (*Order, error) {
	if !req.To.Valid() {
		return nil, errors.Wrapf(ErrUnknownStatus, "%q", req.To)
	}

	o, err := s.orders.Get(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	version, err := expectVersion(o, req.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	if !CanTransition(o.Status, req.To) {
		return nil, &TransitionError{Field: "status", From: string(o.Status), To: string(req.To)}
	}
	if err := Authorize(req.Actor, o.Status, req.To); err != nil {
		return nil, err
	}

	patch := Patch{Status: &req.To}
	if req.TrackingNumber != "" {
		patch.TrackingNumber = &req.TrackingNumber
	}

	updated, err := s.orders.Update(ctx, o.ID, version, patch)
	if err != nil {
		return nil, err
	}

	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("field", "status"),
		attribute.String("to", string(req.To)),
	))
	s.notifyStatus(ctx, updated)

	return updated, nil
}

// SetPaymentStatus validates and applies a payment status change.
func (s *Service) SetPaymentStatus(ctx context.Context, req PaymentStatusRequest) (*Order, error) {
	if !req.To.Valid() {
		return nil, errors.Wrapf(ErrUnknownStatus, "payment %q", req.To)
	}

	o, err := s.orders.Get(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	version, err := expectVersion(o, req.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	if !CanTransitionPayment(o.PaymentStatus, req.To) {
		return nil, &TransitionError{Field: "payment status", From: string(o.PaymentStatus), To: string(req.To)}
	}
	if err := AuthorizePayment(req.Actor, o.PaymentStatus, req.To); err != nil {
		return nil, err
	}

	updated, err := s.orders.Update(ctx, o.ID, version, Patch{PaymentStatus: &req.To})
	if err != nil {
		return nil, err
	}

	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("field", "payment_status"),
		attribute.String("to", string(req.To)),
	))

	return updated, nil
}

func expectVersion(o *Order, expected int) (int, error) {
	if expected == 0 {
		return o.Version, nil
	}
	if expected != o.Version {
		return 0, ErrVersionConflict
	}
	return expected, nil
}

func (s *Service) notifyStatus(ctx context.Context, o *Order) {
	if s.notifier == nil {
		return
	}
	n := notification.Notification{
		Type:   notification.TypeOrderStatus,
		UserID: o.UserID,
		Email:  o.CustomerEmail,
		Phone:  o.DeliveryPhone,
		Data: map[string]string{
			"order_id": o.ID,
			"status":   string(o.Status),
		},
		Channels: notification.DefaultChannels(o.CustomerEmail, o.DeliveryPhone),
	}
	if o.TrackingNumber != "" {
		n.Data["tracking_number"] = o.TrackingNumber
	}
	if err := s.notifier.Enqueue(ctx, n); err != nil {
		zctx.From(ctx).Warn("Enqueue order status notification",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}
