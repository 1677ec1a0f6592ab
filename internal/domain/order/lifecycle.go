package order

import (
	"fmt"
	"slices"

	"github.com/go-faster/errors"
)

var (
	// ErrInvalidTransition is matched by every TransitionError.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrForbidden is returned when an actor may not perform a transition.
	ErrForbidden = errors.New("actor not allowed to perform transition")
	// ErrUnknownStatus is returned for status values outside the lifecycle.
	ErrUnknownStatus = errors.New("unknown status")
)

// Progression is the ordered list of non-cancelled statuses.
var Progression = []Status{
	StatusPending,
	StatusConfirmed,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
}

var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentCompleted, PaymentFailed},
	PaymentFailed:    {PaymentPending},
	PaymentCompleted: {PaymentRefunded},
	PaymentRefunded:  {},
}

// Valid reports whether s is a lifecycle status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

// CanTransition reports whether from → to is a lifecycle edge.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// CanTransitionPayment reports whether from → to is a payment status edge.
func CanTransitionPayment(from, to PaymentStatus) bool {
	return slices.Contains(paymentTransitions[from], to)
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	Field string
	From  string
	To    string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change %s from %s to %s", e.Field, e.From, e.To)
}

// Is matches ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Actor is who requests a transition.
type Actor string

const (
	ActorAdmin           Actor = "admin"
	ActorPaymentProvider Actor = "payment_provider"
)

// Authorize checks that actor may move an order from → to.
func Authorize(actor Actor, from, to Status) error {
	switch actor {
	case ActorAdmin:
		return nil
	case ActorPaymentProvider:
		if from == StatusPending && to == StatusConfirmed {
			return nil
		}
	}
	return errors.Wrapf(ErrForbidden, "%s: %s -> %s", actor, from, to)
}

// AuthorizePayment checks that actor may move a payment from → to.
func AuthorizePayment(actor Actor, from, to PaymentStatus) error {
	switch actor {
	case ActorAdmin:
		return nil
	case ActorPaymentProvider:
		if from == PaymentPending && (to == PaymentCompleted || to == PaymentFailed) {
			return nil
		}
	}
	return errors.Wrapf(ErrForbidden, "%s: payment %s -> %s", actor, from, to)
}

// StepState is how a tracking step is rendered.
type StepState string

const (
	StepCompleted StepState = "completed"
	StepCurrent   StepState = "current"
	StepUpcoming  StepState = "upcoming"
)

// Step is one entry in the tracking view.
type Step struct {
	Status Status
	State  StepState
}

// Tracking is the order-tracking rendering of a status. A cancelled order
// has no steps.
type Tracking struct {
	Cancelled bool
	Steps     []Step
}

// Track renders the tracking steps for s.
func Track(s Status) Tracking {
	if s == StatusCancelled {
		return Tracking{Cancelled: true}
	}

	current := slices.Index(Progression, s)
	steps := make([]Step, len(Progression))
	for i, st := range Progression {
		state := StepUpcoming
		switch {
		case current < 0:
		case i < current:
			state = StepCompleted
		case i == current:
			state = StepCurrent
		}
		steps[i] = Step{Status: st, State: state}
	}
	return Tracking{Steps: steps}
}
