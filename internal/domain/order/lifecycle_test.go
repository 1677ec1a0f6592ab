package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusProcessing, false},
		{StatusConfirmed, StatusProcessing, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusPending, false},
		{StatusProcessing, StatusShipped, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusProcessing, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusConfirmed, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, from := range []Status{StatusDelivered, StatusCancelled} {
		assert.True(t, from.IsTerminal())
		for _, to := range append(Progression, StatusCancelled) {
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, StatusShipped.IsTerminal())
}

func TestCanTransitionPayment(t *testing.T) {
	assert.True(t, CanTransitionPayment(PaymentPending, PaymentCompleted))
	assert.True(t, CanTransitionPayment(PaymentPending, PaymentFailed))
	assert.True(t, CanTransitionPayment(PaymentFailed, PaymentPending))
	assert.True(t, CanTransitionPayment(PaymentCompleted, PaymentRefunded))
	assert.False(t, CanTransitionPayment(PaymentRefunded, PaymentPending))
	assert.False(t, CanTransitionPayment(PaymentPending, PaymentRefunded))
}

func TestAuthorize(t *testing.T) {
	require.NoError(t, Authorize(ActorAdmin, StatusProcessing, StatusShipped))
	require.NoError(t, Authorize(ActorPaymentProvider, StatusPending, StatusConfirmed))
	assert.ErrorIs(t, Authorize(ActorPaymentProvider, StatusConfirmed, StatusProcessing), ErrForbidden)
	assert.ErrorIs(t, Authorize(ActorPaymentProvider, StatusPending, StatusCancelled), ErrForbidden)
	assert.ErrorIs(t, Authorize(Actor("customer"), StatusPending, StatusCancelled), ErrForbidden)

	require.NoError(t, AuthorizePayment(ActorPaymentProvider, PaymentPending, PaymentCompleted))
	require.NoError(t, AuthorizePayment(ActorPaymentProvider, PaymentPending, PaymentFailed))
	assert.ErrorIs(t, AuthorizePayment(ActorPaymentProvider, PaymentCompleted, PaymentRefunded), ErrForbidden)
	require.NoError(t, AuthorizePayment(ActorAdmin, PaymentCompleted, PaymentRefunded))
}

func TestTransitionError(t *testing.T) {
	var err error = &TransitionError{Field: "status", From: "delivered", To: "processing"}
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, "cannot change status from delivered to processing", err.Error())
}

func states(tr Tracking) []StepState {
	out := make([]StepState, len(tr.Steps))
	for i, s := range tr.Steps {
		out[i] = s.State
	}
	return out
}

func TestTrack(t *testing.T) {
	const (
		c = StepCompleted
		x = StepCurrent
		u = StepUpcoming
	)
	tests := []struct {
		status Status
		want   []StepState
	}{
		{StatusPending, []StepState{x, u, u, u, u}},
		{StatusConfirmed, []StepState{c, x, u, u, u}},
		{StatusProcessing, []StepState{c, c, x, u, u}},
		{StatusShipped, []StepState{c, c, c, x, u}},
		{StatusDelivered, []StepState{c, c, c, c, x}},
		{Status("lost"), []StepState{u, u, u, u, u}},
	}
	for _, tt := range tests {
		tr := Track(tt.status)
		assert.False(t, tr.Cancelled)
		assert.Equal(t, tt.want, states(tr), "status %s", tt.status)
	}

	cancelled := Track(StatusCancelled)
	assert.True(t, cancelled.Cancelled)
	assert.Empty(t, cancelled.Steps)
}
