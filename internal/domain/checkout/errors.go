package checkout

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// ErrDuplicateSubmission is returned when an idempotency key is replayed.
var ErrDuplicateSubmission = errors.New("checkout already submitted")

// FieldError is one rejected input field.
type FieldError struct {
	Field  string
	Reason string
}

// ValidationError lists the input problems that stopped a checkout before
// anything was written.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Reason
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// PersistenceError means the order row was not written. The cart is intact.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist order: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// PaymentSessionError means the order was persisted but no payment session
// could be created for it. Cancelled is set when the order was cancelled and
// the cart restored afterwards.
type PaymentSessionError struct {
	OrderID   string
	Cancelled bool
	Err       error
}

func (e *PaymentSessionError) Error() string {
	return fmt.Sprintf("payment session for order %s: %v", e.OrderID, e.Err)
}

func (e *PaymentSessionError) Unwrap() error { return e.Err }
