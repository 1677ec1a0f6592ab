// Package invoice declares the invoice-rendering collaborator.
package invoice

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when the renderer knows no such reference.
var ErrNotFound = errors.New("invoice reference not found")

// Type is the kind of document being invoiced.
type Type string

const (
	TypeOrder       Type = "order"
	TypeAppointment Type = "appointment"
	TypeLabBooking  Type = "lab_booking"
)

// Renderer returns the HTML invoice for a reference. Rendering the same
// reference twice returns the stored invoice.
type Renderer interface {
	Render(ctx context.Context, typ Type, referenceID string) (string, error)
}
