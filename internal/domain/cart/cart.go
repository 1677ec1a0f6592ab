// Package cart implements the per-session cart aggregate. Derived totals are
// recomputed from the current lines on every read.
package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/medcart/internal/domain/money"
)

var (
	// ErrLineNotFound is returned when a line id does not match any line.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrMRPBelowPrice is returned when an item's list price is below its
	// selling price.
	ErrMRPBelowPrice = errors.New("mrp below unit price")
	// ErrNegativePrice is returned for items with a negative selling price.
	ErrNegativePrice = errors.New("unit price must not be negative")
	// ErrEmptyProductRef is returned for items without a catalog reference.
	ErrEmptyProductRef = errors.New("product reference required")
)

// Item is the catalog data needed to put a product into the cart.
type Item struct {
	ProductRef           string
	Name                 string
	UnitPrice            decimal.Decimal
	MRP                  decimal.NullDecimal
	RequiresPrescription bool
}

// Line is one product/quantity pair. The product ref doubles as the line id.
type Line struct {
	ProductRef           string
	Name                 string
	UnitPrice            decimal.Decimal
	MRP                  decimal.Decimal
	Quantity             int
	RequiresPrescription bool
}

// ID returns the line identifier.
func (l Line) ID() string { return l.ProductRef }

// Total returns UnitPrice × Quantity.
func (l Line) Total() decimal.Decimal { return money.LineTotal(l.UnitPrice, l.Quantity) }

// MRPTotal returns MRP × Quantity.
func (l Line) MRPTotal() decimal.Decimal { return money.LineTotal(l.MRP, l.Quantity) }

// Cart is an ordered collection of lines owned by one user session. It is not
// safe for concurrent use.
type Cart struct {
	lines []Line
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// FromLines hydrates a cart from persisted lines. Lines with a quantity below
// one are dropped and duplicate refs are merged.
func FromLines(lines []Line) *Cart {
	c := New()
	for _, l := range lines {
		if l.Quantity < 1 {
			continue
		}
		if i := c.index(l.ProductRef); i >= 0 {
			c.lines[i].Quantity += l.Quantity
			continue
		}
		c.lines = append(c.lines, l)
	}
	return c
}

// AddItem increments the quantity of an existing line for the item or appends
// a new line. A quantity below one adds a single unit. Stock limits are not
// enforced here.
func (c *Cart) AddItem(item Item, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}
	if i := c.index(item.ProductRef); i >= 0 {
		c.lines[i].Quantity += quantity
		return nil
	}

	line, err := newLine(item, quantity)
	if err != nil {
		return err
	}
	c.lines = append(c.lines, line)
	return nil
}

func newLine(item Item, quantity int) (Line, error) {
	if item.ProductRef == "" {
		return Line{}, ErrEmptyProductRef
	}
	if item.UnitPrice.IsNegative() {
		return Line{}, ErrNegativePrice
	}

	mrp := item.UnitPrice
	if item.MRP.Valid {
		if item.MRP.Decimal.LessThan(item.UnitPrice) {
			return Line{}, errors.Wrapf(ErrMRPBelowPrice, "product %s", item.ProductRef)
		}
		mrp = item.MRP.Decimal
	}

	return Line{
		ProductRef:           item.ProductRef,
		Name:                 item.Name,
		UnitPrice:            item.UnitPrice,
		MRP:                  mrp,
		Quantity:             quantity,
		RequiresPrescription: item.RequiresPrescription,
	}, nil
}

// SetQuantity sets a line's quantity directly. A quantity below one removes
// the line.
func (c *Cart) SetQuantity(lineID string, quantity int) error {
	i := c.index(lineID)
	if i < 0 {
		return ErrLineNotFound
	}
	if quantity < 1 {
		c.removeAt(i)
		return nil
	}
	c.lines[i].Quantity = quantity
	return nil
}

// RemoveLine removes a line regardless of its quantity.
func (c *Cart) RemoveLine(lineID string) error {
	i := c.index(lineID)
	if i < 0 {
		return ErrLineNotFound
	}
	c.removeAt(i)
	return nil
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
}

// Restore replaces the cart contents with the given lines.
func (c *Cart) Restore(lines []Line) {
	c.lines = FromLines(lines).lines
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Lines returns a copy of the lines in display order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Snapshot returns a deep copy of the lines for order placement.
func (c *Cart) Snapshot() []Line {
	return c.Lines()
}

// Line returns the line with the given id.
func (c *Cart) Line(lineID string) (Line, bool) {
	i := c.index(lineID)
	if i < 0 {
		return Line{}, false
	}
	return c.lines[i], true
}

// Subtotal returns Σ(unitPrice × quantity).
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// MRPTotal returns Σ(mrp × quantity).
func (c *Cart) MRPTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.lines {
		sum = sum.Add(l.MRPTotal())
	}
	return sum
}

// Savings returns MRPTotal − Subtotal.
func (c *Cart) Savings() decimal.Decimal {
	return c.MRPTotal().Sub(c.Subtotal())
}

// ItemCount returns the total number of units across all lines.
func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// RequiresPrescription reports whether any line needs a prescription.
func (c *Cart) RequiresPrescription() bool {
	for _, l := range c.lines {
		if l.RequiresPrescription {
			return true
		}
	}
	return false
}

func (c *Cart) index(lineID string) int {
	for i := range c.lines {
		if c.lines[i].ProductRef == lineID {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}

// Repository persists carts keyed by user so they survive sessions.
type Repository interface {
	Load(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, userID string, c *Cart) error
	Clear(ctx context.Context, userID string) error
}
