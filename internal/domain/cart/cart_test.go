package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func item(ref, price, mrp string) Item {
	it := Item{ProductRef: ref, Name: "Medicine " + ref, UnitPrice: d(price)}
	if mrp != "" {
		it.MRP = decimal.NewNullDecimal(d(mrp))
	}
	return it
}

func TestAddItem(t *testing.T) {
	t.Run("new line", func(t *testing.T) {
		c := New()
		require.NoError(t, c.AddItem(item("m1", "30", "35"), 2))

		lines := c.Lines()
		require.Len(t, lines, 1)
		assert.Equal(t, "m1", lines[0].ID())
		assert.Equal(t, 2, lines[0].Quantity)
		assert.True(t, d("35").Equal(lines[0].MRP))
	})

	t.Run("existing line increments", func(t *testing.T) {
		c := New()
		require.NoError(t, c.AddItem(item("m1", "30", "35"), 2))
		require.NoError(t, c.AddItem(item("m1", "30", "35"), 3))

		lines := c.Lines()
		require.Len(t, lines, 1)
		assert.Equal(t, 5, lines[0].Quantity)
	})

	t.Run("quantity below one adds a unit", func(t *testing.T) {
		c := New()
		require.NoError(t, c.AddItem(item("m1", "30", ""), 0))
		assert.Equal(t, 1, c.ItemCount())
	})

	t.Run("missing mrp defaults to unit price", func(t *testing.T) {
		c := New()
		require.NoError(t, c.AddItem(item("m1", "30", ""), 1))
		assert.True(t, c.Savings().IsZero())
	})

	t.Run("mrp below price rejected", func(t *testing.T) {
		c := New()
		err := c.AddItem(item("m1", "30", "20"), 1)
		require.ErrorIs(t, err, ErrMRPBelowPrice)
		assert.True(t, c.IsEmpty())
	})

	t.Run("negative price rejected", func(t *testing.T) {
		c := New()
		require.ErrorIs(t, c.AddItem(item("m1", "-1", ""), 1), ErrNegativePrice)
	})

	t.Run("empty ref rejected", func(t *testing.T) {
		c := New()
		require.ErrorIs(t, c.AddItem(item("", "1", ""), 1), ErrEmptyProductRef)
	})

	t.Run("insertion order kept", func(t *testing.T) {
		c := New()
		require.NoError(t, c.AddItem(item("b", "1", ""), 1))
		require.NoError(t, c.AddItem(item("a", "1", ""), 1))
		require.NoError(t, c.AddItem(item("c", "1", ""), 1))

		var refs []string
		for _, l := range c.Lines() {
			refs = append(refs, l.ID())
		}
		assert.Equal(t, []string{"b", "a", "c"}, refs)
	})
}

func TestSetQuantity(t *testing.T) {
	c := New()
	require.NoError(t, c.AddItem(item("m1", "30", "35"), 2))
	require.NoError(t, c.AddItem(item("m2", "10", ""), 1))

	require.NoError(t, c.SetQuantity("m1", 7))
	l, ok := c.Line("m1")
	require.True(t, ok)
	assert.Equal(t, 7, l.Quantity)

	require.NoError(t, c.SetQuantity("m1", 0))
	_, ok = c.Line("m1")
	assert.False(t, ok, "zero quantity removes the line")

	require.NoError(t, c.SetQuantity("m2", -3))
	assert.True(t, c.IsEmpty())

	assert.ErrorIs(t, c.SetQuantity("missing", 1), ErrLineNotFound)
}

func TestRemoveLine(t *testing.T) {
	c := New()
	require.NoError(t, c.AddItem(item("m1", "30", "35"), 9))

	require.NoError(t, c.RemoveLine("m1"))
	assert.True(t, c.IsEmpty())
	assert.ErrorIs(t, c.RemoveLine("m1"), ErrLineNotFound)
}

func TestDerivedTotals(t *testing.T) {
	c := New()
	require.NoError(t, c.AddItem(item("m1", "30", "35"), 2))

	assert.True(t, d("60").Equal(c.Subtotal()))
	assert.True(t, d("70").Equal(c.MRPTotal()))
	assert.True(t, d("10").Equal(c.Savings()))

	// Derived reads are stable without mutation.
	assert.True(t, c.Subtotal().Equal(c.Subtotal()))

	require.NoError(t, c.AddItem(item("m2", "12.50", "15"), 3))
	assert.True(t, d("97.5").Equal(c.Subtotal()))
	assert.True(t, d("115").Equal(c.MRPTotal()))
	assert.True(t, d("17.5").Equal(c.Savings()))
	assert.Equal(t, 5, c.ItemCount())
}

func TestSavingsNeverNegative(t *testing.T) {
	c := New()
	ops := []func() error{
		func() error { return c.AddItem(item("a", "10", "12"), 3) },
		func() error { return c.AddItem(item("b", "5", ""), 1) },
		func() error { return c.SetQuantity("a", 1) },
		func() error { return c.AddItem(item("c", "99.99", "150"), 2) },
		func() error { return c.RemoveLine("b") },
		func() error { return c.SetQuantity("c", 0) },
		func() error { return c.AddItem(item("a", "10", "12"), 4) },
	}

	for i, op := range ops {
		require.NoError(t, op(), "op %d", i)
		assert.False(t, c.Savings().IsNegative(), "op %d", i)
		assert.True(t, c.MRPTotal().GreaterThanOrEqual(c.Subtotal()), "op %d", i)
	}
}

func TestClearAndRestore(t *testing.T) {
	c := New()
	require.NoError(t, c.AddItem(item("m1", "30", "35"), 2))
	snapshot := c.Lines()

	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.True(t, c.Subtotal().IsZero())

	c.Restore(snapshot)
	assert.True(t, d("60").Equal(c.Subtotal()))
}

func TestLinesReturnsCopy(t *testing.T) {
	c := New()
	require.NoError(t, c.AddItem(item("m1", "30", "35"), 2))

	lines := c.Lines()
	lines[0].Quantity = 100

	l, _ := c.Line("m1")
	assert.Equal(t, 2, l.Quantity)
}

func TestFromLines(t *testing.T) {
	c := FromLines([]Line{
		{ProductRef: "a", UnitPrice: d("1"), MRP: d("1"), Quantity: 2},
		{ProductRef: "b", UnitPrice: d("1"), MRP: d("1"), Quantity: 0},
		{ProductRef: "a", UnitPrice: d("1"), MRP: d("1"), Quantity: 1},
	})

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
}

func TestRequiresPrescription(t *testing.T) {
	c := New()
	require.NoError(t, c.AddItem(item("otc", "5", ""), 1))
	assert.False(t, c.RequiresPrescription())

	rx := item("rx", "50", "60")
	rx.RequiresPrescription = true
	require.NoError(t, c.AddItem(rx, 1))
	assert.True(t, c.RequiresPrescription())
}
