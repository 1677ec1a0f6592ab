package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/medcart/internal/domain/coupon"
)

func TestParseRules(t *testing.T) {
	input := strings.Join([]string{
		"code,rate,description,max_uses,max_discount,min_subtotal,valid_from,valid_until",
		"# seasonal",
		"save10,0.10,10% off",
		"MONSOON25, 25%, Monsoon sale, 100, 150, 499, 2025-06-01, 2025-09-30",
		"",
		"broken,abc",
		"toomuch,1.5",
		",0.1",
		"late,0.2,,,,,2025-09-30,2025-06-01",
	}, "\n")

	rules, rejects, err := parseRules(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Len(t, rejects, 4)

	assert.Equal(t, "SAVE10", rules[0].Code)
	assert.True(t, decimal.RequireFromString("0.10").Equal(rules[0].Rate))
	assert.Equal(t, "10% off", rules[0].Description)
	assert.False(t, rules[0].MaxDiscount.Valid)
	assert.Nil(t, rules[0].ValidFrom)

	m := rules[1]
	assert.Equal(t, "MONSOON25", m.Code)
	assert.True(t, decimal.RequireFromString("0.25").Equal(m.Rate))
	assert.Equal(t, 100, m.MaxUses)
	assert.True(t, m.MaxDiscount.Valid)
	assert.True(t, decimal.NewFromInt(150).Equal(m.MaxDiscount.Decimal))
	assert.True(t, decimal.NewFromInt(499).Equal(m.MinSubtotal.Decimal))
	require.NotNil(t, m.ValidUntil)
	assert.Equal(t, "2025-09-30", m.ValidUntil.Format("2006-01-02"))

	var rowErr *rowError
	require.ErrorAs(t, rejects[0], &rowErr)
	assert.Equal(t, 6, rowErr.line)
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "0.15", want: "0.15"},
		{in: "15%", want: "0.15"},
		{in: "100%", want: "1"},
		{in: "0", wantErr: true},
		{in: "-5%", wantErr: true},
		{in: "101%", wantErr: true},
		{in: "ten", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseRate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestMergeRules(t *testing.T) {
	r := func(code, rate string) coupon.Rule {
		return coupon.Rule{Code: code, Rate: decimal.RequireFromString(rate)}
	}
	out := mergeRules([][]coupon.Rule{
		{r("A", "0.1"), r("B", "0.2")},
		{r("C", "0.3"), r("A", "0.5")},
	})

	require.Len(t, out, 3)
	assert.Equal(t, "A", out[0].Code)
	assert.True(t, decimal.RequireFromString("0.5").Equal(out[0].Rate), "later file wins")
	assert.Equal(t, "B", out[1].Code)
	assert.Equal(t, "C", out[2].Code)
}

func writeGz(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
}

func TestParseFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.csv.gz")
	second := filepath.Join(dir, "b.csv.gz")
	writeGz(t, first, "SAVE10,0.10\nFLAT5,5%\n")
	writeGz(t, second, "save10,0.12\nNEW20,0.2\n")

	rules, err := parseFiles(context.Background(), []string{first, second})
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.True(t, decimal.RequireFromString("0.12").Equal(rules[0].Rate))

	_, err = parseFiles(context.Background(), []string{filepath.Join(dir, "missing.csv.gz")})
	assert.Error(t, err)
}

type memStore struct {
	rules   map[string]coupon.Rule
	lookups int
}

func (m *memStore) ListCodes(context.Context) ([]string, error) {
	var codes []string
	for c := range m.rules {
		codes = append(codes, c)
	}
	return codes, nil
}

func (m *memStore) FindByCode(_ context.Context, code string) (*coupon.Rule, error) {
	m.lookups++
	r, ok := m.rules[code]
	if !ok {
		return nil, coupon.ErrInvalidCoupon
	}
	return &r, nil
}

func (m *memStore) Upsert(_ context.Context, rule coupon.Rule) error {
	m.rules[rule.Code] = rule
	return nil
}

func TestWriteCoupons(t *testing.T) {
	existing := coupon.Rule{Code: "SAVE10", Rate: decimal.RequireFromString("0.10")}
	incoming := []coupon.Rule{
		{Code: "SAVE10", Rate: decimal.RequireFromString("0.50")},
		{Code: "NEW20", Rate: decimal.RequireFromString("0.20")},
	}

	t.Run("keeps existing codes", func(t *testing.T) {
		store := &memStore{rules: map[string]coupon.Rule{"SAVE10": existing}}
		require.NoError(t, writeCoupons(context.Background(), store, incoming, false))

		assert.True(t, decimal.RequireFromString("0.10").Equal(store.rules["SAVE10"].Rate))
		assert.Contains(t, store.rules, "NEW20")
		assert.LessOrEqual(t, store.lookups, 2)
	})

	t.Run("update overwrites", func(t *testing.T) {
		store := &memStore{rules: map[string]coupon.Rule{"SAVE10": existing}}
		require.NoError(t, writeCoupons(context.Background(), store, incoming, true))

		assert.True(t, decimal.RequireFromString("0.50").Equal(store.rules["SAVE10"].Rate))
		assert.Zero(t, store.lookups)
	})
}
