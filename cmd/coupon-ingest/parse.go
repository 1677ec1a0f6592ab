package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/medcart/internal/domain/coupon"
)

// Column order of a coupon row. Trailing columns are optional.
const (
	colCode = iota
	colRate
	colDescription
	colMaxUses
	colMaxDiscount
	colMinSubtotal
	colValidFrom
	colValidUntil
	numCols
)

var hundred = decimal.NewFromInt(100)

// rowError locates a rejected row.
type rowError struct {
	line int
	err  error
}

func (e *rowError) Error() string {
	return "line " + strconv.Itoa(e.line) + ": " + e.err.Error()
}

func (e *rowError) Unwrap() error { return e.err }

// readGzFile opens a gzip-compressed CSV file and parses its rules.
func readGzFile(ctx context.Context, path string) ([]coupon.Rule, []error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	return parseRules(ctx, gz)
}

// parseRules reads coupon rows from r. Blank lines, comments and a header row
// are skipped. Malformed rows are returned as row errors and do not stop the
// read.
func parseRules(ctx context.Context, r io.Reader) ([]coupon.Rule, []error, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var (
		rules   []coupon.Rule
		rejects []error
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rules, rejects, nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				rejects = append(rejects, &rowError{line: perr.Line, err: perr.Err})
				continue
			}
			return nil, nil, errors.Wrap(err, "read csv")
		}
		if len(rec) == 0 || (len(rules) == 0 && len(rejects) == 0 && strings.EqualFold(strings.TrimSpace(rec[colCode]), "code")) {
			continue
		}

		rule, err := parseRule(rec)
		if err != nil {
			line, _ := cr.FieldPos(0)
			rejects = append(rejects, &rowError{line: line, err: err})
			continue
		}
		rules = append(rules, rule)
	}
}

func parseRule(rec []string) (coupon.Rule, error) {
	if len(rec) < colRate+1 {
		return coupon.Rule{}, errors.New("code and rate are required")
	}
	if len(rec) > numCols {
		return coupon.Rule{}, errors.Errorf("expected at most %d columns, got %d", numCols, len(rec))
	}
	field := func(i int) string {
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	rule := coupon.Rule{
		Code:        coupon.Normalize(field(colCode)),
		Description: field(colDescription),
	}
	if rule.Code == "" {
		return coupon.Rule{}, errors.New("empty code")
	}
	if len(rule.Code) > 64 {
		return coupon.Rule{}, errors.Errorf("code %q longer than 64 characters", rule.Code)
	}

	rate, err := parseRate(field(colRate))
	if err != nil {
		return coupon.Rule{}, err
	}
	rule.Rate = rate

	if v := field(colMaxUses); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return coupon.Rule{}, errors.Errorf("invalid max uses %q", v)
		}
		rule.MaxUses = n
	}
	if rule.MaxDiscount, err = parseAmount("max discount", field(colMaxDiscount)); err != nil {
		return coupon.Rule{}, err
	}
	if rule.MinSubtotal, err = parseAmount("min subtotal", field(colMinSubtotal)); err != nil {
		return coupon.Rule{}, err
	}
	if rule.ValidFrom, err = parseDate("valid from", field(colValidFrom)); err != nil {
		return coupon.Rule{}, err
	}
	if rule.ValidUntil, err = parseDate("valid until", field(colValidUntil)); err != nil {
		return coupon.Rule{}, err
	}
	if rule.ValidFrom != nil && rule.ValidUntil != nil && rule.ValidUntil.Before(*rule.ValidFrom) {
		return coupon.Rule{}, errors.New("valid until before valid from")
	}
	return rule, nil
}

// parseRate accepts a fraction ("0.15") or a percentage ("15%").
func parseRate(v string) (decimal.Decimal, error) {
	pct, isPct := strings.CutSuffix(v, "%")
	rate, err := decimal.NewFromString(strings.TrimSpace(pct))
	if err != nil {
		return decimal.Zero, errors.Errorf("invalid rate %q", v)
	}
	if isPct {
		rate = rate.Div(hundred)
	}
	if !rate.IsPositive() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, errors.Errorf("rate %q outside (0, 1]", v)
	}
	return rate, nil
}

func parseAmount(name, v string) (decimal.NullDecimal, error) {
	if v == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return decimal.NullDecimal{}, errors.Errorf("invalid %s %q", name, v)
	}
	return decimal.NewNullDecimal(d), nil
}

func parseDate(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, v); err != nil {
			return nil, errors.Errorf("invalid %s %q", name, v)
		}
	}
	return &t, nil
}

// mergeRules flattens per-file rules in file order. A later definition of a
// code replaces an earlier one.
func mergeRules(perFile [][]coupon.Rule) []coupon.Rule {
	index := make(map[string]int)
	var out []coupon.Rule
	for _, rules := range perFile {
		for _, r := range rules {
			if i, ok := index[r.Code]; ok {
				out[i] = r
				continue
			}
			index[r.Code] = len(out)
			out = append(out, r)
		}
	}
	return out
}
