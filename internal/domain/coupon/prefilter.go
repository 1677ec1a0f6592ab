package coupon

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Prefilter is a bloom filter over the known coupon codes. Until the first
// Rebuild, and while it is invalidated, it answers true for every code.
type Prefilter struct {
	capacity uint
	fpr      float64
	filter   atomic.Pointer[bloom.BloomFilter]

	// gen counts invalidations; the filter answers only when built at the
	// current generation.
	gen   atomic.Uint64
	built atomic.Uint64
	// feedDown is set while a watched change feed is not subscribed.
	feedDown atomic.Bool
}

// NewPrefilter creates an empty prefilter sized for capacity codes at the
// given false-positive rate.
func NewPrefilter(capacity uint, fpr float64) *Prefilter {
	if capacity == 0 {
		capacity = 1
	}
	return &Prefilter{capacity: capacity, fpr: fpr}
}

// MayContain reports whether code might be a known coupon. False is definite.
func (p *Prefilter) MayContain(code string) bool {
	f := p.filter.Load()
	if f == nil || p.feedDown.Load() || p.built.Load() != p.gen.Load() {
		return true
	}
	return f.TestString(Normalize(code))
}

// Invalidate marks the filter out of date. Every code passes until the next
// Refresh started after this call completes.
func (p *Prefilter) Invalidate() {
	p.gen.Add(1)
}

// Rebuild replaces the filter contents with codes.
func (p *Prefilter) Rebuild(codes []string) {
	p.rebuild(codes, p.gen.Load())
}

func (p *Prefilter) rebuild(codes []string, gen uint64) {
	n := p.capacity
	if uint(len(codes)) > n {
		n = uint(len(codes))
	}
	f := bloom.NewWithEstimates(n, p.fpr)
	for _, c := range codes {
		f.AddString(Normalize(c))
	}
	p.filter.Store(f)
	p.built.Store(gen)
}

// Refresh rebuilds the filter from src. An Invalidate that lands while the
// codes are being listed keeps the filter invalid.
func (p *Prefilter) Refresh(ctx context.Context, src CodeSource) error {
	gen := p.gen.Load()
	codes, err := src.ListCodes(ctx)
	if err != nil {
		return errors.Wrap(err, "list coupon codes")
	}
	p.rebuild(codes, gen)
	return nil
}

// Run refreshes the filter from src every interval until ctx is done.
// Failed refreshes keep the previous filter.
func (p *Prefilter) Run(ctx context.Context, src CodeSource, interval time.Duration) error {
	lg := zctx.From(ctx).Named("coupon.prefilter")

	if err := p.Refresh(ctx, src); err != nil {
		lg.Warn("Initial refresh failed", zap.Error(err))
	}
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.Refresh(ctx, src); err != nil {
				lg.Warn("Refresh failed", zap.Error(err))
			}
		}
	}
}

// ChangeFeed delivers coupon table changes.
type ChangeFeed interface {
	// Listen blocks until ctx is done or the feed breaks, calling changed for
	// every change. changed is also called once the subscription is live,
	// since earlier changes may have been missed.
	Listen(ctx context.Context, changed func()) error
}

// Watch invalidates the filter on every change reported by feed and rebuilds
// it from src. While the feed is down the filter stays invalid, so lookups go
// to the store. A broken feed is resubscribed after retry.
func (p *Prefilter) Watch(ctx context.Context, src CodeSource, feed ChangeFeed, retry time.Duration) error {
	lg := zctx.From(ctx).Named("coupon.prefilter")
	refresh := make(chan struct{}, 1)
	p.feedDown.Store(true)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			err := feed.Listen(ctx, func() {
				p.Invalidate()
				p.feedDown.Store(false)
				select {
				case refresh <- struct{}{}:
				default:
				}
			})
			p.feedDown.Store(true)
			if ctx.Err() != nil {
				return nil
			}
			lg.Warn("Coupon change feed broken", zap.Error(err))

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retry):
			}
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-refresh:
				if err := p.Refresh(ctx, src); err != nil {
					lg.Warn("Refresh after change failed", zap.Error(err))
				}
			}
		}
	})
	return g.Wait()
}
