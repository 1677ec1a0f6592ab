package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than threshold goroutines are running.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// Pinger is implemented by connection pools.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck fails when p cannot be reached.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// AvailabilityCheck fails while available reports false. Used for circuit
// breakers guarding required collaborators.
func AvailabilityCheck(name string, available func() bool) CheckFunc {
	return func(_ context.Context) error {
		if !available() {
			return errors.Errorf("%s unavailable", name)
		}
		return nil
	}
}

// BacklogCheck fails when count returns more than max items.
func BacklogCheck(count func(ctx context.Context) (int, error), max int) CheckFunc {
	return func(ctx context.Context) error {
		n, err := count(ctx)
		if err != nil {
			return errors.Wrap(err, "count backlog")
		}
		if n > max {
			return errors.Errorf("backlog %d exceeds %d", n, max)
		}
		return nil
	}
}
