package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func passing(context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(t *testing.T, fn http.HandlerFunc) (int, statusBody) {
	t.Helper()

	w := httptest.NewRecorder()
	fn(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body statusBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func runN(ctx context.Context, p *probe, n int) {
	for range n {
		p.run(ctx)
	}
}

func TestLiveEndpoint(t *testing.T) {
	t.Run("passing", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("a", time.Second, passing)

		code, body := serve(t, h.LiveEndpoint)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", body.Status)
		assert.Empty(t, body.Checks)
	})

	t.Run("below threshold stays healthy", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("flaky", time.Second, failing("temporary"))
		runN(context.Background(), h.liveness[0], failureThreshold-1)

		code, _ := serve(t, h.LiveEndpoint)
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("failing past threshold", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("db", time.Second, failing("connection refused"))
		runN(context.Background(), h.liveness[0], failureThreshold)

		code, body := serve(t, h.LiveEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy", body.Status)
		assert.Equal(t, "connection refused", body.Checks["db"])
	})
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("not ready by default", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("postgres", time.Second, passing)

		code, body := serve(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "service is not ready", body.Checks["_readiness"])
	})

	t.Run("ready", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("postgres", time.Second, passing)
		h.SetReady(true)

		code, body := serve(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", body.Status)
	})

	t.Run("one of many failing", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("postgres", time.Second, passing)
		h.AddReadinessCheck("payments", time.Second, failing("payments unavailable"))
		h.SetReady(true)
		runN(context.Background(), h.readiness[1], failureThreshold)

		code, body := serve(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Len(t, body.Checks, 1)
		assert.Equal(t, "payments unavailable", body.Checks["payments"])
	})

	t.Run("draining", func(t *testing.T) {
		h := New()
		h.SetReady(true)
		h.SetReady(false)

		code, _ := serve(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
	})
}

func TestProbeRecovers(t *testing.T) {
	var (
		mu   sync.Mutex
		fail = true
	)
	h := New()
	h.AddReadinessCheck("toggle", time.Second, func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return errors.New("down")
		}
		return nil
	})
	h.SetReady(true)

	p := h.readiness[0]
	runN(context.Background(), p, failureThreshold)
	assert.False(t, h.IsReady())

	mu.Lock()
	fail = false
	mu.Unlock()
	p.run(context.Background())
	assert.True(t, h.IsReady())
}

func TestStartStop(t *testing.T) {
	var calls sync.WaitGroup
	calls.Add(1)
	var once sync.Once

	h := New()
	h.AddLivenessCheck("tick", time.Second, func(context.Context) error {
		once.Do(calls.Done)
		return nil
	})
	h.Start(context.Background(), 10*time.Millisecond)
	calls.Wait()

	h.Stop()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddReadinessCheck("a", time.Second, passing)
	h.AddLivenessCheck("b", time.Second, passing)
	h.SetReady(true)
	h.Start(context.Background(), time.Millisecond)
	defer h.Stop()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := httptest.NewRecorder()
			h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			_ = h.IsReady()
		}()
	}
	wg.Wait()
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, GoroutineCountCheck(1_000_000)(ctx))
	assert.Error(t, GoroutineCountCheck(0)(ctx))

	assert.NoError(t, PingCheck(fakePinger{})(ctx))
	assert.ErrorContains(t, PingCheck(fakePinger{err: errors.New("refused")})(ctx), "refused")

	assert.NoError(t, AvailabilityCheck("payments", func() bool { return true })(ctx))
	assert.EqualError(t, AvailabilityCheck("payments", func() bool { return false })(ctx), "payments unavailable")

	count := func(n int, err error) func(context.Context) (int, error) {
		return func(context.Context) (int, error) { return n, err }
	}
	assert.NoError(t, BacklogCheck(count(10, nil), 10)(ctx))
	assert.Error(t, BacklogCheck(count(11, nil), 10)(ctx))
	assert.Error(t, BacklogCheck(count(0, errors.New("db")), 10)(ctx))
}
