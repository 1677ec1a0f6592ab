package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/medcart/internal/domain/notification"
)

func testMessage() notification.Message {
	return notification.Message{
		ID: uuid.MustParse("7b0f6d0e-2f55-4a6c-8d25-9e0c5a1b2c3d"),
		Notification: notification.Notification{
			Type:     notification.TypeOrderPlaced,
			UserID:   "user-1",
			Email:    "buyer@example.com",
			Data:     map[string]string{"total": "94.00", "order_id": "o1"},
			Channels: []notification.Channel{notification.ChannelEmail},
		},
	}
}

func TestEncodePayload(t *testing.T) {
	got := string(encodePayload(testMessage()))
	assert.JSONEq(t, `{
		"id": "7b0f6d0e-2f55-4a6c-8d25-9e0c5a1b2c3d",
		"type": "order_placed",
		"userId": "user-1",
		"email": "buyer@example.com",
		"data": {"order_id": "o1", "total": "94.00"},
		"channels": ["email"]
	}`, got)
}

func TestHTTPDispatcher(t *testing.T) {
	var (
		gotAuth string
		gotKey  string
		gotType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("Idempotency-Key")
		body, _ := io.ReadAll(r.Body)
		d := jx.DecodeBytes(body)
		_ = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if string(key) == "type" {
				v, err := d.Str()
				gotType = v
				return err
			}
			return d.Skip()
		})
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL, "secret", srv.Client())
	require.NoError(t, d.Dispatch(context.Background(), testMessage()))

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "7b0f6d0e-2f55-4a6c-8d25-9e0c5a1b2c3d", gotKey)
	assert.Equal(t, "order_placed", gotType)
}

func TestHTTPDispatcher_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "template missing", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewHTTPDispatcher(srv.URL, "", srv.Client()).Dispatch(context.Background(), testMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "template missing")
}

type fakePublisher struct {
	msgs []*nats.Msg
	err  error
}

func (f *fakePublisher) PublishMsg(msg *nats.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakePublisher) FlushWithContext(context.Context) error { return nil }

func TestNATSDispatcher(t *testing.T) {
	pub := &fakePublisher{}
	d := NewNATSDispatcher(pub, "medcart.notifications")

	require.NoError(t, d.Dispatch(context.Background(), testMessage()))
	require.Len(t, pub.msgs, 1)
	msg := pub.msgs[0]
	assert.Equal(t, "medcart.notifications.order_placed", msg.Subject)
	assert.Equal(t, "7b0f6d0e-2f55-4a6c-8d25-9e0c5a1b2c3d", msg.Header.Get(nats.MsgIdHdr))
	assert.JSONEq(t, string(encodePayload(testMessage())), string(msg.Data))

	pub.err = nats.ErrConnectionClosed
	require.ErrorIs(t, d.Dispatch(context.Background(), testMessage()), nats.ErrConnectionClosed)
}

// memOutbox mimics the postgres outbox semantics in memory.
type memOutbox struct {
	msgs []*notification.Message
}

func (o *memOutbox) Enqueue(_ context.Context, n notification.Notification) error {
	o.msgs = append(o.msgs, &notification.Message{ID: uuid.New(), Notification: n, Status: notification.StatusPending})
	return nil
}

func (o *memOutbox) Process(ctx context.Context, limit, maxAttempts int, fn func(context.Context, notification.Message) error) (int, error) {
	n := 0
	for _, m := range o.msgs {
		if n == limit {
			break
		}
		if m.Status != notification.StatusPending {
			continue
		}
		n++
		if err := fn(ctx, *m); err != nil {
			m.Attempts++
			m.LastError = err.Error()
			if m.Attempts >= maxAttempts {
				m.Status = notification.StatusFailed
			}
			continue
		}
		m.Status = notification.StatusSent
	}
	return n, nil
}

func (o *memOutbox) Pending(context.Context) (int, error) {
	n := 0
	for _, m := range o.msgs {
		if m.Status == notification.StatusPending {
			n++
		}
	}
	return n, nil
}

type flakyDispatcher struct {
	failures int
	calls    int
}

func (f *flakyDispatcher) Dispatch(context.Context, notification.Message) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("function unavailable")
	}
	return nil
}

func TestWorker_RetriesUntilSent(t *testing.T) {
	ctx := context.Background()
	outbox := &memOutbox{}
	require.NoError(t, outbox.Enqueue(ctx, testMessage().Notification))

	disp := &flakyDispatcher{failures: 2}
	w := NewWorker(outbox, disp, WorkerConfig{BatchSize: 10, MaxAttempts: 5}, noop.NewTracerProvider().Tracer("test"))

	for range 3 {
		_, err := w.ProcessBatch(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, notification.StatusSent, outbox.msgs[0].Status)
	assert.Equal(t, 2, outbox.msgs[0].Attempts)
	pending, _ := outbox.Pending(ctx)
	assert.Zero(t, pending)
}

func TestWorker_GivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	outbox := &memOutbox{}
	require.NoError(t, outbox.Enqueue(ctx, testMessage().Notification))

	disp := &flakyDispatcher{failures: 100}
	w := NewWorker(outbox, disp, WorkerConfig{BatchSize: 10, MaxAttempts: 3}, noop.NewTracerProvider().Tracer("test"))

	for range 5 {
		_, err := w.ProcessBatch(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, notification.StatusFailed, outbox.msgs[0].Status)
	assert.Equal(t, 3, disp.calls)
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(&memOutbox{}, &flakyDispatcher{}, WorkerConfig{}, noop.NewTracerProvider().Tracer("test"))

	cancel()
	require.NoError(t, w.Run(ctx))
}
