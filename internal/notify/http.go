package notify

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/medcart/internal/domain/notification"
)

// HTTPDispatcher posts notifications to the messaging function.
type HTTPDispatcher struct {
	url    string
	token  string
	client *http.Client
}

var _ notification.Dispatcher = (*HTTPDispatcher)(nil)

// NewHTTPDispatcher creates a dispatcher for the function at url. token is
// sent as a bearer token when set.
func NewHTTPDispatcher(url, token string, client *http.Client) *HTTPDispatcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPDispatcher{url: url, token: token, client: client}
}

// Dispatch implements notification.Dispatcher.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, m notification.Message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(encodePayload(m)))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", m.ID.String())
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "send notification")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("messaging function returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
