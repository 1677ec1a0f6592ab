// Package invoice is the HTTP client of the invoice-rendering function.
package invoice

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	domain "github.com/xenking/medcart/internal/domain/invoice"
)

const maxInvoiceSize = 4 << 20

// Client calls the invoice function. The function answers either with
// text/html or with a JSON object carrying an "html" field.
type Client struct {
	url    string
	token  string
	client *http.Client
}

var _ domain.Renderer = (*Client)(nil)

// NewClient creates a Client for the function at url.
func NewClient(url, token string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{url: url, token: token, client: client}
}

// Render implements invoice.Renderer.
func (c *Client) Render(ctx context.Context, typ domain.Type, referenceID string) (string, error) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("type", func(e *jx.Encoder) { e.Str(string(typ)) })
		e.Field("referenceId", func(e *jx.Encoder) { e.Str(referenceID) })
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(e.Bytes()))
	if err != nil {
		return "", errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "call invoice function")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxInvoiceSize))
	if err != nil {
		return "", errors.Wrap(err, "read invoice")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", domain.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", errors.Errorf("invoice function returned %d", resp.StatusCode)
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		return string(body), nil
	}
	return decodeHTML(body)
}

func decodeHTML(body []byte) (string, error) {
	var html string
	d := jx.DecodeBytes(body)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "html" {
			return d.Skip()
		}
		v, err := d.Str()
		if err != nil {
			return err
		}
		html = v
		return nil
	}); err != nil {
		return "", errors.Wrap(err, "decode invoice response")
	}
	if html == "" {
		return "", errors.New("invoice response has no html")
	}
	return html, nil
}
