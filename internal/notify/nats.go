package notify

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/nats-io/nats.go"

	"github.com/xenking/medcart/internal/domain/notification"
)

// Publisher is the subset of *nats.Conn the dispatcher uses.
type Publisher interface {
	PublishMsg(msg *nats.Msg) error
	FlushWithContext(ctx context.Context) error
}

// NATSDispatcher publishes notifications on a NATS subject. The message id
// travels in the Nats-Msg-Id header for JetStream de-duplication.
type NATSDispatcher struct {
	pub     Publisher
	subject string
}

var _ notification.Dispatcher = (*NATSDispatcher)(nil)

// NewNATSDispatcher creates a dispatcher publishing to subject.
func NewNATSDispatcher(pub Publisher, subject string) *NATSDispatcher {
	return &NATSDispatcher{pub: pub, subject: subject}
}

// ConnectNATS dials the NATS server at url.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connect nats")
	}
	return nc, nil
}

// Dispatch implements notification.Dispatcher.
func (d *NATSDispatcher) Dispatch(ctx context.Context, m notification.Message) error {
	msg := nats.NewMsg(d.subject + "." + string(m.Notification.Type))
	msg.Header.Set(nats.MsgIdHdr, m.ID.String())
	msg.Data = encodePayload(m)

	if err := d.pub.PublishMsg(msg); err != nil {
		return errors.Wrap(err, "publish notification")
	}
	if err := d.pub.FlushWithContext(ctx); err != nil {
		return errors.Wrap(err, "flush")
	}
	return nil
}
