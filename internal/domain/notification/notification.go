// Package notification declares customer notifications and the outbox that
// carries them to the messaging function.
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type selects the message template.
type Type string

const (
	TypeOrderPlaced          Type = "order_placed"
	TypeOrderStatus          Type = "order_status"
	TypeAppointmentConfirmed Type = "appointment_confirmed"
	TypeAppointmentReminder  Type = "appointment_reminder"
)

// Channel is a delivery medium.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Notification is a request to message a customer.
type Notification struct {
	Type     Type
	UserID   string
	Email    string
	Phone    string
	Data     map[string]string
	Channels []Channel
}

// DefaultChannels returns the channels reachable with the given contact data.
func DefaultChannels(email, phone string) []Channel {
	var ch []Channel
	if email != "" {
		ch = append(ch, ChannelEmail)
	}
	if phone != "" {
		ch = append(ch, ChannelSMS)
	}
	return ch
}

// Status of an outbox message.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Message is a notification stored in the outbox.
type Message struct {
	ID           uuid.UUID
	Notification Notification
	Status       Status
	Attempts     int
	LastError    string
	CreatedAt    time.Time
}

// Enqueuer stores notifications for later dispatch.
type Enqueuer interface {
	Enqueue(ctx context.Context, n Notification) error
}

// Outbox is the storage side of the dispatch worker.
type Outbox interface {
	Enqueuer
	// Process claims up to limit pending messages and calls fn for each
	// inside one transaction. A nil error from fn marks the message sent;
	// otherwise its attempt counter grows and it is marked failed once
	// maxAttempts is reached.
	Process(ctx context.Context, limit, maxAttempts int, fn func(ctx context.Context, m Message) error) (int, error)
	// Pending returns the number of undelivered messages.
	Pending(ctx context.Context) (int, error)
}

// Dispatcher delivers a notification to the messaging function.
type Dispatcher interface {
	Dispatch(ctx context.Context, m Message) error
}
