// Package notify delivers outbox notifications to the messaging function.
package notify

import (
	"slices"

	"github.com/go-faster/jx"

	"github.com/xenking/medcart/internal/domain/notification"
)

// encodePayload renders the messaging-function request body for m.
func encodePayload(m notification.Message) []byte {
	n := m.Notification
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(m.ID.String()) })
		e.Field("type", func(e *jx.Encoder) { e.Str(string(n.Type)) })
		if n.UserID != "" {
			e.Field("userId", func(e *jx.Encoder) { e.Str(n.UserID) })
		}
		if n.Email != "" {
			e.Field("email", func(e *jx.Encoder) { e.Str(n.Email) })
		}
		if n.Phone != "" {
			e.Field("phone", func(e *jx.Encoder) { e.Str(n.Phone) })
		}
		e.Field("data", func(e *jx.Encoder) {
			keys := make([]string, 0, len(n.Data))
			for k := range n.Data {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			e.Obj(func(e *jx.Encoder) {
				for _, k := range keys {
					e.Field(k, func(e *jx.Encoder) { e.Str(n.Data[k]) })
				}
			})
		})
		e.Field("channels", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, ch := range n.Channels {
					e.Str(string(ch))
				}
			})
		})
	})
	return e.Bytes()
}
