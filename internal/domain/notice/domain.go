package notice

import (
	"time"
)

// Channel is the delivery channel a notice is addressed to.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Type selects the template set and the required context fields.
type Type string

const (
	TypeHoldReady     Type = "hold_ready"
	TypeOverdue       Type = "overdue"
	TypeEventReminder Type = "event_reminder"
)

// Context carries the named values the renderer substitutes into a
// template. Shape varies per notice type.
type Context map[string]any

// Event is an immutable record that a notification was requested.
// Channel, Type, Recipient and Context never change after creation.
type Event struct {
	ID        int64     `json:"id"`
	Channel   Channel   `json:"channel"`
	Type      Type      `json:"type"`
	Recipient string    `json:"recipient"`
	Context   Context   `json:"context"`
	CreatedAt time.Time `json:"created_at"`
}
