package reminder

import "time"

// Channel is how a patron asked to be reminded about a library event.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelBoth  Channel = "both"
)

// Registration is owned by the circulation domain; this service only
// reads due rows and writes back the sent marker.
type Registration struct {
	ID        int64   `json:"id"`
	PatronID  int64   `json:"patron_id"`
	EventID   int64   `json:"event_id"`
	Channel   Channel `json:"channel"`
	SentAt    *time.Time
	CreatedAt time.Time
}

// Due is a due registration hydrated with the patron contact details
// needed to address the notices.
type Due struct {
	Registration
	PatronName  string
	PatronEmail string
	PatronPhone string
}

// EventDetails is the human-readable metadata of a library event, used
// for rendering.
type EventDetails struct {
	ID       int64
	Title    string
	StartsAt time.Time
	Location string
}
