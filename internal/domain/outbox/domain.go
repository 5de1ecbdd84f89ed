package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/BiblioOps/Noticus/internal/domain/notice"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Providers identify the sending backend a delivery row is bound to.
const (
	ProviderSMTP       = "smtp"
	ProviderSMSGateway = "sms-gateway"
)

var (
	// ErrEventNotFound is returned by Requeue for an unknown event id.
	ErrEventNotFound = errors.New("notification event not found")
	// ErrResolved is returned by MarkSent/MarkFailed when the row already
	// left pending, meaning another invocation owns the outcome.
	ErrResolved = errors.New("delivery already resolved")
)

// Delivery is one outbox row: a single (event, provider) pair. Status
// moves pending->sent or pending->failed and never reverts; a failed row
// gets another chance only through an explicit Requeue.
type Delivery struct {
	ID          int64      `json:"id"`
	EventID     int64      `json:"event_id"`
	Provider    string     `json:"provider"`
	Status      Status     `json:"status"`
	LastError   *string    `json:"last_error,omitempty"`
	AttemptedAt *time.Time `json:"attempted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// PendingDelivery is a pending row joined with its event, as picked by
// the drain loop.
type PendingDelivery struct {
	Delivery
	Channel   notice.Channel
	Type      notice.Type
	Recipient string
	Context   notice.Context
}

type Repository interface {
	// Enqueue inserts a pending row for the event. Idempotent on the
	// (event, provider) pair.
	Enqueue(ctx context.Context, eventID int64, provider string) (int64, error)

	// Requeue resets the event's delivery row to pending, or creates one
	// if none exists. Returns ErrEventNotFound for an unknown event.
	Requeue(ctx context.Context, eventID int64) (int64, error)

	// PickPending selects up to limit pending rows, oldest first.
	PickPending(ctx context.Context, limit int) ([]PendingDelivery, error)

	MarkSent(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, at time.Time, msg string) error
}

// ProviderFor maps a notice channel onto its sending backend.
func ProviderFor(ch notice.Channel) string {
	switch ch {
	case notice.ChannelSMS:
		return ProviderSMSGateway
	default:
		return ProviderSMTP
	}
}
