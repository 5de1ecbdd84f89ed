package notice

import "context"

// Store is an append-only log of notification events. There is no
// update or delete; retention is handled outside this service.
type Store interface {
	Create(ctx context.Context, ev *Event) error
	GetByID(ctx context.Context, id int64) (*Event, error)
	ListByRecipient(ctx context.Context, recipient string, limit int) ([]*Event, error)
}
