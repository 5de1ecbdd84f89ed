package reminder

import "context"

// Source is the circulation-domain view of event reminders.
type Source interface {
	ListDue(ctx context.Context) ([]Due, error)
	MarkSent(ctx context.Context, registrationID int64) error
}

// EventCatalog resolves library-event metadata for rendering.
type EventCatalog interface {
	GetEvent(ctx context.Context, id int64) (*EventDetails, error)
}
