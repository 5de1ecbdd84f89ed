// Package notices couples the append-only event log with the delivery
// outbox: every created event gets its delivery row in the same
// transaction, so a recorded fact is never left without a queued side
// effect.
package notices

import (
	"context"
	"fmt"

	"github.com/BiblioOps/Noticus/internal/domain/notice"
	"github.com/BiblioOps/Noticus/internal/domain/outbox"
)

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Enqueuer struct {
	Store      notice.Store
	Deliveries outbox.Repository
	Tx         Transactor
}

func NewEnqueuer(store notice.Store, deliveries outbox.Repository, tx Transactor) *Enqueuer {
	return &Enqueuer{Store: store, Deliveries: deliveries, Tx: tx}
}

// Enqueue creates the notification event and its pending delivery row
// atomically, returning the event id.
func (e *Enqueuer) Enqueue(ctx context.Context, ch notice.Channel, t notice.Type, recipient string, data notice.Context) (int64, error) {
	var eventID int64
	err := e.Tx.WithTx(ctx, func(ctx context.Context) error {
		ev := &notice.Event{
			Channel:   ch,
			Type:      t,
			Recipient: recipient,
			Context:   data,
		}
		if err := e.Store.Create(ctx, ev); err != nil {
			return fmt.Errorf("create notification event: %w", err)
		}
		if _, err := e.Deliveries.Enqueue(ctx, ev.ID, outbox.ProviderFor(ch)); err != nil {
			return fmt.Errorf("enqueue delivery: %w", err)
		}
		eventID = ev.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return eventID, nil
}
