package deliverer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BiblioOps/Noticus/internal/domain/notice"
	"github.com/BiblioOps/Noticus/internal/domain/outbox"
	"github.com/BiblioOps/Noticus/internal/obs"
	"github.com/BiblioOps/Noticus/internal/template"
)

// Message is rendered notice content handed to a channel sender.
type Message struct {
	Subject  string
	HTMLBody string
	TextBody string
}

// Sender is one sending backend (SMTP relay, SMS gateway topic).
type Sender interface {
	Send(ctx context.Context, recipient string, msg Message) error
}

// Summary is the aggregate outcome of one drain invocation.
type Summary struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// Transactor scopes one drain batch to a single transaction, so the
// locks taken by the pick hold until the batch outcomes commit.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Worker drains the delivery outbox one bounded batch at a time. It is
// a pure batch-in/summary-out function over its ports: cadence belongs
// to the caller (ticker, cron, HTTP trigger).
type Worker struct {
	log        *zap.Logger
	deliveries outbox.Repository
	senders    map[notice.Channel]Sender
	tx         Transactor
	clock      func() time.Time
}

func NewWorker(log *zap.Logger, deliveries outbox.Repository, senders map[notice.Channel]Sender, tx Transactor) *Worker {
	return &Worker{
		log:        log,
		deliveries: deliveries,
		senders:    senders,
		tx:         tx,
		clock:      time.Now,
	}
}

// WithClock overrides the attempt timestamp source.
func (w *Worker) WithClock(now func() time.Time) *Worker {
	cp := *w
	cp.clock = now
	return &cp
}

// ProcessPending picks up to limit pending rows oldest-first and
// attempts each one sequentially. Per-row failures are recorded on the
// row and counted, never escalated; only a failed batch fetch aborts
// the invocation.
func (w *Worker) ProcessPending(ctx context.Context, limit int) (Summary, error) {
	tr := otel.Tracer("deliverer.worker")
	ctx, span := tr.Start(ctx, "deliverer.drain",
		trace.WithAttributes(attribute.Int("batch.limit", limit)),
	)
	defer span.End()

	// The whole batch runs in one transaction: the pick row-locks its
	// selection, so a concurrent drain skips those rows instead of
	// sending them a second time. Batch limits keep the hold short.
	var s Summary
	err := w.tx.WithTx(ctx, func(ctx context.Context) error {
		rows, err := w.deliveries.PickPending(ctx, limit)
		if err != nil {
			return fmt.Errorf("pick pending deliveries: %w", err)
		}
		span.SetAttributes(attribute.Int("batch.picked", len(rows)))

		for _, row := range rows {
			s.Processed++
			if err := w.attempt(ctx, row); err != nil {
				if w.resolve(ctx, row, err) {
					s.Failed++
				}
				continue
			}
			if w.resolve(ctx, row, nil) {
				s.Sent++
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return Summary{}, err
	}

	span.SetAttributes(
		attribute.Int("batch.sent", s.Sent),
		attribute.Int("batch.failed", s.Failed),
	)
	return s, nil
}

func (w *Worker) attempt(ctx context.Context, row outbox.PendingDelivery) error {
	sender, ok := w.senders[row.Channel]
	if !ok {
		// Permanent: an unsupported channel will not become supported
		// between retries.
		return fmt.Errorf("unsupported channel %q", row.Channel)
	}
	if strings.TrimSpace(row.Recipient) == "" {
		return fmt.Errorf("missing recipient address for channel %q", row.Channel)
	}
	set, ok := template.ForType(row.Type)
	if !ok {
		return fmt.Errorf("no templates for notice type %q", row.Type)
	}
	if missing := missingContext(row.Type, row.Context); len(missing) > 0 {
		return fmt.Errorf("context missing required fields: %s", strings.Join(missing, ", "))
	}

	data := map[string]any(row.Context)
	msg := Message{
		Subject:  template.Render(set.Subject, data, false),
		HTMLBody: template.Render(set.HTML, data, true),
		TextBody: template.Render(set.Text, data, false),
	}
	if err := sender.Send(ctx, row.Recipient, msg); err != nil {
		return fmt.Errorf("send via %s: %w", row.Provider, err)
	}
	return nil
}

// resolve writes the row outcome and reports whether this invocation
// owns it. A row resolved by a racing invocation is not counted twice.
func (w *Worker) resolve(ctx context.Context, row outbox.PendingDelivery, attemptErr error) bool {
	log := obs.WithTrace(ctx, w.log).With(
		zap.Int64("delivery_id", row.ID),
		zap.Int64("event_id", row.EventID),
		zap.String("channel", string(row.Channel)),
	)

	now := w.clock().UTC()
	var markErr error
	if attemptErr != nil {
		markErr = w.deliveries.MarkFailed(ctx, row.ID, now, attemptErr.Error())
	} else {
		markErr = w.deliveries.MarkSent(ctx, row.ID, now)
	}

	switch {
	case errors.Is(markErr, outbox.ErrResolved):
		log.Warn("delivery resolved by a concurrent invocation")
		return false
	case markErr != nil:
		log.Error("record delivery outcome", zap.Error(markErr))
	case attemptErr != nil:
		log.Warn("delivery failed", zap.Error(attemptErr))
	default:
		log.Info("delivery sent")
	}
	return true
}

func missingContext(t notice.Type, data notice.Context) []string {
	var missing []string
	for _, path := range template.Required(t) {
		if !template.HasPath(data, path) {
			missing = append(missing, path)
		}
	}
	return missing
}
