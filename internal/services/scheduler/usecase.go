package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BiblioOps/Noticus/internal/domain/notice"
	"github.com/BiblioOps/Noticus/internal/domain/reminder"
)

// Enqueuer records a notification event together with its delivery row.
type Enqueuer interface {
	Enqueue(ctx context.Context, ch notice.Channel, t notice.Type, recipient string, data notice.Context) (int64, error)
}

// Org is the organization detail baked into every rendered notice.
type Org struct {
	Name string `mapstructure:"name"`
}

type Summary struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Usecase scans due event reminders and enqueues one notice per
// required channel. A reminder counts as sent only when every channel
// enqueued; partial failures leave the sent marker untouched so a later
// run picks the reminder up again.
type Usecase struct {
	Guard   *Guard
	Source  reminder.Source
	Catalog reminder.EventCatalog
	Notices Enqueuer
	Org     Org
	Log     *zap.Logger
}

// RunDue executes one scan. The guard runs first: an unauthorized or
// unconfigured production run aborts before the data source is read.
// Per-reminder failures are counted, never escalated.
func (u *Usecase) RunDue(ctx context.Context, providedSecret string) (Summary, error) {
	if err := u.Guard.Authorize(providedSecret); err != nil {
		return Summary{}, err
	}

	tr := otel.Tracer("scheduler.uc")
	ctx, span := tr.Start(ctx, "reminders.run")
	defer span.End()

	due, err := u.Source.ListDue(ctx)
	if err != nil {
		span.RecordError(err)
		return Summary{}, fmt.Errorf("list due reminders: %w", err)
	}
	span.SetAttributes(attribute.Int("reminders.due", len(due)))

	var s Summary
	for _, d := range due {
		if u.remind(ctx, d) {
			s.Sent++
		} else {
			s.Failed++
		}
	}

	span.SetAttributes(
		attribute.Int("reminders.sent", s.Sent),
		attribute.Int("reminders.failed", s.Failed),
	)
	return s, nil
}

func (u *Usecase) remind(ctx context.Context, d reminder.Due) bool {
	log := u.Log.With(
		zap.Int64("registration_id", d.ID),
		zap.Int64("patron_id", d.PatronID),
		zap.Int64("event_id", d.EventID),
	)

	ev, err := u.Catalog.GetEvent(ctx, d.EventID)
	if err != nil {
		log.Warn("lookup library event", zap.Error(err))
		return false
	}

	data := notice.Context{
		"patron": map[string]any{
			"name":  d.PatronName,
			"email": d.PatronEmail,
			"phone": d.PatronPhone,
		},
		"event": map[string]any{
			"title":     ev.Title,
			"starts_at": ev.StartsAt.Format(time.RFC1123),
			"location":  ev.Location,
		},
		"library": map[string]any{
			"name": u.Org.Name,
		},
	}

	// Every required channel is attempted even after a failure: a retry
	// of a half-done reminder may over-notify, but never silently drops
	// a channel. Nothing already enqueued is rolled back.
	failed := false
	for _, ch := range channelsFor(d.Channel) {
		recipient := d.PatronEmail
		if ch == notice.ChannelSMS {
			recipient = d.PatronPhone
		}
		if _, err := u.Notices.Enqueue(ctx, ch, notice.TypeEventReminder, recipient, data); err != nil {
			log.Warn("enqueue reminder notice", zap.String("channel", string(ch)), zap.Error(err))
			failed = true
		}
	}
	if failed {
		return false
	}

	if err := u.Source.MarkSent(ctx, d.ID); err != nil {
		log.Error("mark reminder sent", zap.Error(err))
		return false
	}
	return true
}

// channelsFor expands a registration preference. "both" is always email
// first, then sms.
func channelsFor(ch reminder.Channel) []notice.Channel {
	switch ch {
	case reminder.ChannelBoth:
		return []notice.Channel{notice.ChannelEmail, notice.ChannelSMS}
	case reminder.ChannelSMS:
		return []notice.Channel{notice.ChannelSMS}
	default:
		return []notice.Channel{notice.ChannelEmail}
	}
}
