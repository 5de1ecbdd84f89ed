package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/BiblioOps/Noticus/internal/domain/reminder"
)

var (
	_ reminder.Source       = (*ReminderRepo)(nil)
	_ reminder.EventCatalog = (*ReminderRepo)(nil)
)

// ReminderRepo reads due event registrations and writes back the sent
// marker. Registrations themselves are created and deleted by the
// circulation side; nothing here inserts or removes them.
type ReminderRepo struct {
	db     *DB
	window time.Duration
}

func NewReminderRepo(db *DB, window time.Duration) *ReminderRepo {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &ReminderRepo{db: db, window: window}
}

const (
	qRemindersDue = `
SELECT r.id, r.patron_id, r.event_id, r.channel, r.created_at,
       p.full_name, p.email, p.phone
FROM event_registrations r
JOIN patrons p ON p.id = r.patron_id
JOIN library_events e ON e.id = r.event_id
WHERE r.reminder_sent_at IS NULL
  AND e.starts_at BETWEEN now() AND now() + $1::interval
ORDER BY r.id;`

	qReminderMarkSent = `
UPDATE event_registrations
SET reminder_sent_at = now()
WHERE id = $1 AND reminder_sent_at IS NULL;`

	qLibraryEvent = `
SELECT id, title, starts_at, location
FROM library_events
WHERE id = $1;`
)

func (r *ReminderRepo) ListDue(ctx context.Context) ([]reminder.Due, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	interval := fmt.Sprintf("%f seconds", r.window.Seconds())
	rows, err := r.db.Pool.Query(ctx, qRemindersDue, interval)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	defer rows.Close()

	var out []reminder.Due
	for rows.Next() {
		var d reminder.Due
		if err := rows.Scan(
			&d.ID, &d.PatronID, &d.EventID, &d.Channel, &d.CreatedAt,
			&d.PatronName, &d.PatronEmail, &d.PatronPhone,
		); err != nil {
			return nil, fmt.Errorf("scan due reminder: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *ReminderRepo) MarkSent(ctx context.Context, registrationID int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Pool.Exec(ctx, qReminderMarkSent, registrationID)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ReminderRepo) GetEvent(ctx context.Context, id int64) (*reminder.EventDetails, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var ev reminder.EventDetails
	if err := r.db.Pool.QueryRow(ctx, qLibraryEvent, id).Scan(
		&ev.ID, &ev.Title, &ev.StartsAt, &ev.Location,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get library event: %w", err)
	}
	return &ev, nil
}
