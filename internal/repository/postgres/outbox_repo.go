package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/BiblioOps/Noticus/internal/domain/notice"
	"github.com/BiblioOps/Noticus/internal/domain/outbox"
)

var _ outbox.Repository = (*OutboxRepo)(nil)

// OutboxRepo owns the delivery_attempts table. Status updates are
// conditional on the row still being pending, so two racing invocations
// can never both report an outcome for the same row.
type OutboxRepo struct{ db *DB }

func NewOutboxRepo(db *DB) *OutboxRepo { return &OutboxRepo{db: db} }

const (
	qDeliveryInsert = `
INSERT INTO delivery_attempts (event_id, provider, status)
VALUES ($1, $2, 'pending')
RETURNING id;`

	qDeliveryIDByEvent = `
SELECT id FROM delivery_attempts
WHERE event_id = $1 AND provider = $2;`

	qDeliveryRequeue = `
UPDATE delivery_attempts
SET status = 'pending', last_error = NULL, attempted_at = NULL
WHERE event_id = $1 AND status = 'failed'
RETURNING id;`

	qDeliveryByEvent = `
SELECT id FROM delivery_attempts WHERE event_id = $1;`

	qEventChannel = `
SELECT channel FROM notification_events WHERE id = $1;`

	qDeliveryPick = `
SELECT d.id, d.event_id, d.provider, d.status, d.last_error, d.attempted_at, d.created_at,
       e.channel, e.notice_type, e.recipient, e.context
FROM delivery_attempts d
JOIN notification_events e ON e.id = d.event_id
WHERE d.status = 'pending'
ORDER BY d.id
LIMIT $1
FOR UPDATE OF d SKIP LOCKED;`

	qDeliveryMarkSent = `
UPDATE delivery_attempts
SET status = 'sent', last_error = NULL, attempted_at = $2
WHERE id = $1 AND status = 'pending';`

	qDeliveryMarkFailed = `
UPDATE delivery_attempts
SET status = 'failed', last_error = $3, attempted_at = $2
WHERE id = $1 AND status = 'pending';`
)

func (r *OutboxRepo) Enqueue(ctx context.Context, eventID int64, provider string) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)

	var id int64
	err := eq.QueryRow(ctx, qDeliveryInsert, eventID, provider).Scan(&id)
	if isUniqueViolation(err) {
		// Row for this (event, provider) pair already exists.
		if err := eq.QueryRow(ctx, qDeliveryIDByEvent, eventID, provider).Scan(&id); err != nil {
			return 0, fmt.Errorf("lookup existing delivery: %w", err)
		}
		return id, nil
	}
	if err != nil {
		return 0, fmt.Errorf("enqueue delivery: %w", err)
	}
	return id, nil
}

func (r *OutboxRepo) Requeue(ctx context.Context, eventID int64) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)

	var id int64
	err := eq.QueryRow(ctx, qDeliveryRequeue, eventID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("requeue delivery: %w", err)
	}

	// No failed row. A pending or sent row stays as it is: re-pending a
	// sent delivery would send it again.
	err = eq.QueryRow(ctx, qDeliveryByEvent, eventID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("lookup delivery: %w", err)
	}

	// No delivery row yet: create one, provider derived from the event.
	var channel string
	if err := eq.QueryRow(ctx, qEventChannel, eventID).Scan(&channel); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, outbox.ErrEventNotFound
		}
		return 0, fmt.Errorf("lookup event channel: %w", err)
	}
	if err := eq.QueryRow(ctx, qDeliveryInsert, eventID, outbox.ProviderFor(notice.Channel(channel))).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert delivery: %w", err)
	}
	return id, nil
}

func (r *OutboxRepo) PickPending(ctx context.Context, limit int) ([]outbox.PendingDelivery, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	// Row locks taken here (SKIP LOCKED) are the claim: they hold for
	// the caller's transaction so a concurrent drain picks other rows.
	rows, err := r.db.execQueryer(ctx).Query(ctx, qDeliveryPick, limit)
	if err != nil {
		return nil, fmt.Errorf("pick pending deliveries: %w", err)
	}
	defer rows.Close()

	var out []outbox.PendingDelivery
	for rows.Next() {
		var (
			d       outbox.PendingDelivery
			status  string
			payload []byte
		)
		if err := rows.Scan(
			&d.ID, &d.EventID, &d.Provider, &status, &d.LastError, &d.AttemptedAt, &d.CreatedAt,
			&d.Channel, &d.Type, &d.Recipient, &payload,
		); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		d.Status = outbox.Status(status)
		if err := json.Unmarshal(payload, &d.Context); err != nil {
			return nil, fmt.Errorf("unmarshal notice context: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *OutboxRepo) MarkSent(ctx context.Context, id int64, at time.Time) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qDeliveryMarkSent, id, at)
	if err != nil {
		return fmt.Errorf("mark delivery sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return outbox.ErrResolved
	}
	return nil
}

func (r *OutboxRepo) MarkFailed(ctx context.Context, id int64, at time.Time, msg string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qDeliveryMarkFailed, id, at, msg)
	if err != nil {
		return fmt.Errorf("mark delivery failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return outbox.ErrResolved
	}
	return nil
}
