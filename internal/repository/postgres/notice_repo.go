package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/BiblioOps/Noticus/internal/domain/notice"
)

var _ notice.Store = (*NoticeRepo)(nil)

// NoticeRepo persists notification events. The table is append-only:
// no update or delete statements live here.
type NoticeRepo struct{ db *DB }

func NewNoticeRepo(db *DB) *NoticeRepo { return &NoticeRepo{db: db} }

const (
	qNoticeInsert = `
INSERT INTO notification_events (channel, notice_type, recipient, context)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at;`

	qNoticeByID = `
SELECT id, channel, notice_type, recipient, context, created_at
FROM notification_events
WHERE id = $1;`

	qNoticeByRecipient = `
SELECT id, channel, notice_type, recipient, context, created_at
FROM notification_events
WHERE recipient = $1
ORDER BY id DESC
LIMIT $2;`
)

func (r *NoticeRepo) Create(ctx context.Context, ev *notice.Event) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	payload, err := json.Marshal(ev.Context)
	if err != nil {
		return fmt.Errorf("marshal notice context: %w", err)
	}

	eq := r.db.execQueryer(ctx)
	if err := eq.QueryRow(ctx, qNoticeInsert,
		string(ev.Channel),
		string(ev.Type),
		ev.Recipient,
		payload,
	).Scan(&ev.ID, &ev.CreatedAt); err != nil {
		return fmt.Errorf("insert notification event: %w", err)
	}
	return nil
}

func (r *NoticeRepo) GetByID(ctx context.Context, id int64) (*notice.Event, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var (
		ev      notice.Event
		payload []byte
	)
	if err := r.db.Pool.QueryRow(ctx, qNoticeByID, id).Scan(
		&ev.ID, &ev.Channel, &ev.Type, &ev.Recipient, &payload, &ev.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("get notification event: %w", err)
	}
	if err := json.Unmarshal(payload, &ev.Context); err != nil {
		return nil, fmt.Errorf("unmarshal notice context: %w", err)
	}
	return &ev, nil
}

func (r *NoticeRepo) ListByRecipient(ctx context.Context, recipient string, limit int) ([]*notice.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qNoticeByRecipient, recipient, limit)
	if err != nil {
		return nil, fmt.Errorf("query notification events: %w", err)
	}
	defer rows.Close()

	out := make([]*notice.Event, 0, limit)
	for rows.Next() {
		var (
			ev      notice.Event
			payload []byte
		)
		if err := rows.Scan(&ev.ID, &ev.Channel, &ev.Type, &ev.Recipient, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification event: %w", err)
		}
		if err := json.Unmarshal(payload, &ev.Context); err != nil {
			return nil, fmt.Errorf("unmarshal notice context: %w", err)
		}
		out = append(out, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
