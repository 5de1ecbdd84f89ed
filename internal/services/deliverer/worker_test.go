package deliverer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BiblioOps/Noticus/internal/domain/notice"
	"github.com/BiblioOps/Noticus/internal/domain/outbox"
)

type fakeOutbox struct {
	rows    []*outbox.PendingDelivery
	pickErr error
}

func (f *fakeOutbox) Enqueue(ctx context.Context, eventID int64, provider string) (int64, error) {
	panic("not used")
}

func (f *fakeOutbox) Requeue(ctx context.Context, eventID int64) (int64, error) {
	panic("not used")
}

func (f *fakeOutbox) PickPending(ctx context.Context, limit int) ([]outbox.PendingDelivery, error) {
	if f.pickErr != nil {
		return nil, f.pickErr
	}
	var out []outbox.PendingDelivery
	for _, r := range f.rows {
		if r.Status != outbox.StatusPending {
			continue
		}
		out = append(out, *r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeOutbox) find(id int64) *outbox.PendingDelivery {
	for _, r := range f.rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (f *fakeOutbox) MarkSent(ctx context.Context, id int64, at time.Time) error {
	r := f.find(id)
	if r == nil || r.Status != outbox.StatusPending {
		return outbox.ErrResolved
	}
	r.Status = outbox.StatusSent
	r.LastError = nil
	r.AttemptedAt = &at
	return nil
}

func (f *fakeOutbox) MarkFailed(ctx context.Context, id int64, at time.Time, msg string) error {
	r := f.find(id)
	if r == nil || r.Status != outbox.StatusPending {
		return outbox.ErrResolved
	}
	r.Status = outbox.StatusFailed
	r.LastError = &msg
	r.AttemptedAt = &at
	return nil
}

type fakeSender struct {
	sent []string // recipients, in send order
	errs map[string]error
}

func (f *fakeSender) Send(ctx context.Context, recipient string, msg Message) error {
	if err := f.errs[recipient]; err != nil {
		return err
	}
	f.sent = append(f.sent, recipient)
	return nil
}

func holdReadyContext() notice.Context {
	return notice.Context{
		"patron":  map[string]any{"name": "Ada"},
		"item":    map[string]any{"title": "SICP", "pickup_by": "2025-09-12"},
		"library": map[string]any{"name": "City Library"},
	}
}

func pendingRow(id, eventID int64, ch notice.Channel, recipient string) *outbox.PendingDelivery {
	return &outbox.PendingDelivery{
		Delivery: outbox.Delivery{
			ID:       id,
			EventID:  eventID,
			Provider: outbox.ProviderFor(ch),
			Status:   outbox.StatusPending,
		},
		Channel:   ch,
		Type:      notice.TypeHoldReady,
		Recipient: recipient,
		Context:   holdReadyContext(),
	}
}

// fakeTx admits one batch at a time, the way the locked pick holds off
// a concurrent drain until the batch outcomes commit.
type fakeTx struct {
	mu    sync.Mutex
	calls int
}

func (t *fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	return fn(ctx)
}

func newTestWorker(repo outbox.Repository, email Sender) *Worker {
	return NewWorker(zap.NewNop(), repo, map[notice.Channel]Sender{
		notice.ChannelEmail: email,
	}, &fakeTx{})
}

func TestProcessPendingDrainsFIFO(t *testing.T) {
	repo := &fakeOutbox{}
	for i := int64(1); i <= 5; i++ {
		repo.rows = append(repo.rows, pendingRow(i, 100+i, notice.ChannelEmail, fmt.Sprintf("p%d@lib.test", i)))
	}
	sender := &fakeSender{}
	w := newTestWorker(repo, sender)

	s, err := w.ProcessPending(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 3, Sent: 3, Failed: 0}, s)

	// Oldest three attempted in creation order, the rest untouched.
	require.Equal(t, []string{"p1@lib.test", "p2@lib.test", "p3@lib.test"}, sender.sent)
	require.Equal(t, outbox.StatusPending, repo.rows[3].Status)
	require.Equal(t, outbox.StatusPending, repo.rows[4].Status)
}

func TestUnsupportedChannelIsPermanentFailure(t *testing.T) {
	repo := &fakeOutbox{rows: []*outbox.PendingDelivery{
		pendingRow(1, 101, notice.Channel("pigeon"), "p1@lib.test"),
	}}
	sender := &fakeSender{}
	w := newTestWorker(repo, sender)

	s, err := w.ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 1, Sent: 0, Failed: 1}, s)
	require.Equal(t, outbox.StatusFailed, repo.rows[0].Status)
	require.Contains(t, *repo.rows[0].LastError, "unsupported channel")
	require.Empty(t, sender.sent)

	// The failed row is never selected again.
	s, err = w.ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, Summary{}, s)
}

func TestMissingRecipientIsPermanentFailure(t *testing.T) {
	repo := &fakeOutbox{rows: []*outbox.PendingDelivery{
		pendingRow(1, 101, notice.ChannelEmail, "   "),
	}}
	sender := &fakeSender{}
	w := newTestWorker(repo, sender)

	s, err := w.ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 1, Sent: 0, Failed: 1}, s)
	require.Contains(t, *repo.rows[0].LastError, "missing recipient")
	require.Empty(t, sender.sent)
}

func TestMissingRequiredContextFailsBeforeSend(t *testing.T) {
	row := pendingRow(1, 101, notice.ChannelEmail, "p1@lib.test")
	row.Context = notice.Context{"patron": map[string]any{"name": "Ada"}}
	repo := &fakeOutbox{rows: []*outbox.PendingDelivery{row}}
	sender := &fakeSender{}
	w := newTestWorker(repo, sender)

	s, err := w.ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 1, Sent: 0, Failed: 1}, s)
	require.Contains(t, *repo.rows[0].LastError, "item.title")
	require.Empty(t, sender.sent)
}

func TestProviderErrorRecordedAndBatchContinues(t *testing.T) {
	repo := &fakeOutbox{rows: []*outbox.PendingDelivery{
		pendingRow(1, 101, notice.ChannelEmail, "bad@lib.test"),
		pendingRow(2, 102, notice.ChannelEmail, "good@lib.test"),
	}}
	sender := &fakeSender{errs: map[string]error{
		"bad@lib.test": errors.New("smtp: connection timed out"),
	}}
	w := newTestWorker(repo, sender)

	s, err := w.ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 2, Sent: 1, Failed: 1}, s)

	require.Equal(t, outbox.StatusFailed, repo.rows[0].Status)
	require.Contains(t, *repo.rows[0].LastError, "connection timed out")
	require.NotNil(t, repo.rows[0].AttemptedAt)

	require.Equal(t, outbox.StatusSent, repo.rows[1].Status)
	require.Nil(t, repo.rows[1].LastError)
}

func TestBatchFetchErrorPropagates(t *testing.T) {
	repo := &fakeOutbox{pickErr: errors.New("connection refused")}
	w := newTestWorker(repo, &fakeSender{})

	_, err := w.ProcessPending(context.Background(), 10)
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")
}

func TestConcurrentDrainsSendEachRowOnce(t *testing.T) {
	repo := &fakeOutbox{rows: []*outbox.PendingDelivery{
		pendingRow(1, 101, notice.ChannelEmail, "p1@lib.test"),
	}}
	sender := &fakeSender{}
	tx := &fakeTx{}
	w := NewWorker(zap.NewNop(), repo, map[notice.Channel]Sender{
		notice.ChannelEmail: sender,
	}, tx)

	// Two drains racing over the same pending row: the batch claim must
	// keep the second one from sending it again.
	var wg sync.WaitGroup
	results := make([]Summary, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = w.ProcessPending(context.Background(), 1)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	require.Equal(t, []string{"p1@lib.test"}, sender.sent)
	require.Equal(t, 1, results[0].Sent+results[1].Sent)
	require.Equal(t, 2, tx.calls)
	require.Equal(t, outbox.StatusSent, repo.rows[0].Status)
}

func TestAttemptTimestampUsesClock(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeOutbox{rows: []*outbox.PendingDelivery{
		pendingRow(1, 101, notice.ChannelEmail, "p1@lib.test"),
	}}
	w := newTestWorker(repo, &fakeSender{}).WithClock(func() time.Time { return at })

	_, err := w.ProcessPending(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, at, *repo.rows[0].AttemptedAt)
}
