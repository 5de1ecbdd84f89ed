package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/BiblioOps/Noticus/internal/domain/notice"
	"github.com/BiblioOps/Noticus/internal/domain/reminder"
)

type fakeSource struct {
	due        []reminder.Due
	listErr    error
	listCalled bool
	marked     []int64
}

func (f *fakeSource) ListDue(ctx context.Context) ([]reminder.Due, error) {
	f.listCalled = true
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.due, nil
}

func (f *fakeSource) MarkSent(ctx context.Context, id int64) error {
	f.marked = append(f.marked, id)
	return nil
}

type fakeCatalog struct {
	events map[int64]*reminder.EventDetails
}

func (f *fakeCatalog) GetEvent(ctx context.Context, id int64) (*reminder.EventDetails, error) {
	ev, ok := f.events[id]
	if !ok {
		return nil, errors.New("event not found")
	}
	return ev, nil
}

type enqueueCall struct {
	Channel   notice.Channel
	Type      notice.Type
	Recipient string
}

type fakeEnqueuer struct {
	calls  []enqueueCall
	failOn func(call int, ch notice.Channel) error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, ch notice.Channel, t notice.Type, recipient string, data notice.Context) (int64, error) {
	n := len(f.calls)
	f.calls = append(f.calls, enqueueCall{Channel: ch, Type: t, Recipient: recipient})
	if f.failOn != nil {
		if err := f.failOn(n, ch); err != nil {
			return 0, err
		}
	}
	return int64(n + 1), nil
}

func dueReminder(id int64, ch reminder.Channel) reminder.Due {
	return reminder.Due{
		Registration: reminder.Registration{ID: id, PatronID: 7, EventID: 42, Channel: ch},
		PatronName:   "Ada",
		PatronEmail:  "ada@lib.test",
		PatronPhone:  "+15550101",
	}
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{events: map[int64]*reminder.EventDetails{
		42: {ID: 42, Title: "Poetry Night", StartsAt: time.Date(2025, 9, 5, 18, 0, 0, 0, time.UTC), Location: "Reading Room"},
	}}
}

func newUsecase(src *fakeSource, enq *fakeEnqueuer, guard *Guard) *Usecase {
	if guard == nil {
		guard = NewGuard("development", "")
	}
	return &Usecase{
		Guard:   guard,
		Source:  src,
		Catalog: testCatalog(),
		Notices: enq,
		Org:     Org{Name: "City Library"},
		Log:     zap.NewNop(),
	}
}

func TestRunDueSingleChannel(t *testing.T) {
	src := &fakeSource{due: []reminder.Due{dueReminder(1, reminder.ChannelEmail)}}
	enq := &fakeEnqueuer{}
	u := newUsecase(src, enq, nil)

	s, err := u.RunDue(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, Summary{Sent: 1, Failed: 0}, s)
	require.Equal(t, []int64{1}, src.marked)

	require.Len(t, enq.calls, 1)
	require.Equal(t, notice.ChannelEmail, enq.calls[0].Channel)
	require.Equal(t, notice.TypeEventReminder, enq.calls[0].Type)
	require.Equal(t, "ada@lib.test", enq.calls[0].Recipient)
}

func TestRunDueBothChannelsEmailFirst(t *testing.T) {
	src := &fakeSource{due: []reminder.Due{dueReminder(1, reminder.ChannelBoth)}}
	enq := &fakeEnqueuer{}
	u := newUsecase(src, enq, nil)

	s, err := u.RunDue(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, Summary{Sent: 1, Failed: 0}, s)

	require.Len(t, enq.calls, 2)
	require.Equal(t, notice.ChannelEmail, enq.calls[0].Channel)
	require.Equal(t, "ada@lib.test", enq.calls[0].Recipient)
	require.Equal(t, notice.ChannelSMS, enq.calls[1].Channel)
	require.Equal(t, "+15550101", enq.calls[1].Recipient)
}

func TestRunDuePartialFailureIsNotMarkedSent(t *testing.T) {
	src := &fakeSource{due: []reminder.Due{dueReminder(1, reminder.ChannelBoth)}}
	enq := &fakeEnqueuer{failOn: func(call int, ch notice.Channel) error {
		if ch == notice.ChannelSMS {
			return errors.New("insert failed")
		}
		return nil
	}}
	u := newUsecase(src, enq, nil)

	s, err := u.RunDue(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, Summary{Sent: 0, Failed: 1}, s)

	// Both channels were attempted; no short-circuit after the failure,
	// and the sent marker was never written.
	require.Len(t, enq.calls, 2)
	require.Empty(t, src.marked)
}

func TestRunDueFirstChannelFailureStillAttemptsSecond(t *testing.T) {
	src := &fakeSource{due: []reminder.Due{dueReminder(1, reminder.ChannelBoth)}}
	enq := &fakeEnqueuer{failOn: func(call int, ch notice.Channel) error {
		if ch == notice.ChannelEmail {
			return errors.New("insert failed")
		}
		return nil
	}}
	u := newUsecase(src, enq, nil)

	s, err := u.RunDue(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, Summary{Sent: 0, Failed: 1}, s)
	require.Len(t, enq.calls, 2)
	require.Empty(t, src.marked)
}

func TestRunDueMixedOutcomes(t *testing.T) {
	src := &fakeSource{due: []reminder.Due{
		dueReminder(1, reminder.ChannelEmail),
		dueReminder(2, reminder.ChannelSMS),
	}}
	enq := &fakeEnqueuer{failOn: func(call int, ch notice.Channel) error {
		if ch == notice.ChannelSMS {
			return errors.New("insert failed")
		}
		return nil
	}}
	u := newUsecase(src, enq, nil)

	s, err := u.RunDue(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, Summary{Sent: 1, Failed: 1}, s)
	require.Equal(t, []int64{1}, src.marked)
}

func TestRunDueUnknownEventCountsFailed(t *testing.T) {
	due := dueReminder(1, reminder.ChannelEmail)
	due.EventID = 999
	src := &fakeSource{due: []reminder.Due{due}}
	enq := &fakeEnqueuer{}
	u := newUsecase(src, enq, nil)

	s, err := u.RunDue(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, Summary{Sent: 0, Failed: 1}, s)
	require.Empty(t, enq.calls)
}

func TestRunDueListErrorPropagates(t *testing.T) {
	src := &fakeSource{listErr: errors.New("connection refused")}
	u := newUsecase(src, &fakeEnqueuer{}, nil)

	_, err := u.RunDue(context.Background(), "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "list due reminders")
}

func TestProductionWithoutSecretAbortsBeforeDataAccess(t *testing.T) {
	src := &fakeSource{due: []reminder.Due{dueReminder(1, reminder.ChannelEmail)}}
	u := newUsecase(src, &fakeEnqueuer{}, NewGuard("production", ""))

	_, err := u.RunDue(context.Background(), "whatever")
	require.ErrorIs(t, err, ErrGuardUnconfigured)
	require.False(t, src.listCalled)
}

func TestProductionRejectsWrongSecret(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	require.NoError(t, err)

	src := &fakeSource{}
	u := newUsecase(src, &fakeEnqueuer{}, NewGuard("production", string(hash)))

	_, err = u.RunDue(context.Background(), "wrong")
	require.ErrorIs(t, err, ErrUnauthorized)
	require.False(t, src.listCalled)

	_, err = u.RunDue(context.Background(), "correct")
	require.NoError(t, err)
	require.True(t, src.listCalled)
}

func TestNonProductionSkipsSecretCheck(t *testing.T) {
	src := &fakeSource{}
	u := newUsecase(src, &fakeEnqueuer{}, NewGuard("development", ""))

	_, err := u.RunDue(context.Background(), "")
	require.NoError(t, err)
	require.True(t, src.listCalled)
}
