package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxStoreFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newOutboxStoreWithDB(mock)
	submitter := NewOutboxSubmitter(store)
	assert.Equal(t, "outbox", submitter.Name())

	mock.ExpectExec("INSERT INTO booking_outbox").
		WithArgs(pgxmock.AnyArg(), "sess-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, submitter.Submit(context.Background(), Submission{SessionID: "sess-1", UserID: 7}))

	now := time.Now().UTC()
	id := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "session_id", "payload", "attempts", "created_at"}).
		AddRow(id, "sess-1", []byte(`{"userId":7,"time":"2026-10-21 09:15"}`), 0, now)
	mock.ExpectQuery("SELECT id").WithArgs(int32(10), 5).WillReturnRows(rows)

	entries, err := store.FetchPending(context.Background(), 10, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, int64(7), entries[0].Submission.UserID)
	assert.Equal(t, "2026-10-21 09:15", entries[0].Submission.Time)

	mock.ExpectExec("UPDATE booking_outbox").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := store.MarkDelivered(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelivererDrain(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// The second entry fails downstream and is counted as an attempt.
	failing := &flakySubmitter{failFor: 2}
	d := NewDeliverer(newOutboxStoreWithDB(mock), failing, nil).WithBatchSize(2).WithMaxAttempts(3).WithInterval(time.Millisecond)

	okID, badID := uuid.New(), uuid.New()
	rows := pgxmock.NewRows([]string{"id", "session_id", "payload", "attempts", "created_at"}).
		AddRow(okID, "sess-1", []byte(`{"userId":1}`), 0, time.Now()).
		AddRow(badID, "sess-2", []byte(`{"userId":2}`), 1, time.Now())
	mock.ExpectQuery("SELECT id").WithArgs(int32(2), 3).WillReturnRows(rows)
	mock.ExpectExec("UPDATE booking_outbox").WithArgs(okID).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE booking_outbox").WithArgs(badID, "downstream down").WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.Equal(t, 1, d.drain(context.Background()))
	assert.Equal(t, []int64{1}, failing.delivered)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelivererStartWithoutStore(t *testing.T) {
	d := NewDeliverer(nil, nil, nil)
	done := make(chan struct{})
	go func() {
		d.Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deliverer without store should return immediately")
	}
}

type flakySubmitter struct {
	failFor   int64
	delivered []int64
}

func (f *flakySubmitter) Name() string { return "flaky" }

func (f *flakySubmitter) Submit(_ context.Context, sub Submission) error {
	if sub.UserID == f.failFor {
		return errors.New("downstream down")
	}
	f.delivered = append(f.delivered, sub.UserID)
	return nil
}
