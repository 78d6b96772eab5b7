package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/meeting-room-bot/internal/ledger"
	"github.com/iliyamo/meeting-room-bot/internal/model"
	"github.com/iliyamo/meeting-room-bot/internal/repository"
)

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) Swept(ctx context.Context, res ledger.SweepResult) error {
	return m.Called(ctx, res).Error(0)
}

func (m *MockNotifier) SweepFailed(ctx context.Context, res ledger.SweepResult, err error) error {
	return m.Called(ctx, res, err).Error(0)
}

type failingStore struct {
	*repository.MemoryBookingStore
}

func (failingStore) ClearAndWrite(context.Context, model.Row, []model.Row) error {
	return errors.New("quota exceeded")
}

var now = time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)

func rows() []model.Row {
	return []model.Row{
		{Date: "20/10/2025", Time: "09:00-10:00", Name: "Dara", TelegramID: "1"},
		{Date: "20/10/2025", Time: "13:00-14:00", Name: "Sokha", TelegramID: "2"},
	}
}

func TestRunOnce_BroadcastsRemovals(t *testing.T) {
	store := repository.NewMemoryBookingStore(rows()...)
	l := ledger.New(store, time.UTC, ledger.WithClock(func() time.Time { return now }))
	n := &MockNotifier{}
	n.On("Swept", mock.Anything, mock.MatchedBy(func(res ledger.SweepResult) bool {
		return len(res.Removed) == 1 && res.Removed[0].Name == "Dara" && len(res.Kept) == 1
	})).Return(errors.New("chat not found"))

	res, err := New(l, n, time.Hour, time.Second, nil).RunOnce(context.Background())
	require.NoError(t, err, "broadcast failure does not fail the sweep")
	assert.Len(t, res.Removed, 1)

	left, _ := store.ReadAll(context.Background())
	assert.Len(t, left, 1)
	n.AssertExpectations(t)
}

func TestRunOnce_RewriteFailureAlertsAdmin(t *testing.T) {
	store := failingStore{repository.NewMemoryBookingStore(rows()...)}
	l := ledger.New(store, time.UTC, ledger.WithClock(func() time.Time { return now }))
	n := &MockNotifier{}
	n.On("SweepFailed", mock.Anything, mock.Anything, mock.MatchedBy(func(err error) bool {
		return errors.Is(err, ledger.ErrSweepRewrite)
	})).Return(nil)

	_, err := New(l, n, time.Hour, time.Second, nil).RunOnce(context.Background())
	assert.ErrorIs(t, err, ledger.ErrStoreFailure)
	n.AssertExpectations(t)
	n.AssertNotCalled(t, "Swept", mock.Anything, mock.Anything)
}

func TestRun_FirstSweepThenStop(t *testing.T) {
	store := repository.NewMemoryBookingStore(rows()...)
	l := ledger.New(store, time.UTC, ledger.WithClock(func() time.Time { return now }))
	swept := make(chan struct{}, 1)
	n := &MockNotifier{}
	n.On("Swept", mock.Anything, mock.Anything).Run(func(mock.Arguments) { swept <- struct{}{} }).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(l, n, time.Hour, 10*time.Millisecond, nil).Run(ctx) }()

	select {
	case <-swept:
	case <-time.After(2 * time.Second):
		t.Fatal("first sweep did not run")
	}
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
