package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/meeting-room-bot/internal/model"
	"github.com/iliyamo/meeting-room-bot/internal/repository"
)

var ict = time.FixedZone("ICT", 7*3600)

type mockStore struct{ mock.Mock }

func (m *mockStore) ReadAll(ctx context.Context) ([]model.Row, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]model.Row)
	return rows, args.Error(1)
}

func (m *mockStore) Append(ctx context.Context, row model.Row) error {
	return m.Called(ctx, row).Error(0)
}

func (m *mockStore) DeleteAt(ctx context.Context, index int) error {
	return m.Called(ctx, index).Error(0)
}

func (m *mockStore) ClearAndWrite(ctx context.Context, header model.Row, rows []model.Row) error {
	return m.Called(ctx, header, rows).Error(0)
}

func at(day, clock string) time.Time {
	t, err := time.ParseInLocation("02/01/2006 15:04", day+" "+clock, ict)
	if err != nil {
		panic(err)
	}
	return t
}

func newLedger(store repository.BookingStore, now time.Time) *Ledger {
	return New(store, ict, WithClock(func() time.Time { return now }))
}

func row(date, span, name string, id int64) model.Row {
	return model.Row{Date: date, Time: span, Name: name, TelegramID: fmt.Sprint(id)}
}

func mustDate(t *testing.T, l *Ledger, text string) time.Time {
	t.Helper()
	d, err := l.ParseDate(text)
	require.NoError(t, err)
	return d
}

func TestBook_Scenario(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryBookingStore()
	l := newLedger(store, at("20/10/2025", "09:00"))
	day := mustDate(t, l, "25/12/2025")

	m, err := l.Book(ctx, day, "14:00-15:00", "Dara", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Booking.Index)
	assert.Equal(t, row("25/12/2025", "14:00-15:00", "Dara", 1), m.Booking.Row)

	_, err = l.Book(ctx, day, "14:30-15:30", "Sokha", 2)
	assert.ErrorIs(t, err, ErrOverlap)

	m, err = l.Book(ctx, day, "15:00-16:00", "Sokha", 2)
	require.NoError(t, err)
	require.Len(t, m.Schedule, 2)
	assert.Equal(t, "14:00-15:00", m.Schedule[0].Time)
	assert.Equal(t, "15:00-16:00", m.Schedule[1].Time)

	rows, _ := store.ReadAll(ctx)
	assert.Len(t, rows, 2)
}

func TestBook_InvalidInput(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	l := newLedger(store, at("20/10/2025", "09:00"))
	day := at("25/12/2025", "00:00")

	_, err := l.Book(ctx, day, "2pm-3pm", "Dara", 1)
	assert.ErrorIs(t, err, ErrMalformedInput)
	assert.ErrorIs(t, err, model.ErrMalformedTimeRange)

	_, err = l.Book(ctx, day, "15:00-14:00", "Dara", 1)
	assert.ErrorIs(t, err, ErrMalformedInput)
	assert.ErrorIs(t, err, model.ErrInvalidOrdering)

	_, err = l.Book(ctx, at("19/10/2025", "00:00"), "15:00-16:00", "Dara", 1)
	assert.ErrorIs(t, err, ErrPastDate)

	store.AssertNotCalled(t, "ReadAll", mock.Anything)
	store.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestBook_OverlapIgnoresOtherDatesAndLegacyRows(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryBookingStore(
		row("24/12/2025", "14:00-15:00", "Other day", 9),
		row("25/12/2025", "afternoon", "Legacy", 9),
		row("not a date", "14:00-15:00", "Legacy", 9),
	)
	l := newLedger(store, at("20/10/2025", "09:00"))

	_, err := l.Book(ctx, mustDate(t, l, "25/12/2025"), "14:00-15:00", "Dara", 1)
	assert.NoError(t, err)
}

func TestBook_NoDoubleBookingUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryBookingStore()
	l := newLedger(store, at("20/10/2025", "09:00"))
	day := mustDate(t, l, "25/12/2025")

	slots := []string{"09:00-10:00", "09:30-10:30", "10:00-11:00", "09:45-10:15", "10:30-11:30"}
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = l.Book(ctx, day, slots[i%len(slots)], "User", int64(i))
		}(i)
	}
	wg.Wait()

	rows, err := store.ReadAll(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	for i := range rows {
		for j := i + 1; j < len(rows); j++ {
			a, _ := rows[i].Span()
			b, _ := rows[j].Span()
			assert.False(t, a.Overlaps(b), "%s overlaps %s", rows[i].Time, rows[j].Time)
		}
	}
}

func TestBook_StoreFailure(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.On("ReadAll", mock.Anything).Return(nil, errors.New("timeout"))
	l := newLedger(store, at("20/10/2025", "09:00"))

	_, err := l.Book(ctx, at("25/12/2025", "00:00"), "14:00-15:00", "Dara", 1)
	assert.ErrorIs(t, err, ErrStoreFailure)
	store.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestCancel_OnlyListsOwnedBookings(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryBookingStore(
		row("25/12/2025", "09:00-10:00", "Dara", 1),
		row("25/12/2025", "10:00-11:00", "Sokha", 2),
		row("26/12/2025", "09:00-10:00", "Dara", 1),
	)
	l := newLedger(store, at("20/10/2025", "09:00"))

	own, err := l.Cancel(ctx, 1)
	require.NoError(t, err)
	require.Len(t, own, 2)
	for _, b := range own {
		assert.True(t, b.OwnedBy(1))
	}
	assert.Equal(t, []int{1, 3}, []int{own[0].Index, own[1].Index})

	_, err = l.Cancel(ctx, 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteByIndex(t *testing.T) {
	ctx := context.Background()
	seed := []model.Row{
		row("25/12/2025", "09:00-10:00", "Dara", 1),
		row("25/12/2025", "10:00-11:00", "Sokha", 2),
		row("26/12/2025", "09:00-10:00", "Dara", 1),
	}

	t.Run("bad choices leave the table unchanged", func(t *testing.T) {
		store := repository.NewMemoryBookingStore(seed...)
		l := newLedger(store, at("20/10/2025", "09:00"))
		own, err := l.Cancel(ctx, 1)
		require.NoError(t, err)

		for _, choice := range []string{"0", "3", "-1", "two", ""} {
			_, err := l.DeleteByIndex(ctx, 1, own, choice)
			assert.ErrorIs(t, err, ErrInvalidChoice, "choice %q", choice)
			assert.ErrorIs(t, err, ErrMalformedInput)
		}
		rows, _ := store.ReadAll(ctx)
		assert.Equal(t, seed, rows)
	})

	t.Run("deletes exactly the chosen row", func(t *testing.T) {
		store := repository.NewMemoryBookingStore(seed...)
		l := newLedger(store, at("20/10/2025", "09:00"))
		own, _ := l.Cancel(ctx, 1)

		m, err := l.DeleteByIndex(ctx, 1, own, " 2 ")
		require.NoError(t, err)
		assert.Equal(t, seed[2], m.Booking.Row)
		assert.Len(t, m.Schedule, 2)

		rows, _ := store.ReadAll(ctx)
		assert.Equal(t, seed[:2], rows)
	})

	t.Run("stale position is re-located", func(t *testing.T) {
		store := repository.NewMemoryBookingStore(seed...)
		l := newLedger(store, at("20/10/2025", "09:00"))
		own, _ := l.Cancel(ctx, 1)

		// another session removes row 1 in between
		require.NoError(t, store.DeleteAt(ctx, 1))

		m, err := l.DeleteByIndex(ctx, 1, own, "2")
		require.NoError(t, err)
		assert.Equal(t, 2, m.Booking.Index)
		rows, _ := store.ReadAll(ctx)
		assert.Equal(t, []model.Row{seed[1]}, rows)
	})

	t.Run("vanished booking is not found", func(t *testing.T) {
		store := repository.NewMemoryBookingStore(seed...)
		l := newLedger(store, at("20/10/2025", "09:00"))
		own, _ := l.Cancel(ctx, 1)
		require.NoError(t, store.ClearAndWrite(ctx, model.BookingHeader, []model.Row{seed[1]}))

		_, err := l.DeleteByIndex(ctx, 1, own, "1")
		assert.ErrorIs(t, err, ErrNotFound)
		rows, _ := store.ReadAll(ctx)
		assert.Equal(t, []model.Row{seed[1]}, rows)
	})

	t.Run("selection of another owner is refused", func(t *testing.T) {
		store := repository.NewMemoryBookingStore(seed...)
		l := newLedger(store, at("20/10/2025", "09:00"))
		own, _ := l.Cancel(ctx, 2)

		_, err := l.DeleteByIndex(ctx, 1, own, "1")
		assert.ErrorIs(t, err, ErrNotFound)
		rows, _ := store.ReadAll(ctx)
		assert.Equal(t, seed, rows)
	})
}

func TestEndMeeting_GraceWindow(t *testing.T) {
	ctx := context.Background()
	now := at("01/01/2025", "11:00")

	tests := []struct {
		name     string
		span     string
		eligible bool
	}{
		{name: "running", span: "10:30-11:30", eligible: true},
		{name: "ended 29 minutes ago", span: "10:00-10:31", eligible: true},
		{name: "ended exactly 30 minutes ago", span: "10:00-10:30", eligible: true},
		{name: "ended 31 minutes ago", span: "10:00-10:29", eligible: false},
		{name: "starts now", span: "11:00-12:00", eligible: true},
		{name: "not started", span: "11:01-12:00", eligible: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repository.NewMemoryBookingStore(row("01/01/2025", tt.span, "Dara", 1))
			l := newLedger(store, now)

			m, err := l.EndMeeting(ctx, 1, now)
			rows, _ := store.ReadAll(ctx)
			if tt.eligible {
				require.NoError(t, err)
				assert.Equal(t, tt.span, m.Booking.Time)
				assert.Empty(t, rows)
				return
			}
			assert.ErrorIs(t, err, ErrNoActiveMeeting)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.Len(t, rows, 1)
		})
	}
}

func TestEndMeeting_EarliestStartWins(t *testing.T) {
	ctx := context.Background()
	now := at("01/01/2025", "10:15")
	store := repository.NewMemoryBookingStore(
		row("01/01/2025", "10:00-11:00", "Dara", 1),
		row("01/01/2025", "09:30-09:50", "Dara", 1),
		row("01/01/2025", "10:00-10:30", "Sokha", 2),
	)
	l := newLedger(store, now)

	m, err := l.EndMeeting(ctx, 1, now)
	require.NoError(t, err)
	assert.Equal(t, "09:30-09:50", m.Booking.Time)
	assert.Equal(t, 2, m.Booking.Index)

	_, err = l.EndMeeting(ctx, 3, now)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrNoActiveMeeting)
}

func TestExpireAndSweep_Scenario(t *testing.T) {
	ctx := context.Background()
	seed := row("01/01/2025", "09:00-10:00", "Dara", 1)

	store := repository.NewMemoryBookingStore(seed)
	l := newLedger(store, at("01/01/2025", "09:55"))
	res, err := l.ExpireAndSweep(ctx, at("01/01/2025", "09:55"))
	require.NoError(t, err)
	assert.Empty(t, res.Removed)
	rows, _ := store.ReadAll(ctx)
	assert.Equal(t, []model.Row{seed}, rows)

	res, err = l.ExpireAndSweep(ctx, at("01/01/2025", "10:05"))
	require.NoError(t, err)
	require.Len(t, res.Removed, 1)
	assert.Equal(t, seed, res.Removed[0].Row)
	rows, _ = store.ReadAll(ctx)
	assert.Empty(t, rows)
}

func TestExpireAndSweep_KeepsFutureAndLegacyRowsUnchanged(t *testing.T) {
	ctx := context.Background()
	past1 := row("01/01/2025", "08:00-09:00", "A", 1)
	future := row("02/01/2025", "08:00-09:00", "B", 2)
	legacy := row("someday", "08:00-09:00", "C", 3)
	endsNow := row("01/01/2025", "11:00-12:00", "D", 4)
	past2 := row("31/12/2024", "15:00-16:00", "E", 5)

	store := repository.NewMemoryBookingStore(past1, future, legacy, endsNow, past2)
	now := at("01/01/2025", "12:00")
	l := newLedger(store, now)

	res, err := l.ExpireAndSweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []model.Row{past1, past2}, model.Rows(res.Removed))

	rows, _ := store.ReadAll(ctx)
	assert.Equal(t, []model.Row{future, legacy, endsNow}, rows, "kept rows keep scan order and values")
	assert.Equal(t, []model.Row{endsNow, future, legacy}, model.Rows(res.Kept), "kept view is chronological")
}

func TestExpireAndSweep_RewriteFailureIsDistinct(t *testing.T) {
	ctx := context.Background()
	past := row("01/01/2025", "08:00-09:00", "A", 1)
	future := row("02/01/2025", "08:00-09:00", "B", 2)

	store := &mockStore{}
	store.On("ReadAll", mock.Anything).Return([]model.Row{past, future}, nil)
	store.On("ClearAndWrite", mock.Anything, model.BookingHeader, []model.Row{future}).Return(errors.New("quota exceeded"))

	now := at("01/01/2025", "12:00")
	l := newLedger(store, now)
	res, err := l.ExpireAndSweep(ctx, now)

	assert.ErrorIs(t, err, ErrSweepRewrite)
	assert.ErrorIs(t, err, ErrStoreFailure)
	assert.Len(t, res.Removed, 1)
	store.AssertExpectations(t)
}

func TestExpireAndSweep_NothingExpiredSkipsRewrite(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.On("ReadAll", mock.Anything).Return([]model.Row{row("02/01/2025", "08:00-09:00", "B", 2)}, nil)

	now := at("01/01/2025", "12:00")
	res, err := newLedger(store, now).ExpireAndSweep(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, res.Removed)
	assert.Len(t, res.Kept, 1)
	store.AssertNotCalled(t, "ClearAndWrite", mock.Anything, mock.Anything, mock.Anything)
}

func TestSortedView(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryBookingStore(
		row("broken", "09:00-10:00", "X", 1),
		row("02/01/2025", "09:00-10:00", "C", 1),
		row("01/01/2025", "13:00-14:00", "B", 1),
		row("01/01/2025", "bad", "Y", 1),
		row("01/01/2025", "08:00-09:00", "A", 1),
	)
	l := newLedger(store, at("01/01/2025", "00:00"))

	view, err := l.SortedView(ctx)
	require.NoError(t, err)
	var names []string
	for _, b := range view {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"A", "B", "C", "X", "Y"}, names)
}

func TestAuthorize(t *testing.T) {
	assert.NoError(t, Authorize(171208804, 171208804))
	assert.ErrorIs(t, Authorize(42, 171208804), ErrUnauthorized)
}
