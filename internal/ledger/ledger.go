// Package ledger holds the booking rules of the meeting room: validation,
// overlap detection, owner cancellation, early end and the expiry sweep.
//
// The backing table offers only append, positional delete and bulk
// rewrite, so every mutating operation runs its read-modify-write under a
// single mutex, including the blocking store I/O.  Reads that only serve a
// listing (Cancel, SortedView) do not take the lock.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/meeting-room-bot/internal/logger"
	"github.com/iliyamo/meeting-room-bot/internal/metrics"
	"github.com/iliyamo/meeting-room-bot/internal/model"
	"github.com/iliyamo/meeting-room-bot/internal/repository"
)

// DefaultGrace is how long after its scheduled end a meeting can still be
// ended by its owner.
const DefaultGrace = 30 * time.Minute

// Mutation describes a successful change.  Schedule is the whole table
// after the change, sorted for display, computed inside the critical
// section.
type Mutation struct {
	Booking  model.Booking
	Schedule []model.Booking
}

// SweepResult partitions the table at sweep time.  Kept is sorted for
// display and re-indexed to the positions written by the rewrite.
type SweepResult struct {
	Removed []model.Booking
	Kept    []model.Booking
}

// Ledger is safe for concurrent use.
type Ledger struct {
	mu    sync.Mutex
	store repository.BookingStore
	loc   *time.Location
	clock func() time.Time
	grace time.Duration
	log   *zap.Logger
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.clock = now } }

// WithGrace overrides DefaultGrace.
func WithGrace(d time.Duration) Option { return func(l *Ledger) { l.grace = d } }

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option { return func(l *Ledger) { l.log = logger.OrNop(log) } }

// New returns a ledger over store, reading every date and time in loc.
func New(store repository.BookingStore, loc *time.Location, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		loc:   loc,
		clock: time.Now,
		grace: DefaultGrace,
		log:   zap.NewNop(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Now is the current instant in the ledger's zone.
func (l *Ledger) Now() time.Time { return l.clock().In(l.loc) }

// Location is the ledger's fixed zone.
func (l *Ledger) Location() *time.Location { return l.loc }

// ParseDate validates day/month[/year] text against today.
func (l *Ledger) ParseDate(text string) (time.Time, error) {
	d, err := model.ParseBookingDate(text, l.Now())
	switch {
	case errors.Is(err, model.ErrPastDate):
		return time.Time{}, ErrPastDate
	case err != nil:
		return time.Time{}, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	return d, nil
}

// Book reserves timeText on day for the owner.  The overlap check and the
// append happen under the ledger lock against a fresh read of the table.
func (l *Ledger) Book(ctx context.Context, day time.Time, timeText, ownerName string, ownerID int64) (Mutation, error) {
	span, err := model.ParseTimeRange(timeText)
	if err != nil {
		metrics.RecordBooking("invalid")
		return Mutation{}, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	day = model.StartOfDay(day.In(l.loc))
	if day.Before(model.StartOfDay(l.Now())) {
		metrics.RecordBooking("invalid")
		return Mutation{}, ErrPastDate
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.store.ReadAll(ctx)
	if err != nil {
		metrics.RecordBooking("error")
		return Mutation{}, storeErr("read bookings", err)
	}
	for i, r := range rows {
		d, ok := r.Day(l.loc)
		if !ok || !d.Equal(day) {
			continue
		}
		other, ok := r.Span()
		if !ok {
			l.log.Debug("skipping unparsable row in overlap check", zap.Int("index", i+1), zap.String("time", r.Time))
			continue
		}
		if span.Overlaps(other) {
			metrics.RecordBooking("overlap")
			return Mutation{}, fmt.Errorf("%w: %s %s", ErrOverlap, r.Time, r.Name)
		}
	}

	row := model.NewRow(day, span, ownerName, ownerID)
	if err := l.store.Append(ctx, row); err != nil {
		metrics.RecordBooking("error")
		return Mutation{}, storeErr("append booking", err)
	}
	after := model.BookingsFromRows(append(rows, row))
	metrics.RecordBooking("success")
	metrics.SetScheduleSize(len(after))
	l.log.Info("booking added",
		zap.String("date", row.Date), zap.String("time", row.Time), zap.Int64("owner_id", ownerID))
	return Mutation{Booking: after[len(after)-1], Schedule: SortBookings(after, l.loc)}, nil
}

// Cancel lists the owner's bookings in store order for selection.  It
// returns ErrNotFound when the owner has none.
func (l *Ledger) Cancel(ctx context.Context, ownerID int64) ([]model.Booking, error) {
	rows, err := l.store.ReadAll(ctx)
	if err != nil {
		return nil, storeErr("read bookings", err)
	}
	var own []model.Booking
	for _, b := range model.BookingsFromRows(rows) {
		if b.OwnedBy(ownerID) {
			own = append(own, b)
		}
	}
	if len(own) == 0 {
		return nil, ErrNotFound
	}
	return own, nil
}

// DeleteByIndex removes the booking picked by a 1-based choice from a
// selection previously returned by Cancel for the same owner.  Bad choice
// text leaves the table untouched and returns ErrInvalidChoice.  Positions
// in the selection may be stale, so the row is re-located by value under
// the lock before deleting.
func (l *Ledger) DeleteByIndex(ctx context.Context, ownerID int64, selection []model.Booking, choice string) (Mutation, error) {
	n, err := strconv.Atoi(strings.TrimSpace(choice))
	if err != nil || n < 1 || n > len(selection) {
		return Mutation{}, ErrInvalidChoice
	}
	target := selection[n-1]
	if !target.OwnedBy(ownerID) {
		return Mutation{}, ErrNotFound
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.store.ReadAll(ctx)
	if err != nil {
		return Mutation{}, storeErr("read bookings", err)
	}
	idx := locate(rows, target)
	if idx == 0 {
		return Mutation{}, ErrNotFound
	}
	if err := l.store.DeleteAt(ctx, idx); err != nil {
		if errors.Is(err, repository.ErrRowOutOfRange) {
			return Mutation{}, ErrNotFound
		}
		return Mutation{}, storeErr("delete booking", err)
	}
	deleted := model.Booking{Index: idx, Row: rows[idx-1]}
	after := model.BookingsFromRows(without(rows, idx))
	metrics.CancellationsTotal.Inc()
	metrics.SetScheduleSize(len(after))
	l.log.Info("booking cancelled",
		zap.String("date", deleted.Date), zap.String("time", deleted.Time), zap.Int64("owner_id", ownerID))
	return Mutation{Booking: deleted, Schedule: SortBookings(after, l.loc)}, nil
}

// EndMeeting removes the owner's meeting that is running at now or ended
// at most the grace period ago.  When several qualify the earliest start
// wins, then store order.
func (l *Ledger) EndMeeting(ctx context.Context, ownerID int64, now time.Time) (Mutation, error) {
	now = now.In(l.loc)

	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.store.ReadAll(ctx)
	if err != nil {
		return Mutation{}, storeErr("read bookings", err)
	}
	owned := 0
	var (
		pick      int
		pickStart time.Time
	)
	for i, r := range rows {
		if !r.OwnedBy(ownerID) {
			continue
		}
		owned++
		start, end, ok := r.Interval(l.loc)
		if !ok {
			continue
		}
		if start.After(now) || now.After(end.Add(l.grace)) {
			continue
		}
		if pick == 0 || start.Before(pickStart) {
			pick, pickStart = i+1, start
		}
	}
	if owned == 0 {
		return Mutation{}, ErrNotFound
	}
	if pick == 0 {
		return Mutation{}, ErrNoActiveMeeting
	}

	if err := l.store.DeleteAt(ctx, pick); err != nil {
		return Mutation{}, storeErr("delete booking", err)
	}
	ended := model.Booking{Index: pick, Row: rows[pick-1]}
	after := model.BookingsFromRows(without(rows, pick))
	metrics.MeetingsEndedTotal.Inc()
	metrics.SetScheduleSize(len(after))
	l.log.Info("meeting ended",
		zap.String("date", ended.Date), zap.String("time", ended.Time), zap.Int64("owner_id", ownerID))
	return Mutation{Booking: ended, Schedule: SortBookings(after, l.loc)}, nil
}

// ExpireAndSweep removes every booking whose end is strictly before now
// with one atomic rewrite.  Rows that cannot be parsed are kept.  When the
// rewrite fails the partition is still returned together with an error
// matching ErrSweepRewrite.
func (l *Ledger) ExpireAndSweep(ctx context.Context, now time.Time) (SweepResult, error) {
	now = now.In(l.loc)

	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.store.ReadAll(ctx)
	if err != nil {
		metrics.RecordSweep("error", 0)
		return SweepResult{}, storeErr("read bookings", err)
	}
	var removed []model.Booking
	var kept []model.Row
	for i, r := range rows {
		if _, end, ok := r.Interval(l.loc); ok && end.Before(now) {
			removed = append(removed, model.Booking{Index: i + 1, Row: r})
			continue
		}
		if !r.Valid(l.loc) {
			l.log.Warn("keeping unparsable row", zap.Int("index", i+1), zap.String("date", r.Date), zap.String("time", r.Time))
		}
		kept = append(kept, r)
	}
	res := SweepResult{Removed: removed, Kept: SortBookings(model.BookingsFromRows(kept), l.loc)}
	if len(removed) == 0 {
		metrics.RecordSweep("noop", 0)
		return res, nil
	}

	if err := l.store.ClearAndWrite(ctx, model.BookingHeader, kept); err != nil {
		metrics.RecordSweep("rewrite_failed", 0)
		l.log.Error("sweep rewrite failed", zap.Int("removed", len(removed)), zap.Int("kept", len(kept)), zap.Error(err))
		return res, fmt.Errorf("%w: %w", ErrSweepRewrite, err)
	}
	metrics.RecordSweep("removed", len(removed))
	metrics.SetScheduleSize(len(kept))
	l.log.Info("expired bookings removed", zap.Int("removed", len(removed)), zap.Int("kept", len(kept)))
	return res, nil
}

// SortedView reads the table and orders it for display.
func (l *Ledger) SortedView(ctx context.Context) ([]model.Booking, error) {
	rows, err := l.store.ReadAll(ctx)
	if err != nil {
		return nil, storeErr("read bookings", err)
	}
	return SortBookings(model.BookingsFromRows(rows), l.loc), nil
}

// locate finds target in rows, trusting its position first.  It returns
// the 1-based index or 0.
func locate(rows []model.Row, target model.Booking) int {
	if i := target.Index; i >= 1 && i <= len(rows) && rows[i-1].SameAs(target.Row) {
		return i
	}
	for i, r := range rows {
		if r.SameAs(target.Row) {
			return i + 1
		}
	}
	return 0
}

func without(rows []model.Row, index int) []model.Row {
	out := make([]model.Row, 0, len(rows)-1)
	out = append(out, rows[:index-1]...)
	return append(out, rows[index:]...)
}
