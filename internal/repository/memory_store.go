package repository

import (
	"context"
	"sync"

	"github.com/iliyamo/meeting-room-bot/internal/model"
)

// MemoryBookingStore is a process local BookingStore.  It is used when no
// database is configured and throughout the tests.
type MemoryBookingStore struct {
	mu   sync.RWMutex
	rows []model.Row
}

// NewMemoryBookingStore seeds the store with rows, copied.
func NewMemoryBookingStore(rows ...model.Row) *MemoryBookingStore {
	return &MemoryBookingStore{rows: append([]model.Row(nil), rows...)}
}

func (s *MemoryBookingStore) ReadAll(ctx context.Context) ([]model.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Row(nil), s.rows...), nil
}

func (s *MemoryBookingStore) Append(ctx context.Context, row model.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.rows = append(s.rows, row)
	s.mu.Unlock()
	return nil
}

func (s *MemoryBookingStore) DeleteAt(ctx context.Context, index int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 1 || index > len(s.rows) {
		return ErrRowOutOfRange
	}
	s.rows = append(s.rows[:index-1], s.rows[index:]...)
	return nil
}

func (s *MemoryBookingStore) ClearAndWrite(ctx context.Context, header model.Row, rows []model.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if header != model.BookingHeader {
		return ErrHeaderMismatch
	}
	s.mu.Lock()
	s.rows = append([]model.Row(nil), rows...)
	s.mu.Unlock()
	return nil
}

// MemoryActivityStore is a process local ActivityStore.
type MemoryActivityStore struct {
	mu      sync.RWMutex
	entries []model.ActivityEntry
}

func NewMemoryActivityStore() *MemoryActivityStore { return &MemoryActivityStore{} }

func (s *MemoryActivityStore) AppendEntry(ctx context.Context, e model.ActivityEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	return nil
}

func (s *MemoryActivityStore) ReadEntries(ctx context.Context) ([]model.ActivityEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ActivityEntry(nil), s.entries...), nil
}
