package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/meeting-room-bot/internal/model"
)

// BookingStore is the bookings table.  Rows are addressed by their 1-based
// data position in ReadAll order; position 0 is the header.
type BookingStore interface {
	// ReadAll returns every data row in store order.
	ReadAll(ctx context.Context) ([]model.Row, error)
	// Append adds a row after the last one.
	Append(ctx context.Context, row model.Row) error
	// DeleteAt removes the row at the given 1-based position.
	DeleteAt(ctx context.Context, index int) error
	// ClearAndWrite atomically replaces the whole table with header + rows.
	ClearAndWrite(ctx context.Context, header model.Row, rows []model.Row) error
}

// MySQLBookingStore keeps bookings in the `bookings` table.  Store order is
// the auto increment id, so appended rows always land last and a rewrite
// restores the caller's order.
type MySQLBookingStore struct {
	db *sql.DB
}

// NewMySQLBookingStore returns a store bound to db.
func NewMySQLBookingStore(db *sql.DB) *MySQLBookingStore { return &MySQLBookingStore{db: db} }

// ReadAll scans the table ordered by id.
func (s *MySQLBookingStore) ReadAll(ctx context.Context) ([]model.Row, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT booking_date, time_range, name, telegram_id FROM bookings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var out []model.Row
	for rows.Next() {
		var r model.Row
		if err := rows.Scan(&r.Date, &r.Time, &r.Name, &r.TelegramID); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	return out, nil
}

// Append inserts a single row.
func (s *MySQLBookingStore) Append(ctx context.Context, row model.Row) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bookings (booking_date, time_range, name, telegram_id) VALUES (?,?,?,?)`,
		row.Date, row.Time, row.Name, row.TelegramID)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// DeleteAt resolves the positional row to its id and deletes it inside one
// transaction, so a concurrent append cannot shift the target in between.
func (s *MySQLBookingStore) DeleteAt(ctx context.Context, index int) error {
	if index < 1 {
		return ErrRowOutOfRange
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id uint64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM bookings ORDER BY id LIMIT 1 OFFSET ? FOR UPDATE`, index-1).Scan(&id)
	if err == sql.ErrNoRows {
		return ErrRowOutOfRange
	}
	if err != nil {
		return fmt.Errorf("locate booking %d: %w", index, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete booking %d: %w", index, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// ClearAndWrite replaces the table contents in a single transaction.  The
// header is the column layout of the table itself and is only checked.
func (s *MySQLBookingStore) ClearAndWrite(ctx context.Context, header model.Row, rows []model.Row) error {
	if header != model.BookingHeader {
		return ErrHeaderMismatch
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bookings`); err != nil {
		return fmt.Errorf("clear bookings: %w", err)
	}
	if len(rows) > 0 {
		placeholders := make([]string, len(rows))
		args := make([]interface{}, 0, len(rows)*4)
		for i, r := range rows {
			placeholders[i] = "(?,?,?,?)"
			args = append(args, r.Date, r.Time, r.Name, r.TelegramID)
		}
		q := `INSERT INTO bookings (booking_date, time_range, name, telegram_id) VALUES ` +
			strings.Join(placeholders, ",")
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("rewrite bookings: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rewrite: %w", err)
	}
	return nil
}
