package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/meeting-room-bot/internal/model"
)

// ActivityStore is the append-only user_stats table.
type ActivityStore interface {
	AppendEntry(ctx context.Context, e model.ActivityEntry) error
	ReadEntries(ctx context.Context) ([]model.ActivityEntry, error)
}

// MySQLActivityStore keeps the command audit trail in `user_stats`.  Rows
// are never updated or deleted.
type MySQLActivityStore struct {
	db *sql.DB
}

func NewMySQLActivityStore(db *sql.DB) *MySQLActivityStore { return &MySQLActivityStore{db: db} }

// AppendEntry inserts one audit row.
func (s *MySQLActivityStore) AppendEntry(ctx context.Context, e model.ActivityEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_stats (telegram_id, name, command, date_time) VALUES (?,?,?,?)`,
		e.TelegramID, e.Name, e.Command, e.DateTime)
	if err != nil {
		return fmt.Errorf("insert user_stats: %w", err)
	}
	return nil
}

// ReadEntries returns all audit rows in insertion order.
func (s *MySQLActivityStore) ReadEntries(ctx context.Context) ([]model.ActivityEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT telegram_id, name, command, date_time FROM user_stats ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query user_stats: %w", err)
	}
	defer rows.Close()

	var out []model.ActivityEntry
	for rows.Next() {
		var e model.ActivityEntry
		if err := rows.Scan(&e.TelegramID, &e.Name, &e.Command, &e.DateTime); err != nil {
			return nil, fmt.Errorf("scan user_stats: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user_stats: %w", err)
	}
	return out, nil
}
