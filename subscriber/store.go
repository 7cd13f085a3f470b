package subscriber

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/jmoiron/sqlx"

	"dailybread/core/logger"
)

// Store persists subscribers. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the subscriber for chatID or ErrNotFound.
	Get(ctx context.Context, chatID int64) (*Subscriber, error)
	// ListActive returns all active subscribers in chat id order.
	ListActive(ctx context.Context) ([]Subscriber, error)
	// Upsert inserts or fully replaces the subscriber record.
	Upsert(ctx context.Context, s *Subscriber) error
	// Advance moves current_day from fromDay to fromDay+1 and records the
	// send, but only if current_day still equals fromDay. Returns false
	// when another writer got there first.
	Advance(ctx context.Context, chatID int64, fromDay int, sentDate string) (bool, error)
	// Activate sets the active flag, keeping progress intact.
	Activate(ctx context.Context, chatID int64) error
	// Deactivate clears the active flag, keeping progress intact.
	Deactivate(ctx context.Context, chatID int64) error
	// SetSendTime updates only the per-chat send time override.
	SetSendTime(ctx context.Context, chatID int64, sendTime string) error
	// SetLanguage updates only the chat's language.
	SetLanguage(ctx context.Context, chatID int64, lang string) error
	// Reset returns the subscriber to day 1 with send history cleared.
	Reset(ctx context.Context, chatID int64) error
	// Remove deletes the record entirely.
	Remove(ctx context.Context, chatID int64) error
	// Count returns total and active subscriber counts.
	Count(ctx context.Context) (total, active int, err error)
}

// SQLStore is the sqlite-backed Store.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (st *SQLStore) Get(ctx context.Context, chatID int64) (*Subscriber, error) {
	var s Subscriber
	err := st.db.GetContext(ctx, &s,
		`SELECT chat_id, current_day, active, language, send_time, enrolled_at, last_sent_day, last_sent_date
		 FROM subscribers WHERE chat_id = ?`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("subscriber: get %d: %w", chatID, err)
	}
	return &s, nil
}

func (st *SQLStore) ListActive(ctx context.Context) ([]Subscriber, error) {
	var out []Subscriber
	err := st.db.SelectContext(ctx, &out,
		`SELECT chat_id, current_day, active, language, send_time, enrolled_at, last_sent_day, last_sent_date
		 FROM subscribers WHERE active = 1 ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("subscriber: list active: %w", err)
	}
	return out, nil
}

func (st *SQLStore) Upsert(ctx context.Context, s *Subscriber) error {
	start := time.Now()
	_, err := st.db.ExecContext(ctx,
		`INSERT INTO subscribers (chat_id, current_day, active, language, send_time, enrolled_at, last_sent_day, last_sent_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET
			current_day = excluded.current_day,
			active = excluded.active,
			language = excluded.language,
			send_time = excluded.send_time,
			enrolled_at = excluded.enrolled_at,
			last_sent_day = excluded.last_sent_day,
			last_sent_date = excluded.last_sent_date`,
		s.ChatID, s.CurrentDay, s.Active, s.Language, s.SendTime, s.EnrolledAt, s.LastSentDay, s.LastSentDate)
	if err != nil {
		return fmt.Errorf("subscriber: upsert %d: %w", s.ChatID, err)
	}
	logger.STORE.Debug("subscriber upserted",
		slog.String("event", "store.upsert"),
		slog.Int64("chat_id", s.ChatID),
		slog.Int("day", s.CurrentDay),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

func (st *SQLStore) Advance(ctx context.Context, chatID int64, fromDay int, sentDate string) (bool, error) {
	res, err := st.db.ExecContext(ctx,
		`UPDATE subscribers
		 SET current_day = current_day + 1, last_sent_day = ?, last_sent_date = ?
		 WHERE chat_id = ? AND current_day = ?`,
		fromDay, sentDate, chatID, fromDay)
	if err != nil {
		return false, fmt.Errorf("subscriber: advance %d: %w", chatID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("subscriber: advance %d: %w", chatID, err)
	}
	if n == 0 {
		logger.STORE.Warn("advance skipped, day already moved",
			slog.String("event", "store.advance_conflict"),
			slog.Int64("chat_id", chatID),
			slog.Int("day", fromDay),
		)
		return false, nil
	}
	return true, nil
}

func (st *SQLStore) Activate(ctx context.Context, chatID int64) error {
	return st.exec(ctx, "activate", chatID,
		`UPDATE subscribers SET active = 1 WHERE chat_id = ?`, chatID)
}

func (st *SQLStore) Deactivate(ctx context.Context, chatID int64) error {
	return st.exec(ctx, "deactivate", chatID,
		`UPDATE subscribers SET active = 0 WHERE chat_id = ?`, chatID)
}

func (st *SQLStore) Reset(ctx context.Context, chatID int64) error {
	return st.exec(ctx, "reset", chatID,
		`UPDATE subscribers SET current_day = 1, active = 1, last_sent_day = 0, last_sent_date = '' WHERE chat_id = ?`, chatID)
}

func (st *SQLStore) SetSendTime(ctx context.Context, chatID int64, sendTime string) error {
	return st.exec(ctx, "set_send_time", chatID,
		`UPDATE subscribers SET send_time = ? WHERE chat_id = ?`, sendTime, chatID)
}

func (st *SQLStore) SetLanguage(ctx context.Context, chatID int64, lang string) error {
	return st.exec(ctx, "set_language", chatID,
		`UPDATE subscribers SET language = ? WHERE chat_id = ?`, lang, chatID)
}

func (st *SQLStore) Remove(ctx context.Context, chatID int64) error {
	return st.exec(ctx, "remove", chatID,
		`DELETE FROM subscribers WHERE chat_id = ?`, chatID)
}

func (st *SQLStore) exec(ctx context.Context, op string, chatID int64, query string, args ...any) error {
	res, err := st.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("subscriber: %s %d: %w", op, chatID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("subscriber: %s %d: %w", op, chatID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (st *SQLStore) Count(ctx context.Context) (int, int, error) {
	var row struct {
		Total  int `db:"total"`
		Active int `db:"active"`
	}
	err := st.db.GetContext(ctx, &row,
		`SELECT COUNT(*) AS total, COALESCE(SUM(active), 0) AS active FROM subscribers`)
	if err != nil {
		return 0, 0, fmt.Errorf("subscriber: count: %w", err)
	}
	return row.Total, row.Active, nil
}
