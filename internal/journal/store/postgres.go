package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chronicle/internal/journal/models"
	"chronicle/pkg/platform/sentinel"
)

// Schema is the journal table layout. No update or delete statement exists
// anywhere in this package; the table only grows.
const Schema = `
CREATE TABLE IF NOT EXISTS journal_entries (
	id                 BIGSERIAL PRIMARY KEY,
	event_type         TEXT NOT NULL,
	user_id            BIGINT,
	username           TEXT,
	event_timestamp    TIMESTAMPTZ NOT NULL,
	details_json       TEXT,
	received_timestamp TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_journal_entries_user_id ON journal_entries (user_id);
CREATE INDEX IF NOT EXISTS idx_journal_entries_event_type ON journal_entries (event_type);
`

// PostgresStore persists journal entries in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed journal store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the journal table and indexes if missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure journal schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, entry *models.JournalEntry) (int64, error) {
	query := `
		INSERT INTO journal_entries (
			event_type, user_id, username, event_timestamp, details_json, received_timestamp
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	received := entry.ReceivedTimestamp
	if received.IsZero() {
		received = time.Now()
	}
	var id int64
	err := s.db.QueryRowContext(ctx, query,
		entry.EventType,
		entry.UserID,
		entry.Username,
		entry.EventTimestamp,
		entry.DetailsJSON,
		received,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert journal entry: %w", err)
	}
	return id, nil
}

const selectColumns = `id, event_type, user_id, username, event_timestamp, details_json, received_timestamp`

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*models.JournalEntry, error) {
	query := `SELECT ` + selectColumns + ` FROM journal_entries WHERE id = $1`

	var entry models.JournalEntry
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&entry.ID,
		&entry.EventType,
		&entry.UserID,
		&entry.Username,
		&entry.EventTimestamp,
		&entry.DetailsJSON,
		&entry.ReceivedTimestamp,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("journal entry %d: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get journal entry: %w", err)
	}
	return &entry, nil
}

func (s *PostgresStore) List(ctx context.Context, offset, limit int) ([]models.JournalEntry, int64, error) {
	// COUNT(*) OVER () evaluates against the same snapshot as the rows, so
	// the count can never disagree with the page under concurrent appends.
	query := `
		SELECT ` + selectColumns + `, COUNT(*) OVER () AS total
		FROM journal_entries
		ORDER BY id
		OFFSET $1 LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()
	return s.scanPage(ctx, rows, `SELECT COUNT(*) FROM journal_entries`)
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID int64, offset, limit int) ([]models.JournalEntry, int64, error) {
	query := `
		SELECT ` + selectColumns + `, COUNT(*) OVER () AS total
		FROM journal_entries
		WHERE user_id = $1
		ORDER BY id
		OFFSET $2 LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, userID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list journal entries by user: %w", err)
	}
	defer rows.Close()
	return s.scanPage(ctx, rows, `SELECT COUNT(*) FROM journal_entries WHERE user_id = $1`, userID)
}

func (s *PostgresStore) ListByEventType(ctx context.Context, eventType string, offset, limit int) ([]models.JournalEntry, int64, error) {
	query := `
		SELECT ` + selectColumns + `, COUNT(*) OVER () AS total
		FROM journal_entries
		WHERE event_type = $1
		ORDER BY id
		OFFSET $2 LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, eventType, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list journal entries by event type: %w", err)
	}
	defer rows.Close()
	return s.scanPage(ctx, rows, `SELECT COUNT(*) FROM journal_entries WHERE event_type = $1`, eventType)
}

// scanPage reads windowed rows. When the page is past the end the windowed
// count is unavailable, so the total falls back to the given count query.
func (s *PostgresStore) scanPage(ctx context.Context, rows *sql.Rows, countQuery string, countArgs ...any) ([]models.JournalEntry, int64, error) {
	var (
		entries []models.JournalEntry
		total   int64
	)
	for rows.Next() {
		var entry models.JournalEntry
		err := rows.Scan(
			&entry.ID,
			&entry.EventType,
			&entry.UserID,
			&entry.Username,
			&entry.EventTimestamp,
			&entry.DetailsJSON,
			&entry.ReceivedTimestamp,
			&total,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan journal entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate journal entries: %w", err)
	}

	if len(entries) == 0 {
		if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count journal entries: %w", err)
		}
	}
	return entries, total, nil
}
