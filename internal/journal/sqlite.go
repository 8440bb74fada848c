package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite journal store. The journal has exactly
// one writer goroutine at any time, so a single connection is enough.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=60000", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS key_events (
		key TEXT NOT NULL,
		kind TEXT NOT NULL,
		size INTEGER NOT NULL,
		type TEXT,
		ttl_millis INTEGER NOT NULL,
		detail TEXT,
		recorded_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_key_events_kind ON key_events(kind);
	`

	_, err := s.db.Exec(query)
	return err
}

// Reset clears events from previous runs. The journal describes a single run,
// like the manifest.
func (s *SQLiteStore) Reset() error {
	_, err := s.db.Exec(`DELETE FROM key_events`)
	return err
}

// RecordEvent appends one key event
func (s *SQLiteStore) RecordEvent(event *KeyEvent) error {
	event.RecordedAt = time.Now()

	query := `
	INSERT INTO key_events (key, kind, size, type, ttl_millis, detail, recorded_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		event.Key,
		event.Kind,
		event.Size,
		event.Type,
		event.TTLMillis,
		event.Detail,
		event.RecordedAt,
	)
	return err
}

// ListEvents returns all events of one kind in recording order
func (s *SQLiteStore) ListEvents(kind EventKind) ([]*KeyEvent, error) {
	query := `
	SELECT key, kind, size, type, ttl_millis, detail, recorded_at
	FROM key_events WHERE kind = ?
	ORDER BY rowid ASC
	`

	rows, err := s.db.Query(query, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*KeyEvent

	for rows.Next() {
		var event KeyEvent
		var keyType, detail sql.NullString

		err := rows.Scan(
			&event.Key,
			&event.Kind,
			&event.Size,
			&keyType,
			&event.TTLMillis,
			&detail,
			&event.RecordedAt,
		)
		if err != nil {
			return nil, err
		}

		if keyType.Valid {
			event.Type = keyType.String
		}
		if detail.Valid {
			event.Detail = detail.String
		}

		events = append(events, &event)
	}

	return events, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
