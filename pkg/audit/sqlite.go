package audit

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists chain entries in a local SQLite file. It doubles
// as the durable tail the logger resumes from after a restart.
type SQLiteStore struct {
	db *sql.DB
}

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_log (
    sequence      INTEGER PRIMARY KEY,
    ts            TEXT NOT NULL,
    previous_hash TEXT NOT NULL,
    payload       TEXT NOT NULL,
    hash          TEXT NOT NULL
);
`

// OpenSQLiteStore opens (or creates) the audit database at path.
// Use ":memory:" for an ephemeral store.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open sqlite: %w", err)
	}
	if _, err := db.Exec(auditSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Write(entry *LogEntry) error {
	_, err := s.db.Exec(
		`INSERT INTO audit_log (sequence, ts, previous_hash, payload, hash) VALUES (?, ?, ?, ?, ?)`,
		entry.Sequence, entry.Timestamp, entry.PreviousHash, entry.Payload, entry.Hash,
	)
	if err != nil {
		return fmt.Errorf("audit: insert entry: %w", err)
	}
	return nil
}

// Head returns the hash and sequence of the newest stored entry, or
// ("", 0) for an empty store.
func (s *SQLiteStore) Head() (string, int64, error) {
	var (
		hash     string
		sequence int64
	)
	err := s.db.QueryRow(`SELECT hash, sequence FROM audit_log ORDER BY sequence DESC LIMIT 1`).
		Scan(&hash, &sequence)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("audit: read head: %w", err)
	}
	return hash, sequence, nil
}

// Entries returns the whole chain in sequence order.
func (s *SQLiteStore) Entries() ([]*LogEntry, error) {
	rows, err := s.db.Query(
		`SELECT sequence, ts, previous_hash, payload, hash FROM audit_log ORDER BY sequence ASC`)
	if err != nil {
		return nil, fmt.Errorf("audit: list entries: %w", err)
	}
	defer rows.Close()

	var entries []*LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.Sequence, &e.Timestamp, &e.PreviousHash, &e.Payload, &e.Hash); err != nil {
			return nil, fmt.Errorf("audit: scan entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
