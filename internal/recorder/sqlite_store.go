package recorder

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists the history buffer to a local SQLite database as a
// single JSON blob, so the history survives process restarts without any
// external service.
type SQLiteStore struct {
	db *sql.DB
}

const createHistoryTable = `
CREATE TABLE IF NOT EXISTS execution_history (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	payload BLOB NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if _, err := db.Exec(createHistoryTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load reads the persisted buffer. An empty database yields an empty history.
func (s *SQLiteStore) Load() ([]Record, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM execution_history WHERE id = 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return records, nil
}

// Save overwrites the persisted buffer.
func (s *SQLiteStore) Save(records []Record) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO execution_history (id, payload, updated_at) VALUES (1, ?, ?)`,
		payload, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
