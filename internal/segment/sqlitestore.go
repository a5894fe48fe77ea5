package segment

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteBackend persists the store's payload in a SQLite database. Each save
// runs in a transaction, so replacement is atomic without any temp-file
// dance. Useful on hosts that already carry a SQLite database for other
// ride data.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (creating if needed) a SQLite database at the given
// path and prepares the payload table.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment database: %w", err)
	}

	// Single-writer access pattern; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	const schema = `
		CREATE TABLE IF NOT EXISTS segment_payload (
			id      INTEGER PRIMARY KEY CHECK (id = 1),
			payload BLOB NOT NULL
		);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create segment schema: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// Load reads the stored payload. An empty database is not an error.
func (b *SQLiteBackend) Load() ([]byte, bool, error) {
	var payload []byte
	err := b.db.QueryRow(`SELECT payload FROM segment_payload WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load segment payload: %w", err)
	}
	return payload, true, nil
}

// Save atomically replaces the stored payload.
func (b *SQLiteBackend) Save(data []byte) error {
	_, err := b.db.Exec(`
		INSERT INTO segment_payload (id, payload) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET payload = excluded.payload`, data)
	if err != nil {
		return fmt.Errorf("failed to save segment payload: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
