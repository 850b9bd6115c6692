package cleanup

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Ledger records every temp file handed out so a later run can remove
// whatever a crashed process left behind.
type Ledger struct {
	db *sql.DB
}

// Entry is one recorded temp file
type Entry struct {
	ID        string
	Path      string
	Purpose   string
	CreatedAt time.Time
}

// OpenLedger opens (or creates) the SQLite ledger at dbPath.
func OpenLedger(dbPath string) (*Ledger, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// A single connection keeps writes serialized; SQLite would otherwise return SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS temp_files (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		purpose TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_temp_files_created_at ON temp_files(created_at);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger table: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Record stores a newly issued temp file.
func (l *Ledger) Record(e Entry) error {
	_, err := l.db.Exec(
		`INSERT OR REPLACE INTO temp_files (id, path, purpose, created_at) VALUES (?, ?, ?, ?)`,
		e.ID, e.Path, e.Purpose, e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record temp file: %w", err)
	}
	return nil
}

// Forget removes a released temp file from the ledger.
func (l *Ledger) Forget(id string) error {
	if _, err := l.db.Exec(`DELETE FROM temp_files WHERE id = ?`, id); err != nil {
		return fmt.Errorf("forget temp file: %w", err)
	}
	return nil
}

// Entries lists all outstanding temp files, oldest first.
func (l *Ledger) Entries() ([]Entry, error) {
	rows, err := l.db.Query(`SELECT id, path, purpose, created_at FROM temp_files ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list temp files: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			created int64
		)
		if err := rows.Scan(&e.ID, &e.Path, &e.Purpose, &created); err != nil {
			return nil, fmt.Errorf("scan temp file: %w", err)
		}
		e.CreatedAt = time.Unix(0, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database connection
func (l *Ledger) Close() error {
	return l.db.Close()
}
