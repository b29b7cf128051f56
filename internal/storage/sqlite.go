package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteAdapter persists the record as a JSON document in SQLite, keeping
// one row per snapshot. Load reads the newest snapshot; older rows remain as
// history until pruned.
type SQLiteAdapter struct {
	db      *sql.DB
	history int
}

// NewSQLiteAdapter opens (or creates) the database at path. history is the
// number of snapshots to retain; 0 keeps only the latest.
func NewSQLiteAdapter(path string, history int) (*SQLiteAdapter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating store directory: %v", ErrIO, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrIO, path, err)
	}
	a := &SQLiteAdapter{db: db, history: history}
	if err := a.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *SQLiteAdapter) initialize() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		doc TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := a.db.Exec(schema); err != nil {
		return fmt.Errorf("%w: creating schema: %v", ErrIO, err)
	}
	return nil
}

// Load implements Adapter.
func (a *SQLiteAdapter) Load() (*ContainerRecord, error) {
	var doc string
	err := a.db.QueryRow(`SELECT doc FROM snapshots ORDER BY id DESC LIMIT 1`).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading snapshot: %v", ErrIO, err)
	}
	rec := &ContainerRecord{}
	if err := json.Unmarshal([]byte(doc), rec); err != nil {
		return nil, fmt.Errorf("%w: decoding snapshot: %v", ErrIO, err)
	}
	return rec, nil
}

// Save implements Adapter.
func (a *SQLiteAdapter) Save(rec *ContainerRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encoding record: %v", ErrIO, err)
	}
	if _, err := a.db.Exec(`INSERT INTO snapshots (doc) VALUES (?)`, string(raw)); err != nil {
		return fmt.Errorf("%w: writing snapshot: %v", ErrIO, err)
	}
	prune := `DELETE FROM snapshots WHERE id NOT IN
		(SELECT id FROM snapshots ORDER BY id DESC LIMIT ?)`
	if _, err := a.db.Exec(prune, a.history+1); err != nil {
		return fmt.Errorf("%w: pruning snapshots: %v", ErrIO, err)
	}
	return nil
}

// Close releases the database handle.
func (a *SQLiteAdapter) Close() error { return a.db.Close() }
