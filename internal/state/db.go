// Package state is the durable store behind crash recovery: the per-channel
// delivery watermark, the staged pending batch, and advisory run counters.
// Every write is persisted immediately; there is no write-behind window.
package state

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection holding archiver state.
type DB struct {
	*sql.DB
	path string
}

// Open opens (or creates) the state database with WAL mode and durable
// synchronous writes. A store that fails its integrity check is discarded
// and recreated empty: a lost watermark only causes a harmless re-delivery,
// while refusing to start loses everything that follows.
func Open(path string) (*DB, error) {
	db, err := open(path)
	if err == nil {
		return db, nil
	}

	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		_ = os.Remove(path + suffix)
	}
	db, retryErr := open(path)
	if retryErr != nil {
		return nil, fmt.Errorf("recreate state db after %v: %w", err, retryErr)
	}
	return db, nil
}

func open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=FULL")
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping state db: %w", err)
	}

	var check string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&check); err != nil || check != "ok" {
		_ = db.Close()
		return nil, fmt.Errorf("state db integrity: %q %v", check, err)
	}
	return &DB{DB: db, path: path}, nil
}

// StateError wraps a durable-store failure during normal operation.
type StateError struct {
	Action string
	Err    error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state %s: %v", e.Action, e.Err)
}

func (e *StateError) Unwrap() error { return e.Err }
