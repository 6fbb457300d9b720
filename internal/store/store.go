// Package store persists decoded exec events in SQLite so the host's exec
// history survives daemon restarts and can be queried offline.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/your-org/execmon/internal/model"
)

type DB struct {
	db *sql.DB
}

func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "execmon.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &DB{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS exec_events (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		pid       INTEGER NOT NULL,
		ppid      INTEGER NOT NULL,
		comm      TEXT NOT NULL,
		filename  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exec_events_pid ON exec_events(pid);
	CREATE INDEX IF NOT EXISTS idx_exec_events_timestamp ON exec_events(timestamp);`

	_, err := db.Exec(schema)
	return err
}

func (d *DB) InsertExecEvent(ev model.Event) error {
	_, err := d.db.Exec(
		`INSERT INTO exec_events (timestamp, pid, ppid, comm, filename)
		 VALUES (?, ?, ?, ?, ?)`,
		ev.Timestamp, ev.Pid, ev.Ppid, ev.Comm, ev.Filename,
	)
	if err != nil {
		return fmt.Errorf("insert exec event: %w", err)
	}
	return nil
}

// CountExecEvents returns the number of stored events, mostly for tests
// and ad hoc inspection.
func (d *DB) CountExecEvents() (int64, error) {
	var n int64
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM exec_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count exec events: %w", err)
	}
	return n, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}
