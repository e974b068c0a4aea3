// Package history is the local snapshot archive behind the export
// command. The dashboard itself keeps no durable state; writing here
// happens only when the user explicitly exports, never as a side effect
// of viewing or mutating work items.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aechclawbot/opsdash/internal/workitem"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    taken_at TIMESTAMP NOT NULL,
    gateway_url TEXT,
    item_count INTEGER NOT NULL,
    note TEXT
);

CREATE TABLE IF NOT EXISTS snapshot_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    snapshot_id INTEGER NOT NULL REFERENCES snapshots(id),
    item_id TEXT NOT NULL,
    source TEXT NOT NULL,
    kind TEXT NOT NULL,
    title TEXT NOT NULL,
    status TEXT NOT NULL,
    priority TEXT,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshot_items_snapshot_id ON snapshot_items(snapshot_id);
CREATE INDEX IF NOT EXISTS idx_snapshot_items_status ON snapshot_items(status);
`

// Store provides SQLite-backed snapshot persistence
type Store struct {
	db *sql.DB
}

// Snapshot is one archived copy of the merged work item list.
type Snapshot struct {
	ID         int64
	TakenAt    time.Time
	GatewayURL string
	ItemCount  int
	Note       string
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot archives the given items as one snapshot and returns its ID.
func (s *Store) SaveSnapshot(gatewayURL, note string, items []workitem.WorkItem) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO snapshots (taken_at, gateway_url, item_count, note)
		VALUES (?, ?, ?, ?)
	`, time.Now(), gatewayURL, len(items), note)
	if err != nil {
		return 0, err
	}
	snapID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO snapshot_items (snapshot_id, item_id, source, kind, title, status, priority, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, it := range items {
		payload, err := json.Marshal(it)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.Exec(
			snapID,
			it.ID.String(),
			string(it.Source),
			string(it.Kind),
			it.Title,
			string(it.Status),
			string(it.Priority),
			string(payload),
		); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return snapID, nil
}

// ListSnapshots returns all snapshots, newest first.
func (s *Store) ListSnapshots() ([]Snapshot, error) {
	rows, err := s.db.Query(`
		SELECT id, taken_at, gateway_url, item_count, note
		FROM snapshots ORDER BY taken_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.TakenAt, &snap.GatewayURL, &snap.ItemCount, &snap.Note); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// SnapshotItems returns the archived items of one snapshot.
func (s *Store) SnapshotItems(snapshotID int64) ([]workitem.WorkItem, error) {
	rows, err := s.db.Query(`
		SELECT payload FROM snapshot_items WHERE snapshot_id = ? ORDER BY id
	`, snapshotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []workitem.WorkItem
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var it workitem.WorkItem
		if err := json.Unmarshal([]byte(payload), &it); err != nil {
			return nil, fmt.Errorf("decoding archived item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
