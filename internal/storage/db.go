package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"lessonmap/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL UNIQUE,
  profile TEXT NOT NULL,
  inputPath TEXT NOT NULL,
  inputHash TEXT NOT NULL,
  status TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  durationMs INTEGER NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS lesson_ids (
  longId TEXT PRIMARY KEY,
  shortId INTEGER NOT NULL,
  title TEXT NOT NULL,
  runId TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_lesson_ids_shortId ON lesson_ids(shortId);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// PreviousAssignments returns the long id to short id assignment of the last
// committed run.
func (d *DB) PreviousAssignments() (map[string]int, error) {
	rows, err := d.conn.Query(`SELECT longId, shortId FROM lesson_ids`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var longID string
		var shortID int
		if err := rows.Scan(&longID, &shortID); err != nil {
			return nil, err
		}
		out[longID] = shortID
	}
	return out, rows.Err()
}

// SaveRun records run. A non-nil assignments slice replaces the stored
// assignment in the same transaction.
func (d *DB) SaveRun(run internal.RunRow, assignments []internal.AssignmentRow) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	countsJSON, err := json.Marshal(run.Counts)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`
INSERT INTO runs (runId, profile, inputPath, inputHash, status, countsJson, durationMs)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, run.RunID, run.Profile, run.InputPath, run.InputHash, run.Status, string(countsJSON), run.DurationMs); err != nil {
		return err
	}

	if assignments != nil {
		if _, err := tx.Exec(`DELETE FROM lesson_ids`); err != nil {
			return err
		}
		stmt, err := tx.Prepare(`INSERT INTO lesson_ids (longId, shortId, title, runId) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, a := range assignments {
			if _, err := stmt.Exec(a.LongID, a.ShortID, a.Title, run.RunID); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (d *DB) ListRuns(limit int) ([]internal.RunRow, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := d.conn.Query(`
SELECT id, runId, profile, inputPath, inputHash, status, countsJson, durationMs, createdAt
FROM runs ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RunRow
	for rows.Next() {
		var row internal.RunRow
		var countsJSON string
		if err := rows.Scan(&row.ID, &row.RunID, &row.Profile, &row.InputPath, &row.InputHash, &row.Status, &countsJSON, &row.DurationMs, &row.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(countsJSON), &row.Counts); err != nil {
			return nil, fmt.Errorf("run %s counts: %w", row.RunID, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
