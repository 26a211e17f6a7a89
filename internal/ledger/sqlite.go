//go:build sqlite
// +build sqlite

package ledger

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"calcnotify/pkg/logx"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS reports (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	folder   TEXT NOT NULL,
	ts       INTEGER NOT NULL,
	msg_ids  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS system_errors (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	msg_id  INTEGER NOT NULL
);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("ledger.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Load() (State, error) {
	var st State

	rows, err := s.db.Query(`SELECT folder, ts, msg_ids FROM reports ORDER BY id`)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var rec Record
		var raw string
		if err := rows.Scan(&rec.Folder, &rec.Timestamp, &raw); err != nil {
			return State{}, err
		}
		if err := json.Unmarshal([]byte(raw), &rec.MessageIDs); err != nil {
			return State{}, err
		}
		st.Reports = append(st.Reports, rec)
	}
	if err := rows.Err(); err != nil {
		return State{}, err
	}

	errRows, err := s.db.Query(`SELECT msg_id FROM system_errors ORDER BY id`)
	if err != nil {
		return State{}, err
	}
	defer errRows.Close()
	for errRows.Next() {
		var id int
		if err := errRows.Scan(&id); err != nil {
			return State{}, err
		}
		st.SystemErrors = append(st.SystemErrors, id)
	}
	return st, errRows.Err()
}

// Save rewrites the whole state in one transaction. The ledger is hard-capped
// at a few hundred records, so a full rewrite stays cheap.
func (s *sqliteStore) Save(st State) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM reports`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM system_errors`); err != nil {
		return err
	}
	for _, rec := range st.Reports {
		ids, err := json.Marshal(rec.MessageIDs)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO reports(folder, ts, msg_ids) VALUES(?,?,?)`,
			rec.Folder, rec.Timestamp, string(ids)); err != nil {
			return err
		}
	}
	for _, id := range st.SystemErrors {
		if _, err := tx.Exec(`INSERT INTO system_errors(msg_id) VALUES(?)`, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
