// Package store is the durable storage layer: a key-value table for answers,
// question snapshots, and quiz state, plus an indexed attachment table with
// store-assigned surrogate ids. Everything is scoped by the
// (assignment id, sub id) unit encoded through the storekey codec.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attachments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		assignment_id TEXT NOT NULL,
		sub_id TEXT NOT NULL,
		file_name TEXT NOT NULL,
		file_type TEXT NOT NULL DEFAULT '',
		data TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS attachments_unit_idx ON attachments(assignment_id, sub_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// setEntry upserts a raw key-value pair.
func (s *Store) setEntry(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO entries (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// getEntry returns the value for a key, with ok=false when the key is absent.
func (s *Store) getEntry(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM entries WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// ClearEntries removes all key-value entries (answers, snapshots, quiz state).
func (s *Store) ClearEntries() error {
	_, err := s.db.Exec(`DELETE FROM entries`)
	return err
}

// ClearAll wipes both the entry table and the attachment table in a single
// transaction. Used by the "clear all data" operation.
func (s *Store) ClearAll() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM entries`); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM attachments`); err != nil {
		return fmt.Errorf("clear attachments: %w", err)
	}
	return tx.Commit()
}
