// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists entries in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed store and ensures its schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureSchema(db); err != nil {
		return nil, fmt.Errorf("audit schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// OpenSQLite opens dsn with the sqlite driver and returns a store over it.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	store, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record stores a single entry.
func (s *SQLiteStore) Record(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dispatch_decisions (
			decision_id, proceeding, reply, responsibility, person, model, outcome, error_text, decided_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.Proceeding,
		e.Reply,
		e.Responsibility,
		e.Person,
		e.Model,
		e.Outcome,
		e.Error,
		normalizeTime(e.At),
	)
	return err
}

// List returns entries matching the filter, oldest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT decision_id, proceeding, reply, responsibility, person, model, outcome, error_text, decided_at
		FROM dispatch_decisions
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.Person != "" {
		addFilter("person = ?", filter.Person)
	}
	if filter.Responsibility != "" {
		addFilter("responsibility = ?", filter.Responsibility)
	}
	if filter.Outcome != "" {
		addFilter("outcome = ?", filter.Outcome)
	}
	query += where + " ORDER BY decided_at ASC, rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			decided sql.NullTime
		)
		if err := rows.Scan(
			&e.ID,
			&e.Proceeding,
			&e.Reply,
			&e.Responsibility,
			&e.Person,
			&e.Model,
			&e.Outcome,
			&e.Error,
			&decided,
		); err != nil {
			return nil, err
		}
		if decided.Valid {
			e.At = decided.Time
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS dispatch_decisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			decision_id TEXT NOT NULL,
			proceeding TEXT NOT NULL,
			reply TEXT NOT NULL,
			responsibility TEXT NOT NULL DEFAULT '',
			person TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL,
			outcome TEXT NOT NULL,
			error_text TEXT NOT NULL DEFAULT '',
			decided_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_dispatch_decisions_person ON dispatch_decisions(person);
		CREATE INDEX IF NOT EXISTS idx_dispatch_decisions_outcome ON dispatch_decisions(outcome);
	`)
	return err
}
