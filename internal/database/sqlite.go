// Package database provides SQLite persistence for the identity audit log.
package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	// an in-memory database lives only as long as its connection
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init database: couldn't set journal mode: %v", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init database: %v", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	if err := initTable(db, "verification", `
		CREATE TABLE IF NOT EXISTS verification (
			id           INTEGER PRIMARY KEY,
			fingerprint  TEXT NOT NULL,
			user_id      TEXT,
			outcome      TEXT NOT NULL,
			status       INTEGER NOT NULL,
			created_at   INTEGER NOT NULL
		);`,
	); err != nil {
		return err
	}

	if err := initTable(db, "verification_created_at", `
		CREATE INDEX IF NOT EXISTS verification_created_at
		ON verification (created_at);`,
	); err != nil {
		return err
	}

	return nil
}

func initTable(
	db *sql.DB,
	name string,
	sql string,
) error {
	if _, err := db.Exec(sql); err != nil {
		return fmt.Errorf("failed to init '%s' table schema: %v", name, err)
	}
	return nil
}
