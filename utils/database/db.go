package database

import (
	"fmt"
	"strings"

	"slopsbot/model"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Store is the sqlite-backed persistence gateway.
type Store struct {
	db *sqlx.DB
}

// Open connects to the sqlite database at dbPath and ensures all tables exist.
func Open(dbPath string) (*Store, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// sqlite allows a single writer; serialising here keeps concurrent scans from hitting SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func createTables(db *sqlx.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS cards (
			role TEXT NOT NULL,
			message_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			guild_id TEXT NOT NULL,
			PRIMARY KEY (role, message_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_cards_guild_role ON cards (guild_id, role);`,
		`CREATE TABLE IF NOT EXISTS role_grants (
			user_id TEXT NOT NULL,
			guild_id TEXT NOT NULL,
			role TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			timestamp DATETIME NOT NULL,
			PRIMARY KEY (user_id, guild_id)
		);`,
		`CREATE TABLE IF NOT EXISTS pins (
			message_id TEXT NOT NULL PRIMARY KEY,
			user_id TEXT NOT NULL,
			guild_id TEXT NOT NULL,
			pinned INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS schedule_marks (
			name TEXT NOT NULL PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, schema := range schemas {
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ model.Store = (*Store)(nil)
