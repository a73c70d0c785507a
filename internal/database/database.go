// Package database provides the character store: accounts, characters, and
// their inventory and learned-ability child tables, on SQLite or PostgreSQL.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Store wraps the SQL connection and provides persistence operations.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open opens the store. For the sqlite dialect, dsn is the database file path
// and parent directories are created as needed. For postgres, dsn is the
// connection string.
func Open(dialectType DialectType, dsn string) (*Store, error) {
	dialect := NewDialect(dialectType)

	if dialectType == DialectSQLite {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, stmt := range dialect.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	s := &Store{db: db, dialect: dialect}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the schema if it doesn't exist.
func (s *Store) migrate() error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect.DriverName() == "postgres" {
		serial = "BIGSERIAL PRIMARY KEY"
	}

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id ` + serial + `,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			session_token TEXT NOT NULL DEFAULT '',
			token_expires TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			last_login TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS characters (
			id ` + serial + `,
			account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			name TEXT UNIQUE NOT NULL,
			race TEXT NOT NULL DEFAULT 'human',
			location TEXT NOT NULL DEFAULT 'greenfields',
			x REAL NOT NULL DEFAULT 0,
			y REAL NOT NULL DEFAULT 0,
			z REAL NOT NULL DEFAULT 0,
			rot REAL NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 1,
			experience INTEGER NOT NULL DEFAULT 0,
			health REAL NOT NULL DEFAULT 100,
			max_health REAL NOT NULL DEFAULT 100,
			mana REAL NOT NULL DEFAULT 50,
			max_mana REAL NOT NULL DEFAULT 50,
			strength INTEGER NOT NULL DEFAULT 10,
			endurance INTEGER NOT NULL DEFAULT 10,
			agility INTEGER NOT NULL DEFAULT 10,
			intelligence INTEGER NOT NULL DEFAULT 10,
			wisdom INTEGER NOT NULL DEFAULT 10,
			points INTEGER NOT NULL DEFAULT 0,
			gold INTEGER NOT NULL DEFAULT 20,
			hotbar TEXT NOT NULL DEFAULT '{}',
			quests TEXT NOT NULL DEFAULT '{}',
			equipment TEXT NOT NULL DEFAULT '{}',
			online INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			last_played TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS inventory (
			id ` + serial + `,
			character_id INTEGER NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
			item_key TEXT NOT NULL,
			qty INTEGER NOT NULL DEFAULT 1,
			UNIQUE(character_id, item_key)
		)`,

		`CREATE TABLE IF NOT EXISTS abilities (
			id ` + serial + `,
			character_id INTEGER NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
			ability_key TEXT NOT NULL,
			UNIQUE(character_id, ability_key)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_characters_account_id ON characters(account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_character_id ON inventory(character_id)`,
		`CREATE INDEX IF NOT EXISTS idx_abilities_character_id ON abilities(character_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	return nil
}

// DB returns the underlying sql.DB for advanced operations.
func (s *Store) DB() *sql.DB {
	return s.db
}
