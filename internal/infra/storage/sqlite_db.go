package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// InitSQLite initializes the local SQLite database and creates the necessary schemas
// for persisting the game clock, chambers, occupants, settings and the immutable event log.
func InitSQLite(dbPath string) (*sql.DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := createSchemas(db, sqliteSchemas); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}

	return db, nil
}

// NewSQLiteStore wraps an initialized SQLite database.
func NewSQLiteStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, dialect: dialectSQLite}
}

// OpenSQLite initializes the database at dbPath and returns a store over it.
func OpenSQLite(dbPath string) (*SQLStore, error) {
	db, err := InitSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	return NewSQLiteStore(db), nil
}

var sqliteSchemas = []string{
	`CREATE TABLE IF NOT EXISTS game_state (
		game_id TEXT PRIMARY KEY,
		tick INTEGER NOT NULL DEFAULT 0,
		last_updated DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS settings (
		game_id TEXT PRIMARY KEY,
		addiction_enabled BOOLEAN NOT NULL,
		unage_rate_per_step INTEGER NOT NULL,
		fuel_rate_per_year INTEGER NOT NULL,
		last_updated DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS chambers (
		chamber_id TEXT NOT NULL,
		game_id TEXT NOT NULL,
		occupant_id TEXT NOT NULL DEFAULT '',
		cooldown_remaining INTEGER NOT NULL,
		enter_time INTEGER NOT NULL,
		fuel REAL NOT NULL,
		fuel_capacity REAL NOT NULL,
		switched_on BOOLEAN NOT NULL DEFAULT 1,
		PRIMARY KEY (game_id, chamber_id),
		FOREIGN KEY (game_id) REFERENCES game_state(game_id)
	);`,
	`CREATE TABLE IF NOT EXISTS occupants (
		occupant_id TEXT NOT NULL,
		game_id TEXT NOT NULL,
		name TEXT,
		bio_age_ticks INTEGER NOT NULL,
		afflictions_json TEXT NOT NULL,
		needs_json TEXT NOT NULL,
		PRIMARY KEY (game_id, occupant_id),
		FOREIGN KEY (game_id) REFERENCES game_state(game_id)
	);`,
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		game_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		event_type TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		tick INTEGER NOT NULL,
		game_day INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_events_game_id ON events(game_id);`,
	`CREATE INDEX IF NOT EXISTS idx_events_actor_id ON events(actor_id);`,
	`CREATE INDEX IF NOT EXISTS idx_events_target_id ON events(target_id);`,
	`CREATE INDEX IF NOT EXISTS idx_events_game_day ON events(game_day);`,
}

func createSchemas(db *sql.DB, schemas []string) error {
	for _, query := range schemas {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}
