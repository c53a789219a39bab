package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// InitPostgres connects to PostgreSQL through pgx and creates the schemas.
func InitPostgres(ctx context.Context, dsn string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := createSchemas(db, postgresSchemas); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}
	return db, nil
}

// NewPostgresStore wraps an initialized PostgreSQL database.
func NewPostgresStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, dialect: dialectPostgres}
}

// OpenPostgres initializes the database at dsn and returns a store over it.
func OpenPostgres(ctx context.Context, dsn string, maxOpenConns int) (*SQLStore, error) {
	db, err := InitPostgres(ctx, dsn, maxOpenConns)
	if err != nil {
		return nil, err
	}
	return NewPostgresStore(db), nil
}

var postgresSchemas = []string{
	`CREATE TABLE IF NOT EXISTS game_state (
		game_id TEXT PRIMARY KEY,
		tick BIGINT NOT NULL DEFAULT 0,
		last_updated TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		game_id TEXT PRIMARY KEY,
		addiction_enabled BOOLEAN NOT NULL,
		unage_rate_per_step INTEGER NOT NULL,
		fuel_rate_per_year INTEGER NOT NULL,
		last_updated TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chambers (
		chamber_id TEXT NOT NULL,
		game_id TEXT NOT NULL REFERENCES game_state(game_id),
		occupant_id TEXT NOT NULL DEFAULT '',
		cooldown_remaining INTEGER NOT NULL,
		enter_time BIGINT NOT NULL,
		fuel DOUBLE PRECISION NOT NULL,
		fuel_capacity DOUBLE PRECISION NOT NULL,
		switched_on BOOLEAN NOT NULL DEFAULT TRUE,
		PRIMARY KEY (game_id, chamber_id)
	)`,
	`CREATE TABLE IF NOT EXISTS occupants (
		occupant_id TEXT NOT NULL,
		game_id TEXT NOT NULL REFERENCES game_state(game_id),
		name TEXT,
		bio_age_ticks BIGINT NOT NULL,
		afflictions_json JSONB NOT NULL,
		needs_json JSONB NOT NULL,
		PRIMARY KEY (game_id, occupant_id)
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		game_id TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		event_type TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		payload JSONB NOT NULL,
		tick BIGINT NOT NULL,
		game_day INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_game_id ON events(game_id)`,
	`CREATE INDEX IF NOT EXISTS idx_events_actor_id ON events(actor_id)`,
	`CREATE INDEX IF NOT EXISTS idx_events_target_id ON events(target_id)`,
	`CREATE INDEX IF NOT EXISTS idx_events_game_day ON events(game_day)`,
}
