// Package storage provides the persistence layer for the restoration server.
// This package implements the repository pattern to keep the domain pure.
package storage

import (
	"context"
	"time"
)

// GameEvent mirrors the domain event structure for persistence.
// The domain package should NOT import this; use interfaces instead.
type GameEvent struct {
	ID        string                 `json:"id" db:"id"`
	GameID    string                 `json:"game_id" db:"game_id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	EventType string                 `json:"event_type" db:"event_type"`
	ActorID   string                 `json:"actor_id" db:"actor_id"`
	TargetID  string                 `json:"target_id" db:"target_id"`
	Payload   map[string]interface{} `json:"payload" db:"payload"`
	Tick      int64                  `json:"tick" db:"tick"`
	GameDay   int                    `json:"game_day" db:"game_day"`
}

// EventRepository defines the interface for event persistence.
// Results are ordered oldest first.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event GameEvent) error

	// GetByGameID retrieves all events for a specific game (for replay).
	GetByGameID(ctx context.Context, gameID string) ([]GameEvent, error)

	// GetByActorID retrieves all events performed by an actor.
	GetByActorID(ctx context.Context, gameID, actorID string) ([]GameEvent, error)

	// GetByTargetID retrieves all events that affected a target.
	GetByTargetID(ctx context.Context, gameID, targetID string) ([]GameEvent, error)

	// GetByGameDay retrieves all events from a specific in-game day.
	GetByGameDay(ctx context.Context, gameID string, day int) ([]GameEvent, error)

	// GetByEventType retrieves all events of a specific type.
	GetByEventType(ctx context.Context, gameID string, eventType string) ([]GameEvent, error)
}

// ChamberSnapshot is the persisted state of one chamber.
type ChamberSnapshot struct {
	ChamberID         string  `json:"chamber_id" db:"chamber_id"`
	OccupantID        string  `json:"occupant_id" db:"occupant_id"` // Empty when vacant
	CooldownRemaining int     `json:"cooldown_remaining" db:"cooldown_remaining"`
	EnterTime         int64   `json:"enter_time" db:"enter_time"`
	Fuel              float64 `json:"fuel" db:"fuel"`
	FuelCapacity      float64 `json:"fuel_capacity" db:"fuel_capacity"`
	SwitchedOn        bool    `json:"switched_on" db:"switched_on"`
}

// AfflictionRecord is one affliction inside an occupant snapshot.
type AfflictionRecord struct {
	ID       string  `json:"id"`
	Label    string  `json:"label"`
	Severity float64 `json:"severity"`
}

// OccupantSnapshot is the persisted state of one occupant.
type OccupantSnapshot struct {
	OccupantID  string             `json:"occupant_id" db:"occupant_id"`
	Name        string             `json:"name" db:"name"`
	BioAgeTicks int64              `json:"bio_age_ticks" db:"bio_age_ticks"`
	Afflictions []AfflictionRecord `json:"afflictions" db:"afflictions_json"`
	Needs       map[string]float64 `json:"needs" db:"needs_json"`
}

// Snapshot is the full saved state of one game.
type Snapshot struct {
	GameID      string             `json:"game_id"`
	Tick        int64              `json:"tick"`
	Chambers    []ChamberSnapshot  `json:"chambers"`
	Occupants   []OccupantSnapshot `json:"occupants"`
	LastUpdated time.Time          `json:"last_updated"`
}

// SnapshotRepository defines the interface for state snapshots.
type SnapshotRepository interface {
	// SaveSnapshot replaces the stored state of the game atomically.
	SaveSnapshot(ctx context.Context, snap Snapshot) error

	// LoadSnapshot returns the stored state, or nil if the game was never saved.
	LoadSnapshot(ctx context.Context, gameID string) (*Snapshot, error)
}

// SettingsRecord is the persisted settings row.
type SettingsRecord struct {
	AddictionEnabled bool `json:"addiction_enabled" db:"addiction_enabled"`
	UnageRatePerStep int  `json:"unage_rate_per_step" db:"unage_rate_per_step"`
	FuelRatePerYear  int  `json:"fuel_rate_per_year" db:"fuel_rate_per_year"`
}

// SettingsRepository persists the shared settings.
type SettingsRepository interface {
	SaveSettings(ctx context.Context, gameID string, s SettingsRecord) error

	// LoadSettings returns nil if no settings were saved yet.
	LoadSettings(ctx context.Context, gameID string) (*SettingsRecord, error)
}

// Store bundles every repository over one database.
type Store interface {
	EventRepository
	SnapshotRepository
	SettingsRepository
	Close() error
}
