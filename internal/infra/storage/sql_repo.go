package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore implements Store over database/sql for SQLite and PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

var _ Store = (*SQLStore)(nil)

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------
// Events
// ---------------------------------------------------------

const eventColumns = `id, game_id, timestamp, event_type, actor_id, target_id, payload, tick, game_day`

func (s *SQLStore) Append(ctx context.Context, event GameEvent) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `INSERT INTO events (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, s.dialect.rebind(query),
		event.ID, event.GameID, event.Timestamp.UTC(), event.EventType, event.ActorID,
		event.TargetID, string(payloadBytes), event.Tick, event.GameDay,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (s *SQLStore) getMany(ctx context.Context, where string, args ...interface{}) ([]GameEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE ` + where + ` ORDER BY tick ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []GameEvent
	for rows.Next() {
		var e GameEvent
		var payloadStr string
		err := rows.Scan(
			&e.ID, &e.GameID, &e.Timestamp, &e.EventType, &e.ActorID,
			&e.TargetID, &payloadStr, &e.Tick, &e.GameDay,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payloadStr), &e.Payload); err != nil {
			return nil, fmt.Errorf("decode payload of %s: %w", e.ID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLStore) GetByGameID(ctx context.Context, gameID string) ([]GameEvent, error) {
	return s.getMany(ctx, `game_id = ?`, gameID)
}

func (s *SQLStore) GetByActorID(ctx context.Context, gameID, actorID string) ([]GameEvent, error) {
	return s.getMany(ctx, `game_id = ? AND actor_id = ?`, gameID, actorID)
}

func (s *SQLStore) GetByTargetID(ctx context.Context, gameID, targetID string) ([]GameEvent, error) {
	return s.getMany(ctx, `game_id = ? AND target_id = ?`, gameID, targetID)
}

func (s *SQLStore) GetByGameDay(ctx context.Context, gameID string, day int) ([]GameEvent, error) {
	return s.getMany(ctx, `game_id = ? AND game_day = ?`, gameID, day)
}

func (s *SQLStore) GetByEventType(ctx context.Context, gameID string, eventType string) ([]GameEvent, error) {
	return s.getMany(ctx, `game_id = ? AND event_type = ?`, gameID, eventType)
}

// ---------------------------------------------------------
// Snapshots
// ---------------------------------------------------------

func (s *SQLStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	exec := func(query string, args ...interface{}) error {
		_, err := tx.ExecContext(ctx, s.dialect.rebind(query), args...)
		return err
	}

	err = exec(`
		INSERT INTO game_state (game_id, tick, last_updated) VALUES (?, ?, ?)
		ON CONFLICT(game_id) DO UPDATE SET tick=excluded.tick, last_updated=excluded.last_updated`,
		snap.GameID, snap.Tick, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert game state: %w", err)
	}
	if err := exec(`DELETE FROM chambers WHERE game_id = ?`, snap.GameID); err != nil {
		return fmt.Errorf("clear chambers: %w", err)
	}
	if err := exec(`DELETE FROM occupants WHERE game_id = ?`, snap.GameID); err != nil {
		return fmt.Errorf("clear occupants: %w", err)
	}

	for _, c := range snap.Chambers {
		err := exec(`
			INSERT INTO chambers (chamber_id, game_id, occupant_id, cooldown_remaining, enter_time, fuel, fuel_capacity, switched_on)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ChamberID, snap.GameID, c.OccupantID, c.CooldownRemaining, c.EnterTime, c.Fuel, c.FuelCapacity, c.SwitchedOn)
		if err != nil {
			return fmt.Errorf("insert chamber %s: %w", c.ChamberID, err)
		}
	}
	for _, o := range snap.Occupants {
		afflictions, err := json.Marshal(nonNilAfflictions(o.Afflictions))
		if err != nil {
			return fmt.Errorf("encode afflictions of %s: %w", o.OccupantID, err)
		}
		needs, err := json.Marshal(nonNilNeeds(o.Needs))
		if err != nil {
			return fmt.Errorf("encode needs of %s: %w", o.OccupantID, err)
		}
		err = exec(`
			INSERT INTO occupants (occupant_id, game_id, name, bio_age_ticks, afflictions_json, needs_json)
			VALUES (?, ?, ?, ?, ?, ?)`,
			o.OccupantID, snap.GameID, o.Name, o.BioAgeTicks, string(afflictions), string(needs))
		if err != nil {
			return fmt.Errorf("insert occupant %s: %w", o.OccupantID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func (s *SQLStore) LoadSnapshot(ctx context.Context, gameID string) (*Snapshot, error) {
	snap := Snapshot{GameID: gameID}
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT tick, last_updated FROM game_state WHERE game_id = ?`), gameID).
		Scan(&snap.Tick, &snap.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load game state: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT chamber_id, occupant_id, cooldown_remaining, enter_time, fuel, fuel_capacity, switched_on
		FROM chambers WHERE game_id = ? ORDER BY chamber_id`), gameID)
	if err != nil {
		return nil, fmt.Errorf("load chambers: %w", err)
	}
	for rows.Next() {
		var c ChamberSnapshot
		if err := rows.Scan(&c.ChamberID, &c.OccupantID, &c.CooldownRemaining, &c.EnterTime, &c.Fuel, &c.FuelCapacity, &c.SwitchedOn); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan chamber: %w", err)
		}
		snap.Chambers = append(snap.Chambers, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT occupant_id, name, bio_age_ticks, afflictions_json, needs_json
		FROM occupants WHERE game_id = ? ORDER BY occupant_id`), gameID)
	if err != nil {
		return nil, fmt.Errorf("load occupants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var o OccupantSnapshot
		var name sql.NullString
		var afflictions, needs string
		if err := rows.Scan(&o.OccupantID, &name, &o.BioAgeTicks, &afflictions, &needs); err != nil {
			return nil, fmt.Errorf("scan occupant: %w", err)
		}
		o.Name = name.String
		if err := json.Unmarshal([]byte(afflictions), &o.Afflictions); err != nil {
			return nil, fmt.Errorf("decode afflictions of %s: %w", o.OccupantID, err)
		}
		if err := json.Unmarshal([]byte(needs), &o.Needs); err != nil {
			return nil, fmt.Errorf("decode needs of %s: %w", o.OccupantID, err)
		}
		snap.Occupants = append(snap.Occupants, o)
	}
	return &snap, rows.Err()
}

func nonNilAfflictions(a []AfflictionRecord) []AfflictionRecord {
	if a == nil {
		return []AfflictionRecord{}
	}
	return a
}

func nonNilNeeds(n map[string]float64) map[string]float64 {
	if n == nil {
		return map[string]float64{}
	}
	return n
}

// ---------------------------------------------------------
// Settings
// ---------------------------------------------------------

func (s *SQLStore) SaveSettings(ctx context.Context, gameID string, rec SettingsRecord) error {
	query := `
		INSERT INTO settings (game_id, addiction_enabled, unage_rate_per_step, fuel_rate_per_year, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(game_id) DO UPDATE SET
			addiction_enabled=excluded.addiction_enabled,
			unage_rate_per_step=excluded.unage_rate_per_step,
			fuel_rate_per_year=excluded.fuel_rate_per_year,
			last_updated=excluded.last_updated`
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(query),
		gameID, rec.AddictionEnabled, rec.UnageRatePerStep, rec.FuelRatePerYear, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (s *SQLStore) LoadSettings(ctx context.Context, gameID string) (*SettingsRecord, error) {
	query := `SELECT addiction_enabled, unage_rate_per_step, fuel_rate_per_year FROM settings WHERE game_id = ?`
	var rec SettingsRecord
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), gameID).
		Scan(&rec.AddictionEnabled, &rec.UnageRatePerStep, &rec.FuelRatePerYear)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return &rec, nil
}
