package cli

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MRamiBalles/CryoRestore/server/internal/domain/occupant"
	"github.com/MRamiBalles/CryoRestore/server/internal/engine"
	"github.com/MRamiBalles/CryoRestore/server/internal/events"
	"github.com/MRamiBalles/CryoRestore/server/internal/infra/storage"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/config"
)

const persistTimeout = 5 * time.Second

// eventPersister translates domain events to storage events.
type eventPersister struct {
	repo   storage.EventRepository
	gameID string
}

func (a *eventPersister) Append(event events.GameEvent) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}
	var payloadMap map[string]interface{}
	if err := json.Unmarshal(payloadBytes, &payloadMap); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return a.repo.Append(ctx, storage.GameEvent{
		ID:        event.ID,
		GameID:    a.gameID,
		Timestamp: event.Timestamp,
		EventType: string(event.Type),
		ActorID:   event.ActorID,
		TargetID:  event.TargetID,
		Payload:   payloadMap,
		Tick:      event.Tick,
		GameDay:   event.GameDay,
	})
}

func toSnapshot(gameID string, st engine.State) storage.Snapshot {
	snap := storage.Snapshot{GameID: gameID, Tick: st.Tick}
	for _, c := range st.Chambers {
		snap.Chambers = append(snap.Chambers, storage.ChamberSnapshot{
			ChamberID:         c.ID,
			OccupantID:        c.OccupantID,
			CooldownRemaining: c.CooldownRemaining,
			EnterTime:         c.EnterTime,
			Fuel:              c.Fuel,
			FuelCapacity:      c.FuelCapacity,
			SwitchedOn:        c.SwitchedOn,
		})
	}
	for _, o := range st.Occupants {
		rec := storage.OccupantSnapshot{
			OccupantID:  o.ID,
			Name:        o.Name,
			BioAgeTicks: o.BioAgeTicks,
			Needs:       make(map[string]float64, len(o.Needs)),
		}
		for _, a := range o.Afflictions {
			rec.Afflictions = append(rec.Afflictions, storage.AfflictionRecord{ID: a.ID, Label: a.Label, Severity: a.Severity})
		}
		for id, level := range o.Needs {
			rec.Needs[string(id)] = level
		}
		snap.Occupants = append(snap.Occupants, rec)
	}
	return snap
}

// fromSnapshot rebuilds engine state. Settings are loaded separately.
func fromSnapshot(snap *storage.Snapshot, settings config.Settings) engine.State {
	st := engine.State{Tick: snap.Tick, Settings: settings}
	for _, c := range snap.Chambers {
		st.Chambers = append(st.Chambers, engine.ChamberState{
			ID:                c.ChamberID,
			OccupantID:        c.OccupantID,
			CooldownRemaining: c.CooldownRemaining,
			EnterTime:         c.EnterTime,
			Fuel:              c.Fuel,
			FuelCapacity:      c.FuelCapacity,
			SwitchedOn:        c.SwitchedOn,
		})
	}
	for _, rec := range snap.Occupants {
		o := occupant.NewOccupant(rec.OccupantID, rec.Name, rec.BioAgeTicks)
		for _, a := range rec.Afflictions {
			o.Afflictions = append(o.Afflictions, &occupant.Affliction{ID: a.ID, Label: a.Label, Severity: a.Severity})
		}
		for id, level := range rec.Needs {
			o.Needs[occupant.NeedID(id)] = level
		}
		st.Occupants = append(st.Occupants, o)
	}
	return st
}

func toSettingsRecord(s config.Settings) storage.SettingsRecord {
	return storage.SettingsRecord{
		AddictionEnabled: s.AddictionEnabled,
		UnageRatePerStep: s.UnageRatePerStep,
		FuelRatePerYear:  s.FuelRatePerYear,
	}
}

func fromSettingsRecord(rec storage.SettingsRecord) config.Settings {
	return config.Settings{
		AddictionEnabled: rec.AddictionEnabled,
		UnageRatePerStep: rec.UnageRatePerStep,
		FuelRatePerYear:  rec.FuelRatePerYear,
	}
}

// loadSettings returns the stored settings, or the defaults if none were saved.
func loadSettings(ctx context.Context, repo storage.SettingsRepository, gameID string) (config.Settings, error) {
	rec, err := repo.LoadSettings(ctx, gameID)
	if err != nil {
		return config.Settings{}, err
	}
	if rec == nil {
		return config.DefaultSettings(), nil
	}
	s, _ := fromSettingsRecord(*rec).Clamped()
	return s, nil
}

// saveState snapshots the engine and writes it to the store.
func saveState(ctx context.Context, eng *engine.Engine, repo storage.SnapshotRepository, gameID string) error {
	st, err := eng.Snapshot(ctx)
	if err != nil {
		return err
	}
	return repo.SaveSnapshot(ctx, toSnapshot(gameID, st))
}
