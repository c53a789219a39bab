package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestSQLite(t *testing.T) *SQLStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "cryo.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func openTestPostgres(t *testing.T) *SQLStore {
	t.Helper()
	dsn := os.Getenv("CRYO_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CRYO_TEST_POSTGRES_DSN not set")
	}
	store, err := OpenPostgres(context.Background(), dsn, 4)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, openTestSQLite(t), "GAME_SQLITE")
}

func TestPostgresStore(t *testing.T) {
	runStoreSuite(t, openTestPostgres(t), "GAME_PG_"+time.Now().Format("150405.000000"))
}

func runStoreSuite(t *testing.T, store *SQLStore, gameID string) {
	ctx := context.Background()

	t.Run("events", func(t *testing.T) {
		evts := []GameEvent{
			{ID: "01A", EventType: "OCCUPANT_ACCEPTED", ActorID: "C1", TargetID: "O1", Tick: 10, GameDay: 1,
				Payload: map[string]interface{}{"bio_age_ticks": 216000000.0}},
			{ID: "01B", EventType: "AFFLICTION_CURED", ActorID: "C1", TargetID: "O1", Tick: 20, GameDay: 1,
				Payload: map[string]interface{}{"affliction": "cataract"}},
			{ID: "01C", EventType: "OCCUPANT_ACCEPTED", ActorID: "C2", TargetID: "O2", Tick: 60001, GameDay: 2},
		}
		for _, e := range evts {
			e.GameID = gameID
			e.ID = gameID + "_" + e.ID
			e.Timestamp = time.Now()
			if err := store.Append(ctx, e); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}

		all, err := store.GetByGameID(ctx, gameID)
		if err != nil || len(all) != 3 {
			t.Fatalf("Expected 3 events, got %d (%v)", len(all), err)
		}
		if all[1].Payload["affliction"] != "cataract" {
			t.Errorf("Payload did not round-trip: %v", all[1].Payload)
		}
		if byActor, _ := store.GetByActorID(ctx, gameID, "C1"); len(byActor) != 2 {
			t.Errorf("Expected 2 events for C1, got %d", len(byActor))
		}
		if byTarget, _ := store.GetByTargetID(ctx, gameID, "O2"); len(byTarget) != 1 {
			t.Errorf("Expected 1 event for O2, got %d", len(byTarget))
		}
		if byDay, _ := store.GetByGameDay(ctx, gameID, 2); len(byDay) != 1 {
			t.Errorf("Expected 1 event on day 2, got %d", len(byDay))
		}
		if byType, _ := store.GetByEventType(ctx, gameID, "OCCUPANT_ACCEPTED"); len(byType) != 2 {
			t.Errorf("Expected 2 accept events, got %d", len(byType))
		}
	})

	t.Run("snapshot", func(t *testing.T) {
		if snap, err := store.LoadSnapshot(ctx, gameID); err != nil || snap != nil {
			t.Fatalf("Expected no snapshot yet, got %+v (%v)", snap, err)
		}

		snap := Snapshot{
			GameID: gameID,
			Tick:   1234,
			Chambers: []ChamberSnapshot{
				{ChamberID: "C1", OccupantID: "O1", CooldownRemaining: 99, EnterTime: 10, Fuel: 42.5, FuelCapacity: 50, SwitchedOn: true},
				{ChamberID: "C2", Fuel: 0, FuelCapacity: 50},
			},
			Occupants: []OccupantSnapshot{
				{OccupantID: "O1", Name: "Elder", BioAgeTicks: 200000000,
					Afflictions: []AfflictionRecord{{ID: "A1", Label: "alzheimer's", Severity: 0.5}},
					Needs:       map[string]float64{"Chemical_Luciferium": 1}},
				{OccupantID: "O2", Name: "Young", BioAgeTicks: 70000000},
			},
		}
		if err := store.SaveSnapshot(ctx, snap); err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}

		snap.Tick = 2000
		snap.Chambers = snap.Chambers[:1]
		if err := store.SaveSnapshot(ctx, snap); err != nil {
			t.Fatalf("SaveSnapshot (second): %v", err)
		}

		got, err := store.LoadSnapshot(ctx, gameID)
		if err != nil || got == nil {
			t.Fatalf("LoadSnapshot: %v", err)
		}
		if got.Tick != 2000 || len(got.Chambers) != 1 || len(got.Occupants) != 2 {
			t.Fatalf("Unexpected snapshot: %+v", got)
		}
		c := got.Chambers[0]
		if c.OccupantID != "O1" || c.CooldownRemaining != 99 || c.Fuel != 42.5 || !c.SwitchedOn {
			t.Errorf("Chamber did not round-trip: %+v", c)
		}
		o := got.Occupants[0]
		if len(o.Afflictions) != 1 || o.Afflictions[0].Severity != 0.5 || o.Needs["Chemical_Luciferium"] != 1 {
			t.Errorf("Occupant did not round-trip: %+v", o)
		}
		if got.Occupants[1].Afflictions == nil || len(got.Occupants[1].Afflictions) != 0 {
			t.Errorf("Expected empty affliction list, got %v", got.Occupants[1].Afflictions)
		}
	})

	t.Run("settings", func(t *testing.T) {
		if rec, err := store.LoadSettings(ctx, gameID); err != nil || rec != nil {
			t.Fatalf("Expected no settings yet, got %+v (%v)", rec, err)
		}
		want := SettingsRecord{AddictionEnabled: false, UnageRatePerStep: 45, FuelRatePerYear: 12}
		if err := store.SaveSettings(ctx, gameID, want); err != nil {
			t.Fatalf("SaveSettings: %v", err)
		}
		want.UnageRatePerStep = 50
		store.SaveSettings(ctx, gameID, want)

		got, err := store.LoadSettings(ctx, gameID)
		if err != nil || got == nil || *got != want {
			t.Errorf("Expected %+v, got %+v (%v)", want, got, err)
		}
	})
}

func TestRebind(t *testing.T) {
	got := dialectPostgres.rebind(`SELECT a FROM t WHERE x = ? AND y = ?`)
	if got != `SELECT a FROM t WHERE x = $1 AND y = $2` {
		t.Errorf("Unexpected rebind: %s", got)
	}
	if dialectSQLite.rebind("?") != "?" {
		t.Errorf("SQLite queries must be left alone")
	}
}
