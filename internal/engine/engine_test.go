package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MRamiBalles/CryoRestore/server/internal/domain/gametime"
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/occupant"
	"github.com/MRamiBalles/CryoRestore/server/internal/events"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/config"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/logger"
)

type recordingSink struct {
	mu    sync.Mutex
	calls int
	last  []ChamberStatus
}

func (s *recordingSink) Publish(statuses []ChamberStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = statuses
}

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	return NewEngine(events.NewEventLog(nil), logger.Discard(), config.NewStore(config.DefaultSettings()), opts)
}

func TestEngineAcceptAndEject(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})

	if err := e.RegisterChamber(ctx, NewChamber("C1", 50)); err != nil {
		t.Fatalf("RegisterChamber: %v", err)
	}
	if err := e.RegisterChamber(ctx, NewChamber("C2", 50)); err != nil {
		t.Fatalf("RegisterChamber: %v", err)
	}
	o := occupant.NewOccupant("O1", "Elder", gametime.Years(60))
	if err := e.RegisterOccupant(ctx, o); err != nil {
		t.Fatalf("RegisterOccupant: %v", err)
	}

	if err := e.Accept(ctx, "C1", "O1"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := e.Accept(ctx, "C2", "O1"); !errors.Is(err, ErrAlreadyContained) {
		t.Errorf("Expected ErrAlreadyContained, got %v", err)
	}
	if err := e.RegisterOccupant(ctx, occupant.NewOccupant("O2", "Other", 0)); err != nil {
		t.Fatalf("RegisterOccupant: %v", err)
	}
	if err := e.Accept(ctx, "C1", "O2"); !errors.Is(err, ErrChamberOccupied) {
		t.Errorf("Expected ErrChamberOccupied, got %v", err)
	}
	if err := e.Accept(ctx, "nope", "O2"); !errors.Is(err, ErrUnknownChamber) {
		t.Errorf("Expected ErrUnknownChamber, got %v", err)
	}
	if err := e.Accept(ctx, "C2", "ghost"); !errors.Is(err, ErrUnknownOccupant) {
		t.Errorf("Expected ErrUnknownOccupant, got %v", err)
	}

	e.Advance(10)

	out, err := e.Eject(ctx, "C1")
	if err != nil {
		t.Fatalf("Eject: %v", err)
	}
	if out.BioAgeTicks != gametime.Years(60)-300 {
		t.Errorf("Expected 300 ticks restored, got %d", gametime.Years(60)-out.BioAgeTicks)
	}
	if _, err := e.Eject(ctx, "C1"); !errors.Is(err, ErrChamberEmpty) {
		t.Errorf("Expected ErrChamberEmpty, got %v", err)
	}
	if err := e.Accept(ctx, "C2", "O1"); err != nil {
		t.Errorf("Ejected occupant should be accepted elsewhere, got %v", err)
	}
}

func TestEngineDuplicateRegistration(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})

	e.RegisterChamber(ctx, NewChamber("C1", 50))
	if err := e.RegisterChamber(ctx, NewChamber("C1", 10)); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Expected ErrDuplicateID, got %v", err)
	}
	e.RegisterOccupant(ctx, occupant.NewOccupant("O1", "A", 0))
	if err := e.RegisterOccupant(ctx, occupant.NewOccupant("O1", "B", 0)); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Expected ErrDuplicateID, got %v", err)
	}
}

func TestEnginePublishesStatuses(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	e := newTestEngine(t, Options{Sink: sink, StatusPublishEvery: 5})

	e.RegisterChamber(ctx, NewChamber("C1", 50))
	after := sink.calls
	if after != 1 || len(sink.last) != 1 {
		t.Fatalf("Commands should publish, got %d calls", after)
	}

	e.ticker.SetTime(0)
	e.mu.Lock()
	for i := 0; i < 5; i++ {
		e.tick()
	}
	e.mu.Unlock()
	if sink.calls != after+1 {
		t.Errorf("Expected one publish after 5 ticks, got %d", sink.calls-after)
	}
	if sink.last[0].Tick != 5 {
		t.Errorf("Expected status at tick 5, got %d", sink.last[0].Tick)
	}
}

func TestEngineRefuelPowerAndGrid(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})
	e.RegisterChamber(ctx, NewChamber("C1", 45))
	e.RegisterOccupant(ctx, occupant.NewOccupant("O1", "Elder", gametime.Years(60)))
	e.Accept(ctx, "C1", "O1")

	added, err := e.Refuel(ctx, "C1", 10)
	if err != nil || added != 5 {
		t.Errorf("Expected 5 accepted, got %v (%v)", added, err)
	}

	if err := e.SetGridAvailable(ctx, false); err != nil {
		t.Fatalf("SetGridAvailable: %v", err)
	}
	e.Advance(1)
	st, _ := e.Status(ctx, "C1")
	if st.PowerOn || st.BioAgeTicks != gametime.Years(60) {
		t.Errorf("Grid outage should stop restoration: %+v", st)
	}

	e.SetGridAvailable(ctx, true)
	e.SetPower(ctx, "C1", false)
	e.Advance(1)
	st, _ = e.Status(ctx, "C1")
	if st.SwitchedOn || st.BioAgeTicks != gametime.Years(60) {
		t.Errorf("Switched off chamber should not restore: %+v", st)
	}

	e.SetPower(ctx, "C1", true)
	e.Advance(1)
	st, _ = e.Status(ctx, "C1")
	if st.BioAgeTicks != gametime.Years(60)-30 {
		t.Errorf("Expected restoration to resume, got %+v", st)
	}
}

func TestEngineUpdateSettingsClamps(t *testing.T) {
	e := newTestEngine(t, Options{})
	applied, adjusted, err := e.UpdateSettings(context.Background(), config.Settings{UnageRatePerStep: 500, FuelRatePerYear: 0})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if applied.UnageRatePerStep != config.UnageRateMax || applied.FuelRatePerYear != config.FuelRateMin {
		t.Errorf("Expected clamped settings, got %+v", applied)
	}
	if len(adjusted) != 2 {
		t.Errorf("Expected 2 adjusted fields, got %v", adjusted)
	}
	if len(e.GetEventLog().GetByType(events.EventTypeSettingsChanged)) != 1 {
		t.Errorf("Expected a settings event")
	}
}

func TestEngineSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})
	e.RegisterChamber(ctx, NewChamber("C1", 50))
	e.RegisterChamber(ctx, NewChamber("C2", 10))
	o := occupant.NewOccupant("O1", "Elder", gametime.Years(60))
	o.AddAffliction(occupant.LabelFrail, 0)
	e.RegisterOccupant(ctx, o)
	e.RegisterOccupant(ctx, occupant.NewOccupant("O2", "Idle", gametime.Years(25)))
	e.Accept(ctx, "C1", "O1")
	e.Advance(100)

	st, err := e.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	restored := newTestEngine(t, Options{})
	if err := restored.Restore(ctx, st); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.CurrentTick() != 100 {
		t.Errorf("Expected tick 100, got %d", restored.CurrentTick())
	}

	want, _ := e.Status(ctx, "C1")
	got, err := restored.Status(ctx, "C1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if got.BioAgeTicks != want.BioAgeTicks || got.CooldownRemaining != want.CooldownRemaining || got.Fuel != want.Fuel {
		t.Errorf("Restored chamber differs:\nwant %+v\ngot  %+v", want, got)
	}
	if err := restored.Accept(ctx, "C2", "O1"); !errors.Is(err, ErrAlreadyContained) {
		t.Errorf("Containment should survive a restore, got %v", err)
	}
	if err := restored.Accept(ctx, "C2", "O2"); err != nil {
		t.Errorf("Free occupant should be accepted, got %v", err)
	}

	bad := st
	bad.Chambers = append([]ChamberState(nil), st.Chambers...)
	bad.Chambers[1].OccupantID = "ghost"
	if err := newTestEngine(t, Options{}).Restore(ctx, bad); !errors.Is(err, ErrUnknownOccupant) {
		t.Errorf("Expected ErrUnknownOccupant, got %v", err)
	}
}

func TestEngineRestoreRejectsDoubleContainment(t *testing.T) {
	ctx := context.Background()
	st := State{
		Tick:     10,
		Settings: config.DefaultSettings(),
		Chambers: []ChamberState{
			{ID: "C1", OccupantID: "O1", Fuel: 50, FuelCapacity: 50, SwitchedOn: true},
			{ID: "C2", OccupantID: "O1", Fuel: 50, FuelCapacity: 50, SwitchedOn: true},
		},
		Occupants: []*occupant.Occupant{occupant.NewOccupant("O1", "Twin", gametime.Years(40))},
	}

	e := newTestEngine(t, Options{})
	if err := e.Restore(ctx, st); !errors.Is(err, ErrAlreadyContained) {
		t.Fatalf("Expected ErrAlreadyContained, got %v", err)
	}
	if e.CurrentTick() != 0 {
		t.Errorf("Rejected state must not be applied, tick is %d", e.CurrentTick())
	}
	if _, err := e.Status(ctx, "C1"); !errors.Is(err, ErrUnknownChamber) {
		t.Errorf("Rejected state must not register chambers, got %v", err)
	}

	st.Occupants = append(st.Occupants, nil)
	st.Chambers = st.Chambers[:1]
	if err := e.Restore(ctx, st); err == nil {
		t.Errorf("Expected an error for an empty occupant entry")
	}

	st.Occupants = []*occupant.Occupant{
		occupant.NewOccupant("O1", "Twin", gametime.Years(40)),
		occupant.NewOccupant("O1", "Copy", gametime.Years(30)),
	}
	if err := e.Restore(ctx, st); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Expected ErrDuplicateID, got %v", err)
	}

	st.Occupants = st.Occupants[:1]
	st.Chambers = []ChamberState{{ID: "C1", Fuel: 50, FuelCapacity: 50}, {ID: "C1", Fuel: 10, FuelCapacity: 50}}
	if err := e.Restore(ctx, st); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Expected ErrDuplicateID for a repeated chamber, got %v", err)
	}
}

func TestEngineStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := newTestEngine(t, Options{TickInterval: time.Millisecond, Speed: 2})

	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Start(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Expected ErrAlreadyRunning, got %v", err)
	}

	deadline := time.After(2 * time.Second)
	for e.CurrentTick() < 10 {
		select {
		case <-deadline:
			t.Fatalf("Clock did not advance, tick %d", e.CurrentTick())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-e.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("Engine did not stop")
	}
	if err := e.Exec(ctx, func() error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("Exec with a cancelled context should fail, got %v", err)
	}
}
