package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/MRamiBalles/CryoRestore/server/internal/domain/casket"
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/occupant"
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/resource"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/config"
)

// ChamberState is the persisted form of a chamber.
type ChamberState struct {
	ID                string  `json:"id"`
	OccupantID        string  `json:"occupant_id,omitempty"`
	CooldownRemaining int     `json:"cooldown_remaining"`
	EnterTime         int64   `json:"enter_time"`
	Fuel              float64 `json:"fuel"`
	FuelCapacity      float64 `json:"fuel_capacity"`
	SwitchedOn        bool    `json:"switched_on"`
}

// State is a full, detached copy of the simulation.
type State struct {
	Tick      int64                `json:"tick"`
	Settings  config.Settings      `json:"settings"`
	Chambers  []ChamberState       `json:"chambers"`
	Occupants []*occupant.Occupant `json:"occupants"`
}

// Snapshot copies the current state between ticks.
func (e *Engine) Snapshot(ctx context.Context) (State, error) {
	var st State
	err := e.view(ctx, func() error {
		st.Tick = e.ticker.CurrentTick()
		st.Settings = e.settings.Current()
		for _, c := range e.restoration.Chambers() {
			cs := ChamberState{
				ID:                c.ID,
				CooldownRemaining: c.CooldownRemaining,
				EnterTime:         c.EnterTime,
				Fuel:              c.Fuel.Fuel(),
				FuelCapacity:      c.Fuel.Capacity(),
				SwitchedOn:        c.Power.SwitchedOn(),
			}
			if c.Occupant != nil {
				cs.OccupantID = c.Occupant.ID
			}
			st.Chambers = append(st.Chambers, cs)
		}
		ids := make([]string, 0, len(e.occupants))
		for id := range e.occupants {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			st.Occupants = append(st.Occupants, e.occupants[id].Clone())
		}
		return nil
	})
	return st, err
}

// Restore replaces the engine state with st. No events are recorded.
func (e *Engine) Restore(ctx context.Context, st State) error {
	return e.Exec(ctx, func() error {
		occupants := make(map[string]*occupant.Occupant, len(st.Occupants))
		for i, o := range st.Occupants {
			if o == nil {
				return fmt.Errorf("occupant entry %d is empty", i)
			}
			if _, dup := occupants[o.ID]; dup {
				return fmt.Errorf("occupant %s: %w", o.ID, ErrDuplicateID)
			}
			occupants[o.ID] = o.Clone()
		}

		restoration := NewRestorationSystem(e.eventLog, e.logger, e.settings, e.metrics)
		restoration.SetRewardResidency(e.restoration.rewardResidency)
		contained := make(map[string]string)
		for _, cs := range st.Chambers {
			if _, dup := restoration.Chamber(cs.ID); dup {
				return fmt.Errorf("chamber %s: %w", cs.ID, ErrDuplicateID)
			}
			capacity := cs.FuelCapacity
			if capacity <= 0 {
				capacity = resource.DefaultFuelCapacity
			}
			power := resource.NewPowerTrader(resource.DefaultBasePowerConsumption)
			power.SetSwitchedOn(cs.SwitchedOn)
			c := casket.NewCasket(cs.ID, resource.NewRefuelable(capacity, cs.Fuel), power)

			if cs.OccupantID != "" {
				o, ok := occupants[cs.OccupantID]
				if !ok {
					return fmt.Errorf("chamber %s holds occupant %s: %w", cs.ID, cs.OccupantID, ErrUnknownOccupant)
				}
				if where, dup := contained[o.ID]; dup {
					return fmt.Errorf("occupant %s in %s and %s: %w", o.ID, where, cs.ID, ErrAlreadyContained)
				}
				c.Occupant = o
				c.EnterTime = cs.EnterTime
				c.CooldownRemaining = cs.CooldownRemaining
				contained[o.ID] = c.ID
			}
			restoration.RegisterChamber(c)
		}

		if st.Settings != (config.Settings{}) {
			e.settings.Update(st.Settings)
		}
		e.ticker.SetTime(st.Tick)
		e.occupants = occupants
		e.contained = contained
		e.restoration = restoration
		e.logger.Infof("Restored %d chambers and %d occupants at tick %d", len(st.Chambers), len(st.Occupants), st.Tick)
		return nil
	})
}
