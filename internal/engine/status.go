package engine

import (
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/casket"
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/rules"
)

// ChamberStatus is the read model published for HTTP and WebSocket clients.
type ChamberStatus struct {
	ChamberID         string  `json:"chamber_id"`
	Tick              int64   `json:"tick"`
	OccupantID        string  `json:"occupant_id,omitempty"`
	OccupantName      string  `json:"occupant_name,omitempty"`
	BioAgeTicks       int64   `json:"bio_age_ticks,omitempty"`
	BioAgeYears       int     `json:"bio_age_years,omitempty"`
	AgeAfflictions    int     `json:"age_afflictions"`
	CooldownRemaining int     `json:"cooldown_remaining"`
	ResidentTicks     int64   `json:"resident_ticks"`
	TicksRemaining    int64   `json:"ticks_remaining"`
	Fuel              float64 `json:"fuel"`
	FuelCapacity      float64 `json:"fuel_capacity"`
	FuelPerDay        float64 `json:"fuel_per_day"`
	PowerOutput       float64 `json:"power_output"`
	PowerOn           bool    `json:"power_on"`
	SwitchedOn        bool    `json:"switched_on"`
	Inspect           string  `json:"inspect"`
}

// StatusSink receives chamber statuses whenever the engine publishes.
type StatusSink interface {
	Publish(statuses []ChamberStatus)
}

// Status builds the read model for one chamber.
func (rs *RestorationSystem) Status(c *casket.Casket, now int64) ChamberStatus {
	settings := rs.settings.Current()
	s := ChamberStatus{
		ChamberID:         c.ID,
		Tick:              now,
		CooldownRemaining: c.CooldownRemaining,
		ResidentTicks:     c.ResidentTicks(now),
		Fuel:              c.Fuel.Fuel(),
		FuelCapacity:      c.Fuel.Capacity(),
		FuelPerDay:        settings.FuelPerDay(),
		PowerOutput:       c.Power.PowerOutput(),
		PowerOn:           c.Power.PowerOn(),
		SwitchedOn:        c.Power.SwitchedOn(),
		Inspect:           rs.InspectString(c),
	}
	if o := c.Occupant; o != nil {
		s.OccupantID = o.ID
		s.OccupantName = o.Name
		s.BioAgeTicks = o.BioAgeTicks
		s.BioAgeYears = o.BioAgeYears()
		s.AgeAfflictions = rules.CountAgeAfflictions(o)
		s.TicksRemaining = TicksRemaining(o, settings.UnageRatePerStep)
	}
	return s
}
