package engine

import (
	"math"
	"strings"
	"testing"

	"github.com/MRamiBalles/CryoRestore/server/internal/domain/casket"
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/gametime"
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/occupant"
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/resource"
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/rules"
	"github.com/MRamiBalles/CryoRestore/server/internal/events"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/config"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/logger"
)

func newTestSystem(settings config.Settings) (*RestorationSystem, *events.EventLog) {
	el := events.NewEventLog(nil)
	return NewRestorationSystem(el, logger.Discard(), config.NewStore(settings), nil), el
}

func TestIneligibleOccupantIsLeftAlone(t *testing.T) {
	rs, _ := newTestSystem(config.DefaultSettings())
	c := NewChamber("C1", 50)
	o := occupant.NewOccupant("O1", "Young", gametime.Years(20))
	rs.OnAccept(c, o, 0)

	if c.Power.PowerOutput() != 0 {
		t.Errorf("Ineligible occupant should not draw power on entry, got %f", c.Power.PowerOutput())
	}
	if got := rs.Step(c, 1); got != OutcomeIneligible {
		t.Fatalf("Expected ineligible outcome, got %s", got)
	}
	if o.BioAgeTicks != gametime.Years(20) {
		t.Errorf("Age should not change, got %d", o.BioAgeTicks)
	}
	if c.Fuel.Fuel() != 50 {
		t.Errorf("Fuel should not be consumed, got %f", c.Fuel.Fuel())
	}
	if c.Power.PowerOutput() != 0 {
		t.Errorf("Expected power output 0, got %f", c.Power.PowerOutput())
	}
}

func TestAgePinsAtFloor(t *testing.T) {
	rs, el := newTestSystem(config.DefaultSettings())
	c := NewChamber("C1", 50)
	o := occupant.NewOccupant("O1", "Elder", rules.AgeFloorTicks+75)
	rs.OnAccept(c, o, 0)

	want := []int64{rules.AgeFloorTicks + 45, rules.AgeFloorTicks + 15, rules.AgeFloorTicks}
	for i, w := range want {
		if got := rs.Step(c, int64(i+1)); got != OutcomeRestored {
			t.Fatalf("Step %d: expected restored, got %s", i+1, got)
		}
		if o.BioAgeTicks != w {
			t.Errorf("Step %d: expected age %d, got %d", i+1, w, o.BioAgeTicks)
		}
	}

	if got := rs.Step(c, 4); got != OutcomeIneligible {
		t.Errorf("At the floor with no afflictions the chamber should idle, got %s", got)
	}
	if o.BioAgeTicks != rules.AgeFloorTicks {
		t.Errorf("Age must never go below the floor, got %d", o.BioAgeTicks)
	}
	if c.Power.PowerOutput() != 0 {
		t.Errorf("Idle chamber should not draw power, got %f", c.Power.PowerOutput())
	}
	if len(el.GetByType(events.EventTypeAgeFloorReached)) != 1 {
		t.Errorf("Expected exactly one age floor event")
	}
}

func TestStepBurnsFuelAndCountsDownCooldown(t *testing.T) {
	rs, _ := newTestSystem(config.DefaultSettings())
	c := NewChamber("C1", 50)
	o := occupant.NewOccupant("O1", "Elder", gametime.Years(60))
	rs.OnAccept(c, o, 0)

	if c.CooldownRemaining != casket.CooldownBase {
		t.Fatalf("Accept should reset cooldown to %d, got %d", casket.CooldownBase, c.CooldownRemaining)
	}
	rs.Step(c, 1)

	if c.CooldownRemaining != casket.CooldownBase-1 {
		t.Errorf("Expected cooldown %d, got %d", casket.CooldownBase-1, c.CooldownRemaining)
	}
	wantFuel := 50 - 20.0/float64(gametime.TicksPerYear)
	if math.Abs(c.Fuel.Fuel()-wantFuel) > 1e-12 {
		t.Errorf("Expected fuel %v, got %v", wantFuel, c.Fuel.Fuel())
	}
	if c.Power.PowerOutput() != -resource.DefaultBasePowerConsumption {
		t.Errorf("Expected power output -%v, got %v", resource.DefaultBasePowerConsumption, c.Power.PowerOutput())
	}
	if o.BioAgeTicks != gametime.Years(60)-30 {
		t.Errorf("Expected 30 ticks of age removed, got %d", gametime.Years(60)-o.BioAgeTicks)
	}
}

func TestStepWritesConsumptionRate(t *testing.T) {
	rs, _ := newTestSystem(config.Settings{AddictionEnabled: true, UnageRatePerStep: 30, FuelRatePerYear: 30})
	fuel := resource.NewRefuelable(50, 50)
	c := casket.NewCasket("C1", fuel, resource.NewPowerTrader(200))

	rs.Step(c, 1)
	if fuel.ConsumptionRatePerDay != 0.5 {
		t.Errorf("Expected consumption rate 0.5/day even when empty, got %v", fuel.ConsumptionRatePerDay)
	}
}

func TestCureFollowsCatalogOrder(t *testing.T) {
	rs, el := newTestSystem(config.DefaultSettings())
	c := NewChamber("C1", 50)
	o := occupant.NewOccupant("O1", "Patient", gametime.Years(30))
	o.AddAffliction(occupant.LabelBadBack, 0)
	o.AddAffliction(occupant.LabelCataract, 0)
	o.AddAffliction(occupant.LabelCataract, 0)
	rs.OnAccept(c, o, 0)
	c.CooldownRemaining = 1

	rs.Step(c, 1)

	if o.HasAffliction(occupant.LabelCataract) {
		t.Errorf("Every cataract should be removed")
	}
	if !o.HasAffliction(occupant.LabelBadBack) {
		t.Errorf("Bad back must wait for the next cure")
	}
	if c.CooldownRemaining != casket.CooldownBase {
		t.Errorf("Expected cooldown reset to base, got %d", c.CooldownRemaining)
	}
	cured := el.GetByType(events.EventTypeAfflictionCured)
	if len(cured) != 1 {
		t.Fatalf("Expected one cure event, got %d", len(cured))
	}
	if p := cured[0].Payload.(CurePayload); p.Affliction != occupant.LabelCataract || p.Removed != 2 {
		t.Errorf("Unexpected cure payload: %+v", p)
	}
}

func TestNoCureWhileCooldownRunning(t *testing.T) {
	rs, _ := newTestSystem(config.DefaultSettings())
	c := NewChamber("C1", 50)
	o := occupant.NewOccupant("O1", "Patient", gametime.Years(30))
	o.AddAffliction(occupant.LabelFrail, 0)
	rs.OnAccept(c, o, 0)
	c.CooldownRemaining = 3

	rs.Step(c, 1)
	rs.Step(c, 2)
	if !o.HasAffliction(occupant.LabelFrail) {
		t.Fatalf("Cure applied before the cooldown ran out")
	}
	rs.Step(c, 3)
	if o.HasAffliction(occupant.LabelFrail) {
		t.Errorf("Cure should apply when the cooldown reaches zero")
	}
}

func TestAlzheimersHealsGradually(t *testing.T) {
	tests := []struct {
		name         string
		severity     float64
		wantPresent  bool
		wantCooldown int
		wantEvent    events.EventType
	}{
		{"mild case is removed", 0.1, false, casket.CooldownBase, events.EventTypeAfflictionCured},
		{"severe case is eased", 1.0, true, casket.CooldownShort, events.EventTypeAfflictionEased},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, el := newTestSystem(config.DefaultSettings())
			c := NewChamber("C1", 50)
			o := occupant.NewOccupant("O1", "Patient", gametime.Years(60))
			o.AddAffliction(occupant.LabelAlzheimers, tt.severity)
			rs.OnAccept(c, o, 0)
			c.CooldownRemaining = 1

			rs.Step(c, 1)

			if got := o.HasAffliction(occupant.LabelAlzheimers); got != tt.wantPresent {
				t.Errorf("Expected present=%v, got %v", tt.wantPresent, got)
			}
			if c.CooldownRemaining != tt.wantCooldown {
				t.Errorf("Expected cooldown %d, got %d", tt.wantCooldown, c.CooldownRemaining)
			}
			if len(el.GetByType(tt.wantEvent)) != 1 {
				t.Errorf("Expected one %s event", tt.wantEvent)
			}
			if tt.wantPresent {
				want := tt.severity - rules.AlzheimersHealPerCure
				if got := o.FindAffliction(occupant.LabelAlzheimers).Severity; math.Abs(got-want) > 1e-9 {
					t.Errorf("Expected severity %v, got %v", want, got)
				}
			}
		})
	}
}

func TestCureRespectsAgeThreshold(t *testing.T) {
	rs, _ := newTestSystem(config.DefaultSettings())
	c := NewChamber("C1", 50)
	o := occupant.NewOccupant("O1", "Patient", gametime.Years(45))
	o.AddAffliction(occupant.LabelBadBack, 0)
	o.AddAffliction(occupant.LabelFrail, 0)
	rs.OnAccept(c, o, 0)
	c.CooldownRemaining = 1

	rs.Step(c, 1)

	if !o.HasAffliction(occupant.LabelBadBack) {
		t.Errorf("Bad back cannot be cured at 45")
	}
	if o.HasAffliction(occupant.LabelFrail) {
		t.Errorf("Frail should be cured at 45")
	}
}

func TestNoFuelStopsEverything(t *testing.T) {
	rs, _ := newTestSystem(config.DefaultSettings())
	c := NewChamber("C1", 0)
	o := occupant.NewOccupant("O1", "Elder", gametime.Years(60))
	o.AddAffliction(occupant.LabelFrail, 0)
	rs.OnAccept(c, o, 0)

	if c.Power.PowerOutput() != 0 {
		t.Errorf("No fuel means no power draw on entry, got %f", c.Power.PowerOutput())
	}
	if got := rs.Step(c, 1); got != OutcomeNoFuel {
		t.Fatalf("Expected no-fuel outcome, got %s", got)
	}
	if o.BioAgeTicks != gametime.Years(60) {
		t.Errorf("Age should not change without fuel")
	}
	if c.CooldownRemaining != casket.CooldownBase {
		t.Errorf("Cooldown should not tick without fuel, got %d", c.CooldownRemaining)
	}
}

func TestUnpoweredChamberDrawsButDoesNotRestore(t *testing.T) {
	rs, _ := newTestSystem(config.DefaultSettings())
	c := NewChamber("C1", 50)
	o := occupant.NewOccupant("O1", "Elder", gametime.Years(60))
	rs.OnAccept(c, o, 0)
	c.Power.SetSwitchedOn(false)

	if got := rs.Step(c, 1); got != OutcomeUnpowered {
		t.Fatalf("Expected unpowered outcome, got %s", got)
	}
	if c.Power.PowerOutput() != -resource.DefaultBasePowerConsumption {
		t.Errorf("Demand is still declared while unpowered, got %f", c.Power.PowerOutput())
	}
	if c.Fuel.Fuel() != 50 || o.BioAgeTicks != gametime.Years(60) {
		t.Errorf("Nothing should change while unpowered")
	}
}

func TestFuelExhaustedEvent(t *testing.T) {
	rs, el := newTestSystem(config.DefaultSettings())
	fuel := resource.NewRefuelable(50, 20.0/float64(gametime.TicksPerYear))
	c := casket.NewCasket("C1", fuel, resource.NewPowerTrader(200))
	rs.OnAccept(c, occupant.NewOccupant("O1", "Elder", gametime.Years(60)), 0)

	rs.Step(c, 1)
	if fuel.HasFuel() {
		t.Fatalf("Expected the tank to be empty, has %v", fuel.Fuel())
	}
	if len(el.GetByType(events.EventTypeFuelExhausted)) != 1 {
		t.Errorf("Expected a fuel exhausted event")
	}
	if got := rs.Step(c, 2); got != OutcomeNoFuel {
		t.Errorf("Expected no-fuel outcome after exhaustion, got %s", got)
	}
}

func TestAcceptDrawsPowerImmediately(t *testing.T) {
	rs, el := newTestSystem(config.DefaultSettings())
	c := NewChamber("C1", 50)
	o := occupant.NewOccupant("O1", "Patient", gametime.Years(20))
	o.AddAffliction(occupant.LabelDementia, 0)

	if !rs.OnAccept(c, o, 0) {
		t.Fatalf("Accept failed")
	}
	if c.Power.PowerOutput() != -resource.DefaultBasePowerConsumption {
		t.Errorf("Expected immediate draw, got %f", c.Power.PowerOutput())
	}
	if rs.OnAccept(c, occupant.NewOccupant("O2", "Other", 0), 0) {
		t.Errorf("Occupied chamber must refuse a second occupant")
	}
	if len(el.GetByType(events.EventTypeOccupantAccepted)) != 1 {
		t.Errorf("Expected one accept event")
	}
}

func TestEjectEffects(t *testing.T) {
	tests := []struct {
		name        string
		addiction   bool
		age         int64
		resident    int64
		wantMarkers bool
		wantNeed    bool
	}{
		{"long stay", true, gametime.Years(30), gametime.Days(3), true, true},
		{"short stay", true, gametime.Years(30), gametime.Days(3) - 1, true, false},
		{"addiction disabled", false, gametime.Years(30), gametime.Days(5), false, false},
		{"below floor", true, gametime.Years(18), gametime.Days(5), false, false},
		{"exactly at floor", true, rules.AgeFloorTicks, gametime.Days(1), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := config.DefaultSettings()
			settings.AddictionEnabled = tt.addiction
			rs, el := newTestSystem(settings)
			c := NewChamber("C1", 50)
			o := occupant.NewOccupant("O1", "Patient", tt.age)
			rs.OnAccept(c, o, 0)

			out := rs.OnEject(c, tt.resident)
			if out != o {
				t.Fatalf("Eject should return the occupant")
			}
			if c.HasOccupant() || c.Power.PowerOutput() != 0 {
				t.Errorf("Chamber should be empty and unpowered after eject")
			}
			if got := o.HasAffliction(occupant.LabelLuciHigh) && o.HasAffliction(occupant.LabelLuciAddicted); got != tt.wantMarkers {
				t.Errorf("Expected markers=%v, got %v", tt.wantMarkers, got)
			}
			level, ok := o.NeedLevel(occupant.NeedLuciferium)
			if tt.wantNeed && (!ok || level != 1.0) {
				t.Errorf("Expected need filled to 1.0, got %v (present=%v)", level, ok)
			}
			if !tt.wantNeed && ok {
				t.Errorf("Need should not be set, got %v", level)
			}
			if len(el.GetByType(events.EventTypeOccupantEjected)) != 1 {
				t.Errorf("Expected one eject event")
			}
		})
	}
}

func TestEjectEmptyChamber(t *testing.T) {
	rs, el := newTestSystem(config.DefaultSettings())
	c := NewChamber("C1", 50)
	if rs.OnEject(c, 10) != nil {
		t.Errorf("Empty chamber should eject nothing")
	}
	if el.Len() != 0 {
		t.Errorf("No event expected for an empty eject")
	}
}

func TestInspectString(t *testing.T) {
	rs, _ := newTestSystem(config.DefaultSettings())
	c := NewChamber("C1", 50)

	if got := rs.InspectString(c); got != "Fuel: 50 / 50\nPower: 0 W" {
		t.Errorf("Unexpected empty readout: %q", got)
	}

	o := occupant.NewOccupant("O1", "Elder", rules.AgeFloorTicks+60)
	o.AddAffliction(occupant.LabelCataract, 0)
	o.AddAffliction(occupant.LabelCataract, 0)
	o.AddAffliction(occupant.LabelFrail, 0)
	rs.OnAccept(c, o, 0)

	lines := strings.Split(rs.InspectString(c), "\n")
	want := []string{
		"Fuel: 50 / 50",
		"Power: -200 W",
		"2 age afflictions",
		"Biological age: 21 years, 0 quadrums, 0 days",
		"Time remaining: 0 years 0 quadrums 0 days 1 hour",
	}
	if len(lines) != len(want) {
		t.Fatalf("Expected %d lines, got %q", len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("Line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestTicksRemaining(t *testing.T) {
	o := occupant.NewOccupant("O1", "Elder", rules.AgeFloorTicks+61)
	if got := TicksRemaining(o, 30); got != 3 {
		t.Errorf("Expected 3 ticks (rounded up), got %d", got)
	}
	o.BioAgeTicks = gametime.Years(18)
	if got := TicksRemaining(o, 30); got != 0 {
		t.Errorf("Below the floor should clamp to 0, got %d", got)
	}
}
