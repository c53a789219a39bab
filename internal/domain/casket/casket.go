// Package casket defines the restoration casket entity: a single-occupant
// container with fuel and power components.
// This package is PURE and must NOT import any infrastructure packages.
package casket

import (
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/gametime"
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/occupant"
)

// Cooldown values in ticks.
const (
	CooldownBase  = int(gametime.TicksPerQuadrum / 2)
	CooldownShort = int(gametime.TicksPerDay)
)

// FuelSource is the fuel component a casket draws from.
type FuelSource interface {
	HasFuel() bool
	ConsumeFuel(amount float64)
	SetConsumptionRate(perDay float64)
	Fuel() float64
	Capacity() float64
	Refuel(amount float64) float64
}

// PowerSource is the grid connection a casket draws from.
type PowerSource interface {
	PowerOn() bool
	BasePowerConsumption() float64
	PowerOutput() float64
	SetPowerOutput(watts float64)
	SwitchedOn() bool
	SetSwitchedOn(on bool)
}

// Casket is a container holding at most one occupant.
type Casket struct {
	ID                string
	Occupant          *occupant.Occupant
	CooldownRemaining int
	EnterTime         int64 // Tick at which the current occupant was accepted

	Fuel  FuelSource
	Power PowerSource
}

// NewCasket creates an empty casket.
func NewCasket(id string, fuel FuelSource, power PowerSource) *Casket {
	return &Casket{
		ID:    id,
		Fuel:  fuel,
		Power: power,
	}
}

func (c *Casket) HasOccupant() bool {
	return c.Occupant != nil
}

// Accept places the occupant inside and resets the cure state.
// Returns false if the casket is already occupied.
func (c *Casket) Accept(o *occupant.Occupant, now int64) bool {
	if c.Occupant != nil || o == nil {
		return false
	}
	c.Occupant = o
	c.CooldownRemaining = CooldownBase
	c.EnterTime = now
	return true
}

// Release removes and returns the occupant.
func (c *Casket) Release() *occupant.Occupant {
	o := c.Occupant
	c.Occupant = nil
	return o
}

// ResidentTicks returns how long the current occupant has been inside.
func (c *Casket) ResidentTicks(now int64) int64 {
	if c.Occupant == nil {
		return 0
	}
	return now - c.EnterTime
}
