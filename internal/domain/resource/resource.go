// Package resource defines the fuel and power components attached to a casket.
// This package is PURE and must NOT import any infrastructure packages.
package resource

// DefaultBasePowerConsumption is the draw of a restoration casket in watts.
const DefaultBasePowerConsumption = 200.0

// DefaultFuelCapacity is the tank size of a restoration casket.
const DefaultFuelCapacity = 50.0

// Refuelable is a fuel tank.
type Refuelable struct {
	fuel     float64
	capacity float64

	// ConsumptionRatePerDay is informational; it is rewritten by the casket
	// every tick from the current settings.
	ConsumptionRatePerDay float64
}

// NewRefuelable creates a tank holding initial fuel, clamped to capacity.
func NewRefuelable(capacity, initial float64) *Refuelable {
	r := &Refuelable{capacity: capacity}
	r.Refuel(initial)
	return r
}

func (r *Refuelable) HasFuel() bool {
	return r.fuel > 0
}

func (r *Refuelable) Fuel() float64 {
	return r.fuel
}

func (r *Refuelable) Capacity() float64 {
	return r.capacity
}

// ConsumeFuel removes fuel, never going below zero.
func (r *Refuelable) ConsumeFuel(amount float64) {
	if amount <= 0 {
		return
	}
	r.fuel -= amount
	if r.fuel < 0 {
		r.fuel = 0
	}
}

// Refuel adds fuel up to capacity and returns the amount accepted.
func (r *Refuelable) Refuel(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	room := r.capacity - r.fuel
	if amount > room {
		amount = room
	}
	r.fuel += amount
	return amount
}

func (r *Refuelable) SetConsumptionRate(perDay float64) {
	r.ConsumptionRatePerDay = perDay
}

// PowerTrader is a grid connection. A negative output is consumption.
type PowerTrader struct {
	basePowerConsumption float64
	powerOutput          float64
	switchedOn           bool
	gridAvailable        bool
}

// NewPowerTrader creates a switched-on trader on an available grid.
func NewPowerTrader(basePowerConsumption float64) *PowerTrader {
	return &PowerTrader{
		basePowerConsumption: basePowerConsumption,
		switchedOn:           true,
		gridAvailable:        true,
	}
}

// PowerOn reports whether the trader is actually receiving power.
func (p *PowerTrader) PowerOn() bool {
	return p.switchedOn && p.gridAvailable
}

func (p *PowerTrader) BasePowerConsumption() float64 {
	return p.basePowerConsumption
}

func (p *PowerTrader) PowerOutput() float64 {
	return p.powerOutput
}

func (p *PowerTrader) SetPowerOutput(watts float64) {
	p.powerOutput = watts
}

func (p *PowerTrader) SwitchedOn() bool {
	return p.switchedOn
}

func (p *PowerTrader) SetSwitchedOn(on bool) {
	p.switchedOn = on
}

func (p *PowerTrader) GridAvailable() bool {
	return p.gridAvailable
}

func (p *PowerTrader) SetGridAvailable(available bool) {
	p.gridAvailable = available
}
