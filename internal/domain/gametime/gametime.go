// Package gametime defines the simulation calendar used by the chambers.
// This package is PURE and must NOT import any infrastructure packages.
package gametime

import (
	"fmt"
	"math"
)

// Calendar constants. One tick is the smallest simulation step.
const (
	TicksPerHour    int64 = 2500
	TicksPerDay     int64 = 60000
	DaysPerQuadrum  int64 = 15
	TicksPerQuadrum int64 = TicksPerDay * DaysPerQuadrum // 900 000
	QuadrumsPerYear int64 = 4
	TicksPerYear    int64 = TicksPerQuadrum * QuadrumsPerYear // 3 600 000
)

// Years converts whole years to ticks.
func Years(n int) int64 {
	return int64(n) * TicksPerYear
}

// Days converts whole days to ticks.
func Days(n int) int64 {
	return int64(n) * TicksPerDay
}

// AgeYears returns the number of completed years in ticks.
func AgeYears(ticks int64) int {
	if ticks <= 0 {
		return 0
	}
	return int(ticks / TicksPerYear)
}

// Period is a tick count broken down into calendar units.
type Period struct {
	Years    int
	Quadrums int
	Days     int
	Hours    float64
}

// TicksToPeriod splits a tick count into years, quadrums, days and hours.
// Negative input is treated as zero.
func TicksToPeriod(ticks int64) Period {
	if ticks < 0 {
		ticks = 0
	}
	years := ticks / TicksPerYear
	ticks -= years * TicksPerYear
	quadrums := ticks / TicksPerQuadrum
	ticks -= quadrums * TicksPerQuadrum
	days := ticks / TicksPerDay
	ticks -= days * TicksPerDay

	return Period{
		Years:    int(years),
		Quadrums: int(quadrums),
		Days:     int(days),
		Hours:    float64(ticks) / float64(TicksPerHour),
	}
}

// AgeString renders a biological age line.
func (p Period) AgeString() string {
	return fmt.Sprintf("Biological age: %d years, %d quadrums, %d days", p.Years, p.Quadrums, p.Days)
}

// String renders the period with singular/plural units and hours rounded up.
func (p Period) String() string {
	hours := int(math.Ceil(p.Hours))
	return plural(p.Years, "year") + " " +
		plural(p.Quadrums, "quadrum") + " " +
		plural(p.Days, "day") + " " +
		plural(hours, "hour")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// Clock is a derived view of an absolute tick number.
type Clock struct {
	Tick    int64
	GameDay int // 1-based
	Hour    int // 0-23
}

// ClockAt derives the in-game day and hour for a tick number.
func ClockAt(tick int64) Clock {
	if tick < 0 {
		tick = 0
	}
	return Clock{
		Tick:    tick,
		GameDay: int(tick/TicksPerDay) + 1,
		Hour:    int((tick % TicksPerDay) / TicksPerHour),
	}
}
