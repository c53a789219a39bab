package engine

import (
	"time"

	"github.com/MRamiBalles/CryoRestore/server/internal/domain/gametime"
)

// TimeTickPayload is the data handed to every system on each tick.
type TimeTickPayload struct {
	TickNumber int64 `json:"tick_number"`
	GameDay    int   `json:"game_day"`
	GameHour   int   `json:"game_hour"` // 0-23 in-game
}

// Ticker owns the simulation clock.
// It does NOT know about chambers or occupants - only time progression.
type Ticker struct {
	tickNumber int64
	interval   time.Duration
	speed      int
}

// NewTicker creates a clock that wakes every interval and advances speed
// ticks per wake.
func NewTicker(interval time.Duration, speed int) *Ticker {
	if interval <= 0 {
		interval = time.Second / 60
	}
	if speed < 1 {
		speed = 1
	}
	return &Ticker{
		interval: interval,
		speed:    speed,
	}
}

// Advance moves the clock forward by one tick.
func (t *Ticker) Advance() TimeTickPayload {
	t.tickNumber++
	clock := gametime.ClockAt(t.tickNumber)
	return TimeTickPayload{
		TickNumber: t.tickNumber,
		GameDay:    clock.GameDay,
		GameHour:   clock.Hour,
	}
}

// SetTime restores the clock, e.g. after loading a save.
func (t *Ticker) SetTime(tickNumber int64) {
	if tickNumber < 0 {
		tickNumber = 0
	}
	t.tickNumber = tickNumber
}

// CurrentTick returns the last processed tick.
func (t *Ticker) CurrentTick() int64 {
	return t.tickNumber
}

// GetCurrentTime returns the current in-game day and hour.
func (t *Ticker) GetCurrentTime() (day int, hour int) {
	clock := gametime.ClockAt(t.tickNumber)
	return clock.GameDay, clock.Hour
}

func (t *Ticker) Interval() time.Duration {
	return t.interval
}

func (t *Ticker) Speed() int {
	return t.speed
}
