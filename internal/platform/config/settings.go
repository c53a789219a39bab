package config

import (
	"fmt"
	"sync"
)

// Bounds for the user-editable settings.
const (
	UnageRateMin = 10
	UnageRateMax = 100
	FuelRateMin  = 1
	FuelRateMax  = 60
)

// Settings are shared by every chamber and read on every tick.
type Settings struct {
	AddictionEnabled bool `json:"addiction_enabled"`
	UnageRatePerStep int  `json:"unage_rate_per_step"` // Ticks of age removed per tick
	FuelRatePerYear  int  `json:"fuel_rate_per_year"`
}

// DefaultSettings returns the shipped defaults.
func DefaultSettings() Settings {
	return Settings{
		AddictionEnabled: true,
		UnageRatePerStep: 30,
		FuelRatePerYear:  20,
	}
}

// Clamped returns the settings with every field inside its bounds and a
// note for each field that had to be adjusted.
func (s Settings) Clamped() (Settings, []string) {
	var adjusted []string
	if s.UnageRatePerStep < UnageRateMin || s.UnageRatePerStep > UnageRateMax {
		v := clamp(s.UnageRatePerStep, UnageRateMin, UnageRateMax)
		adjusted = append(adjusted, fmt.Sprintf("unage_rate_per_step %d -> %d", s.UnageRatePerStep, v))
		s.UnageRatePerStep = v
	}
	if s.FuelRatePerYear < FuelRateMin || s.FuelRatePerYear > FuelRateMax {
		v := clamp(s.FuelRatePerYear, FuelRateMin, FuelRateMax)
		adjusted = append(adjusted, fmt.Sprintf("fuel_rate_per_year %d -> %d", s.FuelRatePerYear, v))
		s.FuelRatePerYear = v
	}
	return s, adjusted
}

// FuelPerTick is the fuel a casket burns on one powered tick.
func (s Settings) FuelPerTick(ticksPerYear int64) float64 {
	return float64(s.FuelRatePerYear) / float64(ticksPerYear)
}

// FuelPerDay is the consumption rate shown on the fuel component.
func (s Settings) FuelPerDay() float64 {
	return float64(s.FuelRatePerYear) / 60
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Store guards the process-wide settings: one writer, many readers.
type Store struct {
	mu      sync.RWMutex
	current Settings
}

// NewStore creates a store holding the clamped initial settings.
func NewStore(initial Settings) *Store {
	s, _ := initial.Clamped()
	return &Store{current: s}
}

// Current returns a copy of the active settings.
func (st *Store) Current() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current
}

// Update clamps and stores new settings. It returns what was stored and
// which fields were adjusted.
func (st *Store) Update(next Settings) (Settings, []string) {
	clamped, adjusted := next.Clamped()
	st.mu.Lock()
	st.current = clamped
	st.mu.Unlock()
	return clamped, adjusted
}
