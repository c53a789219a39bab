// Package occupant defines the pawn that can be placed inside a restoration casket.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package occupant

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/MRamiBalles/CryoRestore/server/internal/domain/gametime"
)

// Well-known affliction labels.
const (
	LabelCataract     = "cataract"
	LabelHearingLoss  = "hearing loss"
	LabelBadBack      = "bad back"
	LabelFrail        = "frail"
	LabelDementia     = "dementia"
	LabelAlzheimers   = "alzheimer's"
	LabelLuciHigh     = "luciferium high"
	LabelLuciAddicted = "luciferium addiction"
)

// NeedID identifies a tracked need.
type NeedID string

const (
	NeedLuciferium NeedID = "Chemical_Luciferium"
)

// Affliction is a named health condition attached to an occupant.
type Affliction struct {
	ID       string  `json:"id"`
	Label    string  `json:"label"`
	Severity float64 `json:"severity"` // 0-1, 0 for conditions without severity
}

// Heal lowers the severity by amount. Severity may go to zero or below;
// callers decide whether to remove the affliction.
func (a *Affliction) Heal(amount float64) {
	a.Severity -= amount
}

// Occupant represents a pawn. The casket borrows it while contained and
// only mutates age, afflictions and needs.
type Occupant struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	BioAgeTicks int64              `json:"bio_age_ticks"`
	Afflictions []*Affliction      `json:"afflictions"` // Enumeration order is insertion order
	Needs       map[NeedID]float64 `json:"needs"`       // 0-1
}

// NewOccupant creates an occupant with the given biological age in ticks.
func NewOccupant(id, name string, bioAgeTicks int64) *Occupant {
	if id == "" {
		id = ulid.Make().String()
	}
	if bioAgeTicks < 0 {
		bioAgeTicks = 0
	}
	return &Occupant{
		ID:          id,
		Name:        name,
		BioAgeTicks: bioAgeTicks,
		Afflictions: []*Affliction{},
		Needs:       make(map[NeedID]float64),
	}
}

// Helper methods

// BioAgeYears returns the completed biological years.
func (o *Occupant) BioAgeYears() int {
	return gametime.AgeYears(o.BioAgeTicks)
}

// AddAffliction appends a new affliction and returns it.
func (o *Occupant) AddAffliction(label string, severity float64) *Affliction {
	a := &Affliction{
		ID:       ulid.Make().String(),
		Label:    label,
		Severity: severity,
	}
	o.Afflictions = append(o.Afflictions, a)
	return a
}

// RemoveAffliction removes the affliction with the given ID.
func (o *Occupant) RemoveAffliction(id string) bool {
	for i, a := range o.Afflictions {
		if a.ID == id {
			o.Afflictions = append(o.Afflictions[:i], o.Afflictions[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveAfflictionsByLabel removes every affliction with the label and
// returns how many were removed.
func (o *Occupant) RemoveAfflictionsByLabel(label string) int {
	kept := o.Afflictions[:0]
	removed := 0
	for _, a := range o.Afflictions {
		if a.Label == label {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	for i := len(kept); i < len(o.Afflictions); i++ {
		o.Afflictions[i] = nil
	}
	o.Afflictions = kept
	return removed
}

// FindAffliction returns the first affliction with the label.
func (o *Occupant) FindAffliction(label string) *Affliction {
	for _, a := range o.Afflictions {
		if a.Label == label {
			return a
		}
	}
	return nil
}

func (o *Occupant) HasAffliction(label string) bool {
	return o.FindAffliction(label) != nil
}

// CountAffliction returns how many instances of label are present.
func (o *Occupant) CountAffliction(label string) int {
	n := 0
	for _, a := range o.Afflictions {
		if a.Label == label {
			n++
		}
	}
	return n
}

// NeedLevel returns the level of a need and whether the occupant has it.
func (o *Occupant) NeedLevel(id NeedID) (float64, bool) {
	level, ok := o.Needs[id]
	return level, ok
}

// SetNeedLevel sets a need level, clamped to [0,1].
func (o *Occupant) SetNeedLevel(id NeedID, level float64) {
	if o.Needs == nil {
		o.Needs = make(map[NeedID]float64)
	}
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	o.Needs[id] = level
}

// Clone returns a deep copy, used for snapshots handed to other goroutines.
func (o *Occupant) Clone() *Occupant {
	c := &Occupant{
		ID:          o.ID,
		Name:        o.Name,
		BioAgeTicks: o.BioAgeTicks,
		Afflictions: make([]*Affliction, 0, len(o.Afflictions)),
		Needs:       make(map[NeedID]float64, len(o.Needs)),
	}
	for _, a := range o.Afflictions {
		cp := *a
		c.Afflictions = append(c.Afflictions, &cp)
	}
	for k, v := range o.Needs {
		c.Needs[k] = v
	}
	return c
}

// ParseAffliction reads "label" or "label:severity" as typed on the command
// line or sent by the dashboard.
func ParseAffliction(s string) (string, float64, error) {
	label, sev, hasSeverity := strings.Cut(s, ":")
	label = strings.TrimSpace(label)
	if label == "" {
		return "", 0, fmt.Errorf("empty affliction label in %q", s)
	}
	if !hasSeverity {
		return label, 0, nil
	}
	severity, err := strconv.ParseFloat(strings.TrimSpace(sev), 64)
	if err != nil || severity < 0 || severity > 1 {
		return "", 0, fmt.Errorf("invalid severity in %q", s)
	}
	return label, severity, nil
}
