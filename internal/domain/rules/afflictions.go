// Package rules contains the pure calculation logic for restoration mechanics.
// This package is PURE and must NOT import any infrastructure packages.
package rules

import (
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/gametime"
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/occupant"
)

// AgeFloorYears is the biological age a casket restores down to.
const AgeFloorYears = 21

// AgeFloorTicks is AgeFloorYears in ticks.
var AgeFloorTicks = gametime.Years(AgeFloorYears)

// AlzheimersHealPerCure is how much severity one cure removes.
const AlzheimersHealPerCure = 1 / 7.5

// CureAction describes how a catalog entry treats the affliction.
type CureAction int

const (
	CureRemoveAll CureAction = iota // Remove every instance of the label
	CureRemoveOne                   // Remove the matched instance
	CureHealGradually               // Reduce severity, remove at zero
)

// CatalogEntry is one curable age-related affliction.
type CatalogEntry struct {
	Label       string
	MaxAgeYears int // Cure only while age in years is below this
	Action      CureAction
}

// Catalog is evaluated in order; the first eligible entry wins.
var Catalog = []CatalogEntry{
	{Label: occupant.LabelCataract, MaxAgeYears: 52, Action: CureRemoveAll},
	{Label: occupant.LabelHearingLoss, MaxAgeYears: 52, Action: CureRemoveAll},
	{Label: occupant.LabelBadBack, MaxAgeYears: 39, Action: CureRemoveOne},
	{Label: occupant.LabelFrail, MaxAgeYears: 48, Action: CureRemoveOne},
	{Label: occupant.LabelDementia, MaxAgeYears: 66, Action: CureRemoveOne},
	{Label: occupant.LabelAlzheimers, MaxAgeYears: 72, Action: CureHealGradually},
}

// IsCurable reports whether the label is in the catalog.
func IsCurable(label string) bool {
	for _, e := range Catalog {
		if e.Label == label {
			return true
		}
	}
	return false
}

// CountAgeAfflictions counts curable afflictions. Cataract and hearing loss
// count once no matter how many instances exist.
func CountAgeAfflictions(o *occupant.Occupant) int {
	if o == nil {
		return 0
	}
	hasCataract := false
	hasHearingLoss := false
	count := 0
	for _, a := range o.Afflictions {
		switch a.Label {
		case occupant.LabelCataract:
			if !hasCataract {
				count++
				hasCataract = true
			}
		case occupant.LabelHearingLoss:
			if !hasHearingLoss {
				count++
				hasHearingLoss = true
			}
		case occupant.LabelBadBack, occupant.LabelFrail, occupant.LabelDementia, occupant.LabelAlzheimers:
			count++
		}
	}
	return count
}

// IsOverAge reports whether the occupant is older than the age floor.
func IsOverAge(o *occupant.Occupant) bool {
	return o != nil && o.BioAgeTicks > AgeFloorTicks
}

// QualifiesForRestoration reports whether a casket has work to do.
func QualifiesForRestoration(o *occupant.Occupant) bool {
	return CountAgeAfflictions(o) > 0 || IsOverAge(o)
}

// Unage lowers the biological age by rate ticks without crossing the floor.
// Returns the number of ticks removed.
func Unage(o *occupant.Occupant, rate int) int64 {
	if !IsOverAge(o) || rate <= 0 {
		return 0
	}
	before := o.BioAgeTicks
	o.BioAgeTicks -= int64(rate)
	if o.BioAgeTicks < AgeFloorTicks {
		o.BioAgeTicks = AgeFloorTicks
	}
	return before - o.BioAgeTicks
}

// CureResult reports what ApplyFirstCure did.
type CureResult struct {
	Entry     CatalogEntry
	Removed   int     // Instances removed
	Severity  float64 // Remaining severity for gradual cures
	Completed bool    // False only for a partial gradual cure
}

// ApplyFirstCure applies the first catalog entry that is present on the
// occupant and allowed at its current age. Returns false if nothing matched.
func ApplyFirstCure(o *occupant.Occupant) (CureResult, bool) {
	if o == nil {
		return CureResult{}, false
	}
	years := o.BioAgeYears()

	for _, entry := range Catalog {
		if years >= entry.MaxAgeYears {
			continue
		}
		target := o.FindAffliction(entry.Label)
		if target == nil {
			continue
		}

		result := CureResult{Entry: entry, Completed: true}
		switch entry.Action {
		case CureRemoveAll:
			result.Removed = o.RemoveAfflictionsByLabel(entry.Label)
		case CureRemoveOne:
			if o.RemoveAffliction(target.ID) {
				result.Removed = 1
			}
		case CureHealGradually:
			target.Heal(AlzheimersHealPerCure)
			result.Severity = target.Severity
			if target.Severity > 0 {
				result.Completed = false
			} else if o.RemoveAffliction(target.ID) {
				result.Removed = 1
			}
		}
		return result, true
	}
	return CureResult{}, false
}
