package rules

import (
	"testing"

	"github.com/MRamiBalles/CryoRestore/server/internal/domain/gametime"
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/occupant"
)

func TestCountAgeAfflictions(t *testing.T) {
	o := occupant.NewOccupant("O1", "Marcus", gametime.Years(70))
	o.AddAffliction(occupant.LabelCataract, 0)
	o.AddAffliction(occupant.LabelCataract, 0)
	o.AddAffliction(occupant.LabelHearingLoss, 0)
	o.AddAffliction(occupant.LabelHearingLoss, 0)
	o.AddAffliction(occupant.LabelBadBack, 0)
	o.AddAffliction(occupant.LabelBadBack, 0)
	o.AddAffliction(occupant.LabelAlzheimers, 0.4)
	o.AddAffliction("flu", 0.2)

	// 1 cataract + 1 hearing loss + 2 bad back + 1 alzheimer's
	if got := CountAgeAfflictions(o); got != 5 {
		t.Errorf("Expected 5 age afflictions, got %d", got)
	}
	if CountAgeAfflictions(nil) != 0 {
		t.Errorf("Nil occupant should count zero")
	}
}

func TestQualifiesForRestoration(t *testing.T) {
	young := occupant.NewOccupant("Y", "Young", gametime.Years(21))
	if QualifiesForRestoration(young) {
		t.Errorf("Occupant at exactly 21 years with no afflictions should not qualify")
	}

	young.AddAffliction(occupant.LabelFrail, 0)
	if !QualifiesForRestoration(young) {
		t.Errorf("Occupant with a curable affliction should qualify")
	}

	old := occupant.NewOccupant("O", "Old", gametime.Years(21)+1)
	if !QualifiesForRestoration(old) {
		t.Errorf("Occupant one tick over the floor should qualify")
	}
}

func TestUnagePinsAtFloor(t *testing.T) {
	o := occupant.NewOccupant("O1", "Marcus", AgeFloorTicks+45)

	if removed := Unage(o, 30); removed != 30 || o.BioAgeTicks != AgeFloorTicks+15 {
		t.Fatalf("Expected 30 ticks removed, got %d (age %d)", removed, o.BioAgeTicks)
	}
	if removed := Unage(o, 30); removed != 15 || o.BioAgeTicks != AgeFloorTicks {
		t.Fatalf("Expected the floor to stop the reduction, got %d (age %d)", removed, o.BioAgeTicks)
	}
	if removed := Unage(o, 30); removed != 0 || o.BioAgeTicks != AgeFloorTicks {
		t.Errorf("Age at the floor must not move, got %d (age %d)", removed, o.BioAgeTicks)
	}
}

func TestApplyFirstCureUsesCatalogOrder(t *testing.T) {
	o := occupant.NewOccupant("O1", "Marcus", gametime.Years(30))
	back := o.AddAffliction(occupant.LabelBadBack, 0)
	o.AddAffliction(occupant.LabelCataract, 0)

	result, ok := ApplyFirstCure(o)
	if !ok || result.Entry.Label != occupant.LabelCataract {
		t.Fatalf("Expected cataract to be cured first, got %+v (ok=%v)", result, ok)
	}
	if len(o.Afflictions) != 1 || o.Afflictions[0] != back {
		t.Errorf("Expected the bad back to remain untouched")
	}
}

func TestApplyFirstCureRespectsAgeThresholds(t *testing.T) {
	o := occupant.NewOccupant("O1", "Marcus", gametime.Years(45))
	o.AddAffliction(occupant.LabelBadBack, 0)
	o.AddAffliction(occupant.LabelFrail, 0)

	// 45 >= 39 blocks bad back, 45 < 48 allows frail.
	result, ok := ApplyFirstCure(o)
	if !ok || result.Entry.Label != occupant.LabelFrail {
		t.Fatalf("Expected frail to be cured, got %+v", result)
	}

	o.BioAgeTicks = gametime.Years(55)
	if _, ok := ApplyFirstCure(o); ok {
		t.Errorf("No cure should apply to a bad back at 55 years")
	}
}

func TestApplyFirstCureGradualAlzheimers(t *testing.T) {
	o := occupant.NewOccupant("O1", "Marcus", gametime.Years(60))
	a := o.AddAffliction(occupant.LabelAlzheimers, 1.0)

	result, ok := ApplyFirstCure(o)
	if !ok || result.Completed {
		t.Fatalf("Expected a partial cure, got %+v", result)
	}
	if diff := a.Severity - (1.0 - 1/7.5); diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected severity ~0.867, got %f", a.Severity)
	}
	if !o.HasAffliction(occupant.LabelAlzheimers) {
		t.Errorf("Alzheimer's should remain while severity is positive")
	}

	a.Severity = 0.1
	result, ok = ApplyFirstCure(o)
	if !ok || !result.Completed || result.Removed != 1 {
		t.Fatalf("Expected a completed cure, got %+v", result)
	}
	if o.HasAffliction(occupant.LabelAlzheimers) {
		t.Errorf("Alzheimer's should be removed once severity reaches zero")
	}
}

func TestIsCurable(t *testing.T) {
	if !IsCurable(occupant.LabelDementia) {
		t.Errorf("Dementia should be curable")
	}
	if IsCurable(occupant.LabelLuciHigh) {
		t.Errorf("Luciferium high is not a curable affliction")
	}
}
