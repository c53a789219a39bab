package gametime

import "testing"

func TestTicksToPeriod(t *testing.T) {
	ticks := Years(2) + TicksPerQuadrum + Days(3) + 5*TicksPerHour + 100
	p := TicksToPeriod(ticks)

	if p.Years != 2 || p.Quadrums != 1 || p.Days != 3 {
		t.Fatalf("Expected 2y 1q 3d, got %+v", p)
	}
	if p.Hours <= 5 || p.Hours >= 6 {
		t.Errorf("Expected hours between 5 and 6, got %f", p.Hours)
	}
	if got := p.String(); got != "2 years 1 quadrum 3 days 6 hours" {
		t.Errorf("Unexpected period string: %q", got)
	}
}

func TestTicksToPeriodNegative(t *testing.T) {
	p := TicksToPeriod(-500)
	if p != (Period{}) {
		t.Errorf("Expected zero period for negative ticks, got %+v", p)
	}
	if got := p.String(); got != "0 years 0 quadrums 0 days 0 hours" {
		t.Errorf("Unexpected zero period string: %q", got)
	}
}

func TestAgeYears(t *testing.T) {
	if got := AgeYears(Years(21)); got != 21 {
		t.Errorf("Expected 21, got %d", got)
	}
	if got := AgeYears(Years(30) - 1); got != 29 {
		t.Errorf("Expected 29 one tick before the birthday, got %d", got)
	}
}

func TestClockAt(t *testing.T) {
	c := ClockAt(Days(2) + 7*TicksPerHour)
	if c.GameDay != 3 || c.Hour != 7 {
		t.Errorf("Expected day 3 hour 7, got %+v", c)
	}
}
