package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/MRamiBalles/CryoRestore/server/internal/domain/casket"
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/gametime"
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/occupant"
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/rules"
	"github.com/MRamiBalles/CryoRestore/server/internal/events"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/config"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/logger"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/metrics"
)

// DefaultRewardResidency is how long an occupant must stay inside for the
// exit reward to fill its luciferium need.
var DefaultRewardResidency = gametime.Days(3)

// StepOutcome describes what a chamber did on one tick.
type StepOutcome string

const (
	OutcomeEmpty      StepOutcome = "empty"
	OutcomeNoFuel     StepOutcome = "no_fuel"
	OutcomeIneligible StepOutcome = "ineligible"
	OutcomeUnpowered  StepOutcome = "unpowered"
	OutcomeRestored   StepOutcome = "restored"
)

// SettingsSource supplies the shared settings read on every step.
type SettingsSource interface {
	Current() config.Settings
}

// AcceptedPayload is recorded when an occupant enters a chamber.
type AcceptedPayload struct {
	ChamberID      string `json:"chamber_id"`
	OccupantID     string `json:"occupant_id"`
	BioAgeTicks    int64  `json:"bio_age_ticks"`
	AgeAfflictions int    `json:"age_afflictions"`
	Drawing        bool   `json:"drawing"` // Power drawn immediately on entry
}

// EjectedPayload is recorded when an occupant leaves a chamber.
type EjectedPayload struct {
	ChamberID     string `json:"chamber_id"`
	OccupantID    string `json:"occupant_id"`
	ResidentTicks int64  `json:"resident_ticks"`
	BioAgeTicks   int64  `json:"bio_age_ticks"`
	Addicted      bool   `json:"addicted"`
	NeedFilled    bool   `json:"need_filled"`
}

// CurePayload is recorded for every cure applied by a chamber.
type CurePayload struct {
	ChamberID    string  `json:"chamber_id"`
	OccupantID   string  `json:"occupant_id"`
	Affliction   string  `json:"affliction"`
	Removed      int     `json:"removed"`
	Severity     float64 `json:"severity,omitempty"`
	AgeYears     int     `json:"age_years"`
	NextCooldown int     `json:"next_cooldown"`
}

// RestorationSystem steps every registered chamber once per tick: it burns
// fuel, lowers biological age and cures age afflictions one at a time.
type RestorationSystem struct {
	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Collector
	settings SettingsSource

	rewardResidency int64
	chambers        map[string]*casket.Casket
	order           []string // Sorted chamber IDs, stepped in this order
}

// NewRestorationSystem creates a restoration manager.
func NewRestorationSystem(eventLog *events.EventLog, log *logger.Logger, settings SettingsSource, m *metrics.Collector) *RestorationSystem {
	return &RestorationSystem{
		eventLog:        eventLog,
		logger:          log,
		metrics:         m,
		settings:        settings,
		rewardResidency: DefaultRewardResidency,
		chambers:        make(map[string]*casket.Casket),
	}
}

// SetRewardResidency changes the residency required for the exit reward.
func (rs *RestorationSystem) SetRewardResidency(ticks int64) {
	if ticks < 0 {
		ticks = 0
	}
	rs.rewardResidency = ticks
}

// RegisterChamber adds a chamber to be stepped.
func (rs *RestorationSystem) RegisterChamber(c *casket.Casket) {
	if _, exists := rs.chambers[c.ID]; !exists {
		rs.order = append(rs.order, c.ID)
		sort.Strings(rs.order)
	}
	rs.chambers[c.ID] = c
}

// Chamber looks up a registered chamber.
func (rs *RestorationSystem) Chamber(id string) (*casket.Casket, bool) {
	c, ok := rs.chambers[id]
	return c, ok
}

// Chambers returns every chamber in stepping order.
func (rs *RestorationSystem) Chambers() []*casket.Casket {
	out := make([]*casket.Casket, 0, len(rs.order))
	for _, id := range rs.order {
		out = append(out, rs.chambers[id])
	}
	return out
}

// OnTimeTick steps every chamber for one tick.
func (rs *RestorationSystem) OnTimeTick(payload TimeTickPayload) {
	for _, id := range rs.order {
		outcome := rs.Step(rs.chambers[id], payload.TickNumber)
		rs.metrics.RecordStep(string(outcome))
	}
}

// Step runs one tick of restoration for a single chamber.
func (rs *RestorationSystem) Step(c *casket.Casket, now int64) StepOutcome {
	settings := rs.settings.Current()
	c.Fuel.SetConsumptionRate(settings.FuelPerDay())

	o := c.Occupant
	if o == nil {
		c.Power.SetPowerOutput(0)
		return OutcomeEmpty
	}
	if !c.Fuel.HasFuel() {
		c.Power.SetPowerOutput(0)
		return OutcomeNoFuel
	}

	count := rules.CountAgeAfflictions(o)
	if count == 0 && !rules.IsOverAge(o) {
		c.Power.SetPowerOutput(0)
		return OutcomeIneligible
	}

	c.Power.SetPowerOutput(-c.Power.BasePowerConsumption())
	if !c.Power.PowerOn() {
		return OutcomeUnpowered
	}

	burn := settings.FuelPerTick(gametime.TicksPerYear)
	c.Fuel.ConsumeFuel(burn)
	rs.metrics.RecordFuel(burn)
	if !c.Fuel.HasFuel() {
		rs.record(events.GameEvent{
			Type:    events.EventTypeFuelExhausted,
			ActorID: c.ID,
			Payload: map[string]float64{"capacity": c.Fuel.Capacity()},
		}, now)
		rs.logger.Warnf("Chamber %s ran out of fuel", c.ID)
	}

	if c.CooldownRemaining > 0 {
		c.CooldownRemaining--
	}

	if removed := rules.Unage(o, settings.UnageRatePerStep); removed > 0 {
		rs.metrics.RecordAgeRestored(removed)
		if !rules.IsOverAge(o) {
			rs.record(events.GameEvent{
				Type:     events.EventTypeAgeFloorReached,
				ActorID:  c.ID,
				TargetID: o.ID,
				Payload:  map[string]int64{"bio_age_ticks": o.BioAgeTicks},
			}, now)
		}
	}

	if count > 0 && c.CooldownRemaining <= 0 {
		rs.cure(c, o, now)
	}
	return OutcomeRestored
}

func (rs *RestorationSystem) cure(c *casket.Casket, o *occupant.Occupant, now int64) {
	result, ok := rules.ApplyFirstCure(o)
	if !ok {
		return
	}

	eventType := events.EventTypeAfflictionCured
	c.CooldownRemaining = casket.CooldownBase
	if !result.Completed {
		eventType = events.EventTypeAfflictionEased
		c.CooldownRemaining = casket.CooldownShort
	}
	rs.metrics.RecordCure(result.Entry.Label, result.Completed)

	rs.record(events.GameEvent{
		Type:     eventType,
		ActorID:  c.ID,
		TargetID: o.ID,
		Payload: CurePayload{
			ChamberID:    c.ID,
			OccupantID:   o.ID,
			Affliction:   result.Entry.Label,
			Removed:      result.Removed,
			Severity:     result.Severity,
			AgeYears:     o.BioAgeYears(),
			NextCooldown: c.CooldownRemaining,
		},
	}, now)
	rs.logger.Event(string(eventType), c.ID, fmt.Sprintf("%s on %s", result.Entry.Label, o.Name))
}

// OnAccept places the occupant in the chamber. The chamber starts drawing
// power immediately when it has fuel and the occupant qualifies.
func (rs *RestorationSystem) OnAccept(c *casket.Casket, o *occupant.Occupant, now int64) bool {
	if !c.Accept(o, now) {
		return false
	}

	count := rules.CountAgeAfflictions(o)
	drawing := c.Fuel.HasFuel() && (count > 0 || rules.IsOverAge(o))
	if drawing {
		c.Power.SetPowerOutput(-c.Power.BasePowerConsumption())
	}

	rs.record(events.GameEvent{
		Type:     events.EventTypeOccupantAccepted,
		ActorID:  c.ID,
		TargetID: o.ID,
		Payload: AcceptedPayload{
			ChamberID:      c.ID,
			OccupantID:     o.ID,
			BioAgeTicks:    o.BioAgeTicks,
			AgeAfflictions: count,
			Drawing:        drawing,
		},
	}, now)
	rs.logger.Infof("Chamber %s accepted %s (%d age afflictions)", c.ID, o.Name, count)
	return true
}

// OnEject removes the occupant and applies the exit effects. Returns nil
// when the chamber was empty.
func (rs *RestorationSystem) OnEject(c *casket.Casket, now int64) *occupant.Occupant {
	o := c.Occupant
	c.Power.SetPowerOutput(0)
	if o == nil {
		return nil
	}

	payload := EjectedPayload{
		ChamberID:     c.ID,
		OccupantID:    o.ID,
		ResidentTicks: c.ResidentTicks(now),
		BioAgeTicks:   o.BioAgeTicks,
	}

	settings := rs.settings.Current()
	if settings.AddictionEnabled && o.BioAgeTicks >= rules.AgeFloorTicks {
		o.AddAffliction(occupant.LabelLuciHigh, 0)
		o.AddAffliction(occupant.LabelLuciAddicted, 0)
		payload.Addicted = true
		if payload.ResidentTicks >= rs.rewardResidency {
			o.SetNeedLevel(occupant.NeedLuciferium, 1.0)
			payload.NeedFilled = true
		}
	}

	c.Release()
	rs.record(events.GameEvent{
		Type:     events.EventTypeOccupantEjected,
		ActorID:  c.ID,
		TargetID: o.ID,
		Payload:  payload,
	}, now)
	rs.logger.Infof("Chamber %s ejected %s after %s", c.ID, o.Name, gametime.TicksToPeriod(payload.ResidentTicks))
	return o
}

// TicksRemaining estimates how long until the occupant reaches the age
// floor at the given rate. Never negative.
func TicksRemaining(o *occupant.Occupant, rate int) int64 {
	if o == nil || rate <= 0 || !rules.IsOverAge(o) {
		return 0
	}
	excess := float64(o.BioAgeTicks - rules.AgeFloorTicks)
	return int64(math.Ceil(excess / float64(rate)))
}

// InspectString renders the chamber readout shown to players.
func (rs *RestorationSystem) InspectString(c *casket.Casket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fuel: %s / %s", humanize.FtoaWithDigits(c.Fuel.Fuel(), 2), humanize.FtoaWithDigits(c.Fuel.Capacity(), 2))
	fmt.Fprintf(&b, "\nPower: %s W", humanize.Commaf(c.Power.PowerOutput()))

	o := c.Occupant
	if o == nil {
		return b.String()
	}
	settings := rs.settings.Current()
	fmt.Fprintf(&b, "\n%d age afflictions", rules.CountAgeAfflictions(o))
	b.WriteString("\n" + gametime.TicksToPeriod(o.BioAgeTicks).AgeString())
	b.WriteString("\nTime remaining: " + gametime.TicksToPeriod(TicksRemaining(o, settings.UnageRatePerStep)).String())
	return b.String()
}

func (rs *RestorationSystem) record(event events.GameEvent, now int64) {
	event.Tick = now
	event.GameDay = gametime.ClockAt(now).GameDay
	appendEvent(rs.eventLog, rs.logger, rs.metrics, event)
}

// appendEvent writes to the ledger. Persistence failures are logged, the
// simulation keeps running.
func appendEvent(el *events.EventLog, log *logger.Logger, m *metrics.Collector, event events.GameEvent) {
	if el == nil {
		return
	}
	_, err := el.Append(event)
	m.RecordEventWrite(err)
	if err != nil {
		log.Errorf("Failed to persist %s event: %v", event.Type, err)
	}
}
