package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MRamiBalles/CryoRestore/server/internal/domain/casket"
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/gametime"
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/occupant"
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/resource"
	"github.com/MRamiBalles/CryoRestore/server/internal/events"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/config"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/logger"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/metrics"
)

var (
	ErrUnknownChamber   = errors.New("unknown chamber")
	ErrUnknownOccupant  = errors.New("unknown occupant")
	ErrChamberOccupied  = errors.New("chamber is occupied")
	ErrChamberEmpty     = errors.New("chamber is empty")
	ErrAlreadyContained = errors.New("occupant is already inside a chamber")
	ErrDuplicateID      = errors.New("id already registered")
	ErrAlreadyRunning   = errors.New("engine already running")
)

// Engine is the central orchestrator that wires the event log to the
// restoration mechanics. Ticks and commands run under one lock.
type Engine struct {
	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Collector
	settings *config.Store
	ticker   *Ticker

	// Sub-systems
	restoration *RestorationSystem

	// State
	mu        sync.Mutex
	occupants map[string]*occupant.Occupant
	contained map[string]string // Occupant ID -> chamber ID

	sink         StatusSink
	publishEvery int64
	running      atomic.Bool
	done         chan struct{}
}

// Options tunes an Engine. Zero values fall back to defaults.
type Options struct {
	TickInterval       time.Duration
	Speed              int
	StatusPublishEvery int64
	RewardResidency    int64
	Metrics            *metrics.Collector
	Sink               StatusSink
}

// NewEngine initializes the core systems and dependencies.
func NewEngine(eventLog *events.EventLog, log *logger.Logger, settings *config.Store, opts Options) *Engine {
	if settings == nil {
		settings = config.NewStore(config.DefaultSettings())
	}
	if opts.StatusPublishEvery <= 0 {
		opts.StatusPublishEvery = 60
	}

	e := &Engine{
		eventLog:     eventLog,
		logger:       log,
		metrics:      opts.Metrics,
		settings:     settings,
		ticker:       NewTicker(opts.TickInterval, opts.Speed),
		restoration:  NewRestorationSystem(eventLog, log, settings, opts.Metrics),
		occupants:    make(map[string]*occupant.Occupant),
		contained:    make(map[string]string),
		sink:         opts.Sink,
		publishEvery: opts.StatusPublishEvery,
		done:         make(chan struct{}),
	}
	if opts.RewardResidency > 0 {
		e.restoration.SetRewardResidency(opts.RewardResidency)
	}
	return e
}

// NewChamber builds a chamber with the standard fuel and power components.
func NewChamber(id string, fuel float64) *casket.Casket {
	return casket.NewCasket(id,
		resource.NewRefuelable(resource.DefaultFuelCapacity, fuel),
		resource.NewPowerTrader(resource.DefaultBasePowerConsumption))
}

// Start runs the clock loop until ctx is cancelled. Done is closed once
// the loop has exited.
func (e *Engine) Start(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	e.logger.Infof("Starting restoration engine (%s per wake, %d ticks per wake)", e.ticker.Interval(), e.ticker.Speed())
	go e.run(ctx)
	return nil
}

// Done is closed when the clock loop stops.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	wake := time.NewTicker(e.ticker.Interval())
	defer wake.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Restoration engine stopped.")
			return
		case <-wake.C:
			e.mu.Lock()
			for i := 0; i < e.ticker.Speed(); i++ {
				e.tick()
			}
			e.mu.Unlock()
		}
	}
}

// Advance steps the simulation n ticks without waiting on the clock.
func (e *Engine) Advance(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := 0; i < n; i++ {
		e.tick()
	}
	e.publish()
}

// tick must be called with mu held.
func (e *Engine) tick() {
	start := time.Now()
	payload := e.ticker.Advance()
	e.restoration.OnTimeTick(payload)
	e.metrics.RecordTick(time.Since(start))

	if payload.TickNumber%e.publishEvery == 0 {
		e.publish()
	}
}

// Exec runs fn between ticks and publishes fresh statuses afterwards.
func (e *Engine) Exec(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	e.publish()
	return nil
}

// view runs a read-only fn between ticks.
func (e *Engine) view(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn()
}

// publish must be called with mu held.
func (e *Engine) publish() {
	occupied := 0
	chambers := e.restoration.Chambers()
	statuses := make([]ChamberStatus, 0, len(chambers))
	now := e.ticker.CurrentTick()
	for _, c := range chambers {
		if c.HasOccupant() {
			occupied++
		}
		statuses = append(statuses, e.restoration.Status(c, now))
	}
	e.metrics.SetChambersOccupied(occupied)
	if e.sink != nil {
		e.sink.Publish(statuses)
	}
}

// CurrentTick returns the last processed tick.
func (e *Engine) CurrentTick() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ticker.CurrentTick()
}

// GetCurrentTime returns the last processed tick with its in-game day and hour.
func (e *Engine) GetCurrentTime() (tick int64, day int, hour int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	day, hour = e.ticker.GetCurrentTime()
	return e.ticker.CurrentTick(), day, hour
}

// GetEventLog exposes the event log for replay and the network layer.
func (e *Engine) GetEventLog() *events.EventLog {
	return e.eventLog
}

// Settings returns the shared settings store.
func (e *Engine) Settings() *config.Store {
	return e.settings
}

// RegisterOccupant makes a pawn known to the engine.
func (e *Engine) RegisterOccupant(ctx context.Context, o *occupant.Occupant) error {
	return e.Exec(ctx, func() error {
		if _, exists := e.occupants[o.ID]; exists {
			return fmt.Errorf("occupant %s: %w", o.ID, ErrDuplicateID)
		}
		e.occupants[o.ID] = o
		e.record(events.GameEvent{
			Type:     events.EventTypeOccupantRegistered,
			ActorID:  "SYSTEM",
			TargetID: o.ID,
			Payload:  map[string]interface{}{"name": o.Name, "bio_age_ticks": o.BioAgeTicks},
		})
		e.logger.Info("Occupant registered with engine: " + o.ID)
		return nil
	})
}

// RegisterChamber adds a chamber to the restoration system.
func (e *Engine) RegisterChamber(ctx context.Context, c *casket.Casket) error {
	return e.Exec(ctx, func() error {
		if _, exists := e.restoration.Chamber(c.ID); exists {
			return fmt.Errorf("chamber %s: %w", c.ID, ErrDuplicateID)
		}
		e.restoration.RegisterChamber(c)
		e.record(events.GameEvent{
			Type:    events.EventTypeChamberRegistered,
			ActorID: c.ID,
			Payload: map[string]float64{"fuel": c.Fuel.Fuel(), "capacity": c.Fuel.Capacity()},
		})
		return nil
	})
}

// Accept moves a registered occupant into an empty chamber.
func (e *Engine) Accept(ctx context.Context, chamberID, occupantID string) error {
	return e.Exec(ctx, func() error {
		c, ok := e.restoration.Chamber(chamberID)
		if !ok {
			return fmt.Errorf("chamber %s: %w", chamberID, ErrUnknownChamber)
		}
		o, ok := e.occupants[occupantID]
		if !ok {
			return fmt.Errorf("occupant %s: %w", occupantID, ErrUnknownOccupant)
		}
		if where, inside := e.contained[occupantID]; inside {
			return fmt.Errorf("occupant %s in %s: %w", occupantID, where, ErrAlreadyContained)
		}
		if !e.restoration.OnAccept(c, o, e.ticker.CurrentTick()) {
			return fmt.Errorf("chamber %s: %w", chamberID, ErrChamberOccupied)
		}
		e.contained[occupantID] = chamberID
		return nil
	})
}

// Eject removes the occupant from a chamber and returns a copy of it.
func (e *Engine) Eject(ctx context.Context, chamberID string) (*occupant.Occupant, error) {
	var out *occupant.Occupant
	err := e.Exec(ctx, func() error {
		c, ok := e.restoration.Chamber(chamberID)
		if !ok {
			return fmt.Errorf("chamber %s: %w", chamberID, ErrUnknownChamber)
		}
		o := e.restoration.OnEject(c, e.ticker.CurrentTick())
		if o == nil {
			return fmt.Errorf("chamber %s: %w", chamberID, ErrChamberEmpty)
		}
		delete(e.contained, o.ID)
		out = o.Clone()
		return nil
	})
	return out, err
}

// Refuel adds fuel to a chamber and returns the amount accepted.
func (e *Engine) Refuel(ctx context.Context, chamberID string, amount float64) (float64, error) {
	var accepted float64
	err := e.Exec(ctx, func() error {
		c, ok := e.restoration.Chamber(chamberID)
		if !ok {
			return fmt.Errorf("chamber %s: %w", chamberID, ErrUnknownChamber)
		}
		accepted = c.Fuel.Refuel(amount)
		if accepted > 0 {
			e.record(events.GameEvent{
				Type:    events.EventTypeChamberRefueled,
				ActorID: c.ID,
				Payload: map[string]float64{"added": accepted, "fuel": c.Fuel.Fuel()},
			})
		}
		return nil
	})
	return accepted, err
}

// SetPower flips a chamber's power switch.
func (e *Engine) SetPower(ctx context.Context, chamberID string, on bool) error {
	return e.Exec(ctx, func() error {
		c, ok := e.restoration.Chamber(chamberID)
		if !ok {
			return fmt.Errorf("chamber %s: %w", chamberID, ErrUnknownChamber)
		}
		c.Power.SetSwitchedOn(on)
		e.record(events.GameEvent{
			Type:    events.EventTypePowerToggled,
			ActorID: c.ID,
			Payload: map[string]bool{"switched_on": on},
		})
		return nil
	})
}

type gridConnection interface {
	SetGridAvailable(available bool)
}

// SetGridAvailable simulates a grid outage or recovery for every chamber.
func (e *Engine) SetGridAvailable(ctx context.Context, available bool) error {
	return e.Exec(ctx, func() error {
		for _, c := range e.restoration.Chambers() {
			if grid, ok := c.Power.(gridConnection); ok {
				grid.SetGridAvailable(available)
			}
		}
		e.record(events.GameEvent{
			Type:    events.EventTypeGridChanged,
			ActorID: "SYSTEM",
			Payload: map[string]bool{"available": available},
		})
		e.logger.Warnf("Power grid available: %v", available)
		return nil
	})
}

// UpdateSettings stores clamped settings and reports the adjusted fields.
func (e *Engine) UpdateSettings(ctx context.Context, next config.Settings) (config.Settings, []string, error) {
	var (
		applied  config.Settings
		adjusted []string
	)
	err := e.Exec(ctx, func() error {
		applied, adjusted = e.settings.Update(next)
		e.metrics.RecordSettingsUpdate()
		e.record(events.GameEvent{
			Type:    events.EventTypeSettingsChanged,
			ActorID: "SYSTEM",
			Payload: map[string]interface{}{"settings": applied, "adjusted": adjusted},
		})
		return nil
	})
	return applied, adjusted, err
}

// Status returns the read model for one chamber.
func (e *Engine) Status(ctx context.Context, chamberID string) (ChamberStatus, error) {
	var status ChamberStatus
	err := e.view(ctx, func() error {
		c, ok := e.restoration.Chamber(chamberID)
		if !ok {
			return fmt.Errorf("chamber %s: %w", chamberID, ErrUnknownChamber)
		}
		status = e.restoration.Status(c, e.ticker.CurrentTick())
		return nil
	})
	return status, err
}

// ChamberCount returns the number of registered chambers.
func (e *Engine) ChamberCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.restoration.chambers)
}

// Statuses returns the read model for every chamber ordered by ID.
func (e *Engine) Statuses(ctx context.Context) ([]ChamberStatus, error) {
	var out []ChamberStatus
	err := e.view(ctx, func() error {
		now := e.ticker.CurrentTick()
		for _, c := range e.restoration.Chambers() {
			out = append(out, e.restoration.Status(c, now))
		}
		return nil
	})
	return out, err
}

// Occupant returns a copy of a registered occupant.
func (e *Engine) Occupant(ctx context.Context, occupantID string) (*occupant.Occupant, error) {
	var out *occupant.Occupant
	err := e.view(ctx, func() error {
		o, ok := e.occupants[occupantID]
		if !ok {
			return fmt.Errorf("occupant %s: %w", occupantID, ErrUnknownOccupant)
		}
		out = o.Clone()
		return nil
	})
	return out, err
}

// record must be called with mu held.
func (e *Engine) record(event events.GameEvent) {
	now := e.ticker.CurrentTick()
	event.Tick = now
	event.GameDay = gametime.ClockAt(now).GameDay
	appendEvent(e.eventLog, e.logger, e.metrics, event)
}

// Occupants returns copies of every registered occupant ordered by ID.
func (e *Engine) Occupants(ctx context.Context) ([]*occupant.Occupant, error) {
	var out []*occupant.Occupant
	err := e.view(ctx, func() error {
		out = make([]*occupant.Occupant, 0, len(e.occupants))
		for _, o := range e.occupants {
			out = append(out, o.Clone())
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}
