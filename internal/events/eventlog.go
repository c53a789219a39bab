// Package events provides the event-sourcing ledger for the restoration server.
// Every accept, eject, cure and settings change is recorded here.
package events

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType defines the category of a chamber event.
type EventType string

const (
	EventTypeOccupantRegistered EventType = "OCCUPANT_REGISTERED"
	EventTypeChamberRegistered  EventType = "CHAMBER_REGISTERED"
	EventTypeOccupantAccepted   EventType = "OCCUPANT_ACCEPTED"
	EventTypeOccupantEjected    EventType = "OCCUPANT_EJECTED"
	EventTypeAfflictionCured    EventType = "AFFLICTION_CURED"
	EventTypeAfflictionEased    EventType = "AFFLICTION_EASED"
	EventTypeAgeFloorReached    EventType = "AGE_FLOOR_REACHED"
	EventTypeChamberRefueled    EventType = "CHAMBER_REFUELED"
	EventTypeFuelExhausted      EventType = "FUEL_EXHAUSTED"
	EventTypePowerToggled       EventType = "POWER_TOGGLED"
	EventTypeGridChanged        EventType = "GRID_CHANGED"
	EventTypeSettingsChanged    EventType = "SETTINGS_CHANGED"
)

// GameEvent represents an immutable record of something that happened.
type GameEvent struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	ActorID   string      `json:"actor_id"`  // Chamber or system that acted
	TargetID  string      `json:"target_id"` // Occupant affected (optional)
	Payload   interface{} `json:"payload"`   // Event-specific data
	Tick      int64       `json:"tick"`
	GameDay   int         `json:"game_day"`
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// EventLog is the in-memory append-only log of chamber events.
type EventLog struct {
	mu        sync.RWMutex
	events    []GameEvent
	persister EventPersister
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister) *EventLog {
	return &EventLog{
		events:    make([]GameEvent, 0),
		persister: persister,
	}
}

// Append adds a new event to the log and writes it through to the
// persister. The event stays in memory even if persisting fails.
func (el *EventLog) Append(event GameEvent) (GameEvent, error) {
	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	el.mu.Lock()
	el.events = append(el.events, event)
	el.mu.Unlock()

	if el.persister != nil {
		if err := el.persister.Append(event); err != nil {
			return event, err
		}
	}
	return event, nil
}

// Len returns the number of events in the log.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

// Since returns a copy of the events appended after offset.
func (el *EventLog) Since(offset int) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(el.events) {
		return nil
	}
	out := make([]GameEvent, len(el.events)-offset)
	copy(out, el.events[offset:])
	return out
}

// GetByActor returns all events performed by a specific actor.
func (el *EventLog) GetByActor(actorID string) []GameEvent {
	return el.filter(func(e GameEvent) bool { return e.ActorID == actorID })
}

// GetByTarget returns all events that affected a specific occupant.
func (el *EventLog) GetByTarget(targetID string) []GameEvent {
	return el.filter(func(e GameEvent) bool { return e.TargetID == targetID })
}

// GetByType returns all events of one type.
func (el *EventLog) GetByType(t EventType) []GameEvent {
	return el.filter(func(e GameEvent) bool { return e.Type == t })
}

// Replay returns the full history of events.
func (el *EventLog) Replay() []GameEvent {
	return el.Since(0)
}

func (el *EventLog) filter(keep func(GameEvent) bool) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if keep(e) {
			result = append(result, e)
		}
	}
	return result
}

// GenerateEventID creates a unique, time-ordered event identifier.
func GenerateEventID() string {
	return ulid.Make().String()
}
