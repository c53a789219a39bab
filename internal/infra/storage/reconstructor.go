// Package storage - reconstructor.go
// Treatment recap: rebuilds an occupant's chamber history from the event log.
// This is the core of Event Sourcing: state = f(events).
package storage

import (
	"context"
	"fmt"
)

// Event types the reconstructor understands.
const (
	eventAccepted = "OCCUPANT_ACCEPTED"
	eventEjected  = "OCCUPANT_EJECTED"
	eventCured    = "AFFLICTION_CURED"
	eventEased    = "AFFLICTION_EASED"
	eventFloor    = "AGE_FLOOR_REACHED"
)

// Reconstructor rebuilds occupant history from the event log.
// This is used for:
// 1. The recap endpoint - what happened to an occupant across stays
// 2. Auditing and debugging
type Reconstructor struct {
	eventRepo EventRepository
}

// NewReconstructor creates a new state reconstructor.
func NewReconstructor(eventRepo EventRepository) *Reconstructor {
	return &Reconstructor{eventRepo: eventRepo}
}

// Session is one stay inside a chamber.
type Session struct {
	ChamberID     string   `json:"chamber_id"`
	EnteredTick   int64    `json:"entered_tick"`
	ExitedTick    int64    `json:"exited_tick,omitempty"` // Zero while still inside
	AgeAtEntry    int64    `json:"age_at_entry"`
	AgeAtExit     int64    `json:"age_at_exit,omitempty"`
	Cured         []string `json:"cured"`
	EasedSteps    int      `json:"eased_steps"`
	ReachedFloor  bool     `json:"reached_floor"`
	Addicted      bool     `json:"addicted"`
	NeedSatisfied bool     `json:"need_satisfied"`
}

// Open reports whether the occupant is still inside.
func (s Session) Open() bool {
	return s.ExitedTick == 0
}

// RecapEvent is a simplified event for the recap screen.
type RecapEvent struct {
	Tick      int64  `json:"tick"`
	GameDay   int    `json:"game_day"`
	EventType string `json:"event_type"`
	Summary   string `json:"summary"` // Human-readable description
	Impact    string `json:"impact"`  // "POSITIVE", "NEGATIVE", "NEUTRAL"
}

// Recap is the rebuilt treatment history of one occupant.
type Recap struct {
	OccupantID string       `json:"occupant_id"`
	Sessions   []Session    `json:"sessions"`
	TotalCures int          `json:"total_cures"`
	Events     []RecapEvent `json:"events"`
}

// BuildRecap reconstructs every chamber stay of an occupant.
func (r *Reconstructor) BuildRecap(ctx context.Context, gameID, occupantID string) (*Recap, error) {
	events, err := r.eventRepo.GetByTargetID(ctx, gameID, occupantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for occupant: %w", err)
	}

	recap := &Recap{OccupantID: occupantID, Sessions: []Session{}, Events: []RecapEvent{}}
	var current *Session

	for _, e := range events {
		switch e.EventType {
		case eventAccepted:
			recap.Sessions = append(recap.Sessions, Session{
				ChamberID:   e.ActorID,
				EnteredTick: e.Tick,
				AgeAtEntry:  payloadInt(e.Payload, "bio_age_ticks"),
				Cured:       []string{},
			})
			current = &recap.Sessions[len(recap.Sessions)-1]
		case eventCured:
			if current != nil {
				current.Cured = append(current.Cured, payloadString(e.Payload, "affliction"))
			}
			recap.TotalCures++
		case eventEased:
			if current != nil {
				current.EasedSteps++
			}
		case eventFloor:
			if current != nil {
				current.ReachedFloor = true
			}
		case eventEjected:
			if current != nil {
				current.ExitedTick = e.Tick
				current.AgeAtExit = payloadInt(e.Payload, "bio_age_ticks")
				current.Addicted = payloadBool(e.Payload, "addicted")
				current.NeedSatisfied = payloadBool(e.Payload, "need_filled")
				current = nil
			}
		}

		recap.Events = append(recap.Events, RecapEvent{
			Tick:      e.Tick,
			GameDay:   e.GameDay,
			EventType: e.EventType,
			Summary:   r.summarizeEvent(e),
			Impact:    r.determineImpact(e),
		})
	}

	return recap, nil
}

// GenerateRecap returns the recap entries for an occupant since a given day.
func (r *Reconstructor) GenerateRecap(ctx context.Context, gameID, occupantID string, sinceDay int) ([]RecapEvent, error) {
	full, err := r.BuildRecap(ctx, gameID, occupantID)
	if err != nil {
		return nil, err
	}
	var out []RecapEvent
	for _, e := range full.Events {
		if e.GameDay >= sinceDay {
			out = append(out, e)
		}
	}
	return out, nil
}

// summarizeEvent creates a human-readable summary.
func (r *Reconstructor) summarizeEvent(e GameEvent) string {
	switch e.EventType {
	case eventAccepted:
		return "Entered chamber " + e.ActorID + "."
	case eventEjected:
		if payloadBool(e.Payload, "addicted") {
			return "Left chamber " + e.ActorID + " dependent on luciferium."
		}
		return "Left chamber " + e.ActorID + "."
	case eventCured:
		return "Cured of " + payloadString(e.Payload, "affliction") + "."
	case eventEased:
		return "Symptoms of " + payloadString(e.Payload, "affliction") + " eased."
	case eventFloor:
		return "Restored to the youngest age a chamber allows."
	default:
		return "Something happened in the chamber."
	}
}

// determineImpact classifies the event impact.
func (r *Reconstructor) determineImpact(e GameEvent) string {
	switch e.EventType {
	case eventCured, eventEased, eventFloor:
		return "POSITIVE"
	case eventEjected:
		if payloadBool(e.Payload, "addicted") {
			return "NEGATIVE"
		}
		return "NEUTRAL"
	default:
		return "NEUTRAL"
	}
}

// Payloads round-trip through JSON, so numbers arrive as float64.
func payloadInt(p map[string]interface{}, key string) int64 {
	if v, ok := p[key].(float64); ok {
		return int64(v)
	}
	return 0
}

func payloadString(p map[string]interface{}, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func payloadBool(p map[string]interface{}, key string) bool {
	v, _ := p[key].(bool)
	return v
}
