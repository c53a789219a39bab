// Package network - history.go
// History endpoint: JSON export of the chamber event log.
package network

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/MRamiBalles/CryoRestore/server/internal/events"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/logger"
)

// HistoryHandler serves the in-memory event log.
type HistoryHandler struct {
	eventLog *events.EventLog
	logger   *logger.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(el *events.EventLog, log *logger.Logger) *HistoryHandler {
	return &HistoryHandler{
		eventLog: el,
		logger:   log,
	}
}

// HistoryEvent is an event shaped for the dashboard.
type HistoryEvent struct {
	ID        string      `json:"id"`
	Timestamp string      `json:"timestamp"`
	Tick      int64       `json:"tick"`
	GameDay   int         `json:"game_day"`
	Type      string      `json:"type"`
	ChamberID string      `json:"chamber_id,omitempty"`
	TargetID  string      `json:"target_id,omitempty"`
	Summary   string      `json:"summary"`
	Details   interface{} `json:"details,omitempty"`
}

// HistoryResponse is the API response for the history endpoint.
type HistoryResponse struct {
	TotalEvents int            `json:"total_events"`
	FilteredBy  string         `json:"filtered_by,omitempty"`
	GeneratedAt string         `json:"generated_at"`
	Events      []HistoryEvent `json:"events"`
}

// HandleHistory returns the filtered event log.
// GET /api/history?type=AFFLICTION_CURED&chamber=C1&occupant=O1&day=N&since_tick=T
func (hh *HistoryHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	eventType := q.Get("type")
	chamberID := q.Get("chamber")
	occupantID := q.Get("occupant")

	day, hasDay, err := optionalInt(q.Get("day"))
	if err != nil {
		jsonError(w, "Invalid day", http.StatusBadRequest)
		return
	}
	sinceTick, hasSince, err := optionalInt(q.Get("since_tick"))
	if err != nil {
		jsonError(w, "Invalid since_tick", http.StatusBadRequest)
		return
	}

	out := []HistoryEvent{}
	for _, e := range hh.eventLog.Replay() {
		if eventType != "" && string(e.Type) != eventType {
			continue
		}
		if chamberID != "" && e.ActorID != chamberID {
			continue
		}
		if occupantID != "" && e.TargetID != occupantID {
			continue
		}
		if hasDay && e.GameDay != int(day) {
			continue
		}
		if hasSince && e.Tick < sinceTick {
			continue
		}
		out = append(out, toHistoryEvent(e, false))
	}

	var filterDesc string
	if hasDay {
		filterDesc = "Day " + strconv.FormatInt(day, 10)
	}

	hh.logger.Event("HISTORY", "API", "Events:"+strconv.Itoa(len(out)))
	writeJSON(w, http.StatusOK, HistoryResponse{
		TotalEvents: len(out),
		FilteredBy:  filterDesc,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      out,
	})
}

// HandleEventDetail returns one event with its payload.
// GET /api/history/{id}
func (hh *HistoryHandler) HandleEventDetail(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["id"]
	for _, e := range hh.eventLog.Replay() {
		if e.ID == eventID {
			writeJSON(w, http.StatusOK, toHistoryEvent(e, true))
			return
		}
	}
	jsonError(w, "Event not found", http.StatusNotFound)
}

func toHistoryEvent(e events.GameEvent, withDetails bool) HistoryEvent {
	he := HistoryEvent{
		ID:        e.ID,
		Timestamp: e.Timestamp.Format(time.RFC3339),
		Tick:      e.Tick,
		GameDay:   e.GameDay,
		Type:      string(e.Type),
		ChamberID: e.ActorID,
		TargetID:  e.TargetID,
		Summary:   summarize(e),
	}
	if withDetails {
		he.Details = e.Payload
	}
	return he
}

// summarize creates a one-line description of an event.
func summarize(e events.GameEvent) string {
	switch e.Type {
	case events.EventTypeOccupantRegistered:
		return fmt.Sprintf("Occupant %s registered.", e.TargetID)
	case events.EventTypeChamberRegistered:
		return fmt.Sprintf("Chamber %s installed.", e.ActorID)
	case events.EventTypeOccupantAccepted:
		return fmt.Sprintf("%s entered chamber %s.", e.TargetID, e.ActorID)
	case events.EventTypeOccupantEjected:
		return fmt.Sprintf("%s left chamber %s.", e.TargetID, e.ActorID)
	case events.EventTypeAfflictionCured:
		return fmt.Sprintf("Chamber %s cured an affliction of %s.", e.ActorID, e.TargetID)
	case events.EventTypeAfflictionEased:
		return fmt.Sprintf("Chamber %s eased an affliction of %s.", e.ActorID, e.TargetID)
	case events.EventTypeAgeFloorReached:
		return fmt.Sprintf("%s reached the age floor.", e.TargetID)
	case events.EventTypeChamberRefueled:
		return fmt.Sprintf("Chamber %s refueled.", e.ActorID)
	case events.EventTypeFuelExhausted:
		return fmt.Sprintf("Chamber %s ran out of fuel.", e.ActorID)
	case events.EventTypePowerToggled:
		return fmt.Sprintf("Chamber %s power toggled.", e.ActorID)
	case events.EventTypeGridChanged:
		return "Power grid changed."
	case events.EventTypeSettingsChanged:
		return "Settings changed."
	default:
		return string(e.Type)
	}
}

func optionalInt(s string) (int64, bool, error) {
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
