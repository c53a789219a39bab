// Package network - api.go
// REST API for the operator dashboard. Every mutation goes through the
// engine; reads prefer the status cache.
package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/MRamiBalles/CryoRestore/server/internal/domain/gametime"
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/occupant"
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/resource"
	"github.com/MRamiBalles/CryoRestore/server/internal/engine"
	"github.com/MRamiBalles/CryoRestore/server/internal/infra/cache"
	"github.com/MRamiBalles/CryoRestore/server/internal/infra/storage"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/config"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/logger"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/metrics"
)

// SettingsSaver persists settings after a successful update.
type SettingsSaver interface {
	SaveSettings(ctx context.Context, gameID string, rec storage.SettingsRecord) error
}

// APIOptions wires the optional collaborators of the API.
type APIOptions struct {
	GameID   string
	Cache    *cache.StatusCache
	Recaps   *storage.Reconstructor
	Settings SettingsSaver
	Metrics  *metrics.Collector
	Hub      *Hub
}

// API handles the dashboard endpoints.
type API struct {
	engine  *engine.Engine
	history *HistoryHandler
	opts    APIOptions
	logger  *logger.Logger
}

// NewAPI creates the REST handlers.
func NewAPI(eng *engine.Engine, log *logger.Logger, opts APIOptions) *API {
	return &API{
		engine:  eng,
		history: NewHistoryHandler(eng.GetEventLog(), log),
		opts:    opts,
		logger:  log,
	}
}

// Router builds the HTTP routes.
func (a *API) Router() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/time", a.handleTime).Methods(http.MethodGet)
	api.HandleFunc("/chambers", a.handleListChambers).Methods(http.MethodGet)
	api.HandleFunc("/chambers", a.handleCreateChamber).Methods(http.MethodPost)
	api.HandleFunc("/chambers/{id}", a.handleGetChamber).Methods(http.MethodGet)
	api.HandleFunc("/chambers/{id}/accept", a.handleAccept).Methods(http.MethodPost)
	api.HandleFunc("/chambers/{id}/eject", a.handleEject).Methods(http.MethodPost)
	api.HandleFunc("/chambers/{id}/refuel", a.handleRefuel).Methods(http.MethodPost)
	api.HandleFunc("/chambers/{id}/power", a.handlePower).Methods(http.MethodPost)
	api.HandleFunc("/grid", a.handleGrid).Methods(http.MethodPost)
	api.HandleFunc("/occupants", a.handleListOccupants).Methods(http.MethodGet)
	api.HandleFunc("/occupants", a.handleCreateOccupant).Methods(http.MethodPost)
	api.HandleFunc("/occupants/{id}", a.handleGetOccupant).Methods(http.MethodGet)
	api.HandleFunc("/occupants/{id}/recap", a.handleRecap).Methods(http.MethodGet)
	api.HandleFunc("/settings", a.handleGetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", a.handlePutSettings).Methods(http.MethodPut)
	api.HandleFunc("/history", a.history.HandleHistory).Methods(http.MethodGet)
	api.HandleFunc("/history/{id}", a.history.HandleEventDetail).Methods(http.MethodGet)

	if a.opts.Metrics != nil {
		router.Handle("/metrics", a.opts.Metrics.Handler())
	}
	if a.opts.Hub != nil {
		router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			ServeWs(a.opts.Hub, w, r)
		})
	}
	return router
}

// engineError maps engine errors onto HTTP statuses.
func engineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrUnknownChamber), errors.Is(err, engine.ErrUnknownOccupant):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, engine.ErrChamberOccupied), errors.Is(err, engine.ErrChamberEmpty),
		errors.Is(err, engine.ErrAlreadyContained), errors.Is(err, engine.ErrDuplicateID):
		jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (a *API) handleTime(w http.ResponseWriter, r *http.Request) {
	tick, day, hour := a.engine.GetCurrentTime()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tick":      tick,
		"game_day":  day,
		"game_hour": hour,
	})
}

// Chambers

func (a *API) handleListChambers(w http.ResponseWriter, r *http.Request) {
	// The cache is bounded; serve from it only while it holds every chamber.
	if c := a.opts.Cache; c != nil && c.Len() > 0 && c.Len() == a.engine.ChamberCount() {
		writeJSON(w, http.StatusOK, c.All())
		return
	}
	statuses, err := a.engine.Statuses(r.Context())
	if err != nil {
		engineError(w, err)
		return
	}
	if statuses == nil {
		statuses = []engine.ChamberStatus{}
	}
	writeJSON(w, http.StatusOK, statuses)
}

// CreateChamberRequest installs a new chamber.
type CreateChamberRequest struct {
	ID   string   `json:"id"`
	Fuel *float64 `json:"fuel,omitempty"` // Defaults to a full tank
}

func (a *API) handleCreateChamber(w http.ResponseWriter, r *http.Request) {
	var req CreateChamberRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" {
		jsonError(w, "Missing id", http.StatusBadRequest)
		return
	}
	fuel := resource.DefaultFuelCapacity
	if req.Fuel != nil {
		fuel = *req.Fuel
	}
	if err := a.engine.RegisterChamber(r.Context(), engine.NewChamber(req.ID, fuel)); err != nil {
		engineError(w, err)
		return
	}
	a.writeChamber(w, r, req.ID, http.StatusCreated)
}

func (a *API) handleGetChamber(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if c := a.opts.Cache; c != nil {
		if status, ok := c.Get(id); ok {
			writeJSON(w, http.StatusOK, status)
			return
		}
	}
	a.writeChamber(w, r, id, http.StatusOK)
}

// writeChamber answers with the live status of a chamber.
func (a *API) writeChamber(w http.ResponseWriter, r *http.Request, id string, code int) {
	status, err := a.engine.Status(r.Context(), id)
	if err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, code, status)
}

// AcceptRequest puts an occupant into a chamber.
type AcceptRequest struct {
	OccupantID string `json:"occupant_id"`
}

func (a *API) handleAccept(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req AcceptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.engine.Accept(r.Context(), id, req.OccupantID); err != nil {
		engineError(w, err)
		return
	}
	a.writeChamber(w, r, id, http.StatusOK)
}

func (a *API) handleEject(w http.ResponseWriter, r *http.Request) {
	o, err := a.engine.Eject(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// RefuelRequest adds fuel to a chamber.
type RefuelRequest struct {
	Amount float64 `json:"amount"`
}

func (a *API) handleRefuel(w http.ResponseWriter, r *http.Request) {
	var req RefuelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		jsonError(w, "Amount must be positive", http.StatusBadRequest)
		return
	}
	added, err := a.engine.Refuel(r.Context(), mux.Vars(r)["id"], req.Amount)
	if err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"added": added})
}

// PowerRequest flips the switch of a chamber.
type PowerRequest struct {
	On bool `json:"on"`
}

func (a *API) handlePower(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req PowerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.engine.SetPower(r.Context(), id, req.On); err != nil {
		engineError(w, err)
		return
	}
	a.writeChamber(w, r, id, http.StatusOK)
}

// GridRequest simulates an outage or recovery.
type GridRequest struct {
	Available bool `json:"available"`
}

func (a *API) handleGrid(w http.ResponseWriter, r *http.Request) {
	var req GridRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.engine.SetGridAvailable(r.Context(), req.Available); err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": req.Available})
}

// Occupants

func (a *API) handleListOccupants(w http.ResponseWriter, r *http.Request) {
	list, err := a.engine.Occupants(r.Context())
	if err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// CreateOccupantRequest registers a new occupant. Afflictions use the
// "label" or "label:severity" form.
type CreateOccupantRequest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	AgeYears    int      `json:"age_years"`
	AgeTicks    int64    `json:"age_ticks,omitempty"` // Overrides AgeYears when set
	Afflictions []string `json:"afflictions"`
}

func (a *API) handleCreateOccupant(w http.ResponseWriter, r *http.Request) {
	var req CreateOccupantRequest
	if !decodeBody(w, r, &req) {
		return
	}
	age := gametime.Years(req.AgeYears)
	if req.AgeTicks > 0 {
		age = req.AgeTicks
	}
	o := occupant.NewOccupant(req.ID, req.Name, age)
	for _, raw := range req.Afflictions {
		label, severity, err := occupant.ParseAffliction(raw)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		o.AddAffliction(label, severity)
	}
	if err := a.engine.RegisterOccupant(r.Context(), o); err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o.Clone())
}

func (a *API) handleGetOccupant(w http.ResponseWriter, r *http.Request) {
	o, err := a.engine.Occupant(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) handleRecap(w http.ResponseWriter, r *http.Request) {
	if a.opts.Recaps == nil {
		jsonError(w, "Recaps need a database", http.StatusServiceUnavailable)
		return
	}
	recap, err := a.opts.Recaps.BuildRecap(r.Context(), a.opts.GameID, mux.Vars(r)["id"])
	if err != nil {
		a.logger.Errorf("Recap failed: %v", err)
		jsonError(w, "Failed to build recap", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recap)
}

// Settings

// SettingsResponse reports the applied settings and any clamped fields.
type SettingsResponse struct {
	Settings config.Settings `json:"settings"`
	Adjusted []string        `json:"adjusted,omitempty"`
}

func (a *API) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SettingsResponse{Settings: a.engine.Settings().Current()})
}

func (a *API) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	next := a.engine.Settings().Current()
	if !decodeBody(w, r, &next) {
		return
	}
	applied, adjusted, err := a.engine.UpdateSettings(r.Context(), next)
	if err != nil {
		engineError(w, err)
		return
	}
	if a.opts.Settings != nil {
		rec := storage.SettingsRecord{
			AddictionEnabled: applied.AddictionEnabled,
			UnageRatePerStep: applied.UnageRatePerStep,
			FuelRatePerYear:  applied.FuelRatePerYear,
		}
		if err := a.opts.Settings.SaveSettings(r.Context(), a.opts.GameID, rec); err != nil {
			a.logger.Errorf("Failed to persist settings: %v", err)
		}
	}
	a.logger.Event("SETTINGS_CHANGED", "API", "adjusted fields: "+strings.Join(adjusted, ", "))
	writeJSON(w, http.StatusOK, SettingsResponse{Settings: applied, Adjusted: adjusted})
}

