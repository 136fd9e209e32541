package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"agrosmart/models"

	"github.com/gorilla/mux"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrUnknownZone is returned for any zone other than the monitored one
var ErrUnknownZone = errors.New("unknown zone")

// BreakerReporter exposes the store circuit breaker state for health checks
type BreakerReporter interface {
	State() gobreaker.State
}

// API serves the dashboard data and the operator actions over HTTP
type API struct {
	monitor    *ZoneMonitor
	commands   *CommandService
	thresholds *ThresholdService
	breaker    BreakerReporter
	logger     *zap.Logger
}

// NewAPI creates the HTTP API; breaker may be nil
func NewAPI(monitor *ZoneMonitor, commands *CommandService, thresholds *ThresholdService, breaker BreakerReporter, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		monitor:    monitor,
		commands:   commands,
		thresholds: thresholds,
		breaker:    breaker,
		logger:     logger,
	}
}

// Router returns the route table
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", a.getHealth).Methods(http.MethodGet)

	r.HandleFunc("/api/v1/zones/{zone}", a.getZone).Methods(http.MethodGet)

	zones := r.PathPrefix("/api/v1/zones/{zone}").Subrouter()
	zones.HandleFunc("/series", a.getSeries).Methods(http.MethodGet)
	zones.HandleFunc("/command", a.postCommand).Methods(http.MethodPost)
	zones.HandleFunc("/thresholds", a.getThresholds).Methods(http.MethodGet)
	zones.HandleFunc("/thresholds", a.putThresholds).Methods(http.MethodPut)

	return r
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type commandRequest struct {
	Command string `json:"command"`
}

type commandResponse struct {
	ZoneID    string         `json:"zone_id"`
	Command   models.Command `json:"command"`
	CommandTs int64          `json:"command_ts"`
}

type healthResponse struct {
	Status       string     `json:"status"`
	ZoneID       string     `json:"zone_id"`
	StoreBreaker string     `json:"store_breaker,omitempty"`
	LastCycle    *time.Time `json:"last_cycle,omitempty"`
}

func (a *API) getHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", ZoneID: a.monitor.ZoneID()}
	if a.breaker != nil {
		state := a.breaker.State()
		resp.StoreBreaker = state.String()
		if state == gobreaker.StateOpen {
			resp.Status = "degraded"
		}
	}
	if view := a.monitor.Last(); view != nil {
		at := view.RefreshedAt
		resp.LastCycle = &at
	}
	a.writeJSON(w, http.StatusOK, resp)
}

// currentView returns the latest cycle's view; ?refresh=true or a cold start runs a cycle first
func (a *API) currentView(r *http.Request) *models.ZoneView {
	if r.URL.Query().Get("refresh") != "true" {
		if view := a.monitor.Last(); view != nil {
			return view
		}
	}
	return a.monitor.Refresh(r.Context())
}

func (a *API) getZone(w http.ResponseWriter, r *http.Request) {
	if !a.checkZone(w, r) {
		return
	}
	view := *a.currentView(r)
	view.Series = nil
	a.writeJSON(w, http.StatusOK, view)
}

func (a *API) getSeries(w http.ResponseWriter, r *http.Request) {
	if !a.checkZone(w, r) {
		return
	}
	series := a.currentView(r).Series
	if series == nil {
		series = models.Series{}
	}
	a.writeJSON(w, http.StatusOK, series)
}

func (a *API) postCommand(w http.ResponseWriter, r *http.Request) {
	if !a.checkZone(w, r) {
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	cmd, ok := models.ParseCommand(req.Command)
	if !ok {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: ErrUnknownCommand.Error(), Field: "command"})
		return
	}

	zoneID := a.monitor.ZoneID()
	sentAt, err := a.commands.Send(r.Context(), zoneID, cmd)
	if err != nil {
		a.logger.Error("Failed to send command", zap.String("zone_id", zoneID), zap.Error(err))
		a.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store unavailable"})
		return
	}

	a.writeJSON(w, http.StatusAccepted, commandResponse{ZoneID: zoneID, Command: cmd, CommandTs: sentAt.UnixMilli()})
}

func (a *API) getThresholds(w http.ResponseWriter, r *http.Request) {
	if !a.checkZone(w, r) {
		return
	}
	a.writeJSON(w, http.StatusOK, a.thresholds.Get(r.Context(), a.monitor.ZoneID()))
}

func (a *API) putThresholds(w http.ResponseWriter, r *http.Request) {
	if !a.checkZone(w, r) {
		return
	}

	var th models.Thresholds
	if err := json.NewDecoder(r.Body).Decode(&th); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	zoneID := a.monitor.ZoneID()
	err := a.thresholds.Update(r.Context(), zoneID, th)
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		a.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: verr.Message, Field: verr.Field})
	case err != nil:
		a.logger.Error("Failed to save thresholds", zap.String("zone_id", zoneID), zap.Error(err))
		a.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store unavailable"})
	default:
		a.writeJSON(w, http.StatusOK, th)
	}
}

func (a *API) checkZone(w http.ResponseWriter, r *http.Request) bool {
	if mux.Vars(r)["zone"] != a.monitor.ZoneID() {
		a.writeJSON(w, http.StatusNotFound, errorResponse{Error: ErrUnknownZone.Error()})
		return false
	}
	return true
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("Failed to write response", zap.Error(err))
	}
}
