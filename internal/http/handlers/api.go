package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/micro-ha/imou-ptz/addon/internal/imou"
	"github.com/micro-ha/imou-ptz/addon/internal/service"
)

// Poller triggers an asynchronous refresh cycle.
type Poller interface {
	TriggerRefresh()
}

// StreamHub serves the live state WebSocket.
type StreamHub interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
	ClientCount() int
}

// API groups HTTP handlers and dependencies.
type API struct {
	service       *service.Service
	poller        Poller
	hub           StreamHub
	logger        *slog.Logger
	ptzDurationMs int
}

// New creates HTTP handlers with explicit dependencies.
func New(svc *service.Service, poller Poller, hub StreamHub, logger *slog.Logger, ptzDurationMs int) *API {
	return &API{
		service:       svc,
		poller:        poller,
		hub:           hub,
		logger:        logger,
		ptzDurationMs: ptzDurationMs,
	}
}

// Logger returns the request logger used by HTTP middleware.
func (a *API) Logger() *slog.Logger {
	return a.logger
}

// Health reports service liveness and connected stream clients.
func (a *API) Health(w http.ResponseWriter, _ *http.Request) {
	clients := 0
	if a.hub != nil {
		clients = a.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "stream_clients": clients})
}

// Stream upgrades the connection to the state WebSocket.
func (a *API) Stream(w http.ResponseWriter, r *http.Request) {
	if a.hub == nil {
		writeError(w, http.StatusNotFound, "stream_unavailable", "State stream is not enabled")
		return
	}
	a.hub.ServeWS(w, r)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrChannelNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Channel not found")
	case errors.Is(err, service.ErrEntityNotFound):
		writeError(w, http.StatusNotFound, "entity_not_found", "Entity not found")
	case errors.Is(err, service.ErrUnknownPTZOp):
		writeError(w, http.StatusBadRequest, "unknown_operation", "Unknown PTZ operation")
	case imou.IsInvalidResponse(err):
		writeError(w, http.StatusBadGateway, "upstream_invalid_response", err.Error())
	case imou.IsAPIError(err):
		writeError(w, http.StatusBadGateway, "api_error", err.Error())
	case imou.IsNotConnected(err):
		writeError(w, http.StatusServiceUnavailable, "not_connected", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
