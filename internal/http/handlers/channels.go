package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/micro-ha/imou-ptz/addon/internal/model"
	"github.com/micro-ha/imou-ptz/addon/internal/service"
)

// ListChannels returns the current channel views, optionally filtered.
func (a *API) ListChannels(w http.ResponseWriter, r *http.Request) {
	filter := service.ListFilter{Query: r.URL.Query().Get("query")}
	if raw := strings.TrimSpace(r.URL.Query().Get("online")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_online_filter", "online must be true or false")
			return
		}
		filter.Online = &value
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": a.service.ListChannels(filter)})
}

// GetChannel returns one channel view.
func (a *API) GetChannel(w http.ResponseWriter, r *http.Request, deviceID, channelID string) {
	view, err := a.service.GetChannel(model.ChannelKey{DeviceID: deviceID, ChannelID: channelID})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// PatchChannel applies a partial settings update (rename, enable, wakeup wait).
func (a *API) PatchChannel(w http.ResponseWriter, r *http.Request, deviceID, channelID string) {
	var payload model.PatchInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	key := model.ChannelKey{DeviceID: deviceID, ChannelID: channelID}
	if err := a.service.PatchChannel(r.Context(), key, payload); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

// Wakeup drives the dormant wake-up flow once and reports whether the
// channel came online.
func (a *API) Wakeup(w http.ResponseWriter, r *http.Request, deviceID, channelID string) {
	key := model.ChannelKey{DeviceID: deviceID, ChannelID: channelID}
	awake, err := a.service.Wakeup(r.Context(), key)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"awake": awake})
}

type buttonRequest struct {
	Param string `json:"param"`
}

// PressButton fires a channel button entity.
func (a *API) PressButton(w http.ResponseWriter, r *http.Request, deviceID, channelID, buttonType string) {
	var payload buttonRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
			return
		}
	}
	key := model.ChannelKey{DeviceID: deviceID, ChannelID: channelID}
	if err := a.service.PressButton(r.Context(), key, buttonType, payload.Param); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

type selectRequest struct {
	Option string `json:"option"`
}

// SelectOption turns the camera to a named preset via the select entity.
func (a *API) SelectOption(w http.ResponseWriter, r *http.Request, deviceID, channelID string) {
	var payload selectRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	if strings.TrimSpace(payload.Option) == "" {
		writeError(w, http.StatusBadRequest, "missing_option", "option is required")
		return
	}
	key := model.ChannelKey{DeviceID: deviceID, ChannelID: channelID}
	if err := a.service.SelectOption(r.Context(), key, payload.Option); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

type ptzRequest struct {
	Operation  string `json:"operation"`
	DurationMs int    `json:"duration_ms"`
}

// MovePTZ issues a directional PTZ operation.
func (a *API) MovePTZ(w http.ResponseWriter, r *http.Request, deviceID, channelID string) {
	var payload ptzRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	if payload.DurationMs <= 0 {
		payload.DurationMs = a.ptzDurationMs
	}
	key := model.ChannelKey{DeviceID: deviceID, ChannelID: channelID}
	if err := a.service.MovePTZ(r.Context(), key, payload.Operation, payload.DurationMs); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

// Discover runs device discovery synchronously and reports the channel count.
func (a *API) Discover(w http.ResponseWriter, r *http.Request) {
	count, err := a.service.Discover(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": count})
}

// Refresh schedules an asynchronous poll cycle.
func (a *API) Refresh(w http.ResponseWriter, _ *http.Request) {
	a.poller.TriggerRefresh()
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}
