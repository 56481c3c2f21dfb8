package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	httpapi "github.com/micro-ha/imou-ptz/addon/internal/http"
	"github.com/micro-ha/imou-ptz/addon/internal/http/handlers"
	"github.com/micro-ha/imou-ptz/addon/internal/imou"
	"github.com/micro-ha/imou-ptz/addon/internal/imou/mock"
	"github.com/micro-ha/imou-ptz/addon/internal/model"
	"github.com/micro-ha/imou-ptz/addon/internal/service"
)

type stubPoller struct{ triggered int }

func (p *stubPoller) TriggerRefresh() { p.triggered++ }

type memoryRepo struct {
	registered map[model.ChannelKey]model.ChannelRegistered
	states     map[model.ChannelKey]model.ChannelState
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		registered: map[model.ChannelKey]model.ChannelRegistered{},
		states:     map[model.ChannelKey]model.ChannelState{},
	}
}

func (r *memoryRepo) ListRegistered(context.Context) (map[model.ChannelKey]model.ChannelRegistered, error) {
	return r.registered, nil
}

func (r *memoryRepo) UpsertRegistered(_ context.Context, key model.ChannelKey, givenName *string, enabled *bool, waitSec *int) error {
	row := model.ChannelRegistered{DeviceID: key.DeviceID, ChannelID: key.ChannelID, Enabled: true}
	if existing, ok := r.registered[key]; ok {
		row = existing
	}
	if givenName != nil {
		row.GivenName = givenName
	}
	if enabled != nil {
		row.Enabled = *enabled
	}
	if waitSec != nil {
		row.WaitAfterWakeupSec = waitSec
	}
	r.registered[key] = row
	return nil
}

func (r *memoryRepo) PatchRegistered(ctx context.Context, key model.ChannelKey, in model.PatchInput) error {
	return r.UpsertRegistered(ctx, key, in.Name, in.Enabled, in.WaitAfterWakeupSec)
}

func (r *memoryRepo) LoadAllStates(context.Context) (map[model.ChannelKey]model.ChannelState, error) {
	return r.states, nil
}

func (r *memoryRepo) UpsertStates(_ context.Context, states []model.ChannelState) error {
	for _, state := range states {
		r.states[model.ChannelKey{DeviceID: state.DeviceID, ChannelID: state.ChannelID}] = state
	}
	return nil
}

func newTestRouter(t *testing.T, api *mock.Client) (http.Handler, *stubPoller) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(api, newMemoryRepo(), nil, logger, 0)
	if _, err := svc.Discover(context.Background()); err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	poller := &stubPoller{}
	return httpapi.NewRouter(handlers.New(svc, poller, nil, logger, 1000)), poller
}

func singleDeviceAPI() *mock.Client {
	return &mock.Client{
		DeviceBaseListFunc: func(ctx context.Context) (*imou.DeviceList, error) {
			return &imou.DeviceList{Count: 1, Devices: []imou.DeviceListRow{{DeviceID: "D1"}}}, nil
		},
		DeviceBaseDetailListFunc: func(ctx context.Context, deviceIDs []string) (*imou.DeviceDetailList, error) {
			return &imou.DeviceDetailList{Devices: []imou.DeviceDetail{{
				DeviceID: "D1",
				Name:     "Home",
				Model:    "X1",
				Channels: []imou.ChannelDetail{{ChannelID: "C1", ChannelName: "Cam1"}},
			}}}, nil
		},
		DeviceOnlineFunc: func(ctx context.Context, deviceID string) (*imou.DeviceOnlineStatus, error) {
			return &imou.DeviceOnlineStatus{
				DeviceID: deviceID,
				OnLine:   "1",
				Channels: []imou.ChannelOnline{{ChannelID: "C1", OnLine: "1"}},
			}, nil
		},
	}
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListAndGetChannel(t *testing.T) {
	router, _ := newTestRouter(t, singleDeviceAPI())

	rec := doRequest(t, router, http.MethodGet, "/api/channels", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var listPayload struct {
		Items []model.ChannelView `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listPayload); err != nil {
		t.Fatalf("failed to decode list payload: %v", err)
	}
	if len(listPayload.Items) != 1 || listPayload.Items[0].Name != "Home - Cam1" {
		t.Fatalf("unexpected list payload: %+v", listPayload.Items)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/channels/D1/C1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var view model.ChannelView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode channel view: %v", err)
	}
	if view.DeviceID != "D1" || len(view.Entities) != 3 {
		t.Fatalf("unexpected channel view: %+v", view)
	}
}

func TestGetUnknownChannelIs404(t *testing.T) {
	router, _ := newTestRouter(t, singleDeviceAPI())
	rec := doRequest(t, router, http.MethodGet, "/api/channels/DX/C9", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPatchChannelRename(t *testing.T) {
	router, _ := newTestRouter(t, singleDeviceAPI())
	rec := doRequest(t, router, http.MethodPatch, "/api/channels/D1/C1", `{"name":"Garage"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodGet, "/api/channels/D1/C1", "")
	var view model.ChannelView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode channel view: %v", err)
	}
	if view.Name != "Garage" {
		t.Fatalf("expected renamed channel, got %q", view.Name)
	}
}

func TestPTZRejectsUnknownOperation(t *testing.T) {
	router, _ := newTestRouter(t, singleDeviceAPI())
	rec := doRequest(t, router, http.MethodPost, "/api/channels/D1/C1/ptz", `{"operation":"sideways"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAPIErrorMapsToBadGateway(t *testing.T) {
	api := singleDeviceAPI()
	api.TurnCollectionFunc = func(ctx context.Context, deviceID, channelID, name string) error {
		return &imou.APIError{Code: "OP1009", Message: "device offline"}
	}
	router, _ := newTestRouter(t, api)

	rec := doRequest(t, router, http.MethodPost, "/api/channels/D1/C1/select", `{"option":"Gate"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode error payload: %v", err)
	}
	if payload.Error.Code != "api_error" {
		t.Fatalf("expected api_error code, got %q", payload.Error.Code)
	}
}

func TestRefreshTriggersPoller(t *testing.T) {
	router, poller := newTestRouter(t, singleDeviceAPI())
	rec := doRequest(t, router, http.MethodPost, "/api/refresh", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if poller.triggered != 1 {
		t.Fatalf("expected one refresh trigger, got %d", poller.triggered)
	}
}

func TestIngressPrefixIsStripped(t *testing.T) {
	router, _ := newTestRouter(t, singleDeviceAPI())
	req := httptest.NewRequest(http.MethodGet, "/hassio/ingress/abc/healthz", nil)
	req.Header.Set("X-Ingress-Path", "/hassio/ingress/abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after prefix strip, got %d", rec.Code)
	}
}
