package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/micro-ha/imou-ptz/addon/internal/channel"
	"github.com/micro-ha/imou-ptz/addon/internal/events"
	"github.com/micro-ha/imou-ptz/addon/internal/imou"
	"github.com/micro-ha/imou-ptz/addon/internal/imou/mock"
	"github.com/micro-ha/imou-ptz/addon/internal/model"
)

type memoryRepo struct {
	mu         sync.Mutex
	registered map[model.ChannelKey]model.ChannelRegistered
	states     map[model.ChannelKey]model.ChannelState
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		registered: map[model.ChannelKey]model.ChannelRegistered{},
		states:     map[model.ChannelKey]model.ChannelState{},
	}
}

func (r *memoryRepo) ListRegistered(ctx context.Context) (map[model.ChannelKey]model.ChannelRegistered, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[model.ChannelKey]model.ChannelRegistered, len(r.registered))
	for key, value := range r.registered {
		out[key] = value
	}
	return out, nil
}

func (r *memoryRepo) UpsertRegistered(ctx context.Context, key model.ChannelKey, givenName *string, enabled *bool, waitSec *int) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
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

func (r *memoryRepo) LoadAllStates(ctx context.Context) (map[model.ChannelKey]model.ChannelState, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[model.ChannelKey]model.ChannelState, len(r.states))
	for key, value := range r.states {
		out[key] = value
	}
	return out, nil
}

func (r *memoryRepo) UpsertStates(ctx context.Context, states []model.ChannelState) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, state := range states {
		r.states[model.ChannelKey{DeviceID: state.DeviceID, ChannelID: state.ChannelID}] = state
	}
	return nil
}

type recordingHub struct {
	mu     sync.Mutex
	events []events.Event
}

func (h *recordingHub) Broadcast(event events.Event) {
	h.mu.Lock()
	h.events = append(h.events, event)
	h.mu.Unlock()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
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

func TestDiscoverMergesPersistedSettings(t *testing.T) {
	repo := newMemoryRepo()
	key := model.ChannelKey{DeviceID: "D1", ChannelID: "C1"}
	name := "Front door"
	disabled := false
	repo.registered[key] = model.ChannelRegistered{
		DeviceID:  "D1",
		ChannelID: "C1",
		GivenName: &name,
		Enabled:   disabled,
	}

	svc := New(singleDeviceAPI(), repo, nil, testLogger(), channel.DefaultWaitAfterWakeup)
	count, err := svc.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 channel, got %d", count)
	}

	view, err := svc.GetChannel(key)
	if err != nil {
		t.Fatalf("GetChannel returned error: %v", err)
	}
	if view.Name != "Front door" {
		t.Fatalf("expected persisted given name, got %q", view.Name)
	}
	if view.Enabled {
		t.Fatalf("expected persisted disabled flag")
	}
}

func TestPollOnceWithoutChannels(t *testing.T) {
	svc := New(&mock.Client{}, newMemoryRepo(), nil, testLogger(), channel.DefaultWaitAfterWakeup)
	if err := svc.PollOnce(context.Background()); !errors.Is(err, ErrNoChannels) {
		t.Fatalf("expected ErrNoChannels, got %v", err)
	}
}

func TestPollOncePersistsAndBroadcasts(t *testing.T) {
	repo := newMemoryRepo()
	hub := &recordingHub{}
	svc := New(singleDeviceAPI(), repo, hub, testLogger(), channel.DefaultWaitAfterWakeup)

	if _, err := svc.Discover(context.Background()); err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if err := svc.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce returned error: %v", err)
	}

	key := model.ChannelKey{DeviceID: "D1", ChannelID: "C1"}
	state, ok := repo.states[key]
	if !ok {
		t.Fatalf("expected persisted state for %v", key)
	}
	if state.Status != "1" {
		t.Fatalf("expected raw status 1, got %q", state.Status)
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	if len(hub.events) == 0 {
		t.Fatalf("expected at least one broadcast event")
	}
	if hub.events[len(hub.events)-1].Type != "channels" {
		t.Fatalf("expected channels event, got %q", hub.events[len(hub.events)-1].Type)
	}
}

func TestPollOnceContinuesPastFailingChannel(t *testing.T) {
	api := singleDeviceAPI()
	api.DeviceBaseListFunc = func(ctx context.Context) (*imou.DeviceList, error) {
		return &imou.DeviceList{Count: 2, Devices: []imou.DeviceListRow{{DeviceID: "D1"}, {DeviceID: "D2"}}}, nil
	}
	api.DeviceBaseDetailListFunc = func(ctx context.Context, deviceIDs []string) (*imou.DeviceDetailList, error) {
		id := deviceIDs[0]
		name := "Home"
		if id == "D2" {
			name = "Office"
		}
		return &imou.DeviceDetailList{Devices: []imou.DeviceDetail{{
			DeviceID: id,
			Name:     name,
			Model:    "X1",
			Channels: []imou.ChannelDetail{{ChannelID: "C1", ChannelName: "Cam1"}},
		}}}, nil
	}
	api.DeviceOnlineFunc = func(ctx context.Context, deviceID string) (*imou.DeviceOnlineStatus, error) {
		if deviceID == "D2" {
			return nil, &imou.APIError{Code: "OP1009", Message: "device offline"}
		}
		return &imou.DeviceOnlineStatus{
			DeviceID: deviceID,
			OnLine:   "1",
			Channels: []imou.ChannelOnline{{ChannelID: "C1", OnLine: "1"}},
		}, nil
	}

	repo := newMemoryRepo()
	svc := New(api, repo, nil, testLogger(), channel.DefaultWaitAfterWakeup)
	if _, err := svc.Discover(context.Background()); err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}

	err := svc.PollOnce(context.Background())
	if err == nil {
		t.Fatalf("expected cycle error for the failing channel")
	}
	// the healthy channel still refreshed and persisted
	state, ok := repo.states[model.ChannelKey{DeviceID: "D1", ChannelID: "C1"}]
	if !ok || state.Status != "1" {
		t.Fatalf("expected healthy channel state persisted, got %+v", state)
	}
}

func TestPatchChannelPersistsAndApplies(t *testing.T) {
	repo := newMemoryRepo()
	svc := New(singleDeviceAPI(), repo, nil, testLogger(), channel.DefaultWaitAfterWakeup)
	if _, err := svc.Discover(context.Background()); err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}

	key := model.ChannelKey{DeviceID: "D1", ChannelID: "C1"}
	name := "Garage"
	wait := 8
	if err := svc.PatchChannel(context.Background(), key, model.PatchInput{Name: &name, WaitAfterWakeupSec: &wait}); err != nil {
		t.Fatalf("PatchChannel returned error: %v", err)
	}

	view, err := svc.GetChannel(key)
	if err != nil {
		t.Fatalf("GetChannel returned error: %v", err)
	}
	if view.Name != "Garage" {
		t.Fatalf("expected applied given name, got %q", view.Name)
	}
	row, ok := repo.registered[key]
	if !ok || row.GivenName == nil || *row.GivenName != "Garage" {
		t.Fatalf("expected persisted given name, got %+v", row)
	}
	if row.WaitAfterWakeupSec == nil || *row.WaitAfterWakeupSec != 8 {
		t.Fatalf("expected persisted wait override, got %+v", row.WaitAfterWakeupSec)
	}
}

func TestPatchUnknownChannel(t *testing.T) {
	svc := New(&mock.Client{}, newMemoryRepo(), nil, testLogger(), channel.DefaultWaitAfterWakeup)
	err := svc.PatchChannel(context.Background(), model.ChannelKey{DeviceID: "DX", ChannelID: "C0"}, model.PatchInput{})
	if !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("expected ErrChannelNotFound, got %v", err)
	}
}

func TestPressButtonDispatchesToEntity(t *testing.T) {
	api := singleDeviceAPI()
	svc := New(api, newMemoryRepo(), nil, testLogger(), channel.DefaultWaitAfterWakeup)
	if _, err := svc.Discover(context.Background()); err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}

	key := model.ChannelKey{DeviceID: "D1", ChannelID: "C1"}
	if err := svc.PressButton(context.Background(), key, channel.TypeRestartDevice, ""); err != nil {
		t.Fatalf("PressButton returned error: %v", err)
	}
	if got := api.CallCount("restartDevice"); got != 1 {
		t.Fatalf("expected 1 restartDevice call, got %d", got)
	}

	if err := svc.PressButton(context.Background(), key, channel.TypeTurnCollection, "missing"); !errors.Is(err, ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound for unknown preset, got %v", err)
	}
}

func TestMovePTZValidatesOperation(t *testing.T) {
	api := singleDeviceAPI()
	svc := New(api, newMemoryRepo(), nil, testLogger(), channel.DefaultWaitAfterWakeup)
	if _, err := svc.Discover(context.Background()); err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}

	key := model.ChannelKey{DeviceID: "D1", ChannelID: "C1"}
	if err := svc.MovePTZ(context.Background(), key, "sideways", 500); !errors.Is(err, ErrUnknownPTZOp) {
		t.Fatalf("expected ErrUnknownPTZOp, got %v", err)
	}
	if err := svc.MovePTZ(context.Background(), key, "left", 500); err != nil {
		t.Fatalf("MovePTZ returned error: %v", err)
	}
	if got := api.CallCount("controlMovePTZ"); got != 1 {
		t.Fatalf("expected 1 controlMovePTZ call, got %d", got)
	}
}

func TestListChannelsFilters(t *testing.T) {
	svc := New(singleDeviceAPI(), newMemoryRepo(), nil, testLogger(), channel.DefaultWaitAfterWakeup)
	if _, err := svc.Discover(context.Background()); err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if err := svc.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce returned error: %v", err)
	}

	if got := svc.ListChannels(ListFilter{Query: "home"}); len(got) != 1 {
		t.Fatalf("expected query match, got %d", len(got))
	}
	online := false
	if got := svc.ListChannels(ListFilter{Online: &online}); len(got) != 0 {
		t.Fatalf("expected no offline channels, got %d", len(got))
	}
}
