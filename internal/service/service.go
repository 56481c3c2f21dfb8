package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/micro-ha/imou-ptz/addon/internal/channel"
	"github.com/micro-ha/imou-ptz/addon/internal/events"
	"github.com/micro-ha/imou-ptz/addon/internal/model"
)

var (
	ErrNoChannels      = errors.New("no channels discovered")
	ErrChannelNotFound = errors.New("channel not found")
	ErrEntityNotFound  = errors.New("entity not found")
	ErrUnknownPTZOp    = errors.New("unknown ptz operation")
)

// Repository is the persistence surface the service consumes.
type Repository interface {
	ListRegistered(ctx context.Context) (map[model.ChannelKey]model.ChannelRegistered, error)
	UpsertRegistered(ctx context.Context, key model.ChannelKey, givenName *string, enabled *bool, waitSec *int) error
	PatchRegistered(ctx context.Context, key model.ChannelKey, in model.PatchInput) error
	LoadAllStates(ctx context.Context) (map[model.ChannelKey]model.ChannelState, error)
	UpsertStates(ctx context.Context, states []model.ChannelState) error
}

// Broadcaster pushes state events to connected clients.
type Broadcaster interface {
	Broadcast(event events.Event)
}

// Service owns the discovered channel set and serializes every poll cycle and
// command against it. The channel core itself holds no locks; this mutex is
// what upholds the one-cycle-at-a-time contract.
type Service struct {
	api       channel.API
	discovery *channel.Discovery
	repo      Repository
	hub       Broadcaster
	logger    *slog.Logger

	defaultWaitAfterWakeup    time.Duration
	defaultWaitBeforeDownload time.Duration

	mu       sync.Mutex
	channels map[model.ChannelKey]*channel.Channel
}

func New(api channel.API, repo Repository, hub Broadcaster, logger *slog.Logger, defaultWaitAfterWakeup time.Duration) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		api:                       api,
		discovery:                 channel.NewDiscovery(api, logger),
		repo:                      repo,
		hub:                       hub,
		logger:                    logger,
		defaultWaitAfterWakeup:    defaultWaitAfterWakeup,
		defaultWaitBeforeDownload: channel.DefaultWaitBeforeDownload,
		channels:                  map[model.ChannelKey]*channel.Channel{},
	}
}

// SetWaitBeforeDownload overrides the pre-download settle duration applied to
// newly discovered channels.
func (s *Service) SetWaitBeforeDownload(value time.Duration) {
	if value > 0 {
		s.defaultWaitBeforeDownload = value
	}
}

// Discover enumerates registered devices, materializes channels and merges
// persisted per-channel settings. Already-known channels keep their live
// instance so in-memory state survives re-discovery.
func (s *Service) Discover(ctx context.Context) (int, error) {
	discovered, err := s.discovery.DiscoverChannels(ctx)
	if err != nil && len(discovered) == 0 {
		return 0, err
	}
	if err != nil {
		s.logger.Warn("discovery finished partially", "channels", len(discovered), "err", err)
	}

	registered, repoErr := s.repo.ListRegistered(ctx)
	if repoErr != nil {
		return 0, repoErr
	}

	s.mu.Lock()
	for _, ch := range discovered {
		key := model.ChannelKey{DeviceID: ch.DeviceID(), ChannelID: ch.ChannelID()}
		if _, exists := s.channels[key]; exists {
			continue
		}
		s.applySettings(ch, registered[key])
		s.channels[key] = ch
	}
	count := len(s.channels)
	views := s.viewsLocked()
	s.mu.Unlock()

	if err := s.persistStates(ctx, views); err != nil {
		s.logger.Warn("failed to persist discovered channel states", "err", err)
	}
	s.broadcast(views)
	s.logger.Info("discovery completed", "channels", count)
	return count, nil
}

func (s *Service) applySettings(ch *channel.Channel, row model.ChannelRegistered) {
	if ch.WaitAfterWakeup() == channel.DefaultWaitAfterWakeup {
		ch.SetWaitAfterWakeup(s.defaultWaitAfterWakeup)
	}
	ch.SetWaitBeforeDownload(s.defaultWaitBeforeDownload)
	if row.DeviceID == "" {
		return
	}
	if row.GivenName != nil && *row.GivenName != "" {
		ch.SetName(*row.GivenName)
	}
	ch.SetEnabled(row.Enabled)
	if row.WaitAfterWakeupSec != nil && *row.WaitAfterWakeupSec > 0 {
		ch.SetWaitAfterWakeup(time.Duration(*row.WaitAfterWakeupSec) * time.Second)
	}
}

// PollOnce runs one refresh cycle over every channel. A failing channel only
// degrades its own freshness; the cycle continues and the collected error is
// reported to the poller.
func (s *Service) PollOnce(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.channels) == 0 {
		return ErrNoChannels
	}

	var cycleErr error
	for key, ch := range s.channels {
		if _, err := ch.GetData(ctx); err != nil {
			s.logger.Warn("channel refresh failed", "device_id", key.DeviceID, "channel_id", key.ChannelID, "err", err)
			cycleErr = errors.Join(cycleErr, fmt.Errorf("channel %s/%s: %w", key.DeviceID, key.ChannelID, err))
			continue
		}
		s.updateEntities(ctx, ch)
	}

	views := s.viewsLocked()
	if err := s.persistStates(ctx, views); err != nil {
		cycleErr = errors.Join(cycleErr, err)
	}
	s.broadcast(views)
	return cycleErr
}

func (s *Service) updateEntities(ctx context.Context, ch *channel.Channel) {
	for _, instance := range ch.AllSensors() {
		if err := instance.Update(ctx); err != nil {
			s.logger.Warn("entity update failed", "entity", instance.Name(), "channel", ch.Name(), "err", err)
		}
	}
}

type ListFilter struct {
	Online *bool
	Query  string
}

// ListChannels returns current channel views sorted by name.
func (s *Service) ListChannels(filter ListFilter) []model.ChannelView {
	s.mu.Lock()
	views := s.viewsLocked()
	s.mu.Unlock()

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	filtered := make([]model.ChannelView, 0, len(views))
	for _, view := range views {
		if filter.Online != nil && view.Online != *filter.Online {
			continue
		}
		if query != "" && !matchesQuery(view, query) {
			continue
		}
		filtered = append(filtered, view)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Name < filtered[j].Name })
	return filtered
}

func matchesQuery(view model.ChannelView, query string) bool {
	return strings.Contains(strings.ToLower(view.Name), query) ||
		strings.Contains(strings.ToLower(view.DeviceID), query) ||
		strings.Contains(strings.ToLower(view.DeviceModel), query)
}

// GetChannel returns one channel view by key.
func (s *Service) GetChannel(key model.ChannelKey) (model.ChannelView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[key]
	if !ok {
		return model.ChannelView{}, ErrChannelNotFound
	}
	return channelView(ch), nil
}

// PatchChannel applies and persists a partial settings update.
func (s *Service) PatchChannel(ctx context.Context, key model.ChannelKey, in model.PatchInput) error {
	s.mu.Lock()
	ch, ok := s.channels[key]
	if ok {
		if in.Name != nil {
			ch.SetName(*in.Name)
		}
		if in.Enabled != nil {
			ch.SetEnabled(*in.Enabled)
		}
		if in.WaitAfterWakeupSec != nil && *in.WaitAfterWakeupSec > 0 {
			ch.SetWaitAfterWakeup(time.Duration(*in.WaitAfterWakeupSec) * time.Second)
		}
	}
	s.mu.Unlock()
	if !ok {
		return ErrChannelNotFound
	}
	return s.repo.PatchRegistered(ctx, key, in)
}

// PressButton fires the button entity matching (type, param) on a channel.
func (s *Service) PressButton(ctx context.Context, key model.ChannelKey, buttonType, param string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[key]
	if !ok {
		return ErrChannelNotFound
	}
	button, ok := ch.SensorByName(buttonType, param).(*channel.Button)
	if !ok {
		return ErrEntityNotFound
	}
	return button.Press(ctx)
}

// SelectOption selects a preset option on the channel's turn-to select.
func (s *Service) SelectOption(ctx context.Context, key model.ChannelKey, option string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[key]
	if !ok {
		return ErrChannelNotFound
	}
	for _, instance := range ch.SensorsByPlatform(channel.PlatformSelect) {
		if sel, ok := instance.(*channel.Select); ok {
			return sel.SelectOption(ctx, option)
		}
	}
	return ErrEntityNotFound
}

// Wakeup drives the channel's wake-up orchestration once.
func (s *Service) Wakeup(ctx context.Context, key model.ChannelKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[key]
	if !ok {
		return false, ErrChannelNotFound
	}
	return ch.Wakeup(ctx)
}

// MovePTZ issues a directional PTZ operation, waking the device first.
func (s *Service) MovePTZ(ctx context.Context, key model.ChannelKey, operation string, durationMs int) error {
	code, ok := channel.PTZOperations[strings.ToUpper(strings.TrimSpace(operation))]
	if !ok {
		return ErrUnknownPTZOp
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ch, found := s.channels[key]
	if !found {
		return ErrChannelNotFound
	}
	awake, err := ch.Wakeup(ctx)
	if err != nil {
		return err
	}
	if !awake {
		return fmt.Errorf("channel %s/%s could not be woken", key.DeviceID, key.ChannelID)
	}
	if durationMs <= 0 {
		durationMs = 1000
	}
	return s.api.ControlMovePTZ(ctx, key.DeviceID, key.ChannelID, code, durationMs)
}

func (s *Service) viewsLocked() []model.ChannelView {
	views := make([]model.ChannelView, 0, len(s.channels))
	for _, ch := range s.channels {
		views = append(views, channelView(ch))
	}
	return views
}

func (s *Service) persistStates(ctx context.Context, views []model.ChannelView) error {
	if len(views) == 0 {
		return nil
	}
	states := make([]model.ChannelState, 0, len(views))
	for _, view := range views {
		states = append(states, model.ChannelState{
			DeviceID:    view.DeviceID,
			ChannelID:   view.ChannelID,
			Status:      view.RawStatus,
			DeviceName:  view.DeviceName,
			ChannelName: view.ChannelName,
			DeviceModel: view.DeviceModel,
			Sleepable:   view.Sleepable,
			UpdatedAt:   view.UpdatedAt,
		})
	}
	return s.repo.UpsertStates(ctx, states)
}

func (s *Service) broadcast(views []model.ChannelView) {
	if s.hub == nil {
		return
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	s.hub.Broadcast(events.Event{Type: "channels", Payload: views})
}

func channelView(ch *channel.Channel) model.ChannelView {
	view := model.ChannelView{
		DeviceID:    ch.DeviceID(),
		ChannelID:   ch.ChannelID(),
		Name:        ch.Name(),
		DeviceName:  ch.DeviceName(),
		ChannelName: ch.ChannelName(),
		DeviceModel: ch.Model(),
		Status:      ch.Status(),
		RawStatus:   ch.RawStatus(),
		Online:      ch.IsOnline(),
		Sleepable:   ch.Sleepable(),
		Enabled:     ch.IsEnabled(),
		Initialized: ch.IsInitialized(),
		UpdatedAt:   time.Now().UTC(),
	}
	for _, instance := range ch.AllSensors() {
		entity := model.EntityView{
			Platform:    instance.Platform(),
			Type:        instance.Type(),
			Param:       instance.Param(),
			Name:        instance.Name(),
			Description: instance.Description(),
			Enabled:     instance.IsEnabled(),
			Updated:     instance.IsUpdated(),
		}
		switch typed := instance.(type) {
		case *channel.Sensor:
			state := typed.State()
			entity.State = &state
		case *channel.Select:
			current := typed.CurrentOption()
			entity.State = &current
			entity.Options = typed.AvailableOptions()
		}
		view.Entities = append(view.Entities, entity)
	}
	return view
}
