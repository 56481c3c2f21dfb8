package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/micro-ha/imou-ptz/addon/internal/imou"
)

// Channel is one physical device+channel pair and the set of entities that
// belong to it. Identity is immutable after construction; everything else is
// filled in by Initialize and RefreshStatus.
//
// The channel holds no internal locks: callers are expected to serialize
// access per channel, as the service layer does.
type Channel struct {
	api       API
	deviceID  string
	channelID string
	logger    *slog.Logger

	// status holds the raw cloud code; Status() maps it to a label.
	status      string
	channelName string
	deviceName  string
	deviceModel string
	fullName    string
	givenName   string

	collections []imou.Collection
	entities    map[string][]Entity

	initialized        bool
	enabled            bool
	sleepable          bool
	waitAfterWakeup    time.Duration
	waitBeforeDownload time.Duration

	// test seam, so wake-up settle waits can be observed without sleeping
	sleepFn func(ctx context.Context, wait time.Duration) error
}

func New(api API, deviceID, channelID string, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		api:       api,
		deviceID:  deviceID,
		channelID: channelID,
		logger:    logger,

		status:      codeUnknown,
		channelName: "N.A",
		deviceName:  "N.A",
		deviceModel: "N.A",
		fullName:    "N.A",

		entities: map[string][]Entity{
			PlatformSensor: {},
			PlatformButton: {},
			PlatformSelect: {},
		},

		enabled:            true,
		waitAfterWakeup:    DefaultWaitAfterWakeup,
		waitBeforeDownload: DefaultWaitBeforeDownload,
		sleepFn:            sleepContext,
	}
}

func (c *Channel) DeviceID() string  { return c.deviceID }
func (c *Channel) ChannelID() string { return c.channelID }
func (c *Channel) Model() string     { return c.deviceModel }

// Name returns the user-assigned display name when set, otherwise the derived
// "device - channel" full name.
func (c *Channel) Name() string {
	if c.givenName != "" {
		return c.givenName
	}
	return c.fullName
}

func (c *Channel) SetName(givenName string) { c.givenName = givenName }

func (c *Channel) DeviceName() string  { return c.deviceName }
func (c *Channel) ChannelName() string { return c.channelName }

func (c *Channel) SetEnabled(value bool) { c.enabled = value }
func (c *Channel) IsEnabled() bool       { return c.enabled }

func (c *Channel) IsInitialized() bool { return c.initialized }

// Status returns the mapped label for the last refreshed online code. The raw
// code stays internal and is exposed only through RawStatus, so callers never
// have to re-map it themselves.
func (c *Channel) Status() string {
	if label, ok := OnlineStatus[c.status]; ok {
		return label
	}
	return StatusUnknown
}

// RawStatus returns the raw online code as received from the cloud.
func (c *Channel) RawStatus() string { return c.status }

// IsOnline treats Dormant as online-equivalent: a dormant device is reachable
// once woken.
func (c *Channel) IsOnline() bool {
	label := c.Status()
	return label == StatusOnline || label == StatusDormant
}

func (c *Channel) Sleepable() bool { return c.sleepable }

func (c *Channel) SetWaitAfterWakeup(value time.Duration) {
	if value > 0 {
		c.waitAfterWakeup = value
	}
}
func (c *Channel) WaitAfterWakeup() time.Duration { return c.waitAfterWakeup }

func (c *Channel) SetWaitBeforeDownload(value time.Duration) {
	if value > 0 {
		c.waitBeforeDownload = value
	}
}
func (c *Channel) WaitBeforeDownload() time.Duration { return c.waitBeforeDownload }

// Collections returns the preset bookmarks fetched during initialization.
func (c *Channel) Collections() []imou.Collection { return c.collections }

// AllSensors returns every entity attached to this channel.
func (c *Channel) AllSensors() []Entity {
	out := []Entity{}
	for _, platform := range []string{PlatformSensor, PlatformButton, PlatformSelect} {
		out = append(out, c.entities[platform]...)
	}
	return out
}

// SensorsByPlatform returns the entities of one platform kind.
func (c *Channel) SensorsByPlatform(platform string) []Entity {
	instances, ok := c.entities[platform]
	if !ok {
		return []Entity{}
	}
	return instances
}

// SensorByName returns the entity matching (type, param), or nil.
func (c *Channel) SensorByName(sensorType, sensorParam string) Entity {
	for _, instance := range c.AllSensors() {
		if instance.Type() == sensorType && instance.Param() == sensorParam {
			return instance
		}
	}
	return nil
}

func (c *Channel) String() string {
	return fmt.Sprintf("%s (%s, serial %s, channel %s)", c.fullName, c.deviceModel, c.deviceID, c.channelID)
}

type ownable interface {
	setOwner(owner *Channel)
}

func (c *Channel) addEntity(platform string, instance Entity) {
	if owned, ok := instance.(ownable); ok {
		owned.setOwner(c)
	}
	c.entities[platform] = append(c.entities[platform], instance)
}

// Initialize fetches device and channel metadata plus the preset list, then
// attaches the entity set. It runs at most once; errors are logged and
// swallowed and the initialized flag flips regardless, so callers must check
// entity presence rather than rely on an error.
func (c *Channel) Initialize(ctx context.Context) {
	if c.initialized {
		return
	}
	if err := c.initialize(ctx); err != nil {
		c.logger.Error("channel initialization failed", "device_id", c.deviceID, "channel_id", c.channelID, "err", err)
	}
	c.initialized = true
}

func (c *Channel) initialize(ctx context.Context) error {
	detail, err := c.api.DeviceBaseDetailList(ctx, []string{c.deviceID})
	if err != nil {
		return err
	}
	if len(detail.Devices) != 1 {
		return &imou.InvalidResponseError{Detail: fmt.Sprintf("expected exactly one device for %s, got %d", c.deviceID, len(detail.Devices))}
	}
	device := detail.Devices[0]

	c.deviceName = device.Name
	c.deviceModel = device.Model
	c.sleepable = abilitySleepable(device.Ability)

	channelData := device.Channel(c.channelID)
	if channelData == nil {
		return &imou.InvalidResponseError{Detail: fmt.Sprintf("invalid channel id %s for device %s", c.channelID, c.deviceID)}
	}
	c.channelName = channelData.ChannelName
	c.fullName = c.deviceName + " - " + c.channelName

	c.logger.Debug("retrieved channel", "channel", c.String())

	favourites, err := c.api.GetCollection(ctx, c.deviceID, c.channelID)
	if err != nil {
		return err
	}
	c.collections = favourites.Collections
	c.logger.Debug("found collection points", "channel", c.Name(), "count", len(c.collections))

	c.addEntity(PlatformSensor, NewSensor(c.api, c.deviceID, c.channelID, TypeStatus, "", c.logger))
	c.addEntity(PlatformButton, NewButton(c.api, c.deviceID, c.channelID, TypeRestartDevice, "", c.logger))
	for _, collection := range c.collections {
		c.addEntity(PlatformButton, NewButton(c.api, c.deviceID, c.channelID, TypeTurnCollection, collection.Name, c.logger))
	}
	c.addEntity(PlatformSelect, NewSelect(c.api, c.deviceID, c.channelID, TypeTurnCollection, "", c.logger))
	return nil
}

// RefreshStatus fetches the device online payload and stores this channel's
// raw code. Missing or unrecognized codes fail with an InvalidResponse error.
func (c *Channel) RefreshStatus(ctx context.Context) error {
	data, err := c.api.DeviceOnline(ctx, c.deviceID)
	if err != nil {
		return err
	}
	if _, ok := OnlineStatus[data.OnLine]; !ok {
		return &imou.InvalidResponseError{Detail: fmt.Sprintf("onLine code %q not valid for device %s", data.OnLine, c.deviceID)}
	}

	channelData := data.Channel(c.channelID)
	if channelData == nil {
		return &imou.InvalidResponseError{Detail: fmt.Sprintf("channel %s missing in deviceOnline payload for %s", c.channelID, c.deviceID)}
	}
	if _, ok := OnlineStatus[channelData.OnLine]; !ok {
		return &imou.InvalidResponseError{Detail: fmt.Sprintf("onLine code %q not valid for channel %s", channelData.OnLine, c.channelID)}
	}

	c.status = channelData.OnLine
	return nil
}

// Wakeup drives a dormant device online: one status check, at most one
// close-dormant command, one fixed settle wait, one re-check. No retry loop;
// a device still not online after the settle wait reports false.
func (c *Channel) Wakeup(ctx context.Context) (bool, error) {
	if !c.sleepable {
		return true, nil
	}
	if err := c.RefreshStatus(ctx); err != nil {
		return false, err
	}
	if c.Status() == StatusOnline {
		return true, nil
	}

	c.logger.Debug("waking up dormant device", "channel", c.Name())
	if err := c.api.SetDeviceCameraStatus(ctx, c.deviceID, "closeDormant", true); err != nil {
		return false, err
	}
	if err := c.sleepFn(ctx, c.waitAfterWakeup); err != nil {
		return false, err
	}
	if err := c.RefreshStatus(ctx); err != nil {
		return false, err
	}
	if c.Status() == StatusOnline {
		c.logger.Debug("device is now online", "channel", c.Name())
		return true, nil
	}
	c.logger.Warn("failed to wake up dormant device", "channel", c.Name())
	return false, nil
}

// GetData is the per-cycle refresh entry point called by the poller. A
// disabled channel reports false without touching the cloud. Initialization
// happens lazily on the first cycle.
func (c *Channel) GetData(ctx context.Context) (bool, error) {
	if !c.enabled {
		return false, nil
	}
	if !c.initialized {
		c.Initialize(ctx)
	}
	c.logger.Debug("update requested", "channel", c.Name())

	if err := c.RefreshStatus(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// abilitySleepable reports whether the device ability string advertises a
// dormancy mode.
func abilitySleepable(ability string) bool {
	for _, token := range strings.Split(ability, ",") {
		if strings.Contains(token, "Dormant") {
			return true
		}
	}
	return false
}

func sleepContext(ctx context.Context, wait time.Duration) error {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
