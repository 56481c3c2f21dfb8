package channel

import (
	"context"
	"log/slog"

	"github.com/micro-ha/imou-ptz/addon/internal/imou"
)

// API is the slice of the Imou cloud client the channel core consumes.
type API interface {
	DeviceBaseList(ctx context.Context) (*imou.DeviceList, error)
	DeviceBaseDetailList(ctx context.Context, deviceIDs []string) (*imou.DeviceDetailList, error)
	DeviceOnline(ctx context.Context, deviceID string) (*imou.DeviceOnlineStatus, error)
	GetCollection(ctx context.Context, deviceID, channelID string) (*imou.CollectionList, error)
	TurnCollection(ctx context.Context, deviceID, channelID, name string) error
	ControlMovePTZ(ctx context.Context, deviceID, channelID string, operation, durationMs int) error
	RestartDevice(ctx context.Context, deviceID string) error
	SetDeviceCameraStatus(ctx context.Context, deviceID, enableType string, value bool) error
}

// Entity is one observable or controllable unit of state tied to a channel.
// The (device id, channel id, type, param) tuple identifies it; param
// disambiguates multiple instances of the same type, e.g. one button per
// preset name.
type Entity interface {
	DeviceID() string
	ChannelID() string
	Type() string
	Param() string
	Name() string
	Description() string
	Platform() string
	IsEnabled() bool
	SetEnabled(value bool)
	IsUpdated() bool
	Attributes() map[string]string
	Update(ctx context.Context) error
}

type entityBase struct {
	api         API
	deviceID    string
	channelID   string
	sensorType  string
	sensorParam string
	description string
	platform    string
	logger      *slog.Logger

	enabled    bool
	updated    bool
	attributes map[string]string

	// owner is a non-owning back-reference used solely for wake-up
	// delegation; the channel sets it on attach.
	owner *Channel
}

func newEntityBase(api API, deviceID, channelID, sensorType, sensorParam, description, platform string, logger *slog.Logger) entityBase {
	if logger == nil {
		logger = slog.Default()
	}
	return entityBase{
		api:         api,
		deviceID:    deviceID,
		channelID:   channelID,
		sensorType:  sensorType,
		sensorParam: sensorParam,
		description: description,
		platform:    platform,
		logger:      logger,
		enabled:     true,
		attributes:  map[string]string{},
	}
}

func (e *entityBase) DeviceID() string  { return e.deviceID }
func (e *entityBase) ChannelID() string { return e.channelID }
func (e *entityBase) Type() string      { return e.sensorType }
func (e *entityBase) Param() string     { return e.sensorParam }
func (e *entityBase) Platform() string  { return e.platform }

func (e *entityBase) Name() string {
	if e.sensorParam == "" {
		return e.sensorType
	}
	return e.sensorType + " " + e.sensorParam
}

func (e *entityBase) Description() string { return e.description }

func (e *entityBase) SetEnabled(value bool) { e.enabled = value }
func (e *entityBase) IsEnabled() bool       { return e.enabled }
func (e *entityBase) IsUpdated() bool       { return e.updated }

func (e *entityBase) Attributes() map[string]string { return e.attributes }

func (e *entityBase) setOwner(owner *Channel) { e.owner = owner }

// isReady gates every remote read or write. A disabled entity is never ready.
// An entity owned by a channel delegates to the channel's wake-up
// orchestration; a detached entity is always ready.
func (e *entityBase) isReady(ctx context.Context) (bool, error) {
	if !e.enabled {
		return false, nil
	}
	if e.owner == nil {
		return true, nil
	}
	return e.owner.Wakeup(ctx)
}

func (e *entityBase) markUpdated() {
	if !e.updated {
		e.updated = true
	}
}
