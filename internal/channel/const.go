package channel

import "time"

// Mapped online-status labels.
const (
	StatusOffline = "Offline"
	StatusOnline  = "Online"
	StatusDormant = "Dormant"
	StatusUnknown = "Unknown"
)

// codeUnknown is the fallback key used when a raw code is absent or unrecognized.
const codeUnknown = "UNKNOWN"

// OnlineStatus maps raw cloud online codes to status labels.
var OnlineStatus = map[string]string{
	"0":         StatusOffline,
	"1":         StatusOnline,
	"4":         StatusDormant,
	codeUnknown: StatusUnknown,
}

// PTZOperations maps direction names to cloud PTZ operation codes.
var PTZOperations = map[string]int{
	"UP":           0,
	"DOWN":         1,
	"LEFT":         2,
	"RIGHT":        3,
	"UPPER_LEFT":   4,
	"BOTTOM_LEFT":  5,
	"UPPER_RIGHT":  6,
	"BOTTOM_RIGHT": 7,
	"ZOOM_IN":      8,
	"ZOOM_OUT":     9,
	"STOP":         10,
}

// Entity platforms.
const (
	PlatformSensor = "sensor"
	PlatformButton = "button"
	PlatformSelect = "select"
)

// Entity type tags.
const (
	TypeStatus         = "status"
	TypeRestartDevice  = "restartDevice"
	TypeTurnCollection = "turnCollection"
)

// Human-readable descriptions per entity type.
var (
	SensorLabels = map[string]string{
		TypeStatus: "Status",
	}
	ButtonLabels = map[string]string{
		TypeRestartDevice:  "Restart device",
		TypeTurnCollection: "Turn to",
	}
	SelectLabels = map[string]string{
		TypeTurnCollection: "Turn to favourite point",
	}
)

// SelectSentinel occupies index 0 of every select's option list and models
// "no selection".
const SelectSentinel = "⬇ Select a point ⬇"

// Default settle durations for dormant devices.
const (
	DefaultWaitAfterWakeup    = 4 * time.Second
	DefaultWaitBeforeDownload = 1500 * time.Millisecond
)
