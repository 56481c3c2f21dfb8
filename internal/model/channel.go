package model

import "time"

// ChannelKey is the identity-stable handle for one camera channel.
type ChannelKey struct {
	DeviceID  string `json:"device_id"`
	ChannelID string `json:"channel_id"`
}

// ChannelRegistered holds user-assigned channel settings persisted across
// restarts.
type ChannelRegistered struct {
	DeviceID           string    `json:"device_id"`
	ChannelID          string    `json:"channel_id"`
	GivenName          *string   `json:"given_name,omitempty"`
	Enabled            bool      `json:"enabled"`
	WaitAfterWakeupSec *int      `json:"wait_after_wakeup_sec,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ChannelState is the last observed per-channel snapshot.
type ChannelState struct {
	DeviceID    string    `json:"device_id"`
	ChannelID   string    `json:"channel_id"`
	Status      string    `json:"status"`
	DeviceName  string    `json:"device_name"`
	ChannelName string    `json:"channel_name"`
	DeviceModel string    `json:"device_model"`
	Sleepable   bool      `json:"sleepable"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EntityView is the host-facing projection of one channel entity.
type EntityView struct {
	Platform    string   `json:"platform"`
	Type        string   `json:"type"`
	Param       string   `json:"param,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Enabled     bool     `json:"enabled"`
	Updated     bool     `json:"updated"`
	State       *string  `json:"state,omitempty"`
	Options     []string `json:"options,omitempty"`
}

// ChannelView is the host-facing projection of one channel.
type ChannelView struct {
	DeviceID    string       `json:"device_id"`
	ChannelID   string       `json:"channel_id"`
	Name        string       `json:"name"`
	DeviceName  string       `json:"device_name"`
	ChannelName string       `json:"channel_name"`
	DeviceModel string       `json:"device_model"`
	Status      string       `json:"status"`
	RawStatus   string       `json:"raw_status"`
	Online      bool         `json:"online"`
	Sleepable   bool         `json:"sleepable"`
	Enabled     bool         `json:"enabled"`
	Initialized bool         `json:"initialized"`
	Entities    []EntityView `json:"entities"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// PatchInput carries a partial channel settings update.
type PatchInput struct {
	Name               *string `json:"name"`
	Enabled            *bool   `json:"enabled"`
	WaitAfterWakeupSec *int    `json:"wait_after_wakeup_sec"`
}
