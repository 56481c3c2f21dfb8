package mock

import (
	"context"
	"sync"

	"github.com/micro-ha/imou-ptz/addon/internal/imou"
)

// Call stores one API invocation.
type Call struct {
	Method string
	Args   []string
}

// Client is a programmable mock of the Imou cloud API surface.
type Client struct {
	mu    sync.Mutex
	Calls []Call

	DeviceBaseListFunc        func(ctx context.Context) (*imou.DeviceList, error)
	DeviceBaseDetailListFunc  func(ctx context.Context, deviceIDs []string) (*imou.DeviceDetailList, error)
	DeviceOnlineFunc          func(ctx context.Context, deviceID string) (*imou.DeviceOnlineStatus, error)
	GetCollectionFunc         func(ctx context.Context, deviceID, channelID string) (*imou.CollectionList, error)
	TurnCollectionFunc        func(ctx context.Context, deviceID, channelID, name string) error
	ControlMovePTZFunc        func(ctx context.Context, deviceID, channelID string, operation, durationMs int) error
	RestartDeviceFunc         func(ctx context.Context, deviceID string) error
	SetDeviceCameraStatusFunc func(ctx context.Context, deviceID, enableType string, value bool) error
}

func (c *Client) record(method string, args ...string) {
	c.mu.Lock()
	c.Calls = append(c.Calls, Call{Method: method, Args: append([]string(nil), args...)})
	c.mu.Unlock()
}

// CallsSnapshot returns a copy of accumulated calls.
func (c *Client) CallsSnapshot() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.Calls))
	copy(out, c.Calls)
	return out
}

// CallCount returns how many times the given method was invoked.
func (c *Client) CallCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, call := range c.Calls {
		if call.Method == method {
			count++
		}
	}
	return count
}

func (c *Client) DeviceBaseList(ctx context.Context) (*imou.DeviceList, error) {
	c.record("deviceBaseList")
	if c.DeviceBaseListFunc == nil {
		return &imou.DeviceList{Devices: []imou.DeviceListRow{}}, nil
	}
	return c.DeviceBaseListFunc(ctx)
}

func (c *Client) DeviceBaseDetailList(ctx context.Context, deviceIDs []string) (*imou.DeviceDetailList, error) {
	c.record("deviceBaseDetailList", deviceIDs...)
	if c.DeviceBaseDetailListFunc == nil {
		return &imou.DeviceDetailList{Devices: []imou.DeviceDetail{}}, nil
	}
	return c.DeviceBaseDetailListFunc(ctx, deviceIDs)
}

func (c *Client) DeviceOnline(ctx context.Context, deviceID string) (*imou.DeviceOnlineStatus, error) {
	c.record("deviceOnline", deviceID)
	if c.DeviceOnlineFunc == nil {
		return &imou.DeviceOnlineStatus{DeviceID: deviceID, OnLine: "1"}, nil
	}
	return c.DeviceOnlineFunc(ctx, deviceID)
}

func (c *Client) GetCollection(ctx context.Context, deviceID, channelID string) (*imou.CollectionList, error) {
	c.record("getCollection", deviceID, channelID)
	if c.GetCollectionFunc == nil {
		return &imou.CollectionList{Collections: []imou.Collection{}}, nil
	}
	return c.GetCollectionFunc(ctx, deviceID, channelID)
}

func (c *Client) TurnCollection(ctx context.Context, deviceID, channelID, name string) error {
	c.record("turnCollection", deviceID, channelID, name)
	if c.TurnCollectionFunc == nil {
		return nil
	}
	return c.TurnCollectionFunc(ctx, deviceID, channelID, name)
}

func (c *Client) ControlMovePTZ(ctx context.Context, deviceID, channelID string, operation, durationMs int) error {
	c.record("controlMovePTZ", deviceID, channelID)
	if c.ControlMovePTZFunc == nil {
		return nil
	}
	return c.ControlMovePTZFunc(ctx, deviceID, channelID, operation, durationMs)
}

func (c *Client) RestartDevice(ctx context.Context, deviceID string) error {
	c.record("restartDevice", deviceID)
	if c.RestartDeviceFunc == nil {
		return nil
	}
	return c.RestartDeviceFunc(ctx, deviceID)
}

func (c *Client) SetDeviceCameraStatus(ctx context.Context, deviceID, enableType string, value bool) error {
	c.record("setDeviceCameraStatus", deviceID, enableType)
	if c.SetDeviceCameraStatusFunc == nil {
		return nil
	}
	return c.SetDeviceCameraStatusFunc(ctx, deviceID, enableType, value)
}
