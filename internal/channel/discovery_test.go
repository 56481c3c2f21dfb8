package channel

import (
	"context"
	"testing"

	"github.com/micro-ha/imou-ptz/addon/internal/imou"
	"github.com/micro-ha/imou-ptz/addon/internal/imou/mock"
)

func TestDiscoverChannelsScenario(t *testing.T) {
	api := &mock.Client{
		DeviceBaseListFunc: func(ctx context.Context) (*imou.DeviceList, error) {
			return &imou.DeviceList{Count: 1, Devices: []imou.DeviceListRow{{DeviceID: "D1"}}}, nil
		},
		DeviceBaseDetailListFunc: func(ctx context.Context, deviceIDs []string) (*imou.DeviceDetailList, error) {
			return detailPayload("D1", "Home", "X1", "", imou.ChannelDetail{ChannelID: "C1", ChannelName: "Cam1"}), nil
		},
	}

	channels, err := NewDiscovery(api, testLogger()).DiscoverChannels(context.Background())
	if err != nil {
		t.Fatalf("DiscoverChannels returned error: %v", err)
	}
	if len(channels) != 1 {
		t.Fatalf("expected 1 channel, got %d", len(channels))
	}
	ch, ok := channels["Home - Cam1"]
	if !ok {
		t.Fatalf("expected key \"Home - Cam1\", got %v", channels)
	}
	if ch.DeviceID() != "D1" || ch.ChannelID() != "C1" {
		t.Fatalf("unexpected channel identity %s/%s", ch.DeviceID(), ch.ChannelID())
	}
	if !ch.IsInitialized() {
		t.Fatalf("discovered channel must be initialized")
	}
}

func TestDiscoverSkipsInvalidDeviceAmongThree(t *testing.T) {
	api := &mock.Client{
		DeviceBaseListFunc: func(ctx context.Context) (*imou.DeviceList, error) {
			return &imou.DeviceList{Count: 3, Devices: []imou.DeviceListRow{
				{DeviceID: "D1"}, {DeviceID: "D2"}, {DeviceID: "D3"},
			}}, nil
		},
		DeviceBaseDetailListFunc: func(ctx context.Context, deviceIDs []string) (*imou.DeviceDetailList, error) {
			switch deviceIDs[0] {
			case "D2":
				return nil, &imou.InvalidResponseError{Detail: "deviceList not found"}
			case "D1":
				return detailPayload("D1", "Home", "X1", "", imou.ChannelDetail{ChannelID: "C1", ChannelName: "Cam1"}), nil
			default:
				return detailPayload("D3", "Office", "X2", "", imou.ChannelDetail{ChannelID: "C1", ChannelName: "Cam1"}), nil
			}
		},
	}

	channels, err := NewDiscovery(api, testLogger()).DiscoverChannels(context.Background())
	if err != nil {
		t.Fatalf("DiscoverChannels returned error: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("expected 2 channels with the invalid device skipped, got %d", len(channels))
	}
	if _, ok := channels["Home - Cam1"]; !ok {
		t.Fatalf("missing Home - Cam1")
	}
	if _, ok := channels["Office - Cam1"]; !ok {
		t.Fatalf("missing Office - Cam1")
	}
}

func TestDiscoverAbortsOnAPIErrorKeepingAccumulated(t *testing.T) {
	api := &mock.Client{
		DeviceBaseListFunc: func(ctx context.Context) (*imou.DeviceList, error) {
			return &imou.DeviceList{Count: 2, Devices: []imou.DeviceListRow{
				{DeviceID: "D1"}, {DeviceID: "D2"},
			}}, nil
		},
		DeviceBaseDetailListFunc: func(ctx context.Context, deviceIDs []string) (*imou.DeviceDetailList, error) {
			if deviceIDs[0] == "D2" {
				return nil, &imou.APIError{Code: "OP1008", Message: "rate limited"}
			}
			return detailPayload("D1", "Home", "X1", "", imou.ChannelDetail{ChannelID: "C1", ChannelName: "Cam1"}), nil
		},
	}

	channels, err := NewDiscovery(api, testLogger()).DiscoverChannels(context.Background())
	if !imou.IsAPIError(err) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if len(channels) != 1 {
		t.Fatalf("expected the accumulated channel to survive the abort, got %d", len(channels))
	}
}

func TestDiscoverMultiChannelDevice(t *testing.T) {
	api := &mock.Client{
		DeviceBaseListFunc: func(ctx context.Context) (*imou.DeviceList, error) {
			return &imou.DeviceList{Count: 1, Devices: []imou.DeviceListRow{{DeviceID: "D1"}}}, nil
		},
		DeviceBaseDetailListFunc: func(ctx context.Context, deviceIDs []string) (*imou.DeviceDetailList, error) {
			return detailPayload("D1", "NVR", "N1", "",
				imou.ChannelDetail{ChannelID: "C1", ChannelName: "Drive"},
				imou.ChannelDetail{ChannelID: "C2", ChannelName: "Porch"},
			), nil
		},
	}

	channels, err := NewDiscovery(api, testLogger()).DiscoverChannels(context.Background())
	if err != nil {
		t.Fatalf("DiscoverChannels returned error: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("expected 2 channels from one device, got %d", len(channels))
	}
}
