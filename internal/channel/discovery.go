package channel

import (
	"context"
	"log/slog"

	"github.com/micro-ha/imou-ptz/addon/internal/imou"
)

// Discovery enumerates every device/channel pair visible to a credential pair
// and materializes one initialized Channel per discovered channel.
type Discovery struct {
	api    API
	logger *slog.Logger
}

func NewDiscovery(api API, logger *slog.Logger) *Discovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{api: api, logger: logger}
}

// DiscoverChannels returns a map keyed by each channel's full display name.
// The key is best-effort unique; callers needing identity-stable keys should
// use (device id, channel id). A device yielding an invalid response is
// skipped with a warning; any other failure aborts and returns whatever was
// accumulated so far.
func (d *Discovery) DiscoverChannels(ctx context.Context) (map[string]*Channel, error) {
	d.logger.Debug("starting discovery")
	channels := map[string]*Channel{}

	devices, err := d.api.DeviceBaseList(ctx)
	if err != nil {
		return channels, err
	}
	d.logger.Debug("discovered registered devices", "count", devices.Count)

	for _, row := range devices.Devices {
		detail, err := d.api.DeviceBaseDetailList(ctx, []string{row.DeviceID})
		if err != nil {
			if imou.IsInvalidResponse(err) {
				d.logger.Warn("skipping unrecognized or unsupported device", "device_id", row.DeviceID, "err", err)
				continue
			}
			return channels, err
		}
		if len(detail.Devices) != 1 {
			d.logger.Warn("skipping unrecognized or unsupported device", "device_id", row.DeviceID, "devices", len(detail.Devices))
			continue
		}

		device := detail.Devices[0]
		for _, channelData := range device.Channels {
			ch := New(d.api, device.DeviceID, channelData.ChannelID, d.logger)
			ch.Initialize(ctx)
			channels[ch.Name()] = ch
		}
	}
	return channels, nil
}
