package channel

import (
	"context"
	"log/slog"
)

// Button is a fire-and-forget action entity; it carries no persisted state.
type Button struct {
	entityBase
}

func NewButton(api API, deviceID, channelID, sensorType, sensorParam string, logger *slog.Logger) *Button {
	description := ButtonLabels[sensorType]
	if sensorParam != "" {
		description += " " + sensorParam
	}
	return &Button{
		entityBase: newEntityBase(api, deviceID, channelID, sensorType, sensorParam, description, PlatformButton, logger),
	}
}

// Press dispatches the bound action. An unrecognized type issues no remote
// call but still flips the updated flag.
func (b *Button) Press(ctx context.Context) error {
	ready, err := b.isReady(ctx)
	if err != nil {
		return err
	}
	if !ready {
		return nil
	}

	switch b.sensorType {
	case TypeRestartDevice:
		if err := b.api.RestartDevice(ctx, b.deviceID); err != nil {
			return err
		}
	case TypeTurnCollection:
		if err := b.api.TurnCollection(ctx, b.deviceID, b.channelID, b.sensorParam); err != nil {
			return err
		}
	}

	b.logger.Debug("button pressed", "entity", b.Name())
	b.markUpdated()
	return nil
}

// Update is a no-op; buttons have nothing to refresh.
func (b *Button) Update(ctx context.Context) error {
	_ = ctx
	return nil
}
