package channel

import (
	"context"
	"log/slog"
)

// Sensor is a read-only entity exposing one state value.
type Sensor struct {
	entityBase
	state string
}

func NewSensor(api API, deviceID, channelID, sensorType, sensorParam string, logger *slog.Logger) *Sensor {
	description := SensorLabels[sensorType]
	if sensorParam != "" {
		description += " " + sensorParam
	}
	return &Sensor{
		entityBase: newEntityBase(api, deviceID, channelID, sensorType, sensorParam, description, PlatformSensor, logger),
	}
}

// Update refreshes the sensor state from the cloud. An absent channel record
// or an unrecognized code resolves to the Unknown label rather than an error.
func (s *Sensor) Update(ctx context.Context) error {
	ready, err := s.isReady(ctx)
	if err != nil {
		return err
	}
	if !ready {
		return nil
	}

	if s.sensorType == TypeStatus {
		data, err := s.api.DeviceOnline(ctx, s.deviceID)
		if err != nil {
			return err
		}
		state := OnlineStatus[codeUnknown]
		if _, recognized := OnlineStatus[data.OnLine]; recognized {
			if ch := data.Channel(s.channelID); ch != nil {
				if label, ok := OnlineStatus[ch.OnLine]; ok {
					state = label
				}
			}
		}
		s.state = state
	}

	s.logger.Debug("sensor updated", "entity", s.Name(), "state", s.state)
	s.markUpdated()
	return nil
}

// State returns the last refreshed value, empty until the first update.
func (s *Sensor) State() string {
	return s.state
}
