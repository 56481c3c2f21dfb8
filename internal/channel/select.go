package channel

import (
	"context"
	"log/slog"
)

// Select is a multi-valued entity modeling a momentary action: selecting an
// option fires the action and snaps the selection back to the sentinel.
type Select struct {
	entityBase
	currentOption    string
	availableOptions []string
}

func NewSelect(api API, deviceID, channelID, sensorType, sensorParam string, logger *slog.Logger) *Select {
	description := SelectLabels[sensorType]
	if sensorParam != "" {
		description += " " + sensorParam
	}
	return &Select{
		entityBase: newEntityBase(api, deviceID, channelID, sensorType, sensorParam, description, PlatformSelect, logger),
	}
}

// Update rebuilds the option list as [sentinel] + preset names and resets the
// current selection to the sentinel. Selection is never sticky across refresh.
func (s *Select) Update(ctx context.Context) error {
	ready, err := s.isReady(ctx)
	if err != nil {
		return err
	}
	if !ready {
		return nil
	}

	if s.sensorType == TypeTurnCollection {
		favourites, err := s.api.GetCollection(ctx, s.deviceID, s.channelID)
		if err != nil {
			return err
		}
		options := make([]string, 0, len(favourites.Collections)+1)
		options = append(options, SelectSentinel)
		for _, collection := range favourites.Collections {
			options = append(options, collection.Name)
		}
		s.availableOptions = options
		s.currentOption = s.availableOptions[0]
	}

	s.logger.Debug("select updated", "entity", s.Name(), "options", len(s.availableOptions))
	s.markUpdated()
	return nil
}

// CurrentOption returns the selected option, empty until the first update.
func (s *Select) CurrentOption() string {
	return s.currentOption
}

// AvailableOptions returns the option list; index 0 is always the sentinel
// once the select has been updated.
func (s *Select) AvailableOptions() []string {
	return s.availableOptions
}

// SelectOption fires the bound action for the chosen option. Choosing the
// sentinel is a no-op. After a successful call the selection snaps back to
// the sentinel.
func (s *Select) SelectOption(ctx context.Context, option string) error {
	if option == SelectSentinel {
		return nil
	}

	ready, err := s.isReady(ctx)
	if err != nil {
		return err
	}
	if !ready {
		return nil
	}

	s.logger.Debug("select option chosen", "entity", s.Name(), "option", option)
	if s.sensorType == TypeTurnCollection {
		if err := s.api.TurnCollection(ctx, s.deviceID, s.channelID, option); err != nil {
			return err
		}
		s.currentOption = SelectSentinel
	}
	s.markUpdated()
	return nil
}
