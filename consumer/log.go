package consumer

import (
	"github.com/mostlygeek/meltdown/event"
	"github.com/rs/zerolog"
)

// Log returns a consumer that records every value at info level.
func Log(logger zerolog.Logger) Consumer {
	return Func(func(value any) {
		ev, ok := value.(*event.Event)
		if !ok {
			logger.Info().Interface("value", value).Msg("unrouted value")
			return
		}
		logger.Info().
			Str("id", ev.ID).
			Interface("key", ev.Key).
			Interface("data", ev.Data).
			Msg("unrouted event")
	})
}
