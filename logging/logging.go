package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ParseLevel maps a config log level to zerolog.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// Setup configures the global logger. Output goes through a console writer
// on out and is mirrored into the returned Monitor.
func Setup(level string, out io.Writer) (*Monitor, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(lvl)

	if out == nil {
		out = os.Stderr
	}
	monitor := NewMonitor(out, 1024)
	console := zerolog.ConsoleWriter{
		Out:        monitor,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}

	log.Logger = zerolog.New(console).With().Timestamp().Logger()
	if lvl == zerolog.DebugLevel {
		log.Logger = log.Logger.With().Caller().Logger()
	}

	log.Debug().Str("level", lvl.String()).Msg("logger initialized")
	return monitor, nil
}

// GetLogger returns a logger tagged with the given component name
func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
