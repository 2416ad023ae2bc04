package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mostlygeek/meltdown/dispatch"
	"github.com/mostlygeek/meltdown/logging"
	"github.com/mostlygeek/meltdown/selector"
	"github.com/mostlygeek/meltdown/tracing"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListen    = ":8080"
	DefaultQueueSize = 25000
	DefaultWorkers   = 4
)

// Hook routes events matching a selector to an external command.
type Hook struct {
	Selector string `yaml:"selector"`
	Kind     string `yaml:"kind"` // exact, regex, glob or all
	Command  string `yaml:"command"`
	Once     bool   `yaml:"once"`
}

// Build returns the hook's selector.
func (h Hook) Build() (selector.Selector, error) {
	return selector.Parse(h.Kind, h.Selector)
}

type DefaultConfig struct {
	// Command runs for unmatched events. Empty means log them.
	Command string `yaml:"command"`
}

type Config struct {
	Listen     string         `yaml:"listen"`
	LogLevel   string         `yaml:"logLevel"`
	Dispatcher string         `yaml:"dispatcher"`
	Workers    int            `yaml:"workers"`
	QueueSize  int            `yaml:"queueSize"`
	Tracing    tracing.Config `yaml:"tracing"`
	Default    DefaultConfig  `yaml:"default"`
	Hooks      []Hook         `yaml:"hooks"`
}

func LoadConfig(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

func LoadConfigFromReader(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, err
	}

	// default configuration values
	config := Config{
		Listen:     DefaultListen,
		LogLevel:   "info",
		Dispatcher: dispatch.KindSync,
		Workers:    DefaultWorkers,
		QueueSize:  DefaultQueueSize,
		Tracing: tracing.Config{
			Insecure:    true,
			ServiceName: "meltdown",
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, err
	}

	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.QueueSize < 1 {
		config.QueueSize = DefaultQueueSize
	}

	if _, err := logging.ParseLevel(config.LogLevel); err != nil {
		return Config{}, fmt.Errorf("logLevel: %w", err)
	}

	if !dispatch.Valid(config.Dispatcher) {
		return Config{}, fmt.Errorf("dispatcher: unknown kind %q, must be one of %s",
			config.Dispatcher, strings.Join(dispatch.Kinds(), ", "))
	}

	for i, hook := range config.Hooks {
		if strings.TrimSpace(hook.Command) == "" {
			return Config{}, fmt.Errorf("hooks[%d]: command is required", i)
		}
		if _, err := hook.Build(); err != nil {
			return Config{}, fmt.Errorf("hooks[%d]: %w", i, err)
		}
	}

	return config, nil
}
