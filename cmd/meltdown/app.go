package main

import (
	"fmt"

	"github.com/mostlygeek/meltdown/bus"
	"github.com/mostlygeek/meltdown/config"
	"github.com/mostlygeek/meltdown/consumer"
	"github.com/mostlygeek/meltdown/dispatch"
	"github.com/mostlygeek/meltdown/logging"
	"github.com/mostlygeek/meltdown/registry"
)

// buildBus wires a bus from config: dispatcher, default consumer and hooks.
func buildBus(cfg config.Config) (*bus.Bus, error) {
	logger := logging.GetLogger("bus")

	dispatcher, err := dispatch.FromConfig(cfg.Dispatcher, cfg.Workers, cfg.QueueSize)
	if err != nil {
		return nil, err
	}

	execOpts := []consumer.ExecOption{consumer.WithLogger(logging.GetLogger("exec"))}

	def := consumer.Log(logging.GetLogger("default"))
	if cfg.Default.Command != "" {
		exec, err := consumer.NewExec(cfg.Default.Command, execOpts...)
		if err != nil {
			dispatcher.Close()
			return nil, fmt.Errorf("default command: %w", err)
		}
		def = exec
	}

	b, err := bus.New(
		bus.WithDispatcher(dispatcher),
		bus.WithDefault(def),
		bus.WithLogger(logger),
	)
	if err != nil {
		dispatcher.Close()
		return nil, err
	}

	for i, hook := range cfg.Hooks {
		sel, err := hook.Build()
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("hooks[%d]: %w", i, err)
		}
		exec, err := consumer.NewExec(hook.Command, execOpts...)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("hooks[%d]: %w", i, err)
		}

		var opts []registry.Option
		if hook.Once {
			opts = append(opts, registry.CancelAfterUse())
		}
		opts = append(opts, registry.WithMetadata(hook))

		if _, err := b.On(sel, exec, opts...); err != nil {
			b.Close()
			return nil, fmt.Errorf("hooks[%d]: %w", i, err)
		}
	}

	logger.Info().
		Str("dispatcher", cfg.Dispatcher).
		Int("hooks", len(cfg.Hooks)).
		Msg("bus ready")
	return b, nil
}
