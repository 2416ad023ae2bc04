package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/mostlygeek/meltdown/config"
	"github.com/mostlygeek/meltdown/logging"
	"github.com/mostlygeek/meltdown/selector"
	"github.com/mostlygeek/meltdown/server"
	"github.com/mostlygeek/meltdown/tracing"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	version string = "0"
	commit  string = "abcd1234"
	date           = "unknown"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var (
		configPath  string
		listen      string
		showVersion bool
	)

	rootCmd := &cobra.Command{
		Use:   "meltdown",
		Short: "Selector based event bus with a default consumer",
		Long: `meltdown routes events posted over HTTP to consumers registered
against selectors. Events that match nothing go to the default consumer.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "version: %s (%s), built at %s\n", version, commit, date)
				return nil
			}

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			return serve(cmd.Context(), cfg)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file name")
	rootCmd.Flags().StringVar(&listen, "listen", "", "listen ip/port, overrides the config file")
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "show version of build")

	rootCmd.AddCommand(newSelectCmd(&configPath))
	rootCmd.AddCommand(&cobra.Command{
		Use:   "example-config",
		Short: "Print an example config file",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.OutOrStdout().Write(GetConfigExampleYAML())
		},
	})

	return rootCmd
}

func newSelectCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "select <key>",
		Short: "Show which registrations a key resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			// keep the dry run quiet
			cfg.Dispatcher = "sync"
			if _, err := logging.Setup("error", cmd.ErrOrStderr()); err != nil {
				return err
			}

			b, err := buildBus(cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			out := cmd.OutOrStdout()
			for _, reg := range b.Select(args[0]) {
				if reg.IsDefault() {
					fmt.Fprintf(out, "default\t%s\n", selector.Describe(reg.Selector()))
					continue
				}
				fmt.Fprintf(out, "%d\t%s\n", reg.ID(), selector.Describe(reg.Selector()))
			}
			return nil
		},
	}
}

// loadConfig reads path, or returns defaults when no path is given.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.LoadConfigFromReader(strings.NewReader(""))
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	monitor, err := logging.Setup(cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}

	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	b, err := buildBus(cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info().Msg("draining queued deliveries")
		b.Close()
	}()

	srv := server.New(b, monitor, logging.GetLogger("server"))
	return srv.Run(ctx, cfg.Listen)
}
