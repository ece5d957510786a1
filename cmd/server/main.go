package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-relay/internal/app"
	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/log"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		logLevel   string
		echo       bool
	)

	cmd := &cobra.Command{
		Use:           "wirechat-relay",
		Short:         "Broadcast relay for wirechat clients",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// .env is optional
			_ = godotenv.Load()

			bootLogger := log.New(logLevel)

			cfg, usedPath, err := config.Load(bootLogger, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			flags := cmd.Flags()
			override := config.Config{}
			if flags.Changed("addr") {
				override.Addr = addr
			}
			if flags.Changed("log-level") {
				override.LogLevel = logLevel
			}
			cfg.UpdateFrom(override)
			if flags.Changed("echo") {
				cfg.Echo = echo
			}

			logger := log.New(cfg.LogLevel)
			logger.Info().
				Str("config", usedPath).
				Str("addr", cfg.Addr).
				Bool("echo", cfg.Echo).
				Str("broker", cfg.Broker.Kind).
				Msg("starting wirechat relay")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, &cfg, logger)
			if err != nil {
				return err
			}
			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("server exited: %w", err)
			}
			logger.Info().Msg("relay stopped")
			return nil
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "config file path (default is ./config.yaml)")
	flags.StringVar(&addr, "addr", "", "HTTP listen address")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.BoolVar(&echo, "echo", true, "deliver messages back to their sender")

	return cmd
}
