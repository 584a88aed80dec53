package main

import (
	"github.com/spf13/cobra"

	"screendeck/internal/gateway/config"
	"screendeck/internal/logging"
)

type rootOptions struct {
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "screendeck",
		Short:        "Turn screenshots into editable slide decks",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level, overrides LOG_LEVEL")

	cmd.AddCommand(
		newServeCmd(opts),
		newConvertCmd(opts),
		newValidateCmd(opts),
	)
	return cmd
}

// loadConfig reads the environment and applies the global flags.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

// setupLogging sends logs to stderr in text form so stdout stays readable.
func setupLogging(cfg *config.Config, cmd *cobra.Command) {
	logging.Setup(cfg.LogLevel, "text", cmd.ErrOrStderr())
}
