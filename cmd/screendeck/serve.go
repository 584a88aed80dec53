package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"screendeck/internal/gateway/app"
	"screendeck/internal/gateway/config"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = config.NormalizePort(port)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port, overrides PORT")
	return cmd
}
