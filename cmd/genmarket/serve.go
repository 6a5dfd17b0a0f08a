package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket backend",
	Long: `Serve the REST API over the market contract, the transaction event feed
and /metrics until interrupted.

Examples:
  genmarket serve
  genmarket serve --port 9000`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Flags().Changed("port") {
			application.Config().Server.Port, _ = cmd.Flags().GetInt("port")
		}
		err := application.ServeMode(cmd.Context())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	serveCmd.Flags().Int("port", 8000, "listen port (overrides server.port)")
}
