package main

import (
	"github.com/spf13/cobra"

	"github.com/alanyoungcy/genmarket/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets redacted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printJSON(cmd, config.RedactedConfig(application.Config()))
	},
}
