package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/genmarket/internal/app"
	"github.com/alanyoungcy/genmarket/internal/config"
)

var (
	configPath string
	logLevel   string

	application *app.App
)

var rootCmd = &cobra.Command{
	Use:   "genmarket",
	Short: "Deploy and operate the GenLayer prediction market contract",
	Long: `genmarket deploys the prediction market contract to a GenLayer network,
serves the HTTP backend used by the frontend, and exposes every contract
method on the command line.

Configuration is read from a TOML file (--config) and overridden by
GENMARKET_* environment variables. GENLAYER_PRIVATE_KEY supplies the deployer
key and CONTRACT_ADDRESS the deployed contract.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if application != nil {
			application.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log_level (debug, info, warn, error)")

	rootCmd.AddCommand(deployCmd, serveCmd, accountCmd, marketCmd, legacyCmd, txCmd, auditCmd, configCmd)
}

// setup loads and validates the configuration and builds the application.
func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Logs go to stderr; stdout carries command output.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	application = app.New(cfg, logger, cmd.OutOrStdout())
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// printJSON writes v as indented JSON to the command output.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
