// Package main is the entry point for the capiscio-cards CLI.
package main

import (
	"fmt"
	"os"

	"github.com/capiscio/capiscio-cards/pkg/config"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "capiscio-cards",
	Short: "CapiscIO identity cards and access tokens",
	Long: `Create, publish and verify identity cards, issue access tokens,
and manage locally stored private keys.

Settings come from ~/.capiscio/cards.yaml (or --config) and CAPISCIO_*
environment variables.`,
	SilenceUsage: true,
}

// loadConfig reads and validates the configuration.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.capiscio/cards.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
