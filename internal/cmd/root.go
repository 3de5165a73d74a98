// Package cmd wires configuration, storage and transport into the
// zaymazone command tree.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zaymazone/marketplace/internal/config"
)

const serviceName = "zaymazone"

var configDir string

var rootCmd = &cobra.Command{
	Use:   "zaymazone",
	Short: "Zaymazone handcrafted marketplace",
	Long: `Zaymazone serves the marketplace REST API for artisans and buyers.

Run "serve" for the API, "migrate" to manage the Postgres schema and
"worker" to keep seller sales counters in step with order events.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "directory containing config.yaml")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configDir != "" {
		return config.Load(configDir)
	}
	return config.Load()
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
