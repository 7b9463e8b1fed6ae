// Package commands implements the bealive-api command line.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bealive/bealive-api/internal/app/runtime"
	"github.com/bealive/bealive-api/internal/config"
)

var (
	// Global flags
	configPath string
	logLevel   string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "bealive-api",
	Short: "BeAlive API - challenges, commitments and posts over REST",
	Long: `bealive-api serves the BeAlive REST API: challenges with monetary stakes,
for/against commitments, posts with media and the follow graph.

Configuration is read from .env, an optional YAML file (--config or
BEALIVE_CONFIG) and environment variables, later sources winning.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = runtime.Version
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (overrides BEALIVE_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)
}

// loadConfig applies global flags on top of the configuration sources.
func loadConfig(validate bool) (config.Config, error) {
	if configPath != "" {
		if err := os.Setenv(config.ConfigPathEnv, configPath); err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.LoadUnvalidated()
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return cfg, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), runtime.Version)
	},
}
