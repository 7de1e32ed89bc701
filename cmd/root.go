// Package cmd implements the CLI commands using Cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"clipdeck/internal/config"
	"clipdeck/internal/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagConfig      string
	flagDebug       bool
	flagDownloadDir string
)

// cfg holds the loaded configuration (merged: defaults < file < env < flags).
var cfg *config.Config

var logger = zerolog.Nop()

var rootCmd = &cobra.Command{
	Use:   "clipdeck",
	Short: "Download videos, or just a segment of them, with yt-dlp",
	Long: `clipdeck lists the formats of a video URL, downloads the one you pick
(optionally trimmed to a time range) and serves a small web UI for the same.
The heavy lifting is done by yt-dlp and ffmpeg, which must be installed.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default: $XDG_CONFIG_HOME/clipdeck/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")
	rootCmd.PersistentFlags().StringVarP(&flagDownloadDir, "download-dir", "d", "", "Directory downloads are written to")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(formatsCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(downloadsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and merges configuration, then builds the logger.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags override config file values
	if flagDownloadDir != "" {
		cfg.DownloadDir = flagDownloadDir
	}

	// Re-validate after flag overrides
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger = logging.New(os.Stderr, logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Debug:  flagDebug,
	})
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	// Needs no config.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "clipdeck %s\n", Version)
	},
}
