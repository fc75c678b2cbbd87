// Package cli implements the corpusync command tree.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/civisdocs/corpusync/internal/config"
	"github.com/civisdocs/corpusync/internal/tracker"
)

var version = "dev"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "corpusync",
	Short: "Incremental vector-index synchronization for a document corpus",
	Long: `corpusync keeps a vector index synchronized with a corpus of XML
documents. It detects changed files by content digest, re-embeds only
what changed, and removes vectors for files that disappeared.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		// stderr keeps stdout clean for command output.
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "corpusync.toml", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// loadConfig reads the configured TOML file over defaults.
func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

// openTracker opens the tracking store from configuration.
func openTracker(cfg config.Config) (*tracker.Store, error) {
	return tracker.Open(cfg.TrackingDB)
}
