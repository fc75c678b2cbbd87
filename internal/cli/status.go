package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tracking statistics",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tr, err := openTracker(cfg)
	if err != nil {
		return fmt.Errorf("open tracking store: %w", err)
	}
	defer func() { _ = tr.Close() }()

	stats, err := tr.Stats(cmd.Context())
	if err != nil {
		return err
	}

	cmd.Println("Tracking statistics:")
	cmd.Printf("  Total files tracked: %d\n", stats.TotalFiles)
	cmd.Printf("  Total chunks: %d\n", stats.TotalChunks)
	cmd.Printf("  Last processed: %s\n", formatTime(stats.LastProcessed))

	if len(stats.BySource) > 0 {
		cmd.Println("By data source:")
		for source, count := range stats.BySource {
			cmd.Printf("  %s: %d files\n", source, count)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() || t.UnixNano() == 0 {
		return "never"
	}
	return t.Format("2006-01-02 15:04:05")
}
