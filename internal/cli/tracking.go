package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/civisdocs/corpusync/internal/tracker"
)

var listSource string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked files, most recently processed first",
	RunE:  runList,
}

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Show the tracking record for one file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

var removeCmd = &cobra.Command{
	Use:   "remove <file>",
	Short: "Drop tracking for one file, forcing reprocessing next run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Wipe all tracking state, forcing full reprocessing next run",
	RunE:  runClear,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove tracking entries for files that no longer exist on disk",
	RunE:  runCleanup,
}

func init() {
	listCmd.Flags().StringVar(&listSource, "source", "", "filter by data source")
	rootCmd.AddCommand(listCmd, checkCmd, removeCmd, clearCmd, cleanupCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	tr, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = tr.Close() }()

	records, err := tr.List(cmd.Context(), listSource)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		cmd.Println("No tracked files found.")
		return nil
	}
	for _, rec := range records {
		cmd.Printf("%s\n  source: %s  chunks: %d  processed: %s\n",
			rec.FilePath, rec.DataSource, rec.ChunkCount, formatTime(rec.ProcessedAt))
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	tr, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = tr.Close() }()

	rec, err := tr.Get(cmd.Context(), args[0])
	if errors.Is(err, tracker.ErrNotFound) {
		cmd.Printf("%s: not tracked\n", args[0])
		return nil
	}
	if err != nil {
		return err
	}

	cmd.Printf("%s: tracked\n", rec.FilePath)
	cmd.Printf("  data source: %s\n", rec.DataSource)
	cmd.Printf("  chunks: %d\n", rec.ChunkCount)
	cmd.Printf("  last modified: %s\n", formatTime(rec.LastModified))
	cmd.Printf("  processed: %s\n", formatTime(rec.ProcessedAt))
	cmd.Printf("  content hash: %.16s...\n", rec.ContentHash)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	tr, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = tr.Close() }()

	if err := tr.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	cmd.Printf("Removed tracking for: %s\n", args[0])
	return nil
}

func runClear(cmd *cobra.Command, _ []string) error {
	tr, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = tr.Close() }()

	if err := tr.Clear(cmd.Context()); err != nil {
		return err
	}
	cmd.Println("Cleared all tracking data. Next run will process all files.")
	return nil
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	tr, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = tr.Close() }()

	ctx := cmd.Context()
	paths, err := tr.ListPaths(ctx)
	if err != nil {
		return err
	}

	removed := 0
	for _, path := range paths {
		if fileExists(path) {
			continue
		}
		if err := tr.Delete(ctx, path); err != nil {
			return fmt.Errorf("remove tracking for %s: %w", path, err)
		}
		removed++
	}
	if removed == 0 {
		cmd.Println("No deleted files found in tracking.")
	} else {
		cmd.Printf("Cleaned up %d deleted files from tracking.\n", removed)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func openStore() (*tracker.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	tr, err := openTracker(cfg)
	if err != nil {
		return nil, fmt.Errorf("open tracking store: %w", err)
	}
	return tr, nil
}
