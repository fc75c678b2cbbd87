package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/civisdocs/corpusync/internal/embedder"
	"github.com/civisdocs/corpusync/internal/syncer"
	"github.com/civisdocs/corpusync/internal/vectorstore/chroma"
)

var noCleanup bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one incremental synchronization",
	Long: `Enumerates the configured corpus directories, classifies every file
as new, updated or unchanged, re-embeds only what changed, and prints
the run report as JSON on stdout.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&noCleanup, "no-cleanup-removed", false,
		"do not clean vectors/tracking for files removed from the corpus")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tr, err := openTracker(cfg)
	if err != nil {
		return fmt.Errorf("open tracking store: %w", err)
	}
	defer func() { _ = tr.Close() }()

	ctx := cmd.Context()

	index, err := chroma.New(ctx, chroma.Config{
		URL:        cfg.Chroma.URL,
		Collection: cfg.Chroma.Collection,
	})
	if err != nil {
		return fmt.Errorf("connect vector index: %w", err)
	}
	defer func() { _ = index.Close() }()

	var embed embedder.Embedder
	if cfg.Embedding.Provider != "" {
		embed, err = embedder.New(embedder.Config{
			Provider:  cfg.Embedding.Provider,
			CacheSize: cfg.Embedding.CacheSize,
		})
	} else {
		embed, err = embedder.NewFromEnv()
	}
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}
	defer func() { _ = embed.Close() }()
	slog.Info("embedding provider selected",
		slog.String("provider", embed.Provider()),
		slog.String("model", embed.Model()))

	sc := cfg.SyncerConfig()
	if noCleanup {
		sc.CleanupDeleted = false
	}

	stats, err := syncer.New(sc, tr, index, embed, slog.Default()).Run(ctx)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(out))
	return nil
}
