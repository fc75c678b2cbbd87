// Package syncer drives incremental synchronization runs: it enumerates
// the corpus, classifies files, removes stale entries, fans changed
// files out across workers, and aggregates run statistics.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/civisdocs/corpusync/internal/chunker"
	"github.com/civisdocs/corpusync/internal/detector"
	"github.com/civisdocs/corpusync/internal/embedder"
	"github.com/civisdocs/corpusync/internal/extractor"
	"github.com/civisdocs/corpusync/internal/hashing"
	"github.com/civisdocs/corpusync/internal/tracker"
	"github.com/civisdocs/corpusync/internal/vectorstore"
	"github.com/civisdocs/corpusync/pkg/types"
)

// Config contains the run parameters of a synchronization.
type Config struct {
	DataDirs       []string      // corpus directories, scanned recursively
	FilePattern    string        // base-name glob for corpus files (default *.xml)
	CleanupDeleted bool          // remove vectors/tracking for vanished files
	ChunkSize      int           // bytes per chunk
	ChunkOverlap   int           // bytes shared between consecutive chunks
	BatchSize      int           // chunks per embedding batch
	FileWorkers    int           // concurrent files
	BatchWorkers   int           // concurrent batches within a file
	MaxRetries     int           // retry ceiling for rate-limited batches
	BatchDelay     time.Duration // pause between batch dispatches
}

// DefaultConfig returns the standard run parameters.
func DefaultConfig() Config {
	return Config{
		FilePattern:    "*.xml",
		CleanupDeleted: true,
		ChunkSize:      chunker.DefaultChunkSize,
		ChunkOverlap:   chunker.DefaultChunkOverlap,
		BatchSize:      20,
		FileWorkers:    8,
		BatchWorkers:   8,
		MaxRetries:     embedder.MaxRetries,
		BatchDelay:     500 * time.Millisecond,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.FilePattern == "" {
		c.FilePattern = def.FilePattern
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = def.ChunkSize
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = def.ChunkOverlap
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.FileWorkers <= 0 {
		c.FileWorkers = def.FileWorkers
	}
	if c.BatchWorkers <= 0 {
		c.BatchWorkers = def.BatchWorkers
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
}

// Syncer reconciles the corpus, the tracking store and the vector index.
// All collaborators are injected; Syncer holds no global state.
type Syncer struct {
	cfg     Config
	tracker *tracker.Store
	index   vectorstore.Index
	embed   embedder.Embedder

	extract *extractor.Extractor
	chunk   *chunker.Chunker
	batcher *batchEmbedder
	log     *slog.Logger
}

// New creates a Syncer from its collaborators.
func New(cfg Config, tr *tracker.Store, index vectorstore.Index, embed embedder.Embedder, log *slog.Logger) *Syncer {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{
		cfg:     cfg,
		tracker: tr,
		index:   index,
		embed:   embed,
		extract: extractor.New(),
		chunk: chunker.New(
			chunker.WithChunkSize(cfg.ChunkSize),
			chunker.WithOverlap(cfg.ChunkOverlap),
		),
		batcher: newBatchEmbedder(embed, index, cfg, log),
		log:     log,
	}
}

// fileResult is the outcome of processing one changed file.
type fileResult struct {
	succeeded  int
	failed     int
	chunkCount int
	err        error
}

// Run performs one full synchronization and returns its statistics. A
// single file's failure is reported in the stats, never aborts the run.
func (s *Syncer) Run(ctx context.Context) (*Stats, error) {
	initialCount, err := s.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count vector index: %w", err)
	}
	stats := &Stats{InitialVectorCount: initialCount}

	files, err := s.discoverFiles()
	if err != nil {
		return nil, err
	}
	s.log.Info("corpus enumerated",
		slog.Int("files", len(files)),
		slog.Int("initial_vectors", initialCount))

	if s.cfg.CleanupDeleted {
		if err := s.cleanupDeleted(ctx, files, stats); err != nil {
			return nil, err
		}
	}

	// An empty index with intact tracking means every file needs
	// re-embedding regardless of what tracking claims.
	det := detector.New(s.tracker, s.index, initialCount == 0, s.log)

	var changed []detector.Classification
	baseline := 0
	for _, path := range files {
		cls, err := det.Classify(ctx, path)
		if err != nil {
			s.log.Warn("skipping unreadable file",
				slog.String("file", path),
				slog.String("error", err.Error()))
			stats.FailedFiles++
			continue
		}
		switch cls.Status {
		case detector.StatusNew:
			stats.NewFiles++
			changed = append(changed, cls)
		case detector.StatusUpdated:
			stats.UpdatedFiles++
			changed = append(changed, cls)
		case detector.StatusUnchanged:
			stats.UnchangedFiles++
			baseline += cls.PreviousChunks
		}
	}

	if len(changed) == 0 {
		s.log.Info("no changed files detected, nothing to embed")
	} else {
		s.processChanged(ctx, changed, stats, &baseline)
	}

	stats.BaselineChunks = baseline
	stats.ComputeSavingsPercent = savingsPercent(stats.EmbeddedChunks, baseline)

	finalCount, err := s.index.Count(ctx)
	if err != nil {
		s.log.Error("final vector count failed", slog.String("error", err.Error()))
	} else {
		stats.FinalVectorCount = finalCount
		stats.VectorsAdded = finalCount - initialCount
	}

	s.log.Info("sync complete", slog.Any("stats", stats))
	return stats, nil
}

// processChanged fans changed files out across a bounded worker pool.
func (s *Syncer) processChanged(ctx context.Context, changed []detector.Classification, stats *Stats, baseline *int) {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.cfg.FileWorkers)

	for _, cls := range changed {
		cls := cls
		g.Go(func() error {
			res := s.processFile(ctx, cls)

			mu.Lock()
			defer mu.Unlock()
			stats.EmbeddedChunks += res.succeeded
			stats.FailedChunks += res.failed
			*baseline += res.chunkCount
			if res.err != nil {
				s.log.Error("file processing failed",
					slog.String("file", cls.Path),
					slog.String("error", res.err.Error()))
				stats.FailedFiles++
			}
			return nil // file failures never abort the run
		})
	}
	_ = g.Wait()
}

// processFile extracts, chunks, embeds and records one changed file.
// For updated files the stale vectors are deleted before any add, so a
// chunk-boundary change can never leave orphans. The tracking record is
// written only after the index reflects the new state, and its digest
// is computed from the same bytes that were chunked: a file modified
// mid-run keeps the old digest on record and is reclassified next run.
func (s *Syncer) processFile(ctx context.Context, cls detector.Classification) fileResult {
	data, err := os.ReadFile(cls.Path)
	if err != nil {
		return fileResult{err: err}
	}
	info, err := os.Stat(cls.Path)
	if err != nil {
		return fileResult{err: fmt.Errorf("stat %s: %w", cls.Path, err)}
	}
	doc, err := s.extract.ExtractBytes(cls.Path, data)
	if err != nil {
		return fileResult{err: err}
	}
	chunks := s.chunk.ChunkDocument(doc)

	if cls.Status == detector.StatusUpdated {
		filter := vectorstore.Filter{types.MetaSourceFile: cls.Path}
		if err := s.index.DeleteWhere(ctx, filter); err != nil {
			// Without the delete, stale chunks could survive next to
			// fresh ones. Leave the file for the next run.
			return fileResult{err: fmt.Errorf("delete stale vectors: %w", err)}
		}
	}

	succeeded, failed := s.batcher.processFile(ctx, chunks)
	if failed > 0 {
		// Partial embedding stays in the index, but tracking must not
		// claim success: the next run reclassifies and retries.
		return fileResult{
			succeeded:  succeeded,
			failed:     failed,
			chunkCount: len(chunks),
			err:        fmt.Errorf("%d of %d chunks failed to embed", failed, len(chunks)),
		}
	}

	rec := &tracker.Record{
		FilePath:     cls.Path,
		LastModified: info.ModTime(),
		ContentHash:  hashing.HashBytes(data),
		DataSource:   doc.DataSource,
		ProcessedAt:  time.Now(),
		ChunkCount:   len(chunks),
	}
	if err := s.tracker.Upsert(ctx, rec); err != nil {
		return fileResult{succeeded: succeeded, chunkCount: len(chunks),
			err: fmt.Errorf("record processed: %w", err)}
	}
	s.verifyChunkCount(ctx, cls.Path, len(chunks))

	return fileResult{succeeded: succeeded, chunkCount: len(chunks)}
}

// verifyChunkCount checks the tracking/index consistency invariant for
// one file. A mismatch is logged, never silently repaired.
func (s *Syncer) verifyChunkCount(ctx context.Context, path string, want int) {
	ids, err := s.index.GetWhere(ctx, vectorstore.Filter{types.MetaSourceFile: path})
	if err != nil {
		s.log.Debug("chunk count verification skipped",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return
	}
	if len(ids) != want {
		s.log.Error("chunk count mismatch between tracking and index",
			slog.String("file", path),
			slog.Int("tracked", want),
			slog.Int("indexed", len(ids)))
	}
}

// cleanupDeleted removes index records and tracking entries for files
// that disappeared from the corpus.
func (s *Syncer) cleanupDeleted(ctx context.Context, current []string, stats *Stats) error {
	tracked, err := s.tracker.ListPaths(ctx)
	if err != nil {
		return fmt.Errorf("list tracked files: %w", err)
	}

	present := make(map[string]struct{}, len(current))
	for _, p := range current {
		present[p] = struct{}{}
	}

	for _, path := range tracked {
		if _, ok := present[path]; ok {
			continue
		}
		s.log.Info("removing vectors for deleted file", slog.String("file", path))
		filter := vectorstore.Filter{types.MetaSourceFile: path}
		if err := s.index.DeleteWhere(ctx, filter); err != nil {
			// Keep the tracking entry so cleanup retries next run.
			s.log.Error("vector cleanup failed",
				slog.String("file", path),
				slog.String("error", err.Error()))
			continue
		}
		if err := s.tracker.Delete(ctx, path); err != nil {
			s.log.Error("tracking cleanup failed",
				slog.String("file", path),
				slog.String("error", err.Error()))
			continue
		}
		stats.DeletedFiles++
	}
	return nil
}

// discoverFiles walks every configured corpus directory recursively and
// returns the matching files. A missing directory is a configuration
// error, not a silent empty corpus.
func (s *Syncer) discoverFiles() ([]string, error) {
	var files []string
	for _, dir := range s.cfg.DataDirs {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("data directory does not exist: %s", dir)
		}
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ok, err := filepath.Match(s.cfg.FilePattern, d.Name())
			if err != nil {
				return err
			}
			if ok {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
	}
	return files, nil
}
