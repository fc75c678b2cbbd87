package syncer

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/civisdocs/corpusync/internal/embedder"
	"github.com/civisdocs/corpusync/internal/vectorstore"
	"github.com/civisdocs/corpusync/pkg/types"
)

// batchEmbedder groups a file's chunks into fixed-size batches,
// dispatches them concurrently to the embedding provider, and upserts
// successful batches into the vector index. A failed batch never aborts
// its siblings: successfully embedded batches stay in the index even
// when the rest of the file fails.
type batchEmbedder struct {
	embed     embedder.Embedder
	index     vectorstore.Index
	batchSize int
	workers   int
	retry     embedder.RetryConfig
	limiter   *rate.Limiter
	log       *slog.Logger
}

func newBatchEmbedder(e embedder.Embedder, index vectorstore.Index, cfg Config, log *slog.Logger) *batchEmbedder {
	var limiter *rate.Limiter
	if cfg.BatchDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.BatchDelay), 1)
	}
	retry := embedder.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}
	return &batchEmbedder{
		embed:     e,
		index:     index,
		batchSize: cfg.BatchSize,
		workers:   cfg.BatchWorkers,
		retry:     retry,
		limiter:   limiter,
		log:       log,
	}
}

// processFile embeds and upserts all chunks of one file. It returns the
// number of chunks that made it into the index and the number that did
// not.
func (b *batchEmbedder) processFile(ctx context.Context, chunks []types.Chunk) (succeeded, failed int) {
	if len(chunks) == 0 {
		return 0, 0
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(b.workers)

	for start := 0; start < len(chunks); start += b.batchSize {
		end := start + b.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		// Pace dispatches to stay under external rate limits.
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				mu.Lock()
				failed += len(chunks) - start
				mu.Unlock()
				break
			}
		}

		g.Go(func() error {
			n, err := b.embedBatch(ctx, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				b.log.Error("batch failed",
					slog.String("file", batch[0].SourceFile),
					slog.Int("size", len(batch)),
					slog.String("error", err.Error()))
				failed += len(batch)
				return nil // sibling batches keep running
			}
			succeeded += n
			return nil
		})
	}

	_ = g.Wait()
	return succeeded, failed
}

// embedBatch embeds one batch, retrying rate limits with backoff, and
// upserts the resulting records.
func (b *batchEmbedder) embedBatch(ctx context.Context, batch []types.Chunk) (int, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	vectors, err := embedder.EmbedWithRetry(ctx, b.embed, texts, b.retry)
	if err != nil {
		return 0, err
	}

	records := make([]vectorstore.Record, len(batch))
	for i, c := range batch {
		records[i] = vectorstore.Record{
			ID:       c.VectorID(),
			Vector:   vectors[i],
			Text:     c.Content,
			Metadata: c.MetadataMap(),
		}
	}
	if err := b.index.Upsert(ctx, records); err != nil {
		return 0, err
	}
	return len(batch), nil
}
