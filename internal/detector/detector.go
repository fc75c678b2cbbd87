// Package detector classifies corpus files against the tracking store
// and the vector index. It never mutates state.
package detector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/civisdocs/corpusync/internal/hashing"
	"github.com/civisdocs/corpusync/internal/tracker"
	"github.com/civisdocs/corpusync/internal/vectorstore"
	"github.com/civisdocs/corpusync/pkg/types"
)

// Status is the terminal classification of one file.
type Status string

const (
	// StatusNew means no tracking record exists.
	StatusNew Status = "new"

	// StatusUpdated means the record exists but digest or modification
	// time differ, or the record matches but the index holds no vectors
	// for the file (drift to heal).
	StatusUpdated Status = "updated"

	// StatusUnchanged means digest and modification time match and the
	// index has vectors for the file.
	StatusUnchanged Status = "unchanged"
)

// Classification is the result of classifying one file.
type Classification struct {
	Path           string
	Status         Status
	PreviousChunks int
}

// Detector classifies files. ForceRebuild short-circuits the per-file
// vector presence lookup when the index was observed empty at run start:
// every tracked-but-unchanged file then needs re-embedding anyway.
type Detector struct {
	tracker      *tracker.Store
	index        vectorstore.Index
	forceRebuild bool
	log          *slog.Logger
}

// New creates a Detector. Set forceRebuild when the vector index was
// empty at run start.
func New(tr *tracker.Store, index vectorstore.Index, forceRebuild bool, log *slog.Logger) *Detector {
	if log == nil {
		log = slog.Default()
	}
	return &Detector{
		tracker:      tr,
		index:        index,
		forceRebuild: forceRebuild,
		log:          log,
	}
}

// Classify returns the status of one file given current tracking and
// index state. An I/O error reading the file propagates so the caller
// can skip the file for this run.
func (d *Detector) Classify(ctx context.Context, path string) (Classification, error) {
	currentHash, err := hashing.HashFile(path)
	if err != nil {
		return Classification{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Classification{}, fmt.Errorf("stat %s: %w", path, err)
	}

	rec, err := d.tracker.Get(ctx, path)
	if errors.Is(err, tracker.ErrNotFound) {
		return Classification{Path: path, Status: StatusNew}, nil
	}
	if err != nil {
		return Classification{}, err
	}

	if rec.ContentHash != currentHash || !rec.LastModified.Equal(info.ModTime()) {
		return Classification{
			Path:           path,
			Status:         StatusUpdated,
			PreviousChunks: rec.ChunkCount,
		}, nil
	}

	// Unchanged on disk. Heal drift: if vectors are missing the file
	// must be re-embedded even though tracking says processed.
	if d.forceRebuild || !d.hasVectors(ctx, path) {
		d.log.Info("vectors missing for unchanged file, scheduling re-embed",
			slog.String("file", path))
		return Classification{
			Path:           path,
			Status:         StatusUpdated,
			PreviousChunks: rec.ChunkCount,
		}, nil
	}

	return Classification{
		Path:           path,
		Status:         StatusUnchanged,
		PreviousChunks: rec.ChunkCount,
	}, nil
}

// hasVectors reports whether the index currently holds any records for
// the file. An uncertain answer counts as missing: re-embedding an
// indexed file is idempotent, skipping an unindexed one loses data.
func (d *Detector) hasVectors(ctx context.Context, path string) bool {
	ids, err := d.index.GetWhere(ctx, vectorstore.Filter{types.MetaSourceFile: path})
	if err != nil {
		d.log.Debug("vector presence check failed",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return false
	}
	return len(ids) > 0
}
