package detector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civisdocs/corpusync/internal/hashing"
	"github.com/civisdocs/corpusync/internal/tracker"
	"github.com/civisdocs/corpusync/internal/vectorstore"
	"github.com/civisdocs/corpusync/internal/vectorstore/memory"
	"github.com/civisdocs/corpusync/pkg/types"
)

type fixture struct {
	tracker *tracker.Store
	index   *memory.Index
	path    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	store, err := tracker.Open(filepath.Join(dir, "tracking.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	path := filepath.Join(dir, "F1.xml")
	require.NoError(t, os.WriteFile(path, []byte(`<root>contenu</root>`), 0o644))

	return &fixture{tracker: store, index: memory.New(), path: path}
}

// track writes a tracking record that matches the file's current state.
func (f *fixture) track(t *testing.T, chunks int) {
	t.Helper()
	hash, err := hashing.HashFile(f.path)
	require.NoError(t, err)
	info, err := os.Stat(f.path)
	require.NoError(t, err)
	require.NoError(t, f.tracker.Upsert(context.Background(), &tracker.Record{
		FilePath:     f.path,
		LastModified: info.ModTime(),
		ContentHash:  hash,
		DataSource:   "vosdroits",
		ProcessedAt:  time.Now(),
		ChunkCount:   chunks,
	}))
}

// indexVectors inserts index records attributed to the file.
func (f *fixture) indexVectors(t *testing.T, n int) {
	t.Helper()
	records := make([]vectorstore.Record, n)
	for i := range records {
		records[i] = vectorstore.Record{
			ID:       f.path + "_" + string(rune('0'+i)),
			Vector:   []float32{0.1},
			Metadata: map[string]string{types.MetaSourceFile: f.path},
		}
	}
	require.NoError(t, f.index.Upsert(context.Background(), records))
}

func TestClassifyNew(t *testing.T) {
	f := newFixture(t)
	det := New(f.tracker, f.index, false, nil)

	cls, err := det.Classify(context.Background(), f.path)
	require.NoError(t, err)
	assert.Equal(t, StatusNew, cls.Status)
	assert.Equal(t, 0, cls.PreviousChunks)
}

func TestClassifyUnchanged(t *testing.T) {
	f := newFixture(t)
	f.track(t, 3)
	f.indexVectors(t, 3)
	det := New(f.tracker, f.index, false, nil)

	cls, err := det.Classify(context.Background(), f.path)
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, cls.Status)
	assert.Equal(t, 3, cls.PreviousChunks)
}

func TestClassifyUpdatedOnContentChange(t *testing.T) {
	f := newFixture(t)
	f.track(t, 3)
	f.indexVectors(t, 3)

	require.NoError(t, os.WriteFile(f.path, []byte(`<root>nouveau contenu</root>`), 0o644))

	det := New(f.tracker, f.index, false, nil)
	cls, err := det.Classify(context.Background(), f.path)
	require.NoError(t, err)
	assert.Equal(t, StatusUpdated, cls.Status)
	assert.Equal(t, 3, cls.PreviousChunks, "previous chunk count carried for baseline")
}

func TestClassifyUpdatedOnMtimeChange(t *testing.T) {
	f := newFixture(t)
	f.track(t, 3)
	f.indexVectors(t, 3)

	// Same content, different modification time.
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(f.path, past, past))

	det := New(f.tracker, f.index, false, nil)
	cls, err := det.Classify(context.Background(), f.path)
	require.NoError(t, err)
	assert.Equal(t, StatusUpdated, cls.Status)
}

func TestClassifyHealsMissingVectors(t *testing.T) {
	f := newFixture(t)
	f.track(t, 3)
	// Tracking claims processed but the index holds nothing for the file.

	det := New(f.tracker, f.index, false, nil)
	cls, err := det.Classify(context.Background(), f.path)
	require.NoError(t, err)
	assert.Equal(t, StatusUpdated, cls.Status, "tracked file without vectors must be re-embedded")
}

func TestClassifyForceRebuild(t *testing.T) {
	f := newFixture(t)
	f.track(t, 3)
	f.indexVectors(t, 3)

	det := New(f.tracker, f.index, true, nil)
	cls, err := det.Classify(context.Background(), f.path)
	require.NoError(t, err)
	assert.Equal(t, StatusUpdated, cls.Status, "force rebuild overrides the presence check")
}

func TestClassifyMissingFile(t *testing.T) {
	f := newFixture(t)
	det := New(f.tracker, f.index, false, nil)

	_, err := det.Classify(context.Background(), filepath.Join(t.TempDir(), "gone.xml"))
	assert.Error(t, err)
}
