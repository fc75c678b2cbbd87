package hashing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.xml")
	require.NoError(t, os.WriteFile(path, []byte("<root>hello</root>"), 0o644))

	h1, err := HashFile(path)
	require.NoError(t, err)
	assert.Len(t, h1, 64) // hex-encoded SHA-256

	h2, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "digest must be deterministic")
}

func TestHashFileContentOnly(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.xml")
	b := filepath.Join(dir, "b.xml")
	require.NoError(t, os.WriteFile(a, []byte("same content"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("same content"), 0o644))

	// Different mtime, same content.
	past := time.Now().Add(-24 * time.Hour)
	require.NoError(t, os.Chtimes(b, past, past))

	ha, err := HashFile(a)
	require.NoError(t, err)
	hb, err := HashFile(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb, "digest depends on content, not metadata")
}

func TestHashFileChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.xml")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	h1, err := HashFile(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	h2, err := HashFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestHashFileMissing(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "missing.xml"))
	assert.Error(t, err)
}

func TestHashLargeFileStreams(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "large.xml")
	// Larger than one hash block so the streamed path is exercised.
	data := make([]byte, 3*blockSize+17)
	for i := range data {
		data[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))

	h, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, HashBytes(data), h)
}
