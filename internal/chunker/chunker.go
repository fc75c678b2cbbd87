// Package chunker splits normalized document text into bounded,
// overlapping chunks for embedding.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/civisdocs/corpusync/pkg/types"
)

const (
	// DefaultChunkSize is the target number of bytes per chunk.
	DefaultChunkSize = 2000

	// DefaultChunkOverlap is the number of bytes shared between
	// consecutive chunks.
	DefaultChunkOverlap = 100

	// boundaryWindow is how far back from a hard cut the splitter will
	// look for a whitespace boundary before giving up and cutting
	// mid-word.
	boundaryWindow = 200
)

// Chunker produces fixed-size overlapping chunks.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in bytes.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in bytes.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a Chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	// The step must stay positive or the scan never advances.
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

// ChunkDocument splits a document's content and stamps every chunk with
// the document's metadata plus its index and the total count. An empty
// document yields nil, which is a valid zero-chunk outcome.
func (c *Chunker) ChunkDocument(doc *types.Document) []types.Chunk {
	pieces := c.Split(doc.Content)
	if len(pieces) == 0 {
		return nil
	}

	chunks := make([]types.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, types.Chunk{
			SourceFile: doc.SourceFile,
			DataSource: doc.DataSource,
			Index:      i,
			Total:      len(pieces),
			Content:    piece,
			Meta:       doc.Meta.Clone(),
		})
	}
	return chunks
}

// Split cuts content into spans of at most chunkSize bytes with the
// configured overlap, preferring whitespace boundaries near the cut
// point. Blank spans are dropped.
func (c *Chunker) Split(content string) []string {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if len(content) <= c.chunkSize {
		return []string{content}
	}

	var pieces []string
	start := 0

	for start < len(content) {
		end := start + c.chunkSize
		if end >= len(content) {
			end = len(content)
		} else {
			end = boundary(content, end)
			if end <= start {
				end = start + c.chunkSize
			}
		}

		piece := content[start:end]
		if strings.TrimSpace(piece) != "" {
			pieces = append(pieces, piece)
		}
		if end == len(content) {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return pieces
}

// boundary walks the cut point back to the nearest whitespace within
// boundaryWindow bytes, then forward off any split rune, so chunks end
// on word edges whenever the text allows it.
func boundary(content string, end int) int {
	limit := end - boundaryWindow
	if limit < 0 {
		limit = 0
	}
	for i := end; i > limit; i-- {
		if content[i-1] == ' ' || content[i-1] == '\n' || content[i-1] == '\t' {
			return i
		}
	}
	// No whitespace nearby; avoid cutting a multibyte rune in half.
	for end < len(content) && !utf8.RuneStart(content[end]) {
		end++
	}
	return end
}
