package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Metadata keys used on vector records. DeleteWhere/GetWhere filters
// match on these, so they are part of the index contract.
const (
	MetaSourceFile  = "source_file"
	MetaDataSource  = "data_source"
	MetaChunkID     = "chunk_id"
	MetaTotalChunks = "total_chunks"
	MetaDocID       = "doc_id"
	MetaDocType     = "doc_type"
	MetaURL         = "url"
	MetaDateCreated = "date_creation"
	MetaDateUpdated = "date_maj"
)

// Chunk is a bounded span of normalized document text prepared for
// embedding. Chunks are derived, never persisted on their own: they exist
// only in flight or as vector-index records.
type Chunk struct {
	SourceFile string
	DataSource string
	Index      int
	Total      int
	Content    string
	Meta       Metadata
}

// VectorID returns the deterministic record id for this chunk, derived
// from the source file, the chunk content digest, and the chunk index.
// Identical content at the same position always maps to the same id, so
// re-adding is idempotent under index replace semantics.
func (c *Chunk) VectorID() string {
	file := sha256.Sum256([]byte(c.SourceFile))
	body := sha256.Sum256([]byte(c.Content))
	return fmt.Sprintf("%s_%s_%d",
		hex.EncodeToString(file[:])[:12],
		hex.EncodeToString(body[:])[:12],
		c.Index)
}

// MetadataMap flattens the chunk metadata into the key/value form stored
// on its vector record.
func (c *Chunk) MetadataMap() map[string]string {
	md := make(map[string]string, 9+len(c.Meta.Extra))
	for k, v := range c.Meta.Extra {
		md[k] = v
	}
	md[MetaSourceFile] = c.SourceFile
	md[MetaDataSource] = c.DataSource
	md[MetaChunkID] = strconv.Itoa(c.Index)
	md[MetaTotalChunks] = strconv.Itoa(c.Total)
	if c.Meta.DocID != "" {
		md[MetaDocID] = c.Meta.DocID
	}
	if c.Meta.DocType != "" {
		md[MetaDocType] = c.Meta.DocType
	}
	if c.Meta.URL != "" {
		md[MetaURL] = c.Meta.URL
	}
	if c.Meta.DateCreated != "" {
		md[MetaDateCreated] = c.Meta.DateCreated
	}
	if c.Meta.DateUpdated != "" {
		md[MetaDateUpdated] = c.Meta.DateUpdated
	}
	return md
}
