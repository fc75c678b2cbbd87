// Package vectorstore abstracts the store of embedding vectors plus text
// and metadata, queryable and deletable by metadata filter.
package vectorstore

import (
	"context"
)

// Record is one (id, embedding, text, metadata) tuple.
type Record struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]string
}

// Filter matches records whose metadata contains every listed key/value
// pair.
type Filter map[string]string

// Index is the operation-level contract the synchronization engine needs
// from any vector index vendor. Implementations must be safe for
// concurrent use by multiple file workers.
type Index interface {
	// Upsert adds records, replacing any with the same id.
	Upsert(ctx context.Context, records []Record) error

	// DeleteWhere removes every record matching the filter.
	DeleteWhere(ctx context.Context, filter Filter) error

	// GetWhere returns the ids of records matching the filter.
	GetWhere(ctx context.Context, filter Filter) ([]string, error)

	// Count returns the total number of records.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the client.
	Close() error
}
