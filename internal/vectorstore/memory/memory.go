// Package memory provides an in-memory vector index for tests and
// offline runs.
package memory

import (
	"context"
	"sync"

	"github.com/civisdocs/corpusync/internal/vectorstore"
)

// Index is a map-backed vectorstore.Index guarded by a mutex. It mirrors
// real index semantics: upsert with the same id is a replace, and filter
// operations match full metadata equality on every filter key.
type Index struct {
	mu      sync.RWMutex
	records map[string]vectorstore.Record
}

var _ vectorstore.Index = (*Index)(nil)

// New creates an empty in-memory index.
func New() *Index {
	return &Index{records: make(map[string]vectorstore.Record)}
}

// Upsert adds or replaces records by id.
func (m *Index) Upsert(_ context.Context, records []vectorstore.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		m.records[rec.ID] = rec
	}
	return nil
}

// DeleteWhere removes every record whose metadata matches the filter.
func (m *Index) DeleteWhere(_ context.Context, filter vectorstore.Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rec := range m.records {
		if matches(rec.Metadata, filter) {
			delete(m.records, id)
		}
	}
	return nil
}

// GetWhere returns the ids of records whose metadata matches the filter.
func (m *Index) GetWhere(_ context.Context, filter vectorstore.Filter) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, rec := range m.records {
		if matches(rec.Metadata, filter) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Count returns the number of stored records.
func (m *Index) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Close is a no-op.
func (m *Index) Close() error { return nil }

// Clear drops every record. Test helper.
func (m *Index) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]vectorstore.Record)
}

func matches(metadata map[string]string, filter vectorstore.Filter) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}
