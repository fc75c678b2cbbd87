// Package chroma is a minimal REST client for a Chroma vector index.
// The collection is created on first use if missing.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/civisdocs/corpusync/internal/vectorstore"
)

// errEmptyFilter rejects unscoped where operations before they reach the
// API: Chroma has no where syntax for "everything" and an empty $and is
// a 4xx.
var errEmptyFilter = errors.New("filter must not be empty")

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "service_public"

// Config configures the Chroma client.
type Config struct {
	URL        string // Base URL, e.g. http://localhost:8000
	Collection string
	Timeout    time.Duration
}

// Index is a vectorstore.Index backed by the Chroma HTTP API.
type Index struct {
	baseURL      string
	collection   string
	collectionID string
	client       *http.Client
}

var _ vectorstore.Index = (*Index)(nil)

// New connects to Chroma and resolves (creating if necessary) the
// configured collection.
func New(ctx context.Context, cfg Config) (*Index, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	idx := &Index{
		baseURL:    cfg.URL,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (c *Index) ensureCollection(ctx context.Context) error {
	body := map[string]any{
		"name":          c.collection,
		"get_or_create": true,
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, "/api/v1/collections", body, &resp); err != nil {
		return fmt.Errorf("ensure collection %s: %w", c.collection, err)
	}
	c.collectionID = resp.ID
	return nil
}

// Upsert adds records to the collection. Chroma treats an add with an
// existing id as a replace.
func (c *Index) Upsert(ctx context.Context, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]string, len(records))
	embeddings := make([][]float32, len(records))
	documents := make([]string, len(records))
	metadatas := make([]map[string]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
		embeddings[i] = rec.Vector
		documents[i] = rec.Text
		metadatas[i] = rec.Metadata
	}

	body := map[string]any{
		"ids":        ids,
		"embeddings": embeddings,
		"documents":  documents,
		"metadatas":  metadatas,
	}
	path := fmt.Sprintf("/api/v1/collections/%s/upsert", c.collectionID)
	if err := c.postJSON(ctx, path, body, nil); err != nil {
		return fmt.Errorf("upsert %d records: %w", len(records), err)
	}
	return nil
}

// DeleteWhere removes every record matching the metadata filter.
func (c *Index) DeleteWhere(ctx context.Context, filter vectorstore.Filter) error {
	if len(filter) == 0 {
		return fmt.Errorf("delete where: %w", errEmptyFilter)
	}
	body := map[string]any{"where": whereClause(filter)}
	path := fmt.Sprintf("/api/v1/collections/%s/delete", c.collectionID)
	if err := c.postJSON(ctx, path, body, nil); err != nil {
		return fmt.Errorf("delete where %v: %w", filter, err)
	}
	return nil
}

// GetWhere returns the ids of records matching the metadata filter.
func (c *Index) GetWhere(ctx context.Context, filter vectorstore.Filter) ([]string, error) {
	if len(filter) == 0 {
		return nil, fmt.Errorf("get where: %w", errEmptyFilter)
	}
	body := map[string]any{
		"where":   whereClause(filter),
		"include": []string{},
	}
	var resp struct {
		IDs []string `json:"ids"`
	}
	path := fmt.Sprintf("/api/v1/collections/%s/get", c.collectionID)
	if err := c.postJSON(ctx, path, body, &resp); err != nil {
		return nil, fmt.Errorf("get where %v: %w", filter, err)
	}
	return resp.IDs, nil
}

// Count returns the total number of records in the collection.
func (c *Index) Count(ctx context.Context) (int, error) {
	path := fmt.Sprintf("%s/api/v1/collections/%s/count", c.baseURL, c.collectionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("count: status %d: %s", resp.StatusCode, string(b))
	}
	var count int
	if err := json.NewDecoder(resp.Body).Decode(&count); err != nil {
		return 0, fmt.Errorf("decode count: %w", err)
	}
	return count, nil
}

// Close releases idle connections.
func (c *Index) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// whereClause converts a filter to Chroma's where syntax: single
// conditions inline, multiple conditions under $and.
func whereClause(filter vectorstore.Filter) map[string]any {
	if len(filter) == 1 {
		for k, v := range filter {
			return map[string]any{k: v}
		}
	}
	conds := make([]map[string]any, 0, len(filter))
	for k, v := range filter {
		conds = append(conds, map[string]any{k: v})
	}
	return map[string]any{"$and": conds}
}

func (c *Index) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
