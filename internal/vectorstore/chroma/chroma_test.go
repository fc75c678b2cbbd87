package chroma

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civisdocs/corpusync/internal/vectorstore"
)

func newTestIndex(t *testing.T, mux *http.ServeMux) *Index {
	t.Helper()
	mux.HandleFunc("/api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "docs", body["name"])
		assert.Equal(t, true, body["get_or_create"])
		fmt.Fprint(w, `{"id":"col-1"}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	idx, err := New(context.Background(), Config{URL: srv.URL, Collection: "docs"})
	require.NoError(t, err)
	return idx
}

func TestNewResolvesCollection(t *testing.T) {
	idx := newTestIndex(t, http.NewServeMux())
	assert.Equal(t, "col-1", idx.collectionID)
}

func TestUpsert(t *testing.T) {
	mux := http.NewServeMux()
	var got map[string]any
	mux.HandleFunc("/api/v1/collections/col-1/upsert", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{}`)
	})
	idx := newTestIndex(t, mux)

	err := idx.Upsert(context.Background(), []vectorstore.Record{
		{
			ID:       "a_0",
			Vector:   []float32{0.1, 0.2},
			Text:     "texte",
			Metadata: map[string]string{"source_file": "f.xml"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []any{"a_0"}, got["ids"])
	assert.Equal(t, []any{"texte"}, got["documents"])
	require.Len(t, got["embeddings"], 1)
	require.Len(t, got["metadatas"], 1)
}

func TestGetWhereSingleCondition(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/collections/col-1/get", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		// A single condition goes inline, not under $and.
		assert.Equal(t, map[string]any{"source_file": "f.xml"}, body["where"])
		fmt.Fprint(w, `{"ids":["a_0","a_1"]}`)
	})
	idx := newTestIndex(t, mux)

	ids, err := idx.GetWhere(context.Background(), vectorstore.Filter{"source_file": "f.xml"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a_0", "a_1"}, ids)
}

func TestDeleteWhereMultipleConditions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/collections/col-1/delete", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Where map[string][]map[string]any `json:"where"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Where["$and"], 2)
		fmt.Fprint(w, `{}`)
	})
	idx := newTestIndex(t, mux)

	err := idx.DeleteWhere(context.Background(), vectorstore.Filter{
		"source_file": "f.xml",
		"data_source": "vosdroits",
	})
	assert.NoError(t, err)
}

func TestEmptyFilterRejectedLocally(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/collections/col-1/", func(http.ResponseWriter, *http.Request) {
		t.Error("empty filter must not reach the API")
	})
	idx := newTestIndex(t, mux)
	ctx := context.Background()

	err := idx.DeleteWhere(ctx, vectorstore.Filter{})
	assert.ErrorIs(t, err, errEmptyFilter)

	_, err = idx.GetWhere(ctx, nil)
	assert.ErrorIs(t, err, errEmptyFilter)
}

func TestCount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/collections/col-1/count", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `42`)
	})
	idx := newTestIndex(t, mux)

	n, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestAPIErrorSurfaces(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/collections/col-1/get", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad where clause", http.StatusUnprocessableEntity)
	})
	idx := newTestIndex(t, mux)

	_, err := idx.GetWhere(context.Background(), vectorstore.Filter{"source_file": "f.xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}
