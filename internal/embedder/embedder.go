// Package embedder provides batch embedding clients with typed
// rate-limit errors and content-hash caching.
package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
	ErrUnsupportedModel  = errors.New("unsupported provider")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
)

// RateLimitError is the distinguishable transient error an embedding
// provider returns when throttled. Callers decide retry behavior with
// errors.As, never by inspecting message text.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration // zero when the provider gave no hint
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited: %v", e.Provider, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err is (or wraps) a rate-limit error.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// Embedder is the remote batch-embedding contract. Implementations must
// be safe to call concurrently from multiple batches.
type Embedder interface {
	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding dimension for this provider.
	Dimension() int

	// Provider returns the provider name.
	Provider() string

	// Model returns the model name.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}

// Cache is an in-memory LRU of embeddings keyed by content hash.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// DefaultCacheSize is the number of embeddings kept when no size is
// configured.
const DefaultCacheSize = 10000

// NewCache creates an embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		cache, _ = lru.New[string, []float32](DefaultCacheSize)
	}
	return &Cache{cache: cache}
}

// Get returns a copy of the cached vector so caller mutations never
// reach the cache.
func (c *Cache) Get(hash string) ([]float32, bool) {
	v, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Set stores a vector; eviction is automatic at capacity.
func (c *Cache) Set(hash string, vector []float32) {
	c.cache.Add(hash, vector)
}

// Len returns the current cache size.
func (c *Cache) Len() int {
	return c.cache.Len()
}

// ComputeHash returns the cache key for a text.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ValidateBatch rejects empty batches and empty texts before any
// network call.
func ValidateBatch(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}
