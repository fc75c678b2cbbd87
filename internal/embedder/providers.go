package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Provider configuration
const (
	ProviderMistral = "mistral"
	ProviderOpenAI  = "openai"
	ProviderLocal   = "local"

	// Default models
	DefaultMistralModel = "mistral-embed"
	DefaultOpenAIModel  = "text-embedding-3-small"

	// Dimensions
	MistralDimension = 1024
	OpenAIDimension  = 1536
	LocalDimension   = 384

	// Batch limits
	MaxBatchSize = 100

	// Environment variables
	EnvMistralAPIKey = "MISTRAL_API_KEY"
	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
)

const (
	mistralEndpoint = "https://api.mistral.ai/v1/embeddings"
	openAIEndpoint  = "https://api.openai.com/v1/embeddings"
)

// httpProvider is the shared implementation behind the Mistral and
// OpenAI clients: both speak the same embeddings request/response shape.
type httpProvider struct {
	name       string
	endpoint   string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
	cache      *Cache
}

func (p *httpProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	// Serve the whole batch from cache when every text is a hit.
	if p.cache != nil {
		if vectors, ok := p.fromCache(texts); ok {
			return vectors, nil
		}
	}

	vectors, err := p.callAPI(ctx, texts)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		for i, text := range texts {
			p.cache.Set(ComputeHash(text), vectors[i])
		}
	}
	return vectors, nil
}

func (p *httpProvider) fromCache(texts []string) ([][]float32, bool) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, ok := p.cache.Get(ComputeHash(text))
		if !ok {
			return nil, false
		}
		vectors[i] = v
	}
	return vectors, true
}

func (p *httpProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]any{
		"input": texts,
		"model": p.model,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		b, _ := io.ReadAll(resp.Body)
		return nil, &RateLimitError{
			Provider:   p.name,
			RetryAfter: retryAfter(resp),
			Err:        fmt.Errorf("status 429: %s", string(b)),
		}
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: api error %d: %s", ErrProviderFailed, resp.StatusCode, string(b))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts",
			ErrProviderFailed, len(apiResp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrProviderFailed, data.Index)
		}
		vectors[data.Index] = data.Embedding
	}
	return vectors, nil
}

func (p *httpProvider) Dimension() int   { return p.dimension }
func (p *httpProvider) Provider() string { return p.name }
func (p *httpProvider) Model() string    { return p.model }

func (p *httpProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// retryAfter parses the Retry-After header, if the provider sent one.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// MistralProvider implements Embedder using the Mistral AI API.
type MistralProvider struct {
	httpProvider
}

// NewMistralProvider creates a Mistral embedder.
func NewMistralProvider(apiKey string, cache *Cache) (*MistralProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvMistralAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvMistralAPIKey)
	}
	return &MistralProvider{httpProvider{
		name:      ProviderMistral,
		endpoint:  mistralEndpoint,
		apiKey:    apiKey,
		model:     DefaultMistralModel,
		dimension: MistralDimension,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}}, nil
}

// OpenAIProvider implements Embedder using the OpenAI API.
type OpenAIProvider struct {
	httpProvider
}

// NewOpenAIProvider creates an OpenAI embedder.
func NewOpenAIProvider(apiKey string, cache *Cache) (*OpenAIProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}
	return &OpenAIProvider{httpProvider{
		name:      ProviderOpenAI,
		endpoint:  openAIEndpoint,
		apiKey:    apiKey,
		model:     DefaultOpenAIModel,
		dimension: OpenAIDimension,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}}, nil
}

// LocalProvider produces deterministic content-derived vectors. Useful
// for tests and offline runs where no API key is available.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates a local embedder.
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		model: "local-embeddings",
		cache: cache,
	}, nil
}

func (l *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		hash := ComputeHash(text)
		if l.cache != nil {
			if v, ok := l.cache.Get(hash); ok {
				vectors[i] = v
				continue
			}
		}
		v := localVector(text)
		if l.cache != nil {
			l.cache.Set(hash, v)
		}
		vectors[i] = v
	}
	return vectors, nil
}

// localVector derives a unit-free vector from the text digest so equal
// content always embeds identically.
func localVector(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	v := make([]float32, LocalDimension)
	for i := range v {
		v[i] = float32(sum[i%len(sum)]) / 255.0
	}
	return v
}

func (l *LocalProvider) Dimension() int   { return LocalDimension }
func (l *LocalProvider) Provider() string { return ProviderLocal }
func (l *LocalProvider) Model() string    { return l.model }
func (l *LocalProvider) Close() error     { return nil }
