package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Config holds embedder configuration.
type Config struct {
	Provider  string
	APIKey    string
	CacheSize int
}

// New creates an embedder with explicit configuration.
func New(cfg Config) (Embedder, error) {
	cache := NewCache(cfg.CacheSize)

	switch strings.ToLower(cfg.Provider) {
	case ProviderMistral:
		return NewMistralProvider(cfg.APIKey, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrUnsupportedModel, cfg.Provider)
	}
}

// NewFromEnv creates an embedder based on environment variables.
// Priority:
//  1. CORPUSYNC_EMBEDDING_PROVIDER (mistral, openai, local)
//  2. Available API keys: MISTRAL_API_KEY, then OPENAI_API_KEY
//  3. Local provider when no key is found
func NewFromEnv() (Embedder, error) {
	provider := os.Getenv("CORPUSYNC_EMBEDDING_PROVIDER")
	if provider != "" {
		return New(Config{Provider: provider})
	}

	cache := NewCache(DefaultCacheSize)
	if key := os.Getenv(EnvMistralAPIKey); key != "" {
		return NewMistralProvider(key, cache)
	}
	if key := os.Getenv(EnvOpenAIAPIKey); key != "" {
		return NewOpenAIProvider(key, cache)
	}
	return NewLocalProvider(cache)
}
