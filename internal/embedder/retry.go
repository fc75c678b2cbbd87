package embedder

import (
	"context"
	"errors"
	"time"
)

// Retry configuration defaults.
const (
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// RetryConfig configures exponential backoff for rate-limited calls.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// DefaultRetryConfig returns sensible defaults for API retry.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: MaxRetries,
		BaseDelay:  InitialBackoffMs * time.Millisecond,
		MaxDelay:   MaxBackoffMs * time.Millisecond,
		Multiplier: BackoffMultiplier,
	}
}

// EmbedWithRetry calls e.EmbedBatch, retrying with exponential backoff
// while the provider reports rate limiting. Any other error, or
// exhausting the retry ceiling, is returned to the caller unretried.
func EmbedWithRetry(ctx context.Context, e Embedder, texts []string, config RetryConfig) ([][]float32, error) {
	backoff := config.BaseDelay
	var lastErr error

	for attempt := 0; attempt < config.MaxRetries; attempt++ {
		vectors, err := e.EmbedBatch(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		if !IsRateLimited(err) {
			return nil, err
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < config.MaxRetries-1 {
			delay := backoff
			var rl *RateLimitError
			if errors.As(err, &rl) && rl.RetryAfter > delay {
				delay = rl.RetryAfter
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
				backoff = time.Duration(float64(backoff) * config.Multiplier)
				if backoff > config.MaxDelay {
					backoff = config.MaxDelay
				}
			}
		}
	}
	return nil, lastErr
}
