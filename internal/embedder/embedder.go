// Package embedder converts text to fixed-dimension vectors through a
// Genkit ai.Embedder provider.
//
// Batching is strictly sequential: an input list is split into fixed-size
// groups, one provider call per group, with a fixed inter-batch delay to
// respect provider rate limits. Order is always preserved.
package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Config holds embedding tunables. All values come from configuration,
// never hardcoded call sites.
type Config struct {
	// Dimension is the fixed output dimensionality requested from the
	// provider. Must match the vector columns in the store schema.
	Dimension int32 `mapstructure:"dimension"`

	// BatchSize is the maximum number of texts per provider call.
	BatchSize int `mapstructure:"batch_size"`

	// BatchDelay is the fixed pause between consecutive batches.
	BatchDelay time.Duration `mapstructure:"batch_delay"`

	// Retry bounds the retry policy applied to each provider call.
	Retry RetryConfig `mapstructure:"retry"`
}

// Embedder wraps an ai.Embedder provider with normalization, sequential
// batching, and a bounded retry policy.
//
// Embedder is safe for concurrent use; the rate limiter serializes the
// inter-batch delay across callers.
type Embedder struct {
	provider ai.Embedder
	cfg      Config
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// New creates an Embedder.
func New(provider ai.Embedder, cfg Config, logger *slog.Logger) (*Embedder, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", cfg.Dimension)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch_size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.BatchDelay < 0 {
		return nil, fmt.Errorf("batch_delay must not be negative, got %s", cfg.BatchDelay)
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Burst 1 so the first batch starts immediately and every later batch
	// waits out the fixed delay.
	limit := rate.Inf
	if cfg.BatchDelay > 0 {
		limit = rate.Every(cfg.BatchDelay)
	}

	return &Embedder{
		provider: provider,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
	}, nil
}

// Embed converts a single text to a vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedGroup(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch converts texts to vectors, one-to-one and order-preserving.
// Groups are issued strictly sequentially; a provider failure aborts the
// whole call after the bounded retry policy is exhausted.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	batches := (len(texts) + e.cfg.BatchSize - 1) / e.cfg.BatchSize

	for i := 0; i < len(texts); i += e.cfg.BatchSize {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("inter-batch delay: %w", err)
		}

		end := min(i+e.cfg.BatchSize, len(texts))
		group := texts[i:end]

		e.logger.Info("embedding batch",
			"batch", i/e.cfg.BatchSize+1,
			"batches", batches,
			"size", len(group),
		)

		groupVectors, err := e.embedGroup(ctx, group)
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", i/e.cfg.BatchSize+1, batches, err)
		}
		vectors = append(vectors, groupVectors...)
	}

	return vectors, nil
}

// embedGroup issues one provider call for a group of texts, retrying
// transient failures per the configured policy.
func (e *Embedder) embedGroup(ctx context.Context, texts []string) ([][]float32, error) {
	docs := make([]*ai.Document, len(texts))
	for i, text := range texts {
		docs[i] = ai.DocumentFromText(normalize(text), nil)
	}

	dim := e.cfg.Dimension
	req := &ai.EmbedRequest{
		Input:   docs,
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	}

	resp, err := e.callWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("provider returned %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if len(emb.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding at position %d", i)
		}
		vectors[i] = emb.Embedding
	}
	return vectors, nil
}

// normalize collapses embedded newlines to spaces before sending text to
// the provider.
func normalize(text string) string {
	return strings.ReplaceAll(text, "\n", " ")
}
