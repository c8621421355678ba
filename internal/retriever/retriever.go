// Package retriever finds knowledge chunks relevant to a query.
//
// Retrieval is modeled as two implementations of one strategy
// interface: the native path delegates similarity search to the store,
// the scan path computes cosine similarity client-side over a bounded
// sample. The native path is always attempted first; the scan path is
// the degraded substitute when it fails. Callers see one result shape
// regardless of which strategy served the request.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/atlascore/atlas/internal/knowledge"
)

const (
	// DefaultThreshold is the minimum cosine similarity for a chunk to
	// be considered relevant.
	DefaultThreshold = 0.5

	// DefaultTopK bounds how many chunks a retrieval returns.
	DefaultTopK = 5

	// DefaultSampleCap bounds the fallback scan. The degraded path
	// trades recall for survivability; it never loads the full corpus.
	DefaultSampleCap = 100
)

// Searcher is the store surface the retriever needs.
type Searcher interface {
	VectorSearch(ctx context.Context, embedding []float32, threshold float64, k int) ([]knowledge.Match, error)
	Sample(ctx context.Context, limit int) ([]knowledge.Chunk, error)
}

// TextEmbedder turns query text into a vector.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config holds retrieval tuning knobs.
type Config struct {
	Threshold float64 `mapstructure:"threshold"`
	TopK      int     `mapstructure:"top_k"`
	SampleCap int     `mapstructure:"sample_cap"`
}

// DefaultConfig returns the standard retrieval settings.
func DefaultConfig() Config {
	return Config{
		Threshold: DefaultThreshold,
		TopK:      DefaultTopK,
		SampleCap: DefaultSampleCap,
	}
}

// strategy is one way of resolving an embedding to ranked matches.
// Both implementations honor the same threshold, ordering, and top-k
// contract.
type strategy interface {
	search(ctx context.Context, embedding []float32) ([]knowledge.Match, error)
	name() string
}

// nativeStrategy delegates to the store's vector search.
type nativeStrategy struct {
	store Searcher
	cfg   Config
}

func (s *nativeStrategy) name() string { return "native" }

func (s *nativeStrategy) search(ctx context.Context, embedding []float32) ([]knowledge.Match, error) {
	matches, err := s.store.VectorSearch(ctx, embedding, s.cfg.Threshold, s.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return matches, nil
}

// scanStrategy scores a bounded sample of chunks client-side.
type scanStrategy struct {
	store Searcher
	cfg   Config
}

func (s *scanStrategy) name() string { return "client-scan" }

func (s *scanStrategy) search(ctx context.Context, embedding []float32) ([]knowledge.Match, error) {
	chunks, err := s.store.Sample(ctx, s.cfg.SampleCap)
	if err != nil {
		return nil, fmt.Errorf("sampling chunks: %w", err)
	}

	var matches []knowledge.Match
	for _, chunk := range chunks {
		sim := cosineSimilarity(embedding, chunk.Embedding)
		if sim > s.cfg.Threshold {
			matches = append(matches, knowledge.Match{
				ID:         chunk.ID,
				Content:    chunk.Content,
				Category:   chunk.Category,
				Similarity: sim,
			})
		}
	}

	// Stable sort keeps the store's natural order for ties.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > s.cfg.TopK {
		matches = matches[:s.cfg.TopK]
	}
	return matches, nil
}

// Retriever resolves queries to relevant knowledge chunks.
type Retriever struct {
	embedder TextEmbedder
	primary  strategy
	fallback strategy
	logger   *slog.Logger
}

// New creates a Retriever.
func New(store Searcher, embedder TextEmbedder, cfg Config, logger *slog.Logger) (*Retriever, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if cfg.TopK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", cfg.TopK)
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("threshold must be in [0, 1], got %v", cfg.Threshold)
	}
	if cfg.SampleCap <= 0 {
		cfg.SampleCap = DefaultSampleCap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		primary:  &nativeStrategy{store: store, cfg: cfg},
		fallback: &scanStrategy{store: store, cfg: cfg},
		logger:   logger,
	}, nil
}

// Retrieve embeds the query and returns the most similar chunks above
// the similarity threshold, at most TopK, best first. A failing primary
// strategy degrades to the fallback; only an embedding failure or a
// failure of both strategies is returned as an error.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]knowledge.Match, error) {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return r.RetrieveByVector(ctx, embedding)
}

// RetrieveByVector searches with an already-computed query embedding.
func (r *Retriever) RetrieveByVector(ctx context.Context, embedding []float32) ([]knowledge.Match, error) {
	matches, err := r.primary.search(ctx, embedding)
	if err == nil {
		return matches, nil
	}

	r.logger.Warn("retrieval degraded",
		"failed", r.primary.name(), "using", r.fallback.name(), "error", err)

	matches, err = r.fallback.search(ctx, embedding)
	if err != nil {
		return nil, fmt.Errorf("fallback retrieval: %w", err)
	}
	r.logger.Info("fallback retrieval complete", "matched", len(matches))
	return matches, nil
}

// cosineSimilarity computes the cosine of the angle between two
// vectors. Mismatched dimensions or a zero vector yield 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
