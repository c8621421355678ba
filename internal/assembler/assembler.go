// Package assembler gathers the knowledge, memory, and history that
// accompany a query into a single bundle under a token budget.
//
// Each source degrades independently: a failing store contributes an
// empty component and a warning log, never an error to the caller. An
// over-budget bundle is trimmed with fixed caps rather than rejected.
package assembler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atlascore/atlas/internal/knowledge"
	"github.com/atlascore/atlas/internal/memory"
	"github.com/atlascore/atlas/internal/tokenizer"
)

// Trim caps applied when a bundle exceeds its token budget. Trimming
// keeps the best-ranked knowledge, the most recent memory and history.
const (
	trimKnowledgeCap = 3
	trimMemoryCap    = 5
	trimHistoryCap   = 3
)

// DefaultTokenBudget bounds the assembled context size.
const DefaultTokenBudget = 8000

// QueryEmbedder turns the query into a vector.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// KnowledgeRetriever resolves a query embedding to relevant chunks.
type KnowledgeRetriever interface {
	RetrieveByVector(ctx context.Context, embedding []float32) ([]knowledge.Match, error)
}

// MemoryReader provides per-user facts and history.
type MemoryReader interface {
	Facts(ctx context.Context, userID string, limit int) ([]memory.Fact, error)
	RecentTurns(ctx context.Context, userID string, limit int) ([]memory.Turn, error)
}

// TokenBreakdown accounts for bundle size per component.
type TokenBreakdown struct {
	Knowledge int
	Memory    int
	History   int
	Query     int
	Total     int
}

// Bundle is the assembled context for one query. Query and
// QueryEmbedding are never trimmed.
type Bundle struct {
	Query          string
	QueryEmbedding []float32
	Knowledge      []knowledge.Match
	Memory         []memory.Fact
	History        []memory.Turn // oldest first, ready for prompt order
	Tokens         TokenBreakdown
	Trimmed        bool
}

// Config holds assembly limits.
type Config struct {
	TokenBudget  int `mapstructure:"token_budget"`
	MemoryLimit  int `mapstructure:"memory_limit"`
	HistoryLimit int `mapstructure:"history_limit"`
}

// DefaultConfig returns the standard assembly limits.
func DefaultConfig() Config {
	return Config{
		TokenBudget:  DefaultTokenBudget,
		MemoryLimit:  10,
		HistoryLimit: 5,
	}
}

// Assembler builds context bundles.
type Assembler struct {
	embedder  QueryEmbedder
	retriever KnowledgeRetriever
	memory    MemoryReader
	counter   *tokenizer.Counter
	cfg       Config
	logger    *slog.Logger
}

// New creates an Assembler.
func New(emb QueryEmbedder, retriever KnowledgeRetriever, mem MemoryReader, counter *tokenizer.Counter, cfg Config, logger *slog.Logger) (*Assembler, error) {
	if emb == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if mem == nil {
		return nil, fmt.Errorf("memory reader is required")
	}
	if counter == nil {
		return nil, fmt.Errorf("token counter is required")
	}
	if cfg.TokenBudget <= 0 {
		return nil, fmt.Errorf("token_budget must be positive, got %d", cfg.TokenBudget)
	}
	if cfg.MemoryLimit <= 0 || cfg.HistoryLimit <= 0 {
		return nil, fmt.Errorf("memory_limit and history_limit must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		embedder:  emb,
		retriever: retriever,
		memory:    mem,
		counter:   counter,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Build assembles the context bundle for a query. Component failures
// degrade to empty sections; Build itself only fails on a cancelled
// context.
func (a *Assembler) Build(ctx context.Context, userID, query string) (Bundle, error) {
	if err := ctx.Err(); err != nil {
		return Bundle{}, err
	}

	bundle := Bundle{Query: query}

	embedding, err := a.embedder.Embed(ctx, query)
	if err != nil {
		a.logger.Warn("query embedding failed, continuing without knowledge", "error", err)
	} else {
		bundle.QueryEmbedding = embedding
		matches, err := a.retriever.RetrieveByVector(ctx, embedding)
		if err != nil {
			a.logger.Warn("knowledge retrieval failed, continuing without it", "error", err)
		} else {
			bundle.Knowledge = matches
		}
	}

	facts, err := a.memory.Facts(ctx, userID, a.cfg.MemoryLimit)
	if err != nil {
		a.logger.Warn("memory lookup failed, continuing without it", "error", err)
	} else {
		bundle.Memory = facts
	}

	turns, err := a.memory.RecentTurns(ctx, userID, a.cfg.HistoryLimit)
	if err != nil {
		a.logger.Warn("history lookup failed, continuing without it", "error", err)
	} else {
		// Store returns newest first; prompts read oldest first.
		bundle.History = reverseTurns(turns)
	}

	bundle.Tokens = a.measure(bundle)
	if bundle.Tokens.Total > a.cfg.TokenBudget {
		before := bundle.Tokens.Total
		bundle = a.trim(bundle)
		a.logger.Info("context trimmed to budget",
			"before", before, "after", bundle.Tokens.Total, "budget", a.cfg.TokenBudget)
	}
	return bundle, nil
}

// trim applies the fixed caps and re-measures. History is cut from the
// old end so the latest exchanges survive.
func (a *Assembler) trim(bundle Bundle) Bundle {
	if len(bundle.Knowledge) > trimKnowledgeCap {
		bundle.Knowledge = bundle.Knowledge[:trimKnowledgeCap]
	}
	if len(bundle.Memory) > trimMemoryCap {
		bundle.Memory = bundle.Memory[:trimMemoryCap]
	}
	if len(bundle.History) > trimHistoryCap {
		bundle.History = bundle.History[len(bundle.History)-trimHistoryCap:]
	}
	bundle.Trimmed = true
	bundle.Tokens = a.measure(bundle)
	return bundle
}

// measure recomputes the token breakdown so the component counts and
// the total always agree.
func (a *Assembler) measure(bundle Bundle) TokenBreakdown {
	var tk TokenBreakdown
	for _, m := range bundle.Knowledge {
		tk.Knowledge += a.counter.Count(m.Content)
	}
	for _, f := range bundle.Memory {
		tk.Memory += a.counter.Count(f.FactKey) + a.counter.Count(f.FactValue)
	}
	for _, t := range bundle.History {
		tk.History += a.counter.Count(t.UserMessage) + a.counter.Count(t.BotResponse)
	}
	tk.Query = a.counter.Count(bundle.Query)
	tk.Total = tk.Knowledge + tk.Memory + tk.History + tk.Query
	return tk
}

func reverseTurns(turns []memory.Turn) []memory.Turn {
	if len(turns) == 0 {
		return turns
	}
	out := make([]memory.Turn, len(turns))
	for i, t := range turns {
		out[len(turns)-1-i] = t
	}
	return out
}
