package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTTL is how long a cached response stays servable.
const DefaultTTL = 24 * time.Hour

// ErrMiss reports that no fresh entry exists for a query. It covers
// both absence and expiry; callers treat the two identically.
var ErrMiss = errors.New("cache miss")

// Entry is one cached response. Embedding is the query embedding at
// store time; it is persisted but not read back on a hit.
type Entry struct {
	QueryHash       string
	NormalizedQuery string
	OriginalQuery   string
	Embedding       []float32
	Response        string
	Language        string
	ExpiresAt       time.Time
	HitCount        int
	LastHitAt       time.Time
	CreatedAt       time.Time
}

// store is the persistence surface the manager needs.
type store interface {
	Lookup(ctx context.Context, queryHash string, now time.Time) (Entry, error)
	BumpHit(ctx context.Context, queryHash string, now time.Time) error
	Upsert(ctx context.Context, entry Entry) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Config holds cache tuning knobs.
type Config struct {
	TTL       time.Duration `mapstructure:"ttl"`
	Greetings []string      `mapstructure:"greetings"`
}

// Manager wraps the cache store with key derivation and the
// degrade-to-miss error policy.
type Manager struct {
	store     store
	ttl       time.Duration
	greetings []string
	logger    *slog.Logger
	now       func() time.Time
}

// NewManager creates a cache Manager. A zero TTL falls back to
// DefaultTTL; an empty greeting list falls back to DefaultGreetings.
func NewManager(st store, cfg Config, logger *slog.Logger) (*Manager, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("ttl must not be negative, got %v", cfg.TTL)
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if len(cfg.Greetings) == 0 {
		cfg.Greetings = DefaultGreetings()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     st,
		ttl:       cfg.TTL,
		greetings: cfg.Greetings,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// key derives the cache key for a query under this manager's greeting
// table.
func (m *Manager) key(query string) string {
	return Key(query, m.greetings)
}

// Get returns the cached response for a query. Absent or expired
// entries return ErrMiss. A failing store also reads as a miss: the
// cache is an optimization and must never take down a request.
func (m *Manager) Get(ctx context.Context, query string) (string, error) {
	hash := m.key(query)
	now := m.now()

	entry, err := m.store.Lookup(ctx, hash, now)
	if errors.Is(err, ErrMiss) {
		return "", ErrMiss
	}
	if err != nil {
		m.logger.Warn("cache lookup failed, treating as miss", "error", err)
		return "", ErrMiss
	}

	if err := m.store.BumpHit(ctx, hash, now); err != nil {
		m.logger.Warn("cache hit count update failed", "error", err)
	}
	m.logger.Debug("cache hit", "hash", hash[:12], "hits", entry.HitCount+1)
	return entry.Response, nil
}

// Put stores a response for a query with a fresh TTL, replacing any
// existing entry for the same normalized form. Store failures are
// logged and swallowed; the caller already has its response.
func (m *Manager) Put(ctx context.Context, query string, embedding []float32, response, language string) {
	entry := Entry{
		QueryHash:       m.key(query),
		NormalizedQuery: Normalize(query, m.greetings),
		OriginalQuery:   query,
		Embedding:       embedding,
		Response:        response,
		Language:        language,
		ExpiresAt:       m.now().Add(m.ttl),
	}
	if err := m.store.Upsert(ctx, entry); err != nil {
		m.logger.Warn("cache store failed", "error", err)
	}
}

// SweepExpired deletes entries past their expiry and reports how many
// were removed.
func (m *Manager) SweepExpired(ctx context.Context) (int64, error) {
	deleted, err := m.store.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("sweeping expired entries: %w", err)
	}
	if deleted > 0 {
		m.logger.Info("swept expired cache entries", "deleted", deleted)
	}
	return deleted, nil
}
