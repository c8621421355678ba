package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const lookupSQL = `SELECT query_hash, normalized_query, original_query,
		cached_response, language, expires_at, hit_count, created_at
	FROM response_cache
	WHERE query_hash = $1 AND expires_at > $2`

const bumpHitSQL = `UPDATE response_cache
	SET hit_count = hit_count + 1, last_hit_at = $2
	WHERE query_hash = $1`

const upsertEntrySQL = `INSERT INTO response_cache
	(query_hash, normalized_query, original_query, embedding, cached_response, language, expires_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (query_hash) DO UPDATE SET
		original_query = EXCLUDED.original_query,
		embedding = EXCLUDED.embedding,
		cached_response = EXCLUDED.cached_response,
		language = EXCLUDED.language,
		expires_at = EXCLUDED.expires_at`

const deleteExpiredSQL = `DELETE FROM response_cache WHERE expires_at <= $1`

// SQLStore persists cache entries in PostgreSQL.
type SQLStore struct {
	db querier
}

// NewSQLStore creates a PostgreSQL-backed cache store.
func NewSQLStore(db querier) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	return &SQLStore{db: db}, nil
}

// Lookup returns the unexpired entry for a hash, or ErrMiss.
func (s *SQLStore) Lookup(ctx context.Context, queryHash string, now time.Time) (Entry, error) {
	var e Entry
	err := s.db.QueryRow(ctx, lookupSQL, queryHash, now).Scan(
		&e.QueryHash, &e.NormalizedQuery, &e.OriginalQuery,
		&e.Response, &e.Language, &e.ExpiresAt, &e.HitCount, &e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrMiss
	}
	if err != nil {
		return Entry{}, fmt.Errorf("looking up cache entry: %w", err)
	}
	return e, nil
}

// BumpHit increments the hit counter and stamps last_hit_at.
func (s *SQLStore) BumpHit(ctx context.Context, queryHash string, now time.Time) error {
	if _, err := s.db.Exec(ctx, bumpHitSQL, queryHash, now); err != nil {
		return fmt.Errorf("updating hit count: %w", err)
	}
	return nil
}

// Upsert stores an entry, replacing any previous one with the same hash.
func (s *SQLStore) Upsert(ctx context.Context, entry Entry) error {
	var embedding *pgvector.Vector
	if len(entry.Embedding) > 0 {
		vec := pgvector.NewVector(entry.Embedding)
		embedding = &vec
	}
	_, err := s.db.Exec(ctx, upsertEntrySQL,
		entry.QueryHash, entry.NormalizedQuery, entry.OriginalQuery,
		embedding, entry.Response, entry.Language, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("storing cache entry: %w", err)
	}
	return nil
}

// DeleteExpired removes entries whose expiry has passed.
func (s *SQLStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, deleteExpiredSQL, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
