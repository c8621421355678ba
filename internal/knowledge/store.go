// Package knowledge stores curated document chunks in PostgreSQL with
// pgvector similarity search.
//
// Upserts are keyed by content hash so re-ingesting identical text never
// duplicates a row. Store is safe for concurrent use by multiple
// goroutines; correctness relies on PostgreSQL's upsert guarantees, not
// client-side locking.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const upsertChunkSQL = `INSERT INTO knowledge_chunks
	(content, content_hash, token_count, category, subcategory, source_file,
	 section_title, section_level, chunk_index, embedding)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (content_hash) DO UPDATE SET
		token_count = EXCLUDED.token_count,
		category = EXCLUDED.category,
		subcategory = EXCLUDED.subcategory,
		source_file = EXCLUDED.source_file,
		section_title = EXCLUDED.section_title,
		section_level = EXCLUDED.section_level,
		chunk_index = EXCLUDED.chunk_index,
		embedding = EXCLUDED.embedding,
		updated_at = now()`

const vectorSearchSQL = `SELECT id, content, category,
		1 - (embedding <=> $1) AS similarity
	FROM knowledge_chunks
	WHERE embedding IS NOT NULL
	  AND 1 - (embedding <=> $1) > $2
	ORDER BY embedding <=> $1
	LIMIT $3`

const sampleSQL = `SELECT id, content, content_hash, token_count, category,
		COALESCE(subcategory, ''), source_file, chunk_index, embedding
	FROM knowledge_chunks
	WHERE embedding IS NOT NULL
	LIMIT $1`

// Store manages knowledge chunks backed by PostgreSQL + pgvector.
type Store struct {
	db     querier
	logger *slog.Logger
}

// NewStore creates a knowledge Store.
func NewStore(db querier, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

// UpsertByHash inserts chunks, updating any row whose content_hash
// already exists. Writes are idempotent: upserting identical content
// twice leaves exactly one stored record.
func (s *Store) UpsertByHash(ctx context.Context, chunks []Chunk) error {
	for i, chunk := range chunks {
		var subcategory *string
		if chunk.Subcategory != "" {
			subcategory = &chunk.Subcategory
		}
		var embedding *pgvector.Vector
		if len(chunk.Embedding) > 0 {
			vec := pgvector.NewVector(chunk.Embedding)
			embedding = &vec
		}

		_, err := s.db.Exec(ctx, upsertChunkSQL,
			chunk.Content, chunk.ContentHash, chunk.TokenCount,
			chunk.Category, subcategory, chunk.SourceFile,
			chunk.SectionTitle, chunk.SectionLevel, chunk.ChunkIndex,
			embedding,
		)
		if err != nil {
			return fmt.Errorf("upserting chunk %d/%d (hash %.12s): %w", i+1, len(chunks), chunk.ContentHash, err)
		}
	}

	s.logger.Debug("upserted chunks", "count", len(chunks))
	return nil
}

// VectorSearch runs native cosine similarity search in the store.
// Results are above threshold only, sorted descending by similarity.
func (s *Store) VectorSearch(ctx context.Context, embedding []float32, threshold float64, k int) ([]Match, error) {
	vec := pgvector.NewVector(embedding)

	rows, err := s.db.Query(ctx, vectorSearchSQL, vec, threshold, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Content, &m.Category, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading matches: %w", err)
	}
	return matches, nil
}

// Sample returns up to limit embedded chunks in the store's natural
// order. Used by the degraded client-side retrieval path.
func (s *Store) Sample(ctx context.Context, limit int) ([]Chunk, error) {
	rows, err := s.db.Query(ctx, sampleSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("sampling chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var vec pgvector.Vector
		if err := rows.Scan(&c.ID, &c.Content, &c.ContentHash, &c.TokenCount,
			&c.Category, &c.Subcategory, &c.SourceFile, &c.ChunkIndex, &vec); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Embedding = vec.Slice()
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunks: %w", err)
	}
	return chunks, nil
}

// Stats reports the chunk count, the per-category histogram, and token
// statistics for the stored knowledge base.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Categories: make(map[string]int)}

	row := s.db.QueryRow(ctx, `SELECT COUNT(*),
			COALESCE(MIN(token_count), 0),
			COALESCE(MAX(token_count), 0),
			COALESCE(AVG(token_count), 0),
			COUNT(embedding)
		FROM knowledge_chunks`)
	if err := row.Scan(&stats.ChunkCount, &stats.MinTokens, &stats.MaxTokens,
		&stats.AvgTokens, &stats.EmbeddedCount); err != nil {
		return Stats{}, fmt.Errorf("reading chunk stats: %w", err)
	}

	rows, err := s.db.Query(ctx, `SELECT category, COUNT(*)
		FROM knowledge_chunks GROUP BY category`)
	if err != nil {
		return Stats{}, fmt.Errorf("reading category histogram: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return Stats{}, fmt.Errorf("scanning category row: %w", err)
		}
		stats.Categories[category] = count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("reading categories: %w", err)
	}
	return stats, nil
}

// Reset deletes every stored chunk. Only an explicit full reset removes
// knowledge rows; normal operation never deletes.
func (s *Store) Reset(ctx context.Context) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM knowledge_chunks`)
	if err != nil {
		return fmt.Errorf("resetting knowledge base: %w", err)
	}
	s.logger.Info("knowledge base reset", "deleted", tag.RowsAffected())
	return nil
}
