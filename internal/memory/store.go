package memory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const upsertFactSQL = `INSERT INTO user_memory
	(user_id, fact_type, fact_key, fact_value, embedding, confidence_score)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (user_id, fact_key) DO UPDATE SET
		fact_type = EXCLUDED.fact_type,
		fact_value = EXCLUDED.fact_value,
		embedding = EXCLUDED.embedding,
		confidence_score = EXCLUDED.confidence_score,
		updated_at = now()`

const factsSQL = `SELECT id, user_id, fact_type, fact_key, fact_value,
		confidence_score, times_referenced, last_referenced_at,
		created_at, updated_at
	FROM user_memory
	WHERE user_id = $1
	ORDER BY last_referenced_at DESC
	LIMIT $2`

const touchFactsSQL = `UPDATE user_memory
	SET times_referenced = times_referenced + 1,
		last_referenced_at = now()
	WHERE id = ANY($1)`

const recordTurnSQL = `INSERT INTO conversations
	(user_id, user_message, bot_response)
	VALUES ($1, $2, $3)`

const recentTurnsSQL = `SELECT id, user_id, user_message, bot_response, created_at
	FROM conversations
	WHERE user_id = $1
	ORDER BY created_at DESC
	LIMIT $2`

// Store persists user facts and conversation history in PostgreSQL.
type Store struct {
	db     querier
	logger *slog.Logger
}

// NewStore creates a memory Store.
func NewStore(db querier, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

// UpsertFact stores a fact, replacing any existing fact with the same
// (user_id, fact_key).
func (s *Store) UpsertFact(ctx context.Context, fact Fact) error {
	if fact.UserID == "" || fact.FactKey == "" {
		return fmt.Errorf("user_id and fact_key are required")
	}
	if !ValidFactType(fact.FactType) {
		return fmt.Errorf("unknown fact type %q", fact.FactType)
	}
	var embedding *pgvector.Vector
	if len(fact.Embedding) > 0 {
		vec := pgvector.NewVector(fact.Embedding)
		embedding = &vec
	}
	_, err := s.db.Exec(ctx, upsertFactSQL,
		fact.UserID, fact.FactType, fact.FactKey, fact.FactValue, embedding, fact.Confidence)
	if err != nil {
		return fmt.Errorf("upserting fact %q: %w", fact.FactKey, err)
	}
	return nil
}

// Facts returns up to limit facts for a user, most recently referenced
// first.
func (s *Store) Facts(ctx context.Context, userID string, limit int) ([]Fact, error) {
	rows, err := s.db.Query(ctx, factsSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		if err := rows.Scan(&f.ID, &f.UserID, &f.FactType, &f.FactKey, &f.FactValue,
			&f.Confidence, &f.TimesReferenced, &f.LastReferencedAt,
			&f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning fact: %w", err)
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading facts: %w", err)
	}
	return facts, nil
}

// TouchFacts bumps the reference counter and recency timestamp of the
// given facts. Called after facts were actually used in a response.
func (s *Store) TouchFacts(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.Exec(ctx, touchFactsSQL, ids); err != nil {
		return fmt.Errorf("touching facts: %w", err)
	}
	return nil
}

// RecordTurn appends one completed exchange to the conversation log.
func (s *Store) RecordTurn(ctx context.Context, userID, userMessage, botResponse string) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}
	if _, err := s.db.Exec(ctx, recordTurnSQL, userID, userMessage, botResponse); err != nil {
		return fmt.Errorf("recording turn: %w", err)
	}
	return nil
}

// RecentTurns returns up to limit turns for a user, newest first.
func (s *Store) RecentTurns(ctx context.Context, userID string, limit int) ([]Turn, error) {
	rows, err := s.db.Query(ctx, recentTurnsSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.UserID, &t.UserMessage, &t.BotResponse, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading turns: %w", err)
	}
	return turns, nil
}
