package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// DefaultCategory is assigned to chunks that match no category rule.
const DefaultCategory = "General Knowledge"

// Chunk is a bounded, categorized, content-addressed unit of document
// text. The chunker produces Chunks without an Embedding; the ingestion
// pipeline fills it in before upserting.
type Chunk struct {
	ID           uuid.UUID
	Content      string
	ContentHash  string // sha256 of Content; the dedup/upsert key
	TokenCount   int
	Category     string
	Subcategory  string // empty means none
	SourceFile   string
	SectionTitle string
	SectionLevel int
	ChunkIndex   int // document-order position across all sections
	Embedding    []float32
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Match is one vector-search result. Both the native and the fallback
// search paths return this shape; callers cannot tell which path served
// a request.
type Match struct {
	ID         uuid.UUID
	Content    string
	Category   string
	Similarity float64 // cosine similarity in [-1, 1]
}

// Stats summarizes the stored knowledge base.
type Stats struct {
	ChunkCount    int
	Categories    map[string]int
	MinTokens     int
	MaxTokens     int
	AvgTokens     float64
	EmbeddedCount int
}
