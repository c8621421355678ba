//go:build integration
// +build integration

package knowledge_test

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/goleak"

	"github.com/atlascore/atlas/internal/knowledge"
	"github.com/atlascore/atlas/internal/log"
	"github.com/atlascore/atlas/internal/testutil"
)

// Run with: go test -tags=integration ./internal/knowledge/...

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func testVector(seed float32) []float32 {
	vec := make([]float32, 768)
	vec[0] = seed
	vec[1] = 1
	return vec
}

func testChunk(i int, content string) knowledge.Chunk {
	return knowledge.Chunk{
		Content:      content,
		ContentHash:  fmt.Sprintf("hash-%03d", i),
		TokenCount:   10 + i,
		Category:     "AWS Cloud",
		SourceFile:   "compute.md",
		SectionTitle: "EC2",
		SectionLevel: 1,
		ChunkIndex:   i,
		Embedding:    testVector(float32(i)),
	}
}

func TestStore_UpsertAndSearch(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store, err := knowledge.NewStore(db.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	chunks := []knowledge.Chunk{
		testChunk(0, "EC2 instances come in families."),
		testChunk(1, "S3 stores objects in buckets."),
	}
	if err := store.UpsertByHash(ctx, chunks); err != nil {
		t.Fatalf("UpsertByHash() error: %v", err)
	}

	// Re-upserting the same hashes must not add rows.
	chunks[0].Content = "EC2 instances come in many families."
	if err := store.UpsertByHash(ctx, chunks); err != nil {
		t.Fatalf("UpsertByHash() second call error: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.ChunkCount != 2 {
		t.Errorf("ChunkCount = %d, want 2 (upsert must dedup)", stats.ChunkCount)
	}
	if stats.EmbeddedCount != 2 {
		t.Errorf("EmbeddedCount = %d, want 2", stats.EmbeddedCount)
	}
	if stats.Categories["AWS Cloud"] != 2 {
		t.Errorf("Categories = %v, want AWS Cloud: 2", stats.Categories)
	}

	matches, err := store.VectorSearch(ctx, testVector(0), 0.5, 5)
	if err != nil {
		t.Fatalf("VectorSearch() error: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("VectorSearch() returned no matches")
	}
	if matches[0].Content != "EC2 instances come in many families." {
		t.Errorf("best match = %q, want the updated EC2 chunk", matches[0].Content)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Similarity > matches[i-1].Similarity {
			t.Error("matches not sorted by similarity descending")
		}
	}
}

func TestStore_SampleAndReset(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store, err := knowledge.NewStore(db.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	var chunks []knowledge.Chunk
	for i := 0; i < 5; i++ {
		chunks = append(chunks, testChunk(i, fmt.Sprintf("chunk %d", i)))
	}
	if err := store.UpsertByHash(ctx, chunks); err != nil {
		t.Fatalf("UpsertByHash() error: %v", err)
	}

	sample, err := store.Sample(ctx, 3)
	if err != nil {
		t.Fatalf("Sample() error: %v", err)
	}
	if len(sample) != 3 {
		t.Errorf("Sample(3) returned %d chunks, want 3", len(sample))
	}
	for _, c := range sample {
		if len(c.Embedding) != 768 {
			t.Errorf("sampled embedding dimension = %d, want 768", len(c.Embedding))
		}
	}

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("Reset() error: %v", err)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.ChunkCount != 0 {
		t.Errorf("ChunkCount after Reset = %d, want 0", stats.ChunkCount)
	}
}
