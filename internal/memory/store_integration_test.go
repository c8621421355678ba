//go:build integration
// +build integration

package memory_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/goleak"

	"github.com/atlascore/atlas/internal/log"
	"github.com/atlascore/atlas/internal/memory"
	"github.com/atlascore/atlas/internal/testutil"
)

// Run with: go test -tags=integration ./internal/memory/...

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func TestStore_FactLifecycle(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store, err := memory.NewStore(db.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	fact := memory.Fact{
		UserID:     "user-1",
		FactType:   memory.FactPreference,
		FactKey:    "preferred_region",
		FactValue:  "eu-west-1",
		Confidence: 0.9,
	}
	if err := store.UpsertFact(ctx, fact); err != nil {
		t.Fatalf("UpsertFact() error: %v", err)
	}

	// Same key replaces, never duplicates.
	fact.FactValue = "us-east-1"
	if err := store.UpsertFact(ctx, fact); err != nil {
		t.Fatalf("UpsertFact() second call error: %v", err)
	}

	facts, err := store.Facts(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("Facts() error: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("Facts() returned %d facts, want 1 (upsert must replace)", len(facts))
	}
	if facts[0].FactValue != "us-east-1" {
		t.Errorf("FactValue = %q, want replaced value", facts[0].FactValue)
	}

	if err := store.TouchFacts(ctx, []uuid.UUID{facts[0].ID}); err != nil {
		t.Fatalf("TouchFacts() error: %v", err)
	}
	touched, err := store.Facts(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("Facts() after touch error: %v", err)
	}
	if touched[0].TimesReferenced != 1 {
		t.Errorf("TimesReferenced = %d, want 1", touched[0].TimesReferenced)
	}
	if !touched[0].LastReferencedAt.After(facts[0].LastReferencedAt) {
		t.Error("LastReferencedAt not advanced by TouchFacts")
	}
}

func TestStore_FactsRecencyOrderAndLimit(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store, err := memory.NewStore(db.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	for i := 0; i < 5; i++ {
		fact := memory.Fact{
			UserID:    "user-1",
			FactType:  memory.FactInfrastructure,
			FactKey:   fmt.Sprintf("service_%d", i),
			FactValue: "in use",
		}
		if err := store.UpsertFact(ctx, fact); err != nil {
			t.Fatalf("UpsertFact(%d) error: %v", i, err)
		}
	}

	facts, err := store.Facts(ctx, "user-1", 3)
	if err != nil {
		t.Fatalf("Facts() error: %v", err)
	}
	if len(facts) != 3 {
		t.Fatalf("Facts() returned %d, want limit 3", len(facts))
	}
	for i := 1; i < len(facts); i++ {
		if facts[i].LastReferencedAt.After(facts[i-1].LastReferencedAt) {
			t.Error("facts not ordered most recently referenced first")
		}
	}

	// Unknown user sees nothing.
	other, err := store.Facts(ctx, "user-2", 10)
	if err != nil {
		t.Fatalf("Facts(user-2) error: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("Facts(user-2) returned %d facts, want 0", len(other))
	}
}

func TestStore_Turns(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store, err := memory.NewStore(db.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	for i := 0; i < 4; i++ {
		err := store.RecordTurn(ctx, "user-1",
			fmt.Sprintf("question %d", i), fmt.Sprintf("answer %d", i))
		if err != nil {
			t.Fatalf("RecordTurn(%d) error: %v", i, err)
		}
	}

	turns, err := store.RecentTurns(ctx, "user-1", 3)
	if err != nil {
		t.Fatalf("RecentTurns() error: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("RecentTurns() returned %d, want limit 3", len(turns))
	}
	for i := 1; i < len(turns); i++ {
		if turns[i].CreatedAt.After(turns[i-1].CreatedAt) {
			t.Error("turns not ordered newest first")
		}
	}

	if err := store.RecordTurn(ctx, "", "q", "a"); err == nil {
		t.Error("RecordTurn() with empty user expected error, got nil")
	}
}
