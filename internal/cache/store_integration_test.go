//go:build integration
// +build integration

package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/atlascore/atlas/internal/cache"
	"github.com/atlascore/atlas/internal/log"
	"github.com/atlascore/atlas/internal/testutil"
)

// Run with: go test -tags=integration ./internal/cache/...

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func TestSQLStore_RoundTrip(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store, err := cache.NewSQLStore(db.Pool)
	if err != nil {
		t.Fatalf("NewSQLStore() error: %v", err)
	}
	manager, err := cache.NewManager(store, cache.Config{TTL: time.Hour}, log.NewNop())
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}

	manager.Put(ctx, "What is RDS?", []float32{1, 0, 0}, "managed relational database", "en")

	got, err := manager.Get(ctx, "hello, what is rds?")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got != "managed relational database" {
		t.Errorf("Get() = %q, want stored response", got)
	}

	// Hit count persisted by the read.
	entry, err := store.Lookup(ctx, cache.Key("what is rds?", cache.DefaultGreetings()), time.Now())
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if entry.HitCount != 1 {
		t.Errorf("HitCount = %d, want 1", entry.HitCount)
	}

	if _, err := manager.Get(ctx, "something never cached"); !errors.Is(err, cache.ErrMiss) {
		t.Errorf("Get(uncached) = %v, want ErrMiss", err)
	}
}

func TestSQLStore_Sweep(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store, err := cache.NewSQLStore(db.Pool)
	if err != nil {
		t.Fatalf("NewSQLStore() error: %v", err)
	}

	greetings := cache.DefaultGreetings()
	stale := cache.Entry{
		QueryHash:       cache.Key("stale query", greetings),
		NormalizedQuery: cache.Normalize("stale query", greetings),
		OriginalQuery:   "stale query",
		Response:        "old answer",
		Language:        "en",
		ExpiresAt:       time.Now().Add(-time.Minute),
	}
	fresh := stale
	fresh.QueryHash = cache.Key("fresh query", greetings)
	fresh.OriginalQuery = "fresh query"
	fresh.ExpiresAt = time.Now().Add(time.Hour)

	for _, e := range []cache.Entry{stale, fresh} {
		if err := store.Upsert(ctx, e); err != nil {
			t.Fatalf("Upsert() error: %v", err)
		}
	}

	manager, err := cache.NewManager(store, cache.Config{TTL: time.Hour}, log.NewNop())
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	deleted, err := manager.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired() error: %v", err)
	}
	if deleted != 1 {
		t.Errorf("SweepExpired() = %d, want 1", deleted)
	}

	if _, err := store.Lookup(ctx, fresh.QueryHash, time.Now()); err != nil {
		t.Errorf("Lookup(fresh) after sweep error: %v", err)
	}
	if _, err := store.Lookup(ctx, stale.QueryHash, time.Now()); !errors.Is(err, cache.ErrMiss) {
		t.Errorf("Lookup(stale) after sweep = %v, want ErrMiss", err)
	}
}
