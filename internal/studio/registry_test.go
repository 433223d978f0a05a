package studio

import (
	"context"
	"errors"
	"testing"
	"time"

	"headshot/internal/domain"
)

func TestRegistryOpenAndGet(t *testing.T) {
	unlocks := &fakeUnlocks{stored: map[string][]string{"known": {"tech"}}}
	r := NewRegistry(Deps{Editor: &fakeEditor{}, Unlocks: unlocks}, time.Hour)
	ctx := context.Background()

	fresh, err := r.Open(ctx, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if fresh.ID() == "" {
		t.Fatal("fresh session has no id")
	}

	known, err := r.Open(ctx, "known")
	if err != nil {
		t.Fatalf("Open(known): %v", err)
	}
	if !known.Unlocked("tech") {
		t.Fatal("unlocks not reloaded for known id")
	}
	again, err := r.Open(ctx, "known")
	if err != nil || again != known {
		t.Fatalf("Open(known) again = %p, %v; want same session", again, err)
	}

	if _, err := r.Get("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get(missing) err = %v", err)
	}
	if !r.Close("known") || r.Close("known") {
		t.Fatal("Close did not report removal once")
	}
}

func TestRegistrySweep(t *testing.T) {
	r := NewRegistry(Deps{Editor: &fakeEditor{}}, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := r.Open(ctx, "old"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	busy, err := r.Open(ctx, "busy")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	busy.mu.Lock()
	busy.batching = true
	busy.mu.Unlock()

	now = now.Add(2 * time.Minute)
	if _, err := r.Open(ctx, "recent"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if n := r.Sweep(); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}
	if _, err := r.Get("old"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatal("idle session not evicted")
	}
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
}
