package counter

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_IncrBy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	val, err := store.IncrBy(ctx, "calls", 1, 0)
	if err != nil {
		t.Fatalf("IncrBy failed: %v", err)
	}
	if val != 1 {
		t.Errorf("Expected 1, got %d", val)
	}

	val, _ = store.IncrBy(ctx, "calls", 4, 0)
	if val != 5 {
		t.Errorf("Expected 5, got %d", val)
	}

	got, err := store.GetInt(ctx, "calls")
	if err != nil {
		t.Fatalf("GetInt failed: %v", err)
	}
	if got != 5 {
		t.Errorf("Expected 5, got %d", got)
	}
}

func TestMemoryStore_IncrByFloat(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	val, err := store.IncrByFloat(ctx, "spend", 0.25, 0)
	if err != nil {
		t.Fatalf("IncrByFloat failed: %v", err)
	}
	if val != 0.25 {
		t.Errorf("Expected 0.25, got %f", val)
	}

	val, _ = store.IncrByFloat(ctx, "spend", 0.5, 0)
	if val != 0.75 {
		t.Errorf("Expected 0.75, got %f", val)
	}
}

func TestMemoryStore_MissingKeys(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if val, _ := store.GetInt(ctx, "nope"); val != 0 {
		t.Errorf("GetInt on missing key = %d, want 0", val)
	}
	if val, _ := store.GetFloat(ctx, "nope"); val != 0 {
		t.Errorf("GetFloat on missing key = %f, want 0", val)
	}
	if _, ok, _ := store.Get(ctx, "nope"); ok {
		t.Error("Get on missing key reported existence")
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStoreWithClock(func() time.Time { return now })
	ctx := context.Background()

	store.IncrBy(ctx, "window", 3, 60*time.Second)

	// Later increments must not extend the original TTL.
	now = now.Add(30 * time.Second)
	store.IncrBy(ctx, "window", 1, 60*time.Second)

	if val, _ := store.GetInt(ctx, "window"); val != 4 {
		t.Errorf("Expected 4 before expiry, got %d", val)
	}

	now = now.Add(31 * time.Second)
	if val, _ := store.GetInt(ctx, "window"); val != 0 {
		t.Errorf("Expected 0 after expiry, got %d", val)
	}

	// A fresh increment starts a new window.
	val, _ := store.IncrBy(ctx, "window", 1, 60*time.Second)
	if val != 1 {
		t.Errorf("Expected 1 in new window, got %d", val)
	}
}

func TestMemoryStore_SetGetDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Set(ctx, "state", "open", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	val, ok, err := store.Get(ctx, "state")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || val != "open" {
		t.Errorf("Get = (%q, %v), want (open, true)", val, ok)
	}

	if err := store.Set(ctx, "opened_at", "1748779200", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	stamp, err := store.GetInt(ctx, "opened_at")
	if err != nil {
		t.Fatalf("GetInt on string value failed: %v", err)
	}
	if stamp != 1748779200 {
		t.Errorf("Expected 1748779200, got %d", stamp)
	}

	if err := store.Delete(ctx, "state", "opened_at"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "state"); ok {
		t.Error("state survived Delete")
	}
}

func TestMemoryStore_Concurrency(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.IncrBy(ctx, "shared", 1, 0)
			store.IncrByFloat(ctx, "shared_spend", 0.01, 0)
			store.GetInt(ctx, "shared")
		}()
	}
	wg.Wait()

	val, _ := store.GetInt(ctx, "shared")
	if val != 100 {
		t.Errorf("Expected 100 increments, got %d", val)
	}
}
