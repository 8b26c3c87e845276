package cache

import (
	"testing"
	"time"
)

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c := New[string](0, 50*time.Millisecond)

	c.Set(InventoryKey(4), "pantry")

	if v, ok := c.Get("inv:4"); !ok || v != "pantry" {
		t.Fatalf("expected hit, got %q %v", v, ok)
	}

	time.Sleep(120 * time.Millisecond)

	if _, ok := c.Get("inv:4"); ok {
		t.Fatalf("expected miss after ttl")
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	// touch a so b is the oldest
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a kept, got %d %v", v, ok)
	}
}

func TestCache_DeleteAndClear(t *testing.T) {
	c := New[int](0, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a deleted")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache")
	}
}
