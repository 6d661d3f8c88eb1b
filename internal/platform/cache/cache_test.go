package cache

import (
	"testing"
	"time"
)

func TestTTLGetReturnsStoredValue(t *testing.T) {
	c := NewTTL[int](time.Minute)
	c.Set("a", 42)

	got, ok := c.Get("a")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != 42 {
		t.Fatalf("unexpected value %d", got)
	}
}

func TestTTLExpiresEntries(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	c := NewTTL(time.Minute, WithClock[string](clock))
	c.Set("a", "value")

	now = now.Add(59 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected entry to be live before expiry")
	}

	now = now.Add(2 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected entry to expire")
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", c.Len())
	}
}

func TestTTLSetResetsLifetime(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	c := NewTTL(time.Minute, WithClock[string](clock))
	c.Set("a", "old")

	now = now.Add(45 * time.Second)
	c.Set("a", "new")

	now = now.Add(30 * time.Second)
	got, ok := c.Get("a")
	if !ok {
		t.Fatal("expected refreshed entry to be live")
	}
	if got != "new" {
		t.Fatalf("unexpected value %q", got)
	}
}

func TestTTLDelete(t *testing.T) {
	c := NewTTL[int](time.Minute)
	c.Set("a", 1)
	c.Delete("a")

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected entry to be deleted")
	}
}

func TestTTLDefaultLifetime(t *testing.T) {
	c := NewTTL[int](0)
	if c.ttl != DefaultTTL {
		t.Fatalf("expected default ttl, got %s", c.ttl)
	}
}
