package cache

import (
	"context"
	"testing"
	"time"
)

func TestTTLCacheExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache().WithClock(func() time.Time { return now })
	ctx := context.Background()

	if err := c.SetBytes(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if b, ok, _ := c.GetBytes(ctx, "k"); !ok || string(b) != "v" {
		t.Fatalf("expected hit, got %q %v", b, ok)
	}

	now = now.Add(time.Minute)
	if _, ok, _ := c.GetBytes(ctx, "k"); ok {
		t.Fatalf("expected entry to expire at ttl")
	}
}

func TestTTLCacheNoTTL(t *testing.T) {
	c := NewTTLCache()
	ctx := context.Background()
	_ = c.SetBytes(ctx, "k", []byte("v"), 0)
	if _, ok, _ := c.GetBytes(ctx, "k"); !ok {
		t.Fatalf("zero ttl entries should not expire")
	}
}
