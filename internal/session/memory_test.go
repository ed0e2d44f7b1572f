package session

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheTTLAndGet(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cache.SetClock(func() time.Time { return now })

	sess := &ChatSession{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Metadata: Metadata{Phone: "628111", SessionID: "s1"},
	}
	if err := cache.Put("chat:628111::p::x", sess, time.Hour); err != nil {
		t.Fatalf("Failed to put session: %v", err)
	}

	ttl, err := cache.TTL(ctx, "chat:628111::p::x")
	if err != nil {
		t.Fatalf("Failed to read ttl: %v", err)
	}
	if ttl != time.Hour {
		t.Errorf("Expected ttl 1h, got %v", ttl)
	}

	got, err := cache.Get(ctx, "chat:628111::p::x")
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if got.Metadata.Phone != "628111" {
		t.Errorf("Expected phone 628111, got %s", got.Metadata.Phone)
	}

	// Advance past expiry.
	now = now.Add(2 * time.Hour)
	if _, err := cache.TTL(ctx, "chat:628111::p::x"); err == nil {
		t.Error("Expected not-found after expiry")
	}
}

func TestMemoryCacheMarkProcessed(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	sess := &ChatSession{Messages: []Message{{Role: "user", Content: "hi"}}}
	if err := cache.Put("chat:1::p::x", sess, time.Hour); err != nil {
		t.Fatalf("Failed to put session: %v", err)
	}

	if err := cache.MarkProcessed(ctx, "chat:1::p::x", 5*time.Minute); err != nil {
		t.Fatalf("Failed to mark processed: %v", err)
	}

	got, err := cache.Get(ctx, "chat:1::p::x")
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if !got.Metadata.Processed {
		t.Error("Expected session to be marked processed")
	}
	if got.Metadata.ProcessedAt == nil {
		t.Error("Expected processed_at to be set")
	}

	ttl, err := cache.TTL(ctx, "chat:1::p::x")
	if err != nil {
		t.Fatalf("Failed to read ttl: %v", err)
	}
	if ttl > 5*time.Minute {
		t.Errorf("Expected ttl shortened to <=5m, got %v", ttl)
	}
}

func TestMemoryCacheScanKeys(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	sess := &ChatSession{Messages: []Message{{Role: "user", Content: "hi"}}}
	for _, key := range []string{"chat:a::p::1", "chat:b::p::2", "other:c"} {
		if err := cache.Put(key, sess, time.Hour); err != nil {
			t.Fatalf("Failed to put %s: %v", key, err)
		}
	}

	keys, err := cache.ScanKeys(ctx, "chat:*", 10)
	if err != nil {
		t.Fatalf("Failed to scan: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("Expected 2 keys, got %d: %v", len(keys), keys)
	}

	limited, err := cache.ScanKeys(ctx, "chat:*", 1)
	if err != nil {
		t.Fatalf("Failed to scan with limit: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Expected scan limit to cap results, got %d", len(limited))
	}
}
