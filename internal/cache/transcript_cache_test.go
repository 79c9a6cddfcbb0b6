package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// These tests need a running Redis. They are skipped unless REDIS_ADDR is
// set, e.g. REDIS_ADDR=localhost:6379 go test ./internal/cache/...
func newIntegrationCache(t *testing.T) *redisCache {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping integration test")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("failed to ping redis: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return &redisCache{
		client: client,
		ttl:    defaultTTL,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
}

func testEntry() Entry {
	return Entry{
		Fingerprint:     uuid.NewString()[:16],
		Filename:        "meeting.mp4",
		DurationMinutes: 42.5,
		Transcript:      "we agreed to ship on friday",
	}
}

func TestCachePutGetRoundTrip(t *testing.T) {
	c := newIntegrationCache(t)
	ctx := context.Background()

	entry := testEntry()
	if err := c.Put(ctx, entry); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	t.Cleanup(func() { c.Delete(ctx, entry.Fingerprint) })

	got, err := c.Get(ctx, entry.Fingerprint)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a cache hit")
	}
	if got.Transcript != entry.Transcript {
		t.Errorf("transcript mismatch: %q", got.Transcript)
	}
	if got.ExpiresAt.Sub(got.CreatedAt) != defaultTTL {
		t.Errorf("unexpected lifetime: %v", got.ExpiresAt.Sub(got.CreatedAt))
	}
}

func TestCacheGetAbsent(t *testing.T) {
	c := newIntegrationCache(t)

	got, err := c.Get(context.Background(), "0000000000000000")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected a miss, got %+v", got)
	}
}

func TestCacheGetDeletesExpired(t *testing.T) {
	c := newIntegrationCache(t)
	ctx := context.Background()

	entry := testEntry()
	if err := c.Put(ctx, entry); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	t.Cleanup(func() { c.Delete(ctx, entry.Fingerprint) })

	// Shift the clock past the recorded expiry.
	c.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

	got, err := c.Get(ctx, entry.Fingerprint)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != nil {
		t.Fatal("expired entry should read as a miss")
	}

	c.now = time.Now
	if got, _ := c.Get(ctx, entry.Fingerprint); got != nil {
		t.Error("expired entry should have been deleted on read")
	}
}

func TestCacheGetLiveAtExactExpiry(t *testing.T) {
	c := newIntegrationCache(t)
	ctx := context.Background()

	entry := testEntry()
	if err := c.Put(ctx, entry); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	t.Cleanup(func() { c.Delete(ctx, entry.Fingerprint) })

	stored, err := c.Get(ctx, entry.Fingerprint)
	if err != nil || stored == nil {
		t.Fatalf("expected a hit before expiry: entry=%v err=%v", stored, err)
	}

	// The lifetime is inclusive: a read at exactly ExpiresAt still hits.
	c.now = func() time.Time { return stored.ExpiresAt }
	got, err := c.Get(ctx, entry.Fingerprint)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil {
		t.Fatal("entry read at its exact expiry instant should still be live")
	}

	c.now = func() time.Time { return stored.ExpiresAt.Add(time.Second) }
	if got, _ := c.Get(ctx, entry.Fingerprint); got != nil {
		t.Error("entry read past its expiry should be a miss")
	}
}

func TestCacheGetDeletesCorrupt(t *testing.T) {
	c := newIntegrationCache(t)
	ctx := context.Background()

	fp := uuid.NewString()[:16]
	if err := c.client.Set(ctx, keyPrefix+fp, "{not json", time.Minute).Err(); err != nil {
		t.Fatalf("failed to plant corrupt entry: %v", err)
	}

	got, err := c.Get(ctx, fp)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != nil {
		t.Fatal("corrupt entry should read as a miss")
	}
	if exists, _ := c.client.Exists(ctx, keyPrefix+fp).Result(); exists != 0 {
		t.Error("corrupt entry should have been deleted")
	}
}

func TestCacheDeleteIsIdempotent(t *testing.T) {
	c := newIntegrationCache(t)
	ctx := context.Background()

	entry := testEntry()
	if err := c.Put(ctx, entry); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	removed, err := c.Delete(ctx, entry.Fingerprint)
	if err != nil || !removed {
		t.Fatalf("first delete: removed=%v err=%v", removed, err)
	}
	removed, err = c.Delete(ctx, entry.Fingerprint)
	if err != nil {
		t.Fatalf("second delete failed: %v", err)
	}
	if removed {
		t.Error("second delete should report nothing removed")
	}
}

func TestCacheSweepAndListLive(t *testing.T) {
	c := newIntegrationCache(t)
	ctx := context.Background()

	live := testEntry()
	if err := c.Put(ctx, live); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	t.Cleanup(func() { c.Delete(ctx, live.Fingerprint) })

	stale := testEntry()
	payload := `{"fingerprint":"` + stale.Fingerprint + `","filename":"old.mp3","expires_at":"2020-01-01T00:00:00Z","created_at":"2019-12-31T00:00:00Z"}`
	if err := c.client.Set(ctx, keyPrefix+stale.Fingerprint, payload, time.Minute).Err(); err != nil {
		t.Fatalf("failed to plant stale entry: %v", err)
	}

	removed, err := c.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if removed < 1 {
		t.Errorf("expected at least one swept entry, got %d", removed)
	}

	metas, err := c.ListLive(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	found := false
	for _, m := range metas {
		if m.Fingerprint == stale.Fingerprint {
			t.Error("swept entry should not be listed")
		}
		if m.Fingerprint == live.Fingerprint {
			found = true
			if m.TranscriptChars != len(live.Transcript) {
				t.Errorf("unexpected transcript length: %d", m.TranscriptChars)
			}
		}
	}
	if !found {
		t.Error("live entry should be listed")
	}
}
