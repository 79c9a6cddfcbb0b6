package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	keyPrefix  = "transcript:"
	defaultTTL = 24 * time.Hour
)

// Entry is a cached transcript with the metadata needed to re-run
// summarization without touching the original media.
type Entry struct {
	Fingerprint     string    `json:"fingerprint"`
	Filename        string    `json:"filename"`
	DurationMinutes float64   `json:"duration_minutes"`
	Transcript      string    `json:"transcript"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// EntryMeta is the listing view of a cached transcript. The transcript body
// stays out of listings, it can run to tens of kilobytes.
type EntryMeta struct {
	Fingerprint     string    `json:"fingerprint"`
	Filename        string    `json:"filename"`
	DurationMinutes float64   `json:"duration_minutes"`
	TranscriptChars int       `json:"transcript_chars"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// TranscriptCache stores transcripts keyed by upload fingerprint so a failed
// summarization can be retried without re-transcribing.
type TranscriptCache interface {
	Put(ctx context.Context, entry Entry) error
	Get(ctx context.Context, fingerprint string) (*Entry, error)
	Delete(ctx context.Context, fingerprint string) (bool, error)
	Sweep(ctx context.Context) (int, error)
	ListLive(ctx context.Context) ([]EntryMeta, error)
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// NewTranscriptCache returns a Redis-backed transcript cache with a 24 hour
// entry lifetime.
func NewTranscriptCache(client *redis.Client, logger zerolog.Logger) TranscriptCache {
	return &redisCache{
		client: client,
		ttl:    defaultTTL,
		logger: logger.With().Str("service", "transcript_cache").Logger(),
		now:    time.Now,
	}
}

func (c *redisCache) key(fingerprint string) string {
	return keyPrefix + fingerprint
}

// Put stores the entry, stamping CreatedAt and ExpiresAt. The Redis TTL
// mirrors ExpiresAt so abandoned entries disappear even if Sweep never runs.
func (c *redisCache) Put(ctx context.Context, entry Entry) error {
	now := c.now()
	entry.CreatedAt = now
	entry.ExpiresAt = now.Add(c.ttl)

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := c.client.Set(ctx, c.key(entry.Fingerprint), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Get returns the entry for a fingerprint, or nil when absent. Expired and
// corrupt entries are deleted on read so the cache heals itself.
func (c *redisCache) Get(ctx context.Context, fingerprint string) (*Entry, error) {
	payload, err := c.client.Get(ctx, c.key(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		c.logger.Warn().Str("fingerprint", fingerprint).Err(err).Msg("dropping corrupt cache entry")
		c.client.Del(ctx, c.key(fingerprint))
		return nil, nil
	}
	if c.now().After(entry.ExpiresAt) {
		c.client.Del(ctx, c.key(fingerprint))
		return nil, nil
	}
	return &entry, nil
}

// Delete removes an entry, reporting whether one existed. Deleting an absent
// fingerprint is not an error.
func (c *redisCache) Delete(ctx context.Context, fingerprint string) (bool, error) {
	removed, err := c.client.Del(ctx, c.key(fingerprint)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return removed > 0, nil
}

// Sweep removes entries whose recorded expiry has passed and returns how many
// were dropped. Redis expires keys on its own; the sweep also catches entries
// whose payload outlived a clock adjustment or a TTL-less write.
func (c *redisCache) Sweep(ctx context.Context) (int, error) {
	removed := 0
	err := c.scan(ctx, func(key string, entry *Entry) error {
		if entry == nil || c.now().After(entry.ExpiresAt) {
			if err := c.client.Del(ctx, key).Err(); err != nil {
				return fmt.Errorf("failed to delete expired entry %s: %w", key, err)
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, err
	}
	return removed, nil
}

// ListLive returns metadata for all unexpired entries.
func (c *redisCache) ListLive(ctx context.Context) ([]EntryMeta, error) {
	metas := make([]EntryMeta, 0)
	err := c.scan(ctx, func(key string, entry *Entry) error {
		if entry == nil || c.now().After(entry.ExpiresAt) {
			return nil
		}
		metas = append(metas, EntryMeta{
			Fingerprint:     entry.Fingerprint,
			Filename:        entry.Filename,
			DurationMinutes: entry.DurationMinutes,
			TranscriptChars: len(entry.Transcript),
			CreatedAt:       entry.CreatedAt,
			ExpiresAt:       entry.ExpiresAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return metas, nil
}

// scan walks all cache keys, decoding each entry. Corrupt payloads are passed
// to fn as nil.
func (c *redisCache) scan(ctx context.Context, fn func(key string, entry *Entry) error) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		payload, err := c.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read cache entry %s: %w", key, err)
		}

		var entry Entry
		if err := json.Unmarshal(payload, &entry); err != nil {
			c.logger.Warn().Str("key", key).Err(err).Msg("corrupt cache entry during scan")
			if err := fn(key, nil); err != nil {
				return err
			}
			continue
		}
		if err := fn(key, &entry); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	return nil
}
