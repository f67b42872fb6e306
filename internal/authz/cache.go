package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss signals that no valid entry exists for the key. Callers must
// recalculate; the cache never answers "empty" for an absent entry.
var ErrCacheMiss = errors.New("authz: cache miss")

// Cache stores calculated effective permission sets per (user, context).
//
// Each user has a generation counter; Invalidate bumps it, which orphans
// every entry written under earlier generations in one step. Readers resolve
// the generation before looking up an entry, and writers store under the
// generation captured before calculation started, so an entry computed from
// pre-invalidation state can never be served after the invalidation
// completes. The TTL is a safety net bounding staleness should an
// invalidation signal ever be missed, not the primary consistency mechanism.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs the permission cache. TTL must be positive.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

type cacheEntry struct {
	Permissions  []EffectivePermission `json:"permissions"`
	CalculatedAt time.Time             `json:"calculated_at"`
}

func generationKey(userID uuid.UUID) string {
	return "authz:gen:" + userID.String()
}

func entryKey(userID uuid.UUID, contextLabel string, gen int64) string {
	return fmt.Sprintf("authz:eff:%s:%s:g%d", userID, contextLabel, gen)
}

// Generation returns the user's current cache generation, initialising it to
// 1 when absent.
func (c *Cache) Generation(ctx context.Context, userID uuid.UUID) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	key := generationKey(userID)
	gen, err := c.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, err
	}
	return gen, nil
}

// Get returns the cached effective set for (user, context) under the given
// generation, or ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, userID uuid.UUID, contextLabel string, gen int64) ([]EffectivePermission, error) {
	if c == nil || c.client == nil {
		return nil, ErrCacheMiss
	}
	payload, err := c.client.Get(ctx, entryKey(userID, contextLabel, gen)).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var entry cacheEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, ErrCacheMiss
	}
	return entry.Permissions, nil
}

// Put stores the effective set under the generation the caller captured
// before it started calculating. If the user was invalidated meanwhile the
// entry lands under a dead generation and is never read.
func (c *Cache) Put(ctx context.Context, userID uuid.UUID, contextLabel string, gen int64, permissions []EffectivePermission) error {
	if c == nil || c.client == nil {
		return nil
	}
	entry := cacheEntry{Permissions: permissions, CalculatedAt: time.Now().UTC()}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, entryKey(userID, contextLabel, gen), payload, c.ttl).Err()
}

// Invalidate removes every context entry for the user by bumping the
// generation counter. Idempotent and safe for users with no cached entries;
// orphaned entries expire via TTL.
func (c *Cache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, generationKey(userID)).Err()
}
