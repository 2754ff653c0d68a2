package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opencat-io/opencat/internal/shared/logger"
)

// CachedEntitlement is one entry of a cached resolution.
type CachedEntitlement struct {
	Identifier string     `json:"identifier"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// CachedResolution represents a cached entitlement resolution for a subscriber.
type CachedResolution struct {
	Entitlements []CachedEntitlement `json:"entitlements"`
	NextChangeAt *time.Time          `json:"next_change_at,omitempty"`
	ComputedAt   time.Time           `json:"computed_at"`
}

// EntitlementCache defines the interface for caching resolved entitlements.
// Implementations must be safe for concurrent use.
type EntitlementCache interface {
	GetResolution(ctx context.Context, subscriberID uint) (*CachedResolution, error)
	SetResolution(ctx context.Context, subscriberID uint, res *CachedResolution) error
	InvalidateResolution(ctx context.Context, subscriberID uint) error

	// IndexNextChange records the next moment the subscriber's entitlement set
	// changes on its own (an expiry). The expiry sweep consumes this index.
	IndexNextChange(ctx context.Context, subscriberID uint, at time.Time) error
	// PopDueSubscribers returns and removes subscribers whose indexed next
	// change is at or before asOf.
	PopDueSubscribers(ctx context.Context, asOf time.Time, limit int) ([]uint, error)
}

const (
	resolutionKeyPrefix = "subscriber:entitlements:"
	nextChangeIndexKey  = "subscriber:next_change"
	baseResolutionTTL   = 10 * time.Minute
	resolutionTTLJitter = 5 * time.Minute // TTL range: 10-15 min (anti-stampede)
)

// RedisEntitlementCache implements EntitlementCache using Redis.
type RedisEntitlementCache struct {
	client *redis.Client
	logger logger.Interface
}

// NewRedisEntitlementCache creates a new Redis-based entitlement cache
func NewRedisEntitlementCache(client *redis.Client, logger logger.Interface) *RedisEntitlementCache {
	return &RedisEntitlementCache{
		client: client,
		logger: logger,
	}
}

func (c *RedisEntitlementCache) key(subscriberID uint) string {
	return fmt.Sprintf("%s%d", resolutionKeyPrefix, subscriberID)
}

// GetResolution retrieves a cached resolution. A nil result is a cache miss.
func (c *RedisEntitlementCache) GetResolution(ctx context.Context, subscriberID uint) (*CachedResolution, error) {
	raw, err := c.client.Get(ctx, c.key(subscriberID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resolution from cache: %w", err)
	}

	var res CachedResolution
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, fmt.Errorf("failed to decode cached resolution: %w", err)
	}

	return &res, nil
}

// SetResolution stores a resolution. The TTL never reaches past the
// resolution's own next change, so a stale set is never served.
func (c *RedisEntitlementCache) SetResolution(ctx context.Context, subscriberID uint, res *CachedResolution) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode resolution: %w", err)
	}

	ttl := resolutionTTLWithJitter()
	if res.NextChangeAt != nil {
		if untilChange := time.Until(*res.NextChangeAt); untilChange < ttl {
			ttl = untilChange
		}
	}
	if ttl <= 0 {
		// Already at or past the next change; nothing worth caching.
		return nil
	}

	if err := c.client.Set(ctx, c.key(subscriberID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set resolution in cache: %w", err)
	}

	c.logger.Debugw("entitlement resolution cached",
		"subscriber_id", subscriberID,
		"entitlements", len(res.Entitlements),
		"ttl", ttl,
	)

	return nil
}

// InvalidateResolution removes a cached resolution after a ledger write.
func (c *RedisEntitlementCache) InvalidateResolution(ctx context.Context, subscriberID uint) error {
	if err := c.client.Del(ctx, c.key(subscriberID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate resolution cache: %w", err)
	}

	c.logger.Debugw("entitlement resolution cache invalidated",
		"subscriber_id", subscriberID,
	)

	return nil
}

// IndexNextChange records the subscriber in the next-change sorted set,
// scored by the unix time of the change.
func (c *RedisEntitlementCache) IndexNextChange(ctx context.Context, subscriberID uint, at time.Time) error {
	member := strconv.FormatUint(uint64(subscriberID), 10)
	if err := c.client.ZAdd(ctx, nextChangeIndexKey, redis.Z{
		Score:  float64(at.Unix()),
		Member: member,
	}).Err(); err != nil {
		return fmt.Errorf("failed to index next change: %w", err)
	}

	return nil
}

// PopDueSubscribers returns subscribers whose indexed next change has passed
// and removes them from the index. The sweep re-indexes any that still have a
// future change after recomputation.
func (c *RedisEntitlementCache) PopDueSubscribers(ctx context.Context, asOf time.Time, limit int) ([]uint, error) {
	members, err := c.client.ZRangeByScore(ctx, nextChangeIndexKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(asOf.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query next change index: %w", err)
	}

	if len(members) == 0 {
		return nil, nil
	}

	removal := make([]interface{}, len(members))
	ids := make([]uint, 0, len(members))
	for i, m := range members {
		removal[i] = m
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			c.logger.Warnw("skipping malformed next change index member", "member", m)
			continue
		}
		ids = append(ids, uint(id))
	}

	if err := c.client.ZRem(ctx, nextChangeIndexKey, removal...).Err(); err != nil {
		return nil, fmt.Errorf("failed to trim next change index: %w", err)
	}

	return ids, nil
}

// resolutionTTLWithJitter returns a randomized TTL to prevent cache stampede.
func resolutionTTLWithJitter() time.Duration {
	jitter := time.Duration(rand.Int64N(int64(resolutionTTLJitter)))
	return baseResolutionTTL + jitter
}
