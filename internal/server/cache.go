package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotCache keeps the encoded ranked snapshot of each jam in redis for
// a short TTL and is invalidated on every mutation. Redis failures are
// treated as cache misses: the store stays the source of truth. A nil
// cache (redis not configured) disables caching entirely.
type SnapshotCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewSnapshotCache(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *SnapshotCache {
	return &SnapshotCache{rdb: rdb, ttl: ttl, logger: logger}
}

func (c *SnapshotCache) key(jamID string) string {
	return "jam:snapshot:" + jamID
}

func (c *SnapshotCache) Get(ctx context.Context, jamID string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	body, err := c.rdb.Get(ctx, c.key(jamID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("snapshot cache get failed", "jam_id", jamID, "error", err)
		}
		return nil, false
	}
	return body, true
}

func (c *SnapshotCache) Set(ctx context.Context, jamID string, body []byte) {
	if c == nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(jamID), body, c.ttl).Err(); err != nil {
		c.logger.Debug("snapshot cache set failed", "jam_id", jamID, "error", err)
	}
}

func (c *SnapshotCache) Invalidate(ctx context.Context, jamID string) {
	if c == nil {
		return
	}
	if err := c.rdb.Del(ctx, c.key(jamID)).Err(); err != nil {
		c.logger.Debug("snapshot cache invalidate failed", "jam_id", jamID, "error", err)
	}
}
