// Package cache puts Redis in front of the admin store for hot lookups.
//
// Token digests are cached both ways: "1" for a revoked token until it
// expires and "0" for a token the store does not know, for MissTTL only.
// Add overwrites a cached miss, so revocations made through a BlacklistCache
// are visible at once. A process that writes to the store directly can be
// masked for up to MissTTL.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"crudadmin/internal/logger"
	"crudadmin/internal/services"
)

const blacklistKeyPrefix = "crudadmin:blacklist:"

// MissTTL bounds how long a negative Contains answer is served from Redis.
const MissTTL = 30 * time.Second

// hitTTL is used when a store hit is cached without its real expiry.
const hitTTL = time.Hour

const (
	revoked    = "1"
	notRevoked = "0"
)

// BlacklistCache is a read-through Redis cache over a BlacklistStore. The
// wrapped store stays the source of truth; Redis failures fall back to it.
type BlacklistCache struct {
	client  *redis.Client
	inner   services.BlacklistStore
	missTTL time.Duration
}

// NewClient connects to Redis and pings it once.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// NewBlacklistCache wraps inner with a Redis cache.
func NewBlacklistCache(client *redis.Client, inner services.BlacklistStore) *BlacklistCache {
	return &BlacklistCache{client: client, inner: inner, missTTL: MissTTL}
}

func blacklistKey(tokenHash string) string {
	return blacklistKeyPrefix + tokenHash
}

// Add writes through to the store, then caches the entry until the token
// expires, replacing any cached miss.
func (c *BlacklistCache) Add(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	if err := c.inner.Add(ctx, tokenHash, expiresAt); err != nil {
		c.forget(ctx, tokenHash)
		return err
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		c.forget(ctx, tokenHash)
		return nil
	}
	c.set(ctx, tokenHash, revoked, ttl)
	return nil
}

// Contains answers from Redis when the digest is cached and otherwise asks
// the store, caching the answer.
func (c *BlacklistCache) Contains(ctx context.Context, tokenHash string) (bool, error) {
	v, err := c.client.Get(ctx, blacklistKey(tokenHash)).Result()
	switch {
	case err == nil && v == revoked:
		return true, nil
	case err == nil && v == notRevoked:
		return false, nil
	case err != nil && !errors.Is(err, redis.Nil):
		logger.Get().Warnw("blacklist cache lookup failed", "error", err)
	}

	found, err := c.inner.Contains(ctx, tokenHash)
	if err != nil {
		return false, err
	}
	if found {
		// TTL unknown here; the store keeps the real expiry.
		c.set(ctx, tokenHash, revoked, hitTTL)
	} else {
		c.set(ctx, tokenHash, notRevoked, c.missTTL)
	}
	return found, nil
}

// PurgeExpired delegates to the store. Redis keys expire on their own.
func (c *BlacklistCache) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	return c.inner.PurgeExpired(ctx, before)
}

func (c *BlacklistCache) set(ctx context.Context, tokenHash, value string, ttl time.Duration) {
	if err := c.client.Set(ctx, blacklistKey(tokenHash), value, ttl).Err(); err != nil {
		logger.Get().Warnw("failed to cache blacklist entry", "error", err)
	}
}

// forget drops a cached answer so the next lookup asks the store.
func (c *BlacklistCache) forget(ctx context.Context, tokenHash string) {
	if err := c.client.Del(ctx, blacklistKey(tokenHash)).Err(); err != nil {
		logger.Get().Warnw("failed to drop blacklist entry", "error", err)
	}
}
