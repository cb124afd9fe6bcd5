package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"math-rush-service/internal/domain"
)

// SessionBackend is the authoritative session store behind the cache.
type SessionBackend interface {
	CreateSession(ctx context.Context, username string) (string, error)
	RestoreSession(ctx context.Context, token string) (string, domain.UserStats, error)
}

// SessionCache is a cache-aside decorator over a session backend: restored
// sessions are kept in Redis with a TTL so hot reconnects skip the backing
// store. Stats carried by a cached entry may lag the store by at most the
// TTL; the board read path stays authoritative.
type SessionCache struct {
	client *redis.Client
	inner  SessionBackend
	ttl    time.Duration
}

type cachedSession struct {
	Username string           `json:"username"`
	Stats    domain.UserStats `json:"stats"`
}

func NewSessionCache(client *redis.Client, inner SessionBackend, ttl time.Duration) *SessionCache {
	return &SessionCache{client: client, inner: inner, ttl: ttl}
}

func (c *SessionCache) CreateSession(ctx context.Context, username string) (string, error) {
	token, err := c.inner.CreateSession(ctx, username)
	if err != nil {
		return "", err
	}
	// A fresh credential invalidates nothing: cache entries are keyed by
	// token and the old token simply ages out.
	return token, nil
}

func (c *SessionCache) RestoreSession(ctx context.Context, token string) (string, domain.UserStats, error) {
	if raw, err := c.client.Get(ctx, c.key(token)).Bytes(); err == nil {
		var cached cachedSession
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached.Username, cached.Stats, nil
		}
	}

	username, stats, err := c.inner.RestoreSession(ctx, token)
	if err != nil {
		return "", domain.UserStats{}, err
	}

	if raw, err := json.Marshal(cachedSession{Username: username, Stats: stats}); err == nil {
		// best-effort cache fill
		_ = c.client.Set(ctx, c.key(token), raw, c.ttl).Err()
	}
	return username, stats, nil
}

func (c *SessionCache) key(token string) string {
	return "session:" + token
}
