package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/MikeSquared-Agency/Consensus/internal/metrics"
	"github.com/MikeSquared-Agency/Consensus/internal/profile"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache is the key-value surface CachedStore needs. SetNX writes only when the
// key is absent and reports whether it did.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
}

// RedisCache adapts a go-redis client to Cache.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// CachedStore puts a read-through, write-through profile cache in front of
// another Store. Cache failures are logged and fall back to the inner store.
// Recommendations are not cached.
//
// Updates overwrite the cached entry; reads only fill an absent one. A read
// that loaded its row before a concurrent update committed therefore never
// replaces the newer entry the update wrote.
type CachedStore struct {
	Store
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedStore(inner Store, cache Cache, ttl time.Duration, logger *slog.Logger) *CachedStore {
	return &CachedStore{Store: inner, cache: cache, ttl: ttl, logger: logger}
}

// Close closes the inner store and, when it can be closed, the cache.
func (s *CachedStore) Close() error {
	err := s.Store.Close()
	if c, ok := s.cache.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}

func profileKey(userID string) string {
	return "consensus:profile:" + userID
}

func (s *CachedStore) GetProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	key := profileKey(userID)
	raw, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		p, decErr := decodeProfile(raw)
		if decErr == nil {
			metrics.CacheRequests.WithLabelValues(metrics.CacheHit).Inc()
			return p, nil
		}
		s.logger.Warn("discarding undecodable cached profile", "user_id", userID, "error", decErr)
		metrics.CacheRequests.WithLabelValues(metrics.CacheError).Inc()
		_ = s.cache.Del(ctx, key)
	case errors.Is(err, ErrCacheMiss):
		metrics.CacheRequests.WithLabelValues(metrics.CacheMiss).Inc()
	default:
		s.logger.Warn("profile cache read failed", "user_id", userID, "error", err)
		metrics.CacheRequests.WithLabelValues(metrics.CacheError).Inc()
	}

	p, err := s.Store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, userID, p)
	return p, nil
}

func (s *CachedStore) UpdateProfile(ctx context.Context, userID string, fn UpdateFn) (*profile.Profile, error) {
	p, err := s.Store.UpdateProfile(ctx, userID, fn)
	if err != nil {
		return nil, err
	}
	s.put(ctx, userID, p)
	return p, nil
}

func (s *CachedStore) DeleteProfile(ctx context.Context, userID string) error {
	if err := s.Store.DeleteProfile(ctx, userID); err != nil {
		return err
	}
	if err := s.cache.Del(ctx, profileKey(userID)); err != nil {
		s.logger.Warn("profile cache delete failed", "user_id", userID, "error", err)
	}
	return nil
}

// fill caches a profile loaded on a miss unless an entry appeared meanwhile.
func (s *CachedStore) fill(ctx context.Context, userID string, p *profile.Profile) {
	data, err := json.Marshal(p)
	if err == nil {
		_, err = s.cache.SetNX(ctx, profileKey(userID), data, s.ttl)
	}
	if err != nil {
		s.logger.Warn("profile cache fill failed", "user_id", userID, "error", err)
	}
}

func (s *CachedStore) put(ctx context.Context, userID string, p *profile.Profile) {
	key := profileKey(userID)
	data, err := json.Marshal(p)
	if err == nil {
		err = s.cache.Set(ctx, key, data, s.ttl)
	}
	if err != nil {
		s.logger.Warn("profile cache write failed", "user_id", userID, "error", err)
		// A stale entry would outlive the update.
		_ = s.cache.Del(ctx, key)
	}
}
