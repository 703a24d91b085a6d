package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DefaultCacheTTL is how long a pairwise result stays valid unless the
// caller configures otherwise.
const DefaultCacheTTL = time.Hour

// cacheKeyPrefix namespaces all pairwise entries in the store.
const cacheKeyPrefix = "compatibility"

// Store is the key-value TTL backend behind the pair cache. Every
// method returns an explicit error so the cache can observe degraded
// mode instead of swallowing failures.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// RedisStore implements Store over go-redis with a per-operation
// timeout, so a slow backend cannot stall the scoring path.
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
}

func NewRedisStore(client *redis.Client, timeout time.Duration) *RedisStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RedisStore{client: client, timeout: timeout}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	value, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	deleted, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del: %w", err)
	}
	return int(deleted), nil
}

func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %q: %w", pattern, err)
	}
	return keys, nil
}

// CacheKey builds the symmetric pair key. The two ids are ordered
// lexicographically, so CacheKey(v, a, b) == CacheKey(v, b, a).
func CacheKey(version Version, userID1, userID2 string) string {
	minID, maxID := userID1, userID2
	if maxID < minID {
		minID, maxID = maxID, minID
	}
	return fmt.Sprintf("%s:%s:%s:%s", cacheKeyPrefix, version, minID, maxID)
}

// PairCache memoizes compatibility results by symmetric pair key. It
// is advisory: every operation degrades to a miss / failure when the
// backing store is unreachable, and the caller recomputes. A nil store
// disables the cache entirely.
type PairCache struct {
	store Store
	ttl   time.Duration
	log   *zap.Logger
}

func NewPairCache(store Store, ttl time.Duration, log *zap.Logger) *PairCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PairCache{store: store, ttl: ttl, log: log}
}

// Enabled reports whether a backing store is configured.
func (c *PairCache) Enabled() bool {
	return c != nil && c.store != nil
}

// Get returns the cached result for the pair, or ok=false on a miss,
// disabled cache or backend failure.
func (c *PairCache) Get(ctx context.Context, userID1, userID2 string, version Version) (*Result, bool) {
	if !c.Enabled() {
		return nil, false
	}

	key := CacheKey(version, userID1, userID2)
	raw, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache get failed, falling back to computation",
			zap.String("key", key), zap.Error(err))
		cacheOps.WithLabelValues("get", "error").Inc()
		return nil, false
	}
	if !found {
		cacheOps.WithLabelValues("get", "miss").Inc()
		return nil, false
	}

	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		c.log.Warn("cache entry is not a valid result, ignoring",
			zap.String("key", key), zap.Error(err))
		cacheOps.WithLabelValues("get", "error").Inc()
		return nil, false
	}
	cacheOps.WithLabelValues("get", "hit").Inc()
	return &result, true
}

// Set stores a result under the pair key with the configured TTL and
// reports whether the write succeeded.
func (c *PairCache) Set(ctx context.Context, userID1, userID2 string, version Version, result *Result) bool {
	if !c.Enabled() || result == nil {
		return false
	}

	raw, err := json.Marshal(result)
	if err != nil {
		c.log.Warn("failed to serialize result for cache", zap.Error(err))
		return false
	}

	key := CacheKey(version, userID1, userID2)
	if err := c.store.Set(ctx, key, string(raw), c.ttl); err != nil {
		c.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		cacheOps.WithLabelValues("set", "error").Inc()
		return false
	}
	cacheOps.WithLabelValues("set", "ok").Inc()
	return true
}

// Invalidate removes the cached entry for the pair and reports whether
// an entry was actually deleted.
func (c *PairCache) Invalidate(ctx context.Context, userID1, userID2 string, version Version) bool {
	if !c.Enabled() {
		return false
	}

	key := CacheKey(version, userID1, userID2)
	deleted, err := c.store.Del(ctx, key)
	if err != nil {
		c.log.Warn("cache invalidate failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return deleted > 0
}

// ClearForUser removes every cached entry mentioning the user across
// all algorithm versions. Typically called when a profile changes.
// Returns the number of entries removed; 0 on failure.
func (c *PairCache) ClearForUser(ctx context.Context, userID string) int {
	if !c.Enabled() || userID == "" {
		return 0
	}

	// Pair keys hold one id per colon-delimited segment; anchoring the
	// patterns on the delimiters keeps ids that share a prefix apart.
	patterns := []string{
		fmt.Sprintf("%s:*:%s:*", cacheKeyPrefix, userID),
		fmt.Sprintf("%s:*:*:%s", cacheKeyPrefix, userID),
	}

	seen := make(map[string]struct{})
	var keys []string
	for _, pattern := range patterns {
		found, err := c.store.Keys(ctx, pattern)
		if err != nil {
			c.log.Warn("cache scan failed during user invalidation",
				zap.String("userId", userID), zap.Error(err))
			return 0
		}
		for _, key := range found {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return 0
	}

	deleted, err := c.store.Del(ctx, keys...)
	if err != nil {
		c.log.Warn("cache delete failed during user invalidation",
			zap.String("userId", userID), zap.Error(err))
		return 0
	}
	c.log.Info("cleared cached compatibility entries for user",
		zap.String("userId", userID), zap.Int("deleted", deleted))
	return deleted
}
