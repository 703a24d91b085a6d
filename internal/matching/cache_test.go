package matching

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store for cache tests. TTLs are recorded
// but never enforced.
type memStore struct {
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newMemStore() *memStore {
	return &memStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *memStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.err != nil {
		return "", false, s.err
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if s.err != nil {
		return s.err
	}
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}

func (s *memStore) Del(ctx context.Context, keys ...string) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	deleted := 0
	for _, k := range keys {
		if _, ok := s.data[k]; ok {
			delete(s.data, k)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	// Glob support limited to literal segments separated by *, like
	// the anchored prefix:*:id:* patterns the cache uses.
	parts := strings.Split(pattern, "*")
	var keys []string
	for k := range s.data {
		if matchesParts(k, parts) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func matchesParts(s string, parts []string) bool {
	if len(parts) == 0 {
		return true
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	for i, p := range parts[1:] {
		if p == "" {
			continue
		}
		if i == len(parts)-2 {
			// Pattern does not end with *; the last literal must
			// close out the string.
			return strings.HasSuffix(s, p)
		}
		idx := strings.Index(s, p)
		if idx < 0 {
			return false
		}
		s = s[idx+len(p):]
	}
	return true
}

func TestCacheKeySymmetric(t *testing.T) {
	assert.Equal(t,
		CacheKey(VersionBasic, "user-a", "user-b"),
		CacheKey(VersionBasic, "user-b", "user-a"))

	assert.Equal(t, "compatibility:v1:a:b", CacheKey(VersionBasic, "b", "a"))
}

func TestCacheKeyVersioned(t *testing.T) {
	assert.NotEqual(t,
		CacheKey(VersionBasic, "a", "b"),
		CacheKey(VersionAdvanced, "a", "b"))
}

func TestPairCacheRoundTrip(t *testing.T) {
	store := newMemStore()
	cache := NewPairCache(store, time.Minute, nil)
	ctx := context.Background()

	result := &Result{
		Score:           87.5,
		Version:         VersionBasic,
		SharedInterests: []string{"reading"},
		Reasons:         []string{"Good personality match"},
	}

	require.True(t, cache.Set(ctx, "a", "b", VersionBasic, result))
	assert.Equal(t, time.Minute, store.ttls[CacheKey(VersionBasic, "a", "b")])

	// Reversed ids hit the same entry.
	got, ok := cache.Get(ctx, "b", "a", VersionBasic)
	require.True(t, ok)
	assert.Equal(t, result.Score, got.Score)
	assert.Equal(t, result.SharedInterests, got.SharedInterests)

	_, ok = cache.Get(ctx, "a", "b", VersionAdvanced)
	assert.False(t, ok)
}

func TestPairCacheDisabledWithoutStore(t *testing.T) {
	cache := NewPairCache(nil, time.Minute, nil)
	ctx := context.Background()

	assert.False(t, cache.Enabled())
	assert.False(t, cache.Set(ctx, "a", "b", VersionBasic, &Result{}))

	_, ok := cache.Get(ctx, "a", "b", VersionBasic)
	assert.False(t, ok)
	assert.Zero(t, cache.ClearForUser(ctx, "a"))
}

func TestPairCacheDegradesOnBackendFailure(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	cache := NewPairCache(store, time.Minute, nil)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "a", "b", VersionBasic)
	assert.False(t, ok)
	assert.False(t, cache.Set(ctx, "a", "b", VersionBasic, &Result{Score: 50}))
	assert.Zero(t, cache.ClearForUser(ctx, "a"))
}

func TestPairCacheIgnoresCorruptEntries(t *testing.T) {
	store := newMemStore()
	cache := NewPairCache(store, time.Minute, nil)
	ctx := context.Background()

	store.data[CacheKey(VersionBasic, "a", "b")] = "{not json"

	_, ok := cache.Get(ctx, "a", "b", VersionBasic)
	assert.False(t, ok)
}

func TestPairCacheInvalidate(t *testing.T) {
	store := newMemStore()
	cache := NewPairCache(store, time.Minute, nil)
	ctx := context.Background()

	cache.Set(ctx, "a", "b", VersionBasic, &Result{Score: 42})

	assert.True(t, cache.Invalidate(ctx, "b", "a", VersionBasic))
	assert.False(t, cache.Invalidate(ctx, "a", "b", VersionBasic))
}

func TestPairCacheClearForUser(t *testing.T) {
	store := newMemStore()
	cache := NewPairCache(store, time.Minute, nil)
	ctx := context.Background()

	cache.Set(ctx, "user-1", "user-2", VersionBasic, &Result{Score: 10})
	cache.Set(ctx, "user-1", "user-3", VersionAdvanced, &Result{Score: 20})
	cache.Set(ctx, "user-2", "user-3", VersionBasic, &Result{Score: 30})

	cleared := cache.ClearForUser(ctx, "user-1")
	assert.Equal(t, 2, cleared)

	_, ok := cache.Get(ctx, "user-2", "user-3", VersionBasic)
	assert.True(t, ok, "pairs not mentioning the user must survive")
}

func TestPairCacheClearForUserExactIDMatch(t *testing.T) {
	store := newMemStore()
	cache := NewPairCache(store, time.Minute, nil)
	ctx := context.Background()

	cache.Set(ctx, "user-1", "user-2", VersionBasic, &Result{Score: 10})
	cache.Set(ctx, "user-10", "user-2", VersionBasic, &Result{Score: 20})
	cache.Set(ctx, "user-10", "user-11", VersionAdvanced, &Result{Score: 30})

	assert.Equal(t, 1, cache.ClearForUser(ctx, "user-1"))

	// Entries for ids that merely share the prefix are untouched.
	_, ok := cache.Get(ctx, "user-10", "user-2", VersionBasic)
	assert.True(t, ok)
	_, ok = cache.Get(ctx, "user-10", "user-11", VersionAdvanced)
	assert.True(t, ok)

	assert.Equal(t, 2, cache.ClearForUser(ctx, "user-10"))
}
