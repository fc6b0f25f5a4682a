package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/newsdex/internal/store"
)

// CacheGet returns a cached value or store.ErrCacheMiss. Expiry is native
// key TTL, so there is no cleanup counterpart here.
func (s *Store) CacheGet(ctx context.Context, key string) ([]byte, error) {
	data, err := s.do(ctx, s.b().Get().Key(cacheKeyPrefix+key).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, store.ErrCacheMiss
		}
		return nil, &store.Error{Op: store.OpCache, Err: err}
	}
	return data, nil
}

// CacheSet stores a value with an expiry.
func (s *Store) CacheSet(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := s.b().Set().Key(cacheKeyPrefix + key).Value(string(value)).Ex(ttl).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &store.Error{Op: store.OpCache, Err: err}
	}
	return nil
}
