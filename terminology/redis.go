package terminology

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tissguard/validator/pkg/logger"
)

// DefaultRedisKey holds the TUSS hash (code -> description).
const DefaultRedisKey = "tissguard:tuss"

const redisBatchSize = 1000

// RedisStore keeps the table in a Redis hash so several validator
// processes share one import. Imports are written to a shadow key and
// renamed over the live key.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	ready  atomic.Bool
}

// NewRedisStore creates a store on the given client. An empty key uses
// DefaultRedisKey.
func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// Init checks connectivity.
func (s *RedisStore) Init(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	s.ready.Store(true)
	return nil
}

// Exists reports whether the code is in the table.
func (s *RedisStore) Exists(ctx context.Context, code string) (bool, error) {
	if !s.ready.Load() {
		return false, ErrStoreNotInitialized
	}
	ok, err := s.client.HExists(ctx, s.key, code).Result()
	if err != nil {
		return false, fmt.Errorf("redis: exists %q: %w", code, err)
	}
	return ok, nil
}

// Count returns the number of codes.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	if !s.ready.Load() {
		return 0, ErrStoreNotInitialized
	}
	n, err := s.client.HLen(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: count: %w", err)
	}
	return int(n), nil
}

// BulkReplace writes entries to a shadow hash and renames it over the live
// key. An empty import deletes the live key.
func (s *RedisStore) BulkReplace(ctx context.Context, entries []Entry) (int, error) {
	if !s.ready.Load() {
		return 0, ErrStoreNotInitialized
	}
	norm := Normalize(entries)
	if len(norm) == 0 {
		if err := s.client.Del(ctx, s.key).Err(); err != nil {
			return 0, fmt.Errorf("redis: clear: %w", err)
		}
		return 0, nil
	}

	shadow := s.key + ":import:" + uuid.NewString()
	for start := 0; start < len(norm); start += redisBatchSize {
		end := min(start+redisBatchSize, len(norm))
		fields := make([]any, 0, 2*(end-start))
		for _, e := range norm[start:end] {
			fields = append(fields, e.Code, e.Description)
		}
		if err := s.client.HSet(ctx, shadow, fields...).Err(); err != nil {
			s.discard(shadow)
			return 0, fmt.Errorf("redis: write shadow: %w", err)
		}
	}

	if err := s.client.Rename(ctx, shadow, s.key).Err(); err != nil {
		s.discard(shadow)
		return 0, fmt.Errorf("redis: swap: %w", err)
	}
	return len(norm), nil
}

func (s *RedisStore) discard(shadow string) {
	if err := s.client.Del(context.Background(), shadow).Err(); err != nil {
		logger.Warn("redis: discard shadow failed", "key", shadow, "error", err)
	}
}
