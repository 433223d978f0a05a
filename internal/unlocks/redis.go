package unlocks

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"headshot/internal/studio"
)

const keyPrefix = "headshot"

type redisCmdable interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
}

// RedisStore keeps unlock sets as JSON lists under headshot:<owner>:unlocked_presets.
type RedisStore struct {
	rdb redisCmdable
	ttl time.Duration
}

// NewRedisStore wraps a go-redis client. A zero ttl keeps keys forever.
func NewRedisStore(rdb redisCmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// DialRedis connects to addr and verifies the connection with a ping.
func DialRedis(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func redisKey(owner string) string {
	return keyPrefix + ":" + owner + ":" + studio.StorageKey
}

func (s *RedisStore) Load(ctx context.Context, owner string) ([]string, error) {
	raw, err := s.rdb.Get(ctx, redisKey(owner)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("unlocks: load %s: %w", owner, err)
	}
	return decode(raw)
}

func (s *RedisStore) Save(ctx context.Context, owner string, ids []string) error {
	raw, err := encode(ids)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, redisKey(owner), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("unlocks: save %s: %w", owner, err)
	}
	return nil
}

var (
	_ studio.UnlockStore = (*RedisStore)(nil)
	_ studio.UnlockStore = (*MemoryStore)(nil)
)
