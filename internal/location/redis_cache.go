package location

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements CacheStore on Redis so the cached fix survives
// gateway restarts.
type RedisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisCache(addr, password, key string, ttl time.Duration) *RedisCache {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisCache{client: c, key: key, ttl: ttl}
}

func (r *RedisCache) Load(ctx context.Context) (*CachedFix, error) {
	raw, err := r.client.Get(ctx, r.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var fix CachedFix
	if err := json.Unmarshal([]byte(raw), &fix); err != nil {
		return nil, err
	}
	return &fix, nil
}

func (r *RedisCache) Save(ctx context.Context, fix CachedFix) error {
	b, err := json.Marshal(fix)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key, b, r.ttl).Err()
}

func (r *RedisCache) Close() error { return r.client.Close() }
