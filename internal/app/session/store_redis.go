package session

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

var _ KV = (*RedisKV)(nil)

// RedisKV keeps the session record in Redis so several dashboard processes
// on one host share a login.
type RedisKV struct {
	client redis.Cmdable
	prefix string
}

// NewRedisKV creates a Redis backed store. Keys never expire on their own;
// the record lives until logout or a detected expiry clears it.
func NewRedisKV(client redis.Cmdable) *RedisKV {
	return &RedisKV{
		client: client,
		prefix: "churninsight:",
	}
}

func (r *RedisKV) key(k string) string {
	return r.prefix + k
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}
