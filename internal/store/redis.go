package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps the redis client and adapts it to the room.Cache contract.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts. password may be empty.
func NewRedis(addr, password string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// Get returns the value at key and whether it exists. A missing key is not
// an error.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set writes key with a ttl in one call; the server expires it, callers
// never do.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.Client.Set(ctx, key, value, ttl).Err()
}

// Delete removes keys. Missing keys are ignored.
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	return r.Client.Del(ctx, keys...).Err()
}

// SAdd adds member to the named set.
func (r *Redis) SAdd(ctx context.Context, set, member string) error {
	return r.Client.SAdd(ctx, set, member).Err()
}

// SRem removes member from the named set and reports whether it was present.
func (r *Redis) SRem(ctx context.Context, set, member string) (bool, error) {
	n, err := r.Client.SRem(ctx, set, member).Result()
	return n > 0, err
}

// SIsMember reports set membership.
func (r *Redis) SIsMember(ctx context.Context, set, member string) (bool, error) {
	return r.Client.SIsMember(ctx, set, member).Result()
}
