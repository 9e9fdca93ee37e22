package kvstore

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// Redis stores values in redis, optionally expiring them after ttl.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis creates a Store backed by rdb. A zero ttl keeps keys forever.
func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		logger.Error().Err(err).Msgf("Error getting key %s from redis", key)
		return "", false, errors.Wrapf(err, "redis get %s", key)
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.rdb.Set(ctx, key, value, r.ttl).Err(); err != nil {
		logger.Error().Err(err).Msgf("Error setting key %s in redis", key)
		return errors.Wrapf(err, "redis set %s", key)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logger.Error().Err(err).Msgf("Error deleting key %s from redis", key)
		return errors.Wrapf(err, "redis del %s", key)
	}
	return nil
}
