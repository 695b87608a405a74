package kvstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cyberbrosec/cyberbro-web/internal/xerrors"
)

// opTimeout bounds every Redis round trip so a slow store stalls only the
// request that issued it.
const opTimeout = 5 * time.Second

// Redis implements Store on a go-redis client.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the Redis instance at rawURL
// (redis://[user:pass@]host:port/db) and verifies the connection.
func NewRedis(ctx context.Context, rawURL string) (*Redis, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, xerrors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, xerrors.Wrap(err, "redis ping")
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, xerrors.Wrapf(err, "redis get %q", key)
	}
	return val, true, nil
}

func (r *Redis) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return xerrors.Wrapf(err, "redis set %q", key)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error { return r.client.Close() }
