package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/transitcache/cache"
)

// DefaultRedisTimeout bounds each Redis command.
const DefaultRedisTimeout = time.Second

// RedisOpts configures a Redis store.
type RedisOpts struct {
	// Client cannot be nil.
	Client redis.Cmdable

	// ClientCloser closes Client when Redis.Close is called.
	// Optional.
	ClientCloser io.Closer

	// Timeout bounds each command. Default is DefaultRedisTimeout.
	Timeout time.Duration

	// ScanCount is the COUNT hint for SCAN in ListKeys. Default is 100.
	ScanCount int64

	// Match restricts ListKeys to keys matching this glob. Default is "*".
	// Set it to the engine prefix followed by "*" when the database is shared.
	Match string
}

func (o *RedisOpts) init() error {
	if o.Client == nil {
		return ErrNilClient
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultRedisTimeout
	}
	if o.ScanCount <= 0 {
		o.ScanCount = 100
	}
	if o.Match == "" {
		o.Match = "*"
	}
	return nil
}

// Redis is a Store backed by Redis strings. Keys never expire on the Redis
// side; freshness is the engine's job.
type Redis struct {
	opts RedisOpts
}

var _ cache.Store = (*Redis)(nil)

// NewRedis creates a Redis store from opts.
func NewRedis(opts RedisOpts) (*Redis, error) {
	if err := opts.init(); err != nil {
		return nil, err
	}
	return &Redis{opts: opts}, nil
}

// DialRedis parses a redis:// or unix:// URL and returns a store that owns
// the resulting client.
func DialRedis(url string, opts RedisOpts) (*Redis, error) {
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("store: invalid redis url: %w", err)
	}
	c := redis.NewClient(o)
	opts.Client = c
	opts.ClientCloser = c
	return NewRedis(opts)
}

func (r *Redis) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, r.opts.Timeout)
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	v, err := r.opts.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: redis get %q: %w", key, err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	if err := r.opts.Client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("store: redis set %q: %w", key, err)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	if err := r.opts.Client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("store: redis del %q: %w", key, err)
	}
	return nil
}

// ListKeys walks the keyspace with SCAN. The timeout applies to the whole
// walk.
func (r *Redis) ListKeys(ctx context.Context) ([]string, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	var keys []string
	iter := r.opts.Client.Scan(ctx, 0, r.opts.Match, r.opts.ScanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("store: redis scan: %w", err)
	}
	return keys, nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()
	return r.opts.Client.Ping(ctx).Err()
}

// Close closes the client if the store owns it.
func (r *Redis) Close() error {
	if c := r.opts.ClientCloser; c != nil {
		return c.Close()
	}
	return nil
}
