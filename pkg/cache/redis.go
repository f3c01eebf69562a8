package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/purchasekit/pkg/purchase"
)

var (
	ErrFailedToParseRedisURL = errors.New("cache: failed to parse redis connection url")
	ErrRedisNotReady         = errors.New("cache: redis is not ready")
)

// RedisConfig describes the Redis connection used by the product cache.
// Fields are populated from environment variables via github.com/caarlos0/env.
type RedisConfig struct {
	ConnectionURL  string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}

// Connect establishes a Redis connection, retrying per the configuration.
func Connect(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opt, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseRedisURL, err)
	}

	for range max(cfg.RetryAttempts, 1) {
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}

	return nil, ErrRedisNotReady
}

// redisKey holds the single product snapshot. One key per app keeps the
// cache trivially invalidatable.
const redisKey = "purchasekit:products"

// staleHorizonFactor bounds how long a stale snapshot stays readable. Beyond
// TTL times this factor the key expires server-side and even allowStale
// reads miss.
const staleHorizonFactor = 7

// Redis is a ProductCache backed by a shared Redis instance.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// RedisOption configures a Redis cache.
type RedisOption func(*Redis)

// WithRedisTTL overrides the default freshness window.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		ttl:    DefaultTTL,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get reads the snapshot. Transport failures and undecodable payloads are
// treated as cache misses; the fallback chain has better options than
// propagating a cache error.
func (r *Redis) Get(ctx context.Context, allowStale bool) ([]purchase.Product, bool) {
	raw, err := r.client.Get(ctx, redisKey).Bytes()
	if err != nil {
		return nil, false
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false
	}
	if !allowStale && !snap.fresh(r.now(), r.ttl) {
		return nil, false
	}
	return snap.Products, true
}

// Put stores the snapshot with a server-side expiry at the stale horizon.
// A write failure is silently dropped: caching is best effort.
func (r *Redis) Put(ctx context.Context, products []purchase.Product) {
	raw, err := json.Marshal(snapshot{Products: products, StoredAt: r.now()})
	if err != nil {
		return
	}
	r.client.Set(ctx, redisKey, raw, r.ttl*staleHorizonFactor)
}
