// Package redis keeps the per-share dividend value in Redis so every server
// instance reads the same cached figure.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/coop-ledger/config"
	"github.com/warp/coop-ledger/dividend"
)

const (
	keyPrefix        = "coop:per_share:"
	generationPrefix = "coop:per_share_gen:"
)

// Key is the Redis key holding the per-share value of a year.
func Key(year int) string { return keyPrefix + strconv.Itoa(year) }

// GenerationKey holds the number of invalidations of a year.
func GenerationKey(year int) string { return generationPrefix + strconv.Itoa(year) }

// setIfGeneration writes KEYS[1] only while KEYS[2] still equals ARGV[1].
// ARGV[3] is the TTL in milliseconds, 0 for none.
const setIfGeneration = `
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`

// Connect opens a client and pings it.
func Connect(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) (*goredis.Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("Connecting to Redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	log.Info("Connected to Redis", zap.String("addr", cfg.Addr))
	return client, nil
}

// PerShareCache implements dividend.PerShareCache on a Redis client.
type PerShareCache struct {
	client goredis.Cmdable
	ttl    time.Duration
}

// NewPerShareCache wraps client. A zero ttl keeps entries until invalidated.
func NewPerShareCache(client goredis.Cmdable, ttl time.Duration) *PerShareCache {
	return &PerShareCache{client: client, ttl: ttl}
}

func (c *PerShareCache) Get(ctx context.Context, year int) (dividend.CacheEntry, error) {
	vals, err := c.client.MGet(ctx, Key(year), GenerationKey(year)).Result()
	if err != nil {
		return dividend.CacheEntry{}, err
	}

	var entry dividend.CacheEntry
	if raw, ok := vals[1].(string); ok {
		if entry.Generation, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return dividend.CacheEntry{}, fmt.Errorf("corrupt per-share generation for %d: %w", year, err)
		}
	}

	raw, ok := vals[0].(string)
	if !ok {
		return entry, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return dividend.CacheEntry{}, fmt.Errorf("corrupt per-share value for %d: %w", year, err)
	}
	entry.PerShare = d
	entry.Found = true
	return entry, nil
}

func (c *PerShareCache) Set(ctx context.Context, year int, generation int64, perShare decimal.Decimal) (bool, error) {
	stored, err := c.client.Eval(ctx, setIfGeneration,
		[]string{Key(year), GenerationKey(year)},
		strconv.FormatInt(generation, 10), perShare.String(), c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// Invalidate deletes the value and bumps the generation in one transaction.
func (c *PerShareCache) Invalidate(ctx context.Context, year int) error {
	_, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, Key(year))
		pipe.Incr(ctx, GenerationKey(year))
		return nil
	})
	return err
}

var _ dividend.PerShareCache = (*PerShareCache)(nil)
