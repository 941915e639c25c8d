package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/dealgraph-backend/internal/platform/ctxutil"
	"github.com/yungbote/dealgraph-backend/internal/platform/envutil"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

// Cache stores JSON values under a namespace. Invalidate bumps the
// namespace generation so every earlier entry becomes unreachable and
// expires on its own TTL.
type Cache interface {
	Get(ctx context.Context, namespace, key string, out any) (bool, error)
	Set(ctx context.Context, namespace, key string, v any) error
	Invalidate(ctx context.Context, namespace string) error
	Close() error
}

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

func ResolveConfigFromEnv() Config {
	return Config{
		Addr:     envutil.String("REDIS_ADDR", ""),
		Password: envutil.String("REDIS_PASSWORD", ""),
		DB:       envutil.Int("REDIS_DB", 0),
		Prefix:   envutil.String("REDIS_PREFIX", "dg"),
		TTL:      time.Duration(envutil.Int("CACHE_TTL_SECONDS", 300)) * time.Second,
	}
}

type redisCache struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

// New connects and pings. An empty Addr yields a no-op cache.
func New(log *logger.Logger, cfg Config) (Cache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return Nop(), nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newWithClient(log, rdb, cfg), nil
}

// NewWithClient wraps an existing client without pinging it.
func NewWithClient(log *logger.Logger, rdb *goredis.Client, cfg Config) Cache {
	return newWithClient(log, rdb, cfg)
}

func newWithClient(log *logger.Logger, rdb *goredis.Client, cfg Config) *redisCache {
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = "dg"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisCache{
		log:    log.With("client", "RedisCache"),
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *redisCache) genKey(namespace string) string {
	return c.prefix + ":cache:" + namespace + ":gen"
}

func (c *redisCache) entryKey(ctx context.Context, namespace, key string) (string, error) {
	gen, err := c.rdb.Get(ctx, c.genKey(namespace)).Int64()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return "", err
	}
	return fmt.Sprintf("%s:cache:%s:%d:%s", c.prefix, namespace, gen, key), nil
}

func (c *redisCache) Get(ctx context.Context, namespace, key string, out any) (bool, error) {
	ctx = ctxutil.Default(ctx)
	k, err := c.entryKey(ctx, namespace, key)
	if err != nil {
		return false, err
	}
	raw, err := c.rdb.Get(ctx, k).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.log.Warn("Dropping undecodable cache entry", "key", k, "error", err)
		_ = c.rdb.Del(ctx, k).Err()
		return false, nil
	}
	return true, nil
}

func (c *redisCache) Set(ctx context.Context, namespace, key string, v any) error {
	ctx = ctxutil.Default(ctx)
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	k, err := c.entryKey(ctx, namespace, key)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, k, raw, c.ttl).Err()
}

func (c *redisCache) Invalidate(ctx context.Context, namespace string) error {
	return c.rdb.Incr(ctxutil.Default(ctx), c.genKey(namespace)).Err()
}

func (c *redisCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

type nopCache struct{}

// Nop returns a cache that never hits.
func Nop() Cache { return nopCache{} }

func (nopCache) Get(context.Context, string, string, any) (bool, error) { return false, nil }
func (nopCache) Set(context.Context, string, string, any) error         { return nil }
func (nopCache) Invalidate(context.Context, string) error               { return nil }
func (nopCache) Close() error                                           { return nil }
