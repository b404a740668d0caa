package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds connection tuning for a Redis-backed store.
type Config struct {
	URL          string        `yaml:"url"`
	Password     string        `yaml:"password"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PoolSize     int           `yaml:"pool_size"`
	MaxRetries   int           `yaml:"max_retries"`
}

// ApplyDefaults fills in default values.
func (c *Config) ApplyDefaults() {
	if c.URL == "" {
		c.URL = "redis://localhost:6379/0"
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
	if c.PoolSize == 0 {
		c.PoolSize = 1 // one connection per worker
	}
}

// RedisStore implements Store on top of go-redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the URL in cfg and verifies connectivity.
func NewRedisStore(ctx context.Context, cfg Config) (*RedisStore, error) {
	cfg.ApplyDefaults()

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("store: parse redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.PoolSize = cfg.PoolSize
	opts.MaxRetries = cfg.MaxRetries

	s := &RedisStore{client: redis.NewClient(opts)}
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("store: ping %s: %w", opts.Addr, err)
	}
	return s, nil
}

// NewFactory returns a Factory that opens a fresh connection per call.
func NewFactory(cfg Config) Factory {
	return func(ctx context.Context) (Store, error) {
		return NewRedisStore(ctx, cfg)
	}
}

// EndpointFactory builds stores against an explicit host:port, used by the
// recovery manager to reach restored clusters.
func EndpointFactory(password string) func(ctx context.Context, addr string) (Store, error) {
	return func(ctx context.Context, addr string) (Store, error) {
		return NewRedisStore(ctx, Config{
			URL:      fmt.Sprintf("redis://%s/0", addr),
			Password: password,
		})
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// IncrWithExpire pipelines INCR and EXPIRE so the measured latency covers a
// single round trip.
func (s *RedisStore) IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// ScanKeys walks the keyspace with SCAN rather than KEYS so large datasets
// do not block the server.
func (s *RedisStore) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return keys, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

func (s *RedisStore) DumpValue(ctx context.Context, key string) (*ValueDump, error) {
	typ, err := s.client.Type(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	dump := &ValueDump{Key: key, Type: typ}
	switch typ {
	case "string":
		dump.Value, err = s.client.Get(ctx, key).Result()
	case "hash":
		dump.Value, err = s.client.HGetAll(ctx, key).Result()
	case "list":
		dump.Value, err = s.client.LRange(ctx, key, 0, -1).Result()
	case "set":
		dump.Value, err = s.client.SMembers(ctx, key).Result()
	case "zset":
		dump.Value, err = s.client.ZRangeWithScores(ctx, key, 0, -1).Result()
	default:
		return nil, fmt.Errorf("store: unsupported type %q for key %q", typ, key)
	}
	if err != nil {
		return nil, err
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if ttl < 0 {
		dump.TTLSeconds = -1
	} else {
		dump.TTLSeconds = int64(ttl.Seconds())
	}
	return dump, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
