// Package cache holds rendered listing output for a fixed time-to-live.
//
// Entries are never invalidated by data changes: a stale body is served until
// its TTL runs out or Clear is called.
package cache

import (
	"context"
	"fmt"
	"time"
)

// DefaultTTL matches the index page cache lifetime.
const DefaultTTL = 20 * time.Second

// Cache stores rendered bodies by key. TTL is fixed per instance.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend string        `mapstructure:"backend"` // memory, redis
	TTL     time.Duration `mapstructure:"ttl"`
	Size    int           `mapstructure:"size"`   // memory only
	Prefix  string        `mapstructure:"prefix"` // redis only
}

// New builds the configured backend. Redis options are only used by the
// redis backend.
func New(ctx context.Context, cfg Config, redisOpts RedisOptions) (Cache, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(cfg.Size, cfg.TTL), nil
	case "redis":
		return NewRedis(ctx, redisOpts, cfg.Prefix, cfg.TTL)
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}

// IndexPageKey is the cache key of one page of the home listing.
func IndexPageKey(page string) string {
	return "index_page:" + page
}
