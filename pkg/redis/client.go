package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/stockcast/pkg/config"
)

// ErrDisabled is returned by Ping when REDIS_ENABLED=false or the startup
// connection failed and the process runs without a price cache
var ErrDisabled = errors.New("redis cache disabled")

// connectTimeout bounds the startup ping so an unreachable Redis degrades
// to "no cache" instead of stalling the daemon
const connectTimeout = 5 * time.Second

// Client holds the connection backing the price/mention cache and the Yahoo rate limiter
// ⭐ SSOT: Redis 연결은 여기서만 관리 (nil-safe: 비활성이면 모든 caller가 pass-through)
type Client struct {
	rdb     *redis.Client
	addr    string
	enabled bool
}

// New connects to Redis; a disabled config yields a pass-through client
func New(cfg *config.Config) (*Client, error) {
	addr := fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port)
	if !cfg.Redis.Enabled {
		return &Client{addr: addr}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  connectTimeout,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s: connection failed: %w", addr, err)
	}

	return &Client{
		rdb:     rdb,
		addr:    addr,
		enabled: true,
	}, nil
}

// Ping checks the connection for /health; ErrDisabled when running without cache
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || !c.enabled {
		return ErrDisabled
	}
	return c.rdb.Ping(ctx).Err()
}

// Addr is host:port, also reported when disabled
func (c *Client) Addr() string {
	return c.addr
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Enabled returns whether Redis is enabled
func (c *Client) Enabled() bool {
	return c != nil && c.enabled
}

// Redis returns the underlying client (nil when disabled)
func (c *Client) Redis() *redis.Client {
	return c.rdb
}
