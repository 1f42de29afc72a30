// Package redis owns the process-wide Redis connection. Its only consumer
// today is the consent record store; the wrapper keeps dialing, health
// checks, and teardown in one place.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"consentdesk/internal/platform/config"
)

// Client embeds the go-redis client and adds the health hook the /healthz
// endpoint polls.
type Client struct {
	*redis.Client
}

// New dials Redis from the configured URL and verifies the connection with a
// ping before handing it out. An empty URL means Redis is not configured: the
// caller gets (nil, nil) and falls back to the in-memory store.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	// Pool sizing and timeouts come from config, never from the URL.
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health reports whether the connection still answers a ping.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.Client.Close()
}
