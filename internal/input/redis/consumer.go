package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Config controls Redis session input.
type Config struct {
	Addr         string
	Password     string
	DB           int
	Queue        string
	KeyPrefix    string
	BlockTimeout time.Duration
}

// Consumer reads completed escrow session logs from Redis. Sessions are
// stored as JSON arrays under per-trace keys; a queue carries the keys
// of sessions ready for analysis.
type Consumer struct {
	client *goredis.Client
	cfg    Config
}

// ErrNoSession is returned by PopSessionKey when the queue stays empty
// for the block timeout.
var ErrNoSession = errors.New("no session available")

// NewConsumer connects to Redis and verifies the connection.
func NewConsumer(ctx context.Context, cfg Config) (*Consumer, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.Queue == "" {
		cfg.Queue = "escrowtrace:sessions"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "escrowtrace:session:"
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}

	return &Consumer{client: client, cfg: cfg}, nil
}

// PopSessionKey blocks until a session key is queued or the block
// timeout elapses.
func (c *Consumer) PopSessionKey(ctx context.Context) (string, error) {
	res, err := c.client.BLPop(ctx, c.cfg.BlockTimeout, c.cfg.Queue).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", ErrNoSession
		}
		return "", fmt.Errorf("blpop %s: %w", c.cfg.Queue, err)
	}
	if len(res) < 2 {
		return "", ErrNoSession
	}
	return res[1], nil
}

// FetchSession returns the raw JSON event array stored for a trace.
// The key may be a bare trace id; the configured prefix is applied.
func (c *Consumer) FetchSession(ctx context.Context, key string) ([]byte, error) {
	full := key
	if len(key) < len(c.cfg.KeyPrefix) || key[:len(c.cfg.KeyPrefix)] != c.cfg.KeyPrefix {
		full = c.cfg.KeyPrefix + key
	}

	data, err := c.client.Get(ctx, full).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("session %s not found", full)
		}
		return nil, fmt.Errorf("get %s: %w", full, err)
	}
	return data, nil
}

// Close releases the Redis connection.
func (c *Consumer) Close() error {
	return c.client.Close()
}
