package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/voyage-sync/config"
)

// ErrNil is returned by Get when the key does not exist.
var ErrNil = redis.Nil

// Client is a thin wrapper over go-redis exposing the calls the repositories
// make. GetClient gives access to pipelines and anything not wrapped here.
type Client struct {
	cli *redis.Client
}

func NewClient(cfg config.RedisConfig) (*Client, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	return &Client{cli: cli}, nil
}

// Wrap adopts an existing go-redis client.
func Wrap(cli *redis.Client) *Client {
	return &Client{cli: cli}
}

func (c *Client) GetClient() *redis.Client {
	return c.cli
}

func (c *Client) Ping(ctx context.Context) error {
	return c.cli.Ping(ctx).Err()
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	return c.cli.Get(ctx, key).Bytes()
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.cli.Set(ctx, key, value, ttl).Err()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.cli.Del(ctx, keys...).Err()
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.cli.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *Client) HSet(ctx context.Context, key string, values ...any) error {
	return c.cli.HSet(ctx, key, values...).Err()
}

func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.cli.HGetAll(ctx, key).Result()
}

// ScanAll walks the keyspace for pattern and returns every match.
func (c *Client) ScanAll(ctx context.Context, pattern string, count int64) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := c.cli.Scan(ctx, cursor, pattern, count).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

func (c *Client) Publish(ctx context.Context, channel string, message any) error {
	return c.cli.Publish(ctx, channel, message).Err()
}

func (c *Client) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return c.cli.Subscribe(ctx, channels...)
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
