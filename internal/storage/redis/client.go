package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Окно и лимит попыток входа на одно имя пользователя.
const (
	LoginWindow      = 10 * time.Minute
	LoginMaxAttempts = 10
)

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

// NewFromClient оборачивает готовый клиент (тесты, общий пул).
func NewFromClient(cli *redis.Client) *Client {
	return &Client{cli: cli}
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// Revoke кладёт jti в revoked:{jti} до истечения самого токена.
func (c *Client) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.cli.Set(ctx, "revoked:"+tokenID, 1, ttl).Err()
}

func (c *Client) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := c.cli.Exists(ctx, "revoked:"+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AllowLoginAttempt: login_limit:{username}, не больше LoginMaxAttempts за окно.
func (c *Client) AllowLoginAttempt(ctx context.Context, username string) (bool, error) {
	key := "login_limit:" + username
	n, err := c.cli.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		c.cli.Expire(ctx, key, LoginWindow)
	}
	return n <= LoginMaxAttempts, nil
}
