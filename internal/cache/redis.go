package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key this application writes to Redis.
const KeyPrefix = "fastpanel:"

// Redis is the connection shared by the playlist cache, the refresh lock
// and the Redis job queue.
type Redis struct {
	client *redis.Client
}

// New parses a Redis URL such as "redis://host:6379/0". It does not dial;
// call Ping to check the server.
func New(rawURL string) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

func (r *Redis) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *Redis) Close() error { return r.client.Close() }

// Client exposes the go-redis client for list and script commands.
func (r *Redis) Client() *redis.Client { return r.client }

// IsMiss reports whether err means the key does not exist.
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}
