package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fastpanel/fastpanel/internal/models"
)

// purgeBatch is the SCAN page size used by Purge.
const purgeBatch = 200

// RedisPlaylists is a PlaylistCache shared by every process pointed at the
// same Redis, so the refresher's results are visible to the API.
type RedisPlaylists struct {
	r   *Redis
	ttl time.Duration
	log *logrus.Entry
}

// NewRedisPlaylists wraps r. A zero ttl selects DefaultTTL.
func NewRedisPlaylists(r *Redis, ttl time.Duration, log *logrus.Entry) *RedisPlaylists {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisPlaylists{r: r, ttl: ttl, log: log}
}

func (c *RedisPlaylists) key(k string) string {
	return KeyPrefix + "playlists:" + k
}

// Get treats any Redis failure, and a value that no longer decodes, as a
// miss.
func (c *RedisPlaylists) Get(ctx context.Context, key string) ([]models.StreamEntry, bool) {
	raw, err := c.r.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !IsMiss(err) {
			c.log.WithError(err).WithField("key", key).Warn("playlist cache get failed")
		}
		return nil, false
	}
	var items []models.StreamEntry
	if err := json.Unmarshal(raw, &items); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("dropping undecodable cache entry")
		_ = c.r.client.Del(ctx, c.key(key)).Err()
		return nil, false
	}
	return items, true
}

func (c *RedisPlaylists) Set(ctx context.Context, key string, items []models.StreamEntry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	if items == nil {
		items = []models.StreamEntry{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.r.client.Set(ctx, c.key(key), data, ttl).Err()
}

func (c *RedisPlaylists) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.r.client.Del(ctx, full...).Err()
}

// Purge removes every cached playlist and returns once the keyspace scan
// is complete.
func (c *RedisPlaylists) Purge(ctx context.Context) error {
	iter := c.r.client.Scan(ctx, 0, c.key("*"), purgeBatch).Iterator()
	batch := make([]string, 0, purgeBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := c.r.client.Unlink(ctx, batch...).Err()
		batch = batch[:0]
		return err
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == purgeBatch {
			if err := flush(); err != nil {
				return fmt.Errorf("purge playlists: %w", err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan playlists: %w", err)
	}
	if err := flush(); err != nil {
		return fmt.Errorf("purge playlists: %w", err)
	}
	return nil
}
