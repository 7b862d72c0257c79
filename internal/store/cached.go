package store

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/fastpanel/fastpanel/internal/cache"
	"github.com/fastpanel/fastpanel/internal/models"
)

// CachedStore wraps a Store and drops the parsed playlist cache entry of
// every playlist whose stream set it mutates. Reads pass through.
type CachedStore struct {
	Store
	cache cache.PlaylistCache
	log   *logrus.Entry
}

// NewCachedStore creates a CachedStore over inner.
func NewCachedStore(inner Store, c cache.PlaylistCache, log *logrus.Entry) *CachedStore {
	return &CachedStore{Store: inner, cache: c, log: log}
}

func (c *CachedStore) AddStreams(ctx context.Context, playlistID int64, entries []models.StreamEntry) (int64, error) {
	n, err := c.Store.AddStreams(ctx, playlistID, entries)
	if err != nil {
		return 0, err
	}
	c.invalidate(ctx, playlistID)
	return n, nil
}

func (c *CachedStore) ReplaceStreams(ctx context.Context, playlistID int64, entries []models.StreamEntry) (int64, error) {
	n, err := c.Store.ReplaceStreams(ctx, playlistID, entries)
	if err != nil {
		return 0, err
	}
	c.invalidate(ctx, playlistID)
	return n, nil
}

func (c *CachedStore) UpdateStream(ctx context.Context, playlistID int64, s *models.Stream) error {
	if err := c.Store.UpdateStream(ctx, playlistID, s); err != nil {
		return err
	}
	c.invalidate(ctx, playlistID)
	return nil
}

func (c *CachedStore) UpdateStreamType(ctx context.Context, playlistID, streamID int64, t models.StreamType) error {
	if err := c.Store.UpdateStreamType(ctx, playlistID, streamID, t); err != nil {
		return err
	}
	c.invalidate(ctx, playlistID)
	return nil
}

func (c *CachedStore) DeleteStream(ctx context.Context, playlistID, streamID int64) error {
	if err := c.Store.DeleteStream(ctx, playlistID, streamID); err != nil {
		return err
	}
	c.invalidate(ctx, playlistID)
	return nil
}

func (c *CachedStore) DeletePlaylist(ctx context.Context, id int64) error {
	if err := c.Store.DeletePlaylist(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

// invalidate deletes the playlist's cache entry, logging any error.
func (c *CachedStore) invalidate(ctx context.Context, playlistID int64) {
	key := cache.PlaylistKey(playlistID)
	if err := c.cache.Delete(ctx, key); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache invalidation failed")
	}
}
