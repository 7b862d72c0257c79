// Package refresher keeps refreshable playlists warm in the playlist cache.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/fastpanel/fastpanel/internal/cache"
	"github.com/fastpanel/fastpanel/internal/fetcher"
	"github.com/fastpanel/fastpanel/internal/filestore"
	"github.com/fastpanel/fastpanel/internal/metrics"
	"github.com/fastpanel/fastpanel/internal/models"
)

// DefaultInterval is the pause between refresh cycles.
const DefaultInterval = 5 * time.Minute

// ErrEmptyPlaylist marks a source that parsed cleanly but has no streams.
var ErrEmptyPlaylist = errors.New("playlist is empty")

// Store is the part of the store the worker needs.
type Store interface {
	ListPlaylistsByStatus(ctx context.Context, statuses ...models.PlaylistStatus) ([]models.Playlist, error)
	ListStreams(ctx context.Context, playlistID int64) ([]models.Stream, error)
	SetPlaylistStatus(ctx context.Context, id int64, status models.PlaylistStatus) error
}

// Parser parses a file on disk out of process.
type Parser interface {
	Parse(ctx context.Context, path string) ([]models.StreamEntry, error)
}

// Locker acquires the cycle lock. It returns cache.ErrLocked when another
// refresher holds it.
type Locker func(ctx context.Context) (unlock func(), err error)

// RedisLocker returns a Locker backed by cache.TryLock on RefreshLockKey.
func RedisLocker(r *cache.Redis, ttl time.Duration) Locker {
	return func(ctx context.Context) (func(), error) {
		return cache.TryLock(ctx, r, cache.RefreshLockKey, ttl)
	}
}

// Options configures a Worker.
type Options struct {
	Fetch fetcher.FetchOptions
	// Lock is optional; without it cycles run unguarded.
	Lock Locker
	// Fs holds the temp files of file:// playlists. Defaults to the OS.
	Fs afero.Fs
}

// Stats summarises one cycle.
type Stats struct {
	Online  int
	Offline int
	Skipped bool
}

// Worker refreshes playlists sequentially.
type Worker struct {
	store  Store
	parser Parser
	cache  cache.PlaylistCache
	opts   Options
	log    *logrus.Entry
}

// New creates a Worker.
func New(s Store, parser Parser, c cache.PlaylistCache, opts Options, log *logrus.Entry) *Worker {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	return &Worker{store: s, parser: parser, cache: c, opts: opts, log: log}
}

// Run refreshes once immediately and then every interval until ctx is done.
func (w *Worker) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	w.log.WithField("interval", interval.String()).Info("refresher started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := w.RefreshAll(ctx); err != nil && ctx.Err() == nil {
			w.log.WithError(err).Error("refresh cycle failed")
		}
		select {
		case <-ctx.Done():
			w.log.Info("refresher stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// RefreshAll processes every playlist waiting for verification or
// currently offline, one at a time.
func (w *Worker) RefreshAll(ctx context.Context) (Stats, error) {
	var stats Stats
	if w.opts.Lock != nil {
		unlock, err := w.opts.Lock(ctx)
		if errors.Is(err, cache.ErrLocked) {
			w.log.Info("another refresher holds the lock, skipping cycle")
			stats.Skipped = true
			return stats, nil
		}
		if err != nil {
			return stats, err
		}
		defer unlock()
	}

	playlists, err := w.store.ListPlaylistsByStatus(ctx, models.StatusVerificando, models.StatusOffline)
	if err != nil {
		return stats, fmt.Errorf("list playlists: %w", err)
	}
	if len(playlists) == 0 {
		w.log.Debug("no playlists to refresh")
		return stats, nil
	}

	w.log.WithField("count", len(playlists)).Info("refreshing playlists")
	for _, p := range playlists {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if w.Refresh(ctx, p) == models.StatusOnline {
			stats.Online++
		} else {
			stats.Offline++
		}
	}
	w.log.WithFields(logrus.Fields{"online": stats.Online, "offline": stats.Offline}).Info("refresh cycle done")
	return stats, nil
}

// Refresh loads one playlist's streams and records the outcome: a
// non-empty list is cached and the playlist marked ONLINE, anything else
// drops the cache entry and marks it OFFLINE. It returns the new status.
func (w *Worker) Refresh(ctx context.Context, p models.Playlist) models.PlaylistStatus {
	log := w.log.WithFields(logrus.Fields{"playlist_id": p.ID, "playlist": p.Name})
	key := cache.PlaylistKey(p.ID)

	items, err := w.load(ctx, p)
	if err == nil && len(items) == 0 {
		err = ErrEmptyPlaylist
	}
	if err == nil {
		err = w.cache.Set(ctx, key, items, 0)
	}

	status := models.StatusOnline
	if err != nil {
		log.WithError(err).Warn("playlist refresh failed")
		status = models.StatusOffline
		if derr := w.cache.Delete(ctx, key); derr != nil {
			log.WithError(derr).Warn("cache delete failed")
		}
	} else {
		log.WithField("items", len(items)).Info("playlist cached")
	}

	if err := w.store.SetPlaylistStatus(ctx, p.ID, status); err != nil {
		log.WithError(err).Error("update playlist status")
	}
	metrics.PlaylistRefreshes.WithLabelValues(string(status)).Inc()
	return status
}

func (w *Worker) load(ctx context.Context, p models.Playlist) ([]models.StreamEntry, error) {
	switch {
	case p.IsMaster():
		rows, err := w.store.ListStreams(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("list master streams: %w", err)
		}
		items := make([]models.StreamEntry, len(rows))
		for i, s := range rows {
			items[i] = s.Entry()
		}
		return items, nil

	case strings.HasPrefix(p.URL, "file://"):
		path, err := filestore.PathFromURL(p.URL)
		if err != nil {
			return nil, err
		}
		defer w.removeTemp(path)
		if w.parser == nil {
			return nil, errors.New("no parser service configured")
		}
		return w.parser.Parse(ctx, path)

	case p.URL != "":
		return fetcher.FetchURL(ctx, p.URL, w.opts.Fetch)
	}
	return nil, errors.New("playlist has no URL and is not the master playlist")
}

func (w *Worker) removeTemp(path string) {
	if err := w.opts.Fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		w.log.WithError(err).WithField("path", path).Warn("remove temp file")
	}
}
