package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/fastpanel/fastpanel/internal/models"
)

// Defaults for parsed playlist entries.
const (
	DefaultTTL   = time.Hour
	DefaultSweep = 10 * time.Minute
)

// PlaylistCache maps a playlist key to its last parsed stream list.
// A miss never means "no streams": callers re-derive from the source.
type PlaylistCache interface {
	Get(ctx context.Context, key string) ([]models.StreamEntry, bool)
	// Set stores items; ttl <= 0 selects the implementation default.
	Set(ctx context.Context, key string, items []models.StreamEntry, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// PlaylistKey is the cache key of a refreshable playlist.
func PlaylistKey(id int64) string {
	return "playlist_" + strconv.FormatInt(id, 10)
}

// SourceKey is the cache key of a source playlist file at a given content
// fingerprint. Rewriting the file changes the fingerprint, so a stale
// entry can never be served for new content.
func SourceKey(id int64, fingerprint string) string {
	return "source_" + strconv.FormatInt(id, 10) + "_" + fingerprint
}
