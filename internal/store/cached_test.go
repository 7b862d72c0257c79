package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastpanel/fastpanel/internal/cache"
	"github.com/fastpanel/fastpanel/internal/models"
	"github.com/fastpanel/fastpanel/internal/store"
	"github.com/fastpanel/fastpanel/internal/store/storetest"
)

func newCached(t *testing.T) (*store.CachedStore, *cache.Memory, int64) {
	t.Helper()
	mem := cache.NewMemory(time.Hour, time.Hour)
	t.Cleanup(mem.Close)
	l, _ := logtest.NewNullLogger()
	cs := store.NewCachedStore(storetest.New(), mem, logrus.NewEntry(l))

	master, err := cs.EnsureMasterPlaylist(context.Background(), 0)
	require.NoError(t, err)
	return cs, mem, master.ID
}

func warm(t *testing.T, mem *cache.Memory, playlistID int64) {
	t.Helper()
	require.NoError(t, mem.Set(context.Background(), cache.PlaylistKey(playlistID), []models.StreamEntry{{URL: "http://stale"}}, 0))
}

func requireMiss(t *testing.T, mem *cache.Memory, playlistID int64) {
	t.Helper()
	_, ok := mem.Get(context.Background(), cache.PlaylistKey(playlistID))
	require.False(t, ok, "cache entry must be dropped after a stream mutation")
}

func TestCachedStore_InvalidatesOnEveryMutation(t *testing.T) {
	ctx := context.Background()
	cs, mem, id := newCached(t)

	warm(t, mem, id)
	n, err := cs.AddStreams(ctx, id, []models.StreamEntry{
		{Name: "A", URL: "http://x/a"},
		{Name: "B", URL: "http://x/b", StreamType: models.StreamTypeFilme},
		{Name: "A again", URL: "http://x/a"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	requireMiss(t, mem, id)

	streams, err := cs.ListStreams(ctx, id)
	require.NoError(t, err)
	require.Len(t, streams, 2)

	warm(t, mem, id)
	upd := streams[0]
	upd.Name = "A renamed"
	require.NoError(t, cs.UpdateStream(ctx, id, &upd))
	requireMiss(t, mem, id)

	warm(t, mem, id)
	require.NoError(t, cs.UpdateStreamType(ctx, id, streams[1].ID, models.StreamTypeSerie))
	requireMiss(t, mem, id)

	warm(t, mem, id)
	require.NoError(t, cs.DeleteStream(ctx, id, streams[0].ID))
	requireMiss(t, mem, id)

	warm(t, mem, id)
	_, err = cs.ReplaceStreams(ctx, id, []models.StreamEntry{{Name: "C", URL: "http://x/c"}})
	require.NoError(t, err)
	requireMiss(t, mem, id)

	warm(t, mem, id)
	require.NoError(t, cs.DeletePlaylist(ctx, id))
	requireMiss(t, mem, id)
}

func TestCachedStore_FailedMutationKeepsEntry(t *testing.T) {
	ctx := context.Background()
	cs, mem, id := newCached(t)

	warm(t, mem, id)
	err := cs.DeleteStream(ctx, id, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, ok := mem.Get(ctx, cache.PlaylistKey(id))
	assert.True(t, ok)
}
