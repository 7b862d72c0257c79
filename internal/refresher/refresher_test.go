package refresher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastpanel/fastpanel/internal/cache"
	"github.com/fastpanel/fastpanel/internal/filestore"
	"github.com/fastpanel/fastpanel/internal/models"
	"github.com/fastpanel/fastpanel/internal/parsersvc"
	"github.com/fastpanel/fastpanel/internal/store/storetest"
)

const remoteList = "#EXTM3U\n#EXTINF:-1,Remote 1\nhttp://r/1\n#EXTINF:-1,Remote 2\nhttp://r/2\n"

type env struct {
	store  *storetest.Memory
	cache  *cache.Memory
	fs     afero.Fs
	worker *Worker
	remote *httptest.Server
}

func newEnv(t *testing.T, opts Options) *env {
	t.Helper()
	l, _ := logtest.NewNullLogger()
	log := logrus.NewEntry(l)

	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.m3u":
			_, _ = w.Write([]byte(remoteList))
		case "/empty.m3u":
			_, _ = w.Write([]byte("#EXTM3U\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(remote.Close)

	fs := afero.NewMemMapFs()
	parser := httptest.NewServer(parsersvc.NewHandler(fs, log))
	t.Cleanup(parser.Close)

	c := cache.NewMemory(time.Hour, time.Hour)
	t.Cleanup(c.Close)

	s := storetest.New()
	opts.Fs = fs
	return &env{
		store:  s,
		cache:  c,
		fs:     fs,
		remote: remote,
		worker: New(s, parsersvc.NewClient(parser.URL, time.Second), c, opts, log),
	}
}

func (e *env) playlist(t *testing.T, name, url string, status models.PlaylistStatus) int64 {
	t.Helper()
	id, err := e.store.CreatePlaylist(context.Background(), &models.Playlist{Name: name, URL: url, Status: status})
	require.NoError(t, err)
	return id
}

func (e *env) status(t *testing.T, id int64) models.PlaylistStatus {
	t.Helper()
	p, err := e.store.GetPlaylist(context.Background(), id)
	require.NoError(t, err)
	return p.Status
}

func TestRefreshAll_RemoteURL(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()
	ok := e.playlist(t, "ok", e.remote.URL+"/ok.m3u", models.StatusVerificando)
	empty := e.playlist(t, "empty", e.remote.URL+"/empty.m3u", models.StatusOffline)
	missing := e.playlist(t, "missing", e.remote.URL+"/gone.m3u", models.StatusVerificando)

	// A stale entry for a failing playlist must be dropped.
	require.NoError(t, e.cache.Set(ctx, cache.PlaylistKey(missing), []models.StreamEntry{{Name: "old"}}, 0))

	stats, err := e.worker.RefreshAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Online: 1, Offline: 2}, stats)

	assert.Equal(t, models.StatusOnline, e.status(t, ok))
	items, hit := e.cache.Get(ctx, cache.PlaylistKey(ok))
	require.True(t, hit)
	assert.Len(t, items, 2)

	for _, id := range []int64{empty, missing} {
		assert.Equal(t, models.StatusOffline, e.status(t, id))
		_, hit := e.cache.Get(ctx, cache.PlaylistKey(id))
		assert.False(t, hit)
	}
}

func TestRefreshAll_SkipsOnlinePlaylists(t *testing.T) {
	e := newEnv(t, Options{})
	id := e.playlist(t, "ok", e.remote.URL+"/gone.m3u", models.StatusOnline)

	stats, err := e.worker.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
	assert.Equal(t, models.StatusOnline, e.status(t, id))
}

func TestRefresh_MasterFromDatabase(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()
	master, err := e.store.EnsureMasterPlaylist(ctx, 1)
	require.NoError(t, err)

	// No rows yet: an empty catalog goes offline.
	assert.Equal(t, models.StatusOffline, e.worker.Refresh(ctx, *master))

	_, err = e.store.AddStreams(ctx, master.ID, []models.StreamEntry{
		{Name: "Canal 1", URL: "http://m/1", StreamType: models.StreamTypeCanal},
		{Name: "Filme 1", URL: "http://m/2", StreamType: models.StreamTypeFilme},
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusOnline, e.worker.Refresh(ctx, *master))
	items, hit := e.cache.Get(ctx, cache.PlaylistKey(master.ID))
	require.True(t, hit)
	require.Len(t, items, 2)
	assert.Equal(t, "http://m/1", items[0].URL)
	assert.Equal(t, models.StreamTypeFilme, items[1].StreamType)
}

func TestRefresh_FileURLUsesParserAndRemovesTempFile(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()
	require.NoError(t, afero.WriteFile(e.fs, "/tmp/merged-1.m3u", []byte(remoteList), 0o644))
	require.NoError(t, afero.WriteFile(e.fs, "/tmp/merged-2.m3u", []byte("garbage"), 0o644))

	good := e.playlist(t, "merged", filestore.FileURL("/tmp/merged-1.m3u"), models.StatusVerificando)
	bad := e.playlist(t, "broken", filestore.FileURL("/tmp/merged-2.m3u"), models.StatusVerificando)

	stats, err := e.worker.RefreshAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Online)
	assert.Equal(t, models.StatusOnline, e.status(t, good))
	assert.Equal(t, models.StatusOffline, e.status(t, bad))

	for _, path := range []string{"/tmp/merged-1.m3u", "/tmp/merged-2.m3u"} {
		exists, err := afero.Exists(e.fs, path)
		require.NoError(t, err)
		assert.False(t, exists, path)
	}

	// The temp file is gone, so the next attempt fails cleanly.
	p, err := e.store.GetPlaylist(ctx, good)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, e.worker.Refresh(ctx, *p))
}

func TestRefresh_NoURL(t *testing.T) {
	e := newEnv(t, Options{})
	id := e.playlist(t, "nothing", "", models.StatusVerificando)
	p, err := e.store.GetPlaylist(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, e.worker.Refresh(context.Background(), *p))
}

func TestRefreshAll_Locked(t *testing.T) {
	mr := miniredis.RunT(t)
	r, err := cache.New("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	e := newEnv(t, Options{Lock: RedisLocker(r, time.Minute)})
	ctx := context.Background()
	id := e.playlist(t, "ok", e.remote.URL+"/ok.m3u", models.StatusVerificando)

	unlock, err := cache.TryLock(ctx, r, cache.RefreshLockKey, time.Minute)
	require.NoError(t, err)

	stats, err := e.worker.RefreshAll(ctx)
	require.NoError(t, err)
	assert.True(t, stats.Skipped)
	assert.Equal(t, models.StatusVerificando, e.status(t, id))

	unlock()
	stats, err = e.worker.RefreshAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Online)
	assert.False(t, mr.Exists(cache.RefreshLockKey), "lock released after the cycle")
}

func TestRefreshAll_LockError(t *testing.T) {
	boom := errors.New("redis down")
	e := newEnv(t, Options{Lock: func(context.Context) (func(), error) { return nil, boom }})
	_, err := e.worker.RefreshAll(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRun_RefreshesImmediatelyAndStops(t *testing.T) {
	e := newEnv(t, Options{})
	id := e.playlist(t, "ok", e.remote.URL+"/ok.m3u", models.StatusVerificando)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.worker.Run(ctx, time.Hour) }()

	require.Eventually(t, func() bool {
		p, err := e.store.GetPlaylist(context.Background(), id)
		return err == nil && p.Status == models.StatusOnline
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
