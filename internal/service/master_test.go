package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastpanel/fastpanel/internal/apperr"
	"github.com/fastpanel/fastpanel/internal/cache"
	"github.com/fastpanel/fastpanel/internal/models"
)

func (e *env) warm(t *testing.T, playlistID int64) string {
	t.Helper()
	key := cache.PlaylistKey(playlistID)
	require.NoError(t, e.cache.Set(context.Background(), key, []models.StreamEntry{{Name: "cached"}}, 0))
	return key
}

func TestMasterStreams_NoMaster(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.MasterStreams(context.Background())
	requireKind(t, err, apperr.KindNotFound)
	_, err = e.svc.AddMasterStream(context.Background(), StreamInput{Name: "a", StreamURL: "http://x/1"})
	requireKind(t, err, apperr.KindNotFound)
}

func TestAddMasterStream(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	m := e.master(t, "http://x/1")
	require.NoError(t, e.mem.SetPlaylistStatus(ctx, m.ID, models.StatusOnline))
	key := e.warm(t, m.ID)

	st, err := e.svc.AddMasterStream(ctx, StreamInput{Name: "Filme", StreamURL: "http://x/2", StreamType: models.StreamTypeFilme})
	require.NoError(t, err)
	assert.Equal(t, "http://x/2", st.StreamURL)
	assert.Equal(t, models.StreamTypeFilme, st.StreamType)
	assert.NotZero(t, st.ID)

	_, hit := e.cache.Get(ctx, key)
	assert.False(t, hit, "cache invalidated")
	assert.Equal(t, models.StatusVerificando, e.playlistStatus(t, m.ID))

	st, err = e.svc.AddMasterStream(ctx, StreamInput{Name: "Canal", StreamURL: "http://x/3"})
	require.NoError(t, err)
	assert.Equal(t, models.StreamTypeCanal, st.StreamType, "type defaults to CANAL")

	_, err = e.svc.AddMasterStream(ctx, StreamInput{Name: "dup", StreamURL: "http://x/1"})
	requireKind(t, err, apperr.KindConflict)
	_, err = e.svc.AddMasterStream(ctx, StreamInput{Name: "bad", StreamURL: "http://x/4", StreamType: "RADIO"})
	requireKind(t, err, apperr.KindValidation)
	_, err = e.svc.AddMasterStream(ctx, StreamInput{StreamURL: "http://x/4"})
	requireKind(t, err, apperr.KindValidation)
}

func TestUpdateAndDeleteMasterStream(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	m := e.master(t, "http://x/1", "http://x/2")
	streams, err := e.svc.MasterStreams(ctx)
	require.NoError(t, err)
	require.Len(t, streams, 2)
	first := streams[0]

	require.NoError(t, e.mem.SetPlaylistStatus(ctx, m.ID, models.StatusOnline))
	key := e.warm(t, m.ID)
	updated, err := e.svc.UpdateMasterStream(ctx, first.ID, StreamInput{Name: "Renamed", StreamURL: "http://x/10"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, first.StreamType, updated.StreamType)
	_, hit := e.cache.Get(ctx, key)
	assert.False(t, hit)
	assert.Equal(t, models.StatusVerificando, e.playlistStatus(t, m.ID))

	_, err = e.svc.UpdateMasterStream(ctx, first.ID, StreamInput{Name: "x", StreamURL: "http://x/2"})
	requireKind(t, err, apperr.KindConflict)
	_, err = e.svc.UpdateMasterStream(ctx, 999, StreamInput{Name: "x", StreamURL: "http://x/3"})
	requireKind(t, err, apperr.KindNotFound)

	typed, err := e.svc.UpdateStreamType(ctx, first.ID, models.StreamTypeSerie)
	require.NoError(t, err)
	assert.Equal(t, models.StreamTypeSerie, typed.StreamType)
	_, err = e.svc.UpdateStreamType(ctx, first.ID, "NOPE")
	requireKind(t, err, apperr.KindValidation)

	require.NoError(t, e.mem.SetPlaylistStatus(ctx, m.ID, models.StatusOnline))
	key = e.warm(t, m.ID)
	deleted, err := e.svc.DeleteMasterStream(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "http://x/10", deleted.StreamURL)
	_, hit = e.cache.Get(ctx, key)
	assert.False(t, hit)
	assert.Equal(t, models.StatusVerificando, e.playlistStatus(t, m.ID))

	_, err = e.svc.DeleteMasterStream(ctx, first.ID)
	requireKind(t, err, apperr.KindNotFound)
	streams, err = e.svc.MasterStreams(ctx)
	require.NoError(t, err)
	assert.Len(t, streams, 1)
}

func TestCreateFromParsed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.CreateFromParsed(ctx, admin, nil)
	requireKind(t, err, apperr.KindValidation)

	n, err := e.svc.CreateFromParsed(ctx, admin, []models.StreamEntry{
		{Name: "A", URL: "http://x/1", StreamType: models.StreamTypeFilme},
		{URL: "http://x/2"},
		{Name: "no url"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	m, err := e.mem.GetMasterPlaylist(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnline, m.Status)

	streams, err := e.svc.MasterStreams(ctx)
	require.NoError(t, err)
	require.Len(t, streams, 2)
	assert.Equal(t, "Sem Nome", streams[1].Name)
	assert.Equal(t, models.StreamTypeCanal, streams[1].StreamType)

	// Re-submitting skips what is already there.
	n, err = e.svc.CreateFromParsed(ctx, admin, []models.StreamEntry{{Name: "A", URL: "http://x/1"}, {Name: "C", URL: "http://x/3"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSyncMaster(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.SyncMaster(ctx, admin)
	requireKind(t, err, apperr.KindNotFound)

	require.NoError(t, afero.WriteFile(e.fs, "/data/import/a.m3u", []byte(sampleList), 0o644))
	require.NoError(t, afero.WriteFile(e.fs, "/data/import/b.m3u", []byte("#EXTM3U\n#EXTINF:-1,B\nhttp://b/1\n"), 0o644))
	require.NoError(t, afero.WriteFile(e.fs, "/data/import/broken.m3u", []byte("garbage"), 0o644))

	m := e.master(t, "http://old/1")
	key := e.warm(t, m.ID)

	res, err := e.svc.SyncMaster(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Streams)
	assert.Equal(t, models.StatusVerificando, res.Playlist.Status)
	_, hit := e.cache.Get(ctx, key)
	assert.False(t, hit)

	streams, err := e.svc.MasterStreams(ctx)
	require.NoError(t, err)
	urls := make([]string, len(streams))
	for i, s := range streams {
		urls[i] = s.StreamURL
	}
	assert.ElementsMatch(t, []string{"http://up/1", "http://up/2", "http://b/1"}, urls)
}

func TestSyncMaster_NoStreams(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, afero.WriteFile(e.fs, "/data/import/empty.m3u", []byte("#EXTM3U\n"), 0o644))
	_, err := e.svc.SyncMaster(context.Background(), admin)
	requireKind(t, err, apperr.KindValidation)
}

func TestIngestURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/list.m3u":
			_, _ = w.Write([]byte(sampleList))
		case "/html":
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	e := newEnv(t)
	ctx := context.Background()
	m := e.master(t, "http://up/1")

	res, err := e.svc.IngestURL(ctx, admin, srv.URL+"/list.m3u")
	require.NoError(t, err)
	assert.Equal(t, &IngestResult{Fetched: 2, Added: 1}, res)
	assert.Equal(t, models.StatusVerificando, e.playlistStatus(t, m.ID))

	_, err = e.svc.IngestURL(ctx, admin, srv.URL+"/html")
	requireKind(t, err, apperr.KindValidation)
	_, err = e.svc.IngestURL(ctx, admin, srv.URL+"/missing")
	requireKind(t, err, apperr.KindTransientIO)
	_, err = e.svc.IngestURL(ctx, admin, "ftp://x/list.m3u")
	requireKind(t, err, apperr.KindValidation)
}
