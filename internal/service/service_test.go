package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fastpanel/fastpanel/internal/apperr"
	"github.com/fastpanel/fastpanel/internal/cache"
	"github.com/fastpanel/fastpanel/internal/filestore"
	"github.com/fastpanel/fastpanel/internal/models"
	"github.com/fastpanel/fastpanel/internal/queue"
	"github.com/fastpanel/fastpanel/internal/store"
	"github.com/fastpanel/fastpanel/internal/store/storetest"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

var (
	admin    = Caller{UserID: 1, Role: models.RoleSuperAdmin}
	reseller = Caller{UserID: 2, Role: models.RoleReseller}
	other    = Caller{UserID: 3, Role: models.RoleReseller}
)

type env struct {
	svc   *Service
	mem   *storetest.Memory
	cache *cache.Memory
	fs    afero.Fs
	files *filestore.Files
	jobs  *queue.Dir
	hook  *logtest.Hook
}

type failingProducer struct{ err error }

func (p failingProducer) Enqueue(context.Context, queue.Job) error { return p.err }

func newEnv(t *testing.T, opts ...func(*Options)) *env {
	t.Helper()
	l, hook := logtest.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)
	log := logrus.NewEntry(l)

	fs := afero.NewMemMapFs()
	files, err := filestore.New(fs, filestore.Dirs{
		Source: "/data/sources",
		Output: "/data/out",
		Temp:   "/data/tmp",
		Import: "/data/import",
	})
	require.NoError(t, err)
	jobs, err := queue.NewDir(fs, "/data/queue", "")
	require.NoError(t, err)

	c := cache.NewMemory(time.Hour, time.Hour)
	t.Cleanup(c.Close)

	o := Options{
		MasterTextPath: "/data/master_playlist.txt",
		BcryptCost:     bcrypt.MinCost,
		Now:            func() time.Time { return fixedNow },
	}
	for _, fn := range opts {
		fn(&o)
	}

	mem := storetest.New()
	svc := New(store.NewCachedStore(mem, c, log), files, c, jobs, o, log)
	return &env{svc: svc, mem: mem, cache: c, fs: fs, files: files, jobs: jobs, hook: hook}
}

// source registers a source playlist file with the given content.
func (e *env) source(t *testing.T, name, content string) *models.SourcePlaylist {
	t.Helper()
	sp, err := e.svc.CreateSource(context.Background(), SourceInput{Name: name, Type: "LIVE", Content: content})
	require.NoError(t, err)
	return sp
}

func (e *env) master(t *testing.T, urls ...string) *models.Playlist {
	t.Helper()
	ctx := context.Background()
	m, err := e.mem.EnsureMasterPlaylist(ctx, admin.UserID)
	require.NoError(t, err)
	entries := make([]models.StreamEntry, len(urls))
	for i, u := range urls {
		entries[i] = models.StreamEntry{Name: "S" + u, URL: u, StreamType: models.StreamTypeCanal}
	}
	if len(entries) > 0 {
		_, err = e.mem.AddStreams(ctx, m.ID, entries)
		require.NoError(t, err)
	}
	return m
}

func (e *env) playlistStatus(t *testing.T, id int64) models.PlaylistStatus {
	t.Helper()
	p, err := e.mem.GetPlaylist(context.Background(), id)
	require.NoError(t, err)
	return p.Status
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperr.KindOf(err), "error: %v", err)
}

func TestStoreErr(t *testing.T) {
	requireKind(t, storeErr(store.ErrNotFound, "gone", ""), apperr.KindNotFound)
	requireKind(t, storeErr(store.ErrConflict, "", "dup"), apperr.KindConflict)
	requireKind(t, storeErr(store.ErrInvalidReference, "", ""), apperr.KindValidation)
	requireKind(t, storeErr(store.ErrNotFound, "", ""), apperr.KindInternal)

	boom := errors.New("boom")
	require.Equal(t, boom, storeErr(boom, "gone", "dup"))
	require.NoError(t, storeErr(nil, "gone", "dup"))
}
