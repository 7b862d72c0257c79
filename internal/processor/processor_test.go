package processor

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastpanel/fastpanel/internal/cache"
	"github.com/fastpanel/fastpanel/internal/fetcher"
	"github.com/fastpanel/fastpanel/internal/filestore"
	"github.com/fastpanel/fastpanel/internal/models"
	"github.com/fastpanel/fastpanel/internal/queue"
	"github.com/fastpanel/fastpanel/internal/store/storetest"
)

type env struct {
	ctx   context.Context
	st    *storetest.Memory
	files *filestore.Files
	mem   *cache.Memory
	q     *queue.Dir
	p     *Processor
	hook  *logtest.Hook
}

func newEnv(t *testing.T) *env {
	t.Helper()
	fs := afero.NewMemMapFs()
	files, err := filestore.New(fs, filestore.Dirs{Source: "/srv/sources", Output: "/srv/M3U"})
	require.NoError(t, err)
	q, err := queue.NewDir(fs, "/srv/queue", "")
	require.NoError(t, err)
	mem := cache.NewMemory(time.Hour, time.Hour)
	t.Cleanup(mem.Close)

	logger, hook := logtest.NewNullLogger()
	st := storetest.New()
	p := New(st, files, mem, Options{BaseURL: "http://panel:8080"}, logrus.NewEntry(logger))
	return &env{ctx: context.Background(), st: st, files: files, mem: mem, q: q, p: p, hook: hook}
}

func (e *env) source(t *testing.T, name, content string) int64 {
	t.Helper()
	path, err := e.files.CreateSource(content)
	require.NoError(t, err)
	id, err := e.st.CreateSourcePlaylist(e.ctx, &models.SourcePlaylist{Name: name, Type: "M3U", FilePath: path})
	require.NoError(t, err)
	return id
}

func (e *env) client(t *testing.T, username string, sources ...int64) int64 {
	t.Helper()
	id, err := e.st.CreateClient(e.ctx, &models.Client{Username: username, PasswordHash: "x", ResellerID: 1}, sources)
	require.NoError(t, err)
	require.NoError(t, e.q.Enqueue(e.ctx, queue.Job{ClientID: id, Username: username}))
	return id
}

// runOne claims and handles the single pending job.
func (e *env) runOne(t *testing.T) string {
	t.Helper()
	pending, err := e.q.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	d, err := e.q.Claim(pending[0])
	require.NoError(t, err)
	require.NotNil(t, d)
	e.p.handle(e.ctx, queue.NewDirConsumer(e.q, nil), d)
	return pending[0]
}

func (e *env) exists(path string) bool {
	ok, _ := afero.Exists(e.files.FS(), path)
	return ok
}

const (
	listA = "#EXTM3U\n#EXTINF:-1 tvg-name=\"A1\",A1\nhttp://a/1\n#EXTINF:-1,A2\nhttp://a/2\n"
	listB = "#EXTM3U\n#EXTINF:-1 group-title=\"Filmes\",B1\nhttp://b/1\n"
)

func TestProcess_Success(t *testing.T) {
	e := newEnv(t)
	a := e.source(t, "A", listA)
	broken := e.source(t, "Broken", "<html>not a playlist</html>")
	b := e.source(t, "B", listB)
	id := e.client(t, "ana", b, broken, a)

	jobPath := e.runOne(t)

	assert.False(t, e.exists(jobPath), "a processed job file must be deleted")

	c, err := e.st.GetClient(e.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, c.M3UURL)
	assert.Equal(t, "/M3U/ana.m3u", *c.M3UURL)

	out, err := e.files.ReadClientPlaylist("ana")
	require.NoError(t, err)
	items, err := fetcher.Parse(out)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "http://panel:8080/live/B1", items[0].URL, "streams follow assignment order")
	assert.Equal(t, "http://panel:8080/live/A1", items[1].URL)
	assert.Equal(t, "http://panel:8080/live/A2", items[2].URL)

	var warned bool
	for _, entry := range e.hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Data["source_playlist"] == "Broken" {
			warned = true
		}
	}
	assert.True(t, warned, "the skipped source must be logged")
}

func TestProcess_CachesParsedSources(t *testing.T) {
	e := newEnv(t)
	a := e.source(t, "A", listA)
	e.client(t, "ana", a)
	e.runOne(t)

	sp, err := e.st.GetSourcePlaylist(e.ctx, a)
	require.NoError(t, err)
	fp, err := e.files.Fingerprint(sp.FilePath)
	require.NoError(t, err)
	cached, ok := e.mem.Get(e.ctx, cache.SourceKey(a, fp))
	require.True(t, ok)
	assert.Len(t, cached, 2)

	require.NoError(t, e.files.ReplaceSource(sp.FilePath, listB+"#EXTINF:-1,B2\nhttp://b/2\n"))
	e.client(t, "bia", a)
	e.runOne(t)

	out, err := e.files.ReadClientPlaylist("bia")
	require.NoError(t, err)
	items := fetcher.Items(out)
	assert.Len(t, items, 2, "rewritten content must not be served from the old cache entry")
	assert.Equal(t, "http://panel:8080/live/B1", items[0].URL)
}

func TestProcess_MissingClientLeavesJob(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.q.Enqueue(e.ctx, queue.Job{ClientID: 404, Username: "ghost"}))

	jobPath := e.runOne(t)
	assert.True(t, e.exists(jobPath))
	_, err := e.files.ReadClientPlaylist("ghost")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestProcess_NoSources(t *testing.T) {
	e := newEnv(t)
	id, err := e.st.CreateClient(e.ctx, &models.Client{Username: "empty", ResellerID: 1}, nil)
	require.NoError(t, err)

	body := []byte(`{"clientId": ` + strconv.FormatInt(id, 10) + `, "username": "empty"}`)
	err = e.p.Process(e.ctx, &queue.Delivery{ID: "x", Body: body})
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestProcess_MalformedJob(t *testing.T) {
	e := newEnv(t)
	err := e.p.Process(e.ctx, &queue.Delivery{ID: "x", Body: []byte("{oops")})
	assert.ErrorIs(t, err, queue.ErrInvalidJob)
}

func TestProcess_ClientUpdateFailureLeavesJobAndURL(t *testing.T) {
	e := newEnv(t)
	a := e.source(t, "A", listA)
	id := e.client(t, "ana", a)
	e.st.ErrSetClientM3UURL = errors.New("db down")

	jobPath := e.runOne(t)
	assert.True(t, e.exists(jobPath), "the job must stay for a retry")

	c, err := e.st.GetClient(e.ctx, id)
	require.NoError(t, err)
	assert.Nil(t, c.M3UURL)
}

func TestRun_StopsOnCancel(t *testing.T) {
	e := newEnv(t)
	a := e.source(t, "A", listA)
	id := e.client(t, "ana", a)

	ctx, cancel := context.WithCancel(e.ctx)
	events := make(chan string)
	done := make(chan error, 1)
	go func() { done <- e.p.Run(ctx, queue.NewDirConsumer(e.q, events)) }()

	require.Eventually(t, func() bool {
		c, err := e.st.GetClient(e.ctx, id)
		return err == nil && c.M3UURL != nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
