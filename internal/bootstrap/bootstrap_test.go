package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastpanel/fastpanel/internal/cache"
	"github.com/fastpanel/fastpanel/internal/config"
	"github.com/fastpanel/fastpanel/internal/queue"
)

func nullLog() *logrus.Entry {
	l, _ := logtest.NewNullLogger()
	return logrus.NewEntry(l)
}

func TestOpenCache_Memory(t *testing.T) {
	c, err := OpenCache(context.Background(), config.Defaults(), nullLog())
	require.NoError(t, err)
	defer c.Close()
	assert.Nil(t, c.Redis)
	assert.IsType(t, &cache.Memory{}, c.Playlists)
}

func TestOpenCache_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Defaults()
	cfg.RedisURL = "redis://" + mr.Addr()

	c, err := OpenCache(context.Background(), cfg, nullLog())
	require.NoError(t, err)
	defer c.Close()
	require.NotNil(t, c.Redis)
	assert.IsType(t, &cache.RedisPlaylists{}, c.Playlists)

	producer, dir, err := JobQueue(&config.Config{QueueBackend: config.QueueRedis}, c)
	require.NoError(t, err)
	assert.Nil(t, dir)
	assert.IsType(t, &queue.RedisQueue{}, producer)
}

func TestJobQueue_Dir(t *testing.T) {
	cfg := config.Defaults()
	cfg.QueueDir = filepath.Join(t.TempDir(), "queue")
	producer, dir, err := JobQueue(cfg, &Cache{})
	require.NoError(t, err)
	require.NotNil(t, dir)
	assert.Same(t, dir, producer)

	cfg.QueueBackend = config.QueueRedis
	_, _, err = JobQueue(cfg, &Cache{})
	assert.ErrorIs(t, err, config.ErrRedisQueueWithoutURL)
}

func TestFiles_AbsoluteDirs(t *testing.T) {
	chdir(t, t.TempDir())
	cfg := config.Defaults()
	cfg.TempDir = "tmp"
	files, err := Files(cfg)
	require.NoError(t, err)

	path, err := files.CreateTemp("#EXTM3U\n")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
}

func TestMigrationsPath(t *testing.T) {
	assert.Contains(t, MigrationsPath(), "file://")
}

// chdir changes the working directory for the duration of the test
// (stand-in for testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
