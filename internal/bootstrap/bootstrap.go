// Package bootstrap wires the dependencies shared by the fastpanel
// binaries from a loaded config.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/fastpanel/fastpanel/internal/cache"
	"github.com/fastpanel/fastpanel/internal/config"
	"github.com/fastpanel/fastpanel/internal/filestore"
	"github.com/fastpanel/fastpanel/internal/logging"
	"github.com/fastpanel/fastpanel/internal/metrics"
	"github.com/fastpanel/fastpanel/internal/queue"
	"github.com/fastpanel/fastpanel/internal/store"
)

// LoadConfig reads the YAML file at path, or the environment when path is empty.
func LoadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// Logger builds the process logger from cfg.
func Logger(service string, cfg *config.Config) *logrus.Entry {
	return logging.New(service, logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
}

// MigrationsPath locates the migrations directory next to the working
// directory or the executable.
func MigrationsPath() string {
	abs, err := filepath.Abs("migrations")
	if err != nil {
		abs = "migrations"
	}
	if _, err := os.Stat(abs); err != nil {
		if exe, e := os.Executable(); e == nil {
			abs = filepath.Join(filepath.Dir(exe), "migrations")
		}
	}
	return "file://" + abs
}

// OpenStore applies pending migrations and connects to Postgres.
func OpenStore(ctx context.Context, cfg *config.Config, log *logrus.Entry) (*store.Postgres, error) {
	path := MigrationsPath()
	if err := store.RunMigrations(cfg.DatabaseURL, path); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	log.WithField("migrations", path).Info("database ready")
	return pg, nil
}

// Cache is the playlist cache of a process. Redis is nil when REDIS_URL
// is unset, in which case Playlists is process-local.
type Cache struct {
	Playlists cache.PlaylistCache
	Redis     *cache.Redis
	memory    *cache.Memory
}

// OpenCache connects to Redis when configured and falls back to the
// in-memory TTL cache otherwise.
func OpenCache(ctx context.Context, cfg *config.Config, log *logrus.Entry) (*Cache, error) {
	if cfg.RedisURL == "" {
		m := cache.NewMemory(cfg.CacheTTL, cfg.CacheSweep)
		log.Info("redis disabled (REDIS_URL not set), using in-memory playlist cache")
		return &Cache{Playlists: m, memory: m}, nil
	}
	r, err := cache.New(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	if err := r.Ping(ctx); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info("redis connected (shared playlist cache)")
	return &Cache{Playlists: cache.NewRedisPlaylists(r, cfg.CacheTTL, log), Redis: r}, nil
}

// Close releases the cache connection or stops the sweep goroutine.
func (c *Cache) Close() {
	if c.memory != nil {
		c.memory.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}

// Files opens the playlist directories on the OS filesystem. Paths are
// made absolute since file:// URLs and the parser service require it.
func Files(cfg *config.Config) (*filestore.Files, error) {
	dirs := filestore.Dirs{
		Source: cfg.SourceDir,
		Output: cfg.OutputDir,
		Temp:   cfg.TempDir,
		Import: cfg.ImportDir,
	}
	for _, p := range []*string{&dirs.Source, &dirs.Output, &dirs.Temp, &dirs.Import} {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", *p, err)
		}
		*p = abs
	}
	return filestore.New(afero.NewOsFs(), dirs)
}

// JobQueue returns the configured queue. A directory queue is returned as
// *queue.Dir so the processor can watch it.
func JobQueue(cfg *config.Config, c *Cache) (queue.Producer, *queue.Dir, error) {
	if cfg.QueueBackend == config.QueueRedis {
		if c.Redis == nil {
			return nil, nil, config.ErrRedisQueueWithoutURL
		}
		return queue.NewRedisQueue(c.Redis, 0), nil, nil
	}
	d, err := queue.NewDir(afero.NewOsFs(), cfg.QueueDir, cfg.FailedQueueDir)
	if err != nil {
		return nil, nil, err
	}
	return d, d, nil
}

// ServeMetrics exposes /metrics on addr until ctx is done. An empty addr
// disables it.
func ServeMetrics(ctx context.Context, addr string, log *logrus.Entry) {
	if addr == "" {
		return
	}
	r := chi.NewRouter()
	r.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		log.WithField("addr", addr).Info("metrics listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server")
		}
	}()
}
