package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fastpanel")
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3000", c.ServerPort)
	assert.Equal(t, 15*time.Second, c.FetchTimeout)
	assert.Equal(t, time.Hour, c.CacheTTL)
	assert.Equal(t, 10*time.Minute, c.CacheSweep)
	assert.Equal(t, 5*time.Minute, c.RefreshInterval)
	assert.Equal(t, 2*time.Second, c.QueueQuiescence)
	assert.Equal(t, QueueDir, c.QueueBackend)
	assert.False(t, c.NormalizeURLs)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://db")
	t.Setenv("PORT", "8080")
	t.Setenv("FETCHER_TIMEOUT", "30s")
	t.Setenv("CACHE_TTL", "5m")
	t.Setenv("NORMALIZE_URLS", "true")
	t.Setenv("PROCESSOR_CONCURRENCY", "8")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("QUEUE_BACKEND", "redis")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", c.ServerPort)
	assert.Equal(t, 30*time.Second, c.FetchTimeout)
	assert.Equal(t, 5*time.Minute, c.CacheTTL)
	assert.True(t, c.NormalizeURLs)
	assert.Equal(t, 8, c.Concurrency)
	assert.Equal(t, QueueRedis, c.QueueBackend)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"duration", map[string]string{"CACHE_TTL": "soon"}},
		{"negative duration", map[string]string{"REFRESH_INTERVAL": "-1m"}},
		{"concurrency", map[string]string{"PROCESSOR_CONCURRENCY": "0"}},
		{"bool", map[string]string{"NORMALIZE_URLS": "maybe"}},
		{"backend", map[string]string{"QUEUE_BACKEND": "kafka"}},
		{"redis queue without url", map[string]string{"QUEUE_BACKEND": "redis"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://db")
			t.Setenv("REDIS_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadParser_NoDatabase(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PARSER_ADDR", "127.0.0.1:9999")
	c, err := LoadParser()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", c.ParserAddr)
	assert.Empty(t, c.DatabaseURL)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(
		"# local settings\nexport DATABASE_URL=\"postgres://from-file\"\nJWT_SECRET=abc # inline\nPORT=4000\n",
	), 0o644))
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PORT", "5000")
	// t.Setenv registers cleanup; unset the empty ones so the file applies.
	require.NoError(t, os.Unsetenv("DATABASE_URL"))
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://from-file", c.DatabaseURL)
	assert.Equal(t, "abc", c.JWTSecret)
	assert.Equal(t, "5000", c.ServerPort, "existing variables win")
}

func TestParseEnvLine(t *testing.T) {
	tests := []struct {
		line, key, value string
		ok               bool
	}{
		{"A=1", "A", "1", true},
		{"  B = two  ", "B", "two", true},
		{"export C='x y'", "C", "x y", true},
		{`D="has # hash"`, "D", "has # hash", true},
		{"E=val # note", "E", "val", true},
		{"# comment", "", "", false},
		{"=nokey", "", "", false},
		{"novalue", "", "", false},
	}
	for _, tt := range tests {
		key, value, ok := parseEnvLine(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.key, key, tt.line)
		assert.Equal(t, tt.value, value, tt.line)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fastpanel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_url: postgres://yaml
server_port: "9000"
fetch_timeout: 20s
refresh_interval: 1m
queue_backend: redis
redis_url: redis://localhost:6379/1
processor_concurrency: 2
normalize_urls: true
`), 0o644))

	c, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://yaml", c.DatabaseURL)
	assert.Equal(t, "9000", c.ServerPort)
	assert.Equal(t, 20*time.Second, c.FetchTimeout)
	assert.Equal(t, time.Minute, c.RefreshInterval)
	assert.Equal(t, time.Hour, c.CacheTTL)
	assert.Equal(t, QueueRedis, c.QueueBackend)
	assert.Equal(t, 2, c.Concurrency)
	assert.True(t, c.NormalizeURLs)

	require.NoError(t, os.WriteFile(path, []byte("server_port: \"1\"\n"), 0o644))
	_, err = LoadFromFile(path)
	assert.ErrorIs(t, err, ErrMissingDatabaseURL)

	require.NoError(t, os.WriteFile(path, []byte("database_url: x\ncache_ttl: later\n"), 0o644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
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
