package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Queue backends.
const (
	QueueDir   = "dir"
	QueueRedis = "redis"
)

// Config holds the settings shared by every fastpanel process.
type Config struct {
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	ServerPort  string `yaml:"server_port" env:"PORT"`
	RedisURL    string `yaml:"redis_url" env:"REDIS_URL"`
	JWTSecret   string `yaml:"jwt_secret" env:"JWT_SECRET"`

	UserAgent    string        `yaml:"user_agent" env:"FETCHER_USER_AGENT"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" env:"FETCHER_TIMEOUT"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`
	LogFile   string `yaml:"log_file" env:"LOG_FILE"`

	// ServerBaseURL prefixes the restream URLs written to client playlists.
	ServerBaseURL  string `yaml:"server_base_url" env:"SERVER_BASE_URL"`
	SourceDir      string `yaml:"source_dir" env:"SOURCE_PLAYLISTS_DIR"`
	OutputDir      string `yaml:"output_dir" env:"CLIENT_PLAYLISTS_DIR"`
	ImportDir      string `yaml:"import_dir" env:"M3U_IMPORT_DIR"`
	TempDir        string `yaml:"temp_dir" env:"TEMP_DIR"`
	QueueDir       string `yaml:"queue_dir" env:"QUEUE_DIR"`
	FailedQueueDir string `yaml:"failed_queue_dir" env:"FAILED_QUEUE_DIR"`
	MasterTextPath string `yaml:"master_text_path" env:"MASTER_TEXT_PATH"`

	ParserServiceURL string `yaml:"parser_service_url" env:"PARSER_SERVICE_URL"`
	ParserAddr       string `yaml:"parser_addr" env:"PARSER_ADDR"`
	MetricsAddr      string `yaml:"metrics_addr" env:"METRICS_ADDR"`

	CacheTTL        time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
	CacheSweep      time.Duration `yaml:"cache_sweep" env:"CACHE_SWEEP"`
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"REFRESH_INTERVAL"`
	QueueQuiescence time.Duration `yaml:"queue_quiescence" env:"QUEUE_QUIESCENCE"`
	QueueBackend    string        `yaml:"queue_backend" env:"QUEUE_BACKEND"`
	Concurrency     int           `yaml:"processor_concurrency" env:"PROCESSOR_CONCURRENCY"`
	NormalizeURLs   bool          `yaml:"normalize_urls" env:"NORMALIZE_URLS"`
}

// Defaults returns a Config with every optional field set.
func Defaults() *Config {
	return &Config{
		ServerPort:       "3000",
		UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		FetchTimeout:     15 * time.Second,
		LogLevel:         "info",
		LogFormat:        "json",
		ServerBaseURL:    "https://iptvfast.me",
		SourceDir:        "source_playlists",
		OutputDir:        "M3U",
		ImportDir:        "import",
		TempDir:          os.TempDir(),
		QueueDir:         "queue/new-clients",
		MasterTextPath:   "master_playlist.txt",
		ParserServiceURL: "http://127.0.0.1:8083",
		ParserAddr:       "127.0.0.1:8083",
		CacheTTL:         time.Hour,
		CacheSweep:       10 * time.Minute,
		RefreshInterval:  5 * time.Minute,
		QueueQuiescence:  2 * time.Second,
		QueueBackend:     QueueDir,
		Concurrency:      4,
	}
}

// Load builds config from environment variables.
// If DATABASE_URL is not set, Load tries to load .env.local and .env from the current directory.
// DATABASE_URL is required; everything else has a default.
func Load() (*Config, error) {
	if os.Getenv("DATABASE_URL") == "" {
		loadEnvFiles()
	}
	c, err := fromEnv()
	if err != nil {
		return nil, err
	}
	if c.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}
	return c, nil
}

// LoadParser is Load for the parser service, which has no database.
func LoadParser() (*Config, error) {
	loadEnvFiles()
	return fromEnv()
}

func fromEnv() (*Config, error) {
	c := Defaults()
	c.DatabaseURL = os.Getenv("DATABASE_URL")
	c.RedisURL = os.Getenv("REDIS_URL")
	c.JWTSecret = os.Getenv("JWT_SECRET")
	setString(&c.ServerPort, "PORT")
	setString(&c.UserAgent, "FETCHER_USER_AGENT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	setString(&c.LogFile, "LOG_FILE")
	setString(&c.ServerBaseURL, "SERVER_BASE_URL")
	setString(&c.SourceDir, "SOURCE_PLAYLISTS_DIR")
	setString(&c.OutputDir, "CLIENT_PLAYLISTS_DIR")
	setString(&c.ImportDir, "M3U_IMPORT_DIR")
	setString(&c.TempDir, "TEMP_DIR")
	setString(&c.QueueDir, "QUEUE_DIR")
	setString(&c.FailedQueueDir, "FAILED_QUEUE_DIR")
	setString(&c.MasterTextPath, "MASTER_TEXT_PATH")
	setString(&c.ParserServiceURL, "PARSER_SERVICE_URL")
	setString(&c.ParserAddr, "PARSER_ADDR")
	setString(&c.MetricsAddr, "METRICS_ADDR")
	setString(&c.QueueBackend, "QUEUE_BACKEND")

	for _, d := range []struct {
		dst *time.Duration
		key string
	}{
		{&c.FetchTimeout, "FETCHER_TIMEOUT"},
		{&c.CacheTTL, "CACHE_TTL"},
		{&c.CacheSweep, "CACHE_SWEEP"},
		{&c.RefreshInterval, "REFRESH_INTERVAL"},
		{&c.QueueQuiescence, "QUEUE_QUIESCENCE"},
	} {
		if err := setDuration(d.dst, d.key, os.Getenv(d.key)); err != nil {
			return nil, err
		}
	}
	if s := os.Getenv("PROCESSOR_CONCURRENCY"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("PROCESSOR_CONCURRENCY: invalid value %q", s)
		}
		c.Concurrency = n
	}
	if s := os.Getenv("NORMALIZE_URLS"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("NORMALIZE_URLS: %w", err)
		}
		c.NormalizeURLs = b
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fmt.Errorf("%s: invalid duration %q", key, v)
	}
	*dst = d
	return nil
}

func (c *Config) validate() error {
	switch c.QueueBackend {
	case QueueDir:
	case QueueRedis:
		if c.RedisURL == "" {
			return ErrRedisQueueWithoutURL
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownQueueBackend, c.QueueBackend)
	}
	return nil
}
