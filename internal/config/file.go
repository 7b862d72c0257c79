package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	DatabaseURL      string `yaml:"database_url"`
	ServerPort       string `yaml:"server_port"`
	RedisURL         string `yaml:"redis_url"`
	JWTSecret        string `yaml:"jwt_secret"`
	UserAgent        string `yaml:"user_agent"`
	FetchTimeout     string `yaml:"fetch_timeout"`
	LogLevel         string `yaml:"log_level"`
	LogFormat        string `yaml:"log_format"`
	LogFile          string `yaml:"log_file"`
	ServerBaseURL    string `yaml:"server_base_url"`
	SourceDir        string `yaml:"source_dir"`
	OutputDir        string `yaml:"output_dir"`
	ImportDir        string `yaml:"import_dir"`
	TempDir          string `yaml:"temp_dir"`
	QueueDir         string `yaml:"queue_dir"`
	FailedQueueDir   string `yaml:"failed_queue_dir"`
	MasterTextPath   string `yaml:"master_text_path"`
	ParserServiceURL string `yaml:"parser_service_url"`
	ParserAddr       string `yaml:"parser_addr"`
	MetricsAddr      string `yaml:"metrics_addr"`
	CacheTTL         string `yaml:"cache_ttl"`
	CacheSweep       string `yaml:"cache_sweep"`
	RefreshInterval  string `yaml:"refresh_interval"`
	QueueQuiescence  string `yaml:"queue_quiescence"`
	QueueBackend     string `yaml:"queue_backend"`
	Concurrency      int    `yaml:"processor_concurrency"`
	NormalizeURLs    bool   `yaml:"normalize_urls"`
}

// LoadFromFile loads config from a YAML file. database_url is required.
// Durations use Go syntax ("15s", "1h").
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}

	c := Defaults()
	c.DatabaseURL = f.DatabaseURL
	c.RedisURL = f.RedisURL
	c.JWTSecret = f.JWTSecret
	c.LogFile = f.LogFile
	c.FailedQueueDir = f.FailedQueueDir
	c.MetricsAddr = f.MetricsAddr
	c.NormalizeURLs = f.NormalizeURLs
	for _, s := range []struct {
		dst *string
		v   string
	}{
		{&c.ServerPort, f.ServerPort},
		{&c.UserAgent, f.UserAgent},
		{&c.LogLevel, f.LogLevel},
		{&c.LogFormat, f.LogFormat},
		{&c.ServerBaseURL, f.ServerBaseURL},
		{&c.SourceDir, f.SourceDir},
		{&c.OutputDir, f.OutputDir},
		{&c.ImportDir, f.ImportDir},
		{&c.TempDir, f.TempDir},
		{&c.QueueDir, f.QueueDir},
		{&c.MasterTextPath, f.MasterTextPath},
		{&c.ParserServiceURL, f.ParserServiceURL},
		{&c.ParserAddr, f.ParserAddr},
		{&c.QueueBackend, f.QueueBackend},
	} {
		if s.v != "" {
			*s.dst = s.v
		}
	}
	for _, d := range []struct {
		dst *time.Duration
		key string
		v   string
	}{
		{&c.FetchTimeout, "fetch_timeout", f.FetchTimeout},
		{&c.CacheTTL, "cache_ttl", f.CacheTTL},
		{&c.CacheSweep, "cache_sweep", f.CacheSweep},
		{&c.RefreshInterval, "refresh_interval", f.RefreshInterval},
		{&c.QueueQuiescence, "queue_quiescence", f.QueueQuiescence},
	} {
		if err := setDuration(d.dst, d.key, d.v); err != nil {
			return nil, err
		}
	}
	if f.Concurrency > 0 {
		c.Concurrency = f.Concurrency
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}
