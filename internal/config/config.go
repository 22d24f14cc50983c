package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"urltree/internal/tree"
)

const DefaultSourceURL = "https://rest-test-eight.vercel.app/api/test"

type Config struct {
	Port           int           `json:"port"`
	DataDir        string        `json:"data_dir"`
	SourceURL      string        `json:"source_url"`
	CacheTTL       time.Duration `json:"cache_ttl"`
	CacheMaxSize   int           `json:"cache_max_size"`
	FetchTimeout   time.Duration `json:"fetch_timeout"`
	FetchRetries   int           `json:"fetch_retries"`
	LogLevel       string        `json:"log_level"`
	LogFormat      string        `json:"log_format"`
	MetricsEnabled bool          `json:"metrics_enabled"`
	ConflictPolicy string        `json:"conflict_policy"`
}

func defaults() *Config {
	return &Config{
		Port:           8000,
		DataDir:        "./.data",
		SourceURL:      DefaultSourceURL,
		CacheTTL:       10 * time.Minute,
		CacheMaxSize:   16,
		FetchTimeout:   30 * time.Second,
		FetchRetries:   3,
		LogLevel:       "info",
		LogFormat:      "json",
		MetricsEnabled: true,
		ConflictPolicy: tree.PolicyDirectoryWins.String(),
	}
}

// Load reads command line flags, then applies environment overrides.
func Load() *Config {
	return load(flag.CommandLine, os.Args[1:], os.Getenv)
}

func load(fs *flag.FlagSet, args []string, getenv func(string) string) *Config {
	config := defaults()

	fs.IntVar(&config.Port, "port", config.Port, "Port to listen on")
	fs.StringVar(&config.DataDir, "data-dir", config.DataDir, "Directory for persistent data storage")
	fs.StringVar(&config.SourceURL, "source-url", config.SourceURL, "URL of the upstream file list")
	fs.DurationVar(&config.CacheTTL, "cache-ttl", config.CacheTTL, "How long a built tree stays cached")
	fs.IntVar(&config.CacheMaxSize, "cache-max-size", config.CacheMaxSize, "Maximum number of in-memory snapshots")
	fs.DurationVar(&config.FetchTimeout, "fetch-timeout", config.FetchTimeout, "Timeout of a single upstream request")
	fs.IntVar(&config.FetchRetries, "fetch-retries", config.FetchRetries, "Attempts per upstream fetch")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "Log format (json, console)")
	fs.BoolVar(&config.MetricsEnabled, "metrics", config.MetricsEnabled, "Expose Prometheus metrics on /metrics")
	fs.StringVar(&config.ConflictPolicy, "conflict-policy", config.ConflictPolicy, "File/directory name conflicts: directory-wins or strict")
	fs.Parse(args)

	// Override with environment variables
	if port := getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Port = p
		}
	}
	if dataDir := getenv("DATA_DIR"); dataDir != "" {
		config.DataDir = dataDir
	}
	if sourceURL := getenv("SOURCE_URL"); sourceURL != "" {
		config.SourceURL = sourceURL
	}
	if ttl := getenv("CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.CacheTTL = d
		}
	}
	if size := getenv("CACHE_MAX_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			config.CacheMaxSize = n
		}
	}
	if timeout := getenv("FETCH_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.FetchTimeout = d
		}
	}
	if retries := getenv("FETCH_RETRIES"); retries != "" {
		if n, err := strconv.Atoi(retries); err == nil {
			config.FetchRetries = n
		}
	}
	if level := getenv("LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
	if format := getenv("LOG_FORMAT"); format != "" {
		config.LogFormat = format
	}
	if enabled := getenv("METRICS_ENABLED"); enabled != "" {
		config.MetricsEnabled = enabled == "true"
	}
	if policy := getenv("CONFLICT_POLICY"); policy != "" {
		config.ConflictPolicy = policy
	}

	return config
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}
	if c.SourceURL == "" {
		return fmt.Errorf("source URL cannot be empty")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if c.CacheMaxSize < 1 {
		return fmt.Errorf("cache max size must be at least 1")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.FetchRetries < 1 {
		return fmt.Errorf("fetch retries must be at least 1")
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("log format must be json or console")
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	return nil
}

// Policy returns the configured conflict policy.
func (c *Config) Policy() (tree.Policy, error) {
	return tree.ParsePolicy(c.ConflictPolicy)
}
