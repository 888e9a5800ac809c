// Package config reads cachekit settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Sternrassler/go-cachekit/pkg/cache"
	"github.com/Sternrassler/go-cachekit/pkg/logging"
	"github.com/Sternrassler/go-cachekit/pkg/policy"
)

// Environment variables.
const (
	EnvAdapter          = "CACHE_ADAPTER"
	EnvNamespace        = "CACHE_NAMESPACE"
	EnvRedisURL         = "REDIS_URL"
	EnvAllowFallback    = "CACHE_ALLOW_FALLBACK"
	EnvConnectTimeout   = "CACHE_CONNECT_TIMEOUT"
	EnvOperationTimeout = "CACHE_OPERATION_TIMEOUT"
	EnvSweepInterval    = "CACHE_SWEEP_INTERVAL"
	EnvPolicyFile       = "CACHE_POLICY_FILE"
	EnvLogLevel         = "LOG_LEVEL"
	EnvLogPretty        = "LOG_PRETTY"
	EnvPort             = "PORT"
)

// DefaultNamespace is used when CACHE_NAMESPACE is not set.
const DefaultNamespace = "cachekit"

// Config holds cachekit settings.
type Config struct {
	Adapter          cache.AdapterKind
	Namespace        string
	RedisURL         string
	AllowFallback    bool
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
	SweepInterval    time.Duration
	PolicyFile       string
	LogLevel         logging.LogLevel
	LogPretty        bool
	Port             string

	// environ is kept for the TTL policy variables
	environ []string
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Adapter:          cache.AdapterAuto,
		Namespace:        DefaultNamespace,
		AllowFallback:    true,
		ConnectTimeout:   cache.DefaultConnectTimeout,
		OperationTimeout: 2 * time.Second,
		SweepInterval:    cache.DefaultSweepInterval,
		LogLevel:         logging.LevelInfo,
		Port:             "8080",
	}
}

// Load reads an optional .env file and the process environment.
// Variables already set in the process take precedence over the file.
func Load() (*Config, error) {
	vars, err := godotenv.Read()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}
	return FromEnviron(mergeEnviron(vars, os.Environ()))
}

// LoadFiles is like Load but reads the given env files, which must exist.
func LoadFiles(files ...string) (*Config, error) {
	vars, err := godotenv.Read(files...)
	if err != nil {
		return nil, fmt.Errorf("read env files: %w", err)
	}
	return FromEnviron(mergeEnviron(vars, os.Environ()))
}

// FromEnviron parses KEY=VALUE pairs. Unset variables keep their defaults.
func FromEnviron(env []string) (*Config, error) {
	lookup := make(map[string]string, len(env))
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			lookup[k] = v
		}
	}
	get := func(key string) (string, bool) {
		v, ok := lookup[key]
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	cfg := DefaultConfig()
	cfg.environ = append([]string(nil), env...)

	if v, ok := get(EnvAdapter); ok {
		kind, err := cache.ParseAdapterKind(v)
		if err != nil {
			return nil, err
		}
		cfg.Adapter = kind
	}
	if v, ok := get(EnvNamespace); ok {
		cfg.Namespace = v
	}
	if v, ok := get(EnvRedisURL); ok {
		cfg.RedisURL = v
	}
	if v, ok := get(EnvPolicyFile); ok {
		cfg.PolicyFile = v
	}
	if v, ok := get(EnvPort); ok {
		cfg.Port = v
	}

	var err error
	if v, ok := get(EnvAllowFallback); ok {
		if cfg.AllowFallback, err = parseBool(EnvAllowFallback, v); err != nil {
			return nil, err
		}
	}
	if v, ok := get(EnvLogPretty); ok {
		if cfg.LogPretty, err = parseBool(EnvLogPretty, v); err != nil {
			return nil, err
		}
	}
	if v, ok := get(EnvConnectTimeout); ok {
		if cfg.ConnectTimeout, err = parseDuration(EnvConnectTimeout, v); err != nil {
			return nil, err
		}
	}
	if v, ok := get(EnvOperationTimeout); ok {
		if cfg.OperationTimeout, err = parseDuration(EnvOperationTimeout, v); err != nil {
			return nil, err
		}
	}
	if v, ok := get(EnvSweepInterval); ok {
		if cfg.SweepInterval, err = parseDuration(EnvSweepInterval, v); err != nil {
			return nil, err
		}
	}
	if v, ok := get(EnvLogLevel); ok {
		level, err := logging.ParseLevel(v)
		if err != nil {
			return nil, &cache.ConfigurationError{Field: EnvLogLevel, Message: "invalid log level", Err: err}
		}
		cfg.LogLevel = level
	}

	return &cfg, nil
}

// Validate reports the first invalid setting as a *cache.ConfigurationError.
func (c *Config) Validate() error {
	if _, err := cache.ParseAdapterKind(string(c.Adapter)); err != nil {
		return err
	}
	if c.Adapter == cache.AdapterRedis && c.RedisURL == "" {
		return &cache.ConfigurationError{Field: EnvRedisURL, Message: "required when CACHE_ADAPTER=redis", Err: cache.ErrMissingRedis}
	}
	if c.Adapter != cache.AdapterMemory && c.RedisURL != "" && c.Namespace == "" {
		return &cache.ConfigurationError{Field: EnvNamespace, Message: "required with REDIS_URL"}
	}
	if c.ConnectTimeout < 0 {
		return &cache.ConfigurationError{Field: EnvConnectTimeout, Message: "must not be negative"}
	}
	if c.OperationTimeout < 0 {
		return &cache.ConfigurationError{Field: EnvOperationTimeout, Message: "must not be negative"}
	}
	if c.Port == "" {
		return &cache.ConfigurationError{Field: EnvPort, Message: "must not be empty"}
	}
	return nil
}

// CacheOptions converts the settings into factory options.
// CACHE_SWEEP_INTERVAL <= 0 disables the memory sweeper.
func (c *Config) CacheOptions() cache.Options {
	sweep := c.SweepInterval
	if sweep <= 0 {
		sweep = -1
	}
	return cache.Options{
		Adapter:          c.Adapter,
		Namespace:        c.Namespace,
		RedisURL:         c.RedisURL,
		AllowFallback:    c.AllowFallback,
		ConnectTimeout:   c.ConnectTimeout,
		OperationTimeout: c.OperationTimeout,
		SweepInterval:    sweep,
	}
}

// Policy builds the TTL policy: CACHE_POLICY_FILE when set, overlaid with
// the TTL environment variables.
func (c *Config) Policy() (*policy.Policy, error) {
	fromEnv, err := policy.FromEnviron(c.environ)
	if err != nil {
		return nil, err
	}
	if c.PolicyFile == "" {
		return fromEnv, nil
	}

	fromFile, err := policy.LoadFile(c.PolicyFile)
	if err != nil {
		return nil, err
	}
	return policy.Merge(fromFile, fromEnv), nil
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.LogLevel
	cfg.Pretty = c.LogPretty
	return cfg
}

// mergeEnviron appends file variables that the process does not set.
func mergeEnviron(file map[string]string, process []string) []string {
	set := make(map[string]bool, len(process))
	for _, kv := range process {
		if k, _, ok := strings.Cut(kv, "="); ok {
			set[k] = true
		}
	}

	out := append([]string(nil), process...)
	for k, v := range file {
		if !set[k] {
			out = append(out, k+"="+v)
		}
	}
	return out
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, &cache.ConfigurationError{Field: key, Message: fmt.Sprintf("not a boolean: %q", value), Err: err}
	}
	return b, nil
}

// parseDuration accepts Go durations ("1.5s") and plain seconds ("5").
func parseDuration(key, value string) (time.Duration, error) {
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, &cache.ConfigurationError{Field: key, Message: fmt.Sprintf("not a duration: %q", value), Err: err}
	}
	return d, nil
}
