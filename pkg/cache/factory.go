package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AdapterKind selects the backend built by NewClient.
type AdapterKind string

const (
	// AdapterAuto uses Redis when configured and memory otherwise.
	AdapterAuto AdapterKind = "auto"

	// AdapterRedis requires a reachable Redis.
	AdapterRedis AdapterKind = "redis"

	// AdapterMemory always uses the in-process backend.
	AdapterMemory AdapterKind = "memory"
)

// DefaultConnectTimeout bounds the initial PING against Redis.
const DefaultConnectTimeout = 5 * time.Second

// ParseAdapterKind parses "auto", "redis" or "memory" (case-insensitive).
// An empty string selects AdapterAuto.
func ParseAdapterKind(s string) (AdapterKind, error) {
	switch kind := AdapterKind(strings.ToLower(strings.TrimSpace(s))); kind {
	case "":
		return AdapterAuto, nil
	case AdapterAuto, AdapterRedis, AdapterMemory:
		return kind, nil
	default:
		return "", &ConfigurationError{
			Field:   "adapter",
			Message: fmt.Sprintf("unknown adapter %q (want auto, redis or memory)", s),
		}
	}
}

// Options configures NewClient.
type Options struct {
	// Adapter selects the backend (default: auto)
	Adapter AdapterKind

	// Namespace prefixes every Redis key; required for redis and auto
	Namespace string

	// RedisURL is parsed with redis.ParseURL; the resulting client is owned by the store
	RedisURL string

	// Redis is an externally managed client; takes precedence over RedisURL and is never closed
	Redis redis.UniversalClient

	// AllowFallback lets auto degrade to memory when Redis fails
	AllowFallback bool

	// ConnectTimeout bounds the construction PING (default: 5s)
	ConnectTimeout time.Duration

	// OperationTimeout bounds every Redis call (0: caller context only)
	OperationTimeout time.Duration

	// SweepInterval for the memory backend (0: 30s default, negative disables)
	SweepInterval time.Duration

	// Serializer (default: JSONSerializer)
	Serializer Serializer

	// Logger (default: global zerolog logger with component=cache)
	Logger *zerolog.Logger

	// OnDegrade is called once when an auto store falls back to memory
	OnDegrade func(cause error)
}

// NewClient builds a Store according to opts.
//
// redis: a missing URL/client is a *ConfigurationError and an unreachable
// server is a *BackendError. auto: Redis is tried when configured; if it
// cannot be reached and AllowFallback is set, memory is used instead, and
// a Redis store that fails later degrades to memory once.
func NewClient(ctx context.Context, opts Options) (*Store, error) {
	kind, err := ParseAdapterKind(string(opts.Adapter))
	if err != nil {
		return nil, err
	}

	logger := log.With().Str("component", "cache").Logger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	storeOpts := []StoreOption{
		WithLogger(logger),
		WithNamespace(opts.Namespace),
		WithSerializer(opts.Serializer),
	}

	hasRedis := opts.Redis != nil || opts.RedisURL != ""
	if kind != AdapterMemory && hasRedis && strings.TrimSpace(opts.Namespace) == "" {
		return nil, &ConfigurationError{Field: "namespace", Message: "namespace is required for redis"}
	}

	switch kind {
	case AdapterMemory:
		return NewStore(newMemoryFor(opts), storeOpts...), nil

	case AdapterRedis:
		if !hasRedis {
			return nil, &ConfigurationError{Field: "redis", Message: "redis adapter selected", Err: ErrMissingRedis}
		}
		backend, err := connectRedis(ctx, opts)
		if err != nil {
			return nil, err
		}
		return NewStore(backend, storeOpts...), nil

	default: // AdapterAuto
		if !hasRedis {
			logger.Info().Str("namespace", opts.Namespace).Msg("No Redis configured, using memory cache")
			return NewStore(newMemoryFor(opts), storeOpts...), nil
		}

		backend, err := connectRedis(ctx, opts)
		if err != nil {
			if !opts.AllowFallback {
				return nil, err
			}
			CacheDegradations.Inc()
			logger.Warn().Err(err).Str("namespace", opts.Namespace).
				Msg("Redis unavailable at startup, degrading to memory cache")
			if opts.OnDegrade != nil {
				opts.OnDegrade(err)
			}
			return NewStore(startupFallback{newMemoryFor(opts)}, storeOpts...), nil
		}

		if !opts.AllowFallback {
			return NewStore(backend, storeOpts...), nil
		}
		fb := newFallbackBackend(backend, newMemoryFor(opts), logger, opts.OnDegrade)
		return NewStore(fb, storeOpts...), nil
	}
}

// connectRedis builds a Redis backend and verifies it with PING.
func connectRedis(ctx context.Context, opts Options) (*RedisBackend, error) {
	cfg := RedisConfig{
		KeyPrefix:        opts.Namespace,
		OperationTimeout: opts.OperationTimeout,
	}

	rdb := opts.Redis
	if rdb == nil {
		redisOpts, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, &ConfigurationError{Field: "redis_url", Message: "invalid redis url", Err: err}
		}
		rdb = redis.NewClient(redisOpts)
		cfg.ownsClient = true
	}

	backend := NewRedisBackend(rdb, cfg)

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := backend.Ping(pingCtx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return backend, nil
}

func newMemoryFor(opts Options) *MemoryBackend {
	interval := opts.SweepInterval
	if interval == 0 {
		interval = DefaultSweepInterval
	}
	return NewMemoryBackend(WithSweepInterval(interval))
}
