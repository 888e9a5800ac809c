package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store implements Client on top of a Backend.
//
// Read failures (backend errors, timeouts, corrupt payloads) are logged and
// reported as misses so callers fall back to the source of truth. Write
// failures are returned.
type Store struct {
	backend    Backend
	serializer Serializer
	namespace  string
	logger     zerolog.Logger
}

var _ Client = (*Store)(nil)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSerializer replaces the default JSONSerializer.
func WithSerializer(s Serializer) StoreOption {
	return func(st *Store) {
		if s != nil {
			st.serializer = s
		}
	}
}

// WithLogger sets the logger used for swallowed read failures.
func WithLogger(logger zerolog.Logger) StoreOption {
	return func(st *Store) {
		st.logger = logger
	}
}

// WithNamespace records the namespace in log lines.
func WithNamespace(namespace string) StoreOption {
	return func(st *Store) {
		st.namespace = namespace
	}
}

// NewStore wraps a backend.
func NewStore(backend Backend, opts ...StoreOption) *Store {
	if backend == nil {
		panic("cache backend cannot be nil")
	}
	st := &Store{
		backend:    backend,
		serializer: JSONSerializer{},
		logger:     log.With().Str("component", "cache").Logger(),
	}
	for _, opt := range opts {
		opt(st)
	}
	if st.namespace != "" {
		st.logger = st.logger.With().Str("namespace", st.namespace).Logger()
	}
	return st
}

// NewMemory returns a Store over a fresh MemoryBackend with JSON serialization.
func NewMemory(opts ...MemoryOption) *Store {
	return NewStore(NewMemoryBackend(opts...))
}

// Backend returns the name of the backend currently serving requests.
func (s *Store) Backend() string {
	return s.backend.Name()
}

// Degraded reports whether an auto store has fallen back to memory.
func (s *Store) Degraded() bool {
	if d, ok := s.backend.(interface{ Degraded() bool }); ok {
		return d.Degraded()
	}
	return false
}

// Get decodes the entry for key into dest and reports a hit.
func (s *Store) Get(ctx context.Context, key string, dest any) bool {
	start := time.Now()
	payload, found, err := s.backend.Load(ctx, key)
	backend := s.observe("get", start)

	if err != nil {
		CacheErrors.WithLabelValues(backend, "get").Inc()
		CacheMisses.WithLabelValues(backend).Inc()
		s.logger.Warn().Err(err).Str("backend", backend).Str("key", key).
			Msg("Cache get failed, treating as miss")
		return false
	}
	if !found {
		CacheMisses.WithLabelValues(backend).Inc()
		s.logger.Debug().Str("backend", backend).Str("key", key).Msg("Cache miss")
		return false
	}

	if err := s.serializer.Deserialize(payload, dest); err != nil {
		CacheErrors.WithLabelValues(backend, "get").Inc()
		CacheMisses.WithLabelValues(backend).Inc()
		s.logger.Warn().Err(err).Str("backend", backend).Str("key", key).
			Msg("Cache entry could not be decoded, treating as miss")
		return false
	}

	CacheHits.WithLabelValues(backend).Inc()
	s.logger.Debug().Str("backend", backend).Str("key", key).Msg("Cache hit")
	return true
}

// Set serializes value and stores it under key.
func (s *Store) Set(ctx context.Context, key string, value any, opts SetOptions) error {
	payload, err := s.serializer.Serialize(value)
	if err != nil {
		CacheErrors.WithLabelValues(s.backend.Name(), "set").Inc()
		return err
	}

	start := time.Now()
	err = s.backend.Save(ctx, key, payload, opts.TTL())
	backend := s.observe("set", start)
	if err != nil {
		CacheErrors.WithLabelValues(backend, "set").Inc()
		return err
	}

	s.logger.Debug().Str("backend", backend).Str("key", key).
		Int("ttl_seconds", opts.TTLSeconds).Msg("Cached value")
	return nil
}

// Del removes key.
func (s *Store) Del(ctx context.Context, key string) (int, error) {
	start := time.Now()
	n, err := s.backend.Remove(ctx, key)
	backend := s.observe("del", start)
	if err != nil {
		CacheErrors.WithLabelValues(backend, "del").Inc()
		return 0, err
	}
	return n, nil
}

// TTL returns the remaining seconds of key, rounded up.
func (s *Store) TTL(ctx context.Context, key string) (int, bool) {
	start := time.Now()
	ttl, ok, err := s.backend.ExpiresIn(ctx, key)
	backend := s.observe("ttl", start)
	if err != nil {
		CacheErrors.WithLabelValues(backend, "ttl").Inc()
		s.logger.Warn().Err(err).Str("backend", backend).Str("key", key).
			Msg("Cache ttl failed, treating as missing")
		return 0, false
	}
	if !ok {
		return 0, false
	}
	return int((ttl + time.Second - 1) / time.Second), true
}

// DeleteByPrefix removes all keys starting with prefix.
func (s *Store) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	start := time.Now()
	n, err := s.backend.RemovePrefix(ctx, prefix)
	backend := s.observe("delete_prefix", start)
	if err != nil {
		CacheErrors.WithLabelValues(backend, "delete_prefix").Inc()
		return n, err
	}

	s.logger.Debug().Str("backend", backend).Str("prefix", prefix).
		Int("removed", n).Msg("Deleted keys by prefix")
	return n, nil
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// observe records the operation duration and returns the backend name.
func (s *Store) observe(op string, start time.Time) string {
	backend := s.backend.Name()
	CacheOperationDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
	return backend
}

// GetAs is a typed Get.
func GetAs[T any](ctx context.Context, c Client, key string) (T, bool) {
	var v T
	if !c.Get(ctx, key, &v) {
		var zero T
		return zero, false
	}
	return v, true
}
