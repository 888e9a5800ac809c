package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// fallbackBackend serves from a primary backend (Redis) until the first
// backend failure, then switches to a secondary backend (memory) for the rest
// of the process lifetime. There is no reconnection.
type fallbackBackend struct {
	primary   Backend
	secondary Backend
	degraded  atomic.Bool
	closed    atomic.Bool
	once      sync.Once
	logger    zerolog.Logger
	onDegrade func(cause error)
}

func newFallbackBackend(primary, secondary Backend, logger zerolog.Logger, onDegrade func(error)) *fallbackBackend {
	return &fallbackBackend{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
		onDegrade: onDegrade,
	}
}

func (f *fallbackBackend) Name() string {
	return f.active().Name()
}

// Degraded reports whether the secondary backend is serving requests.
func (f *fallbackBackend) Degraded() bool {
	return f.degraded.Load()
}

func (f *fallbackBackend) active() Backend {
	if f.degraded.Load() {
		return f.secondary
	}
	return f.primary
}

// tripped degrades on a backend failure that the caller did not cause by
// cancelling or expiring its own context. Failures after Close never degrade.
func (f *fallbackBackend) tripped(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil || f.closed.Load() || !IsBackendError(err) {
		return false
	}
	if errors.Is(err, ErrUnscopedPurge) {
		return false
	}
	f.once.Do(func() {
		f.degraded.Store(true)
		CacheDegradations.Inc()
		f.logger.Warn().Err(err).
			Str("from", f.primary.Name()).
			Str("to", f.secondary.Name()).
			Msg("Cache backend failed, degrading to memory for the rest of the process")
		if f.onDegrade != nil {
			f.onDegrade(err)
		}
	})
	return true
}

func (f *fallbackBackend) Load(ctx context.Context, key string) (string, bool, error) {
	if !f.degraded.Load() {
		payload, found, err := f.primary.Load(ctx, key)
		if !f.tripped(ctx, err) {
			return payload, found, err
		}
	}
	return f.secondary.Load(ctx, key)
}

func (f *fallbackBackend) Save(ctx context.Context, key, payload string, ttl time.Duration) error {
	if !f.degraded.Load() {
		err := f.primary.Save(ctx, key, payload, ttl)
		if !f.tripped(ctx, err) {
			return err
		}
	}
	return f.secondary.Save(ctx, key, payload, ttl)
}

func (f *fallbackBackend) Remove(ctx context.Context, key string) (int, error) {
	if !f.degraded.Load() {
		n, err := f.primary.Remove(ctx, key)
		if !f.tripped(ctx, err) {
			return n, err
		}
	}
	return f.secondary.Remove(ctx, key)
}

func (f *fallbackBackend) ExpiresIn(ctx context.Context, key string) (time.Duration, bool, error) {
	if !f.degraded.Load() {
		ttl, ok, err := f.primary.ExpiresIn(ctx, key)
		if !f.tripped(ctx, err) {
			return ttl, ok, err
		}
	}
	return f.secondary.ExpiresIn(ctx, key)
}

func (f *fallbackBackend) RemovePrefix(ctx context.Context, prefix string) (int, error) {
	if !f.degraded.Load() {
		n, err := f.primary.RemovePrefix(ctx, prefix)
		if !f.tripped(ctx, err) {
			return n, err
		}
	}
	return f.secondary.RemovePrefix(ctx, prefix)
}

func (f *fallbackBackend) Close() error {
	f.closed.Store(true)
	return errors.Join(f.primary.Close(), f.secondary.Close())
}

// startupFallback is the memory backend an auto store uses when Redis could
// not be reached at construction.
type startupFallback struct {
	*MemoryBackend
}

func (startupFallback) Degraded() bool { return true }
