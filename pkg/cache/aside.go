package cache

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Loader implements cache-aside reads: check the cache, and on a miss call
// the source, store the result and return it. Concurrent misses for the
// same key share one source call.
type Loader struct {
	client Client
	group  singleflight.Group
	logger zerolog.Logger
}

// Result is the outcome of Fetch.
type Result[T any] struct {
	Value  T
	Cached bool
}

// NewLoader creates a cache-aside loader over client.
func NewLoader(client Client, logger zerolog.Logger) *Loader {
	if client == nil {
		panic("cache client cannot be nil")
	}
	return &Loader{
		client: client,
		logger: logger,
	}
}

// Fetch returns the cached value for key or loads it with fetch.
//
// The shared load runs detached from the caller that started it, so one
// caller cancelling only ends its own wait. A failed cache write after a
// successful fetch is logged and the fetched value is still returned; the
// next call will simply miss again.
func Fetch[T any](ctx context.Context, l *Loader, key string, opts SetOptions, fetch func(context.Context) (T, error)) (Result[T], error) {
	var cached T
	if l.client.Get(ctx, key, &cached) {
		return Result[T]{Value: cached, Cached: true}, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key, func() (any, error) {
		value, err := fetch(loadCtx)
		if err != nil {
			return nil, err
		}
		if err := l.client.Set(loadCtx, key, value, opts); err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("Failed to cache fetched value")
		}
		return value, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return Result[T]{}, fmt.Errorf("fetch %s: %w", key, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return Result[T]{}, fmt.Errorf("fetch %s: %w", key, res.Err)
	}

	value, ok := res.Val.(T)
	if !ok {
		return Result[T]{}, fmt.Errorf("fetch %s: unexpected result type %T", key, res.Val)
	}
	return Result[T]{Value: value}, nil
}
