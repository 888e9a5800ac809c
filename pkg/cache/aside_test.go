package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/go-cachekit/internal/testutil"
)

func TestFetch_CacheAside(t *testing.T) {
	store := NewMemory(WithSweepInterval(0))
	defer store.Close()
	loader := NewLoader(store, zerolog.Nop())
	ctx := context.Background()

	source := testutil.NewSource(searchResult{Query: "shoes", Total: 3})
	key := BuildKey("search", "acme", "shoes")

	first, err := Fetch(ctx, loader, key, WithTTL(30), source.Fetch)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 3, first.Value.Total)
	assert.Equal(t, 1, source.Calls())

	second, err := Fetch(ctx, loader, key, WithTTL(30), source.Fetch)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Value, second.Value)
	assert.Equal(t, 1, source.Calls(), "second call is served from cache")

	ttl, ok := store.TTL(ctx, key)
	require.True(t, ok)
	assert.LessOrEqual(t, ttl, 30)
}

func TestFetch_SourceError(t *testing.T) {
	store := NewMemory(WithSweepInterval(0))
	defer store.Close()
	loader := NewLoader(store, zerolog.Nop())
	ctx := context.Background()

	errUpstream := errors.New("upstream down")
	source := testutil.NewSource("value")
	source.SetError(errUpstream)

	_, err := Fetch(ctx, loader, "k", WithTTL(30), source.Fetch)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errUpstream))

	var v string
	assert.False(t, store.Get(ctx, "k", &v), "failures are not cached")

	source.SetError(nil)
	res, err := Fetch(ctx, loader, "k", WithTTL(30), source.Fetch)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, "value", res.Value)
	assert.Equal(t, 2, source.Calls())
}

func TestFetch_CacheWriteFailure(t *testing.T) {
	store := NewMemory(WithSweepInterval(0))
	require.NoError(t, store.Close())
	loader := NewLoader(store, zerolog.Nop())

	source := testutil.NewSource(42)
	res, err := Fetch(context.Background(), loader, "k", WithTTL(30), source.Fetch)
	require.NoError(t, err, "a failed cache write does not fail the fetch")
	assert.Equal(t, 42, res.Value)
	assert.False(t, res.Cached)
}

func TestFetch_CoalescesConcurrentMisses(t *testing.T) {
	store := NewMemory(WithSweepInterval(0))
	defer store.Close()
	loader := NewLoader(store, zerolog.Nop())
	ctx := context.Background()

	source := testutil.NewSource("expensive")
	source.SetDelay(100 * time.Millisecond)

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	results := make([]Result[string], 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			res, err := Fetch(ctx, loader, "k", WithTTL(30), source.Fetch)
			if err != nil {
				t.Errorf("Fetch() error = %v", err)
				return
			}
			results[i] = res
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, source.Calls())
	for _, res := range results {
		assert.Equal(t, "expensive", res.Value)
	}
}

func TestNewLoader_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewLoader should panic with nil client")
		}
	}()
	NewLoader(nil, zerolog.Nop())
}

func TestFetch_CancelledCallerDoesNotFailOthers(t *testing.T) {
	store := NewMemory(WithSweepInterval(0))
	defer store.Close()
	loader := NewLoader(store, zerolog.Nop())

	source := testutil.NewSource("shared")
	source.SetDelay(200 * time.Millisecond)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()

	errA := make(chan error, 1)
	go func() {
		_, err := Fetch(ctxA, loader, "k", WithTTL(30), source.Fetch)
		errA <- err
	}()
	require.Eventually(t, func() bool { return source.Calls() == 1 },
		time.Second, 5*time.Millisecond, "first caller should start the load")

	type outcome struct {
		res Result[string]
		err error
	}
	doneB := make(chan outcome, 1)
	go func() {
		res, err := Fetch(context.Background(), loader, "k", WithTTL(30), source.Fetch)
		doneB <- outcome{res, err}
	}()

	time.Sleep(20 * time.Millisecond)
	cancelA()

	err := <-errA
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	b := <-doneB
	require.NoError(t, b.err)
	assert.Equal(t, "shared", b.res.Value)
	assert.Equal(t, 1, source.Calls())

	var v string
	assert.True(t, store.Get(context.Background(), "k", &v), "the shared load still populates the cache")
	assert.Equal(t, "shared", v)
}
