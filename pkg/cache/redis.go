package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sentinel durations go-redis reports for PTTL on a missing key (-2) and on a
// key without expiry (-1).
const (
	redisTTLMissing    = time.Duration(-2)
	redisTTLPersistent = time.Duration(-1)
)

const (
	defaultScanCount   = 100
	defaultDeleteBatch = 500
)

// RedisConfig configures a RedisBackend.
type RedisConfig struct {
	// KeyPrefix namespaces every physical key (usually the client namespace)
	KeyPrefix string

	// Separator joins KeyPrefix and the logical key (default: ":")
	Separator string

	// OperationTimeout bounds each Redis call; 0 relies on the caller context
	OperationTimeout time.Duration

	// ScanCount is the COUNT hint for SCAN (default: 100)
	ScanCount int64

	// DeleteBatch is the number of keys per DEL during prefix deletes (default: 500)
	DeleteBatch int

	// ownsClient makes Close close the Redis client (set by the factory for URL clients)
	ownsClient bool
}

// RedisBackend stores payloads in Redis with server-side expiry.
// It does not own the client unless the factory created it, so one client
// can be shared by several backends with different prefixes.
type RedisBackend struct {
	rdb       redis.UniversalClient
	cfg       RedisConfig
	closeOnce sync.Once
	closeErr  error
}

// NewRedisBackend creates a Redis backend on top of an existing client.
func NewRedisBackend(rdb redis.UniversalClient, cfg RedisConfig) *RedisBackend {
	if rdb == nil {
		panic("redis client cannot be nil")
	}
	if cfg.Separator == "" {
		cfg.Separator = DefaultSeparator
	}
	if cfg.ScanCount <= 0 {
		cfg.ScanCount = defaultScanCount
	}
	if cfg.DeleteBatch <= 0 {
		cfg.DeleteBatch = defaultDeleteBatch
	}
	return &RedisBackend{
		rdb: rdb,
		cfg: cfg,
	}
}

// Name returns "redis".
func (r *RedisBackend) Name() string { return "redis" }

// PhysicalKey returns the Redis key that stores the logical key.
func (r *RedisBackend) PhysicalKey(key string) string {
	if r.cfg.KeyPrefix == "" {
		return key
	}
	return r.cfg.KeyPrefix + r.cfg.Separator + key
}

// Load runs GET.
func (r *RedisBackend) Load(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	payload, err := r.rdb.Get(ctx, r.PhysicalKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, r.fail("get", err)
	}
	return payload, true, nil
}

// Save runs SETEX when ttl > 0 and a plain SET otherwise.
func (r *RedisBackend) Save(ctx context.Context, key, payload string, ttl time.Duration) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var err error
	if ttl > 0 {
		err = r.rdb.SetEx(ctx, r.PhysicalKey(key), payload, ttl).Err()
	} else {
		err = r.rdb.Set(ctx, r.PhysicalKey(key), payload, 0).Err()
	}
	if err != nil {
		return r.fail("set", err)
	}
	return nil
}

// Remove runs DEL.
func (r *RedisBackend) Remove(ctx context.Context, key string) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	n, err := r.rdb.Del(ctx, r.PhysicalKey(key)).Result()
	if err != nil {
		return 0, r.fail("del", err)
	}
	return int(n), nil
}

// ExpiresIn runs PTTL and folds both sentinels into ok=false. Milliseconds
// let Store round the remaining time up instead of reading a live key as 0.
func (r *RedisBackend) ExpiresIn(ctx context.Context, key string) (time.Duration, bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	ttl, err := r.rdb.PTTL(ctx, r.PhysicalKey(key)).Result()
	if err != nil {
		return 0, false, r.fail("ttl", err)
	}
	if ttl == redisTTLMissing || ttl == redisTTLPersistent {
		return 0, false, nil
	}
	return ttl, true, nil
}

// RemovePrefix runs SCAN MATCH over the prefixed key space and deletes the
// matches in batches. On a cluster client only the node serving the SCAN is
// visited.
func (r *RedisBackend) RemovePrefix(ctx context.Context, prefix string) (int, error) {
	if r.cfg.KeyPrefix == "" && prefix == "" {
		return 0, r.fail("delete_prefix", ErrUnscopedPurge)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	pattern := escapeGlob(r.PhysicalKey(prefix)) + "*"
	iter := r.rdb.Scan(ctx, 0, pattern, r.cfg.ScanCount).Iterator()

	removed := 0
	batch := make([]string, 0, r.cfg.DeleteBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := r.rdb.Del(ctx, batch...).Result()
		if err != nil {
			return err
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= r.cfg.DeleteBatch {
			if err := flush(); err != nil {
				return removed, r.fail("delete_prefix", err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, r.fail("delete_prefix", err)
	}
	if err := flush(); err != nil {
		return removed, r.fail("delete_prefix", err)
	}

	return removed, nil
}

// Ping checks connectivity.
func (r *RedisBackend) Ping(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return r.fail("ping", err)
	}
	return nil
}

// Close closes the client only when the backend owns it.
func (r *RedisBackend) Close() error {
	r.closeOnce.Do(func() {
		if r.cfg.ownsClient {
			r.closeErr = r.rdb.Close()
		}
	})
	return r.closeErr
}

func (r *RedisBackend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.OperationTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.cfg.OperationTimeout)
}

func (r *RedisBackend) fail(op string, err error) error {
	return &BackendError{Backend: r.Name(), Op: op, Err: err}
}

// escapeGlob escapes the characters SCAN MATCH treats as pattern syntax.
func escapeGlob(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
