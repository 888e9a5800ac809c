package cache

import (
	"context"
	"time"
)

// Client is the cache surface used by application code.
// Implementations are safe for concurrent use.
type Client interface {
	// Get decodes the value stored under key into dest and reports a hit.
	// Misses, expired entries, backend failures and undecodable payloads all
	// report false; failures are logged, never returned.
	Get(ctx context.Context, key string, dest any) bool

	// Set stores value under key, replacing any previous entry.
	// Serialization and backend failures are returned.
	Set(ctx context.Context, key string, value any, opts SetOptions) error

	// Del removes key and returns the number of keys removed (0 or 1).
	Del(ctx context.Context, key string) (int, error)

	// TTL returns the remaining whole seconds of key.
	// ok is false when the key is missing or has no expiry.
	TTL(ctx context.Context, key string) (seconds int, ok bool)

	// DeleteByPrefix removes every key of this client starting with prefix.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)

	// Close releases backend resources. It is safe to call more than once.
	Close() error
}

// SetOptions controls how Set stores an entry.
type SetOptions struct {
	// TTLSeconds <= 0 means the entry never expires.
	TTLSeconds int
}

// TTL returns the expiry as a duration, or 0 for no expiry.
func (o SetOptions) TTL() time.Duration {
	if o.TTLSeconds <= 0 {
		return 0
	}
	return time.Duration(o.TTLSeconds) * time.Second
}

// WithTTL is shorthand for SetOptions{TTLSeconds: seconds}.
func WithTTL(seconds int) SetOptions {
	return SetOptions{TTLSeconds: seconds}
}

// Backend stores serialized payloads. Store adds serialization, logging and
// metrics on top of it. Errors must be *BackendError.
type Backend interface {
	// Name identifies the backend in logs and metrics ("memory", "redis").
	Name() string

	// Load returns the payload for key; found is false on a miss or expiry.
	Load(ctx context.Context, key string) (payload string, found bool, err error)

	// Save stores payload; ttl <= 0 means no expiry.
	Save(ctx context.Context, key, payload string, ttl time.Duration) error

	// Remove deletes key and returns the number of keys removed.
	Remove(ctx context.Context, key string) (int, error)

	// ExpiresIn returns the time left for key; ok is false when the key is
	// missing or persistent.
	ExpiresIn(ctx context.Context, key string) (ttl time.Duration, ok bool, err error)

	// RemovePrefix deletes every key starting with prefix and returns the count.
	RemovePrefix(ctx context.Context, prefix string) (int, error)

	// Close releases resources; it must be idempotent.
	Close() error
}
