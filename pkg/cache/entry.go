package cache

import (
	"time"
)

// Entry is a value held by the memory backend.
type Entry struct {
	// Value is the serialized payload
	Value string

	// ExpiresAt is when the entry becomes absent (zero: never)
	ExpiresAt time.Time
}

// newEntry builds an entry expiring ttl after now. A ttl <= 0 never expires.
func newEntry(value string, ttl time.Duration, now time.Time) *Entry {
	e := &Entry{Value: value}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	return e
}

// IsExpired returns true if the entry has an expiry at or before now.
func (e *Entry) IsExpired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// TTL returns the time left before expiry.
// Returns false for entries without expiry; returns 0 once expired.
func (e *Entry) TTL(now time.Time) (time.Duration, bool) {
	if e.ExpiresAt.IsZero() {
		return 0, false
	}
	ttl := e.ExpiresAt.Sub(now)
	if ttl < 0 {
		return 0, true
	}
	return ttl, true
}
