package testutil

import (
	"context"
	"sync"
	"time"
)

// Source is a fake source of truth that counts how often it is called.
type Source[T any] struct {
	mu    sync.RWMutex
	value T
	err   error
	delay time.Duration
	calls int
}

// NewSource creates a source that returns value.
func NewSource[T any](value T) *Source[T] {
	return &Source[T]{value: value}
}

// SetError makes subsequent calls fail with err (nil restores success).
func (s *Source[T]) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// SetDelay makes subsequent calls block for d or until ctx is done.
func (s *Source[T]) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Fetch returns the configured value or error.
func (s *Source[T]) Fetch(ctx context.Context) (T, error) {
	s.mu.Lock()
	s.calls++
	value, err, delay := s.value, s.err, s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}

	if err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}

// Calls returns the number of Fetch calls.
func (s *Source[T]) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}

// Reset clears the call counter.
func (s *Source[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = 0
}
