// Package testutil provides testing utilities for the cache packages.
package testutil

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// UnreachableRedisURL points at a port nothing listens on.
const UnreachableRedisURL = "redis://127.0.0.1:1/0"

// NewMiniredis starts an in-process Redis server and a client connected to
// it. Both are closed when the test ends.
func NewMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
		// Fail fast once the server is gone
		MaxRetries: -1,
	})

	t.Cleanup(func() {
		client.Close()
	})

	return mr, client
}

// CommandRecorder is a go-redis hook that records the arguments of every
// command sent through the client.
type CommandRecorder struct {
	mu       sync.Mutex
	commands [][]any
}

var _ redis.Hook = (*CommandRecorder)(nil)

// DialHook passes dials through unchanged.
func (r *CommandRecorder) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

// ProcessHook records single commands.
func (r *CommandRecorder) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		r.record(cmd)
		return next(ctx, cmd)
	}
}

// ProcessPipelineHook records each command of a pipeline.
func (r *CommandRecorder) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			r.record(cmd)
		}
		return next(ctx, cmds)
	}
}

func (r *CommandRecorder) record(cmd redis.Cmder) {
	args := append([]any(nil), cmd.Args()...)
	r.mu.Lock()
	r.commands = append(r.commands, args)
	r.mu.Unlock()
}

// Commands returns the recorded commands named name (case-insensitive).
func (r *CommandRecorder) Commands(name string) [][]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out [][]any
	for _, args := range r.commands {
		if len(args) == 0 {
			continue
		}
		if n, ok := args[0].(string); ok && strings.EqualFold(n, name) {
			out = append(out, args)
		}
	}
	return out
}

// Reset clears all recorded commands.
func (r *CommandRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = nil
}
