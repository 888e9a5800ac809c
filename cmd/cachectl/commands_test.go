package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/go-cachekit/internal/testutil"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)

	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestKeyCommand(t *testing.T) {
	out, err := run(t, "key", "search", "acme", " shoes ", "", "2")
	require.NoError(t, err)
	assert.Equal(t, "search:acme:shoes:2", out)
}

func TestCommands_Redis(t *testing.T) {
	mr, _ := testutil.NewMiniredis(t)
	redisFlags := []string{"--adapter", "redis", "--redis-url", "redis://" + mr.Addr(), "--namespace", "cli"}
	runRedis := func(args ...string) (string, error) {
		return run(t, append(args, redisFlags...)...)
	}

	out, err := runRedis("set", "greeting", `{"text":"hello"}`, "--ttl", "30")
	require.NoError(t, err)
	assert.Equal(t, "OK (ttl=30s)", out)
	assert.True(t, mr.Exists("cli:greeting"))

	out, err = runRedis("get", "greeting")
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"hello"}`, out)

	out, err = runRedis("ttl", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "30", out)

	out, err = runRedis("set", "plain", "not json", "--ttl", "0")
	require.NoError(t, err)
	assert.Equal(t, "OK (ttl=none)", out)

	out, err = runRedis("get", "plain")
	require.NoError(t, err)
	assert.Equal(t, `"not json"`, out)

	out, err = runRedis("ttl", "plain")
	require.NoError(t, err)
	assert.Equal(t, "none", out)

	out, err = runRedis("del", "plain")
	require.NoError(t, err)
	assert.Equal(t, "1", out)

	_, err = runRedis("get", "plain")
	assert.ErrorIs(t, err, errNotFound)

	mr.FastForward(31 * time.Second)
	_, err = runRedis("get", "greeting")
	assert.ErrorIs(t, err, errNotFound)
}

func TestCommands_SetUsesPolicy(t *testing.T) {
	mr, _ := testutil.NewMiniredis(t)
	t.Setenv("CONTROLS_TTL_SECONDS", "3600")
	t.Setenv("DEFAULT_TTL_SECONDS", "90")
	flags := []string{"--adapter", "redis", "--redis-url", "redis://" + mr.Addr(), "--namespace", "cli"}

	_, err := run(t, append([]string{"set", "a", "1", "--use-case", "controls"}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL("cli:a"))

	_, err = run(t, append([]string{"set", "b", "1"}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, mr.TTL("cli:b"))

	_, err = run(t, append([]string{"set", "c", "1", "--ttl", "5", "--use-case", "controls"}, flags...)...)
	assert.Error(t, err, "--ttl and --use-case are mutually exclusive")
}

func TestPurgeCommand(t *testing.T) {
	mr, _ := testutil.NewMiniredis(t)
	flags := []string{"--adapter", "redis", "--redis-url", "redis://" + mr.Addr(), "--namespace", "cli"}

	require.NoError(t, mr.Set("cli:p:a", "1"))
	require.NoError(t, mr.Set("cli:p:b", "2"))
	require.NoError(t, mr.Set("cli:q:c", "3"))
	require.NoError(t, mr.Set("other:p:a", "4"))

	out, err := run(t, append([]string{"purge", "p:"}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t, "2", out)
	assert.True(t, mr.Exists("cli:q:c"))
	assert.True(t, mr.Exists("other:p:a"))

	_, err = run(t, append([]string{"purge"}, flags...)...)
	assert.Error(t, err, "empty prefix needs --all")

	out, err = run(t, append([]string{"purge", "--all"}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t, "1", out)
	assert.True(t, mr.Exists("other:p:a"))
}

func TestPolicyCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_ttl_seconds: 600\nuse_cases:\n  controls: 3600\n"), 0o600))
	t.Setenv("CACHE_POLICY_FILE", path)
	t.Setenv("SEARCH_TTL_SECONDS", "30")

	out, err := run(t, "policy", "--adapter", "memory")
	require.NoError(t, err)
	assert.Contains(t, out, "(default)")
	assert.Contains(t, out, "600")
	assert.Contains(t, out, "controls")
	assert.Contains(t, out, "search")

	out, err = run(t, "policy", "controls", "--adapter", "memory")
	require.NoError(t, err)
	assert.Equal(t, "3600", out)

	out, err = run(t, "policy", "unknown", "--adapter", "memory")
	require.NoError(t, err)
	assert.Equal(t, "600", out)
}

func TestCommands_InvalidConfiguration(t *testing.T) {
	_, err := run(t, "get", "k", "--adapter", "memcached")
	assert.Error(t, err)

	_, err = run(t, "get", "k", "--adapter", "redis", "--redis-url", testutil.UnreachableRedisURL, "--namespace", "cli")
	assert.Error(t, err)
}

func TestCommands_EnvFile(t *testing.T) {
	mr, _ := testutil.NewMiniredis(t)
	path := filepath.Join(t.TempDir(), "cachectl.env")
	require.NoError(t, os.WriteFile(path, []byte(
		"CACHE_ADAPTER=redis\nREDIS_URL=redis://"+mr.Addr()+"\nCACHE_NAMESPACE=envfile\n"), 0o600))

	_, err := run(t, "set", "k", "1", "--ttl", "10", "--env-file", path)
	require.NoError(t, err)
	assert.True(t, mr.Exists("envfile:k"))
}

func TestServeCommand_UsesCommandContext(t *testing.T) {
	mr, _ := testutil.NewMiniredis(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"serve", "--listen", "127.0.0.1:0",
		"--adapter", "redis", "--redis-url", "redis://" + mr.Addr(), "--namespace", "cli"})

	err := cmd.ExecuteContext(ctx)
	require.Error(t, err, "a cancelled context stops serve before it opens the store")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCommandContext(t *testing.T) {
	type ctxKey struct{}

	cmd := newRootCmd()
	assert.Equal(t, context.Background(), commandContext(cmd))

	ctx := context.WithValue(context.Background(), ctxKey{}, "v")
	cmd.SetContext(ctx)
	assert.Equal(t, "v", commandContext(cmd).Value(ctxKey{}))
}
