//go:build integration

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/go-cachekit/pkg/cache"
)

func setupTestRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Redis container not available: %v", err)
	}
	t.Cleanup(func() {
		redisC.Terminate(context.Background())
	})

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return "redis://" + host + ":" + port.Port() + "/0"
}

func TestIntegration_ServerOverRedis(t *testing.T) {
	url := setupTestRedis(t)
	nop := zerolog.Nop()

	store, err := cache.NewClient(context.Background(), cache.Options{
		Adapter:       cache.AdapterAuto,
		Namespace:     "sidecar",
		RedisURL:      url,
		AllowFallback: true,
		Logger:        &nop,
	})
	require.NoError(t, err)
	defer store.Close()

	ts := newTestServer(t, store)

	resp, body := do(t, http.MethodGet, ts.URL+"/ready", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ready map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &ready))
	assert.Equal(t, "redis", ready["backend"])
	assert.Equal(t, false, ready["degraded"])

	resp, _ = do(t, http.MethodPut, ts.URL+"/v1/cache/controls:1?use_case=controls", `"value"`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = do(t, http.MethodGet, ts.URL+"/v1/cache/controls:1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `"value"`, body)

	resp, body = do(t, http.MethodDelete, ts.URL+"/v1/cache?prefix=controls:", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"removed":1}`, body)
}
