//go:build integration

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"tumourscan/internal/config"
	"tumourscan/internal/logger"
	"tumourscan/internal/model"
)

func TestRedis_RoundTrip(t *testing.T) {
	ctx := context.Background()
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "6379")
	require.NoError(t, err)

	c, err := NewRedis(ctx, config.CacheConfig{
		RedisURL:  fmt.Sprintf("redis://%s:%s/0", host, port.Port()),
		KeyPrefix: "test:",
		TTL:       time.Minute,
	}, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	c.Add(ctx, &model.User{ID: "u1", Name: "Dr. Grey", Role: model.RoleAdmin, IsActive: true, PasswordHash: "secret"})
	got, ok := c.Get(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, model.RoleAdmin, got.Role)
	assert.True(t, got.IsActive)
	assert.Empty(t, got.PasswordHash)

	require.NoError(t, c.client.Set(ctx, "test:user:bad", "{not json", time.Minute).Err())
	_, ok = c.Get(ctx, "bad")
	assert.False(t, ok)
	assert.Equal(t, int64(0), c.client.Exists(ctx, "test:user:bad").Val(), "corrupt entry removed")
}
