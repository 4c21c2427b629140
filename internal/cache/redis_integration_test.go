//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestRedisProvider_RealRedis exercises RedisProvider against an actual
// Redis server, not miniredis's protocol emulation. Opt in with
// `go test -tags integration ./internal/cache/...`; requires a Docker
// daemon reachable by testcontainers-go.
func TestRedisProvider_RealRedis(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer func() { _ = container.Terminate(ctx) }()

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	defer client.Close()

	p := NewRedisProvider(client, "confirmation", time.Minute, nil)

	require.NoError(t, p.Set(ctx, "action_1", map[string]any{"user_id": "alice"}, time.Minute,
		map[string]string{"user_actions": "alice"}))

	var got map[string]any
	found, err := p.Get(ctx, "action_1", true, &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "alice", got["user_id"])

	keys, err := p.GetKeysByIndex(ctx, "user_actions", "alice")
	require.NoError(t, err)
	require.Len(t, keys, 1)
}
