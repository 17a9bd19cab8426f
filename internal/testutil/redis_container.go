package testutil

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var redisServer sharedContainer

// RedisAddress returns the host:port of a shared Redis server.
func RedisAddress(t *testing.T) string {
	t.Helper()
	return redisServer.address(t, func(ctx context.Context) (string, error) {
		c, err := testcontainers.Run(
			ctx, "redis:7",
			testcontainers.WithExposedPorts("6379/tcp"),
			testcontainers.WithWaitStrategy(
				wait.ForListeningPort("6379/tcp"),
				wait.ForLog("Ready to accept connections"),
			),
		)
		if err != nil {
			return "", err
		}
		return endpoint(ctx, c)
	})
}
