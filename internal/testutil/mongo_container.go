package testutil

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var mongoServer sharedContainer

// MongoURI returns a mongodb:// connection string for a shared MongoDB server.
func MongoURI(t *testing.T) string {
	t.Helper()
	return mongoServer.address(t, func(ctx context.Context) (string, error) {
		c, err := testcontainers.Run(
			ctx, "mongo:7",
			testcontainers.WithExposedPorts("27017/tcp"),
			testcontainers.WithWaitStrategy(
				wait.ForListeningPort("27017/tcp"),
				wait.ForLog("mongod startup complete"),
			),
		)
		if err != nil {
			return "", err
		}
		ep, err := endpoint(ctx, c)
		if err != nil {
			return "", err
		}
		return "mongodb://" + ep, nil
	})
}
