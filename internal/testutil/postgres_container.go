package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	pgUser     = "stepgraph"
	pgPassword = "stepgraph"
	pgDatabase = "stepgraph_test"
)

var pgServer sharedContainer

func postgresDSN(hostPort string) string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", pgUser, pgPassword, hostPort, pgDatabase)
}

// PostgresDSN returns a pgx connection string for a shared PostgreSQL
// server with an empty stepgraph_test database.
func PostgresDSN(t *testing.T) string {
	t.Helper()
	return pgServer.address(t, func(ctx context.Context) (string, error) {
		c, err := testcontainers.Run(
			ctx, "postgres:16",
			testcontainers.WithExposedPorts("5432/tcp"),
			testcontainers.WithEnv(map[string]string{
				"POSTGRES_USER":     pgUser,
				"POSTGRES_PASSWORD": pgPassword,
				"POSTGRES_DB":       pgDatabase,
			}),
			testcontainers.WithWaitStrategy(
				// Readiness is also logged by the init server, so wait for a query.
				wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
					return postgresDSN(host + ":" + port.Port())
				}).WithQuery("SELECT 1").WithStartupTimeout(2*time.Minute),
			),
		)
		if err != nil {
			return "", err
		}
		ep, err := endpoint(ctx, c)
		if err != nil {
			return "", err
		}
		return postgresDSN(ep), nil
	})
}
