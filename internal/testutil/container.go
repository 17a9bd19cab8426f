// Package testutil starts the database containers used by the store tests.
//
// Each container is started at most once per test binary and shared by
// every test that asks for it. The testcontainers reaper removes it when the
// binary exits, so no test owns its lifetime.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
)

// startTimeout bounds image pull plus readiness checks.
const startTimeout = 3 * time.Minute

type sharedContainer struct {
	once sync.Once
	addr string
	err  error
}

// address starts the container on first use and returns the address built by
// start. Tests are skipped, not failed, when no container runtime is available.
func (c *sharedContainer) address(t *testing.T, start func(ctx context.Context) (string, error)) string {
	t.Helper()

	c.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
		defer cancel()
		c.addr, c.err = start(ctx)
	})
	if c.err != nil {
		t.Skipf("container unavailable: %v", c.err)
	}
	return c.addr
}

// endpoint returns host:port of the first exposed port, terminating the
// container when it cannot be resolved.
func endpoint(ctx context.Context, c testcontainers.Container) (string, error) {
	ep, err := c.Endpoint(ctx, "")
	if err != nil {
		_ = c.Terminate(context.Background())
		return "", err
	}
	return ep, nil
}
