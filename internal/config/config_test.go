package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/stepgraph/pkg/api"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoadYAMLFile(t *testing.T) {
	path := writeFile(t, "stepgraph.yaml", `
memory:
  backend: SQLite
  dsn: "file:test.db"
engine:
  max_iterations: 25
  parallel_policy: await-all
log:
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Memory.Backend)
	assert.Equal(t, "file:test.db", cfg.Memory.DSN)
	assert.Equal(t, 25, cfg.Engine.MaxIterations)
	assert.Equal(t, string(api.AwaitAll), cfg.Engine.ParallelPolicy)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level, "unset keys keep defaults")
}

func TestLoadTOMLFile(t *testing.T) {
	path := writeFile(t, "stepgraph.toml", `
[memory]
backend = "redis"
redis_addr = "cache:6379"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Memory.Backend)
	assert.Equal(t, "cache:6379", cfg.Memory.RedisAddr)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "stepgraph.yaml", "engine:\n  max_iterations: 10\n")
	t.Setenv("STEPGRAPH_ENGINE_MAX_ITERATIONS", "-1")
	t.Setenv("STEPGRAPH_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, api.Unbounded, cfg.Engine.MaxIterations)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Memory.Backend = "etcd"
	cfg.Engine.MaxIterations = -5
	cfg.Engine.ParallelPolicy = "sometimes"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	for _, want := range []string{"memory.backend", "max_iterations", "parallel_policy", "log.format"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateRequiresDSN(t *testing.T) {
	cfg := Default()
	cfg.Memory.Backend = BackendPostgres
	cfg.Memory.DSN = ""
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestOpenMemoryInMemory(t *testing.T) {
	mem, closeFn, err := OpenMemory(context.Background(), MemoryConfig{Backend: BackendMemory})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	ctx := context.Background()
	require.NoError(t, mem.Save(ctx, &api.ThreadState{ThreadID: "t", Values: map[string]any{"a": "b"}}))
	got, err := mem.Load(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Values["a"])
}

func TestOpenMemorySQLite(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "mem.db")
	mem, closeFn, err := OpenMemory(context.Background(), MemoryConfig{Backend: BackendSQLite, DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	ctx := context.Background()
	require.NoError(t, mem.Save(ctx, &api.ThreadState{ThreadID: "t", Values: map[string]any{"n": 1}}))
	require.NoError(t, mem.Delete(ctx, "t"))
	got, err := mem.Load(ctx, "t")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOpenMemoryUnknownBackend(t *testing.T) {
	_, closeFn, err := OpenMemory(context.Background(), MemoryConfig{Backend: "etcd"})
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.NotNil(t, closeFn)
}
