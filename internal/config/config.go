// Package config loads stepgraph CLI settings. Environment variables
// override the config file, which overrides the defaults.
//
// Environment variables use the STEPGRAPH_ prefix with underscores for
// nesting, e.g. STEPGRAPH_MEMORY_BACKEND=sqlite.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/petrijr/stepgraph/pkg/api"
)

// EnvPrefix is the prefix of every environment variable Load reads.
const EnvPrefix = "STEPGRAPH"

// Memory backends accepted in Memory.Backend.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMongo    = "mongo"
)

// ErrInvalidConfig matches every validation failure returned by Load.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the configuration for the stepgraph CLI.
type Config struct {
	Memory MemoryConfig `mapstructure:"memory"`
	Engine EngineConfig `mapstructure:"engine"`
	Log    LogConfig    `mapstructure:"log"`
}

type MemoryConfig struct {
	Backend string `mapstructure:"backend"`
	// DSN is the database/sql data source for sqlite and postgres.
	DSN             string `mapstructure:"dsn"`
	RedisAddr       string `mapstructure:"redis_addr"`
	RedisPrefix     string `mapstructure:"redis_prefix"`
	MongoURI        string `mapstructure:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection"`
}

type EngineConfig struct {
	MaxIterations  int    `mapstructure:"max_iterations"`
	ParallelPolicy string `mapstructure:"parallel_policy"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Memory: MemoryConfig{
			Backend:         BackendMemory,
			DSN:             "file:stepgraph.db",
			RedisAddr:       "localhost:6379",
			RedisPrefix:     "stepgraph:",
			MongoURI:        "mongodb://localhost:27017",
			MongoDatabase:   "stepgraph",
			MongoCollection: "threads",
		},
		Engine: EngineConfig{
			MaxIterations:  api.DefaultMaxIterations,
			ParallelPolicy: string(api.FailFast),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration. path may be empty, in which case a
// stepgraph.{yaml,toml,json} in the working directory or ./config is used if
// present.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("stepgraph")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("memory.backend", d.Memory.Backend)
	v.SetDefault("memory.dsn", d.Memory.DSN)
	v.SetDefault("memory.redis_addr", d.Memory.RedisAddr)
	v.SetDefault("memory.redis_prefix", d.Memory.RedisPrefix)
	v.SetDefault("memory.mongo_uri", d.Memory.MongoURI)
	v.SetDefault("memory.mongo_database", d.Memory.MongoDatabase)
	v.SetDefault("memory.mongo_collection", d.Memory.MongoCollection)
	v.SetDefault("engine.max_iterations", d.Engine.MaxIterations)
	v.SetDefault("engine.parallel_policy", d.Engine.ParallelPolicy)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

func (c *Config) normalize() {
	c.Memory.Backend = strings.ToLower(strings.TrimSpace(c.Memory.Backend))
	c.Engine.ParallelPolicy = strings.ToLower(strings.TrimSpace(c.Engine.ParallelPolicy))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	switch c.Memory.Backend {
	case BackendMemory, BackendRedis, BackendMongo:
	case BackendSQLite, BackendPostgres:
		if c.Memory.DSN == "" {
			invalid("memory.dsn is required for backend %q", c.Memory.Backend)
		}
	default:
		invalid("unknown memory.backend %q", c.Memory.Backend)
	}
	if c.Memory.Backend == BackendRedis && c.Memory.RedisAddr == "" {
		invalid("memory.redis_addr is required for backend redis")
	}
	if c.Memory.Backend == BackendMongo && c.Memory.MongoURI == "" {
		invalid("memory.mongo_uri is required for backend mongo")
	}

	if c.Engine.MaxIterations < api.Unbounded {
		invalid("engine.max_iterations must be >= %d, got %d", api.Unbounded, c.Engine.MaxIterations)
	}
	switch api.ParallelPolicy(c.Engine.ParallelPolicy) {
	case api.FailFast, api.AwaitAll:
	default:
		invalid("unknown engine.parallel_policy %q", c.Engine.ParallelPolicy)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		invalid("unknown log.level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		invalid("unknown log.format %q", c.Log.Format)
	}

	return errors.Join(errs...)
}
