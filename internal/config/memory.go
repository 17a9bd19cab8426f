package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	_ "modernc.org/sqlite"

	"github.com/petrijr/stepgraph"
)

const connectTimeout = 10 * time.Second

// OpenMemory connects the configured memory backend. The returned close
// function releases the underlying connection and is never nil.
func OpenMemory(ctx context.Context, cfg MemoryConfig) (stepgraph.MemoryStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case BackendMemory, "":
		return stepgraph.NewInMemoryMemory(), noop, nil

	case BackendSQLite, BackendPostgres:
		driver := "sqlite"
		if cfg.Backend == BackendPostgres {
			driver = "pgx"
		}
		db, err := sql.Open(driver, cfg.DSN)
		if err != nil {
			return nil, noop, fmt.Errorf("open %s: %w", cfg.Backend, err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, noop, fmt.Errorf("connect %s: %w", cfg.Backend, err)
		}

		var mem stepgraph.MemoryStore
		if cfg.Backend == BackendSQLite {
			mem, err = stepgraph.NewSQLiteMemory(db)
		} else {
			mem, err = stepgraph.NewPostgresMemory(db)
		}
		if err != nil {
			_ = db.Close()
			return nil, noop, fmt.Errorf("init %s schema: %w", cfg.Backend, err)
		}
		return mem, db.Close, nil

	case BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("connect redis: %w", err)
		}
		return stepgraph.NewRedisMemory(client, cfg.RedisPrefix), client.Close, nil

	case BackendMongo:
		connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		client, err := mongo.Connect(connCtx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, noop, fmt.Errorf("connect mongo: %w", err)
		}
		if err := client.Ping(connCtx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, noop, fmt.Errorf("ping mongo: %w", err)
		}
		closer := func() error { return client.Disconnect(context.Background()) }
		return stepgraph.NewMongoMemory(client, cfg.MongoDatabase, cfg.MongoCollection), closer, nil
	}

	return nil, noop, fmt.Errorf("%w: unknown memory backend %q", ErrInvalidConfig, cfg.Backend)
}
