package stepgraph

import (
	"database/sql"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/petrijr/stepgraph/internal/persistence"
)

// MemoryStore is a Memory that can also forget a thread.
// Every constructor in this file returns one.
type MemoryStore = persistence.ThreadStore

// NewInMemoryMemory returns a process-local Memory. It is the default when a
// workflow is committed without WithMemory.
func NewInMemoryMemory() MemoryStore {
	return persistence.NewInMemoryStore()
}

// NewSQLiteMemory stores thread memory in a SQLite database. The caller
// must import a driver, e.g.:
//
//	import _ "modernc.org/sqlite"
//
//	db, _ := sql.Open("sqlite", "file:stepgraph.db?_pragma=journal_mode(WAL)")
//	mem, err := stepgraph.NewSQLiteMemory(db)
func NewSQLiteMemory(db *sql.DB) (MemoryStore, error) {
	return persistence.NewSQLiteStore(db)
}

// NewPostgresMemory stores thread memory in PostgreSQL. The caller imports
// the driver, typically github.com/jackc/pgx/v5/stdlib.
func NewPostgresMemory(db *sql.DB) (MemoryStore, error) {
	return persistence.NewPostgresStore(db)
}

// NewRedisMemory stores thread memory in Redis under keys starting with
// prefix ("stepgraph:" when empty).
func NewRedisMemory(client *redis.Client, prefix string) MemoryStore {
	return persistence.NewRedisStore(client, prefix)
}

// NewMongoMemory stores one document per thread in the given database and
// collection. Empty names fall back to "stepgraph" and "threads".
func NewMongoMemory(client *mongo.Client, dbName, collName string) MemoryStore {
	return persistence.NewMongoStore(client, dbName, collName)
}
