package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/petrijr/stepgraph/pkg/api"
)

// PostgresStore is a ThreadStore backed by PostgreSQL.
//
// It expects an *sql.DB that uses a PostgreSQL driver (for example,
// "github.com/jackc/pgx/v5/stdlib").
//
// The caller is responsible for:
//   - importing the driver for its side effects, e.g.:
//     _ "github.com/jackc/pgx/v5/stdlib"
//   - providing a DSN via sql.Open.
type PostgresStore struct {
	db *sql.DB
}

// Ensure PostgresStore implements ThreadStore.
var _ ThreadStore = (*PostgresStore)(nil)

// NewPostgresStore initializes the required schema in the given database
// and returns a new PostgresStore.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS thread_memory (
			thread_id TEXT PRIMARY KEY,
			mem_values BYTEA,
			updated_at TIMESTAMPTZ NOT NULL
		);
	`)
	return err
}

func (s *PostgresStore) Load(ctx context.Context, threadID string) (*api.ThreadState, error) {
	state := &api.ThreadState{ThreadID: threadID}
	var data []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT mem_values, updated_at
		FROM thread_memory
		WHERE thread_id = $1
	`, threadID).Scan(&data, &state.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if state.Values, err = DecodeValues(data); err != nil {
		return nil, err
	}
	state.UpdatedAt = state.UpdatedAt.UTC()
	return state, nil
}

func (s *PostgresStore) Save(ctx context.Context, state *api.ThreadState) error {
	if err := checkState(state); err != nil {
		return err
	}
	data, err := EncodeValues(state.Values)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO thread_memory (thread_id, mem_values, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (thread_id) DO UPDATE SET
			mem_values = EXCLUDED.mem_values,
			updated_at = EXCLUDED.updated_at
	`,
		state.ThreadID,
		data,
		updatedAt(state),
	)
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM thread_memory WHERE thread_id = $1`, threadID)
	return err
}

// Encodable reports whether v can be saved as a thread value.
func (s *PostgresStore) Encodable(v any) error {
	return Encodable(v)
}
