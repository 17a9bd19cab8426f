package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/petrijr/stepgraph/pkg/api"
)

// SQLiteStore is a ThreadStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteStore struct {
	db *sql.DB
}

// Ensure SQLiteStore implements ThreadStore.
var _ ThreadStore = (*SQLiteStore)(nil)

// NewSQLiteStore initializes the required schema in the given database and
// returns a new SQLiteStore.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS thread_memory (
			thread_id TEXT PRIMARY KEY,
			mem_values BLOB,
			updated_at INTEGER NOT NULL
		);`,
	)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context, threadID string) (*api.ThreadState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT mem_values, updated_at
		FROM thread_memory
		WHERE thread_id = ?`,
		threadID,
	)

	var data []byte
	var updated int64
	if err := row.Scan(&data, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	values, err := DecodeValues(data)
	if err != nil {
		return nil, err
	}
	return &api.ThreadState{
		ThreadID:  threadID,
		Values:    values,
		UpdatedAt: time.Unix(0, updated).UTC(),
	}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, state *api.ThreadState) error {
	if err := checkState(state); err != nil {
		return err
	}
	data, err := EncodeValues(state.Values)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO thread_memory (thread_id, mem_values, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			mem_values = excluded.mem_values,
			updated_at = excluded.updated_at`,
		state.ThreadID,
		data,
		updatedAt(state).UnixNano(),
	)
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM thread_memory WHERE thread_id = ?`, threadID)
	return err
}

func updatedAt(state *api.ThreadState) time.Time {
	if state.UpdatedAt.IsZero() {
		return time.Now().UTC()
	}
	return state.UpdatedAt.UTC()
}

// Encodable reports whether v can be saved as a thread value.
func (s *SQLiteStore) Encodable(v any) error {
	return Encodable(v)
}
