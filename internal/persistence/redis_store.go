package persistence

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/stepgraph/pkg/api"
)

// DefaultRedisPrefix is used when NewRedisStore gets an empty prefix.
const DefaultRedisPrefix = "stepgraph:"

// RedisStore is a ThreadStore backed by Redis.
// It uses a simple key structure:
//
//	<prefix>thread:<id>   => gob-encoded redisThreadPayload
//	<prefix>idx:threads   => SET of all thread IDs
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ ThreadStore = (*RedisStore)(nil)

type redisThreadPayload struct {
	ThreadID  string
	Values    []byte
	UpdatedAt time.Time
}

// NewRedisStore creates a RedisStore.
// prefix is optional but recommended (e.g. "stepgraph:").
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

// WithTTL makes saved threads expire after ttl. Zero keeps them forever.
func (s *RedisStore) WithTTL(ttl time.Duration) *RedisStore {
	c := *s
	c.ttl = ttl
	return &c
}

func (s *RedisStore) keyThread(id string) string {
	return s.prefix + "thread:" + id
}

func (s *RedisStore) keyIndex() string {
	return s.prefix + "idx:threads"
}

func (s *RedisStore) Load(ctx context.Context, threadID string) (*api.ThreadState, error) {
	data, err := s.client.Get(ctx, s.keyThread(threadID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var payload redisThreadPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return nil, err
	}
	values, err := DecodeValues(payload.Values)
	if err != nil {
		return nil, err
	}
	return &api.ThreadState{
		ThreadID:  payload.ThreadID,
		Values:    values,
		UpdatedAt: payload.UpdatedAt.UTC(),
	}, nil
}

func (s *RedisStore) Save(ctx context.Context, state *api.ThreadState) error {
	if err := checkState(state); err != nil {
		return err
	}
	values, err := EncodeValues(state.Values)
	if err != nil {
		return err
	}

	payload := redisThreadPayload{
		ThreadID:  state.ThreadID,
		Values:    values,
		UpdatedAt: updatedAt(state),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&payload); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.keyThread(state.ThreadID), buf.Bytes(), s.ttl)
	pipe.SAdd(ctx, s.keyIndex(), state.ThreadID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Delete(ctx context.Context, threadID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.keyThread(threadID))
	pipe.SRem(ctx, s.keyIndex(), threadID)
	_, err := pipe.Exec(ctx)
	return err
}

// ThreadIDs returns the ids of every saved thread. Expired threads may still
// be listed until they are saved or deleted again.
func (s *RedisStore) ThreadIDs(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, s.keyIndex()).Result()
}

// Encodable reports whether v can be saved as a thread value.
func (s *RedisStore) Encodable(v any) error {
	return Encodable(v)
}
