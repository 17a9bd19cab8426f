package persistence

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/petrijr/stepgraph/pkg/api"
)

// MongoStore is a ThreadStore backed by a MongoDB collection, one document
// per thread.
type MongoStore struct {
	coll *mongo.Collection
}

// Ensure it implements ThreadStore.
var _ ThreadStore = (*MongoStore)(nil)

// NewMongoStore creates a Mongo-backed thread store.
// dbName defaults to "stepgraph" if empty, collName defaults to "threads".
func NewMongoStore(client *mongo.Client, dbName, collName string) *MongoStore {
	if dbName == "" {
		dbName = "stepgraph"
	}
	if collName == "" {
		collName = "threads"
	}

	return &MongoStore{
		coll: client.Database(dbName).Collection(collName),
	}
}

type mongoThreadDoc struct {
	ThreadID  string    `bson:"_id"`
	Values    []byte    `bson:"values,omitempty"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (s *MongoStore) Load(ctx context.Context, threadID string) (*api.ThreadState, error) {
	var doc mongoThreadDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": threadID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}

	values, err := DecodeValues(doc.Values)
	if err != nil {
		return nil, err
	}
	return &api.ThreadState{
		ThreadID:  doc.ThreadID,
		Values:    values,
		UpdatedAt: doc.UpdatedAt.UTC(),
	}, nil
}

func (s *MongoStore) Save(ctx context.Context, state *api.ThreadState) error {
	if err := checkState(state); err != nil {
		return err
	}
	values, err := EncodeValues(state.Values)
	if err != nil {
		return err
	}

	doc := mongoThreadDoc{
		ThreadID:  state.ThreadID,
		Values:    values,
		UpdatedAt: updatedAt(state),
	}
	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": state.ThreadID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) Delete(ctx context.Context, threadID string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": threadID})
	return err
}

// Encodable reports whether v can be saved as a thread value.
func (s *MongoStore) Encodable(v any) error {
	return Encodable(v)
}
