package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/petrijr/stepgraph/internal/testutil"
)

type MongoDBStoreTestSuite struct {
	suite.Suite
	endpoint string
	store    *MongoStore
	client   *mongo.Client
	dbName   string
	collName string
}

func TestMongoDBTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	testsuite := new(MongoDBStoreTestSuite)
	testsuite.endpoint = testutil.MongoURI(t)
	newTestMongoStore(t, testsuite)
	suite.Run(t, testsuite)
}

func (m *MongoDBStoreTestSuite) SetupTest() {
	coll := m.client.Database(m.dbName).Collection(m.collName)
	m.NoError(coll.Drop(context.Background()))
}

func newTestMongoStore(t *testing.T, ts *MongoDBStoreTestSuite) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(ts.endpoint))
	if err != nil {
		t.Fatalf("mongo.Connect failed: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Disconnect(context.Background())
	})
	ts.client = client

	ts.dbName = "stepgraph_test"
	ts.collName = "threads_test"

	ts.store = NewMongoStore(client, ts.dbName, ts.collName)
}

func (m *MongoDBStoreTestSuite) TestContract() {
	runStoreContract(m.T(), m.store, "mongo-")
}
