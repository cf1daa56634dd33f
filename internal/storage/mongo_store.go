package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is the remote document store: one document per entry, keyed by
// _id, carrying the envelope and write timestamps.
type MongoStore struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
}

// NewMongoStore connects and pings the server. timeout bounds every later
// Get and Put; zero disables the per-call bound.
func NewMongoStore(ctx context.Context, uri, dbName, collName string, timeout time.Duration) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "cannot connect to mongo")
	}
	// Verify connection quickly
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, errors.Wrap(err, "cannot reach mongo")
	}

	return &MongoStore{
		client:  cli,
		coll:    cli.Database(dbName).Collection(collName),
		timeout: timeout,
	}, nil
}

func (m *MongoStore) Put(ctx context.Context, id, envelope string) error {
	if err := checkID(id); err != nil {
		return err
	}
	ctx, cancel := m.callContext(ctx)
	defer cancel()

	now := time.Now()
	_, err := m.coll.UpdateByID(
		ctx,
		id,
		bson.M{
			"$set": bson.M{
				"envelope":  envelope,
				"updatedAt": now,
			},
			"$setOnInsert": bson.M{
				"createdAt": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	return errors.Wrap(err, "cannot upsert remote entry")
}

func (m *MongoStore) Get(ctx context.Context, id string) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	ctx, cancel := m.callContext(ctx)
	defer cancel()

	var doc struct {
		Envelope *string `bson:"envelope"`
	}
	err := m.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "cannot fetch remote entry")
	}
	if doc.Envelope == nil {
		return "", ErrMalformedRecord
	}
	return *doc.Envelope, nil
}

func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoStore) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.timeout)
}
