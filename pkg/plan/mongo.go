package plan

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/crateplan/crateplan/pkg/errors"
)

const (
	mongoDatabase   = "crateplan"
	mongoCollection = "plans"
)

// MongoStore persists plans in a MongoDB collection, keyed by plan ID.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to MongoDB at uri and returns a store backed by the
// crateplan.plans collection.
func NewMongoStore(ctx context.Context, uri string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "ping mongodb")
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(mongoDatabase).Collection(mongoCollection),
	}, nil
}

// Put stores a plan, replacing any existing plan with the same ID.
func (s *MongoStore) Put(ctx context.Context, p *Plan) error {
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": p.ID}, p,
		options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "store plan %s", p.ID)
	}
	return nil
}

// Get retrieves a plan by ID.
func (s *MongoStore) Get(ctx context.Context, id string) (*Plan, error) {
	var p Plan
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, errors.New(errors.ErrCodePlanNotFound, "plan %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "load plan %s", id)
	}
	return &p, nil
}

// Delete removes a plan. Deleting an absent plan is not an error.
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "delete plan %s", id)
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ensure MongoStore implements Store.
var _ Store = (*MongoStore)(nil)
