package store

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pricestalk/pricestalk/internal/types"
)

// MongoStore persists observations in a MongoDB collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewMongoStore connects to MongoDB and pings it before returning.
func NewMongoStore(ctx context.Context, uri, database, collection string, logger *slog.Logger) (*MongoStore, error) {
	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(connCtx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.With("component", "mongo_store"),
	}, nil
}

func (s *MongoStore) Name() string { return "mongodb" }

func (s *MongoStore) Append(ctx context.Context, obs *types.Observation) error {
	if _, err := s.collection.InsertOne(ctx, obs); err != nil {
		return &types.StoreError{Backend: s.Name(), Err: err}
	}
	return nil
}

func (s *MongoStore) QueryLatest(ctx context.Context, query string) ([]*types.Observation, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}

	// Ascending sort plus $last per group mirrors the in-memory
	// max-timestamp rule.
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "product_name", Value: pattern}},
			bson.D{{Key: "search_term", Value: pattern}},
		}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "timestamp", Value: 1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "product_name", Value: "$product_name"},
				{Key: "website", Value: "$website"},
			}},
			{Key: "doc", Value: bson.D{{Key: "$last", Value: "$$ROOT"}}},
		}}},
		{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: "$doc"}}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "website", Value: 1},
			{Key: "product_name", Value: 1},
		}}},
	}

	cur, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, &types.StoreError{Backend: s.Name(), Err: err}
	}
	defer cur.Close(ctx)

	var out []*types.Observation
	if err := cur.All(ctx, &out); err != nil {
		return nil, &types.StoreError{Backend: s.Name(), Err: err}
	}
	return out, nil
}

func (s *MongoStore) QueryHistory(ctx context.Context, productName string, website types.WebsiteId) ([]*types.Observation, error) {
	filter := bson.D{
		{Key: "product_name", Value: productName},
		{Key: "website", Value: website},
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})

	cur, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, &types.StoreError{Backend: s.Name(), Err: err}
	}
	defer cur.Close(ctx)

	var out []*types.Observation
	if err := cur.All(ctx, &out); err != nil {
		return nil, &types.StoreError{Backend: s.Name(), Err: err}
	}
	return out, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	disCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.client.Disconnect(disCtx); err != nil {
		return &types.StoreError{Backend: s.Name(), Err: err}
	}
	return nil
}
