// Package history persists a summary of every leads styles request.
package history

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"leadcolor/internal/coloring"
	"leadcolor/internal/logger"
	"leadcolor/pkg/metrics"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
	writeTimeout       = 3 * time.Second
)

type MongoRecorder struct {
	collection *mongo.Collection
	logger     logger.Logger
}

func NewMongoRecorder(db *mongo.Database, collection string, log logger.Logger) *MongoRecorder {
	return &MongoRecorder{
		collection: db.Collection(collection),
		logger:     log,
	}
}

// RecordPass stores one pass summary. The write gets its own short deadline
// so a slow store cannot hold up the caller for long.
func (r *MongoRecorder) RecordPass(ctx context.Context, pass coloring.PassSummary) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	start := time.Now()
	_, err := r.collection.InsertOne(ctx, pass)
	if err != nil {
		metrics.ObserveDatabaseQuery("history_insert", "error", time.Since(start))
		return fmt.Errorf("failed to insert pass summary: %w", err)
	}
	metrics.ObserveDatabaseQuery("history_insert", "ok", time.Since(start))
	return nil
}

// Recent returns the latest passes of a subdomain, newest first.
func (r *MongoRecorder) Recent(ctx context.Context, subdomain string, limit int) ([]coloring.PassSummary, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"subdomain": subdomain}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query pass history: %w", err)
	}
	defer cursor.Close(ctx)

	passes := make([]coloring.PassSummary, 0)
	if err := cursor.All(ctx, &passes); err != nil {
		return nil, fmt.Errorf("failed to decode pass history: %w", err)
	}
	return passes, nil
}
