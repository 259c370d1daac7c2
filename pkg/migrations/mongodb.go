package migrations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// HistoryIndexes are the indexes of the resolution history collection. With
// a positive retention, documents expire that long after created_at.
func HistoryIndexes(retention time.Duration) []mongo.IndexModel {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "subdomain", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_history_subdomain_created_at"),
		},
		{
			Keys:    bson.D{{Key: "request_id", Value: 1}},
			Options: options.Index().SetName("idx_history_request_id").SetSparse(true),
		},
	}

	if retention > 0 {
		ttl := options.Index().
			SetName("idx_history_created_at_ttl").
			SetExpireAfterSeconds(int32(retention / time.Second))
		indexes = append(indexes, mongo.IndexModel{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: ttl,
		})
	}
	return indexes
}

// EnsureHistoryCollection creates the history indexes. Existing indexes with
// the same name are left alone.
func EnsureHistoryCollection(ctx context.Context, db *mongo.Database, collection string, retention time.Duration) error {
	_, err := db.Collection(collection).Indexes().CreateMany(ctx, HistoryIndexes(retention))
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
	}
	return nil
}
