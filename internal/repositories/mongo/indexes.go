package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const indexTimeout = 10 * time.Second

// EnsureIndexes creates the indexes the repositories rely on. The unique order number
// index backs collision detection during placement.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	specs := map[string][]mongo.IndexModel{
		ordersCollection: {
			{
				Keys:    bson.D{{Key: "orderNumber", Value: 1}},
				Options: options.Index().SetName("orderNumber_unique").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "customerId", Value: 1}, {Key: "createdAt", Value: -1}},
				Options: options.Index().SetName("customer_createdAt"),
			},
			{
				Keys:    bson.D{{Key: "vendorIds", Value: 1}, {Key: "createdAt", Value: -1}},
				Options: options.Index().SetName("vendor_createdAt"),
			},
			{
				Keys:    bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
				Options: options.Index().SetName("status_createdAt"),
			},
			{
				Keys:    bson.D{{Key: "createdAt", Value: -1}, {Key: "orderNumber", Value: -1}},
				Options: options.Index().SetName("createdAt_orderNumber"),
			},
		},
		vendorsCollection: {
			{
				Keys:    bson.D{{Key: "userId", Value: 1}},
				Options: options.Index().SetName("userId_index"),
			},
		},
	}
	for collection, models := range specs {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("ensure %s indexes: %w", collection, err)
		}
	}
	return nil
}
