package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// EnsureIndexes creates the indexes used by listing queries. Existing
// indexes with the same keys are left alone.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	listings := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "expiresAt", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("public_browse"),
		},
		{
			Keys:    bson.D{{Key: "farmer", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("farmer_listings"),
		},
		{
			Keys:    bson.D{{Key: "grainType", Value: 1}, {Key: "pricePerQuintal", Value: 1}},
			Options: options.Index().SetName("grain_price"),
		},
		{
			Keys:    bson.D{{Key: "location.state", Value: 1}, {Key: "location.city", Value: 1}},
			Options: options.Index().SetName("location"),
		},
	}

	names, err := s.db.Collection(listingsCollection).Indexes().CreateMany(ctx, listings)
	if err != nil {
		return fmt.Errorf("failed to create listing indexes: %w", err)
	}

	reports := mongo.IndexModel{
		Keys:    bson.D{{Key: "generated_at", Value: -1}},
		Options: options.Index().SetName("generated_at"),
	}
	if _, err := s.db.Collection(reportsCollection).Indexes().CreateOne(ctx, reports); err != nil {
		return fmt.Errorf("failed to create report index: %w", err)
	}

	s.logger.Info("mongodb indexes ensured", zap.Strings("listing_indexes", names))
	return nil
}
