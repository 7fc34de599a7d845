package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/kisaan/internal/domain/models"
)

const (
	listingsCollection = "grains"
	usersCollection    = "users"
	reportsCollection  = "inventory_reports"
	imagesBucket       = "grainImages"
)

// Store owns the MongoDB connection and hands out collection-backed repositories.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// Connect dials MongoDB and verifies the connection.
func Connect(ctx context.Context, uri, dbName string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	logger.Info("connected to mongodb", zap.String("database", dbName))

	return &Store{
		client: client,
		db:     client.Database(dbName),
		logger: logger,
	}, nil
}

// Listings returns the listing repository.
func (s *Store) Listings() *ListingRepository {
	return &ListingRepository{coll: s.db.Collection(listingsCollection)}
}

// Users returns the read-only user directory.
func (s *Store) Users() *UserDirectory {
	return &UserDirectory{coll: s.db.Collection(usersCollection)}
}

// Images returns the GridFS-backed image store.
func (s *Store) Images() (*ImageStore, error) {
	return newImageStore(s.db)
}

// SaveInventoryReport saves an inventory report to the database.
func (s *Store) SaveInventoryReport(ctx context.Context, report models.InventoryReport) error {
	collection := s.db.Collection(reportsCollection)
	_, err := collection.InsertOne(ctx, report)
	if err != nil {
		return fmt.Errorf("failed to insert inventory report: %w", err)
	}
	return nil
}

// Ping checks that the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
