package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/kisaan/internal/domain/models"
)

// ListingRepository stores listings in the grains collection.
type ListingRepository struct {
	coll *mongo.Collection
}

// Insert adds a new listing document.
func (r *ListingRepository) Insert(ctx context.Context, listing *models.Listing) error {
	if _, err := r.coll.InsertOne(ctx, listing); err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}
	return nil
}

// FindByID loads one listing.
func (r *ListingRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&listing); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find listing: %w", err)
	}
	return &listing, nil
}

// Find runs a filtered, sorted, paged query and counts all matches.
func (r *ListingRepository) Find(ctx context.Context, query models.ListingQuery) ([]*models.Listing, int64, error) {
	filter := BuildListingFilter(query.Filter)

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}

	opts := options.Find().
		SetSort(BuildSort(query.Sort)).
		SetSkip(int64(query.Offset()))
	if query.Limit > 0 {
		opts.SetLimit(int64(query.Limit))
	}

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query listings: %w", err)
	}
	defer cursor.Close(ctx)

	listings := make([]*models.Listing, 0)
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, 0, fmt.Errorf("failed to decode listings: %w", err)
	}
	return listings, total, nil
}

// Update sets the mutable fields of listing.
func (r *ListingRepository) Update(ctx context.Context, listing *models.Listing) (*models.Listing, error) {
	set := bson.M{
		"title":                listing.Title,
		"description":          listing.Description,
		"grainType":            listing.GrainType,
		"variety":              listing.Variety,
		"qualityGrade":         listing.QualityGrade,
		"isOrganic":            listing.IsOrganic,
		"tags":                 listing.Tags,
		"certifications":       listing.Certifications,
		"pricePerQuintal":      listing.PricePerQuintal,
		"quantity":             listing.Quantity,
		"availableQuantity":    listing.AvailableQuantity,
		"minimumOrderQuantity": listing.MinimumOrderQuantity,
		"location":             listing.Location,
		"harvestDate":          listing.HarvestDate,
		"status":               listing.Status,
		"updatedAt":            listing.UpdatedAt,
	}
	return r.findOneAndUpdate(ctx, listing.ID, bson.M{"$set": set})
}

// Delete removes a listing document.
func (r *ListingRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// IncrementViews atomically bumps the view counter.
func (r *ListingRepository) IncrementViews(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"views": 1}})
	if err != nil {
		return fmt.Errorf("failed to increment views: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ToggleLike removes userID from the like set when present, otherwise adds it.
func (r *ListingRepository) ToggleLike(ctx context.Context, id, userID primitive.ObjectID) (bool, int, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"likes": 1})

	var doc struct {
		Likes []primitive.ObjectID `bson:"likes"`
	}

	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "likes": userID},
		bson.M{"$pull": bson.M{"likes": userID}},
		opts,
	).Decode(&doc)
	if err == nil {
		return false, len(doc.Likes), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return false, 0, fmt.Errorf("failed to unlike listing: %w", err)
	}

	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$addToSet": bson.M{"likes": userID}},
		opts,
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, 0, models.ErrNotFound
		}
		return false, 0, fmt.Errorf("failed to like listing: %w", err)
	}
	return true, len(doc.Likes), nil
}

// SetStatus changes the lifecycle status.
func (r *ListingRepository) SetStatus(ctx context.Context, id primitive.ObjectID, status models.Status, at time.Time) (*models.Listing, error) {
	return r.findOneAndUpdate(ctx, id, bson.M{"$set": bson.M{"status": status, "updatedAt": at}})
}

// PushImages appends images to the listing.
func (r *ListingRepository) PushImages(ctx context.Context, id primitive.ObjectID, images []models.Image, at time.Time) (*models.Listing, error) {
	return r.findOneAndUpdate(ctx, id, bson.M{
		"$push": bson.M{"images": bson.M{"$each": images}},
		"$set":  bson.M{"updatedAt": at},
	})
}

// PullImage removes one image entry.
func (r *ListingRepository) PullImage(ctx context.Context, id, imageID primitive.ObjectID, at time.Time) (*models.Listing, error) {
	return r.findOneAndUpdate(ctx, id, bson.M{
		"$pull": bson.M{"images": bson.M{"_id": imageID}},
		"$set":  bson.M{"updatedAt": at},
	})
}

func (r *ListingRepository) findOneAndUpdate(ctx context.Context, id primitive.ObjectID, update bson.M) (*models.Listing, error) {
	var listing models.Listing
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update listing: %w", err)
	}
	return &listing, nil
}
