package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/kisaan/internal/domain/models"
)

// UserDirectory reads public profile fields from the users collection.
// Accounts are managed elsewhere; this type never writes.
type UserDirectory struct {
	coll *mongo.Collection
}

type userDocument struct {
	ID      primitive.ObjectID `bson:"_id"`
	Name    string             `bson:"name"`
	Phone   string             `bson:"phone"`
	Address struct {
		City  string `bson:"city"`
		State string `bson:"state"`
	} `bson:"address"`
	ProfileImage string `bson:"profileImage"`
}

// FindUsers loads the profiles for ids. Unknown ids are absent from the result.
func (d *UserDirectory) FindUsers(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error) {
	out := make(map[primitive.ObjectID]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	opts := options.Find().SetProjection(bson.M{
		"name":          1,
		"phone":         1,
		"address.city":  1,
		"address.state": 1,
		"profileImage":  1,
	})
	cursor, err := d.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}

	for _, doc := range docs {
		out[doc.ID] = models.UserSummary{
			ID:           doc.ID,
			Name:         doc.Name,
			Phone:        doc.Phone,
			City:         doc.Address.City,
			State:        doc.Address.State,
			ProfileImage: doc.ProfileImage,
		}
	}
	return out, nil
}
