package listings

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mamadbah2/kisaan/internal/domain/models"
)

// Authorize allows the listing owner and admins to mutate a listing.
// Callers must load the listing first so that missing listings surface as
// ErrNotFound rather than ErrForbidden.
func Authorize(owner primitive.ObjectID, actor models.Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.UserID != "" && actor.UserID == owner.Hex() {
		return nil
	}
	return models.ErrForbidden
}
