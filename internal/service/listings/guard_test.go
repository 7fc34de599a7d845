package listings

import (
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mamadbah2/kisaan/internal/domain/models"
)

func TestAuthorize(t *testing.T) {
	owner := primitive.NewObjectID()
	other := primitive.NewObjectID()

	cases := []struct {
		name  string
		actor models.Actor
		allow bool
	}{
		{"owner", models.Actor{UserID: owner.Hex(), Role: models.RoleFarmer}, true},
		{"admin", models.Actor{UserID: other.Hex(), Role: models.RoleAdmin}, true},
		{"other farmer", models.Actor{UserID: other.Hex(), Role: models.RoleFarmer}, false},
		{"buyer", models.Actor{UserID: other.Hex(), Role: models.RoleBuyer}, false},
		{"anonymous", models.Actor{}, false},
	}

	for _, tc := range cases {
		err := Authorize(owner, tc.actor)
		if tc.allow && err != nil {
			t.Errorf("%s: expected allow, got %v", tc.name, err)
		}
		if !tc.allow && !errors.Is(err, models.ErrForbidden) {
			t.Errorf("%s: expected ErrForbidden, got %v", tc.name, err)
		}
	}
}
