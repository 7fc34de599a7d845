package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Role identifies what an authenticated user may do.
type Role string

const (
	RoleFarmer Role = "farmer"
	RoleBuyer  Role = "buyer"
	RoleAdmin  Role = "admin"
)

// Actor is the authenticated user behind the current request.
type Actor struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the actor holds the elevated role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// ObjectID parses the actor id as a storage id.
func (a Actor) ObjectID() (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(a.UserID)
}

// UserSummary is the public projection of a user shown next to listings.
type UserSummary struct {
	ID           primitive.ObjectID `bson:"_id" json:"id"`
	Name         string             `bson:"name" json:"name,omitempty"`
	Phone        string             `bson:"phone" json:"phone,omitempty"`
	City         string             `bson:"city" json:"city,omitempty"`
	State        string             `bson:"state" json:"state,omitempty"`
	ProfileImage string             `bson:"profileImage" json:"profileImage,omitempty"`
}
