package memory

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mamadbah2/kisaan/internal/domain/models"
)

// UserDirectory is a fixed set of user profiles.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]models.UserSummary
}

// NewUserDirectory returns a directory seeded with users.
func NewUserDirectory(users ...models.UserSummary) *UserDirectory {
	d := &UserDirectory{users: make(map[primitive.ObjectID]models.UserSummary, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

// Add registers or replaces a user profile.
func (d *UserDirectory) Add(user models.UserSummary) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
}

// FindUsers returns the known profiles among ids.
func (d *UserDirectory) FindUsers(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[primitive.ObjectID]models.UserSummary, len(ids))
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}
