// Package memory provides process-local storage used for local runs and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mamadbah2/kisaan/internal/domain/models"
)

// ListingRepository keeps listings in a map guarded by a mutex.
type ListingRepository struct {
	mu       sync.RWMutex
	listings map[primitive.ObjectID]*models.Listing
}

// NewListingRepository returns an empty repository.
func NewListingRepository() *ListingRepository {
	return &ListingRepository{listings: make(map[primitive.ObjectID]*models.Listing)}
}

// Insert stores a copy of listing.
func (r *ListingRepository) Insert(_ context.Context, listing *models.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings[listing.ID] = listing.Clone()
	return nil
}

// FindByID returns a copy of the listing.
func (r *ListingRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.listings[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return l.Clone(), nil
}

// Find filters, sorts and pages the stored listings.
func (r *ListingRepository) Find(_ context.Context, query models.ListingQuery) ([]*models.Listing, int64, error) {
	r.mu.RLock()
	matches := make([]*models.Listing, 0)
	for _, l := range r.listings {
		if query.Filter.Matches(l) {
			matches = append(matches, l.Clone())
		}
	}
	r.mu.RUnlock()

	order := query.Sort
	if len(order) == 0 {
		order = models.DefaultSort
	}
	// Ties fall back to id order so paging is stable across calls.
	models.SortListings(matches, append(append([]models.SortField{}, order...), models.SortField{Field: "_id"}))

	total := int64(len(matches))
	start := query.Offset()
	if start < 0 || start > len(matches) {
		start = len(matches)
	}
	end := len(matches)
	if query.Limit > 0 && query.Limit < end-start {
		end = start + query.Limit
	}
	return matches[start:end], total, nil
}

// Update overwrites the mutable fields of the stored listing.
func (r *ListingRepository) Update(_ context.Context, listing *models.Listing) (*models.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.listings[listing.ID]
	if !ok {
		return nil, models.ErrNotFound
	}

	next := listing.Clone()
	next.FarmerID = stored.FarmerID
	next.Likes = append([]primitive.ObjectID(nil), stored.Likes...)
	next.Views = stored.Views
	next.Images = append([]models.Image(nil), stored.Images...)
	next.CreatedAt = stored.CreatedAt
	next.ExpiresAt = stored.ExpiresAt
	next.Farmer = nil
	next.LikedBy = nil

	r.listings[listing.ID] = next
	return next.Clone(), nil
}

// Delete removes a listing.
func (r *ListingRepository) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listings[id]; !ok {
		return models.ErrNotFound
	}
	delete(r.listings, id)
	return nil
}

// IncrementViews bumps the view counter.
func (r *ListingRepository) IncrementViews(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return models.ErrNotFound
	}
	l.Views++
	return nil
}

// ToggleLike flips userID's membership in the like set.
func (r *ListingRepository) ToggleLike(_ context.Context, id, userID primitive.ObjectID) (bool, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return false, 0, models.ErrNotFound
	}

	if l.LikedByUser(userID) {
		kept := l.Likes[:0]
		for _, like := range l.Likes {
			if like != userID {
				kept = append(kept, like)
			}
		}
		l.Likes = kept
		return false, len(l.Likes), nil
	}

	l.Likes = append(l.Likes, userID)
	return true, len(l.Likes), nil
}

// SetStatus changes the lifecycle status.
func (r *ListingRepository) SetStatus(_ context.Context, id primitive.ObjectID, status models.Status, at time.Time) (*models.Listing, error) {
	return r.mutate(id, func(l *models.Listing) {
		l.Status = status
		l.UpdatedAt = at
	})
}

// PushImages appends images.
func (r *ListingRepository) PushImages(_ context.Context, id primitive.ObjectID, images []models.Image, at time.Time) (*models.Listing, error) {
	return r.mutate(id, func(l *models.Listing) {
		l.Images = append(l.Images, images...)
		l.UpdatedAt = at
	})
}

// PullImage removes the image with imageID.
func (r *ListingRepository) PullImage(_ context.Context, id, imageID primitive.ObjectID, at time.Time) (*models.Listing, error) {
	return r.mutate(id, func(l *models.Listing) {
		if idx := l.FindImage(imageID); idx >= 0 {
			l.Images = append(l.Images[:idx:idx], l.Images[idx+1:]...)
		}
		l.UpdatedAt = at
	})
}

func (r *ListingRepository) mutate(id primitive.ObjectID, fn func(*models.Listing)) (*models.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	fn(l)
	return l.Clone(), nil
}
