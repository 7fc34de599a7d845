package memory

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mamadbah2/kisaan/internal/domain/models"
)

// ImageStore holds uploaded photo bytes keyed by a generated file id.
type ImageStore struct {
	mu    sync.RWMutex
	files map[string]models.StoredImage
}

// NewImageStore returns an empty store.
func NewImageStore() *ImageStore {
	return &ImageStore{files: make(map[string]models.StoredImage)}
}

// Save stores a copy of data and returns its file id.
func (s *ImageStore) Save(_ context.Context, _ string, contentType string, data []byte) (string, error) {
	id := primitive.NewObjectID().Hex()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = models.StoredImage{ContentType: contentType, Data: append([]byte(nil), data...)}
	return id, nil
}

// Open returns the stored file.
func (s *ImageStore) Open(_ context.Context, fileID string) (*models.StoredImage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.files[fileID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &models.StoredImage{ContentType: img.ContentType, Data: append([]byte(nil), img.Data...)}, nil
}

// Remove deletes the stored file.
func (s *ImageStore) Remove(_ context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[fileID]; !ok {
		return models.ErrNotFound
	}
	delete(s.files, fileID)
	return nil
}

// Len reports how many files are stored.
func (s *ImageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
