package mongodb

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/kisaan/internal/domain/models"
)

// ImageStore keeps listing photos in a GridFS bucket.
type ImageStore struct {
	bucket *gridfs.Bucket
}

func newImageStore(db *mongo.Database) (*ImageStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(imagesBucket))
	if err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket: %w", err)
	}
	return &ImageStore{bucket: bucket}, nil
}

// Save uploads data and returns the hex file id. Each call writes through
// its own upload stream; the bucket's shared read buffer is not safe for
// concurrent uploads.
func (s *ImageStore) Save(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	opts := options.GridFSUpload().SetMetadata(bson.M{"contentType": contentType})
	us, err := s.bucket.OpenUploadStream(filename, opts)
	if err != nil {
		return "", fmt.Errorf("failed to open upload stream: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := us.SetWriteDeadline(deadline); err != nil {
			_ = us.Abort()
			return "", fmt.Errorf("failed to set upload deadline: %w", err)
		}
	}

	if _, err := us.Write(data); err != nil {
		_ = us.Abort()
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	if err := us.Close(); err != nil {
		return "", fmt.Errorf("failed to finish image upload: %w", err)
	}

	id, ok := us.FileID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected gridfs file id %v", us.FileID)
	}
	return id.Hex(), nil
}

// Open downloads a stored file.
func (s *ImageStore) Open(_ context.Context, fileID string) (*models.StoredImage, error) {
	id, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return nil, models.ErrNotFound
	}

	stream, err := s.bucket.OpenDownloadStream(id)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	contentType := "application/octet-stream"
	if file := stream.GetFile(); file != nil && file.Metadata != nil {
		if ct, ok := file.Metadata.Lookup("contentType").StringValueOK(); ok {
			contentType = ct
		}
	}

	return &models.StoredImage{ContentType: contentType, Data: data}, nil
}

// Remove deletes a stored file and its chunks.
func (s *ImageStore) Remove(ctx context.Context, fileID string) error {
	id, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return models.ErrNotFound
	}
	if err := s.bucket.DeleteContext(ctx, id); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return models.ErrNotFound
		}
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
