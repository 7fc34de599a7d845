package mongodb

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Runs only against a live server, e.g.
// KISAAN_TEST_MONGODB_URI=mongodb://localhost:27017 go test ./internal/repository/mongodb
func TestImageStoreConcurrentSaves(t *testing.T) {
	uri := os.Getenv("KISAAN_TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("KISAAN_TEST_MONGODB_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := Connect(ctx, uri, "kisaan_test_"+primitive.NewObjectID().Hex(), nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer func() {
		_ = store.db.Drop(context.Background())
		_ = store.Close(context.Background())
	}()

	images, err := store.Images()
	if err != nil {
		t.Fatalf("Images: %v", err)
	}

	const uploads = 16
	ids := make([]string, uploads)
	var wg sync.WaitGroup
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := images.Save(ctx, fmt.Sprintf("%d.jpg", i), "image/jpeg", bytes.Repeat([]byte{byte(i)}, 300<<10))
			if err != nil {
				t.Errorf("Save %d: %v", i, err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for i, id := range ids {
		img, err := images.Open(ctx, id)
		if err != nil {
			t.Fatalf("Open %d: %v", i, err)
		}
		if img.ContentType != "image/jpeg" || !bytes.Equal(img.Data, bytes.Repeat([]byte{byte(i)}, 300<<10)) {
			t.Errorf("upload %d was stored with another upload's bytes", i)
		}
	}
}
