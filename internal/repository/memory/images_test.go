package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestImageStoreConcurrentSavesKeepTheirBytes(t *testing.T) {
	store := NewImageStore()
	ctx := context.Background()

	const uploads = 32
	ids := make([]string, uploads)
	var wg sync.WaitGroup
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := store.Save(ctx, fmt.Sprintf("%d.jpg", i), "image/jpeg", bytes.Repeat([]byte{byte(i)}, 4096))
			if err != nil {
				t.Errorf("Save %d: %v", i, err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for i, id := range ids {
		img, err := store.Open(ctx, id)
		if err != nil {
			t.Fatalf("Open %d: %v", i, err)
		}
		if !bytes.Equal(img.Data, bytes.Repeat([]byte{byte(i)}, 4096)) {
			t.Errorf("upload %d returned another upload's bytes", i)
		}
	}
}
