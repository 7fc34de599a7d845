package listings

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mamadbah2/kisaan/internal/domain/models"
	"github.com/mamadbah2/kisaan/internal/imaging"
	"github.com/mamadbah2/kisaan/internal/repository/memory"
)

type fixture struct {
	svc    *Service
	repo   *memory.ListingRepository
	images *memory.ImageStore
	clock  *time.Time
	farmer models.Actor
	other  models.Actor
	admin  models.Actor
	buyer  models.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	f := &fixture{
		repo:   memory.NewListingRepository(),
		images: memory.NewImageStore(),
		clock:  &now,
		farmer: models.Actor{UserID: primitive.NewObjectID().Hex(), Role: models.RoleFarmer},
		other:  models.Actor{UserID: primitive.NewObjectID().Hex(), Role: models.RoleFarmer},
		admin:  models.Actor{UserID: primitive.NewObjectID().Hex(), Role: models.RoleAdmin},
		buyer:  models.Actor{UserID: primitive.NewObjectID().Hex(), Role: models.RoleBuyer},
	}
	farmerID, _ := f.farmer.ObjectID()
	users := memory.NewUserDirectory(models.UserSummary{ID: farmerID, Name: "Gurpreet", City: "Ludhiana", State: "Punjab"})

	f.svc = NewService(f.repo, users, f.images, Options{
		TTL:           30 * 24 * time.Hour,
		PublicBaseURL: "https://kisaan.example/",
		MaxImages:     3,
		Now:           func() time.Time { return *f.clock },
	}, nil)
	return f
}

func validInput() CreateInput {
	return CreateInput{
		Title:           "Basmati 1121",
		Description:     "Aged one year",
		GrainType:       models.GrainRice,
		Variety:         "1121",
		QualityGrade:    models.GradeA,
		PricePerQuintal: 3200,
		Quantity:        100,
		Tags:            []string{"Basmati", "basmati ", "aged"},
		Location:        LocationInput{City: "Karnal", State: "Haryana"},
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func (f *fixture) create(t *testing.T, in CreateInput) *models.Listing {
	t.Helper()
	l, err := f.svc.Create(context.Background(), f.farmer, in, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return l
}

func TestCreateDefaults(t *testing.T) {
	f := newFixture(t)
	l := f.create(t, validInput())

	if l.Status != models.StatusApproved {
		t.Errorf("expected approved, got %q", l.Status)
	}
	if l.AvailableQuantity != 100 {
		t.Errorf("expected available quantity 100, got %v", l.AvailableQuantity)
	}
	if l.FarmerID.Hex() != f.farmer.UserID {
		t.Errorf("expected owner %s, got %s", f.farmer.UserID, l.FarmerID.Hex())
	}
	if want := f.clock.Add(30 * 24 * time.Hour); !l.ExpiresAt.Equal(want) {
		t.Errorf("expected expiry %v, got %v", want, l.ExpiresAt)
	}
	if l.Farmer == nil || l.Farmer.Name != "Gurpreet" {
		t.Errorf("expected populated owner, got %+v", l.Farmer)
	}
	if strings.Join(l.Tags, ",") != "basmati,aged" {
		t.Errorf("expected normalized tags, got %v", l.Tags)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]func(*CreateInput){
		"missing grain type": func(in *CreateInput) { in.GrainType = "" },
		"unknown grain type": func(in *CreateInput) { in.GrainType = "coffee" },
		"zero price":         func(in *CreateInput) { in.PricePerQuintal = 0 },
		"negative quantity":  func(in *CreateInput) { in.Quantity = -1 },
		"missing city":       func(in *CreateInput) { in.Location.City = "" },
		"missing state":      func(in *CreateInput) { in.Location.State = " " },
		"bad grade":          func(in *CreateInput) { in.QualityGrade = "Z" },
		"available too high": func(in *CreateInput) { v := 150.0; in.AvailableQuantity = &v },
	}
	for name, mutate := range cases {
		in := validInput()
		mutate(&in)
		_, err := f.svc.Create(context.Background(), f.farmer, in, nil)
		if !models.IsValidation(err) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestCreateValidationMessageNamesField(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.PricePerQuintal = 0

	_, err := f.svc.Create(context.Background(), f.farmer, in, nil)
	if err == nil || !strings.Contains(err.Error(), "pricePerQuintal") {
		t.Fatalf("expected message naming pricePerQuintal, got %v", err)
	}
}

func TestCreateWithImages(t *testing.T) {
	f := newFixture(t)
	uploads := []Upload{{Filename: "a.png", Data: pngBytes(t)}, {Filename: "b.png", Data: pngBytes(t)}}

	l, err := f.svc.Create(context.Background(), f.farmer, validInput(), uploads)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(l.Images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(l.Images))
	}
	img := l.Images[0]
	wantPrefix := "https://kisaan.example/api/grains/" + l.ID.Hex() + "/images/"
	if !strings.HasPrefix(img.URL, wantPrefix) {
		t.Errorf("unexpected url %q", img.URL)
	}
	if img.Alt != "rice 1121 image" {
		t.Errorf("unexpected alt %q", img.Alt)
	}

	stored, err := f.svc.OpenImage(context.Background(), l.ID, img.ID)
	if err != nil {
		t.Fatalf("OpenImage: %v", err)
	}
	if stored.ContentType != "image/jpeg" || len(stored.Data) == 0 {
		t.Errorf("unexpected stored image %q (%d bytes)", stored.ContentType, len(stored.Data))
	}
}

func TestCreateRejectsNonImageUpload(t *testing.T) {
	f := newFixture(t)
	uploads := []Upload{{Filename: "a.png", Data: pngBytes(t)}, {Filename: "notes.txt", Data: []byte("hello")}}

	_, err := f.svc.Create(context.Background(), f.farmer, validInput(), uploads)
	if !models.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.images.Len() != 0 {
		t.Errorf("expected stored files to be cleaned up, %d remain", f.images.Len())
	}
}

func TestCreateRejectsOversizedImage(t *testing.T) {
	f := newFixture(t)
	f.svc.opts.Processor = &imaging.Processor{MaxDimension: 1024, Quality: 85, MaxPixels: 16}

	_, err := f.svc.Create(context.Background(), f.farmer, validInput(), []Upload{{Filename: "huge.png", Data: pngBytes(t)}})
	if !models.IsValidation(err) || !strings.Contains(err.Error(), "huge.png") {
		t.Fatalf("expected validation error naming the file, got %v", err)
	}
	if f.images.Len() != 0 {
		t.Errorf("expected nothing stored, got %d files", f.images.Len())
	}
}

func TestListHidesUnapprovedAndExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	visible := f.create(t, validInput())
	sold := f.create(t, validInput())
	if _, err := f.svc.UpdateStatus(ctx, f.farmer, sold.ID, models.StatusSold); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	*f.clock = f.clock.Add(31 * 24 * time.Hour)
	fresh := f.create(t, validInput())

	page, err := f.svc.List(ctx, url.Values{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Listings) != 1 || page.Listings[0].ID != fresh.ID {
		t.Fatalf("expected only the fresh listing, got %d listings", len(page.Listings))
	}
	if page.Pagination.TotalItems != 1 {
		t.Errorf("expected total 1, got %d", page.Pagination.TotalItems)
	}

	mine, err := f.svc.MyListings(ctx, f.farmer, url.Values{})
	if err != nil {
		t.Fatalf("MyListings: %v", err)
	}
	if mine.Pagination.TotalItems != 3 || mine.Pagination.Limit != DefaultOwnerLimit {
		t.Errorf("expected all 3 own listings with limit %d, got %+v", DefaultOwnerLimit, mine.Pagination)
	}
	_ = visible
}

func TestListPriceRange(t *testing.T) {
	f := newFixture(t)
	for _, price := range []float64{2800, 3200, 4200, 5000} {
		in := validInput()
		in.PricePerQuintal = price
		f.create(t, in)
	}

	page, err := f.svc.List(context.Background(), url.Values{"minPrice": {"3000"}, "maxPrice": {"4500"}, "sort": {"pricePerQuintal"}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(page.Listings))
	}
	if page.Listings[0].PricePerQuintal != 3200 || page.Listings[1].PricePerQuintal != 4200 {
		t.Errorf("unexpected prices %v %v", page.Listings[0].PricePerQuintal, page.Listings[1].PricePerQuintal)
	}
}

func TestListRejectsMalformedPrice(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.List(context.Background(), url.Values{"minPrice": {"abc"}})
	if !models.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSearchIsCaseInsensitiveAndEchoes(t *testing.T) {
	f := newFixture(t)
	f.create(t, validInput())
	in := validInput()
	in.Title, in.Variety, in.GrainType = "Sharbati", "lokwan", models.GrainWheat
	in.Description = ""
	f.create(t, in)

	for _, term := range []string{"basmati", "BASMATI", "Basmati"} {
		page, err := f.svc.Search(context.Background(), url.Values{"q": {term}})
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(page.Listings) != 1 {
			t.Errorf("%q: expected 1 match, got %d", term, len(page.Listings))
		}
		if page.SearchQuery != term {
			t.Errorf("expected echoed term %q, got %q", term, page.SearchQuery)
		}
	}

	page, _ := f.svc.Search(context.Background(), url.Values{"q": {"karnal"}})
	if len(page.Listings) != 2 {
		t.Errorf("expected city match on both listings, got %d", len(page.Listings))
	}
}

func TestPaginationMetadata(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 25; i++ {
		f.create(t, validInput())
	}

	page, err := f.svc.List(context.Background(), url.Values{"page": {"2"}, "limit": {"10"}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := models.Pagination{Current: 2, Total: 3, HasNext: true, HasPrev: true, Limit: 10, TotalItems: 25}
	if page.Pagination != want {
		t.Errorf("expected %+v, got %+v", want, page.Pagination)
	}
	if len(page.Listings) != 10 {
		t.Errorf("expected 10 listings, got %d", len(page.Listings))
	}
}

func TestGetCountsViewsAndPopulatesLikers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, validInput())
	if _, err := f.svc.ToggleLike(ctx, f.buyer, l.ID); err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}

	first, err := f.svc.Get(ctx, l.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, _ := f.svc.Get(ctx, l.ID)
	if first.Views != 1 || second.Views != 2 {
		t.Errorf("expected views 1 then 2, got %d then %d", first.Views, second.Views)
	}
	if len(second.LikedBy) != 1 || second.LikedBy[0].ID.Hex() != f.buyer.UserID {
		t.Errorf("expected buyer among likers, got %+v", second.LikedBy)
	}
}

func TestGetMissing(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Get(context.Background(), primitive.NewObjectID()); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateMergesAndKeepsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, validInput())
	if _, err := f.svc.UpdateStatus(ctx, f.farmer, l.ID, models.StatusSold); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	price := 3500.0
	saved, err := f.svc.Update(ctx, f.farmer, l.ID, UpdateInput{PricePerQuintal: &price})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if saved.PricePerQuintal != 3500 {
		t.Errorf("expected price 3500, got %v", saved.PricePerQuintal)
	}
	if saved.Status != models.StatusSold {
		t.Errorf("expected status to stay sold, got %q", saved.Status)
	}
	if saved.Title != "Basmati 1121" {
		t.Errorf("expected untouched title, got %q", saved.Title)
	}

	empty := models.Status("")
	saved, _ = f.svc.Update(ctx, f.farmer, l.ID, UpdateInput{Status: &empty})
	if saved.Status != models.StatusSold {
		t.Errorf("empty status should not reset, got %q", saved.Status)
	}

	pending := models.StatusPending
	saved, _ = f.svc.Update(ctx, f.farmer, l.ID, UpdateInput{Status: &pending})
	if saved.Status != models.StatusPending {
		t.Errorf("expected explicit status change, got %q", saved.Status)
	}
}

func TestUpdateRejectsAvailableAboveTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, validInput())

	quantity := 50.0
	_, err := f.svc.Update(ctx, f.farmer, l.ID, UpdateInput{Quantity: &quantity})
	if !models.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	available := 40.0
	saved, err := f.svc.Update(ctx, f.farmer, l.ID, UpdateInput{Quantity: &quantity, AvailableQuantity: &available})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if saved.Quantity != 50 || saved.AvailableQuantity != 40 {
		t.Errorf("unexpected quantities %v/%v", saved.Quantity, saved.AvailableQuantity)
	}
}

func TestUpdateByNonOwnerIsForbiddenAndHarmless(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, validInput())

	title := "hijacked"
	if _, err := f.svc.Update(ctx, f.other, l.ID, UpdateInput{Title: &title}); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := f.svc.Delete(ctx, f.buyer, l.ID); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	stored, _ := f.repo.FindByID(ctx, l.ID)
	if stored.Title != "Basmati 1121" {
		t.Errorf("listing mutated by non-owner: %q", stored.Title)
	}
}

func TestUpdateStatusByNonOwnerIsForbiddenAndHarmless(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, validInput())

	for _, actor := range []models.Actor{f.other, f.buyer} {
		if _, err := f.svc.UpdateStatus(ctx, actor, l.ID, models.StatusSold); !errors.Is(err, models.ErrForbidden) {
			t.Fatalf("%s: expected ErrForbidden, got %v", actor.Role, err)
		}
	}

	stored, _ := f.repo.FindByID(ctx, l.ID)
	if stored.Status != models.StatusApproved || !stored.UpdatedAt.Equal(l.UpdatedAt) {
		t.Errorf("listing mutated by non-owner: status %q updated %v", stored.Status, stored.UpdatedAt)
	}
}

func TestDeleteImageByNonOwnerIsForbiddenAndHarmless(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l, err := f.svc.Create(ctx, f.farmer, validInput(), []Upload{{Filename: "a.png", Data: pngBytes(t)}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	imageID := l.Images[0].ID

	for _, actor := range []models.Actor{f.other, f.buyer} {
		if _, err := f.svc.DeleteImage(ctx, actor, l.ID, imageID); !errors.Is(err, models.ErrForbidden) {
			t.Fatalf("%s: expected ErrForbidden, got %v", actor.Role, err)
		}
	}

	stored, _ := f.repo.FindByID(ctx, l.ID)
	if len(stored.Images) != 1 || stored.Images[0].ID != imageID {
		t.Errorf("image removed by non-owner: %+v", stored.Images)
	}
	if f.images.Len() != 1 {
		t.Errorf("expected stored file kept, got %d files", f.images.Len())
	}
	if _, err := f.svc.OpenImage(ctx, l.ID, imageID); err != nil {
		t.Errorf("expected image still served, got %v", err)
	}
}

func TestUpdateMissingBeforeForbidden(t *testing.T) {
	f := newFixture(t)
	title := "x"
	_, err := f.svc.Update(context.Background(), f.other, primitive.NewObjectID(), UpdateInput{Title: &title})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdminMayMutateAnyListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, validInput())

	saved, err := f.svc.UpdateStatus(ctx, f.admin, l.ID, models.StatusRejected)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if saved.Status != models.StatusRejected {
		t.Errorf("expected rejected, got %q", saved.Status)
	}
	if err := f.svc.Delete(ctx, f.admin, l.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, l.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected deleted listing to be gone, got %v", err)
	}
}

func TestUpdateStatusValidatesBeforeLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, validInput())

	if _, err := f.svc.UpdateStatus(ctx, f.farmer, primitive.NewObjectID(), "archived"); !models.IsValidation(err) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, f.farmer, l.ID, "archived"); !models.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	stored, _ := f.repo.FindByID(ctx, l.ID)
	if stored.Status != models.StatusApproved {
		t.Errorf("status changed to %q", stored.Status)
	}
}

func TestStatusTransitionsAreFree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, validInput())

	for _, s := range []models.Status{models.StatusSold, models.StatusPending, models.StatusExpired, models.StatusApproved} {
		saved, err := f.svc.UpdateStatus(ctx, f.farmer, l.ID, s)
		if err != nil {
			t.Fatalf("UpdateStatus %s: %v", s, err)
		}
		if saved.Status != s {
			t.Errorf("expected %s, got %s", s, saved.Status)
		}
	}
}

func TestToggleLikeIsReversible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, validInput())

	res, err := f.svc.ToggleLike(ctx, f.buyer, l.ID)
	if err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	if !res.IsLiked || res.TotalLikes != 1 {
		t.Errorf("expected liked/1, got %+v", res)
	}
	if _, err := f.svc.ToggleLike(ctx, f.other, l.ID); err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}

	res, _ = f.svc.ToggleLike(ctx, f.buyer, l.ID)
	if res.IsLiked || res.TotalLikes != 1 {
		t.Errorf("expected unliked/1, got %+v", res)
	}

	stored, _ := f.repo.FindByID(ctx, l.ID)
	buyerID, _ := f.buyer.ObjectID()
	if stored.LikedByUser(buyerID) {
		t.Error("buyer still in like set after second toggle")
	}
}

func TestUploadAndDeleteImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, validInput())

	if _, err := f.svc.UploadImages(ctx, f.farmer, l.ID, nil); !models.IsValidation(err) {
		t.Fatalf("expected validation error for empty upload, got %v", err)
	}
	if _, err := f.svc.UploadImages(ctx, f.other, l.ID, []Upload{{Filename: "a.png", Data: pngBytes(t)}}); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	res, err := f.svc.UploadImages(ctx, f.farmer, l.ID, []Upload{{Filename: "a.png", Data: pngBytes(t)}, {Filename: "b.png", Data: pngBytes(t)}})
	if err != nil {
		t.Fatalf("UploadImages: %v", err)
	}
	if len(res.Images) != 2 || res.TotalImages != 2 {
		t.Fatalf("unexpected upload result %+v", res)
	}

	saved, err := f.svc.DeleteImage(ctx, f.farmer, l.ID, res.Images[0].ID)
	if err != nil {
		t.Fatalf("DeleteImage: %v", err)
	}
	if len(saved.Images) != 1 || saved.Images[0].ID != res.Images[1].ID {
		t.Errorf("unexpected remaining images %+v", saved.Images)
	}
	if f.images.Len() != 1 {
		t.Errorf("expected one stored file left, got %d", f.images.Len())
	}
	if _, err := f.svc.DeleteImage(ctx, f.farmer, l.ID, res.Images[0].ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for removed image, got %v", err)
	}

	if err := f.svc.Delete(ctx, f.farmer, l.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if f.images.Len() != 0 {
		t.Errorf("expected files removed with listing, %d remain", f.images.Len())
	}
}

func TestMyListingsStatusFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, validInput())
	f.create(t, validInput())
	if _, err := f.svc.UpdateStatus(ctx, f.farmer, l.ID, models.StatusSold); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	page, err := f.svc.MyListings(ctx, f.farmer, url.Values{"status": {"sold"}})
	if err != nil {
		t.Fatalf("MyListings: %v", err)
	}
	if len(page.Listings) != 1 || page.Listings[0].ID != l.ID {
		t.Errorf("expected the sold listing only, got %d", len(page.Listings))
	}

	if _, err := f.svc.MyListings(ctx, f.farmer, url.Values{"status": {"archived"}}); !models.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}

	others, _ := f.svc.MyListings(ctx, f.other, url.Values{})
	if len(others.Listings) != 0 {
		t.Errorf("expected no listings for another farmer, got %d", len(others.Listings))
	}
}
