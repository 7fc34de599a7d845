package listings

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mamadbah2/kisaan/internal/domain/models"
	"github.com/mamadbah2/kisaan/internal/imaging"
)

// Repository persists listings.
type Repository interface {
	Insert(ctx context.Context, listing *models.Listing) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Listing, error)
	Find(ctx context.Context, query models.ListingQuery) ([]*models.Listing, int64, error)
	// Update writes the mutable fields of listing. Owner, likes, views,
	// images and creation time are left untouched.
	Update(ctx context.Context, listing *models.Listing) (*models.Listing, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	IncrementViews(ctx context.Context, id primitive.ObjectID) error
	ToggleLike(ctx context.Context, id, userID primitive.ObjectID) (liked bool, total int, err error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status models.Status, at time.Time) (*models.Listing, error)
	PushImages(ctx context.Context, id primitive.ObjectID, images []models.Image, at time.Time) (*models.Listing, error)
	PullImage(ctx context.Context, id, imageID primitive.ObjectID, at time.Time) (*models.Listing, error)
}

// UserDirectory resolves user references for display.
type UserDirectory interface {
	FindUsers(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error)
}

// ImageStore keeps the bytes of uploaded photos.
type ImageStore interface {
	Save(ctx context.Context, filename, contentType string, data []byte) (string, error)
	Open(ctx context.Context, fileID string) (*models.StoredImage, error)
	Remove(ctx context.Context, fileID string) error
}

// Observer receives listing activity for metrics.
type Observer interface {
	ListingOperation(op string)
	ListingViewed(grainType models.GrainType)
}

type noopObserver struct{}

func (noopObserver) ListingOperation(string)       {}
func (noopObserver) ListingViewed(models.GrainType) {}

// Options tunes listing lifecycle behaviour.
type Options struct {
	TTL           time.Duration
	PublicBaseURL string
	MaxImages     int
	Processor     *imaging.Processor
	Observer      Observer
	Now           func() time.Time
}

// Page is one page of listings plus its position in the result set.
type Page struct {
	Listings    []*models.Listing
	Pagination  models.Pagination
	SearchQuery string
}

// LikeResult reports the like state after a toggle.
type LikeResult struct {
	IsLiked    bool `json:"isLiked"`
	TotalLikes int  `json:"totalLikes"`
}

// ImageUploadResult describes the images appended by an upload.
type ImageUploadResult struct {
	Images      []models.Image `json:"images"`
	TotalImages int            `json:"totalImages"`
}

// Service implements the grain listing lifecycle.
type Service struct {
	repo   Repository
	users  UserDirectory
	images ImageStore
	opts   Options
	logger *zap.Logger
}

// NewService wires a listing service.
func NewService(repo Repository, users UserDirectory, images ImageStore, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * 24 * time.Hour
	}
	if opts.MaxImages <= 0 {
		opts.MaxImages = 5
	}
	if opts.Processor == nil {
		opts.Processor = imaging.NewProcessor()
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.PublicBaseURL = strings.TrimSuffix(opts.PublicBaseURL, "/")

	return &Service{
		repo:   repo,
		users:  users,
		images: images,
		opts:   opts,
		logger: logger,
	}
}

// Create stores a new listing owned by the acting farmer.
func (s *Service) Create(ctx context.Context, actor models.Actor, in CreateInput, uploads []Upload) (*models.Listing, error) {
	farmerID, err := actor.ObjectID()
	if err != nil {
		return nil, models.ErrForbidden
	}

	in.GrainType = models.GrainType(strings.ToLower(strings.TrimSpace(string(in.GrainType))))
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if len(uploads) > s.opts.MaxImages {
		return nil, models.NewValidationError(fmt.Sprintf("at most %d images may be uploaded", s.opts.MaxImages))
	}

	now := s.opts.Now().UTC()
	available := in.Quantity
	if in.AvailableQuantity != nil {
		available = *in.AvailableQuantity
	}

	listing := &models.Listing{
		ID:                   primitive.NewObjectID(),
		FarmerID:             farmerID,
		Title:                strings.TrimSpace(in.Title),
		Description:          strings.TrimSpace(in.Description),
		GrainType:            in.GrainType,
		Variety:              strings.TrimSpace(in.Variety),
		QualityGrade:         in.QualityGrade,
		IsOrganic:            in.IsOrganic,
		Tags:                 models.NormalizeTags(in.Tags),
		Certifications:       append([]models.Certification{}, in.Certifications...),
		PricePerQuintal:      in.PricePerQuintal,
		Quantity:             in.Quantity,
		AvailableQuantity:    available,
		MinimumOrderQuantity: in.MinimumOrderQuantity,
		Location: models.Location{
			Address: strings.TrimSpace(in.Location.Address),
			City:    strings.TrimSpace(in.Location.City),
			State:   strings.TrimSpace(in.Location.State),
			Pincode: strings.TrimSpace(in.Location.Pincode),
		},
		HarvestDate: in.HarvestDate,
		Images:      []models.Image{},
		Status:      models.StatusApproved,
		Likes:       []primitive.ObjectID{},
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(s.opts.TTL),
	}
	if err := checkListing(listing); err != nil {
		return nil, err
	}

	images, err := s.storeImages(ctx, listing, uploads)
	if err != nil {
		return nil, err
	}
	listing.Images = images

	if err := s.repo.Insert(ctx, listing); err != nil {
		s.discardFiles(ctx, images)
		return nil, fmt.Errorf("insert listing: %w", err)
	}

	s.opts.Observer.ListingOperation("create")
	s.logger.Info("listing created",
		zap.String("listing_id", listing.ID.Hex()),
		zap.String("farmer_id", farmerID.Hex()),
		zap.String("grain_type", string(listing.GrainType)),
		zap.Int("images", len(images)))

	s.populate(ctx, []*models.Listing{listing}, false)
	return listing, nil
}

// List returns approved, unexpired listings matching the query parameters.
func (s *Service) List(ctx context.Context, params url.Values) (*Page, error) {
	query, err := ParseListingQuery(params, DefaultPublicLimit, s.opts.Now())
	if err != nil {
		return nil, err
	}
	return s.page(ctx, query)
}

// Search is List with the free-text term echoed back.
func (s *Service) Search(ctx context.Context, params url.Values) (*Page, error) {
	query, err := ParseListingQuery(params, DefaultPublicLimit, s.opts.Now())
	if err != nil {
		return nil, err
	}
	page, err := s.page(ctx, query)
	if err != nil {
		return nil, err
	}
	page.SearchQuery = query.Filter.Search
	return page, nil
}

// MyListings pages through the acting farmer's own listings, whatever their
// status or expiry, optionally narrowed to one status.
func (s *Service) MyListings(ctx context.Context, actor models.Actor, params url.Values) (*Page, error) {
	farmerID, err := actor.ObjectID()
	if err != nil {
		return nil, models.ErrForbidden
	}

	query := models.ListingQuery{
		Filter: models.ListingFilter{FarmerID: &farmerID},
		Sort:   ParseSort(param(params, "sort")),
		Page:   positiveInt(param(params, "page"), 1, MaxPage),
		Limit:  positiveInt(param(params, "limit"), DefaultOwnerLimit, MaxLimit),
	}
	if raw := param(params, "status"); raw != "" {
		status := models.Status(strings.ToLower(raw))
		if !status.Valid() {
			return nil, models.NewValidationError("status must be one of " + models.StatusList())
		}
		query.Filter.Status = status
	}

	return s.page(ctx, query)
}

// Get returns a listing with its owner and likers resolved and counts the view.
func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (*models.Listing, error) {
	listing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.IncrementViews(ctx, id); err != nil {
		s.logger.Warn("failed to record listing view", zap.String("listing_id", id.Hex()), zap.Error(err))
	} else {
		listing.Views++
		s.opts.Observer.ListingViewed(listing.GrainType)
	}

	s.populate(ctx, []*models.Listing{listing}, true)
	return listing, nil
}

// Update merges the supplied fields into an existing listing.
func (s *Service) Update(ctx context.Context, actor models.Actor, id primitive.ObjectID, in UpdateInput) (*models.Listing, error) {
	existing, err := s.authorized(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if in.GrainType != nil {
		normalized := models.GrainType(strings.ToLower(strings.TrimSpace(string(*in.GrainType))))
		in.GrainType = &normalized
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.Status != nil && *in.Status != "" && !in.Status.Valid() {
		return nil, models.NewValidationError("status must be one of " + models.StatusList())
	}

	updated := existing.Clone()
	in.apply(updated)
	if err := checkListing(updated); err != nil {
		return nil, err
	}
	updated.UpdatedAt = s.opts.Now().UTC()

	saved, err := s.repo.Update(ctx, updated)
	if err != nil {
		return nil, err
	}

	s.opts.Observer.ListingOperation("update")
	s.populate(ctx, []*models.Listing{saved}, false)
	return saved, nil
}

// Delete removes a listing permanently along with its stored photos.
func (s *Service) Delete(ctx context.Context, actor models.Actor, id primitive.ObjectID) error {
	existing, err := s.authorized(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.discardFiles(ctx, existing.Images)

	s.opts.Observer.ListingOperation("delete")
	s.logger.Info("listing deleted", zap.String("listing_id", id.Hex()), zap.String("actor_id", actor.UserID))
	return nil
}

// ToggleLike adds the actor to the like set, or removes them if present.
func (s *Service) ToggleLike(ctx context.Context, actor models.Actor, id primitive.ObjectID) (LikeResult, error) {
	userID, err := actor.ObjectID()
	if err != nil {
		return LikeResult{}, models.ErrForbidden
	}

	liked, total, err := s.repo.ToggleLike(ctx, id, userID)
	if err != nil {
		return LikeResult{}, err
	}

	s.opts.Observer.ListingOperation("like")
	return LikeResult{IsLiked: liked, TotalLikes: total}, nil
}

// UpdateStatus sets the lifecycle status. Any status may follow any other.
func (s *Service) UpdateStatus(ctx context.Context, actor models.Actor, id primitive.ObjectID, status models.Status) (*models.Listing, error) {
	if !status.Valid() {
		return nil, models.NewValidationError("Invalid status. Valid statuses are: " + models.StatusList())
	}

	if _, err := s.authorized(ctx, actor, id); err != nil {
		return nil, err
	}

	saved, err := s.repo.SetStatus(ctx, id, status, s.opts.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.opts.Observer.ListingOperation("status")
	s.logger.Info("listing status changed", zap.String("listing_id", id.Hex()), zap.String("status", string(status)))
	return saved, nil
}

// UploadImages appends photos to a listing.
func (s *Service) UploadImages(ctx context.Context, actor models.Actor, id primitive.ObjectID, uploads []Upload) (*ImageUploadResult, error) {
	existing, err := s.authorized(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if len(uploads) == 0 {
		return nil, models.NewValidationError("No images uploaded")
	}
	if len(uploads) > s.opts.MaxImages {
		return nil, models.NewValidationError(fmt.Sprintf("at most %d images may be uploaded", s.opts.MaxImages))
	}

	images, err := s.storeImages(ctx, existing, uploads)
	if err != nil {
		return nil, err
	}

	saved, err := s.repo.PushImages(ctx, id, images, s.opts.Now().UTC())
	if err != nil {
		s.discardFiles(ctx, images)
		return nil, err
	}

	s.opts.Observer.ListingOperation("upload_images")
	return &ImageUploadResult{Images: images, TotalImages: len(saved.Images)}, nil
}

// DeleteImage removes one photo from a listing.
func (s *Service) DeleteImage(ctx context.Context, actor models.Actor, id, imageID primitive.ObjectID) (*models.Listing, error) {
	existing, err := s.authorized(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	idx := existing.FindImage(imageID)
	if idx < 0 {
		return nil, models.ErrNotFound
	}
	removed := existing.Images[idx]

	saved, err := s.repo.PullImage(ctx, id, imageID, s.opts.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.discardFiles(ctx, []models.Image{removed})

	s.opts.Observer.ListingOperation("delete_image")
	return saved, nil
}

// OpenImage returns the stored bytes of a listing photo.
func (s *Service) OpenImage(ctx context.Context, id, imageID primitive.ObjectID) (*models.StoredImage, error) {
	listing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	idx := listing.FindImage(imageID)
	if idx < 0 || listing.Images[idx].FileID == "" {
		return nil, models.ErrNotFound
	}
	return s.images.Open(ctx, listing.Images[idx].FileID)
}

func (s *Service) authorized(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.Listing, error) {
	listing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(listing.FarmerID, actor); err != nil {
		s.logger.Info("listing mutation denied",
			zap.String("listing_id", id.Hex()),
			zap.String("actor_id", actor.UserID),
			zap.String("role", string(actor.Role)))
		return nil, err
	}
	return listing, nil
}

func (s *Service) page(ctx context.Context, query models.ListingQuery) (*Page, error) {
	listings, total, err := s.repo.Find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("find listings: %w", err)
	}
	s.populate(ctx, listings, false)

	return &Page{
		Listings:   listings,
		Pagination: models.NewPagination(query.Page, query.Limit, total),
	}, nil
}

// populate resolves owners (and likers when requested). Lookup failures
// leave bare id references in place.
func (s *Service) populate(ctx context.Context, listings []*models.Listing, withLikers bool) {
	if len(listings) == 0 {
		return
	}

	seen := make(map[primitive.ObjectID]struct{})
	var ids []primitive.ObjectID
	add := func(id primitive.ObjectID) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, l := range listings {
		add(l.FarmerID)
		if withLikers {
			for _, id := range l.Likes {
				add(id)
			}
		}
	}

	var users map[primitive.ObjectID]models.UserSummary
	if s.users != nil {
		found, err := s.users.FindUsers(ctx, ids)
		if err != nil {
			s.logger.Warn("failed to populate listing users", zap.Error(err))
		}
		users = found
	}

	for _, l := range listings {
		owner, ok := users[l.FarmerID]
		if !ok {
			owner = models.UserSummary{ID: l.FarmerID}
		}
		l.Farmer = &owner

		if withLikers {
			l.LikedBy = make([]models.UserSummary, 0, len(l.Likes))
			for _, id := range l.Likes {
				liker, ok := users[id]
				if !ok {
					liker = models.UserSummary{ID: id}
				}
				l.LikedBy = append(l.LikedBy, liker)
			}
		}
	}
}

func (s *Service) storeImages(ctx context.Context, listing *models.Listing, uploads []Upload) ([]models.Image, error) {
	images := make([]models.Image, 0, len(uploads))
	for _, upload := range uploads {
		processed, err := s.opts.Processor.Process(upload.Data)
		if err != nil {
			s.discardFiles(ctx, images)
			if errors.Is(err, imaging.ErrUnsupportedFormat) {
				return nil, models.NewValidationError(fmt.Sprintf("%s is not a JPEG, PNG or WebP image", upload.Filename))
			}
			if errors.Is(err, imaging.ErrTooLarge) {
				return nil, models.NewValidationError(fmt.Sprintf("%s exceeds the maximum image dimensions", upload.Filename))
			}
			return nil, models.NewValidationError(fmt.Sprintf("%s could not be read as an image", upload.Filename))
		}

		fileID, err := s.images.Save(ctx, upload.Filename, processed.MIME, processed.Data)
		if err != nil {
			s.discardFiles(ctx, images)
			return nil, fmt.Errorf("store image %s: %w", upload.Filename, err)
		}

		imageID := primitive.NewObjectID()
		images = append(images, models.Image{
			ID:     imageID,
			URL:    s.imageURL(listing.ID, imageID),
			Alt:    altText(listing),
			FileID: fileID,
		})
	}
	return images, nil
}

func (s *Service) discardFiles(ctx context.Context, images []models.Image) {
	for _, img := range images {
		if img.FileID == "" {
			continue
		}
		if err := s.images.Remove(ctx, img.FileID); err != nil {
			s.logger.Warn("failed to remove stored image", zap.String("file_id", img.FileID), zap.Error(err))
		}
	}
}

func (s *Service) imageURL(listingID, imageID primitive.ObjectID) string {
	return fmt.Sprintf("%s/api/grains/%s/images/%s", s.opts.PublicBaseURL, listingID.Hex(), imageID.Hex())
}

func altText(l *models.Listing) string {
	return strings.Join(strings.Fields(fmt.Sprintf("%s %s image", l.GrainType, l.Variety)), " ")
}
