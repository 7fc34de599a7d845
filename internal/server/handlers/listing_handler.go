package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mamadbah2/kisaan/internal/domain/models"
	"github.com/mamadbah2/kisaan/internal/service/listings"
)

// ListingService is the listing lifecycle consumed by the HTTP layer.
type ListingService interface {
	Create(ctx context.Context, actor models.Actor, in listings.CreateInput, uploads []listings.Upload) (*models.Listing, error)
	List(ctx context.Context, params url.Values) (*listings.Page, error)
	Search(ctx context.Context, params url.Values) (*listings.Page, error)
	MyListings(ctx context.Context, actor models.Actor, params url.Values) (*listings.Page, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.Listing, error)
	Update(ctx context.Context, actor models.Actor, id primitive.ObjectID, in listings.UpdateInput) (*models.Listing, error)
	Delete(ctx context.Context, actor models.Actor, id primitive.ObjectID) error
	ToggleLike(ctx context.Context, actor models.Actor, id primitive.ObjectID) (listings.LikeResult, error)
	UpdateStatus(ctx context.Context, actor models.Actor, id primitive.ObjectID, status models.Status) (*models.Listing, error)
	UploadImages(ctx context.Context, actor models.Actor, id primitive.ObjectID, uploads []listings.Upload) (*listings.ImageUploadResult, error)
	DeleteImage(ctx context.Context, actor models.Actor, id, imageID primitive.ObjectID) (*models.Listing, error)
	OpenImage(ctx context.Context, id, imageID primitive.ObjectID) (*models.StoredImage, error)
}

// ListingHandler exposes grain listings over HTTP.
type ListingHandler struct {
	svc    ListingService
	limits UploadLimits
	logger *zap.Logger
}

// NewListingHandler constructs the HTTP handler adapter.
func NewListingHandler(svc ListingService, limits UploadLimits, logger *zap.Logger) *ListingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingHandler{svc: svc, limits: limits, logger: logger}
}

type grainData struct {
	Grain *models.Listing `json:"grain"`
}

type grainsData struct {
	Grains      []*models.Listing `json:"grains"`
	SearchQuery *string           `json:"searchQuery,omitempty"`
}

// Create handles POST /api/grains.
func (h *ListingHandler) Create(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	in, uploads, err := bindCreate(c, h.limits)
	if err != nil {
		respondError(c, err, h.logger)
		return
	}

	listing, err := h.svc.Create(c.Request.Context(), a, in, uploads)
	if err != nil {
		respondError(c, err, h.logger)
		return
	}

	respond(c, http.StatusCreated, grainData{Grain: listing}, "Grain listing created successfully")
}

// List handles GET /api/grains.
func (h *ListingHandler) List(c *gin.Context) {
	page, err := h.svc.List(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		respondError(c, err, h.logger)
		return
	}
	respondPage(c, grainsData{Grains: nonNil(page.Listings)}, page.Pagination, len(page.Listings))
}

// Search handles GET /api/grains/search.
func (h *ListingHandler) Search(c *gin.Context) {
	page, err := h.svc.Search(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		respondError(c, err, h.logger)
		return
	}
	query := page.SearchQuery
	respondPage(c, grainsData{Grains: nonNil(page.Listings), SearchQuery: &query}, page.Pagination, len(page.Listings))
}

// MyListings handles GET /api/grains/my/listings.
func (h *ListingHandler) MyListings(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	page, err := h.svc.MyListings(c.Request.Context(), a, c.Request.URL.Query())
	if err != nil {
		respondError(c, err, h.logger)
		return
	}
	respondPage(c, grainsData{Grains: nonNil(page.Listings)}, page.Pagination, len(page.Listings))
}

// Get handles GET /api/grains/:id.
func (h *ListingHandler) Get(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	listing, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, h.logger)
		return
	}
	respond(c, http.StatusOK, grainData{Grain: listing}, "")
}

// Update handles PUT /api/grains/:id.
func (h *ListingHandler) Update(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	in, err := bindUpdate(c, h.limits)
	if err != nil {
		respondError(c, err, h.logger)
		return
	}

	listing, err := h.svc.Update(c.Request.Context(), a, id, in)
	if err != nil {
		respondError(c, err, h.logger)
		return
	}
	respond(c, http.StatusOK, grainData{Grain: listing}, "Grain updated successfully")
}

// Delete handles DELETE /api/grains/:id.
func (h *ListingHandler) Delete(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), a, id); err != nil {
		respondError(c, err, h.logger)
		return
	}
	respond(c, http.StatusOK, nil, "Grain deleted successfully")
}

// ToggleLike handles POST /api/grains/:id/like.
func (h *ListingHandler) ToggleLike(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.svc.ToggleLike(c.Request.Context(), a, id)
	if err != nil {
		respondError(c, err, h.logger)
		return
	}

	message := "Grain unliked"
	if result.IsLiked {
		message = "Grain liked"
	}
	respond(c, http.StatusOK, result, message)
}

type statusRequest struct {
	Status models.Status `json:"status"`
}

// UpdateStatus handles PUT /api/grains/:id/status.
func (h *ListingHandler) UpdateStatus(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	var req statusRequest
	if err := decodeJSON(c, &req); err != nil {
		respondError(c, err, h.logger)
		return
	}

	listing, err := h.svc.UpdateStatus(c.Request.Context(), a, id, req.Status)
	if err != nil {
		respondError(c, err, h.logger)
		return
	}
	respond(c, http.StatusOK, grainData{Grain: listing}, "Grain status updated successfully")
}

// UploadImages handles POST /api/grains/:id/images.
func (h *ListingHandler) UploadImages(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	var uploads []listings.Upload
	if isMultipart(c) {
		var err error
		if uploads, err = bindUploads(c, h.limits); err != nil {
			respondError(c, err, h.logger)
			return
		}
	}

	// Ownership is checked before an empty upload is rejected.
	result, err := h.svc.UploadImages(c.Request.Context(), a, id, uploads)
	if err != nil {
		respondError(c, err, h.logger)
		return
	}
	respond(c, http.StatusOK, result, "Images uploaded successfully")
}

// DeleteImage handles DELETE /api/grains/:id/images/:imageId.
func (h *ListingHandler) DeleteImage(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	imageID, ok := objectIDParam(c, "imageId")
	if !ok {
		return
	}

	listing, err := h.svc.DeleteImage(c.Request.Context(), a, id, imageID)
	if err != nil {
		respondError(c, err, h.logger)
		return
	}
	respond(c, http.StatusOK, grainData{Grain: listing}, "Image deleted successfully")
}

// Image handles GET /api/grains/:id/images/:imageId.
func (h *ListingHandler) Image(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	imageID, ok := objectIDParam(c, "imageId")
	if !ok {
		return
	}

	img, err := h.svc.OpenImage(c.Request.Context(), id, imageID)
	if err != nil {
		respondError(c, err, h.logger)
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, img.ContentType, img.Data)
}

func nonNil(l []*models.Listing) []*models.Listing {
	if l == nil {
		return []*models.Listing{}
	}
	return l
}
