package models

import (
	"math"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ListingFilter is the storage-neutral form of a listing query. Zero values
// mean "unconstrained".
type ListingFilter struct {
	FarmerID     *primitive.ObjectID
	Status       Status
	GrainType    GrainType
	State        string
	City         string
	MinPrice     *float64
	MaxPrice     *float64
	MinQuantity  *float64
	QualityGrade QualityGrade
	IsOrganic    *bool
	Search       string
	// ActiveAt excludes listings whose expiry is not after this instant.
	ActiveAt time.Time
}

// SearchFields are the listing attributes matched by free-text search.
var SearchFields = []string{"title", "description", "variety", "location.city", "location.state"}

// Matches evaluates the filter against a single listing in memory.
func (f ListingFilter) Matches(l *Listing) bool {
	if f.FarmerID != nil && l.FarmerID != *f.FarmerID {
		return false
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.GrainType != "" && l.GrainType != f.GrainType {
		return false
	}
	if f.State != "" && !containsFold(l.Location.State, f.State) {
		return false
	}
	if f.City != "" && !containsFold(l.Location.City, f.City) {
		return false
	}
	if f.MinPrice != nil && l.PricePerQuintal < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && l.PricePerQuintal > *f.MaxPrice {
		return false
	}
	if f.MinQuantity != nil && l.AvailableQuantity < *f.MinQuantity {
		return false
	}
	if f.QualityGrade != "" && l.QualityGrade != f.QualityGrade {
		return false
	}
	if f.IsOrganic != nil && l.IsOrganic != *f.IsOrganic {
		return false
	}
	if !f.ActiveAt.IsZero() && !l.ExpiresAt.After(f.ActiveAt) {
		return false
	}
	if f.Search != "" {
		haystacks := []string{l.Title, l.Description, l.Variety, l.Location.City, l.Location.State}
		found := false
		for _, h := range haystacks {
			if containsFold(h, f.Search) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// SortField orders results by one listing attribute.
type SortField struct {
	Field      string
	Descending bool
}

// DefaultSort is newest first.
var DefaultSort = []SortField{{Field: "createdAt", Descending: true}}

// ListingQuery bundles a filter with paging and ordering.
type ListingQuery struct {
	Filter ListingFilter
	Sort   []SortField
	Page   int
	// Limit of zero returns every match.
	Limit int
}

// Offset is the number of matches skipped before the page starts. It
// saturates at math.MaxInt instead of overflowing.
func (q ListingQuery) Offset() int {
	if q.Page < 1 || q.Limit <= 0 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

// Pagination describes where a page sits within the full result set.
type Pagination struct {
	Current    int   `json:"current"`
	Total      int   `json:"total"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
	Limit      int   `json:"limit"`
	TotalItems int64 `json:"totalItems"`
}

// NewPagination computes paging metadata for a page of the given size.
func NewPagination(page, limit int, totalItems int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int(math.Ceil(float64(totalItems) / float64(limit)))
	}
	return Pagination{
		Current:    page,
		Total:      totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
		Limit:      limit,
		TotalItems: totalItems,
	}
}

// SortListings orders listings in place following the sort fields.
func SortListings(listings []*Listing, fields []SortField) {
	if len(fields) == 0 {
		fields = DefaultSort
	}
	sort.SliceStable(listings, func(i, j int) bool {
		for _, f := range fields {
			c := compareField(listings[i], listings[j], f.Field)
			if c == 0 {
				continue
			}
			if f.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareField(a, b *Listing, field string) int {
	switch field {
	case "_id":
		return strings.Compare(a.ID.Hex(), b.ID.Hex())
	case "createdAt":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updatedAt":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case "pricePerQuintal":
		return compareFloat(a.PricePerQuintal, b.PricePerQuintal)
	case "quantity":
		return compareFloat(a.Quantity, b.Quantity)
	case "availableQuantity":
		return compareFloat(a.AvailableQuantity, b.AvailableQuantity)
	case "views":
		return compareFloat(float64(a.Views), float64(b.Views))
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "harvestDate":
		var at, bt time.Time
		if a.HarvestDate != nil {
			at = *a.HarvestDate
		}
		if b.HarvestDate != nil {
			bt = *b.HarvestDate
		}
		return at.Compare(bt)
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
