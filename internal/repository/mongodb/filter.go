package mongodb

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mamadbah2/kisaan/internal/domain/models"
)

// BuildListingFilter renders a listing filter as a MongoDB query document.
func BuildListingFilter(f models.ListingFilter) bson.M {
	filter := bson.M{}

	if f.FarmerID != nil {
		filter["farmer"] = *f.FarmerID
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.GrainType != "" {
		filter["grainType"] = string(f.GrainType)
	}
	if f.State != "" {
		filter["location.state"] = containsFold(f.State)
	}
	if f.City != "" {
		filter["location.city"] = containsFold(f.City)
	}

	price := bson.M{}
	if f.MinPrice != nil {
		price["$gte"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		price["$lte"] = *f.MaxPrice
	}
	if len(price) > 0 {
		filter["pricePerQuintal"] = price
	}

	if f.MinQuantity != nil {
		filter["availableQuantity"] = bson.M{"$gte": *f.MinQuantity}
	}
	if f.QualityGrade != "" {
		filter["qualityGrade"] = string(f.QualityGrade)
	}
	if f.IsOrganic != nil {
		filter["isOrganic"] = *f.IsOrganic
	}
	if !f.ActiveAt.IsZero() {
		filter["expiresAt"] = bson.M{"$gt": f.ActiveAt}
	}

	if f.Search != "" {
		or := make(bson.A, 0, len(models.SearchFields))
		for _, field := range models.SearchFields {
			or = append(or, bson.M{field: containsFold(f.Search)})
		}
		filter["$or"] = or
	}

	return filter
}

// BuildSort renders sort fields as an ordered sort document, with _id as the
// final tie breaker.
func BuildSort(fields []models.SortField) bson.D {
	if len(fields) == 0 {
		fields = models.DefaultSort
	}
	sort := make(bson.D, 0, len(fields)+1)
	for _, f := range fields {
		dir := 1
		if f.Descending {
			dir = -1
		}
		sort = append(sort, bson.E{Key: f.Field, Value: dir})
	}
	return append(sort, bson.E{Key: "_id", Value: 1})
}

// containsFold matches value literally anywhere in the field, ignoring case.
func containsFold(value string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(value), Options: "i"}
}
