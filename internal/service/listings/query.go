package listings

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mamadbah2/kisaan/internal/domain/models"
)

const (
	// DefaultPublicLimit is the page size for public browsing and search.
	DefaultPublicLimit = 12
	// DefaultOwnerLimit is the page size for a farmer's own listings.
	DefaultOwnerLimit = 10
	// MaxLimit caps the page size a client may request.
	MaxLimit = 100
	// MaxPage caps the page number so offsets stay representable.
	MaxPage = math.MaxInt32
)

var sortable = map[string]bool{
	"createdAt":         true,
	"updatedAt":         true,
	"pricePerQuintal":   true,
	"quantity":          true,
	"availableQuantity": true,
	"views":             true,
	"harvestDate":       true,
	"title":             true,
}

// ParseListingQuery translates raw query parameters into a storage-neutral
// listing query. Unknown parameters are ignored; empty ones are dropped.
// When now is non-zero only approved, unexpired listings match.
func ParseListingQuery(params url.Values, defaultLimit int, now time.Time) (models.ListingQuery, error) {
	var problems []string
	filter := models.ListingFilter{
		GrainType:    models.GrainType(strings.ToLower(param(params, "grainType"))),
		State:        param(params, "state"),
		City:         param(params, "city"),
		QualityGrade: models.QualityGrade(strings.ToUpper(param(params, "qualityGrade"))),
		Search:       param(params, "q"),
	}

	var err error
	if filter.MinPrice, err = parseFloatParam(params, "minPrice"); err != nil {
		problems = append(problems, err.Error())
	}
	if filter.MaxPrice, err = parseFloatParam(params, "maxPrice"); err != nil {
		problems = append(problems, err.Error())
	}
	if filter.MinQuantity, err = parseFloatParam(params, "minQuantity"); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return models.ListingQuery{}, models.NewValidationError(problems...)
	}

	switch param(params, "isOrganic") {
	case "true":
		organic := true
		filter.IsOrganic = &organic
	case "false":
		organic := false
		filter.IsOrganic = &organic
	}

	if !now.IsZero() {
		filter.Status = models.StatusApproved
		filter.ActiveAt = now
	}

	return models.ListingQuery{
		Filter: filter,
		Sort:   ParseSort(param(params, "sort")),
		Page:   positiveInt(param(params, "page"), 1, MaxPage),
		Limit:  positiveInt(param(params, "limit"), defaultLimit, MaxLimit),
	}, nil
}

// ParseSort reads a sort expression such as "-pricePerQuintal,createdAt".
// Keys may be separated by commas or spaces; a leading "-" sorts descending.
func ParseSort(raw string) []models.SortField {
	keys := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
	fields := make([]models.SortField, 0, len(keys))
	for _, key := range keys {
		desc := strings.HasPrefix(key, "-")
		key = strings.TrimLeft(key, "+-")
		if !sortable[key] {
			continue
		}
		fields = append(fields, models.SortField{Field: key, Descending: desc})
	}
	if len(fields) == 0 {
		return append([]models.SortField(nil), models.DefaultSort...)
	}
	return fields
}

func param(params url.Values, key string) string {
	return strings.TrimSpace(params.Get(key))
}

func parseFloatParam(params url.Values, key string) (*float64, error) {
	raw := param(params, key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%s must be a number", key)
	}
	return &v, nil
}

// positiveInt parses raw as an integer >= 1, falling back to def. A positive
// ceiling clamps the result, including values too large for an int.
func positiveInt(raw string, def, ceiling int) int {
	n, err := strconv.Atoi(raw)
	var numErr *strconv.NumError
	if errors.As(err, &numErr) && numErr.Err == strconv.ErrRange && !strings.HasPrefix(raw, "-") && ceiling > 0 {
		return ceiling
	}
	if err != nil || n < 1 {
		n = def
	}
	if ceiling > 0 && n > ceiling {
		n = ceiling
	}
	return n
}
