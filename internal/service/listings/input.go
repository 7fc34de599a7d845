package listings

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mamadbah2/kisaan/internal/domain/models"
)

// LocationInput is the storage location supplied on create.
type LocationInput struct {
	Address string `json:"address"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	Pincode string `json:"pincode"`
}

// CreateInput is the canonical create payload, whatever the transport encoding.
type CreateInput struct {
	Title                string                 `json:"title" validate:"max=100"`
	Description          string                 `json:"description" validate:"max=2000"`
	GrainType            models.GrainType       `json:"grainType" validate:"required,grain_type"`
	Variety              string                 `json:"variety" validate:"max=100"`
	QualityGrade         models.QualityGrade    `json:"qualityGrade" validate:"omitempty,oneof=A+ A B C"`
	IsOrganic            bool                   `json:"isOrganic"`
	Tags                 []string               `json:"tags"`
	Certifications       []models.Certification `json:"certifications"`
	PricePerQuintal      float64                `json:"pricePerQuintal" validate:"gt=0"`
	Quantity             float64                `json:"quantity" validate:"gt=0"`
	AvailableQuantity    *float64               `json:"availableQuantity" validate:"omitempty,gte=0"`
	MinimumOrderQuantity float64                `json:"minimumOrderQuantity" validate:"gte=0"`
	Location             LocationInput          `json:"location"`
	HarvestDate          *time.Time             `json:"harvestDate"`
}

// LocationPatch carries the location fields an update wants to change.
type LocationPatch struct {
	Address *string `json:"address"`
	City    *string `json:"city"`
	State   *string `json:"state"`
	Pincode *string `json:"pincode"`
}

// UpdateInput holds the fields an update supplies; nil means unchanged.
// Owner, likes and views cannot be set through an update.
type UpdateInput struct {
	Title                *string                 `json:"title" validate:"omitempty,max=100"`
	Description          *string                 `json:"description" validate:"omitempty,max=2000"`
	GrainType            *models.GrainType       `json:"grainType" validate:"omitempty,grain_type"`
	Variety              *string                 `json:"variety" validate:"omitempty,max=100"`
	QualityGrade         *models.QualityGrade    `json:"qualityGrade" validate:"omitempty,oneof=A+ A B C"`
	IsOrganic            *bool                   `json:"isOrganic"`
	Tags                 *[]string               `json:"tags"`
	Certifications       *[]models.Certification `json:"certifications"`
	PricePerQuintal      *float64                `json:"pricePerQuintal" validate:"omitempty,gt=0"`
	Quantity             *float64                `json:"quantity" validate:"omitempty,gt=0"`
	AvailableQuantity    *float64                `json:"availableQuantity" validate:"omitempty,gte=0"`
	MinimumOrderQuantity *float64                `json:"minimumOrderQuantity" validate:"omitempty,gte=0"`
	Location             *LocationPatch          `json:"location"`
	HarvestDate          *time.Time              `json:"harvestDate"`
	Status               *models.Status          `json:"status"`
}

// Upload is one image file received with a request.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("grain_type", func(fl validator.FieldLevel) bool {
		return models.GrainType(fl.Field().String()).Valid()
	})
	return v
}

// validateStruct runs tag validation and flattens failures into a ValidationError.
func validateStruct(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate input: %w", err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describe(fe))
	}
	return models.NewValidationError(problems...)
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "CreateInput.")
	field = strings.TrimPrefix(field, "UpdateInput.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "grain_type":
		return fmt.Sprintf("%s must be one of %s", field, grainTypeList())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	}
	return fmt.Sprintf("%s is invalid", field)
}

func grainTypeList() string {
	names := make([]string, len(models.GrainTypes))
	for i, g := range models.GrainTypes {
		names[i] = string(g)
	}
	return strings.Join(names, ", ")
}

// checkListing enforces the cross-field rules that tags cannot express.
func checkListing(l *models.Listing) error {
	var problems []string
	if strings.TrimSpace(l.Location.City) == "" {
		problems = append(problems, "location.city is required")
	}
	if strings.TrimSpace(l.Location.State) == "" {
		problems = append(problems, "location.state is required")
	}
	if l.AvailableQuantity > l.Quantity {
		problems = append(problems, "availableQuantity cannot exceed quantity")
	}
	for _, c := range l.Certifications {
		if strings.TrimSpace(c.Name) == "" {
			problems = append(problems, "certifications require a name")
			break
		}
	}
	if len(problems) > 0 {
		return models.NewValidationError(problems...)
	}
	return nil
}

// apply merges the supplied fields of an update into l.
func (in UpdateInput) apply(l *models.Listing) {
	if in.Title != nil {
		l.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		l.Description = strings.TrimSpace(*in.Description)
	}
	if in.GrainType != nil {
		l.GrainType = *in.GrainType
	}
	if in.Variety != nil {
		l.Variety = strings.TrimSpace(*in.Variety)
	}
	if in.QualityGrade != nil {
		l.QualityGrade = *in.QualityGrade
	}
	if in.IsOrganic != nil {
		l.IsOrganic = *in.IsOrganic
	}
	if in.Tags != nil {
		l.Tags = models.NormalizeTags(*in.Tags)
	}
	if in.Certifications != nil {
		l.Certifications = append([]models.Certification{}, (*in.Certifications)...)
	}
	if in.PricePerQuintal != nil {
		l.PricePerQuintal = *in.PricePerQuintal
	}
	if in.Quantity != nil {
		l.Quantity = *in.Quantity
	}
	if in.AvailableQuantity != nil {
		l.AvailableQuantity = *in.AvailableQuantity
	}
	if in.MinimumOrderQuantity != nil {
		l.MinimumOrderQuantity = *in.MinimumOrderQuantity
	}
	if loc := in.Location; loc != nil {
		if loc.Address != nil {
			l.Location.Address = strings.TrimSpace(*loc.Address)
		}
		if loc.City != nil {
			l.Location.City = strings.TrimSpace(*loc.City)
		}
		if loc.State != nil {
			l.Location.State = strings.TrimSpace(*loc.State)
		}
		if loc.Pincode != nil {
			l.Location.Pincode = strings.TrimSpace(*loc.Pincode)
		}
	}
	if in.HarvestDate != nil {
		harvest := *in.HarvestDate
		l.HarvestDate = &harvest
	}
	if in.Status != nil && *in.Status != "" {
		l.Status = *in.Status
	}
}
