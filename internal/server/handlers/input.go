package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mamadbah2/kisaan/internal/domain/models"
	"github.com/mamadbah2/kisaan/internal/service/listings"
)

// Multipart field names carrying listing photos.
var imageFields = []string{"grainImages", "images"}

// UploadLimits bounds the files accepted with one request.
type UploadLimits struct {
	MaxBytes int64
	MaxFiles int
}

// flexTime accepts RFC 3339 timestamps and plain dates.
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := parseTime(raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

type createBody struct {
	listings.CreateInput
	HarvestDate *flexTime `json:"harvestDate"`
}

type updateBody struct {
	listings.UpdateInput
	HarvestDate *flexTime `json:"harvestDate"`
}

func isMultipart(c *gin.Context) bool {
	return c.ContentType() == "multipart/form-data"
}

// bindCreate reads a create payload from a JSON or multipart body.
func bindCreate(c *gin.Context, limits UploadLimits) (listings.CreateInput, []listings.Upload, error) {
	if !isMultipart(c) {
		var body createBody
		if err := decodeJSON(c, &body); err != nil {
			return listings.CreateInput{}, nil, err
		}
		in := body.CreateInput
		if body.HarvestDate != nil {
			in.HarvestDate = &body.HarvestDate.Time
		}
		return in, nil, nil
	}

	form, err := parseMultipart(c, limits)
	if err != nil {
		return listings.CreateInput{}, nil, err
	}
	f := formReader{values: form.Value}

	in := listings.CreateInput{
		Title:        f.str("title"),
		Description:  f.str("description"),
		GrainType:    models.GrainType(f.str("grainType")),
		Variety:      f.str("variety"),
		QualityGrade: models.QualityGrade(f.str("qualityGrade")),
		Tags:         f.tags(),
		HarvestDate:  f.date("harvestDate"),
	}
	if organic := f.boolean("isOrganic"); organic != nil {
		in.IsOrganic = *organic
	}
	if certs := f.certifications(); certs != nil {
		in.Certifications = *certs
	}
	if v := f.float("pricePerQuintal"); v != nil {
		in.PricePerQuintal = *v
	}
	if v := f.float("quantity"); v != nil {
		in.Quantity = *v
	}
	in.AvailableQuantity = f.float("availableQuantity")
	if v := f.float("minimumOrderQuantity"); v != nil {
		in.MinimumOrderQuantity = *v
	}
	if loc := f.location(); loc != nil {
		in.Location = listings.LocationInput{
			Address: deref(loc.Address),
			City:    deref(loc.City),
			State:   deref(loc.State),
			Pincode: deref(loc.Pincode),
		}
	}
	if err := f.err(); err != nil {
		return listings.CreateInput{}, nil, err
	}

	uploads, err := readUploads(form, limits)
	if err != nil {
		return listings.CreateInput{}, nil, err
	}
	return in, uploads, nil
}

// bindUpdate reads a partial update from a JSON or multipart body.
func bindUpdate(c *gin.Context, limits UploadLimits) (listings.UpdateInput, error) {
	if !isMultipart(c) {
		var body updateBody
		if err := decodeJSON(c, &body); err != nil {
			return listings.UpdateInput{}, err
		}
		in := body.UpdateInput
		if body.HarvestDate != nil {
			in.HarvestDate = &body.HarvestDate.Time
		}
		return in, nil
	}

	form, err := parseMultipart(c, limits)
	if err != nil {
		return listings.UpdateInput{}, err
	}
	f := formReader{values: form.Value}

	in := listings.UpdateInput{
		Title:                f.optional("title"),
		Description:          f.optional("description"),
		Variety:              f.optional("variety"),
		IsOrganic:            f.boolean("isOrganic"),
		Certifications:       f.certifications(),
		PricePerQuintal:      f.float("pricePerQuintal"),
		Quantity:             f.float("quantity"),
		AvailableQuantity:    f.float("availableQuantity"),
		MinimumOrderQuantity: f.float("minimumOrderQuantity"),
		Location:             f.location(),
		HarvestDate:          f.date("harvestDate"),
	}
	if v := f.optional("grainType"); v != nil {
		g := models.GrainType(*v)
		in.GrainType = &g
	}
	if v := f.optional("qualityGrade"); v != nil {
		q := models.QualityGrade(*v)
		in.QualityGrade = &q
	}
	if v := f.optional("status"); v != nil {
		s := models.Status(strings.ToLower(*v))
		in.Status = &s
	}
	if f.has("tags") {
		tags := f.tags()
		in.Tags = &tags
	}
	if err := f.err(); err != nil {
		return listings.UpdateInput{}, err
	}
	return in, nil
}

// bindUploads reads the photos of an image upload request.
func bindUploads(c *gin.Context, limits UploadLimits) ([]listings.Upload, error) {
	form, err := parseMultipart(c, limits)
	if err != nil {
		return nil, err
	}
	return readUploads(form, limits)
}

func decodeJSON(c *gin.Context, dst any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return models.NewValidationError("Invalid request body: " + jsonProblem(err))
	}
	return nil
}

func jsonProblem(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		// Embedded request structs show up in the field path.
		field := strings.TrimPrefix(typeErr.Field, "CreateInput.")
		field = strings.TrimPrefix(field, "UpdateInput.")
		switch typeErr.Type.Kind() {
		case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int64:
			return field + " must be a number"
		case reflect.Bool:
			return field + " must be true or false"
		}
		return field + " has the wrong type"
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return "malformed JSON"
	}
	return err.Error()
}

func parseMultipart(c *gin.Context, limits UploadLimits) (*multipart.Form, error) {
	maxBody := limits.MaxBytes*int64(max(limits.MaxFiles, 1)) + 1<<20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, models.NewValidationError("Upload exceeds the allowed size")
		}
		return nil, models.NewValidationError("Invalid multipart body")
	}
	return form, nil
}

func readUploads(form *multipart.Form, limits UploadLimits) ([]listings.Upload, error) {
	var headers []*multipart.FileHeader
	for _, field := range imageFields {
		headers = append(headers, form.File[field]...)
	}
	if limits.MaxFiles > 0 && len(headers) > limits.MaxFiles {
		return nil, models.NewValidationError(fmt.Sprintf("at most %d images may be uploaded", limits.MaxFiles))
	}

	uploads := make([]listings.Upload, 0, len(headers))
	for _, fh := range headers {
		if limits.MaxBytes > 0 && fh.Size > limits.MaxBytes {
			return nil, models.NewValidationError(fmt.Sprintf("%s exceeds the %d byte image limit", fh.Filename, limits.MaxBytes))
		}
		data, err := readFile(fh)
		if err != nil {
			return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
		}
		uploads = append(uploads, listings.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return uploads, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// formReader pulls typed values out of multipart fields, collecting
// conversion problems instead of stopping at the first.
type formReader struct {
	values   map[string][]string
	problems []string
}

func (f *formReader) has(key string) bool {
	_, ok := f.values[key]
	return ok
}

func (f *formReader) str(key string) string {
	if v := f.values[key]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func (f *formReader) optional(key string) *string {
	if !f.has(key) {
		return nil
	}
	v := f.str(key)
	return &v
}

func (f *formReader) float(key string) *float64 {
	raw := f.str(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		f.problems = append(f.problems, key+" must be a number")
		return nil
	}
	return &v
}

func (f *formReader) boolean(key string) *bool {
	raw := f.str(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		f.problems = append(f.problems, key+" must be true or false")
		return nil
	}
	return &v
}

func (f *formReader) date(key string) *time.Time {
	raw := f.str(key)
	if raw == "" {
		return nil
	}
	t, err := parseTime(raw)
	if err != nil {
		f.problems = append(f.problems, key+" must be a date")
		return nil
	}
	return &t
}

// tags accepts a JSON array, a comma separated list or repeated fields.
func (f *formReader) tags() []string {
	var out []string
	for _, raw := range f.values["tags"] {
		raw = strings.TrimSpace(raw)
		if strings.HasPrefix(raw, "[") {
			var list []string
			if err := json.Unmarshal([]byte(raw), &list); err != nil {
				f.problems = append(f.problems, "tags must be a list of strings")
				continue
			}
			out = append(out, list...)
			continue
		}
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

// certifications accepts a JSON array of objects or a comma separated list of names.
func (f *formReader) certifications() *[]models.Certification {
	if !f.has("certifications") {
		return nil
	}
	raw := f.str("certifications")
	certs := []models.Certification{}
	if strings.HasPrefix(raw, "[") {
		var decoded []struct {
			Name       string    `json:"name"`
			IssuedBy   string    `json:"issuedBy"`
			ValidUntil *flexTime `json:"validUntil"`
		}
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			f.problems = append(f.problems, "certifications must be a JSON list")
			return nil
		}
		for _, d := range decoded {
			cert := models.Certification{Name: d.Name, IssuedBy: d.IssuedBy}
			if d.ValidUntil != nil {
				cert.ValidUntil = &d.ValidUntil.Time
			}
			certs = append(certs, cert)
		}
		return &certs
	}
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			certs = append(certs, models.Certification{Name: name})
		}
	}
	return &certs
}

// location reads either a JSON "location" field or flattened location.* fields.
func (f *formReader) location() *listings.LocationPatch {
	if raw := f.str("location"); raw != "" {
		var loc listings.LocationPatch
		if err := json.Unmarshal([]byte(raw), &loc); err != nil {
			f.problems = append(f.problems, "location must be a JSON object")
			return nil
		}
		return &loc
	}

	loc := listings.LocationPatch{
		Address: f.optional("location.address"),
		City:    f.optional("location.city"),
		State:   f.optional("location.state"),
		Pincode: f.optional("location.pincode"),
	}
	if loc.Address == nil && loc.City == nil && loc.State == nil && loc.Pincode == nil {
		return nil
	}
	return &loc
}

func (f *formReader) err() error {
	if len(f.problems) == 0 {
		return nil
	}
	return models.NewValidationError(f.problems...)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
