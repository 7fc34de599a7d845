package handlers

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mamadbah2/kisaan/internal/domain/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testLimits = UploadLimits{MaxBytes: 64, MaxFiles: 2}

func formContext(t *testing.T, fields map[string][]string, files map[string][]byte) *gin.Context {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, values := range fields {
		for _, v := range values {
			if err := mw.WriteField(k, v); err != nil {
				t.Fatalf("WriteField: %v", err)
			}
		}
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile("images", name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write(data)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/api/grains", &buf)
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())
	return c
}

func jsonContext(body string) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPut, "/api/grains/x", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c
}

func TestBindCreateMultipart(t *testing.T) {
	c := formContext(t, map[string][]string{
		"grainType":       {"rice"},
		"pricePerQuintal": {"2800"},
		"quantity":        {"40"},
		"location":        {`{"city":"Karnal","state":"Haryana","pincode":"132001"}`},
		"tags":            {`["aged","basmati"]`},
		"certifications":  {`[{"name":"India Organic","issuedBy":"APEDA","validUntil":"2026-01-31"}]`},
		"harvestDate":     {"2025-02-14"},
	}, map[string][]byte{"a.png": []byte("png")})

	in, uploads, err := bindCreate(c, testLimits)
	if err != nil {
		t.Fatalf("bindCreate: %v", err)
	}

	if in.Location.City != "Karnal" || in.Location.Pincode != "132001" {
		t.Errorf("unexpected location %+v", in.Location)
	}
	if len(in.Tags) != 2 || len(in.Certifications) != 1 || in.Certifications[0].IssuedBy != "APEDA" {
		t.Errorf("unexpected tags/certifications %v %+v", in.Tags, in.Certifications)
	}
	if in.HarvestDate == nil || !in.HarvestDate.Equal(time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected harvest date %v", in.HarvestDate)
	}
	if in.AvailableQuantity != nil {
		t.Errorf("expected availableQuantity left unset")
	}
	if len(uploads) != 1 || string(uploads[0].Data) != "png" {
		t.Errorf("unexpected uploads %+v", uploads)
	}
}

func TestBindCreateMultipartProblems(t *testing.T) {
	c := formContext(t, map[string][]string{
		"grainType":       {"rice"},
		"pricePerQuintal": {"cheap"},
		"isOrganic":       {"maybe"},
	}, nil)

	_, _, err := bindCreate(c, testLimits)
	var ve *models.ValidationError
	if !errors.As(err, &ve) || len(ve.Problems) != 2 {
		t.Fatalf("expected two problems, got %v", err)
	}
}

func TestReadUploadsLimits(t *testing.T) {
	c := formContext(t, nil, map[string][]byte{
		"a.png": []byte("1"), "b.png": []byte("2"), "c.png": []byte("3"),
	})
	if _, err := bindUploads(c, testLimits); !models.IsValidation(err) {
		t.Errorf("expected too many files error, got %v", err)
	}

	c = formContext(t, nil, map[string][]byte{"big.png": bytes.Repeat([]byte("x"), 65)})
	if _, err := bindUploads(c, testLimits); err == nil || !strings.Contains(err.Error(), "big.png") {
		t.Errorf("expected size error naming the file, got %v", err)
	}
}

func TestBindUpdateFlattenedLocation(t *testing.T) {
	c := formContext(t, map[string][]string{
		"location.city": {"Hisar"},
		"status":        {"Sold"},
		"tags":          {"a, b", "c"},
	}, nil)

	in, err := bindUpdate(c, testLimits)
	if err != nil {
		t.Fatalf("bindUpdate: %v", err)
	}
	if in.Location == nil || in.Location.City == nil || *in.Location.City != "Hisar" || in.Location.State != nil {
		t.Errorf("unexpected location patch %+v", in.Location)
	}
	if in.Status == nil || *in.Status != models.StatusSold {
		t.Errorf("unexpected status %v", in.Status)
	}
	if in.Tags == nil || len(*in.Tags) != 3 {
		t.Errorf("unexpected tags %v", in.Tags)
	}
	if in.Title != nil || in.PricePerQuintal != nil {
		t.Errorf("expected absent fields to stay nil")
	}
}

func TestBindUpdateJSON(t *testing.T) {
	in, err := bindUpdate(jsonContext(`{"quantity": 12, "harvestDate": "2025-01-05T00:00:00Z"}`), testLimits)
	if err != nil {
		t.Fatalf("bindUpdate: %v", err)
	}
	if in.Quantity == nil || *in.Quantity != 12 || in.HarvestDate == nil {
		t.Errorf("unexpected update %+v", in)
	}

	if _, err := bindUpdate(jsonContext(`{"quantity": `), testLimits); !models.IsValidation(err) {
		t.Errorf("expected malformed body to be a validation error, got %v", err)
	}
	if _, err := bindUpdate(jsonContext(`{"harvestDate": "last spring"}`), testLimits); !models.IsValidation(err) {
		t.Errorf("expected bad date to be a validation error, got %v", err)
	}
}
