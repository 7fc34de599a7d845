package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GrainType enumerates the grain categories a listing can be filed under.
type GrainType string

const (
	GrainRice    GrainType = "rice"
	GrainWheat   GrainType = "wheat"
	GrainCorn    GrainType = "corn"
	GrainBarley  GrainType = "barley"
	GrainMillet  GrainType = "millet"
	GrainSorghum GrainType = "sorghum"
	GrainOats    GrainType = "oats"
	GrainQuinoa  GrainType = "quinoa"
	GrainPulses  GrainType = "pulses"
	GrainOther   GrainType = "other"
)

// GrainTypes lists every accepted grain type.
var GrainTypes = []GrainType{
	GrainRice, GrainWheat, GrainCorn, GrainBarley, GrainMillet,
	GrainSorghum, GrainOats, GrainQuinoa, GrainPulses, GrainOther,
}

// Valid reports whether g is a known grain type.
func (g GrainType) Valid() bool {
	for _, known := range GrainTypes {
		if g == known {
			return true
		}
	}
	return false
}

// QualityGrade is the quality classification attached to a lot.
type QualityGrade string

const (
	GradeAPlus QualityGrade = "A+"
	GradeA     QualityGrade = "A"
	GradeB     QualityGrade = "B"
	GradeC     QualityGrade = "C"
)

// Valid reports whether q is a known grade.
func (q QualityGrade) Valid() bool {
	switch q {
	case GradeAPlus, GradeA, GradeB, GradeC:
		return true
	}
	return false
}

// Status is the lifecycle state of a listing.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusSold     Status = "sold"
	StatusExpired  Status = "expired"
)

// Statuses lists every accepted listing status.
var Statuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusSold, StatusExpired}

// Valid reports whether s is one of the fixed statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// StatusList renders the accepted statuses for error messages.
func StatusList() string {
	names := make([]string, len(Statuses))
	for i, s := range Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// Location is where the lot is stored.
type Location struct {
	Address string `bson:"address" json:"address"`
	City    string `bson:"city" json:"city"`
	State   string `bson:"state" json:"state"`
	Pincode string `bson:"pincode" json:"pincode"`
}

// Image references a stored listing photo.
type Image struct {
	ID     primitive.ObjectID `bson:"_id" json:"id"`
	URL    string             `bson:"url" json:"url"`
	Alt    string             `bson:"alt" json:"alt"`
	FileID string             `bson:"fileId,omitempty" json:"-"`
}

// Certification is a third-party attestation such as an organic certificate.
type Certification struct {
	Name       string     `bson:"name" json:"name"`
	IssuedBy   string     `bson:"issuedBy,omitempty" json:"issuedBy,omitempty"`
	ValidUntil *time.Time `bson:"validUntil,omitempty" json:"validUntil,omitempty"`
}

// Listing is one grain lot offered for sale by a farmer.
type Listing struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	FarmerID primitive.ObjectID `bson:"farmer" json:"-"`
	Farmer   *UserSummary       `bson:"-" json:"farmer"`

	Title          string          `bson:"title" json:"title"`
	Description    string          `bson:"description" json:"description"`
	GrainType      GrainType       `bson:"grainType" json:"grainType"`
	Variety        string          `bson:"variety" json:"variety"`
	QualityGrade   QualityGrade    `bson:"qualityGrade,omitempty" json:"qualityGrade,omitempty"`
	IsOrganic      bool            `bson:"isOrganic" json:"isOrganic"`
	Tags           []string        `bson:"tags" json:"tags"`
	Certifications []Certification `bson:"certifications" json:"certifications"`

	PricePerQuintal      float64 `bson:"pricePerQuintal" json:"pricePerQuintal"`
	Quantity             float64 `bson:"quantity" json:"quantity"`
	AvailableQuantity    float64 `bson:"availableQuantity" json:"availableQuantity"`
	MinimumOrderQuantity float64 `bson:"minimumOrderQuantity" json:"minimumOrderQuantity"`

	Location    Location   `bson:"location" json:"location"`
	HarvestDate *time.Time `bson:"harvestDate,omitempty" json:"harvestDate,omitempty"`
	Images      []Image    `bson:"images" json:"images"`
	Status      Status     `bson:"status" json:"status"`

	Views   int64                `bson:"views" json:"views"`
	Likes   []primitive.ObjectID `bson:"likes" json:"likes"`
	LikedBy []UserSummary        `bson:"-" json:"likedBy,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
	ExpiresAt time.Time `bson:"expiresAt" json:"expiresAt"`
}

// LikedByUser reports whether userID is in the like set.
func (l *Listing) LikedByUser(userID primitive.ObjectID) bool {
	for _, id := range l.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// FindImage returns the index of the image with the given id, or -1.
func (l *Listing) FindImage(imageID primitive.ObjectID) int {
	for i, img := range l.Images {
		if img.ID == imageID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so stores can hand out listings without aliasing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	out := *l
	out.Tags = append([]string(nil), l.Tags...)
	out.Certifications = append([]Certification(nil), l.Certifications...)
	out.Images = append([]Image(nil), l.Images...)
	out.Likes = append([]primitive.ObjectID(nil), l.Likes...)
	out.LikedBy = append([]UserSummary(nil), l.LikedBy...)
	if l.Farmer != nil {
		farmer := *l.Farmer
		out.Farmer = &farmer
	}
	if l.HarvestDate != nil {
		harvest := *l.HarvestDate
		out.HarvestDate = &harvest
	}
	return &out
}

// NormalizeTags trims, lowercases and de-duplicates tags while keeping order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// StoredImage is the binary content of an uploaded listing photo.
type StoredImage struct {
	ContentType string
	Data        []byte
}
