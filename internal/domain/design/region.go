package design

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrPointsNotNormalized = errors.New("region points must be at least three x,y pairs within [0,1]")

type RegionKind string

const (
	RegionKindWall    RegionKind = "wall"
	RegionKindOpening RegionKind = "opening"
)

// Region is a user-drawn polygon. Points are normalized to [0,1] per axis.
type Region struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_region_project_label,priority:1" json:"project_id"`
	Label     string     `gorm:"column:label;not null" json:"label"`
	LabelKey  string     `gorm:"column:label_key;not null;uniqueIndex:idx_region_project_label,priority:2" json:"-"`
	Kind      RegionKind `gorm:"column:kind;not null;default:wall" json:"kind"`

	Points datatypes.JSONSlice[float64] `gorm:"column:points;not null" json:"points"`

	// AppliedColor is the last value confirmed by a successful render.
	AppliedColor *string `gorm:"column:applied_color" json:"applied_color,omitempty"`

	MarkerImageKey         string     `gorm:"column:marker_image_key" json:"marker_image_key,omitempty"`
	MarkerCreatedOnImageID *uuid.UUID `gorm:"type:uuid;column:marker_created_on_image_id" json:"marker_created_on_image_id,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Region) TableName() string { return "region" }

func TrimLabel(label string) string {
	return strings.Join(strings.Fields(label), " ")
}

// LabelKey folds a label for case-insensitive uniqueness.
func LabelKey(label string) string {
	return strings.ToLower(TrimLabel(label))
}

// PointsNormalized reports whether points is a flat x,y list of at least
// three vertices with every coordinate in [0,1].
func PointsNormalized(points []float64) bool {
	if len(points) < 6 || len(points)%2 != 0 {
		return false
	}
	for _, p := range points {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return false
		}
	}
	return true
}

func (r *Region) BeforeCreate(tx *gorm.DB) error {
	if !PointsNormalized(r.Points) {
		return ErrPointsNotNormalized
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.Label = TrimLabel(r.Label)
	r.LabelKey = LabelKey(r.Label)
	return nil
}

// MarkerValidFor reports whether the cached overlay was drawn on imageID.
func (r *Region) MarkerValidFor(imageID uuid.UUID) bool {
	return r.MarkerImageKey != "" && r.MarkerCreatedOnImageID != nil && *r.MarkerCreatedOnImageID == imageID
}
