package design

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ImageVersion rows are append-only.
type ImageVersion struct {
	ID            uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID     uuid.UUID                   `gorm:"type:uuid;not null;index" json:"project_id"`
	URL           string                      `gorm:"column:url;not null" json:"url"`
	BucketKey     string                      `gorm:"column:bucket_key;not null" json:"-"`
	MimeType      string                      `gorm:"column:mime_type" json:"mime_type"`
	IsOriginal    bool                        `gorm:"column:is_original;not null" json:"is_original"`
	ChangeSummary datatypes.JSONSlice[string] `gorm:"column:change_summary" json:"change_summary"`
	Width         int                         `gorm:"column:width;not null" json:"width"`
	Height        int                         `gorm:"column:height;not null" json:"height"`
	CreatedAt     time.Time                   `gorm:"not null;index" json:"created_at"`
}

func (ImageVersion) TableName() string { return "image_version" }

func (v *ImageVersion) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
