package design

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RenderLog records every external edit call, successful or not.
type RenderLog struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"project_id"`
	OwnerUserID uuid.UUID  `gorm:"type:uuid;index" json:"owner_user_id"`
	VersionID   *uuid.UUID `gorm:"type:uuid" json:"version_id,omitempty"`
	Model       string     `gorm:"column:model" json:"model"`
	Combination string     `gorm:"column:combination" json:"combination"`
	EditCount   int        `gorm:"column:edit_count" json:"edit_count"`
	Outcome     string     `gorm:"column:outcome;not null" json:"outcome"`
	ErrorKind   string     `gorm:"column:error_kind" json:"error_kind,omitempty"`
	Error       string     `gorm:"column:error" json:"error,omitempty"`
	DurationMS  int64      `gorm:"column:duration_ms" json:"duration_ms"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
}

func (RenderLog) TableName() string { return "render_log" }

type CostLine struct {
	Label      string  `json:"label"`
	MaterialID string  `json:"material_id,omitempty"`
	AreaM2     float64 `json:"area_m2"`
	UnitPrice  float64 `json:"unit_price"`
	Amount     float64 `json:"amount"`
}

// CostEstimate is a rough bill of quantities for one rendered version.
type CostEstimate struct {
	ID        uuid.UUID                     `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID uuid.UUID                     `gorm:"type:uuid;not null;index" json:"project_id"`
	VersionID uuid.UUID                     `gorm:"type:uuid;not null;uniqueIndex" json:"version_id"`
	Currency  string                        `gorm:"column:currency;not null" json:"currency"`
	Total     float64                       `gorm:"column:total;not null" json:"total"`
	Lines     datatypes.JSONSlice[CostLine] `gorm:"column:lines" json:"lines"`
	CreatedAt time.Time                     `gorm:"not null" json:"created_at"`
}

func (CostEstimate) TableName() string { return "cost_estimate" }

// CatalogUsage attributes a rendered version to a sponsored catalog entry.
type CatalogUsage struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID  uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	VersionID  uuid.UUID `gorm:"type:uuid;not null;index" json:"version_id"`
	MaterialID string    `gorm:"column:material_id;not null;index" json:"material_id"`
	Sponsor    string    `gorm:"column:sponsor" json:"sponsor"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}

func (CatalogUsage) TableName() string { return "catalog_usage" }

func (l *RenderLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

func (c *CostEstimate) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c *CatalogUsage) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
