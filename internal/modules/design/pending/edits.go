package pending

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type EditKind string

const (
	EditKindWall      EditKind = "wall"
	EditKindFloor     EditKind = "floor"
	EditKindPlacement EditKind = "placement"
)

// Edit is implemented by WallEdit, FloorEdit and PlacementEdit only.
type Edit interface {
	Kind() EditKind
	isEdit()
}

// WallEdit repaints or resurfaces one marked region.
type WallEdit struct {
	RegionID     uuid.UUID `json:"region_id"`
	Color        string    `json:"color,omitempty"`
	Material     string    `json:"material,omitempty"`
	MaterialName string    `json:"material_name,omitempty"`
}

func (WallEdit) Kind() EditKind { return EditKindWall }
func (WallEdit) isEdit()        {}

// Value is what lands on the region's applied color after a successful render.
func (e WallEdit) Value() string {
	if c := strings.TrimSpace(e.Color); c != "" {
		return c
	}
	if e.MaterialName != "" {
		return e.MaterialName
	}
	return e.Material
}

func (e WallEdit) Validate() error {
	if e.RegionID == uuid.Nil {
		return errors.New("wall edit requires a region")
	}
	if e.Value() == "" {
		return errors.New("wall edit requires a color or material")
	}
	if strings.TrimSpace(e.Color) != "" && e.Material != "" {
		return errors.New("wall edit takes a color or a material, not both")
	}
	return nil
}

type FloorSource string

const (
	FloorSourceQuickPick   FloorSource = "catalog_quick_pick"
	FloorSourceSponsored   FloorSource = "sponsored_catalog"
	FloorSourceCustomText  FloorSource = "custom_text"
	FloorSourceCustomImage FloorSource = "custom_image"
)

// FloorEdit replaces the flooring. The floor area is detected by the model,
// so it carries no polygon.
type FloorEdit struct {
	MaterialID   string      `json:"material_id,omitempty"`
	DisplayName  string      `json:"display_name,omitempty"`
	Source       FloorSource `json:"source"`
	Description  string      `json:"description,omitempty"`
	ReferenceKey string      `json:"reference_key,omitempty"`
}

func (FloorEdit) Kind() EditKind { return EditKindFloor }
func (FloorEdit) isEdit()        {}

func (e FloorEdit) FromCatalog() bool {
	return e.Source == FloorSourceQuickPick || e.Source == FloorSourceSponsored
}

// HasReferenceImage wins over Description; the text then rides along as a hint.
func (e FloorEdit) HasReferenceImage() bool {
	return strings.TrimSpace(e.ReferenceKey) != ""
}

func (e FloorEdit) Validate() error {
	switch e.Source {
	case FloorSourceQuickPick, FloorSourceSponsored:
		if strings.TrimSpace(e.MaterialID) == "" {
			return fmt.Errorf("floor source %s requires material_id", e.Source)
		}
		if e.HasReferenceImage() {
			return errors.New("catalog floor edits cannot carry a reference image")
		}
	case FloorSourceCustomText:
		if strings.TrimSpace(e.Description) == "" {
			return errors.New("custom floor text is empty")
		}
		if e.HasReferenceImage() {
			return errors.New("custom text floor edit cannot carry a reference image; use custom_image")
		}
	case FloorSourceCustomImage:
		if !e.HasReferenceImage() {
			return errors.New("custom image floor edit requires a reference image")
		}
	default:
		return fmt.Errorf("unknown floor source %q", e.Source)
	}
	return nil
}

// Label is the human name used in change summaries.
func (e FloorEdit) Label() string {
	switch {
	case strings.TrimSpace(e.DisplayName) != "":
		return e.DisplayName
	case e.Source == FloorSourceCustomImage:
		return "custom flooring"
	case strings.TrimSpace(e.Description) != "":
		return e.Description
	default:
		return e.MaterialID
	}
}

// Stroke is a freehand brush path in native pixel coordinates.
type Stroke struct {
	Points []float64 `json:"points"`
	Width  float64   `json:"width,omitempty"`
}

type PlacementEdit struct {
	ID              uuid.UUID `json:"id"`
	ProductRef      string    `json:"product_ref"`
	ProductName     string    `json:"product_name,omitempty"`
	ProductImageURL string    `json:"product_image_url,omitempty"`
	Color           Color     `json:"color"`
	Strokes         []Stroke  `json:"strokes"`
}

func (PlacementEdit) Kind() EditKind { return EditKindPlacement }
func (PlacementEdit) isEdit()        {}

func (e PlacementEdit) Validate() error {
	if strings.TrimSpace(e.ProductRef) == "" {
		return errors.New("placement requires a product")
	}
	n := 0
	for _, s := range e.Strokes {
		if len(s.Points) >= 2 && len(s.Points)%2 == 0 {
			n++
		}
	}
	if n == 0 {
		return errors.New("placement requires at least one brush stroke")
	}
	return nil
}

type Color struct {
	Name string `json:"name"`
	Hex  string `json:"hex"`
}

// Palette bounds the number of simultaneous placements; each must be a
// distinct, easily named hue for the model.
var Palette = []Color{
	{Name: "red", Hex: "#FF3B30"},
	{Name: "blue", Hex: "#007AFF"},
	{Name: "green", Hex: "#34C759"},
	{Name: "yellow", Hex: "#FFCC00"},
	{Name: "purple", Hex: "#AF52DE"},
}
