package editplan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/roomviz-backend/internal/modules/design/pending"
)

const DefaultTemperature = 0.2

var ErrEmpty = errors.New("no pending edits to render")

type Combination string

const (
	CombinationWalls         Combination = "walls_only"
	CombinationFloor         Combination = "floor_only"
	CombinationWallsAndFloor Combination = "walls_and_floor"
	CombinationPlacement     Combination = "placement"
	CombinationMixed         Combination = "placement_with_surfaces"
)

type Params struct {
	Temperature float64 `json:"temperature"`
	AspectRatio float64 `json:"aspect_ratio"`
}

type Request struct {
	Images        []Image     `json:"images"`
	Instruction   string      `json:"instruction"`
	Params        Params      `json:"params"`
	Combination   Combination `json:"combination"`
	EditCount     int         `json:"edit_count"`
	ChangeSummary []string    `json:"change_summary"`
}

func (r Request) Base() Image { return r.Images[0] }

// Auxiliary returns every image after the base, in send order.
func (r Request) Auxiliary() []Image { return r.Images[1:] }

func (r Request) Slot(slot SlotName) []Image {
	var out []Image
	for _, img := range r.Images {
		if img.Slot == slot {
			out = append(out, img)
		}
	}
	return out
}

type ImageBlob struct {
	Bytes    []byte
	MimeType string
}

type Input struct {
	Set    pending.Set
	Width  int
	Height int

	Base             ImageBlob
	WallMarkers      ImageBlob
	PlacementMarkers ImageBlob
	FloorReference   ImageBlob
	Products         map[uuid.UUID]ImageBlob

	// RegionLabels resolves wall edits to the labels burned into the markers.
	RegionLabels map[uuid.UUID]string
	// FloorName overrides the floor edit's display name (catalog lookups).
	FloorName   string
	HasOpenings bool
	Temperature float64
}

func combination(s pending.Set) Combination {
	walls, floor, place := len(s.Walls) > 0, s.Floor != nil, len(s.Placements) > 0
	switch {
	case place && (walls || floor):
		return CombinationMixed
	case place:
		return CombinationPlacement
	case walls && floor:
		return CombinationWallsAndFloor
	case walls:
		return CombinationWalls
	default:
		return CombinationFloor
	}
}

// Build turns a pending set into the ordered image set and instruction text.
func Build(in Input) (Request, error) {
	if in.Set.Empty() {
		return Request{}, ErrEmpty
	}
	if len(in.Base.Bytes) == 0 {
		return Request{}, errors.New("base image required")
	}
	if in.Width <= 0 || in.Height <= 0 {
		return Request{}, errors.New("base image dimensions required")
	}

	plan := newSlotPlan()
	plan.put(SlotBase, "", in.Base.Bytes, mimeOr(in.Base.MimeType))

	var (
		walls      []pending.WallEdit
		floor      *pending.FloorEdit
		placements []pending.PlacementEdit
	)
	for _, e := range in.Set.Edits() {
		switch edit := e.(type) {
		case pending.WallEdit:
			walls = append(walls, edit)
		case pending.FloorEdit:
			f := edit
			floor = &f
		case pending.PlacementEdit:
			placements = append(placements, edit)
		default:
			return Request{}, fmt.Errorf("unsupported edit kind %q", e.Kind())
		}
	}

	if len(walls) > 0 {
		if len(in.WallMarkers.Bytes) == 0 {
			return Request{}, errors.New("wall marker overlay required for wall edits")
		}
		plan.put(SlotWallMarkers, "", in.WallMarkers.Bytes, mimeOr(in.WallMarkers.MimeType))
	}
	if len(placements) > 0 {
		if len(in.PlacementMarkers.Bytes) == 0 {
			return Request{}, errors.New("placement overlay required for placements")
		}
		plan.put(SlotPlacementMarkers, "", in.PlacementMarkers.Bytes, mimeOr(in.PlacementMarkers.MimeType))
		for _, p := range placements {
			blob, ok := in.Products[p.ID]
			if !ok || len(blob.Bytes) == 0 {
				return Request{}, fmt.Errorf("product image missing for placement %s", p.ID)
			}
			plan.put(SlotProduct, p.ID.String(), blob.Bytes, mimeOr(blob.MimeType))
		}
	}
	if floor != nil && floor.HasReferenceImage() {
		if len(in.FloorReference.Bytes) == 0 {
			return Request{}, errors.New("floor reference image missing")
		}
		plan.put(SlotFloorReference, "", in.FloorReference.Bytes, mimeOr(in.FloorReference.MimeType))
	}
	images := plan.seal()

	w := &instructionWriter{plan: plan}
	summary := make([]string, 0, in.Set.Count())
	combo := combination(in.Set)

	w.intro(combo, len(walls) > 0, len(placements) > 0, in.HasOpenings)
	for _, e := range walls {
		label, ok := in.RegionLabels[e.RegionID]
		if !ok {
			return Request{}, fmt.Errorf("unknown region %s", e.RegionID)
		}
		w.wall(label, e)
		summary = append(summary, fmt.Sprintf("%s: %s", label, e.Value()))
	}
	if floor != nil {
		name := strings.TrimSpace(in.FloorName)
		if name == "" {
			name = floor.Label()
		}
		w.floor(*floor, name)
		summary = append(summary, "Floor: "+name)
	}
	for _, p := range placements {
		w.placement(p)
		name := p.ProductName
		if name == "" {
			name = p.ProductRef
		}
		summary = append(summary, "Placed "+name)
	}
	w.constraints()

	temp := in.Temperature
	if temp <= 0 {
		temp = DefaultTemperature
	}
	return Request{
		Images:        images,
		Instruction:   w.String(),
		Params:        Params{Temperature: temp, AspectRatio: float64(in.Width) / float64(in.Height)},
		Combination:   combo,
		EditCount:     in.Set.Count(),
		ChangeSummary: summary,
	}, nil
}

func mimeOr(m string) string {
	if strings.TrimSpace(m) == "" {
		return "image/png"
	}
	return m
}
