package editplan

import "fmt"

type SlotName string

const (
	SlotBase             SlotName = "base"
	SlotWallMarkers      SlotName = "wall_markers"
	SlotPlacementMarkers SlotName = "placement_markers"
	SlotProduct          SlotName = "product"
	SlotFloorReference   SlotName = "floor_reference"
)

// slotOrder is the order images are sent in. The floor reference must stay
// last because the instruction refers to it as the last image provided.
var slotOrder = []SlotName{
	SlotBase,
	SlotWallMarkers,
	SlotPlacementMarkers,
	SlotProduct,
	SlotFloorReference,
}

type Image struct {
	Slot     SlotName `json:"slot"`
	Name     string   `json:"name"`
	Index    int      `json:"index"`
	MimeType string   `json:"mime_type"`
	Key      string   `json:"key,omitempty"` // placement id for product images
	Bytes    []byte   `json:"-"`
}

// slotPlan collects images by slot and fixes their order on seal.
type slotPlan struct {
	bySlot map[SlotName][]Image
	sealed []Image
}

func newSlotPlan() *slotPlan {
	return &slotPlan{bySlot: make(map[SlotName][]Image)}
}

func (p *slotPlan) put(slot SlotName, key string, raw []byte, mime string) {
	p.bySlot[slot] = append(p.bySlot[slot], Image{Slot: slot, Key: key, Bytes: raw, MimeType: mime})
}

// seal assigns 1-based indexes in slotOrder and returns the ordered images.
func (p *slotPlan) seal() []Image {
	if p.sealed != nil {
		return p.sealed
	}
	out := make([]Image, 0, 8)
	for _, slot := range slotOrder {
		for i, img := range p.bySlot[slot] {
			img.Index = len(out) + 1
			img.Name = imageName(slot, i, img.MimeType)
			out = append(out, img)
		}
	}
	p.sealed = out
	return out
}

// index returns the 1-based position of the first image in slot matching key, or 0.
func (p *slotPlan) index(slot SlotName, key string) int {
	for _, img := range p.seal() {
		if img.Slot == slot && (key == "" || img.Key == key) {
			return img.Index
		}
	}
	return 0
}

func imageName(slot SlotName, i int, mime string) string {
	ext := "png"
	switch mime {
	case "image/jpeg":
		ext = "jpg"
	case "image/webp":
		ext = "webp"
	}
	if slot == SlotProduct {
		return fmt.Sprintf("%s_%d.%s", slot, i+1, ext)
	}
	return fmt.Sprintf("%s.%s", slot, ext)
}
