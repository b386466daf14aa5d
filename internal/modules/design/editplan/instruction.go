package editplan

import (
	"fmt"
	"strings"

	"github.com/yungbote/roomviz-backend/internal/modules/design/pending"
)

type instructionWriter struct {
	plan *slotPlan
	b    strings.Builder
}

func (w *instructionWriter) line(format string, args ...any) {
	fmt.Fprintf(&w.b, format, args...)
	w.b.WriteByte('\n')
}

func (w *instructionWriter) String() string { return strings.TrimSpace(w.b.String()) }

func (w *instructionWriter) intro(combo Combination, walls, placements, openings bool) {
	w.line("You are editing a photograph of a room. Image 1 is the original photo.")
	if walls {
		w.line("Image %d is the same photo with each wall to change outlined and shaded in magenta and labeled with its name.",
			w.plan.index(SlotWallMarkers, ""))
		if openings {
			w.line("Areas shaded in yellow in Image %d are windows or doors and must not be painted or covered.",
				w.plan.index(SlotWallMarkers, ""))
		}
	}
	if placements {
		w.line("Image %d is the same photo with colored brush strokes marking where each new item goes.",
			w.plan.index(SlotPlacementMarkers, ""))
	}
	switch combo {
	case CombinationWalls:
		w.line("Change only the marked walls as follows:")
	case CombinationFloor:
		w.line("Find the floor in Image 1 yourself and change only the floor as follows:")
	case CombinationWallsAndFloor:
		w.line("Change the marked walls, and the floor (find it yourself in Image 1), as follows:")
	case CombinationPlacement:
		w.line("Add the following items to the room:")
	case CombinationMixed:
		w.line("Make the following changes:")
	}
}

func (w *instructionWriter) wall(label string, e pending.WallEdit) {
	idx := w.plan.index(SlotWallMarkers, "")
	switch {
	case strings.TrimSpace(e.Color) != "":
		w.line("- Paint the wall labeled %q (outlined in Image %d) in the color %s.", label, idx, strings.TrimSpace(e.Color))
	default:
		w.line("- Cover the wall labeled %q (outlined in Image %d) with %s.", label, idx, e.Value())
	}
}

func (w *instructionWriter) floor(e pending.FloorEdit, name string) {
	switch {
	case e.HasReferenceImage():
		w.line("- Replace the entire floor with the flooring shown in the last image provided (Image %d). Match its pattern, color and texture, scaled to the room's perspective.",
			w.plan.index(SlotFloorReference, ""))
		if d := strings.TrimSpace(e.Description); d != "" {
			w.line("  Additional description of that flooring: %s.", d)
		}
	case e.Source == pending.FloorSourceCustomText:
		w.line("- Replace the entire floor with: %s.", strings.TrimSpace(e.Description))
	default:
		w.line("- Replace the entire floor with %s flooring.", name)
	}
}

func (w *instructionWriter) placement(p pending.PlacementEdit) {
	name := p.ProductName
	if name == "" {
		name = p.ProductRef
	}
	w.line("- Place the item shown in Image %d (%s) where the %s strokes (%s) are drawn in Image %d, sized and rotated to fit the room's perspective.",
		w.plan.index(SlotProduct, p.ID.String()), name, p.Color.Name, p.Color.Hex, w.plan.index(SlotPlacementMarkers, ""))
}

func (w *instructionWriter) constraints() {
	w.line("")
	w.line("Rules:")
	w.line("- Apply each change only inside its marked or described area.")
	w.line("- Keep the camera angle and perspective exactly as in Image 1. Do not move, add or remove any furniture or objects other than those listed.")
	w.line("- Every pixel outside the changed areas must stay identical to Image 1, including lighting and shadows.")
	w.line("- The outlines, shading, labels and brush strokes in the marker images are guides only and must not appear in the result.")
	w.line("- Return one photorealistic image with the same framing as Image 1.")
}
