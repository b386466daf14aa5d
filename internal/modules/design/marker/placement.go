package marker

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/fogleman/gg"
)

// Stroke is one freehand brush path in native pixels.
type Stroke struct {
	Points []float64
	Width  float64
}

type PlacementMark struct {
	Label   string
	Color   color.NRGBA
	Strokes []Stroke
}

// ParseHex accepts #RRGGBB or RRGGBB.
func ParseHex(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.NRGBA{}, fmt.Errorf("expected 6 hex chars, got %q", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// RenderPlacements paints each placement's brush strokes in its palette color.
// The color is the only signal tying an area to a product image, so strokes
// stay close to opaque.
func (r *Renderer) RenderPlacements(base image.Image, marks []PlacementMark) image.Image {
	b := base.Bounds()
	w, h := b.Dx(), b.Dy()
	dc := gg.NewContext(w, h)
	dc.DrawImage(base, -b.Min.X, -b.Min.Y)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()

	defWidth := math.Max(8, float64(w)*0.01)
	for _, m := range marks {
		c := m.Color
		c.A = 200
		dc.SetColor(c)
		for _, s := range m.Strokes {
			if len(s.Points) < 2 {
				continue
			}
			lw := s.Width
			if lw <= 0 {
				lw = defWidth
			}
			dc.SetLineWidth(lw)
			dc.NewSubPath()
			dc.MoveTo(s.Points[0], s.Points[1])
			if len(s.Points) == 2 {
				dc.LineTo(s.Points[0]+0.01, s.Points[1])
			}
			for i := 2; i+1 < len(s.Points); i += 2 {
				dc.LineTo(s.Points[i], s.Points[i+1])
			}
			dc.Stroke()
		}
	}

	dc.SetFontFace(r.face(FontSize(w)))
	for _, m := range marks {
		label := strings.TrimSpace(m.Label)
		if label == "" || len(m.Strokes) == 0 || len(m.Strokes[0].Points) < 2 {
			continue
		}
		drawLabel(dc, label, m.Strokes[0].Points[0], m.Strokes[0].Points[1], m.Color)
	}
	return dc.Image()
}
