package marker

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	_ "golang.org/x/image/webp"

	"github.com/yungbote/roomviz-backend/internal/modules/design/geometry"
)

type Kind string

const (
	KindWall    Kind = "wall"
	KindFloor   Kind = "floor"
	KindOpening Kind = "opening"
)

type style struct {
	fill   color.NRGBA
	stroke color.NRGBA
}

// Colors are fixed per kind so the model learns one meaning per hue.
var styles = map[Kind]style{
	KindWall:    {fill: color.NRGBA{R: 255, G: 0, B: 128, A: 100}, stroke: color.NRGBA{R: 255, G: 0, B: 128, A: 255}},
	KindFloor:   {fill: color.NRGBA{R: 0, G: 160, B: 255, A: 100}, stroke: color.NRGBA{R: 0, G: 160, B: 255, A: 255}},
	KindOpening: {fill: color.NRGBA{R: 255, G: 200, B: 0, A: 100}, stroke: color.NRGBA{R: 255, G: 200, B: 0, A: 255}},
}

const (
	MinFontSize = 14.0
	MaxFontSize = 64.0
	fontRatio   = 0.025
)

// Region is a polygon in native pixel coordinates.
type Region struct {
	Label  string
	Kind   Kind
	Points []float64
}

// ImageLoadError marks a base or reference image that could not be decoded.
type ImageLoadError struct {
	Err error
}

func (e *ImageLoadError) Error() string { return fmt.Sprintf("image load: %v", e.Err) }
func (e *ImageLoadError) Unwrap() error { return e.Err }

func IsImageLoadError(err error) bool {
	var le *ImageLoadError
	return errors.As(err, &le)
}

// Decode decodes png, jpeg or webp bytes, wrapping failures in *ImageLoadError.
func Decode(raw []byte) (image.Image, error) {
	if len(raw) == 0 {
		return nil, &ImageLoadError{Err: errors.New("empty image")}
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &ImageLoadError{Err: err}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &ImageLoadError{Err: errors.New("zero sized image")}
	}
	return img, nil
}

type Renderer struct {
	font *truetype.Font
}

// NewRenderer uses MARKER_FONT when set and the embedded Go Bold face otherwise.
func NewRenderer() (*Renderer, error) {
	raw := gobold.TTF
	if path := strings.TrimSpace(os.Getenv("MARKER_FONT")); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read font file: %w", err)
		}
		raw = b
	}
	f, err := truetype.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	return &Renderer{font: f}, nil
}

// FontSize scales with image width, clamped to [MinFontSize, MaxFontSize].
func FontSize(width int) float64 {
	return math.Max(MinFontSize, math.Min(MaxFontSize, float64(width)*fontRatio))
}

func strokeWidth(width int) float64 {
	return math.Max(2, float64(width)*0.002)
}

func (r *Renderer) face(size float64) font.Face {
	return truetype.NewFace(r.font, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// Render burns regions onto base at its native size. Regions are drawn in
// slice order, so later regions cover earlier ones where they overlap.
func (r *Renderer) Render(base image.Image, regions []Region) image.Image {
	b := base.Bounds()
	w, h := b.Dx(), b.Dy()
	dc := gg.NewContext(w, h)
	dc.DrawImage(base, -b.Min.X, -b.Min.Y)

	lw := strokeWidth(w)
	for _, reg := range regions {
		if len(reg.Points) < 6 {
			continue
		}
		st, ok := styles[reg.Kind]
		if !ok {
			st = styles[KindWall]
		}
		tracePolygon(dc, reg.Points)
		dc.SetColor(st.fill)
		dc.FillPreserve()
		dc.SetColor(st.stroke)
		dc.SetLineWidth(lw)
		dc.Stroke()
	}

	// Labels go last so an overlapping fill never hides one.
	face := r.face(FontSize(w))
	dc.SetFontFace(face)
	for _, reg := range regions {
		if len(reg.Points) < 6 {
			continue
		}
		label := strings.TrimSpace(reg.Label)
		if label == "" {
			label = strings.ToUpper(string(reg.Kind))
		}
		st, ok := styles[reg.Kind]
		if !ok {
			st = styles[KindWall]
		}
		cx, cy := geometry.Centroid(reg.Points)
		drawLabel(dc, label, cx, cy, st.stroke)
	}
	return dc.Image()
}

func tracePolygon(dc *gg.Context, pts []float64) {
	dc.NewSubPath()
	dc.MoveTo(pts[0], pts[1])
	for i := 2; i+1 < len(pts); i += 2 {
		dc.LineTo(pts[i], pts[i+1])
	}
	dc.ClosePath()
}

func drawLabel(dc *gg.Context, label string, cx, cy float64, bg color.NRGBA) {
	tw, th := dc.MeasureString(label)
	pad := th * 0.35
	dc.SetColor(bg)
	dc.DrawRoundedRectangle(cx-tw/2-pad, cy-th/2-pad, tw+2*pad, th+2*pad, pad)
	dc.Fill()
	dc.SetColor(color.White)
	dc.DrawStringAnchored(label, cx, cy, 0.5, 0.5)
}

// RenderPNG decodes base, renders regions and encodes the overlay as PNG.
func (r *Renderer) RenderPNG(base []byte, regions []Region) ([]byte, error) {
	img, err := Decode(base)
	if err != nil {
		return nil, err
	}
	return EncodePNG(r.Render(img, regions))
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	dc := gg.NewContextForImage(img)
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
