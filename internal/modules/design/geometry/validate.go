package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// MinArea is an absolute pixel area at native resolution. It does not scale
// with image size, so it is loose on large photos and strict on thumbnails.
const MinArea = 1000.0

const (
	ReasonTooFewPoints  = "too few points"
	ReasonOutsideBounds = "outside bounds"
	ReasonTooSmall      = "too small"
)

type Result struct {
	Valid  bool    `json:"valid"`
	Reason string  `json:"reason,omitempty"`
	Area   float64 `json:"area"`
}

type Validator struct {
	MinArea float64
}

func Validate(points []float64, width, height float64) Result {
	return Validator{MinArea: MinArea}.Validate(points, width, height)
}

// Validate applies the checks in order and reports the first failure.
func (v Validator) Validate(points []float64, width, height float64) Result {
	if len(points) < 6 || len(points)%2 != 0 {
		return Result{Reason: ReasonTooFewPoints}
	}
	for i, p := range points {
		limit := width
		if i%2 == 1 {
			limit = height
		}
		if math.IsNaN(p) || p < 0 || p > limit {
			return Result{Reason: ReasonOutsideBounds}
		}
	}
	area := Area(points)
	minArea := v.MinArea
	if minArea <= 0 {
		minArea = MinArea
	}
	if area < minArea {
		return Result{Reason: ReasonTooSmall, Area: area}
	}
	return Result{Valid: true, Area: area}
}

// Area is the shoelace area of the closed ring described by points.
func Area(points []float64) float64 {
	return math.Abs(planar.Area(Ring(points)))
}

// Ring converts a flat point list into a closed orb ring.
func Ring(points []float64) orb.Ring {
	ring := make(orb.Ring, 0, len(points)/2+1)
	for i := 0; i+1 < len(points); i += 2 {
		ring = append(ring, orb.Point{points[i], points[i+1]})
	}
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring
}
