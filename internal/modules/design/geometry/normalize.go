package geometry

// Normalize divides x (even index) by width and y (odd index) by height.
// Callers guarantee width and height are positive.
func Normalize(points []float64, width, height float64) []float64 {
	out := make([]float64, len(points))
	for i, v := range points {
		if i%2 == 0 {
			out[i] = v / width
		} else {
			out[i] = v / height
		}
	}
	return out
}

// Denormalize is the inverse of Normalize.
func Denormalize(points []float64, width, height float64) []float64 {
	out := make([]float64, len(points))
	for i, v := range points {
		if i%2 == 0 {
			out[i] = v * width
		} else {
			out[i] = v * height
		}
	}
	return out
}

// View is the zoom/pan transform of the canvas the user drew on.
// A native pixel p is displayed at p*Scale + Offset.
type View struct {
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
}

func (v View) scale() float64 {
	if v.Scale <= 0 {
		return 1
	}
	return v.Scale
}

// ToNative maps on-screen points to native image pixels.
func (v View) ToNative(points []float64) []float64 {
	s := v.scale()
	out := make([]float64, len(points))
	for i, p := range points {
		if i%2 == 0 {
			out[i] = (p - v.OffsetX) / s
		} else {
			out[i] = (p - v.OffsetY) / s
		}
	}
	return out
}

// ToScreen maps native pixels back onto the canvas.
func (v View) ToScreen(points []float64) []float64 {
	s := v.scale()
	out := make([]float64, len(points))
	for i, p := range points {
		if i%2 == 0 {
			out[i] = p*s + v.OffsetX
		} else {
			out[i] = p*s + v.OffsetY
		}
	}
	return out
}

// Centroid is the arithmetic mean of the vertices, not the area centroid.
func Centroid(points []float64) (float64, float64) {
	n := len(points) / 2
	if n == 0 {
		return 0, 0
	}
	var sx, sy float64
	for i := 0; i+1 < len(points); i += 2 {
		sx += points[i]
		sy += points[i+1]
	}
	return sx / float64(n), sy / float64(n)
}
