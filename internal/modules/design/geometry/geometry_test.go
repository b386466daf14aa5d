package geometry

import (
	"math"
	"math/rand"
	"testing"
)

func TestNormalizeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 200; iter++ {
		w := 1 + rng.Float64()*8000
		h := 1 + rng.Float64()*8000
		n := 3 + rng.Intn(12)
		pts := make([]float64, 2*n)
		for i := range pts {
			if i%2 == 0 {
				pts[i] = rng.Float64() * w
			} else {
				pts[i] = rng.Float64() * h
			}
		}
		back := Denormalize(Normalize(pts, w, h), w, h)
		for i := range pts {
			if math.Abs(back[i]-pts[i]) > 1e-6 {
				t.Fatalf("iter %d idx %d: want=%v got=%v", iter, i, pts[i], back[i])
			}
		}
	}
}

func TestNormalizeAxes(t *testing.T) {
	got := Normalize([]float64{960, 540, 1920, 0}, 1920, 1080)
	want := []float64{0.5, 0.5, 1, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("idx %d: want=%v got=%v", i, want[i], got[i])
		}
	}
}

func TestValidateOrderAndReasons(t *testing.T) {
	cases := []struct {
		name   string
		points []float64
		want   string
	}{
		{"two points", []float64{0, 0, 10, 10}, ReasonTooFewPoints},
		{"odd scalars", []float64{0, 0, 10, 10, 5}, ReasonTooFewPoints},
		// Out of bounds wins over too small when both apply.
		{"negative", []float64{-1, 0, 10, 0, 0, 10}, ReasonOutsideBounds},
		{"past width", []float64{0, 0, 201, 0, 0, 10}, ReasonOutsideBounds},
		{"triangle area 50", []float64{0, 0, 10, 0, 0, 10}, ReasonTooSmall},
		{"square 100", []float64{0, 0, 100, 0, 100, 100, 0, 100}, ""},
	}
	for _, tc := range cases {
		res := Validate(tc.points, 200, 200)
		if tc.want == "" {
			if !res.Valid {
				t.Fatalf("%s: want valid got reason=%q", tc.name, res.Reason)
			}
			continue
		}
		if res.Valid || res.Reason != tc.want {
			t.Fatalf("%s: want reason=%q got valid=%v reason=%q", tc.name, tc.want, res.Valid, res.Reason)
		}
	}
}

func TestValidateAreaIsShoelace(t *testing.T) {
	res := Validate([]float64{0, 0, 100, 0, 100, 100, 0, 100}, 1000, 1000)
	if math.Abs(res.Area-10000) > 1e-9 {
		t.Fatalf("area: want=10000 got=%v", res.Area)
	}
	// Clockwise winding gives the same magnitude.
	res = Validate([]float64{0, 0, 0, 100, 100, 100, 100, 0}, 1000, 1000)
	if math.Abs(res.Area-10000) > 1e-9 {
		t.Fatalf("clockwise area: want=10000 got=%v", res.Area)
	}
}

func TestValidationSurvivesResolutionChange(t *testing.T) {
	native := []float64{100, 100, 500, 120, 480, 600, 90, 580}
	if res := Validate(native, 1920, 1080); !res.Valid {
		t.Fatalf("native: %q", res.Reason)
	}
	norm := Normalize(native, 1920, 1080)
	for _, dim := range [][2]float64{{3840, 2160}, {1920, 1080}, {2560, 1440}} {
		pts := Denormalize(norm, dim[0], dim[1])
		if res := Validate(pts, dim[0], dim[1]); !res.Valid {
			t.Fatalf("%vx%v: %q", dim[0], dim[1], res.Reason)
		}
	}
}

func TestViewToNative(t *testing.T) {
	v := View{Scale: 0.5, OffsetX: 20, OffsetY: 10}
	got := v.ToNative([]float64{20, 10, 520, 310})
	want := []float64{0, 0, 1000, 600}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("idx %d: want=%v got=%v", i, want[i], got[i])
		}
	}
	back := v.ToScreen(got)
	if back[2] != 520 || back[3] != 310 {
		t.Fatalf("ToScreen: got=%v", back)
	}
}

func TestCentroidIsVertexMean(t *testing.T) {
	// An extra vertex near one corner pulls the mean but not the area centroid.
	x, y := Centroid([]float64{0, 0, 90, 0, 100, 0, 100, 100, 0, 100})
	if x != 58 || y != 40 {
		t.Fatalf("centroid: want=(58,40) got=(%v,%v)", x, y)
	}
}
