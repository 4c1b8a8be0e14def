package shade

import (
	"math"
	"testing"

	"github.com/kiesman99/relief/internal/dem"
)

func flatGrid(w, h int, v float64) *dem.Grid {
	g, _ := dem.NewGrid(w, h)
	for i := range g.Data {
		g.Data[i] = v
	}
	return g
}

func TestHillshadeFlatGrid(t *testing.T) {
	g := flatGrid(10, 10, 0)
	out, err := Hillshade(g, Options{CellSize: 1, Altitude: 45, Azimuth: 315})
	if err != nil {
		t.Fatal(err)
	}
	want := 255 * math.Cos(math.Pi/4)
	for i, v := range out.Data {
		if math.Round(v) != math.Round(want) {
			t.Fatalf("pixel %d = %v, want %v", i, v, want)
		}
	}
	if math.Round(want) != 180 {
		t.Fatalf("flat luminance rounds to %v, want 180", math.Round(want))
	}
}

func TestHillshadeRange(t *testing.T) {
	// A steep synthetic ridge.
	g, _ := dem.NewGrid(32, 32)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			g.Data[y*32+x] = 500 * math.Sin(float64(x)/3) * math.Cos(float64(y)/5)
		}
	}
	out, err := Hillshade(g, Options{CellSize: 10, Altitude: 45, Azimuth: 315})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out.Data {
		if v < 0 || v > 255 {
			t.Fatalf("pixel %d = %v outside [0, 255]", i, v)
		}
	}
}

func TestHillshadeSlopeOrientation(t *testing.T) {
	// With the default sun, the plane z = x - y faces the light and the
	// opposite plane faces away from it.
	lit, _ := dem.NewGrid(16, 16)
	dark, _ := dem.NewGrid(16, 16)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			lit.Data[y*16+x] = float64(x - y)
			dark.Data[y*16+x] = float64(y - x)
		}
	}
	opts := Options{CellSize: 1, Altitude: 45, Azimuth: 315}
	flat := 255 * math.Cos(math.Pi/4)

	outLit, err := Hillshade(lit, opts)
	if err != nil {
		t.Fatal(err)
	}
	if v := outLit.At(8, 8); v <= flat {
		t.Errorf("sun-facing slope = %v, want > %v", v, flat)
	}

	outDark, err := Hillshade(dark, opts)
	if err != nil {
		t.Fatal(err)
	}
	if v := outDark.At(8, 8); v >= flat {
		t.Errorf("shaded slope = %v, want < %v", v, flat)
	}
}

func TestHillshadeInvalidInput(t *testing.T) {
	g := flatGrid(4, 4, 0)
	testCases := []struct {
		name string
		opts Options
	}{
		{"altitude high", Options{CellSize: 1, Altitude: 95, Azimuth: 0}},
		{"altitude negative", Options{CellSize: 1, Altitude: -1, Azimuth: 0}},
		{"azimuth high", Options{CellSize: 1, Altitude: 45, Azimuth: 400}},
		{"zero cell size", Options{CellSize: 0, Altitude: 45, Azimuth: 315}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Hillshade(g, tc.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBaseline(t *testing.T) {
	if got := Baseline(45); got != 180 {
		t.Errorf("Baseline(45) = %v, want 180", got)
	}
	if got := Baseline(90); got != 255 {
		t.Errorf("Baseline(90) = %v, want 255", got)
	}
}
