package dem

import "testing"

func TestNewGridValidation(t *testing.T) {
	if _, err := NewGrid(0, 10); err == nil {
		t.Error("expected error for zero width")
	}
	if _, err := NewGrid(10, -1); err == nil {
		t.Error("expected error for negative height")
	}
	if _, err := NewGridFrom(3, 3, make([]float64, 8)); err == nil {
		t.Error("expected error for short data")
	}
}

func TestGridAtClamps(t *testing.T) {
	g, err := NewGridFrom(3, 2, []float64{
		1, 2, 3,
		4, 5, 6,
	})
	if err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		x, y int
		want float64
	}{
		{0, 0, 1}, {2, 1, 6}, {1, 1, 5},
		{-5, 0, 1}, {10, 0, 3}, {0, -3, 1}, {0, 9, 4}, {99, 99, 6}, {-1, -1, 1},
	}
	for _, tc := range testCases {
		if got := g.At(tc.x, tc.y); got != tc.want {
			t.Errorf("At(%d,%d) = %v, want %v", tc.x, tc.y, got, tc.want)
		}
	}
}

func TestGridInvert(t *testing.T) {
	g, _ := NewGridFrom(2, 1, []float64{0, 200})
	inv := g.Invert()
	if inv.Data[0] != 255 || inv.Data[1] != 55 {
		t.Errorf("invert = %v, want [255 55]", inv.Data)
	}
	// Original untouched.
	if g.Data[0] != 0 {
		t.Error("invert mutated the source grid")
	}
}

func TestGridClampRange(t *testing.T) {
	g, _ := NewGridFrom(3, 1, []float64{-10, 50, 500})
	c := g.ClampRange(0, 255)
	want := []float64{0, 50, 255}
	for i := range want {
		if c.Data[i] != want[i] {
			t.Errorf("clamp[%d] = %v, want %v", i, c.Data[i], want[i])
		}
	}
}
