package dem

import "fmt"

// Grid is a row-major 2D field of float64 samples. Reads outside the grid
// clamp to the nearest edge so that convolution kernels never need bounds
// checks of their own.
type Grid struct {
	Width  int
	Height int
	Data   []float64
}

// NewGrid allocates a zero-filled grid.
func NewGrid(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d", width, height)
	}
	return &Grid{
		Width:  width,
		Height: height,
		Data:   make([]float64, width*height),
	}, nil
}

// NewGridFrom wraps an existing row-major slice.
func NewGridFrom(width, height int, data []float64) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d", width, height)
	}
	if len(data) != width*height {
		return nil, fmt.Errorf("grid data length %d does not match %dx%d", len(data), width, height)
	}
	return &Grid{Width: width, Height: height, Data: data}, nil
}

// At returns the sample at (x, y), clamping coordinates into the grid.
func (g *Grid) At(x, y int) float64 {
	if x < 0 {
		x = 0
	} else if x >= g.Width {
		x = g.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= g.Height {
		y = g.Height - 1
	}
	return g.Data[y*g.Width+x]
}

// Set writes the sample at (x, y). Out-of-bounds writes are ignored.
func (g *Grid) Set(x, y int, v float64) {
	if x < 0 || x >= g.Width || y < 0 || y >= g.Height {
		return
	}
	g.Data[y*g.Width+x] = v
}

// Invert returns a new grid with every value v mapped to 255-v.
func (g *Grid) Invert() *Grid {
	out := make([]float64, len(g.Data))
	for i, v := range g.Data {
		out[i] = 255 - v
	}
	return &Grid{Width: g.Width, Height: g.Height, Data: out}
}

// ClampRange returns a new grid with every value clamped into [min, max].
func (g *Grid) ClampRange(min, max float64) *Grid {
	out := make([]float64, len(g.Data))
	for i, v := range g.Data {
		switch {
		case v < min:
			out[i] = min
		case v > max:
			out[i] = max
		default:
			out[i] = v
		}
	}
	return &Grid{Width: g.Width, Height: g.Height, Data: out}
}

// BufferedGrid is a grid whose outer BufferPx rows and columns are halo
// samples from neighboring tiles. The usable tile region is the center
// (Width-2*BufferPx) x (Height-2*BufferPx).
type BufferedGrid struct {
	*Grid
	BufferPx int
}
