// Package shade renders Lambertian hillshade from elevation grids.
package shade

import (
	"errors"
	"fmt"
	"math"

	"github.com/kiesman99/relief/internal/dem"
)

// ErrInvalidInput marks sun angles outside their valid range or a
// non-positive cell size.
var ErrInvalidInput = errors.New("invalid hillshade input")

const flatEpsilon = 1e-10

// Options describe the simulated illumination.
type Options struct {
	// CellSize is the ground size of one grid cell in meters.
	CellSize float64
	// Altitude is the sun elevation above the horizon in degrees [0, 90].
	Altitude float64
	// Azimuth is the sun direction in compass degrees [0, 360].
	Azimuth float64
}

// Hillshade computes per-pixel illumination in [0, 255] from the elevation
// grid using Sobel gradients and a single directional light.
func Hillshade(g *dem.Grid, opts Options) (*dem.Grid, error) {
	if opts.Altitude < 0 || opts.Altitude > 90 {
		return nil, fmt.Errorf("%w: altitude %v not in [0, 90]", ErrInvalidInput, opts.Altitude)
	}
	if opts.Azimuth < 0 || opts.Azimuth > 360 {
		return nil, fmt.Errorf("%w: azimuth %v not in [0, 360]", ErrInvalidInput, opts.Azimuth)
	}
	if opts.CellSize <= 0 {
		return nil, fmt.Errorf("%w: cell size %v must be positive", ErrInvalidInput, opts.CellSize)
	}

	// Geographic azimuth (clockwise from north) to math convention
	// (counter-clockwise from east).
	azimuthRad := (360 - opts.Azimuth + 90) * math.Pi / 180
	zenithRad := (90 - opts.Altitude) * math.Pi / 180

	sinZ, cosZ := math.Sincos(zenithRad)
	sunX := sinZ * math.Cos(azimuthRad)
	sunY := sinZ * math.Sin(azimuthRad)
	sunZ := cosZ

	gradScale := 1 / (8 * opts.CellSize)
	flat := 255 * cosZ

	out, err := dem.NewGrid(g.Width, g.Height)
	if err != nil {
		return nil, err
	}
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			// 3x3 neighborhood, clamped at the grid edge:
			//   a b c
			//   d e f
			//   g h i
			a := g.At(x-1, y-1)
			b := g.At(x, y-1)
			c := g.At(x+1, y-1)
			d := g.At(x-1, y)
			f := g.At(x+1, y)
			gg := g.At(x-1, y+1)
			h := g.At(x, y+1)
			i := g.At(x+1, y+1)

			dx := (c + 2*f + i - (a + 2*d + gg)) * gradScale
			dy := (gg + 2*h + i - (a + 2*b + c)) * gradScale

			var v float64
			if dx*dx+dy*dy < flatEpsilon {
				v = flat
			} else {
				n := math.Sqrt(dx*dx + dy*dy + 1)
				v = 255 * (-sunX*dx - sunY*dy + sunZ) / n
				if v < 0 {
					v = 0
				} else if v > 255 {
					v = 255
				}
			}
			out.Data[y*g.Width+x] = v
		}
	}
	return out, nil
}

// Baseline returns the flat-terrain luminance for a sun altitude in
// degrees: round(255*cos(zenith)).
func Baseline(altitude float64) float64 {
	zenith := (90 - altitude) * math.Pi / 180
	return math.Round(255 * math.Cos(zenith))
}
