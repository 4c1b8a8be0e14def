package tile

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Pipeline constants shared between the fetcher, the tracers and the encoder.
const (
	// TileSize is the output tile dimension in pixels.
	TileSize = 256
	// SourceTileSize is the dimension of upstream terrain-RGB tiles.
	SourceTileSize = 512
	// BufferPx is the halo width fetched around a tile so that convolution
	// and tracing kernels have context at the tile edge.
	BufferPx = 8
	// MVTExtent is the integer coordinate range of encoded tiles.
	MVTExtent = 4096

	// MinZoom and MaxZoom bound the accepted tile addresses.
	MinZoom = 0
	MaxZoom = 22

	MinElevation = -500
	MaxElevation = 9000
	MinLuminance = 0
	MaxLuminance = 256

	DefaultSunAltitude = 45.0
	DefaultSunAzimuth  = 315.0
)

// earthRadius is the WGS84 equatorial radius in meters.
const earthRadius = 6378137.0

// Coord addresses a single web map tile.
type Coord struct {
	Z, X, Y int
}

func (c Coord) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// Valid reports whether the coordinate addresses an existing tile.
func (c Coord) Valid() bool {
	if c.Z < MinZoom || c.Z > MaxZoom {
		return false
	}
	n := 1 << uint(c.Z)
	return c.X >= 0 && c.X < n && c.Y >= 0 && c.Y < n
}

// ParseCoord parses z, x and y path segments. The y segment may carry a
// trailing ".mvt" suffix.
func ParseCoord(zs, xs, ys string) (Coord, error) {
	ys = strings.TrimSuffix(ys, ".mvt")

	z, err := strconv.Atoi(zs)
	if err != nil {
		return Coord{}, fmt.Errorf("invalid zoom %q", zs)
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return Coord{}, fmt.Errorf("invalid x %q", xs)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return Coord{}, fmt.Errorf("invalid y %q", ys)
	}

	c := Coord{Z: z, X: x, Y: y}
	if !c.Valid() {
		return Coord{}, fmt.Errorf("coordinate %s out of range", c)
	}
	return c, nil
}

// Resolution returns the ground size of one pixel in meters at the given
// zoom level, at the equator.
func Resolution(zoom, tileSize int) float64 {
	return 2 * math.Pi * earthRadius / (float64(tileSize) * math.Pow(2, float64(zoom)))
}
