// Package trace extracts isolines and filled isobands from scalar grids
// using Marching Squares.
package trace

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/kiesman99/relief/internal/dem"
)

// epsilon is the numeric tolerance used for interpolation clamping and
// coordinate comparison.
const epsilon = 1e-10

type segment struct {
	a, b orb.Point
}

type traceMode int

const (
	modeLines traceMode = iota
	modePolygons
)

// interpolate returns the fraction of the crossing between two corner
// values, clamped away from the exact endpoints so that chain merging
// never sees coincident corner points.
func interpolate(v1, v2, level float64) float64 {
	if math.Abs(v2-v1) < epsilon {
		return 0.5
	}
	t := (level - v1) / (v2 - v1)
	if t < epsilon {
		t = epsilon
	} else if t > 1-epsilon {
		t = 1 - epsilon
	}
	return t
}

// collectSegments walks every cell of the grid and emits the Marching
// Squares segments for one level. In polygon mode, cells on the grid
// border additionally emit the perimeter segments that close bands at the
// tile edge.
func collectSegments(g *dem.Grid, level float64, mode traceMode) []segment {
	var segs []segment

	w, h := g.Width, g.Height
	for y := 0; y < h-1; y++ {
		for x := 0; x < w-1; x++ {
			vtl := g.At(x, y)
			vtr := g.At(x+1, y)
			vbr := g.At(x+1, y+1)
			vbl := g.At(x, y+1)

			var index int
			if vtl >= level {
				index |= 1
			}
			if vtr >= level {
				index |= 2
			}
			if vbr >= level {
				index |= 4
			}
			if vbl >= level {
				index |= 8
			}

			if index != 0 && index != 15 {
				fx, fy := float64(x), float64(y)
				tm := orb.Point{fx + interpolate(vtl, vtr, level), fy}
				bm := orb.Point{fx + interpolate(vbl, vbr, level), fy + 1}
				lm := orb.Point{fx, fy + interpolate(vtl, vbl, level)}
				rm := orb.Point{fx + 1, fy + interpolate(vtr, vbr, level)}

				segs = append(segs, interiorSegments(index, mode, tm, bm, lm, rm)...)
			}

			if mode == modePolygons {
				segs = append(segs, boundarySegments(g, level, x, y, index)...)
			}
		}
	}
	return segs
}

// interiorSegments returns the case-table segments crossing the cell. The
// saddle cases 5 and 10 emit two disjoint segments either way, but the
// pairing depends on the mode: line mode cuts off each above-level corner
// separately, polygon mode cuts off the below-level corners instead so the
// band stays connected across the cell.
func interiorSegments(index int, mode traceMode, tm, bm, lm, rm orb.Point) []segment {
	switch index {
	case 1:
		return []segment{{lm, tm}}
	case 2:
		return []segment{{tm, rm}}
	case 3:
		return []segment{{lm, rm}}
	case 4:
		return []segment{{rm, bm}}
	case 5:
		if mode == modePolygons {
			return []segment{{lm, bm}, {tm, rm}}
		}
		return []segment{{lm, tm}, {rm, bm}}
	case 6:
		return []segment{{tm, bm}}
	case 7:
		return []segment{{lm, bm}}
	case 8:
		return []segment{{bm, lm}}
	case 9:
		return []segment{{tm, bm}}
	case 10:
		if mode == modePolygons {
			return []segment{{lm, tm}, {rm, bm}}
		}
		return []segment{{bm, lm}, {tm, rm}}
	case 11:
		return []segment{{rm, bm}}
	case 12:
		return []segment{{rm, lm}}
	case 13:
		return []segment{{tm, rm}}
	case 14:
		return []segment{{lm, tm}}
	default:
		return nil
	}
}

// boundarySegments closes bands along the grid perimeter. For each border
// side of the cell it emits the portion of the cell edge covered by the
// above-level region: the full edge when both corners are above, the half
// up to the interpolated crossing when only one is.
func boundarySegments(g *dem.Grid, level float64, x, y, index int) []segment {
	w, h := g.Width, g.Height
	tlAbove := index&1 != 0
	trAbove := index&2 != 0
	brAbove := index&4 != 0
	blAbove := index&8 != 0

	fx, fy := float64(x), float64(y)
	tl := orb.Point{fx, fy}
	tr := orb.Point{fx + 1, fy}
	br := orb.Point{fx + 1, fy + 1}
	bl := orb.Point{fx, fy + 1}

	var segs []segment

	if y == 0 {
		tm := orb.Point{fx + interpolate(g.At(x, y), g.At(x+1, y), level), fy}
		switch {
		case tlAbove && trAbove:
			segs = append(segs, segment{tl, tr})
		case tlAbove:
			segs = append(segs, segment{tl, tm})
		case trAbove:
			segs = append(segs, segment{tm, tr})
		}
	}
	if y == h-2 {
		bm := orb.Point{fx + interpolate(g.At(x, y+1), g.At(x+1, y+1), level), fy + 1}
		switch {
		case blAbove && brAbove:
			segs = append(segs, segment{br, bl})
		case blAbove:
			segs = append(segs, segment{bm, bl})
		case brAbove:
			segs = append(segs, segment{br, bm})
		}
	}
	if x == 0 {
		lm := orb.Point{fx, fy + interpolate(g.At(x, y), g.At(x, y+1), level)}
		switch {
		case tlAbove && blAbove:
			segs = append(segs, segment{bl, tl})
		case blAbove:
			segs = append(segs, segment{bl, lm})
		case tlAbove:
			segs = append(segs, segment{lm, tl})
		}
	}
	if x == w-2 {
		rm := orb.Point{fx + 1, fy + interpolate(g.At(x+1, y), g.At(x+1, y+1), level)}
		switch {
		case trAbove && brAbove:
			segs = append(segs, segment{tr, br})
		case trAbove:
			segs = append(segs, segment{tr, rm})
		case brAbove:
			segs = append(segs, segment{rm, br})
		}
	}
	return segs
}
