package trace

import "github.com/paulmach/orb"

// Chaikin corner-cutting defaults.
const (
	DefaultSmoothIterations = 2
	DefaultSmoothFactor     = 0.25
)

// cutCorners replaces every segment by two interior points at factor and
// 1-factor. The endpoints of the input are dropped.
func cutCorners(pts []orb.Point, factor float64) []orb.Point {
	out := make([]orb.Point, 0, 2*(len(pts)-1))
	for i := 0; i < len(pts)-1; i++ {
		p0, p1 := pts[i], pts[i+1]
		out = append(out,
			orb.Point{p0[0] + (p1[0]-p0[0])*factor, p0[1] + (p1[1]-p0[1])*factor},
			orb.Point{p0[0] + (p1[0]-p0[0])*(1-factor), p0[1] + (p1[1]-p0[1])*(1-factor)},
		)
	}
	return out
}

// SmoothLine applies Chaikin corner cutting to an open polyline. The
// original first and last vertices are preserved exactly.
func SmoothLine(ls orb.LineString, iterations int, factor float64) orb.LineString {
	if iterations <= 0 || len(ls) < 3 {
		return ls
	}

	first := ls[0]
	last := ls[len(ls)-1]

	pts := make([]orb.Point, len(ls))
	copy(pts, ls)
	for i := 0; i < iterations; i++ {
		pts = cutCorners(pts, factor)
	}

	// The repeated cutting accumulates points that crowd the tail; drop
	// them before pinning the original endpoint back on.
	trim := iterations * (iterations + 1) * (2*iterations + 1) / 6
	if trim >= len(pts) {
		trim = len(pts) - 1
	}
	pts = pts[:len(pts)-trim]

	out := make(orb.LineString, 0, len(pts)+2)
	out = append(out, first)
	out = append(out, pts...)
	out = append(out, last)
	return out
}

// SmoothRing applies Chaikin corner cutting to a closed ring with
// wrap-around, then re-closes it.
func SmoothRing(r orb.Ring, iterations int, factor float64) orb.Ring {
	if iterations <= 0 || len(r) < 4 {
		return r
	}

	// Work on the unique vertices, excluding the closing duplicate.
	pts := make([]orb.Point, len(r)-1)
	copy(pts, r[:len(r)-1])

	for i := 0; i < iterations; i++ {
		n := len(pts)
		out := make([]orb.Point, 0, 2*n)
		for j := 0; j < n; j++ {
			p0, p1 := pts[j], pts[(j+1)%n]
			out = append(out,
				orb.Point{p0[0] + (p1[0]-p0[0])*factor, p0[1] + (p1[1]-p0[1])*factor},
				orb.Point{p0[0] + (p1[0]-p0[0])*(1-factor), p0[1] + (p1[1]-p0[1])*(1-factor)},
			)
		}
		pts = out
	}

	out := make(orb.Ring, 0, len(pts)+1)
	out = append(out, pts...)
	out = append(out, pts[0])
	return out
}
