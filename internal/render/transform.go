// Package render converts traced grid-space features into encoded Mapbox
// Vector Tiles.
package render

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/kiesman99/relief/pkg/tile"
)

// TransformAndClip maps features from buffered grid space into MVT tile
// coordinates and clips them to the tile extent. Halo geometry outside
// [0, extent]^2 is cut away; features clipped to nothing are dropped.
func TransformAndClip(features []*geojson.Feature, bufferPx int) []*geojson.Feature {
	return transformAndClip(features, bufferPx, tile.TileSize, tile.MVTExtent)
}

func transformAndClip(features []*geojson.Feature, bufferPx, tileSizePx, extent int) []*geojson.Feature {
	scale := float64(extent) / float64(tileSizePx)
	b := float64(bufferPx)
	project := func(p orb.Point) orb.Point {
		return orb.Point{(p[0] - b) * scale, (p[1] - b) * scale}
	}

	var out []*geojson.Feature
	for _, f := range features {
		switch geom := f.Geometry.(type) {
		case orb.LineString:
			projected := make(orb.LineString, len(geom))
			for i, p := range geom {
				projected[i] = project(p)
			}
			for _, part := range clipLine(projected, float64(extent)) {
				nf := geojson.NewFeature(part)
				nf.Properties = copyProperties(f.Properties)
				out = append(out, nf)
			}
		case orb.Polygon:
			clipped := clipPolygon(geom, project, float64(extent))
			if clipped == nil {
				continue
			}
			nf := geojson.NewFeature(clipped)
			nf.Properties = copyProperties(f.Properties)
			out = append(out, nf)
		}
	}
	return out
}

func copyProperties(props geojson.Properties) geojson.Properties {
	out := make(geojson.Properties, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

// clip box edges, checked in a fixed order when a point violates several.
const (
	edgeLeft = iota
	edgeRight
	edgeTop
	edgeBottom
)

func inBox(p orb.Point, extent float64) bool {
	return p[0] >= 0 && p[0] <= extent && p[1] >= 0 && p[1] <= extent
}

// firstViolatedEdge returns the first box edge the point lies beyond, in
// the order left, right, top, bottom.
func firstViolatedEdge(p orb.Point, extent float64) int {
	switch {
	case p[0] < 0:
		return edgeLeft
	case p[0] > extent:
		return edgeRight
	case p[1] < 0:
		return edgeTop
	default:
		return edgeBottom
	}
}

// intersectEdge returns the intersection of segment a-b with the given box
// edge line.
func intersectEdge(a, b orb.Point, edge int, extent float64) orb.Point {
	switch edge {
	case edgeLeft:
		t := (0 - a[0]) / (b[0] - a[0])
		return orb.Point{0, a[1] + t*(b[1]-a[1])}
	case edgeRight:
		t := (extent - a[0]) / (b[0] - a[0])
		return orb.Point{extent, a[1] + t*(b[1]-a[1])}
	case edgeTop:
		t := (0 - a[1]) / (b[1] - a[1])
		return orb.Point{a[0] + t*(b[0]-a[0]), 0}
	default:
		t := (extent - a[1]) / (b[1] - a[1])
		return orb.Point{a[0] + t*(b[0]-a[0]), extent}
	}
}

// clipLine walks the polyline and keeps the runs inside the box. A pair
// crossing the boundary is cut at the first violated edge of its outside
// endpoint; pairs entirely outside are dropped without reconstructing a
// possible through-crossing.
func clipLine(ls orb.LineString, extent float64) []orb.LineString {
	var parts []orb.LineString
	var cur orb.LineString

	flush := func() {
		if len(cur) >= 2 {
			parts = append(parts, cur)
		}
		cur = nil
	}

	for i := 0; i < len(ls)-1; i++ {
		p0, p1 := ls[i], ls[i+1]
		in0, in1 := inBox(p0, extent), inBox(p1, extent)

		switch {
		case in0 && in1:
			if len(cur) == 0 {
				cur = append(cur, p0)
			}
			cur = append(cur, p1)
		case in0 && !in1:
			if len(cur) == 0 {
				cur = append(cur, p0)
			}
			cur = append(cur, intersectEdge(p0, p1, firstViolatedEdge(p1, extent), extent))
			flush()
		case !in0 && in1:
			cur = append(cur, intersectEdge(p0, p1, firstViolatedEdge(p0, extent), extent), p1)
		}
	}
	flush()
	return parts
}

// clipPolygon projects and clips every ring with Sutherland-Hodgman. The
// polygon is dropped when its shell clips to nothing; holes that survive
// are carried through.
func clipPolygon(poly orb.Polygon, project func(orb.Point) orb.Point, extent float64) orb.Polygon {
	var out orb.Polygon
	for ri, ring := range poly {
		projected := make([]orb.Point, 0, len(ring))
		// Clip on the open ring, without the closing duplicate.
		n := len(ring)
		if n > 1 && ring[0].Equal(ring[n-1]) {
			n--
		}
		for _, p := range ring[:n] {
			projected = append(projected, project(p))
		}

		clipped := sutherlandHodgman(projected, extent)
		if len(clipped) > 0 && !clipped[0].Equal(clipped[len(clipped)-1]) {
			clipped = append(clipped, clipped[0])
		}
		if len(clipped) < 4 {
			if ri == 0 {
				return nil
			}
			continue
		}
		out = append(out, orb.Ring(clipped))
	}
	return out
}

// sutherlandHodgman clips an open ring against the four box edges in the
// order left, right, top, bottom.
func sutherlandHodgman(pts []orb.Point, extent float64) []orb.Point {
	for _, edge := range []int{edgeLeft, edgeRight, edgeTop, edgeBottom} {
		if len(pts) == 0 {
			return nil
		}
		inside := func(p orb.Point) bool {
			switch edge {
			case edgeLeft:
				return p[0] >= 0
			case edgeRight:
				return p[0] <= extent
			case edgeTop:
				return p[1] >= 0
			default:
				return p[1] <= extent
			}
		}

		out := make([]orb.Point, 0, len(pts))
		for i, cur := range pts {
			prev := pts[(i+len(pts)-1)%len(pts)]
			curIn, prevIn := inside(cur), inside(prev)
			switch {
			case curIn && prevIn:
				out = append(out, cur)
			case curIn && !prevIn:
				out = append(out, intersectEdge(prev, cur, edge, extent), cur)
			case !curIn && prevIn:
				out = append(out, intersectEdge(prev, cur, edge, extent))
			}
		}
		pts = out
	}
	return pts
}
