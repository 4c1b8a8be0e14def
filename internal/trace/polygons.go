package trace

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/kiesman99/relief/internal/dem"
)

// Polygons traces filled isobands at every level. Each feature is a
// Polygon whose outer shell encloses the region at or above the level;
// smaller rings nested inside a shell become its holes. Features carry the
// integer property "level".
func Polygons(g *dem.Grid, levels []float64) []*geojson.Feature {
	var features []*geojson.Feature
	for _, level := range levels {
		segs := collectSegments(g, level, modePolygons)
		rings := closeRings(mergeSegments(segs))
		for _, poly := range assemblePolygons(rings) {
			f := geojson.NewFeature(poly)
			f.Properties["level"] = int(math.Round(level))
			features = append(features, f)
		}
	}
	return features
}

// closeRings closes every traced chain and discards degenerate ones.
func closeRings(chains []*chain) []orb.Ring {
	var rings []orb.Ring
	for _, c := range chains {
		pts := c.pts
		if len(pts) == 0 {
			continue
		}
		if !pts[0].Equal(pts[len(pts)-1]) {
			pts = append(pts, pts[0])
		}
		if len(pts) < 4 {
			continue
		}
		rings = append(rings, orb.Ring(pts))
	}
	return rings
}

// ringArea returns the absolute shoelace area of a closed ring.
func ringArea(r orb.Ring) float64 {
	var sum float64
	for i := 0; i < len(r)-1; i++ {
		sum += r[i][0]*r[i+1][1] - r[i+1][0]*r[i][1]
	}
	return math.Abs(sum / 2)
}

// assemblePolygons nests rings one level deep: after sorting by
// decreasing area, each unused ring becomes a shell and captures every
// subsequent ring whose first vertex lies inside it but outside the holes
// captured so far.
func assemblePolygons(rings []orb.Ring) []orb.Polygon {
	order := make([]int, len(rings))
	areas := make([]float64, len(rings))
	for i, r := range rings {
		order[i] = i
		areas[i] = ringArea(r)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return areas[order[i]] > areas[order[j]]
	})

	used := make([]bool, len(rings))
	var polys []orb.Polygon
	for oi, i := range order {
		if used[i] {
			continue
		}
		used[i] = true
		poly := orb.Polygon{rings[i]}

		for _, j := range order[oi+1:] {
			if used[j] {
				continue
			}
			p := rings[j][0]
			if !planar.RingContains(rings[i], p) {
				continue
			}
			inHole := false
			for _, hole := range poly[1:] {
				if planar.RingContains(hole, p) {
					inHole = true
					break
				}
			}
			if inHole {
				continue
			}
			poly = append(poly, rings[j])
			used[j] = true
		}
		polys = append(polys, poly)
	}
	return polys
}
