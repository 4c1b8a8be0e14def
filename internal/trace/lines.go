package trace

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/kiesman99/relief/internal/dem"
)

// Lines traces isolines at every level and returns them as LineString
// features carrying the integer property "level". Levels that cross
// nothing contribute no features.
func Lines(g *dem.Grid, levels []float64) []*geojson.Feature {
	var features []*geojson.Feature
	for _, level := range levels {
		segs := collectSegments(g, level, modeLines)
		for _, c := range mergeSegments(segs) {
			if len(c.pts) < 2 {
				continue
			}
			f := geojson.NewFeature(orb.LineString(c.pts))
			f.Properties["level"] = int(math.Round(level))
			features = append(features, f)
		}
	}
	return features
}
