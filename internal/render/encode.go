package render

import (
	"fmt"
	"net/http"

	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"

	"github.com/kiesman99/relief/pkg/tile"
)

// Layer names of the encoded tile.
const (
	ContourLayer   = "contour"
	HillshadeLayer = "hillshade"
)

// Layer pairs a layer name with its features, already in MVT coordinates.
type Layer struct {
	Name     string
	Features []*geojson.Feature
}

// Encode serializes the layers as a Mapbox Vector Tile, gzip-compressed
// when requested. Empty layers are skipped.
func Encode(layers []Layer, compress bool) ([]byte, error) {
	var out mvt.Layers
	for _, l := range layers {
		if len(l.Features) == 0 {
			continue
		}
		fc := geojson.NewFeatureCollection()
		fc.Features = l.Features
		layer := mvt.NewLayer(l.Name, fc)
		layer.Version = 2
		layer.Extent = tile.MVTExtent
		out = append(out, layer)
	}

	var (
		data []byte
		err  error
	)
	if compress {
		data, err = mvt.MarshalGzipped(out)
	} else {
		data, err = mvt.Marshal(out)
	}
	if err != nil {
		return nil, fmt.Errorf("encode mvt: %w", err)
	}
	return data, nil
}

// SetTileHeaders applies the response headers for an encoded tile.
func SetTileHeaders(h http.Header, ttlSeconds int, compressed bool) {
	h.Set("Content-Type", "application/vnd.mapbox-vector-tile")
	h.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", ttlSeconds))
	if compressed {
		h.Set("Content-Encoding", "gzip")
	}
}
