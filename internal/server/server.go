package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/kiesman99/relief/internal/dem"
	"github.com/kiesman99/relief/internal/render"
	"github.com/kiesman99/relief/internal/shade"
	"github.com/kiesman99/relief/internal/trace"
	"github.com/kiesman99/relief/pkg/tile"
)

// renderVersion is baked into cache keys; bump it after any change to the
// generated geometry so stale tiles are never served.
const renderVersion = "v1"

// Tile kinds accepted by the route.
const (
	KindContour   = "contour"
	KindHillshade = "hillshade"
	KindTerrain   = "terrain"
)

// Server produces vector tiles on demand.
type Server struct {
	cfg     Config
	cache   *TileCache
	metrics *Metrics
	log     zerolog.Logger

	mu      sync.Mutex
	fetcher *dem.Fetcher

	// newFetcher builds the shared fetcher; a seam for tests.
	newFetcher func(url string, enc dem.Encoding) (*dem.Fetcher, error)
}

// NewServer wires a tile server from its collaborators.
func NewServer(cfg Config, cache *TileCache, metrics *Metrics, log zerolog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		cache:   cache,
		metrics: metrics,
		log:     log,
		newFetcher: func(url string, enc dem.Encoding) (*dem.Fetcher, error) {
			return dem.NewFetcher(url, enc)
		},
	}
}

// Routes mounts the tile endpoints on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/tiles/{kind}/{z}/{x}/{y}", s.handleTile)
	r.Get("/health", s.handleHealth)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// getFetcher returns the shared fetcher, building it lazily and replacing
// it when the source URL changed.
func (s *Server) getFetcher() (*dem.Fetcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetcher == nil || s.fetcher.URLTemplate() != s.cfg.TileURL {
		f, err := s.newFetcher(s.cfg.TileURL, s.cfg.Encoding)
		if err != nil {
			return nil, err
		}
		s.fetcher = f
	}
	return s.fetcher, nil
}

func cacheKey(kind string, c tile.Coord) string {
	return fmt.Sprintf("https://cache/%s/%s/%d/%d/%d.mvt", renderVersion, kind, c.Z, c.X, c.Y)
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	if kind != KindContour && kind != KindHillshade && kind != KindTerrain {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown tile kind %q", kind), "")
		s.countTile("invalid", http.StatusBadRequest)
		return
	}

	coord, err := tile.ParseCoord(chi.URLParam(r, "z"), chi.URLParam(r, "x"), chi.URLParam(r, "y"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid tile coordinates", err.Error())
		s.countTile(kind, http.StatusBadRequest)
		return
	}

	key := cacheKey(kind, coord)
	if data, ok := s.cache.Get(key); ok {
		s.metrics.CacheHits.Inc()
		render.SetTileHeaders(w.Header(), int(s.cfg.CacheTTL.Seconds()), s.cfg.CompressionEnabled)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		s.countTile(kind, http.StatusOK)
		return
	}
	s.metrics.CacheMisses.Inc()

	start := time.Now()
	data, err := s.RenderTile(r.Context(), kind, coord)
	if err != nil {
		s.log.Error().Err(err).Str("kind", kind).Stringer("tile", coord).Msg("tile render failed")
		s.writeError(w, http.StatusInternalServerError, "tile generation failed", err.Error())
		s.countTile(kind, http.StatusInternalServerError)
		return
	}
	s.metrics.RenderSeconds.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	// Fire-and-forget: a racing request may recompute the same tile, the
	// output is deterministic either way.
	go s.cache.Put(key, data)

	render.SetTileHeaders(w.Header(), int(s.cfg.CacheTTL.Seconds()), s.cfg.CompressionEnabled)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
	s.countTile(kind, http.StatusOK)
}

func (s *Server) countTile(kind string, status int) {
	s.metrics.TilesServed.WithLabelValues(kind, strconv.Itoa(status)).Inc()
}

// RenderTile runs the full pipeline for one tile: fetch the buffered
// elevation grid, trace the requested layers, clip and encode.
func (s *Server) RenderTile(ctx context.Context, kind string, coord tile.Coord) ([]byte, error) {
	fetcher, err := s.getFetcher()
	if err != nil {
		return nil, err
	}

	grid, err := fetcher.FetchGrid(ctx, coord, tile.BufferPx)
	if err != nil {
		return nil, err
	}

	var layers []render.Layer
	if kind == KindContour || kind == KindTerrain {
		layers = append(layers, render.Layer{
			Name:     render.ContourLayer,
			Features: s.contourFeatures(grid, coord.Z),
		})
	}
	if kind == KindHillshade || kind == KindTerrain {
		features, err := s.hillshadeFeatures(grid, coord.Z)
		if err != nil {
			return nil, err
		}
		layers = append(layers, render.Layer{
			Name:     render.HillshadeLayer,
			Features: features,
		})
	}

	return render.Encode(layers, s.cfg.CompressionEnabled)
}

// contourFeatures traces elevation isolines over the buffered grid. Levels
// that are a multiple of five contour intervals are flagged as index
// contours.
func (s *Server) contourFeatures(grid *dem.BufferedGrid, zoom int) []*geojson.Feature {
	interval := tile.ContourInterval(zoom)
	levels := tile.GenerateLevels(tile.MinElevation, tile.MaxElevation, interval)

	features := trace.Lines(grid.Grid, levels)
	for _, f := range features {
		level, _ := f.Properties["level"].(int)
		f.Properties["index"] = level%int(5*interval) == 0
		if s.cfg.SmoothingEnabled {
			if ls, ok := f.Geometry.(orb.LineString); ok {
				f.Geometry = trace.SmoothLine(ls, trace.DefaultSmoothIterations, trace.DefaultSmoothFactor)
			}
		}
	}
	return render.TransformAndClip(features, grid.BufferPx)
}

// hillshadeFeatures traces luminance bands over the hillshaded grid:
// highlight polygons above the flat-terrain baseline and shadow polygons,
// traced on the inverted grid, below it. The shade property normalizes
// both into [0, 1] with 0.5 at the baseline.
func (s *Server) hillshadeFeatures(grid *dem.BufferedGrid, zoom int) ([]*geojson.Feature, error) {
	hs, err := shade.Hillshade(grid.Grid, shade.Options{
		CellSize: tile.Resolution(zoom, tile.TileSize),
		Altitude: s.cfg.SunAltitude,
		Azimuth:  s.cfg.SunAzimuth,
	})
	if err != nil {
		return nil, err
	}

	baseline := shade.Baseline(s.cfg.SunAltitude)
	interval := tile.ShadeInterval(zoom)

	highlights := trace.Polygons(hs, tile.GenerateLevels(baseline, tile.MaxLuminance, interval))
	for _, f := range highlights {
		level, _ := f.Properties["level"].(int)
		f.Properties["shade"] = highlightShade(float64(level), baseline)
	}

	shadows := trace.Polygons(hs.Invert(), tile.GenerateLevels(255-baseline, tile.MaxLuminance, interval))
	for _, f := range shadows {
		level, _ := f.Properties["level"].(int)
		f.Properties["shade"] = shadowShade(float64(level), baseline)
	}

	return render.TransformAndClip(append(highlights, shadows...), grid.BufferPx), nil
}

// highlightShade maps luminance levels in [baseline, 255] to [0.5, 1].
func highlightShade(level, baseline float64) float64 {
	if baseline >= 255 {
		return 1
	}
	return 0.5 + 0.5*(level-baseline)/(255-baseline)
}

// shadowShade maps inverted-grid levels in [255-baseline, 255], that is
// luminance [0, baseline], to [0, 0.5].
func shadowShade(level, baseline float64) float64 {
	if baseline <= 0 {
		return 0
	}
	return 0.5 * (255 - level) / baseline
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]string{"error": msg}
	if details != "" {
		body["details"] = details
	}
	json.NewEncoder(w).Encode(body)
}
