package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the prometheus collectors of the tile service.
type Metrics struct {
	TilesServed   *prometheus.CounterVec
	RenderSeconds *prometheus.HistogramVec
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
}

// NewMetrics registers the tile service collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TilesServed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relief_tiles_served_total",
			Help: "Tiles served by kind and HTTP status.",
		}, []string{"kind", "status"}),
		RenderSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relief_tile_render_seconds",
			Help:    "Wall time spent producing a tile, cache misses only.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "relief_tile_cache_hits_total",
			Help: "Tile responses served from the cache.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "relief_tile_cache_misses_total",
			Help: "Tile requests that had to be rendered.",
		}),
	}
}
