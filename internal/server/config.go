package server

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/kiesman99/relief/internal/dem"
	"github.com/kiesman99/relief/pkg/tile"
)

// DefaultTileURL points to the public Terrarium-encoded AWS terrain
// tileset.
const DefaultTileURL = "https://s3.amazonaws.com/elevation-tiles-prod/terrarium/{z}/{x}/{y}.png"

// Config carries the per-process tile generation settings.
type Config struct {
	TileURL            string
	Encoding           dem.Encoding
	CacheEnabled       bool
	CacheSize          int
	CacheTTL           time.Duration
	CompressionEnabled bool
	SmoothingEnabled   bool
	SunAltitude        float64
	SunAzimuth         float64
}

// SetDefaults registers every configuration default with viper. Values can
// be overridden through the environment (DEM_TILE_URL, CACHE_ENABLED, ...).
func SetDefaults() {
	viper.SetDefault("DEM_TILE_URL", DefaultTileURL)
	viper.SetDefault("DEM_ENCODING", "terrarium")
	viper.SetDefault("CACHE_ENABLED", true)
	viper.SetDefault("CACHE_SIZE", 4096)
	viper.SetDefault("CACHE_TTL", 86400)
	viper.SetDefault("COMPRESSION_ENABLED", true)
	viper.SetDefault("SMOOTHING_ENABLED", true)
	viper.SetDefault("SUN_ALTITUDE", tile.DefaultSunAltitude)
	viper.SetDefault("SUN_AZIMUTH", tile.DefaultSunAzimuth)
}

// ConfigFromViper builds a Config snapshot from viper.
func ConfigFromViper() (Config, error) {
	encoding, err := dem.ParseEncoding(viper.GetString("DEM_ENCODING"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		TileURL:            viper.GetString("DEM_TILE_URL"),
		Encoding:           encoding,
		CacheEnabled:       viper.GetBool("CACHE_ENABLED"),
		CacheSize:          viper.GetInt("CACHE_SIZE"),
		CacheTTL:           time.Duration(viper.GetInt("CACHE_TTL")) * time.Second,
		CompressionEnabled: viper.GetBool("COMPRESSION_ENABLED"),
		SmoothingEnabled:   viper.GetBool("SMOOTHING_ENABLED"),
		SunAltitude:        viper.GetFloat64("SUN_ALTITUDE"),
		SunAzimuth:         viper.GetFloat64("SUN_AZIMUTH"),
	}
	if cfg.TileURL == "" {
		return Config{}, fmt.Errorf("DEM_TILE_URL must not be empty")
	}
	if cfg.SunAltitude < 0 || cfg.SunAltitude > 90 {
		return Config{}, fmt.Errorf("SUN_ALTITUDE %v not in [0, 90]", cfg.SunAltitude)
	}
	if cfg.SunAzimuth < 0 || cfg.SunAzimuth > 360 {
		return Config{}, fmt.Errorf("SUN_AZIMUTH %v not in [0, 360]", cfg.SunAzimuth)
	}
	return cfg, nil
}
