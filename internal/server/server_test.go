package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/kiesman99/relief/internal/dem"
	"github.com/kiesman99/relief/pkg/tile"
)

// slopePNG renders one 512x512 terrarium source tile of the plane
// z = 2*(x-y), which faces the default northwest sun.
func slopePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 512, 512))
	for y := 0; y < 512; y++ {
		for x := 0; x < 512; x++ {
			r, g, b, a := dem.EncodingTerrarium.EncodePixel(2 * float64(x-y))
			i := img.PixOffset(x, y)
			img.Pix[i] = r
			img.Pix[i+1] = g
			img.Pix[i+2] = b
			img.Pix[i+3] = a
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type testEnv struct {
	api      *httptest.Server
	upstream *httptest.Server
	srv      *Server
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	tileBytes := slopePNG(t)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(tileBytes)
	}))
	t.Cleanup(upstream.Close)

	cfg := Config{
		TileURL:            upstream.URL + "/{z}/{x}/{y}.png",
		Encoding:           dem.EncodingTerrarium,
		CacheEnabled:       false,
		CacheSize:          16,
		CacheTTL:           time.Minute,
		CompressionEnabled: false,
		SmoothingEnabled:   true,
		SunAltitude:        tile.DefaultSunAltitude,
		SunAzimuth:         tile.DefaultSunAzimuth,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	srv := NewServer(cfg,
		NewTileCache(cfg.CacheEnabled, cfg.CacheSize, cfg.CacheTTL),
		NewMetrics(prometheus.NewRegistry()),
		zerolog.Nop())

	r := chi.NewRouter()
	srv.Routes(r)
	api := httptest.NewServer(r)
	t.Cleanup(api.Close)

	return &testEnv{api: api, upstream: upstream, srv: srv}
}

func fetchTile(t *testing.T, env *testEnv, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(env.api.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, body
}

func TestContourTile(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := fetchTile(t, env, "/tiles/contour/12/2000/2000.mvt")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/vnd.mapbox-vector-tile" {
		t.Errorf("Content-Type = %q", ct)
	}

	layers, err := mvt.Unmarshal(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(layers) != 1 || layers[0].Name != "contour" {
		t.Fatalf("got layers %v, want [contour]", layerNames(layers))
	}
	if layers[0].Extent != 4096 {
		t.Errorf("extent = %d", layers[0].Extent)
	}
	if len(layers[0].Features) == 0 {
		t.Fatal("contour layer is empty")
	}
	for _, f := range layers[0].Features {
		if _, ok := f.Properties["level"]; !ok {
			t.Error("feature lacks level property")
		}
		if _, ok := f.Properties["index"]; !ok {
			t.Error("feature lacks index property")
		}
		ls, ok := f.Geometry.(orb.LineString)
		if !ok {
			t.Fatalf("geometry is %T, want LineString", f.Geometry)
		}
		for _, p := range ls {
			if p[0] < 0 || p[0] > 4096 || p[1] < 0 || p[1] > 4096 {
				t.Errorf("vertex %v outside extent", p)
			}
		}
	}
}

func TestHillshadeTile(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := fetchTile(t, env, "/tiles/hillshade/12/2000/2000.mvt")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	layers, err := mvt.Unmarshal(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(layers) != 1 || layers[0].Name != "hillshade" {
		t.Fatalf("got layers %v, want [hillshade]", layerNames(layers))
	}
	if len(layers[0].Features) == 0 {
		t.Fatal("hillshade layer is empty")
	}
	for _, f := range layers[0].Features {
		shade, ok := f.Properties["shade"].(float64)
		if !ok {
			t.Fatalf("shade property is %T", f.Properties["shade"])
		}
		if shade < 0 || shade > 1 {
			t.Errorf("shade = %v outside [0, 1]", shade)
		}
		if _, ok := f.Geometry.(orb.Polygon); !ok {
			t.Errorf("geometry is %T, want Polygon", f.Geometry)
		}
	}
}

func TestTerrainTileHasBothLayers(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := fetchTile(t, env, "/tiles/terrain/12/2000/2000.mvt")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	layers, err := mvt.Unmarshal(body)
	if err != nil {
		t.Fatal(err)
	}
	names := layerNames(layers)
	if len(names) != 2 || names[0] != "contour" || names[1] != "hillshade" {
		t.Errorf("got layers %v, want [contour hillshade]", names)
	}
}

func TestCompressedTile(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) { cfg.CompressionEnabled = true })

	client := env.api.Client()
	req, _ := http.NewRequest(http.MethodGet, env.api.URL+"/tiles/contour/12/2000/2000.mvt", nil)
	// Keep the transport from transparently gunzipping.
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if enc := resp.Header.Get("Content-Encoding"); enc != "gzip" {
		t.Errorf("Content-Encoding = %q", enc)
	}
	if !bytes.HasPrefix(body, []byte{0x1f, 0x8b}) {
		t.Fatal("body lacks gzip magic")
	}
	if _, err := mvt.UnmarshalGzipped(body); err != nil {
		t.Errorf("gzip decode: %v", err)
	}
}

func TestBadRequests(t *testing.T) {
	env := newTestEnv(t, nil)

	testCases := []struct {
		name string
		path string
	}{
		{"unknown kind", "/tiles/relief/12/2000/2000.mvt"},
		{"zoom too high", "/tiles/contour/23/0/0.mvt"},
		{"x out of range", "/tiles/contour/2/4/0.mvt"},
		{"y negative", "/tiles/contour/2/0/-1.mvt"},
		{"garbage", "/tiles/contour/a/b/c.mvt"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := fetchTile(t, env, tc.path)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status %d, want 400", resp.StatusCode)
			}
			var envelope map[string]string
			if err := json.Unmarshal(body, &envelope); err != nil {
				t.Fatalf("error body is not JSON: %v", err)
			}
			if envelope["error"] == "" {
				t.Error("error envelope lacks error field")
			}
		})
	}
}

func TestUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(upstream.Close)

	env := newTestEnv(t, func(cfg *Config) {
		cfg.TileURL = upstream.URL + "/{z}/{x}/{y}.png"
	})

	resp, body := fetchTile(t, env, "/tiles/contour/12/2000/2000.mvt")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500", resp.StatusCode)
	}
	var envelope map[string]string
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope["error"] == "" || envelope["details"] == "" {
		t.Errorf("error envelope incomplete: %v", envelope)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) { cfg.CacheEnabled = true })

	_, first := fetchTile(t, env, "/tiles/contour/12/2000/2000.mvt")

	// The write is fire-and-forget; wait for it to land.
	deadline := time.Now().Add(2 * time.Second)
	for env.srv.cache.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("cache write never landed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, second := fetchTile(t, env, "/tiles/contour/12/2000/2000.mvt")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if !bytes.Equal(first, second) {
		t.Error("cached response differs from rendered response")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, body := fetchTile(t, env, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var h map[string]string
	if err := json.Unmarshal(body, &h); err != nil {
		t.Fatal(err)
	}
	if h["status"] != "healthy" {
		t.Errorf("status = %q", h["status"])
	}
}

func layerNames(layers mvt.Layers) []string {
	names := make([]string, len(layers))
	for i, l := range layers {
		names[i] = l.Name
	}
	return names
}
