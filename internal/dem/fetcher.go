package dem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gen2brain/webp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/kiesman99/relief/pkg/tile"
)

// Error kinds surfaced by the fetcher. The handler maps them to HTTP
// statuses.
var (
	// ErrUpstream marks a failed or empty center-tile fetch.
	ErrUpstream = errors.New("upstream tile unavailable")
	// ErrDecode marks source bytes the image decoder rejected.
	ErrDecode = errors.New("image decode failed")
)

// HTTPGet fetches the raw bytes behind a URL.
type HTTPGet func(ctx context.Context, url string) ([]byte, error)

// ImageDecode turns encoded image bytes into tightly packed RGBA pixels.
type ImageDecode func(data []byte) (pix []byte, w, h int, err error)

// Fetcher assembles buffered elevation grids from a terrain-RGB tile
// source. The zero value is not usable; construct with NewFetcher.
type Fetcher struct {
	urlTemplate string
	encoding    Encoding
	sourceSize  int
	httpGet     HTTPGet
	decode      ImageDecode
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPGet replaces the HTTP fetch used for source tiles.
func WithHTTPGet(get HTTPGet) Option {
	return func(f *Fetcher) { f.httpGet = get }
}

// WithImageDecode replaces the image decoder used for source tiles.
func WithImageDecode(dec ImageDecode) Option {
	return func(f *Fetcher) { f.decode = dec }
}

// WithSourceTileSize overrides the expected source tile dimension.
func WithSourceTileSize(size int) Option {
	return func(f *Fetcher) { f.sourceSize = size }
}

// NewFetcher creates a fetcher for the given URL template. The template
// must contain {z}, {x} and {y} placeholders.
func NewFetcher(urlTemplate string, encoding Encoding, opts ...Option) (*Fetcher, error) {
	for _, ph := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(urlTemplate, ph) {
			return nil, fmt.Errorf("url template must contain %s placeholder", ph)
		}
	}

	f := &Fetcher{
		urlTemplate: urlTemplate,
		encoding:    encoding,
		sourceSize:  tile.SourceTileSize,
		httpGet:     defaultHTTPGet(),
		decode:      DecodeImage,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// URLTemplate returns the template the fetcher was built with.
func (f *Fetcher) URLTemplate() string {
	return f.urlTemplate
}

func defaultHTTPGet() HTTPGet {
	client := &http.Client{Timeout: 30 * time.Second}
	return func(ctx context.Context, url string) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "relief/1.0")

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
		}
		return io.ReadAll(resp.Body)
	}
}

// DecodeImage sniffs the image format from magic bytes and decodes PNG,
// JPEG or WebP into tightly packed RGBA pixels.
func DecodeImage(data []byte) ([]byte, int, int, error) {
	var (
		img image.Image
		err error
	)
	switch {
	case len(data) >= 4 && bytes.Equal(data[:4], []byte{0x89, 0x50, 0x4E, 0x47}):
		img, err = png.Decode(bytes.NewReader(data))
	case len(data) >= 2 && bytes.Equal(data[:2], []byte{0xFF, 0xD8}):
		img, err = jpeg.Decode(bytes.NewReader(data))
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		img, err = webp.Decode(bytes.NewReader(data))
	default:
		return nil, 0, 0, fmt.Errorf("%w: unrecognized image format", ErrDecode)
	}
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pix := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := (y*w + x) * 4
			pix[i] = byte(r >> 8)
			pix[i+1] = byte(g >> 8)
			pix[i+2] = byte(b >> 8)
			pix[i+3] = byte(a >> 8)
		}
	}
	return pix, w, h, nil
}

func (f *Fetcher) buildURL(c tile.Coord) string {
	url := f.urlTemplate
	url = strings.ReplaceAll(url, "{z}", strconv.Itoa(c.Z))
	url = strings.ReplaceAll(url, "{x}", strconv.Itoa(c.X))
	url = strings.ReplaceAll(url, "{y}", strconv.Itoa(c.Y))
	return url
}

// fetchTile downloads and decodes one source tile into RGBA pixels.
func (f *Fetcher) fetchTile(ctx context.Context, c tile.Coord) ([]byte, int, int, error) {
	url := f.buildURL(c)
	data, err := f.httpGet(ctx, url)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("fetch %s: %w", url, err)
	}
	pix, w, h, err := f.decode(data)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode %s: %w", url, err)
	}
	if w == 0 || h == 0 {
		return nil, 0, 0, fmt.Errorf("decode %s: %w: zero pixels", url, ErrDecode)
	}
	return pix, w, h, nil
}

// FetchGrid returns a (TileSize+2b) x (TileSize+2b) elevation grid for the
// tile at c. With b > 0 the eight neighbor tiles contribute the halo;
// neighbors outside the world or failing to fetch are zero-filled. A failed
// center tile is fatal.
func (f *Fetcher) FetchGrid(ctx context.Context, c tile.Coord, bufferPx int) (*BufferedGrid, error) {
	if bufferPx < 0 {
		return nil, fmt.Errorf("negative buffer %d", bufferPx)
	}
	if bufferPx == 0 {
		return f.fetchSingle(ctx, c)
	}
	return f.fetchStitched(ctx, c, bufferPx)
}

func (f *Fetcher) fetchSingle(ctx context.Context, c tile.Coord) (*BufferedGrid, error) {
	pix, w, h, err := f.fetchTile(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	grid, _ := NewGrid(tile.TileSize, tile.TileSize)
	scale := float64(w) / float64(tile.TileSize)
	for oy := 0; oy < tile.TileSize; oy++ {
		srcY := int((float64(oy) + 0.5) * scale)
		if srcY >= h {
			srcY = h - 1
		}
		for ox := 0; ox < tile.TileSize; ox++ {
			srcX := int((float64(ox) + 0.5) * scale)
			if srcX >= w {
				srcX = w - 1
			}
			i := (srcY*w + srcX) * 4
			grid.Data[oy*tile.TileSize+ox] = f.encoding.DecodePixel(pix[i], pix[i+1], pix[i+2])
		}
	}
	return &BufferedGrid{Grid: grid, BufferPx: 0}, nil
}

// The eight neighbors are fetched in two batches, cardinals before
// corners, to bound in-flight connections.
var cardinalOffsets = [][2]int{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}
var cornerOffsets = [][2]int{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

func (f *Fetcher) fetchStitched(ctx context.Context, c tile.Coord, bufferPx int) (*BufferedGrid, error) {
	s := f.sourceSize
	canvas := make([]byte, 3*s*3*s*4)

	// Center first: its failure is fatal.
	pix, w, h, err := f.fetchTile(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if w != s || h != s {
		return nil, fmt.Errorf("%w: source tile is %dx%d, want %dx%d", ErrUpstream, w, h, s, s)
	}
	blitTile(canvas, 3*s, pix, s, s, s)

	n := 1 << uint(c.Z)
	fetchBatch := func(offsets [][2]int) error {
		g, gctx := errgroup.WithContext(ctx)
		for _, off := range offsets {
			off := off
			nc := tile.Coord{Z: c.Z, X: c.X + off[0], Y: c.Y + off[1]}
			if nc.X < 0 || nc.X >= n || nc.Y < 0 || nc.Y >= n {
				continue
			}
			g.Go(func() error {
				npix, nw, nh, err := f.fetchTile(gctx, nc)
				if err != nil {
					// Missing neighbors leave their canvas region
					// zero-filled; only cancellation aborts the batch.
					if gctx.Err() != nil {
						return gctx.Err()
					}
					log.Warn().Err(err).Stringer("tile", nc).Msg("neighbor tile unavailable")
					return nil
				}
				if nw != s || nh != s {
					log.Warn().Stringer("tile", nc).Int("w", nw).Int("h", nh).Msg("neighbor tile has wrong size")
					return nil
				}
				blitTile(canvas, 3*s, npix, s, (off[0]+1)*s, (off[1]+1)*s)
				return nil
			})
		}
		return g.Wait()
	}

	if err := fetchBatch(cardinalOffsets); err != nil {
		return nil, err
	}
	if err := fetchBatch(cornerOffsets); err != nil {
		return nil, err
	}

	// Sample the canvas into the buffered elevation grid. RGBA buffers are
	// only referenced through the canvas from here on.
	size := tile.TileSize + 2*bufferPx
	grid, err := NewGrid(size, size)
	if err != nil {
		return nil, err
	}
	scale := float64(s) / float64(tile.TileSize)
	for oy := 0; oy < size; oy++ {
		tileY := float64(oy - bufferPx)
		srcY := s + int(math.Floor((tileY+0.5)*scale))
		if srcY < 0 {
			srcY = 0
		} else if srcY >= 3*s {
			srcY = 3*s - 1
		}
		for ox := 0; ox < size; ox++ {
			tileX := float64(ox - bufferPx)
			srcX := s + int(math.Floor((tileX+0.5)*scale))
			if srcX < 0 {
				srcX = 0
			} else if srcX >= 3*s {
				srcX = 3*s - 1
			}
			i := (srcY*3*s + srcX) * 4
			grid.Data[oy*size+ox] = f.encoding.DecodePixel(canvas[i], canvas[i+1], canvas[i+2])
		}
	}
	return &BufferedGrid{Grid: grid, BufferPx: bufferPx}, nil
}

// blitTile copies a w x w RGBA tile into the canvas at (dx, dy).
func blitTile(canvas []byte, canvasW int, pix []byte, w, dx, dy int) {
	for y := 0; y < w; y++ {
		src := pix[y*w*4 : (y+1)*w*4]
		dstOff := ((dy+y)*canvasW + dx) * 4
		copy(canvas[dstOff:dstOff+w*4], src)
	}
}
