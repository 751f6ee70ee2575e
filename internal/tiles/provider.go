// Package tiles downloads map tiles and keeps them in memory and disk caches.
package tiles

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/woozymasta/trackmap/internal/config"
	"github.com/woozymasta/trackmap/internal/geo"

	"github.com/chai2010/webp"
	"github.com/karlseguin/ccache/v3"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound is returned when the server has no data for a tile.
var ErrNotFound = errors.New("tile not found")

// Options configures a Provider.
type Options struct {
	URLTemplate string
	CacheDir    string
	Format      string
	UserAgent   string
	MemoryCache int
	Concurrency int
	// Offline disables downloads; only cached tiles are served.
	Offline bool
}

// OptionsFromConfig maps the tiles section of the configuration.
func OptionsFromConfig(t config.Tiles) Options {
	return Options{
		URLTemplate: t.URL,
		CacheDir:    t.CacheDir,
		Format:      t.Format,
		UserAgent:   t.UserAgent,
		MemoryCache: t.MemoryCache,
		Concurrency: t.Concurrency,
	}
}

// Provider serves tile bytes by address. Lookups go memory, disk, network.
type Provider struct {
	client *http.Client
	memory *ccache.Cache[[]byte]
	group  singleflight.Group
	opts   Options

	subdomain atomic.Uint32
	downloads atomic.Int64
}

// NewHTTPClient returns a client tuned for many small tile requests.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			TLSNextProto:        make(map[string]func(string, *tls.Conn) http.RoundTripper),
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
		Timeout: timeout,
	}
}

// NewProvider creates a provider. A nil client uses NewHTTPClient with a 15s
// timeout.
func NewProvider(opts Options, client *http.Client) *Provider {
	if client == nil {
		client = NewHTTPClient(15 * time.Second)
	}
	if opts.Format == "" {
		opts.Format = config.FormatPNG
	}
	if opts.MemoryCache <= 0 {
		opts.MemoryCache = 256
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	return &Provider{
		client: client,
		memory: ccache.New(ccache.Configure[[]byte]().MaxSize(int64(opts.MemoryCache))),
		opts:   opts,
	}
}

// Close stops the memory cache janitor.
func (p *Provider) Close() {
	p.memory.Stop()
}

// Downloads is the number of tiles fetched over the network so far.
func (p *Provider) Downloads() int64 {
	return p.downloads.Load()
}

// Path returns the cache file of a tile: {cache}/{z}/{x}/{y}.{format}.
func (p *Provider) Path(addr geo.TileAddress) string {
	return filepath.Join(
		p.opts.CacheDir,
		strconv.Itoa(addr.Zoom),
		strconv.Itoa(addr.X),
		strconv.Itoa(addr.Y)+"."+p.opts.Format,
	)
}

// Fetch returns the encoded tile image.
func (p *Provider) Fetch(ctx context.Context, addr geo.TileAddress) ([]byte, error) {
	if !addr.Valid() {
		return nil, fmt.Errorf("invalid tile address %d/%d/%d", addr.Zoom, addr.X, addr.Y)
	}

	key := cacheKey(addr)
	if item := p.memory.Get(key); item != nil && !item.Expired() {
		return item.Value(), nil
	}

	path := p.Path(addr)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		data, err := os.ReadFile(path)
		if err == nil {
			p.memory.Set(key, data, time.Hour)
			return data, nil
		}
		log.Debug().Err(err).Str("path", path).Msg("Failed to read cached tile")
	}

	if p.opts.Offline {
		return nil, fmt.Errorf("%w: %s not cached", ErrNotFound, key)
	}

	v, err, _ := p.group.Do(key, func() (any, error) {
		return p.download(ctx, addr, path)
	})
	if err != nil {
		return nil, err
	}

	data := v.([]byte)
	p.memory.Set(key, data, time.Hour)
	return data, nil
}

// Prefetch warms the cache for every tile of rect and returns how many
// tiles could not be fetched.
func (p *Provider) Prefetch(ctx context.Context, rect geo.TileRectangle) int {
	addrs := rect.Addresses()
	jobs := make(chan geo.TileAddress, len(addrs))
	for _, a := range addrs {
		jobs <- a
	}
	close(jobs)

	log.Info().
		Int("zoom", rect.Zoom).
		Int("x1", rect.X1).
		Int("y1", rect.Y1).
		Int("x2", rect.X2).
		Int("y2", rect.Y2).
		Msg("Caching tiles")

	var failed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < min(p.opts.Concurrency, len(addrs)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range jobs {
				if ctx.Err() != nil {
					failed.Add(1)
					continue
				}
				if _, err := p.Fetch(ctx, a); err != nil {
					log.Debug().Err(err).Str("tile", cacheKey(a)).Msg("Prefetch failed")
					failed.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	return int(failed.Load())
}

func (p *Provider) download(ctx context.Context, addr geo.TileAddress, path string) ([]byte, error) {
	url := p.BuildURL(addr)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.opts.UserAgent)
	req.Header.Set("Accept", "image/*")

	log.Debug().Str("url", url).Msg("Downloading tile")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status code %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}

	// Filter out empty/1px tiles often returned by map servers for OOB areas
	if img.Bounds().Dx() <= 1 {
		return nil, fmt.Errorf("%w: empty tile %s", ErrNotFound, url)
	}

	data := body
	if p.opts.Format == config.FormatWebP {
		var buf bytes.Buffer
		if err := webp.Encode(&buf, img, &webp.Options{Lossless: false, Quality: 80}); err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
		data = buf.Bytes()
	}

	p.downloads.Add(1)

	if err := writeFile(path, data); err != nil {
		// the tile is still usable for this job
		log.Warn().Err(err).Str("path", path).Msg("Failed to cache tile")
	}

	return data, nil
}

// BuildURL substitutes {z}, {x}, {y}, {tms_y} and {s} in the URL template.
func (p *Provider) BuildURL(addr geo.TileAddress) string {
	s := buildURL(p.opts.URLTemplate, addr)
	if strings.Contains(s, "{s}") {
		sub := string(rune('a' + p.subdomain.Add(1)%3))
		s = strings.ReplaceAll(s, "{s}", sub)
	}
	return s
}

func buildURL(tpl string, c geo.TileAddress) string {
	s := strings.ReplaceAll(tpl, "{z}", strconv.Itoa(c.Zoom))
	s = strings.ReplaceAll(s, "{x}", strconv.Itoa(c.X))
	s = strings.ReplaceAll(s, "{y}", strconv.Itoa(c.Y))

	if strings.Contains(s, "{tms_y}") {
		maxCoord := (1 << c.Zoom) - 1
		tmsY := maxCoord - c.Y
		s = strings.ReplaceAll(s, "{tms_y}", strconv.Itoa(tmsY))
	}

	return s
}

func cacheKey(a geo.TileAddress) string {
	return fmt.Sprintf("%d/%d/%d", a.Zoom, a.X, a.Y)
}

// writeFile stores data through a temporary file so readers never see a
// partial tile.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tile-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
