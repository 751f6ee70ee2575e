// Package config handles configuration loading and shared option structures.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Formats accepted for the tile cache and for output images.
const (
	FormatPNG  = "png"
	FormatWebP = "webp"
)

// Config represents the root configuration file structure.
type Config struct {
	Tiles        Tiles  `yaml:"tiles" json:"tiles"`
	Track        Track  `yaml:"track" json:"track"`
	Background   string `yaml:"background,omitempty" json:"background"`
	InputDir     string `yaml:"input_dir,omitempty" json:"input_dir"`
	OutputDir    string `yaml:"output_dir,omitempty" json:"output_dir"`
	OutputFormat string `yaml:"output_format,omitempty" json:"output_format"`
	Attribution  string `yaml:"attribution,omitempty" json:"attribution,omitempty"`
	TileSize     int    `yaml:"tile_size,omitempty" json:"tile_size"`
	MaxZoom      int    `yaml:"max_zoom,omitempty" json:"max_zoom"`
	MaxTiles     int    `yaml:"max_tiles,omitempty" json:"max_tiles"`
	RemoveInput  bool   `yaml:"remove_input,omitempty" json:"remove_input"`
	Prefetch     bool   `yaml:"prefetch,omitempty" json:"prefetch"`
}

// Tiles configures the tile source and its caches.
type Tiles struct {
	URL         string        `yaml:"url,omitempty" json:"url"`
	CacheDir    string        `yaml:"cache_dir,omitempty" json:"cache_dir"`
	Format      string        `yaml:"format,omitempty" json:"format"`
	UserAgent   string        `yaml:"user_agent,omitempty" json:"user_agent"`
	Concurrency int           `yaml:"concurrency,omitempty" json:"concurrency"`
	MemoryCache int           `yaml:"memory_cache,omitempty" json:"memory_cache"`
	Timeout     time.Duration `yaml:"timeout,omitempty" json:"timeout"`
}

// Track configures how the path is stroked.
type Track struct {
	Color string  `yaml:"color,omitempty" json:"color"`
	Width float64 `yaml:"width,omitempty" json:"width"`
	Cycle bool    `yaml:"cycle,omitempty" json:"cycle"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads and parses the YAML configuration file from the specified path.
// Defaults are applied to every unset key.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadOrDefault behaves like Load but returns the defaults when the file does
// not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.TileSize <= 0 {
		c.TileSize = 256
	}
	if c.MaxZoom <= 0 {
		c.MaxZoom = 16
	}
	if c.MaxTiles <= 0 {
		c.MaxTiles = 1
	}
	if c.Background == "" {
		c.Background = "#000000"
	}
	if c.InputDir == "" {
		c.InputDir = "gpx"
	}
	if c.OutputDir == "" {
		c.OutputDir = "img"
	}
	if c.OutputFormat == "" {
		c.OutputFormat = FormatPNG
	}

	if c.Track.Color == "" {
		c.Track.Color = "#000000"
	}
	if c.Track.Width <= 0 {
		c.Track.Width = 3
	}

	t := &c.Tiles
	if t.URL == "" {
		t.URL = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"
	}
	if t.CacheDir == "" {
		t.CacheDir = "cache"
	}
	if t.Format == "" {
		t.Format = FormatPNG
	}
	if t.UserAgent == "" {
		t.UserAgent = "trackmap/1.0"
	}
	if t.Concurrency <= 0 {
		t.Concurrency = 4
	}
	if t.MemoryCache <= 0 {
		t.MemoryCache = 256
	}
	if t.Timeout <= 0 {
		t.Timeout = 15 * time.Second
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if c.MaxZoom > 22 {
		return fmt.Errorf("max_zoom %d is above 22", c.MaxZoom)
	}
	if c.TileSize > 4096 {
		return fmt.Errorf("tile_size %d is too large", c.TileSize)
	}
	if _, err := ParseColor(c.Background); err != nil {
		return fmt.Errorf("background: %w", err)
	}
	if _, err := ParseColor(c.Track.Color); err != nil {
		return fmt.Errorf("track.color: %w", err)
	}
	if err := checkFormat(c.OutputFormat); err != nil {
		return fmt.Errorf("output_format: %w", err)
	}
	if err := checkFormat(c.Tiles.Format); err != nil {
		return fmt.Errorf("tiles.format: %w", err)
	}

	u := c.Tiles.URL
	if !strings.Contains(u, "{z}") || !strings.Contains(u, "{x}") ||
		!(strings.Contains(u, "{y}") || strings.Contains(u, "{tms_y}")) {
		return fmt.Errorf("tiles.url %q must contain {z}, {x} and {y} or {tms_y}", u)
	}

	return nil
}

// BackgroundColor returns the parsed canvas fill.
func (c *Config) BackgroundColor() color.Color {
	col, _ := ParseColor(c.Background)
	return col
}

// TrackColor returns the parsed stroke colour.
func (c *Config) TrackColor() color.Color {
	col, _ := ParseColor(c.Track.Color)
	return col
}

// ParseColor reads "#rrggbb" or "#rrggbbaa".
func ParseColor(s string) (color.NRGBA, error) {
	var r, g, b uint8
	a := uint8(255)

	var err error
	switch len(s) {
	case 7:
		_, err = fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b)
	case 9:
		_, err = fmt.Sscanf(s, "#%02x%02x%02x%02x", &r, &g, &b, &a)
	default:
		err = errors.New("unexpected length")
	}
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}

	return color.NRGBA{R: r, G: g, B: b, A: a}, nil
}

func checkFormat(f string) error {
	switch f {
	case FormatPNG, FormatWebP:
		return nil
	}
	return fmt.Errorf("unsupported format %q", f)
}
