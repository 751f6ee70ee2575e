package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	is := is.New(t)

	cfg, err := Load(writeConfig(t, "max_tiles: 3\ntiles:\n  timeout: 5s\n"))
	is.NoErr(err)

	is.Equal(cfg.MaxTiles, 3)
	is.Equal(cfg.TileSize, 256)
	is.Equal(cfg.MaxZoom, 16)
	is.Equal(cfg.Tiles.Timeout, 5*time.Second)
	is.Equal(cfg.Tiles.Concurrency, 4)
	is.Equal(cfg.Tiles.Format, FormatPNG)
	is.Equal(cfg.Track.Width, 3.0)
	is.Equal(cfg.BackgroundColor(), color.Color(color.NRGBA{A: 255}))
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	is := is.New(t)

	cases := []string{
		"background: red\n",
		"track:\n  color: '#12'\n",
		"max_zoom: 25\n",
		"output_format: gif\n",
		"tiles:\n  url: https://example.com/{z}/{x}.png\n",
		"tiles: [\n",
	}

	for _, body := range cases {
		_, err := Load(writeConfig(t, body))
		is.True(err != nil)
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	is := is.New(t)

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	is.NoErr(err)
	is.Equal(cfg.InputDir, "gpx")
	is.Equal(cfg.OutputDir, "img")
}

func TestParseColor(t *testing.T) {
	is := is.New(t)

	c, err := ParseColor("#ff8000")
	is.NoErr(err)
	is.Equal(c, color.NRGBA{R: 255, G: 128, A: 255})

	c, err = ParseColor("#00000080")
	is.NoErr(err)
	is.Equal(c.A, uint8(128))

	_, err = ParseColor("ff8000")
	is.True(err != nil)
}
