package server

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/woozymasta/trackmap/internal/config"
	"github.com/woozymasta/trackmap/internal/processor"

	"github.com/rs/zerolog/log"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
)

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config   *config.Config
	minifier *minify.M
	index    *template.Template

	mu        sync.RWMutex
	summaries []*processor.Summary
}

// NewServerContext initializes the context and scans the output directory.
func NewServerContext(cfg *config.Config) *ServerContext {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)

	s := &ServerContext{
		Config:   cfg,
		minifier: m,
		index:    template.Must(template.New("index").Funcs(templateFuncs).Parse(indexTemplate)),
	}

	if err := s.Refresh(); err != nil {
		log.Warn().Err(err).Str("dir", cfg.OutputDir).Msg("Failed to scan output directory")
	}

	return s
}

// Refresh reloads the summaries of every rendered track. Summaries whose
// image is missing are skipped.
func (s *ServerContext) Refresh() error {
	matches, err := filepath.Glob(filepath.Join(s.Config.OutputDir, "*.json"))
	if err != nil {
		return err
	}

	list := make([]*processor.Summary, 0, len(matches))
	for _, path := range matches {
		sum, err := processor.ReadSummary(path)
		if err != nil {
			log.Trace().Err(err).Str("path", path).Msg("Not a track summary")
			continue
		}

		if _, err := os.Stat(filepath.Join(s.Config.OutputDir, sum.Image)); err != nil {
			log.Trace().Str("track", sum.Name).Msg("Track skipped: image not found")
			continue
		}
		list = append(list, sum)
	}

	// newest first, then by name
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].Name < list[j].Name
	})

	s.mu.Lock()
	s.summaries = list
	s.mu.Unlock()

	log.Debug().Int("tracks", len(list)).Msg("Output directory scanned")
	return nil
}

// Summaries returns the current track list.
func (s *ServerContext) Summaries() []*processor.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summaries
}

// renderIndex renders and minifies the gallery page.
func (s *ServerContext) renderIndex() ([]byte, error) {
	var buf bytes.Buffer
	err := s.index.Execute(&buf, struct {
		Attribution string
		Tracks      []*processor.Summary
	}{
		Attribution: s.Config.Attribution,
		Tracks:      s.Summaries(),
	})
	if err != nil {
		return nil, fmt.Errorf("render index: %w", err)
	}

	out, err := s.minifier.Bytes("text/html", buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("minify index: %w", err)
	}
	return out, nil
}

var templateFuncs = template.FuncMap{
	"km": func(v float64) string { return fmt.Sprintf("%.2f km", v) },
	"title": func(s *processor.Summary) string {
		if strings.TrimSpace(s.Title) != "" {
			return s.Title
		}
		return s.Name
	},
}

const indexTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Tracks</title>
  <style>
    body { font-family: sans-serif; margin: 2em; background: #f4f4f4; }
    .track { display: inline-block; margin: 1em; padding: 1em; background: #fff; vertical-align: top; }
    .track img { max-width: 480px; display: block; }
    .meta { color: #555; font-size: 0.9em; }
  </style>
</head>
<body>
  <h1>Tracks</h1>
  {{- range .Tracks }}
  <div class="track">
    <h2>{{ title . }}</h2>
    <a href="/images/{{ .Image }}"><img src="/images/{{ .Image }}" alt="{{ .Name }}"></a>
    <p class="meta">
      {{ km .Stats.LengthKm }} &middot; zoom {{ .Zoom }} &middot; {{ .Width }}x{{ .Height }}px
      {{- if .TilesFailed }} &middot; {{ .TilesFailed }} of {{ .TilesTotal }} tiles missing{{ end }}
      &middot; <a href="/images/{{ .Name }}.geojson">geojson</a>
    </p>
  </div>
  {{- else }}
  <p>No tracks rendered yet.</p>
  {{- end }}
  {{- if .Attribution }}<footer>{{ .Attribution }}</footer>{{ end }}
</body>
</html>
`
