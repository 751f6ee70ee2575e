package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/woozymasta/trackmap/internal/config"
	"github.com/woozymasta/trackmap/internal/processor"

	"github.com/matryer/is"
)

func setup(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	dir := t.TempDir()
	write := func(name string, data []byte) {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatal(err)
		}
	}

	for i, name := range []string{"alpha", "beta"} {
		sum := processor.Summary{
			Name:       name,
			Title:      strings.ToUpper(name),
			Image:      name + ".png",
			Zoom:       15,
			Width:      512,
			Height:     768,
			TilesTotal: 6,
			CreatedAt:  time.Date(2024, 5, 1, i, 0, 0, 0, time.UTC),
		}
		data, err := json.Marshal(sum)
		if err != nil {
			t.Fatal(err)
		}
		write(name+".json", data)
		write(name+".png", []byte("\x89PNG fake"))
	}

	// summary without image and an unrelated json are skipped
	write("orphan.json", []byte(`{"name":"orphan","image":"orphan.png"}`))
	write("broken.json", []byte(`{`))

	cfg := config.Default()
	cfg.OutputDir = dir
	cfg.Attribution = "© OpenStreetMap contributors"

	srv := httptest.NewServer(RequestLogger(NewServerContext(cfg).Routes()))
	t.Cleanup(srv.Close)
	return srv, dir
}

func TestTracksList(t *testing.T) {
	is := is.New(t)
	srv, _ := setup(t)

	resp, err := http.Get(srv.URL + "/api/tracks")
	is.NoErr(err)
	defer func() { _ = resp.Body.Close() }()

	is.Equal(resp.StatusCode, http.StatusOK)
	var list []processor.Summary
	is.NoErr(json.NewDecoder(resp.Body).Decode(&list))
	is.Equal(len(list), 2)
	is.Equal(list[0].Name, "beta") // newest first
}

func TestIndex(t *testing.T) {
	is := is.New(t)
	srv, _ := setup(t)

	resp, err := http.Get(srv.URL + "/")
	is.NoErr(err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	is.NoErr(err)

	is.Equal(resp.StatusCode, http.StatusOK)
	page := string(body)
	is.True(strings.Contains(page, "ALPHA"))
	is.True(strings.Contains(page, "/images/beta.png"))
	is.True(strings.Contains(page, "OpenStreetMap"))
	is.True(!strings.Contains(page, "\n  <div"))

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/", nil)
	req.Header.Set("If-None-Match", resp.Header.Get("ETag"))
	resp, err = http.DefaultClient.Do(req)
	is.NoErr(err)
	_ = resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusNotModified)

	resp, err = http.Get(srv.URL + "/missing.html")
	is.NoErr(err)
	_ = resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusNotFound)
}

func TestImages(t *testing.T) {
	is := is.New(t)
	srv, _ := setup(t)

	resp, err := http.Get(srv.URL + "/images/alpha.png")
	is.NoErr(err)
	_ = resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(resp.Header.Get("Content-Type"), "image/png")
	is.True(resp.Header.Get("ETag") != "")

	for _, path := range []string{"/images/", "/images/../config.yaml", "/images/.hidden.png", "/images/alpha.txt", "/images/none.png"} {
		resp, err := http.Get(srv.URL + path)
		is.NoErr(err)
		_ = resp.Body.Close()
		is.Equal(resp.StatusCode, http.StatusNotFound)
	}
}
