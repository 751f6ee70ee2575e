package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/woozymasta/trackmap/internal/config"
	"github.com/woozymasta/trackmap/internal/logger"
	"github.com/woozymasta/trackmap/internal/processor"
	"github.com/woozymasta/trackmap/internal/tiles"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	Args struct {
		Files []string `positional-arg-name:"FILE" description:"GPX files to convert. Defaults to every *.gpx in the input directory"`
	} `positional-args:"yes"`

	ConfigFile  string `short:"c" long:"config"      env:"CONFIG_FILE" description:"Path to configuration file" default:"config.yaml"`
	InputDir    string `short:"i" long:"input"       env:"INPUT_DIR"   description:"Directory with GPX files"`
	OutputDir   string `short:"o" long:"output"      env:"OUTPUT_DIR"  description:"Directory for rendered images"`
	Format      string `short:"f" long:"format"      env:"OUTPUT_FORMAT" description:"Output image format" choice:"png" choice:"webp"`
	MaxTiles    int    `short:"t" long:"max-tiles"   env:"MAX_TILES"   description:"Tile span budget for the zoom search"`
	MaxZoom     int    `short:"z" long:"max-zoom"    env:"MAX_ZOOM"    description:"Upper bound of the zoom search"`
	Concurrency int    `short:"p" long:"concurrency" env:"CONCURRENCY" description:"Parallel tile downloads"`
	Remove      bool   `short:"r" long:"remove"      description:"Remove input files after successful conversion"`
	Prefetch    bool   `long:"prefetch"              description:"Download the whole tile area before assembling"`
	Offline     bool   `long:"offline"               description:"Use cached tiles only"`
	Progress    bool   `long:"progress"              description:"Show a progress bar"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg, err := config.LoadOrDefault(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	applyOverrides(cfg, &opts)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	files := opts.Args.Files
	if len(files) == 0 {
		files, err = processor.FindInputs(cfg.InputDir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", cfg.InputDir).Msg("Failed to list input directory")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tileOpts := tiles.OptionsFromConfig(cfg.Tiles)
	tileOpts.Offline = opts.Offline
	provider := tiles.NewProvider(tileOpts, tiles.NewHTTPClient(cfg.Tiles.Timeout))
	defer provider.Close()

	log.Info().
		Int("files", len(files)).
		Int("max_tiles", cfg.MaxTiles).
		Int("max_zoom", cfg.MaxZoom).
		Str("output", cfg.OutputDir).
		Msg("Starting conversion")

	var done func(string, error)
	if opts.Progress && len(files) > 0 {
		bar := progressbar.Default(int64(len(files)), "Rendering")
		done = func(string, error) { _ = bar.Add(1) }
	}

	report := processor.New(cfg, provider).ProcessFiles(ctx, files, done)

	log.Info().
		Int("converted", len(report.Summaries)).
		Int("failed", len(report.Failed)).
		Int64("downloads", provider.Downloads()).
		Msg("Conversion finished")

	if len(report.Failed) > 0 {
		stop()
		os.Exit(1)
	}
}

func applyOverrides(cfg *config.Config, opts *Options) {
	if opts.InputDir != "" {
		cfg.InputDir = opts.InputDir
	}
	if opts.OutputDir != "" {
		cfg.OutputDir = opts.OutputDir
	}
	if opts.Format != "" {
		cfg.OutputFormat = opts.Format
	}
	if opts.MaxTiles > 0 {
		cfg.MaxTiles = opts.MaxTiles
	}
	if opts.MaxZoom > 0 {
		cfg.MaxZoom = opts.MaxZoom
	}
	if opts.Concurrency > 0 {
		cfg.Tiles.Concurrency = opts.Concurrency
	}
	if opts.Remove {
		cfg.RemoveInput = true
	}
	if opts.Prefetch {
		cfg.Prefetch = true
	}
}
