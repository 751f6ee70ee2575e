package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/woozymasta/trackmap/internal/track"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Input  string `short:"i" long:"in"     description:"Input GPX file path. Reads from stdin if empty"`
	Output string `short:"o" long:"out"    description:"Output file path. Writes to stdout if empty"`
	Format string `short:"f" long:"format" description:"Output format" choice:"json" choice:"yaml" default:"json"`
	Stats  bool   `short:"s" long:"stats"  description:"Print trip statistics to stderr"`
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

	// Read Input
	var in io.Reader = os.Stdin
	if opts.Input != "" {
		f, err := os.Open(opts.Input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading input file: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	tr, err := track.Parse(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing GPX: %v\n", err)
		os.Exit(1)
	}

	if opts.Stats {
		printStats(tr.Stats())
	}

	fc := tr.ToGeoJSON()

	// marshal
	outputData, err := json.MarshalIndent(fc, "", "  ")
	if err == nil && opts.Format == "yaml" {
		outputData, err = toYAML(outputData)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling data: %v\n", err)
		os.Exit(1)
	}

	if opts.Output != "" {
		err = os.WriteFile(opts.Output, outputData, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Successfully converted %d points to %s (format: %s)\n", tr.PointCount(), opts.Output, opts.Format)
	} else {
		fmt.Println(string(outputData))
	}
}

// toYAML re-encodes the GeoJSON document through a generic tree, since orb
// only implements JSON marshaling.
func toYAML(data []byte) ([]byte, error) {
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(tree); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func printStats(st track.Stats) {
	fmt.Fprintf(os.Stderr, "  Started       : %s\n", st.Start)
	fmt.Fprintf(os.Stderr, "  Ended         : %s\n", st.End)
	fmt.Fprintf(os.Stderr, "  Length        : %2.2fkm\n", st.LengthKm)
	fmt.Fprintf(os.Stderr, "  Moving time   : %s\n", track.FormatDuration(st.MovingTime))
	fmt.Fprintf(os.Stderr, "  Stopped time  : %s\n", track.FormatDuration(st.StoppedTime))
	fmt.Fprintf(os.Stderr, "  Total uphill  : %4.0fm\n", st.Uphill)
	fmt.Fprintf(os.Stderr, "  Total downhill: %4.0fm\n", st.Downhill)
	fmt.Fprintf(os.Stderr, "  Bounds        : [%1.4f,%1.4f,%1.4f,%1.4f]\n",
		st.Bounds.MinLat, st.Bounds.MaxLat, st.Bounds.MinLon, st.Bounds.MaxLon)
}
