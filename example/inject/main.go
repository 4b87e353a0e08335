package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/phsym/console-slog"

	"github.com/streetvision/vmeta"
	"github.com/streetvision/vmeta/pkg/config"
)

// inject reads telemetry from one video and rewrites another with that
// telemetry as a CAMM track, keeping only the video tracks of the target.
func main() {
	conf := flag.String("c", "", "config file")
	from := flag.String("from", "", "video to take telemetry from (defaults to the input)")
	flag.Parse()

	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{Level: slog.LevelInfo})))

	if flag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: inject [-c config.yaml] [-from source.mp4] input.mp4 output.mp4")
		os.Exit(2)
	}

	cfg, err := config.Load(*conf)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	engine := vmeta.New(cfg)

	input, err := os.Open(flag.Arg(0))
	if err != nil {
		slog.Error("failed to open input", "error", err)
		os.Exit(1)
	}
	defer input.Close()

	source := input
	if *from != "" {
		source, err = os.Open(*from)
		if err != nil {
			slog.Error("failed to open telemetry source", "error", err)
			os.Exit(1)
		}
		defer source.Close()
	}

	meta, err := engine.ExtractVideoMetadata(source)
	if err != nil {
		slog.Error("failed to extract telemetry", "error", err)
		os.Exit(1)
	}
	if meta == nil {
		slog.Error("no telemetry found")
		os.Exit(1)
	}

	stream, err := engine.InjectCAMM(input, meta.CAMMInfo())
	if err != nil {
		slog.Error("failed to build output", "error", err)
		os.Exit(1)
	}

	out, err := os.Create(flag.Arg(1))
	if err != nil {
		slog.Error("failed to create output", "error", err)
		os.Exit(1)
	}
	defer out.Close()

	n, err := io.Copy(out, stream)
	if err != nil {
		slog.Error("failed to write output", "error", err)
		os.Exit(1)
	}
	slog.Info("wrote output", "bytes", n, "points", len(meta.Points))
}
