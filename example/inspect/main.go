package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/phsym/console-slog"

	"github.com/streetvision/vmeta"
	"github.com/streetvision/vmeta/pkg/config"
	"github.com/streetvision/vmeta/pkg/isobmff"
)

func main() {
	conf := flag.String("c", "", "config file")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{Level: level})))

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: inspect [-c config.yaml] [-v] video.mp4")
		os.Exit(2)
	}

	cfg, err := config.Load(*conf)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		slog.Error("failed to open video", "error", err)
		os.Exit(1)
	}
	defer f.Close()

	if mvhdData, err := isobmff.ParseMP4DataFirst(f, isobmff.BoxPath(isobmff.TypeMOOV, isobmff.TypeMVHD)); err == nil && mvhdData != nil {
		var mvhd isobmff.MvhdBox
		if err := mvhd.Decode(mvhdData); err == nil && mvhd.CreationTime != 0 {
			fmt.Printf("recorded: %s\n", isobmff.DateFromMP4Time(mvhd.CreationTime).Format("2006-01-02 15:04:05"))
		}
	}

	meta, err := vmeta.New(cfg).ExtractVideoMetadata(f)
	if err != nil {
		slog.Error("failed to extract telemetry", "error", err)
		os.Exit(1)
	}
	if meta == nil {
		fmt.Println("no telemetry found")
		return
	}

	fmt.Printf("source: %s\n", meta.Source)
	if meta.Make != "" || meta.Model != "" {
		fmt.Printf("camera: %s %s\n", meta.Make, meta.Model)
	}
	fmt.Printf("points: %d  accl: %d  gyro: %d  magn: %d\n",
		len(meta.Points), len(meta.Accl), len(meta.Gyro), len(meta.Magn))
	for _, p := range meta.Points {
		fmt.Printf("%10.3fs  %11.7f %12.7f", p.Time, p.Lat, p.Lon)
		if p.Alt != nil {
			fmt.Printf("  %8.2fm", *p.Alt)
		}
		fmt.Println()
	}
}
