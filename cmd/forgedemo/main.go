// Command forgedemo drives a forge Core through a run of frames.
//
// Headless mode produces -frames frames and writes the last presented one
// to -out as PNG:
//
//	forgedemo -driver software -frames 120 -out frame.png
//
// With -window the frames are shown in an ebiten window until it closes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/gogpu/forge"
	_ "github.com/gogpu/forge/driver/software"
	_ "github.com/gogpu/forge/driver/webgpu"
	_ "github.com/gogpu/wgpu/hal/allbackends"
)

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "config file (.toml, .yaml or .yml)")
	flag.StringVar(&o.driver, "driver", "", "driver name; overrides the config")
	flag.IntVar(&o.frames, "frames", 60, "frames to produce in headless mode")
	flag.StringVar(&o.out, "out", "", "PNG file for the last presented frame")
	flag.BoolVar(&o.window, "window", false, "show frames in a window")
	flag.StringVar(&o.themeFile, "theme-file", "", "file holding dark or light; watched for changes")
	flag.IntVar(&o.width, "width", 800, "surface width")
	flag.IntVar(&o.height, "height", 600, "surface height")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	forge.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, o, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "forgedemo: %v\n", err)
		os.Exit(1)
	}
}
