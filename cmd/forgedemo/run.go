package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"time"

	"github.com/gogpu/forge"
	"github.com/gogpu/forge/driver/software"
	"github.com/gogpu/forge/driver/webgpu"
	"github.com/gogpu/forge/host/ebitenhost"
	"github.com/gogpu/forge/internal/theme"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const statsInterval = time.Second

type options struct {
	configPath string
	driver     string
	frames     int
	out        string
	window     bool
	themeFile  string
	width      int
	height     int
}

// surface is what run needs from either driver's surface.
type surface interface {
	forge.Surface
	Presented() uint64
}

func run(ctx context.Context, o options, stdout io.Writer) error {
	cfg := forge.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = forge.LoadConfig(o.configPath); err != nil {
			return err
		}
	}
	if o.driver != "" {
		cfg.Driver = o.driver
	}
	if o.window {
		// The window host blits the software front buffer.
		cfg.Driver = forge.DriverSoftware
	}

	core, s, err := open(&sweepRenderer{}, cfg, o.width, o.height)
	if err != nil {
		return err
	}
	defer core.Close(context.Background())

	if o.themeFile != "" {
		w, err := theme.Watch(o.themeFile, core.NotifyAppearance)
		if err != nil {
			return err
		}
		defer w.Close()
	} else {
		core.NotifyAppearance(theme.Detect())
	}

	if o.window {
		sw := s.(*software.Surface)
		if err := ebitenhost.Run(ebitenhost.New(core, sw), "forgedemo", o.width, o.height); err != nil {
			return err
		}
		return report(stdout, core.Stats(), s.Presented())
	}

	if err := produce(ctx, core, o.frames); err != nil {
		return err
	}
	if err := core.Drain(ctx); err != nil {
		return fmt.Errorf("drain: %w", err)
	}
	if o.out != "" {
		if err := writeFrame(s, o.out); err != nil {
			return err
		}
	}
	return report(stdout, core.Stats(), s.Presented())
}

// open creates a Core and binds it to a surface of the configured driver.
// Without a configured driver, a default driver that finds no device falls
// back to the software driver.
func open(r forge.Renderer, cfg forge.Config, width, height int) (*forge.Core, surface, error) {
	named := cfg.Driver != ""
	if !named {
		if d := forge.DefaultDriver(); d != nil {
			cfg.Driver = d.Name()
		}
	}
	core, s, err := bindNew(r, cfg, width, height)
	if err == nil || named || cfg.Driver == forge.DriverSoftware || !errors.Is(err, forge.ErrUnavailableDevice) {
		return core, s, err
	}
	forge.Logger().Warn("forgedemo: falling back to software driver", "driver", cfg.Driver, "err", err)
	cfg.Driver = forge.DriverSoftware
	return bindNew(r, cfg, width, height)
}

func bindNew(r forge.Renderer, cfg forge.Config, width, height int) (*forge.Core, surface, error) {
	core, err := forge.New(r, forge.WithConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	s := newSurface(cfg.Driver, width, height)
	if err := core.Bind(s, forge.BindHints{}); err != nil {
		_ = core.Close(context.Background())
		return nil, nil, err
	}
	return core, s, nil
}

func newSurface(driver string, width, height int) surface {
	if driver == forge.DriverWebGPU {
		return webgpu.NewSurface(width, height)
	}
	return software.NewSurface(width, height)
}

// produce runs frames on one goroutine while another logs progress until
// the frames are done.
func produce(ctx context.Context, core *forge.Core, frames int) error {
	g, ctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		for i := range frames {
			if err := core.ProduceFrameContext(ctx); err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
		}
		return nil
	})
	g.Go(func() error {
		t := time.NewTicker(statsInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return nil
			case <-t.C:
				st := core.Stats()
				forge.Logger().Info("forgedemo: progress",
					"submitted", st.Submitted, "skipped", st.Skipped, "inflight", st.InFlight)
			}
		}
	})
	return g.Wait()
}

func writeFrame(s surface, path string) error {
	var img image.Image
	switch s := s.(type) {
	case *software.Surface:
		if snap := s.Snapshot(); snap != nil {
			img = snap
		}
	case *webgpu.Surface:
		front, err := s.ReadFront(5 * time.Second)
		if err != nil {
			return err
		}
		img = front
	}
	if img == nil {
		return errors.New("no frame was presented")
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

func report(w io.Writer, st forge.Stats, presented uint64) error {
	p := message.NewPrinter(language.English)
	_, err := p.Fprintf(w, "%d frames begun, %d submitted, %d skipped, %d failed, %d presented\n",
		st.Begun, st.Submitted, st.Skipped, st.Failed, presented)
	return err
}
