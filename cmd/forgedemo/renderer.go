package main

import (
	"image"
	"image/color"
	"sync/atomic"

	"github.com/gogpu/forge"
	"github.com/gogpu/forge/driver/software"
	"github.com/gogpu/forge/driver/webgpu"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"
)

var (
	darkBackground  = color.RGBA{R: 0x1e, G: 0x1e, B: 0x2e, A: 0xff}
	lightBackground = color.RGBA{R: 0xef, G: 0xf1, B: 0xf5, A: 0xff}
	barColor        = color.RGBA{R: 0x89, G: 0xb4, B: 0xfa, A: 0xff}
)

// sweepRenderer paints the theme background with a vertical bar that
// moves one step per frame. Clicks and key presses reverse the sweep.
type sweepRenderer struct {
	forge.BaseRenderer

	appearance atomic.Int32
	reversed   atomic.Bool
	step       int
}

func (r *sweepRenderer) UpdateAppearance(a forge.Appearance) {
	r.appearance.Store(int32(a))
}

func (r *sweepRenderer) PointerPressed(gpucontext.PointerEvent) { r.reverse() }
func (r *sweepRenderer) TouchBegan(gpucontext.PointerEvent)     { r.reverse() }

func (r *sweepRenderer) KeyPressed(key gpucontext.Key, _ gpucontext.Modifiers) {
	if key == gpucontext.KeySpace {
		r.reverse()
	}
}

func (r *sweepRenderer) reverse() {
	r.reversed.Store(!r.reversed.Load())
}

func (r *sweepRenderer) Update() {
	if r.reversed.Load() {
		r.step--
	} else {
		r.step++
	}
}

func (r *sweepRenderer) background() color.RGBA {
	if forge.Appearance(r.appearance.Load()) == forge.AppearanceDark {
		return darkBackground
	}
	return lightBackground
}

func (r *sweepRenderer) Draw(f *forge.Frame) {
	d := f.Drawable()
	if d == nil {
		return
	}
	bg := r.background()
	size := d.Size()
	switch cb := f.CommandBuffer().(type) {
	case *software.CommandBuffer:
		bar := barRect(size, r.step)
		cb.Encode(func(dst draw.Image) {
			draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
			draw.Draw(dst, bar, image.NewUniform(barColor), image.Point{}, draw.Src)
		})
	case *webgpu.CommandBuffer:
		cb.Clear(d, toGPUColor(bg))
	}
}

// barRect returns the bar for step, wrapping around the width.
func barRect(size forge.Size, step int) image.Rectangle {
	w := max(size.Width/16, 1)
	span := max(size.Width, 1)
	x := ((step*4)%span + span) % span
	return image.Rect(x, 0, x+w, size.Height)
}

func toGPUColor(c color.RGBA) gputypes.Color {
	return gputypes.Color{
		R: float64(c.R) / 0xff,
		G: float64(c.G) / 0xff,
		B: float64(c.B) / 0xff,
		A: float64(c.A) / 0xff,
	}
}
