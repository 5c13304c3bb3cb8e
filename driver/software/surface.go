// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/forge"
	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"
)

// DefaultSlots is the number of drawables a Surface hands out at once,
// matching the default frame gate capacity.
const DefaultSlots = forge.DefaultFrameGateCapacity

// SurfaceOption configures a Surface.
type SurfaceOption func(*Surface)

// WithSlots sets the number of drawable slots. Values below 1 are ignored.
func WithSlots(n int) SurfaceOption {
	return func(s *Surface) {
		if n >= 1 {
			s.slots = n
		}
	}
}

// WithScaler sets the interpolator used when a drawable is presented at a
// size different from the surface size. The default is
// draw.ApproxBiLinear.
func WithScaler(sc draw.Scaler) SurfaceOption {
	return func(s *Surface) {
		if sc != nil {
			s.scaler = sc
		}
	}
}

// Surface is an offscreen presentation target. The presented image is kept
// as the front buffer. Pixel memory is always RGBA8.
//
// Surface is safe for concurrent use: presentation happens on the device
// timeline while the host reads the front buffer.
type Surface struct {
	mu        sync.Mutex
	size      forge.Size
	slots     int
	inUse     int
	available bool
	binding   forge.ViewBinding
	front     *image.RGBA
	presented uint64
	scaler    draw.Scaler
}

var (
	_ forge.Surface  = (*Surface)(nil)
	_ forge.Drawable = (*Drawable)(nil)
)

// NewSurface creates a Surface of the given size in device pixels.
func NewSurface(width, height int, opts ...SurfaceOption) *Surface {
	s := &Surface{
		size:      forge.Size{Width: width, Height: height},
		slots:     DefaultSlots,
		available: true,
		scaler:    draw.ApproxBiLinear,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DrawableSize returns the current size.
func (s *Surface) DrawableSize() forge.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// PreferredFormat returns RGBA8Unorm.
func (s *Surface) PreferredFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatRGBA8Unorm
}

// Configure records b and adopts its drawable size.
func (s *Surface) Configure(dev forge.Device, b forge.ViewBinding) error {
	if _, ok := dev.(*Device); !ok {
		return fmt.Errorf("software: configure with foreign device %T", dev)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.binding = b
	if !b.DrawableSize.IsZero() {
		s.size = b.DrawableSize
	}
	return nil
}

// Binding returns the binding of the last Configure.
func (s *Surface) Binding() forge.ViewBinding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.binding
}

// NextDrawable hands out a cleared drawable of the current size. It
// reports false when the surface is unavailable, has a zero size or every
// slot is in use.
func (s *Surface) NextDrawable() (forge.Drawable, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.available || s.size.IsZero() || s.inUse >= s.slots {
		return nil, false
	}
	s.inUse++
	return &Drawable{
		surface: s,
		img:     image.NewRGBA(image.Rect(0, 0, s.size.Width, s.size.Height)),
		format:  s.binding.ColorFormat,
	}, true
}

// SetSize changes the surface size, as a window resize would. The new size
// applies to drawables handed out afterwards.
func (s *Surface) SetSize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = forge.Size{Width: width, Height: height}
}

// SetAvailable controls whether NextDrawable hands out drawables.
func (s *Surface) SetAvailable(available bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = available
}

// InUse returns the number of drawables handed out and not yet presented or
// discarded.
func (s *Surface) InUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inUse
}

// Presented returns the number of drawables presented so far.
func (s *Surface) Presented() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presented
}

// Front returns the last presented image, or nil. The image must not be
// modified; it is replaced, not reused, by the next presentation.
func (s *Surface) Front() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.front
}

// Snapshot returns a copy of the front buffer, or nil.
func (s *Surface) Snapshot() *image.RGBA {
	front := s.Front()
	if front == nil {
		return nil
	}
	out := image.NewRGBA(front.Bounds())
	copy(out.Pix, front.Pix)
	return out
}

func (s *Surface) present(d *Drawable) {
	s.mu.Lock()
	size := s.size
	scaler := s.scaler
	s.mu.Unlock()

	img := d.img
	if b := img.Bounds(); !size.IsZero() && (b.Dx() != size.Width || b.Dy() != size.Height) {
		dst := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
		scaler.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		img = dst
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inUse--
	s.front = img
	s.presented++
}

func (s *Surface) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inUse--
}

// Drawable is one image handed out by a Surface.
type Drawable struct {
	surface *Surface
	img     *image.RGBA
	format  gputypes.TextureFormat
	done    sync.Once
}

// Size returns the image size.
func (d *Drawable) Size() forge.Size {
	b := d.img.Bounds()
	return forge.Size{Width: b.Dx(), Height: b.Dy()}
}

// Format returns the bound color format.
func (d *Drawable) Format() gputypes.TextureFormat { return d.format }

// Image returns the drawable's pixels.
func (d *Drawable) Image() draw.Image { return d.img }

// Discard returns the slot to the surface. It is a no-op after the
// drawable was presented or discarded.
func (d *Drawable) Discard() {
	d.done.Do(d.surface.release)
}

func (d *Drawable) present() {
	d.done.Do(func() { d.surface.present(d) })
}
