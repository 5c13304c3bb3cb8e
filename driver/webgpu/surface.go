// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package webgpu

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"
	"unsafe"

	"github.com/gogpu/forge"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// DefaultSlots is the number of render targets in a Surface ring.
const DefaultSlots = forge.DefaultFrameGateCapacity

// copyPitchAlignment is the required BytesPerRow alignment of texture to
// buffer copies.
const copyPitchAlignment = 256

// ErrNoFrontBuffer is returned by ReadFront before the first presentation.
var ErrNoFrontBuffer = errors.New("webgpu: nothing presented yet")

// slot is one render target of the ring.
type slot struct {
	tex      hal.Texture
	view     hal.TextureView
	msaaTex  hal.Texture
	msaaView hal.TextureView
	size     forge.Size
	busy     bool
	retired  bool
}

// Surface is an offscreen ring of render-target textures. Textures are
// created on Configure for the bound formats and size; a reconfigure
// retires busy slots, which are destroyed once their frame completes.
//
// Lock order is Surface before Device.
type Surface struct {
	mu        sync.Mutex
	dev       *Device
	size      forge.Size
	nslots    int
	binding   forge.ViewBinding
	slots     []*slot
	retired   []*slot
	front     *slot
	depthTex  hal.Texture
	depthView hal.TextureView
	presented uint64
}

var (
	_ forge.Surface  = (*Surface)(nil)
	_ forge.Drawable = (*Drawable)(nil)
)

// NewSurface returns an unconfigured surface of the given size with
// DefaultSlots render targets.
func NewSurface(width, height int) *Surface {
	return NewSurfaceSlots(width, height, DefaultSlots)
}

// NewSurfaceSlots is like NewSurface with n render targets.
func NewSurfaceSlots(width, height, n int) *Surface {
	if n < 1 {
		n = 1
	}
	return &Surface{size: forge.Size{Width: width, Height: height}, nslots: n}
}

func (s *Surface) DrawableSize() forge.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// PreferredFormat returns BGRA8Unorm, the most widely renderable format.
func (s *Surface) PreferredFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatBGRA8Unorm
}

// SetSize changes the size used by the next Configure.
func (s *Surface) SetSize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = forge.Size{Width: width, Height: height}
}

// Configure (re)creates the render targets for b on dev.
func (s *Surface) Configure(dev forge.Device, b forge.ViewBinding) error {
	d, ok := dev.(*Device)
	if !ok {
		return fmt.Errorf("webgpu: configure with foreign device %T", dev)
	}
	if d.released.Load() {
		return ErrReleased
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev != nil && s.dev != d {
		s.destroyTexturesLocked()
		s.dev.untrack(s)
	}
	s.dev = d
	d.track(s)

	if !b.DrawableSize.IsZero() {
		s.size = b.DrawableSize
	}
	s.binding = b
	s.retireLocked()
	if s.size.IsZero() {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := s.createDepthLocked(); err != nil {
		return err
	}
	for i := range s.nslots {
		sl, err := s.createSlotLocked(i)
		if err != nil {
			return err
		}
		s.slots = append(s.slots, sl)
	}
	slogger().Debug("webgpu: surface configured",
		"size", s.size, "format", b.ColorFormat, "samples", b.SampleCount, "slots", s.nslots)
	return nil
}

func (s *Surface) extent() hal.Extent3D {
	return hal.Extent3D{Width: uint32(s.size.Width), Height: uint32(s.size.Height), DepthOrArrayLayers: 1}
}

func (s *Surface) createSlotLocked(i int) (*slot, error) {
	device := s.dev.device
	label := fmt.Sprintf("forge_surface_%d", i)
	sl := &slot{size: s.size}

	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          s.extent(),
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        s.binding.ColorFormat,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: create surface texture: %w", err)
	}
	sl.tex = tex
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{Label: label + "_view"})
	if err != nil {
		s.destroySlotLocked(sl)
		return nil, fmt.Errorf("webgpu: create surface view: %w", err)
	}
	sl.view = view

	if s.binding.SampleCount > 1 {
		msaa, err := device.CreateTexture(&hal.TextureDescriptor{
			Label:         label + "_msaa",
			Size:          s.extent(),
			MipLevelCount: 1,
			SampleCount:   uint32(s.binding.SampleCount),
			Dimension:     gputypes.TextureDimension2D,
			Format:        s.binding.ColorFormat,
			Usage:         gputypes.TextureUsageRenderAttachment,
		})
		if err != nil {
			s.destroySlotLocked(sl)
			return nil, fmt.Errorf("webgpu: create msaa texture: %w", err)
		}
		sl.msaaTex = msaa
		msaaView, err := device.CreateTextureView(msaa, &hal.TextureViewDescriptor{Label: label + "_msaa_view"})
		if err != nil {
			s.destroySlotLocked(sl)
			return nil, fmt.Errorf("webgpu: create msaa view: %w", err)
		}
		sl.msaaView = msaaView
	}
	return sl, nil
}

func (s *Surface) createDepthLocked() error {
	if s.binding.DepthFormat == gputypes.TextureFormatUndefined {
		return nil
	}
	sampleCount := uint32(max(s.binding.SampleCount, 1))
	tex, err := s.dev.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "forge_surface_depth",
		Size:          s.extent(),
		MipLevelCount: 1,
		SampleCount:   sampleCount,
		Dimension:     gputypes.TextureDimension2D,
		Format:        s.binding.DepthFormat,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("webgpu: create depth texture: %w", err)
	}
	view, err := s.dev.device.CreateTextureView(tex, &hal.TextureViewDescriptor{Label: "forge_surface_depth_view"})
	if err != nil {
		s.dev.device.DestroyTexture(tex)
		return fmt.Errorf("webgpu: create depth view: %w", err)
	}
	s.depthTex, s.depthView = tex, view
	return nil
}

// retireLocked destroys idle slots and marks busy ones retired.
func (s *Surface) retireLocked() {
	if s.dev == nil {
		return
	}
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	for _, sl := range s.slots {
		if sl.busy {
			sl.retired = true
			s.retired = append(s.retired, sl)
			continue
		}
		s.destroySlotLocked(sl)
	}
	s.slots = nil
	s.front = nil
	s.destroyDepthLocked()
}

func (s *Surface) destroySlotLocked(sl *slot) {
	device := s.dev.device
	if sl.msaaView != nil {
		device.DestroyTextureView(sl.msaaView)
	}
	if sl.msaaTex != nil {
		device.DestroyTexture(sl.msaaTex)
	}
	if sl.view != nil {
		device.DestroyTextureView(sl.view)
	}
	if sl.tex != nil {
		device.DestroyTexture(sl.tex)
	}
	*sl = slot{}
}

func (s *Surface) destroyDepthLocked() {
	if s.depthView != nil {
		s.dev.device.DestroyTextureView(s.depthView)
		s.depthView = nil
	}
	if s.depthTex != nil {
		s.dev.device.DestroyTexture(s.depthTex)
		s.depthTex = nil
	}
}

// destroyTextures is called by Device.Release before the device goes away.
func (s *Surface) destroyTextures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyTexturesLocked()
	s.dev = nil
}

// destroyTexturesLocked requires s.mu and takes the device lock.
func (s *Surface) destroyTexturesLocked() {
	if s.dev == nil {
		return
	}
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	for _, sl := range s.slots {
		s.destroySlotLocked(sl)
	}
	for _, sl := range s.retired {
		s.destroySlotLocked(sl)
	}
	s.destroyDepthLocked()
	s.slots, s.retired, s.front = nil, nil, nil
}

// NextDrawable hands out a free render target. It reports false before
// Configure and while every slot is busy.
func (s *Surface) NextDrawable() (forge.Drawable, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.slots {
		if !sl.busy {
			sl.busy = true
			return &Drawable{surface: s, slot: sl, format: s.binding.ColorFormat}, true
		}
	}
	return nil, false
}

// Presented returns the number of completed presentations.
func (s *Surface) Presented() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presented
}

// DepthStencilView returns the depth attachment, or nil when the binding
// has no depth format.
func (s *Surface) DepthStencilView() hal.TextureView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depthView
}

func (s *Surface) giveBack(sl *slot, presented bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl.busy = false
	if sl.retired {
		if s.dev != nil {
			s.dev.mu.Lock()
			s.destroySlotLocked(sl)
			s.dev.mu.Unlock()
		}
		for i, r := range s.retired {
			if r == sl {
				s.retired = append(s.retired[:i], s.retired[i+1:]...)
				break
			}
		}
		return
	}
	if presented {
		s.front = sl
		s.presented++
	}
}

// ReadFront copies the last presented render target back to host memory.
// Call it while no frame is in flight, for example after Core.Drain.
func (s *Surface) ReadFront(timeout time.Duration) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.front == nil || s.dev == nil {
		return nil, ErrNoFrontBuffer
	}
	d := s.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	w, h := uint32(s.front.size.Width), uint32(s.front.size.Height)
	bytesPerRow := w * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "forge_readback",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "forge_readback"})
	if err != nil {
		return nil, fmt.Errorf("webgpu: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding("forge_readback"); err != nil {
		return nil, fmt.Errorf("webgpu: begin encoding: %w", err)
	}
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: s.front.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	enc.CopyTextureToBuffer(s.front.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: s.front.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: s.front.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})
	cmd, err := enc.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("webgpu: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmd)

	index, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		return nil, fmt.Errorf("webgpu: submit readback: %w", err)
	}
	if !awaitIndex(d.queue.PollCompleted, index, timeout) {
		return nil, fmt.Errorf("webgpu: readback not completed within %v", timeout)
	}

	mapping, err := d.device.MapBuffer(staging, 0, stagingSize)
	if err != nil {
		return nil, fmt.Errorf("webgpu: map staging buffer: %w", err)
	}
	raw := unsafe.Slice((*byte)(mapping.Ptr), stagingSize)
	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	unpackRows(img.Pix, raw, int(bytesPerRow), int(alignedBytesPerRow), int(h),
		s.binding.ColorFormat == gputypes.TextureFormatBGRA8Unorm)
	if err := d.device.UnmapBuffer(staging); err != nil {
		slogger().Warn("webgpu: unmap staging buffer", "err", err)
	}
	return img, nil
}

// unpackRows strips row padding and swizzles BGRA to RGBA when bgra is set.
func unpackRows(dst, src []byte, rowBytes, pitch, rows int, bgra bool) {
	for y := range rows {
		out := dst[y*rowBytes : (y+1)*rowBytes]
		copy(out, src[y*pitch:y*pitch+rowBytes])
		if !bgra {
			continue
		}
		for i := 0; i < len(out); i += 4 {
			out[i], out[i+2] = out[i+2], out[i]
		}
	}
}

// Drawable is one render target handed out by a Surface.
type Drawable struct {
	surface *Surface
	slot    *slot
	format  gputypes.TextureFormat
	once    sync.Once
}

func (d *Drawable) Size() forge.Size               { return d.slot.size }
func (d *Drawable) Format() gputypes.TextureFormat { return d.format }

// View returns the single-sampled color view of the render target.
func (d *Drawable) View() hal.TextureView { return d.slot.view }

// MultisampleView returns the multisampled color view, or nil when the
// binding uses one sample. Passes rendering into it should resolve to View.
func (d *Drawable) MultisampleView() hal.TextureView { return d.slot.msaaView }

// Discard returns the render target without presenting it.
func (d *Drawable) Discard() {
	d.once.Do(func() { d.surface.giveBack(d.slot, false) })
}

func (d *Drawable) present() {
	d.once.Do(func() { d.surface.giveBack(d.slot, true) })
}
