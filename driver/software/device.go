// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/forge"
	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"
)

// Errors returned by command buffers.
var (
	ErrCommitted = errors.New("software: command buffer already committed")
	ErrDiscarded = errors.New("software: command buffer discarded")
	ErrReleased  = errors.New("software: device released")
)

// Device is a CPU device. It is safe for concurrent use.
type Device struct {
	cfg      deviceConfig
	label    string
	timeline *timeline

	lost     atomic.Bool
	released atomic.Bool
}

var (
	_ forge.Device        = (*Device)(nil)
	_ forge.CommandQueue  = (*Queue)(nil)
	_ forge.CommandBuffer = (*CommandBuffer)(nil)
)

// NewDevice creates a device and starts its timeline.
func NewDevice(opts ...Option) *Device {
	cfg := defaultDeviceConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Device{
		cfg:      cfg,
		timeline: newTimeline(cfg.manual, cfg.latency),
	}
}

// Info describes the device as a CPU adapter.
func (d *Device) Info() gputypes.AdapterInfo {
	return gputypes.AdapterInfo{
		Name:       "forge software rasterizer",
		Vendor:     "gogpu",
		DeviceType: gputypes.DeviceTypeCPU,
		Driver:     forge.DriverSoftware,
	}
}

// Features reports Depth32FloatStencil8 unless disabled.
func (d *Device) Features() gputypes.Features {
	var f gputypes.Features
	if d.cfg.depthStencil {
		f.Insert(gputypes.FeatureDepth32FloatStencil8)
	}
	return f
}

// SupportsSampleCount reports whether n is a configured sample count.
func (d *Device) SupportsSampleCount(n int) bool {
	return n == 1 || slices.Contains(d.cfg.samples, n)
}

// SupportsFormat reports whether the format can back a software binding.
func (d *Device) SupportsFormat(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm,
		gputypes.TextureFormatDepth32Float, gputypes.TextureFormatDepth24Plus,
		gputypes.TextureFormatDepth24PlusStencil8:
		return true
	case gputypes.TextureFormatDepth32FloatStencil8:
		return d.cfg.depthStencil
	default:
		return false
	}
}

// NewCommandQueue returns the device queue.
func (d *Device) NewCommandQueue() (forge.CommandQueue, error) {
	if d.released.Load() {
		return nil, ErrReleased
	}
	return &Queue{dev: d}, nil
}

// Release stops the timeline. Work already committed still executes and
// fires its completion handlers; in manual mode it stays held until
// completed.
func (d *Device) Release() {
	if d.released.Swap(true) {
		return
	}
	d.timeline.stop()
	slogger().Debug("software: device released", "label", d.label)
}

// SetLost marks the device lost. Later commits fail with
// forge.ErrDeviceLost.
func (d *Device) SetLost() {
	d.lost.Store(true)
}

// CompleteNext executes the oldest held buffer on the calling goroutine and
// reports whether there was one. It only applies to devices created with
// WithManualCompletion.
func (d *Device) CompleteNext() bool {
	return d.timeline.completeNext()
}

// CompleteAll executes every held buffer and returns how many ran.
func (d *Device) CompleteAll() int {
	n := 0
	for d.timeline.completeNext() {
		n++
	}
	return n
}

// Pending returns the number of committed buffers not yet executed.
func (d *Device) Pending() int {
	return d.timeline.pending()
}

// Queue creates command buffers for a Device.
type Queue struct {
	dev *Device
}

// NewCommandBuffer returns an empty command buffer.
func (q *Queue) NewCommandBuffer(label string) (forge.CommandBuffer, error) {
	if q.dev.released.Load() {
		return nil, ErrReleased
	}
	return &CommandBuffer{label: label, dev: q.dev}, nil
}

type bufferState int

const (
	stateRecording bufferState = iota
	stateCommitted
	stateDiscarded
)

// CommandBuffer records encoders run against the presented drawable.
// Recording methods must be called from one goroutine.
type CommandBuffer struct {
	label    string
	dev      *Device
	state    bufferState
	encoders []func(dst draw.Image)
	drawable *Drawable
	handlers []func()
}

// Label returns the label given at creation.
func (cb *CommandBuffer) Label() string { return cb.label }

// Encode appends fn. Encoders run in order on the timeline against the
// drawable passed to Present; without a drawable they are skipped.
func (cb *CommandBuffer) Encode(fn func(dst draw.Image)) {
	if cb.state != stateRecording || fn == nil {
		return
	}
	cb.encoders = append(cb.encoders, fn)
}

// Clear encodes a fill of the whole drawable with c.
func (cb *CommandBuffer) Clear(c color.Color) {
	cb.Encode(func(dst draw.Image) {
		draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	})
}

// Present schedules d. Drawables from other drivers are ignored.
func (cb *CommandBuffer) Present(d forge.Drawable) {
	sd, ok := d.(*Drawable)
	if !ok {
		slogger().Warn("software: present of foreign drawable ignored", "buffer", cb.label)
		return
	}
	cb.drawable = sd
}

// OnCompleted registers fn to run once the buffer has executed.
func (cb *CommandBuffer) OnCompleted(fn func()) {
	if fn != nil {
		cb.handlers = append(cb.handlers, fn)
	}
}

// Commit submits the buffer to the device timeline. On failure the
// presented drawable is returned to its surface and no handler runs.
func (cb *CommandBuffer) Commit() error {
	switch cb.state {
	case stateCommitted:
		return ErrCommitted
	case stateDiscarded:
		return ErrDiscarded
	}
	var err error
	switch {
	case cb.dev.lost.Load():
		err = fmt.Errorf("software: commit %q: %w", cb.label, forge.ErrDeviceLost)
	case !cb.dev.timeline.submit(cb):
		err = fmt.Errorf("software: commit %q: %w", cb.label, ErrReleased)
	}
	if err != nil {
		cb.Discard()
		return err
	}
	cb.state = stateCommitted
	return nil
}

// Discard abandons a buffer that has not been committed.
func (cb *CommandBuffer) Discard() {
	if cb.state != stateRecording {
		return
	}
	cb.state = stateDiscarded
	if cb.drawable != nil {
		cb.drawable.Discard()
		cb.drawable = nil
	}
	cb.encoders = nil
	cb.handlers = nil
}

// execute runs on the timeline.
func (cb *CommandBuffer) execute() {
	if d := cb.drawable; d != nil {
		for _, enc := range cb.encoders {
			enc(d.img)
		}
		d.present()
	}
	for _, fn := range cb.handlers {
		fn()
	}
}

// timeline executes committed buffers in submission order.
type timeline struct {
	manual  bool
	latency time.Duration

	mu      sync.Mutex
	stopped bool
	held    []*CommandBuffer
	work    chan *CommandBuffer
	queued  atomic.Int64
}

func newTimeline(manual bool, latency time.Duration) *timeline {
	t := &timeline{manual: manual, latency: latency}
	if !manual {
		t.work = make(chan *CommandBuffer, 64)
		go t.run()
	}
	return t
}

func (t *timeline) run() {
	for cb := range t.work {
		if t.latency > 0 {
			time.Sleep(t.latency)
		}
		cb.execute()
		t.queued.Add(-1)
	}
}

// submit reports false once the timeline is stopped.
func (t *timeline) submit(cb *CommandBuffer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	t.queued.Add(1)
	if t.manual {
		t.held = append(t.held, cb)
		return true
	}
	t.work <- cb
	return true
}

func (t *timeline) completeNext() bool {
	t.mu.Lock()
	if len(t.held) == 0 {
		t.mu.Unlock()
		return false
	}
	cb := t.held[0]
	t.held = t.held[1:]
	t.mu.Unlock()

	cb.execute()
	t.queued.Add(-1)
	return true
}

func (t *timeline) pending() int {
	return int(t.queued.Load())
}

func (t *timeline) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	if t.work != nil {
		close(t.work)
	}
}
