// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// mockDriver hands out a single mockDevice.
type mockDriver struct {
	name    string
	dev     *mockDevice
	openErr error
	opens   int
	opts    DeviceOptions
	logger  *slog.Logger
}

func (d *mockDriver) Name() string { return d.name }

func (d *mockDriver) Open(opts DeviceOptions) (Device, error) {
	d.opens++
	d.opts = opts
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.dev.released = false
	return d.dev, nil
}

func (d *mockDriver) SetLogger(l *slog.Logger) { d.logger = l }

type mockDevice struct {
	features gputypes.Features
	samples  []int
	queue    *mockQueue
	queueErr error
	released bool
	releases int
	native   any
}

func newMockDevice() *mockDevice {
	var f gputypes.Features
	f.Insert(gputypes.FeatureDepth32FloatStencil8)
	return &mockDevice{
		features: f,
		samples:  []int{1, 4},
		queue:    &mockQueue{},
	}
}

func (d *mockDevice) Info() gputypes.AdapterInfo {
	return gputypes.AdapterInfo{Name: "mock adapter", DeviceType: gputypes.DeviceTypeIntegratedGPU}
}

func (d *mockDevice) Features() gputypes.Features { return d.features }

func (d *mockDevice) SupportsSampleCount(n int) bool {
	for _, s := range d.samples {
		if s == n {
			return true
		}
	}
	return false
}

func (d *mockDevice) NewCommandQueue() (CommandQueue, error) {
	if d.queueErr != nil {
		return nil, d.queueErr
	}
	return d.queue, nil
}

func (d *mockDevice) Release() {
	d.released = true
	d.releases++
}

func (d *mockDevice) Native() any { return d.native }

// mockQueue records every command buffer it creates. With instant set,
// Commit runs the completion handlers before returning.
type mockQueue struct {
	mu        sync.Mutex
	buffers   []*mockCommandBuffer
	instant   bool
	bufErr    error
	commitErr error
}

func (q *mockQueue) NewCommandBuffer(label string) (CommandBuffer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.bufErr != nil {
		return nil, q.bufErr
	}
	cb := &mockCommandBuffer{label: label, queue: q}
	q.buffers = append(q.buffers, cb)
	return cb, nil
}

func (q *mockQueue) committed() []*mockCommandBuffer {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*mockCommandBuffer
	for _, cb := range q.buffers {
		if cb.committed {
			out = append(out, cb)
		}
	}
	return out
}

type mockCommandBuffer struct {
	label     string
	queue     *mockQueue
	presented Drawable
	handlers  []func()
	committed bool
	discarded bool

	mu        sync.Mutex
	completed bool
}

func (cb *mockCommandBuffer) Present(d Drawable)    { cb.presented = d }
func (cb *mockCommandBuffer) OnCompleted(fn func()) { cb.handlers = append(cb.handlers, fn) }
func (cb *mockCommandBuffer) Discard()              { cb.discarded = true }

func (cb *mockCommandBuffer) Commit() error {
	cb.queue.mu.Lock()
	err, instant := cb.queue.commitErr, cb.queue.instant
	if err == nil {
		cb.committed = true
	}
	cb.queue.mu.Unlock()
	if err != nil {
		return err
	}
	if instant {
		cb.complete()
	}
	return nil
}

// complete simulates GPU completion. It runs the handlers at most once.
func (cb *mockCommandBuffer) complete() {
	cb.mu.Lock()
	if cb.completed {
		cb.mu.Unlock()
		return
	}
	cb.completed = true
	handlers := cb.handlers
	cb.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

type mockSurface struct {
	size         Size
	format       gputypes.TextureFormat
	ready        bool
	configureErr error
	configured   []ViewBinding
	handedOut    int
	discarded    int
}

func newMockSurface(w, h int) *mockSurface {
	return &mockSurface{
		size:   Size{Width: w, Height: h},
		format: gputypes.TextureFormatBGRA8Unorm,
		ready:  true,
	}
}

func (s *mockSurface) DrawableSize() Size                      { return s.size }
func (s *mockSurface) PreferredFormat() gputypes.TextureFormat { return s.format }

func (s *mockSurface) Configure(_ Device, b ViewBinding) error {
	if s.configureErr != nil {
		return s.configureErr
	}
	s.configured = append(s.configured, b)
	return nil
}

func (s *mockSurface) NextDrawable() (Drawable, bool) {
	if !s.ready {
		return nil, false
	}
	s.handedOut++
	return &mockDrawable{surface: s}, true
}

type mockDrawable struct {
	surface *mockSurface
}

func (d *mockDrawable) Size() Size                     { return d.surface.size }
func (d *mockDrawable) Format() gputypes.TextureFormat { return d.surface.format }
func (d *mockDrawable) Discard()                       { d.surface.discarded++ }

// recordingRenderer records every hook call.
type recordingRenderer struct {
	BaseRenderer

	setupErr error

	mu          sync.Mutex
	setups      []Graphics
	teardowns   int
	updates     int
	draws       int
	resizes     []Size
	appearances []Appearance
	events      []string

	drawFn   func(*Frame)
	updateFn func()
}

func (r *recordingRenderer) SetupGraphicsState(g Graphics) error {
	if r.setupErr != nil {
		return r.setupErr
	}
	r.setups = append(r.setups, g)
	return nil
}

func (r *recordingRenderer) TeardownGraphicsState() { r.teardowns++ }
func (r *recordingRenderer) Resize(s Size)          { r.resizes = append(r.resizes, s) }

func (r *recordingRenderer) Update() {
	r.updates++
	if r.updateFn != nil {
		r.updateFn()
	}
}

func (r *recordingRenderer) Draw(f *Frame) {
	r.draws++
	if r.drawFn != nil {
		r.drawFn(f)
		return
	}
	f.Drawable()
}

func (r *recordingRenderer) UpdateAppearance(a Appearance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appearances = append(r.appearances, a)
}

func (r *recordingRenderer) appearanceLog() []Appearance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Appearance(nil), r.appearances...)
}

func (r *recordingRenderer) record(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingRenderer) eventLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recordingRenderer) PointerMoved(gpucontext.PointerEvent)    { r.record("pointer-moved") }
func (r *recordingRenderer) PointerPressed(gpucontext.PointerEvent)  { r.record("pointer-pressed") }
func (r *recordingRenderer) PointerReleased(gpucontext.PointerEvent) { r.record("pointer-released") }
func (r *recordingRenderer) PointerEntered(gpucontext.PointerEvent)  { r.record("pointer-entered") }
func (r *recordingRenderer) PointerExited(gpucontext.PointerEvent)   { r.record("pointer-exited") }
func (r *recordingRenderer) KeyPressed(gpucontext.Key, gpucontext.Modifiers) {
	r.record("key-pressed")
}
func (r *recordingRenderer) KeyReleased(gpucontext.Key, gpucontext.Modifiers) {
	r.record("key-released")
}
func (r *recordingRenderer) ModifiersChanged(gpucontext.Modifiers)  { r.record("modifiers") }
func (r *recordingRenderer) TouchBegan(gpucontext.PointerEvent)     { r.record("touch-began") }
func (r *recordingRenderer) TouchMoved(gpucontext.PointerEvent)     { r.record("touch-moved") }
func (r *recordingRenderer) TouchEnded(gpucontext.PointerEvent)     { r.record("touch-ended") }
func (r *recordingRenderer) TouchCancelled(gpucontext.PointerEvent) { r.record("touch-cancelled") }
func (r *recordingRenderer) Pinch(gpucontext.GestureEvent)          { r.record("pinch") }
func (r *recordingRenderer) Rotate(gpucontext.GestureEvent)         { r.record("rotate") }
func (r *recordingRenderer) Scroll(gpucontext.ScrollEvent)          { r.record("scroll") }

// registerMockDriver registers a fresh mock driver under a name unique to
// the test and removes it on cleanup.
func registerMockDriver(t *testing.T) *mockDriver {
	t.Helper()
	name := "mock-" + strings.ReplaceAll(t.Name(), "/", "-")
	d := &mockDriver{name: name, dev: newMockDevice()}
	RegisterDriver(name, d)
	t.Cleanup(func() { UnregisterDriver(name) })
	return d
}

// newBoundCore returns a Core bound to a 800x600 mock surface.
func newBoundCore(t *testing.T, opts ...Option) (*Core, *mockDriver, *mockSurface, *recordingRenderer) {
	t.Helper()
	drv := registerMockDriver(t)
	r := &recordingRenderer{}
	core, err := New(r, append([]Option{WithDriver(drv.name)}, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s := newMockSurface(800, 600)
	if err := core.Bind(s, BindHints{}); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	return core, drv, s, r
}

var errBoom = errors.New("boom")
