// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"golang.org/x/sync/semaphore"
)

// State is the frame lifecycle state of a Core.
type State int32

const (
	// StateUnbound means no surface is bound; frames are rejected.
	StateUnbound State = iota
	// StateIdle means the Core is bound and no frame is being prepared.
	StateIdle
	// StatePreparing means a frame is between BeginFrame and EndFrame.
	StatePreparing
	// StateClosed is terminal.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Core drives a Renderer: it binds it to a surface, paces frame production
// against GPU completion with a FrameGate, and propagates resize and
// appearance changes.
//
// Core is not safe for concurrent use. Bind, Unbind, the frame methods,
// NotifyResize and the InputHandler methods must be called from one host
// goroutine. NotifyAppearance, State, IsBound, Stats and Gate may be called
// from any goroutine.
type Core struct {
	renderer Renderer
	cfg      Config
	gate     *FrameGate

	device  Device
	queue   CommandQueue
	surface Surface
	binding ViewBinding

	isSetup atomic.Bool
	state   atomic.Int32

	frame         *Frame
	frameIndex    uint64
	pendingResize Size
	hasPending    bool

	appearanceSem *semaphore.Weighted
	appearance    atomic.Int32

	counters frameCounters
}

var _ InputHandler = (*Core)(nil)

// New creates an unbound Core for r.
func New(r Renderer, opts ...Option) (*Core, error) {
	if r == nil {
		return nil, ErrNilRenderer
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	gate, err := NewFrameGate(cfg.FrameGateCapacity)
	if err != nil {
		return nil, err
	}
	return &Core{
		renderer:      r,
		cfg:           cfg,
		gate:          gate,
		appearanceSem: semaphore.NewWeighted(1),
	}, nil
}

// Config returns the effective configuration.
func (c *Core) Config() Config { return c.cfg }

// Gate returns the Core's frame gate.
func (c *Core) Gate() *FrameGate { return c.gate }

// State returns the current lifecycle state.
func (c *Core) State() State { return State(c.state.Load()) }

// IsBound reports whether the Core is bound and set up.
func (c *Core) IsBound() bool { return c.isSetup.Load() }

// IsBoundTo reports whether s is the currently bound surface.
func (c *Core) IsBoundTo(s Surface) bool {
	return c.isSetup.Load() && s != nil && c.surface == s
}

// Binding returns the current view binding and whether one exists.
func (c *Core) Binding() (ViewBinding, bool) {
	if !c.isSetup.Load() {
		return ViewBinding{}, false
	}
	return c.binding, true
}

// DeviceProvider exposes the bound device to gpucontext consumers.
// It returns nil while unbound.
func (c *Core) DeviceProvider() gpucontext.DeviceProvider {
	if !c.isSetup.Load() {
		return nil
	}
	return &deviceProvider{device: c.device, queue: c.queue, format: c.binding.ColorFormat}
}

// Bind binds the Core to surface and runs the renderer's setup hook.
//
// The device and command queue are created on the first bind and reused
// afterwards. Binding the already bound surface only refreshes the cached
// formats and size. Binding a different surface unbinds the current one
// first.
//
// Bind either succeeds completely or leaves the Core unbound: a device
// opened by a failing call is released again.
func (c *Core) Bind(surface Surface, hints BindHints) error {
	if c.State() == StateClosed {
		return ErrClosed
	}
	if surface == nil {
		return ErrNilSurface
	}
	if c.isSetup.Load() {
		if c.surface == surface {
			return c.rebind(hints)
		}
		c.Unbind()
	}

	opened := false
	if c.device == nil {
		if err := c.openDevice(); err != nil {
			return err
		}
		opened = true
	}
	rollback := func() {
		if opened {
			c.releaseDevice()
		}
	}

	b := NegotiateBinding(c.device, surface, hints, c.cfg.PreferredSampleCount)
	if err := surface.Configure(c.device, b); err != nil {
		rollback()
		return fmt.Errorf("forge: configure surface: %w", err)
	}
	if err := c.renderer.SetupGraphicsState(Graphics{Device: c.device, Queue: c.queue, Binding: b}); err != nil {
		rollback()
		return fmt.Errorf("forge: setup graphics state: %w", err)
	}

	c.surface = surface
	c.binding = b
	c.isSetup.Store(true)
	c.state.Store(int32(StateIdle))

	Logger().Info("forge: surface bound",
		"color", b.ColorFormat,
		"depth", b.DepthFormat,
		"stencil", b.HasStencil(),
		"samples", b.SampleCount,
		"size", b.DrawableSize)

	c.replayAppearance()
	return nil
}

// rebind refreshes the binding of the current surface.
func (c *Core) rebind(hints BindHints) error {
	b := NegotiateBinding(c.device, c.surface, hints, c.cfg.PreferredSampleCount)
	size := b.DrawableSize
	b.DrawableSize = c.binding.DrawableSize

	if b != c.binding {
		if err := c.surface.Configure(c.device, b); err != nil {
			return fmt.Errorf("forge: configure surface: %w", err)
		}
		c.binding = b
	}
	c.NotifyResize(size.Width, size.Height)
	return nil
}

func (c *Core) openDevice() error {
	drv, err := resolveDriver(c.cfg.Driver)
	if err != nil {
		return err
	}
	dev, err := drv.Open(DeviceOptions{
		PowerPreference: c.cfg.powerPreference(),
		Label:           "forge",
	})
	if err != nil {
		if errors.Is(err, ErrUnavailableDevice) {
			return err
		}
		return fmt.Errorf("%w: %s: %w", ErrUnavailableDevice, drv.Name(), err)
	}
	q, err := dev.NewCommandQueue()
	if err != nil {
		dev.Release()
		return fmt.Errorf("forge: create command queue: %w", err)
	}

	info := dev.Info()
	Logger().Info("forge: device opened",
		"driver", drv.Name(),
		"adapter", info.Name,
		"type", info.DeviceType)

	c.device = dev
	c.queue = q
	return nil
}

func (c *Core) releaseDevice() {
	if c.device == nil {
		return
	}
	c.device.Release()
	c.device = nil
	c.queue = nil
}

// Unbind runs the renderer's teardown hook and detaches the surface.
// A frame being prepared is orphaned: EndFrame returns its permit without
// submitting it. Unbind is idempotent.
func (c *Core) Unbind() {
	if !c.isSetup.Load() {
		return
	}
	c.renderer.TeardownGraphicsState()
	c.isSetup.Store(false)

	if c.frame != nil {
		c.frame.orphaned = true
		c.frame = nil
	}
	c.surface = nil
	c.binding = ViewBinding{}
	c.hasPending = false
	if c.State() != StateClosed {
		c.state.Store(int32(StateUnbound))
	}
	Logger().Info("forge: surface unbound", "inflight", c.gate.Outstanding())
}

// BeginFrame acquires a frame permit, blocking while the gate is empty,
// then runs the renderer's Update hook and opens a command buffer.
func (c *Core) BeginFrame(ctx context.Context) (*Frame, error) {
	switch c.State() {
	case StateClosed:
		return nil, ErrClosed
	case StatePreparing:
		return nil, ErrFrameInProgress
	}
	if !c.isSetup.Load() {
		return nil, ErrNotBound
	}

	if err := c.gate.AcquireContext(ctx); err != nil {
		return nil, err
	}
	c.counters.begun.Add(1)

	c.renderer.Update()

	c.frameIndex++
	cmd, err := c.queue.NewCommandBuffer(fmt.Sprintf("forge frame %d", c.frameIndex))
	if err != nil {
		c.gate.Release()
		c.counters.failed.Add(1)
		return nil, fmt.Errorf("forge: new command buffer: %w", err)
	}

	f := &Frame{
		index:   c.frameIndex,
		cmd:     cmd,
		surface: c.surface,
		size:    c.binding.DrawableSize,
		binding: c.binding,
	}
	c.frame = f
	c.state.Store(int32(StatePreparing))
	return f, nil
}

// EndFrame submits f, or drops it when the surface has no drawable ready.
//
// On submission the frame's permit is returned when the GPU reports the
// command buffer complete. In every other case it is returned before
// EndFrame returns. Ending a frame twice is a no-op.
func (c *Core) EndFrame(f *Frame) error {
	if f == nil || f.ended {
		return nil
	}
	f.ended = true
	if c.frame == f {
		c.frame = nil
	}

	if f.orphaned {
		f.discard()
		c.gate.Release()
		c.counters.orphaned.Add(1)
		Logger().Debug("forge: orphaned frame released", "frame", f.index)
		return nil
	}

	d := f.Drawable()
	if d == nil {
		f.discard()
		c.gate.Release()
		c.counters.skipped.Add(1)
		Logger().Debug("forge: frame skipped, no drawable", "frame", f.index)
		c.frameDone()
		return nil
	}

	f.cmd.Present(d)
	// The completion handler references only the gate.
	gate := c.gate
	f.cmd.OnCompleted(func() { gate.Release() })
	if err := f.cmd.Commit(); err != nil {
		c.gate.Release()
		c.counters.failed.Add(1)
		Logger().Warn("forge: commit failed", "frame", f.index, "err", err)

		if errors.Is(err, ErrDeviceLost) {
			c.Unbind()
			c.releaseDevice()
			restored := c.gate.Drain()
			Logger().Warn("forge: device lost, gate drained", "restored", restored)
		} else {
			c.frameDone()
		}
		return fmt.Errorf("forge: commit frame %d: %w", f.index, err)
	}
	c.counters.submitted.Add(1)
	c.frameDone()
	return nil
}

// frameDone returns to Idle and applies a resize deferred while preparing.
func (c *Core) frameDone() {
	if c.State() == StatePreparing {
		c.state.Store(int32(StateIdle))
	}
	if c.hasPending {
		c.hasPending = false
		c.propagateResize(c.pendingResize)
	}
}

// ProduceFrame runs one full frame: BeginFrame, the Draw hook, EndFrame.
// It is the host's per-refresh entry point.
func (c *Core) ProduceFrame() error {
	return c.ProduceFrameContext(context.Background())
}

// ProduceFrameContext is like ProduceFrame but stops waiting for a permit
// when ctx is done.
func (c *Core) ProduceFrameContext(ctx context.Context) error {
	f, err := c.BeginFrame(ctx)
	if err != nil {
		return err
	}
	c.renderer.Draw(f)
	return c.EndFrame(f)
}

// NotifyResize reports a new drawable size in device pixels. Zero and
// unchanged sizes are ignored. While a frame is being prepared the resize
// is deferred until the frame ends; only the latest deferred size is kept.
func (c *Core) NotifyResize(width, height int) {
	size := Size{Width: width, Height: height}
	if size.IsZero() || !c.isSetup.Load() {
		return
	}
	if c.State() == StatePreparing {
		c.pendingResize = size
		c.hasPending = true
		Logger().Debug("forge: resize deferred", "size", size)
		return
	}
	c.propagateResize(size)
}

func (c *Core) propagateResize(size Size) {
	if !c.isSetup.Load() || size.IsZero() || size == c.binding.DrawableSize {
		return
	}
	c.binding.DrawableSize = size
	if err := c.surface.Configure(c.device, c.binding); err != nil {
		Logger().Warn("forge: reconfigure surface", "size", size, "err", err)
	}
	c.renderer.Resize(size)
}

// Drain blocks until every in-flight frame has completed or ctx is done.
func (c *Core) Drain(ctx context.Context) error {
	return c.gate.WaitIdle(ctx)
}

// Close unbinds the Core, waits for in-flight frames and releases the
// device. Frames still outstanding when the configured DrainTimeout or ctx
// expires are force-drained. Close is idempotent; a closed Core rejects
// all further frames and binds.
func (c *Core) Close(ctx context.Context) error {
	if c.State() == StateClosed {
		return nil
	}
	c.Unbind()

	if c.cfg.DrainTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.cfg.DrainTimeout))
		defer cancel()
	}
	if err := c.gate.WaitIdle(ctx); err != nil {
		outstanding := c.gate.Outstanding()
		restored := c.gate.Drain()
		Logger().Warn("forge: forced drain on close",
			"outstanding", outstanding,
			"restored", restored,
			"err", err)
	}

	c.releaseDevice()
	c.state.Store(int32(StateClosed))
	return nil
}
