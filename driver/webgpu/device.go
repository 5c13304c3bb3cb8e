// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package webgpu

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/forge"
	"github.com/gogpu/forge/internal/shaderc"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Errors returned by devices and command buffers.
var (
	ErrReleased  = errors.New("webgpu: device released")
	ErrCommitted = errors.New("webgpu: command buffer already committed")
	ErrDiscarded = errors.New("webgpu: command buffer discarded")
)

var (
	_ forge.Device        = (*Device)(nil)
	_ forge.CommandQueue  = (*Queue)(nil)
	_ forge.CommandBuffer = (*CommandBuffer)(nil)
	_ forge.NativeHandles = (*Device)(nil)
)

// Device owns a HAL device and its queue.
type Device struct {
	instance hal.Instance
	adapter  hal.Adapter
	info     gputypes.AdapterInfo
	features gputypes.Features

	// mu serializes HAL calls between the host goroutine and the
	// completion poller.
	mu       sync.Mutex
	device   hal.Device
	queue    hal.Queue
	surfaces map[*Surface]struct{}
	shaders  *shaderc.Cache

	poller   *poller
	lost     atomic.Bool
	released atomic.Bool
}

func newDevice(instance hal.Instance, exposed *hal.ExposedAdapter, features gputypes.Features,
	opened hal.OpenDevice, timeout time.Duration) *Device {
	d := &Device{
		instance: instance,
		adapter:  exposed.Adapter,
		info:     exposed.Info,
		features: features,
		device:   opened.Device,
		queue:    opened.Queue,
		surfaces: make(map[*Surface]struct{}),
		shaders:  shaderc.NewCache(shaderc.DefaultCacheSize),
	}
	d.poller = newPoller(d, timeout)
	return d
}

func (d *Device) Info() gputypes.AdapterInfo  { return d.info }
func (d *Device) Features() gputypes.Features { return d.features }

// SupportsSampleCount reports the counts every WebGPU device supports.
func (d *Device) SupportsSampleCount(n int) bool {
	return n == 1 || n == 4
}

// Native returns the hal.Device.
func (d *Device) Native() any { return d.device }

// NativeAdapter returns the hal.Adapter.
func (d *Device) NativeAdapter() any { return d.adapter }

// NewCommandQueue returns the device queue.
func (d *Device) NewCommandQueue() (forge.CommandQueue, error) {
	if d.released.Load() {
		return nil, ErrReleased
	}
	return &Queue{dev: d}, nil
}

// CreateShaderModule compiles WGSL and creates a shader module. Compiled
// SPIR-V is cached per device by source.
func (d *Device) CreateShaderModule(label, wgsl string) (hal.ShaderModule, error) {
	words, err := d.shaders.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("webgpu: shader %q: %w", label, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released.Load() {
		return nil, ErrReleased
	}
	return d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: words},
	})
}

// DestroyShaderModule destroys a module created by CreateShaderModule.
func (d *Device) DestroyShaderModule(m hal.ShaderModule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m != nil && !d.released.Load() {
		d.device.DestroyShaderModule(m)
	}
}

// ShaderCacheStats returns the counters of the device's shader cache.
func (d *Device) ShaderCacheStats() shaderc.CacheStats { return d.shaders.Stats() }

// Lost reports whether a submission failed or timed out on this device.
func (d *Device) Lost() bool { return d.lost.Load() }

// Release waits for the poller to finish outstanding submissions, then
// destroys surface textures, the device and the instance.
func (d *Device) Release() {
	if d.released.Swap(true) {
		return
	}
	d.poller.stop()

	d.mu.Lock()
	surfaces := make([]*Surface, 0, len(d.surfaces))
	for s := range d.surfaces {
		surfaces = append(surfaces, s)
	}
	d.mu.Unlock()
	for _, s := range surfaces {
		s.destroyTextures()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.surfaces)
	d.device.Destroy()
	d.instance.Destroy()
	slogger().Debug("webgpu: device released", "adapter", d.info.Name)
}

func (d *Device) track(s *Surface) {
	d.mu.Lock()
	d.surfaces[s] = struct{}{}
	d.mu.Unlock()
}

func (d *Device) untrack(s *Surface) {
	d.mu.Lock()
	delete(d.surfaces, s)
	d.mu.Unlock()
}

// Queue creates command buffers.
type Queue struct {
	dev *Device
}

// Native returns the hal.Queue.
func (q *Queue) Native() any { return q.dev.queue }

// NewCommandBuffer creates an encoder and begins encoding.
func (q *Queue) NewCommandBuffer(label string) (forge.CommandBuffer, error) {
	d := q.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released.Load() {
		return nil, ErrReleased
	}
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("webgpu: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("webgpu: begin encoding: %w", err)
	}
	return &CommandBuffer{label: label, dev: d, encoder: enc}, nil
}

type bufferState int

const (
	stateRecording bufferState = iota
	stateCommitted
	stateDiscarded
)

// CommandBuffer wraps a hal.CommandEncoder for one frame.
type CommandBuffer struct {
	label    string
	dev      *Device
	encoder  hal.CommandEncoder
	state    bufferState
	drawable *Drawable
	handlers []func()
}

// Encoder returns the underlying encoder for recording passes.
func (cb *CommandBuffer) Encoder() hal.CommandEncoder { return cb.encoder }

// Label returns the label given at creation.
func (cb *CommandBuffer) Label() string { return cb.label }

// Clear records a render pass that clears d to c.
func (cb *CommandBuffer) Clear(d forge.Drawable, c gputypes.Color) {
	wd, ok := d.(*Drawable)
	if !ok || cb.state != stateRecording {
		return
	}
	att := hal.RenderPassColorAttachment{
		View:       wd.slot.view,
		LoadOp:     gputypes.LoadOpClear,
		StoreOp:    gputypes.StoreOpStore,
		ClearValue: c,
	}
	if wd.slot.msaaView != nil {
		att.View = wd.slot.msaaView
		att.ResolveTarget = wd.slot.view
	}
	rp := cb.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label:            cb.label + " clear",
		ColorAttachments: []hal.RenderPassColorAttachment{att},
	})
	rp.End()
}

// Present schedules d. Drawables from other drivers are ignored.
func (cb *CommandBuffer) Present(d forge.Drawable) {
	wd, ok := d.(*Drawable)
	if !ok {
		slogger().Warn("webgpu: present of foreign drawable ignored", "buffer", cb.label)
		return
	}
	cb.drawable = wd
}

// OnCompleted registers fn to run once the GPU has executed the buffer.
func (cb *CommandBuffer) OnCompleted(fn func()) {
	if fn != nil {
		cb.handlers = append(cb.handlers, fn)
	}
}

// Commit finishes encoding and submits the buffer. The poller runs the
// completion handlers once the queue reports the submission done, or once
// it gives up on the submission because the device was lost.
func (cb *CommandBuffer) Commit() error {
	switch cb.state {
	case stateCommitted:
		return ErrCommitted
	case stateDiscarded:
		return ErrDiscarded
	}
	d := cb.dev
	if d.lost.Load() {
		cb.Discard()
		return fmt.Errorf("webgpu: commit %q: %w", cb.label, forge.ErrDeviceLost)
	}

	d.mu.Lock()
	if d.released.Load() {
		d.mu.Unlock()
		cb.Discard()
		return fmt.Errorf("webgpu: commit %q: %w", cb.label, ErrReleased)
	}
	cmd, err := cb.encoder.EndEncoding()
	if err != nil {
		d.mu.Unlock()
		cb.state = stateDiscarded
		cb.releaseDrawable()
		return fmt.Errorf("webgpu: end encoding: %w", err)
	}
	index, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		d.device.FreeCommandBuffer(cmd)
		d.mu.Unlock()
		cb.state = stateDiscarded
		cb.releaseDrawable()
		if errors.Is(err, hal.ErrDeviceLost) {
			d.lost.Store(true)
			return fmt.Errorf("webgpu: submit %q: %w", cb.label, forge.ErrDeviceLost)
		}
		return fmt.Errorf("webgpu: submit %q: %w", cb.label, err)
	}
	d.mu.Unlock()

	cb.state = stateCommitted
	d.poller.enqueue(submission{
		index:    index,
		cmd:      cmd,
		drawable: cb.drawable,
		handlers: cb.handlers,
	})
	return nil
}

// Discard abandons an uncommitted buffer.
func (cb *CommandBuffer) Discard() {
	if cb.state != stateRecording {
		return
	}
	cb.state = stateDiscarded
	cb.dev.mu.Lock()
	if !cb.dev.released.Load() {
		cb.encoder.DiscardEncoding()
	}
	cb.dev.mu.Unlock()
	cb.releaseDrawable()
}

func (cb *CommandBuffer) releaseDrawable() {
	if cb.drawable != nil {
		cb.drawable.Discard()
		cb.drawable = nil
	}
	cb.handlers = nil
}

// submission is one committed buffer awaiting completion.
type submission struct {
	index    uint64
	cmd      hal.CommandBuffer
	drawable *Drawable
	handlers []func()
}

// poller waits for submissions in order and runs their completions.
type poller struct {
	dev     *Device
	timeout time.Duration

	mu      sync.Mutex
	stopped bool
	work    chan submission
	done    chan struct{}
}

func newPoller(d *Device, timeout time.Duration) *poller {
	p := &poller{
		dev:     d,
		timeout: timeout,
		work:    make(chan submission, 64),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *poller) enqueue(s submission) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.work <- s
}

// stop closes the queue and waits until every enqueued submission has been
// handled.
func (p *poller) stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.work)
	}
	p.mu.Unlock()
	<-p.done
}

func (p *poller) run() {
	defer close(p.done)
	for s := range p.work {
		p.complete(s)
	}
}

func (p *poller) complete(s submission) {
	d := p.dev
	ok := !d.lost.Load() && p.wait(s.index)

	d.mu.Lock()
	d.device.FreeCommandBuffer(s.cmd)
	d.mu.Unlock()

	switch {
	case s.drawable == nil:
	case ok:
		s.drawable.present()
	default:
		s.drawable.Discard()
	}
	// Abandoned submissions still complete so waiters get their permits back.
	for _, fn := range s.handlers {
		fn()
	}
}

// wait polls the queue until index has completed. A submission still
// pending after the timeout marks the device lost.
func (p *poller) wait(index uint64) bool {
	d := p.dev
	poll := func() uint64 {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.queue.PollCompleted()
	}
	if awaitIndex(poll, index, p.timeout) {
		return true
	}
	d.lost.Store(true)
	slogger().Warn("webgpu: submission timed out, device lost", "index", index, "timeout", p.timeout)
	return false
}

// awaitIndex calls poll with a growing backoff until it reports index or
// timeout elapses.
func awaitIndex(poll func() uint64, index uint64, timeout time.Duration) bool {
	const (
		minBackoff = 50 * time.Microsecond
		maxBackoff = 2 * time.Millisecond
	)
	deadline := time.Now().Add(timeout)
	backoff := minBackoff
	for {
		if poll() >= index {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(backoff)
		backoff = min(backoff*2, maxBackoff)
	}
}
