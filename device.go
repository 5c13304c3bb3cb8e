// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Driver opens graphics devices. Drivers register themselves with
// RegisterDriver, typically from an init function in the driver package.
type Driver interface {
	// Name returns the registered driver name.
	Name() string

	// Open returns a device matching opts. Drivers return an error wrapping
	// ErrUnavailableDevice when the host has no usable device.
	Open(opts DeviceOptions) (Device, error)
}

// DeviceOptions controls device selection on Open.
type DeviceOptions struct {
	PowerPreference gputypes.PowerPreference
	Label           string
}

// Device is a graphics device owned exclusively by one Core.
type Device interface {
	Info() gputypes.AdapterInfo
	Features() gputypes.Features
	SupportsSampleCount(n int) bool

	// NewCommandQueue creates the submission queue. Core calls it once per
	// device.
	NewCommandQueue() (CommandQueue, error)

	// Release destroys the device. Outstanding completion callbacks must
	// still fire or be abandoned; they only touch the frame gate.
	Release()
}

// CommandQueue creates command buffers for submission.
type CommandQueue interface {
	NewCommandBuffer(label string) (CommandBuffer, error)
}

// CommandBuffer is the per-frame unit of GPU work ("frame handle").
//
// Drivers call every handler registered with OnCompleted exactly once for a
// committed buffer, on a goroutine of their choosing: after the GPU finishes
// executing it, or when the driver abandons it after losing the device.
// Handlers are never called for a buffer that was discarded or whose Commit
// failed.
type CommandBuffer interface {
	// Present schedules d to be shown once the buffer has executed.
	Present(d Drawable)
	OnCompleted(fn func())
	Commit() error
	// Discard abandons the buffer without submitting it.
	Discard()
}

// Surface is the platform drawable surface a Core binds to.
type Surface interface {
	// DrawableSize returns the current size in device pixels; may be zero
	// before layout.
	DrawableSize() Size

	// PreferredFormat returns the surface's native color format, or
	// TextureFormatUndefined when it has none.
	PreferredFormat() gputypes.TextureFormat

	// Configure (re)configures the surface for dev and b. It is called on
	// bind and after every accepted resize.
	Configure(dev Device, b ViewBinding) error

	// NextDrawable returns the next drawable slot. It reports false when
	// the surface is not ready to present.
	NextDrawable() (Drawable, bool)
}

// Drawable is one presentable image of a Surface.
type Drawable interface {
	Size() Size
	Format() gputypes.TextureFormat
	// Discard returns the slot to the surface without presenting it.
	Discard()
}

// NativeHandles is implemented by devices and queues that wrap a lower
// level API object, such as *wgpu.Device. The value is exported through
// DeviceProvider for libraries in the gpucontext ecosystem.
type NativeHandles interface {
	Native() any
}

// Graphics is handed to the renderer's setup hook.
type Graphics struct {
	Device  Device
	Queue   CommandQueue
	Binding ViewBinding
}

// deviceProvider adapts a bound Core to gpucontext.DeviceProvider.
type deviceProvider struct {
	device Device
	queue  CommandQueue
	format gputypes.TextureFormat
}

var _ gpucontext.DeviceProvider = (*deviceProvider)(nil)

func (p *deviceProvider) Device() gpucontext.Device {
	return native(p.device)
}

func (p *deviceProvider) Queue() gpucontext.Queue {
	return native(p.queue)
}

func (p *deviceProvider) SurfaceFormat() gputypes.TextureFormat {
	return p.format
}

func (p *deviceProvider) Adapter() gpucontext.Adapter {
	if a, ok := p.device.(interface{ NativeAdapter() any }); ok {
		return a.NativeAdapter()
	}
	return nil
}

func (p *deviceProvider) AdapterInfo() gpucontext.AdapterInfo {
	info := p.device.Info()
	return gpucontext.AdapterInfo{
		Name: info.Name,
		Type: adapterType(info.DeviceType),
	}
}

func native(v any) any {
	if n, ok := v.(NativeHandles); ok {
		if h := n.Native(); h != nil {
			return h
		}
	}
	return v
}

func adapterType(t gputypes.DeviceType) gpucontext.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}
