// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package webgpu provides a forge driver over the gogpu/wgpu HAL.
//
// The driver does not import any HAL backend itself. Hosts import the
// backends they ship, for example:
//
//	import (
//		_ "github.com/gogpu/forge/driver/webgpu"
//		_ "github.com/gogpu/wgpu/hal/allbackends"
//	)
//
// Frame completion is tracked with queue submission indices: every commit
// records the index returned by the queue and a poller goroutine waits,
// in submission order, until the queue reports each index completed.
package webgpu

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/forge"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

func init() {
	forge.RegisterDriver(forge.DriverWebGPU, NewDriver())
}

// DefaultCompletionTimeout bounds how long a submission may stay pending
// before the device is considered lost.
const DefaultCompletionTimeout = 5 * time.Second

// backendOrder is the lookup order when no backend is configured.
// BackendEmpty is where wgpu's CPU rasterizer registers.
var backendOrder = []gputypes.Backend{
	gputypes.BackendVulkan,
	gputypes.BackendMetal,
	gputypes.BackendDX12,
	gputypes.BackendGL,
	gputypes.BackendEmpty,
}

// Option configures a Driver.
type Option func(*Driver)

// WithBackend makes the driver use b instead of a registered backend.
func WithBackend(b hal.Backend) Option {
	return func(d *Driver) { d.backend = b }
}

// WithCompletionTimeout sets how long the poller waits for one submission.
func WithCompletionTimeout(timeout time.Duration) Option {
	return func(d *Driver) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// Driver opens devices through a HAL backend.
type Driver struct {
	backend hal.Backend
	timeout time.Duration
}

// NewDriver returns a Driver configured by opts.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{timeout: DefaultCompletionTimeout}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns forge.DriverWebGPU.
func (d *Driver) Name() string { return forge.DriverWebGPU }

// SetLogger receives the logger from forge.SetLogger.
func (d *Driver) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// Open creates an instance, selects an adapter by power preference and
// opens a device on it.
func (d *Driver) Open(opts forge.DeviceOptions) (forge.Device, error) {
	backend, err := d.resolveBackend()
	if err != nil {
		return nil, err
	}

	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: webgpu: create instance: %w", forge.ErrUnavailableDevice, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: webgpu: no adapters found", forge.ErrUnavailableDevice)
	}
	selected := &adapters[selectAdapter(adapters, opts.PowerPreference)]

	var features gputypes.Features
	if selected.Features.Contains(gputypes.FeatureDepth32FloatStencil8) {
		features.Insert(gputypes.FeatureDepth32FloatStencil8)
	}
	opened, err := selected.Adapter.Open(features, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: webgpu: open device: %w", forge.ErrUnavailableDevice, err)
	}

	dev := newDevice(instance, selected, features, opened, d.timeout)
	slogger().Info("webgpu: device opened",
		"adapter", selected.Info.Name,
		"type", selected.Info.DeviceType,
		"label", opts.Label)
	return dev, nil
}

func (d *Driver) resolveBackend() (hal.Backend, error) {
	if d.backend != nil {
		return d.backend, nil
	}
	for _, b := range backendOrder {
		if backend, ok := hal.GetBackend(b); ok {
			return backend, nil
		}
	}
	return nil, fmt.Errorf("%w: webgpu: no hal backend registered", forge.ErrUnavailableDevice)
}

// selectAdapter returns the index of the preferred adapter. Low power
// prefers integrated GPUs; everything else prefers discrete ones, falling
// back to the other kind and then to the first adapter.
func selectAdapter(adapters []hal.ExposedAdapter, pref gputypes.PowerPreference) int {
	order := []gputypes.DeviceType{gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU}
	if pref == gputypes.PowerPreferenceLowPower {
		order[0], order[1] = order[1], order[0]
	}
	for _, want := range order {
		for i := range adapters {
			if adapters[i].Info.DeviceType == want {
				return i
			}
		}
	}
	return 0
}
