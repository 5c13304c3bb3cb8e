// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package software provides a CPU forge driver.
//
// Command buffers record encoder functions that draw into an image.RGBA
// drawable. Committed buffers execute in submission order on a timeline
// goroutine, which then presents the drawable to its Surface and runs the
// completion handlers. The driver needs no GPU and is the fallback when no
// hardware driver is registered.
//
// Importing the package registers the driver as forge.DriverSoftware:
//
//	import _ "github.com/gogpu/forge/driver/software"
package software

import (
	"log/slog"
	"time"

	"github.com/gogpu/forge"
)

func init() {
	forge.RegisterDriver(forge.DriverSoftware, NewDriver())
}

// Option configures devices opened by a Driver.
type Option func(*deviceConfig)

type deviceConfig struct {
	manual       bool
	latency      time.Duration
	depthStencil bool
	samples      []int
}

func defaultDeviceConfig() deviceConfig {
	return deviceConfig{
		depthStencil: true,
		samples:      []int{1, 4},
	}
}

// WithManualCompletion holds committed work until Device.CompleteNext or
// Device.CompleteAll is called. Tests use it to withhold completions.
func WithManualCompletion() Option {
	return func(c *deviceConfig) { c.manual = true }
}

// WithLatency delays the execution of every committed buffer by d.
func WithLatency(d time.Duration) Option {
	return func(c *deviceConfig) { c.latency = d }
}

// WithDepthStencil toggles support for the combined
// Depth32FloatStencil8 format.
func WithDepthStencil(enabled bool) Option {
	return func(c *deviceConfig) { c.depthStencil = enabled }
}

// WithSampleCounts sets the supported multisample counts. Count 1 is
// always supported.
func WithSampleCounts(counts ...int) Option {
	return func(c *deviceConfig) { c.samples = append([]int{1}, counts...) }
}

// Driver opens software devices.
type Driver struct {
	opts []Option
}

// NewDriver returns a Driver whose devices use opts.
func NewDriver(opts ...Option) *Driver {
	return &Driver{opts: opts}
}

// Name returns forge.DriverSoftware.
func (d *Driver) Name() string { return forge.DriverSoftware }

// Open returns a new Device. Power preference is ignored.
func (d *Driver) Open(opts forge.DeviceOptions) (forge.Device, error) {
	dev := NewDevice(d.opts...)
	dev.label = opts.Label
	slogger().Debug("software: device opened", "label", opts.Label, "manual", dev.cfg.manual)
	return dev, nil
}

// SetLogger receives the logger from forge.SetLogger.
func (d *Driver) SetLogger(l *slog.Logger) {
	setLogger(l)
}
