// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import "time"

// Option configures a Core during creation.
// Use functional options to customize Core behavior.
//
// Example:
//
//	// Defaults: triple buffering, default driver
//	core, err := forge.New(r)
//
//	// Double buffering on the software driver
//	core, err := forge.New(r,
//	    forge.WithFrameGateCapacity(2),
//	    forge.WithDriver("software"))
type Option func(*Config)

// WithFrameGateCapacity sets the number of frames allowed in flight.
func WithFrameGateCapacity(n int) Option {
	return func(c *Config) {
		c.FrameGateCapacity = n
	}
}

// WithPreferredSampleCount sets the multisampling factor used when Bind
// gets no sample count hint.
func WithPreferredSampleCount(n int) Option {
	return func(c *Config) {
		c.PreferredSampleCount = n
	}
}

// WithLowPower asks the driver for a low power device at bind time.
func WithLowPower(lowPower bool) Option {
	return func(c *Config) {
		c.LowPowerPreference = lowPower
	}
}

// WithDriver selects a registered driver by name instead of the default.
func WithDriver(name string) Option {
	return func(c *Config) {
		c.Driver = name
	}
}

// WithDrainTimeout bounds how long Close waits for in-flight frames before
// forcing a drain.
func WithDrainTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.DrainTimeout = Duration(d)
	}
}

// WithConfig replaces the whole configuration, typically one returned by
// LoadConfig. Options after it still apply.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}
