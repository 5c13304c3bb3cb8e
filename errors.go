// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import "errors"

// Common errors returned by Core and FrameGate operations.
var (
	// ErrUnavailableDevice is returned by Bind when no usable graphics
	// device exists on the host. The Core stays unbound.
	ErrUnavailableDevice = errors.New("forge: no graphics device available")

	// ErrNotBound is returned when a frame is requested while no surface
	// is bound.
	ErrNotBound = errors.New("forge: renderer is not bound to a surface")

	// ErrClosed is returned when operations are attempted on a closed Core.
	ErrClosed = errors.New("forge: core is closed")

	// ErrFrameInProgress is returned by BeginFrame when the previous frame
	// has not been ended.
	ErrFrameInProgress = errors.New("forge: frame already in progress")

	// ErrInvalidCapacity is returned when a FrameGate capacity is not positive.
	ErrInvalidCapacity = errors.New("forge: invalid frame gate capacity")

	// ErrNilRenderer is returned when New is called without a Renderer.
	ErrNilRenderer = errors.New("forge: nil renderer")

	// ErrNilSurface is returned when Bind is called without a Surface.
	ErrNilSurface = errors.New("forge: nil surface")

	// ErrDeviceLost is returned by drivers when the graphics device has been
	// removed or reset. It is unrecoverable for the current binding.
	ErrDeviceLost = errors.New("forge: graphics device lost")

	// ErrUnknownDriver is returned when a named driver is not registered.
	ErrUnknownDriver = errors.New("forge: unknown driver")

	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("forge: invalid config")
)
