// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"fmt"
	"slices"
	"sync"
)

// Well-known driver names.
const (
	DriverWebGPU   = "webgpu"
	DriverSoftware = "software"
)

// registry holds registered drivers.
var (
	driverMu sync.RWMutex
	drivers  = make(map[string]Driver)
	// Priority order for driver selection (first registered wins).
	// WebGPU > Software (software is the headless fallback).
	driverPriority = []string{DriverWebGPU, DriverSoftware}
)

// RegisterDriver registers a driver under the given name.
// This is typically called from init() functions in driver packages.
// If a driver with the same name is already registered, it is replaced.
//
// The driver receives the current forge logger when it implements
// SetLogger(*slog.Logger).
func RegisterDriver(name string, d Driver) {
	if d == nil {
		return
	}
	driverMu.Lock()
	drivers[name] = d
	driverMu.Unlock()

	propagateLogger(d, Logger())
}

// UnregisterDriver removes a driver from the registry.
// This is useful for testing.
func UnregisterDriver(name string) {
	driverMu.Lock()
	defer driverMu.Unlock()
	delete(drivers, name)
}

// AvailableDrivers returns the registered driver names in sorted order.
func AvailableDrivers() []string {
	driverMu.RLock()
	defer driverMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LookupDriver returns the driver registered under name.
func LookupDriver(name string) (Driver, error) {
	driverMu.RLock()
	defer driverMu.RUnlock()

	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
	return d, nil
}

// DefaultDriver returns the best registered driver based on priority.
// Priority order: webgpu > software, then any other registered driver.
// Returns nil if no drivers are registered.
func DefaultDriver() Driver {
	driverMu.RLock()
	defer driverMu.RUnlock()

	for _, name := range driverPriority {
		if d, ok := drivers[name]; ok {
			return d
		}
	}

	// Fallback: first by name, so the choice is stable.
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil
	}
	slices.Sort(names)
	return drivers[names[0]]
}

// resolveDriver picks the driver for a Core: the named one when set,
// otherwise the default.
func resolveDriver(name string) (Driver, error) {
	if name != "" {
		return LookupDriver(name)
	}
	d := DefaultDriver()
	if d == nil {
		return nil, fmt.Errorf("%w: no drivers registered", ErrUnavailableDevice)
	}
	return d, nil
}
