// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"context"
	"fmt"
	"strings"
)

// Appearance is the host's light/dark theme.
type Appearance int32

const (
	// AppearanceUnknown means the host has not reported a theme yet.
	AppearanceUnknown Appearance = iota
	AppearanceDark
	AppearanceLight
)

// String returns the appearance name.
func (a Appearance) String() string {
	switch a {
	case AppearanceUnknown:
		return "unknown"
	case AppearanceDark:
		return "dark"
	case AppearanceLight:
		return "light"
	default:
		return fmt.Sprintf("Appearance(%d)", int32(a))
	}
}

// ParseAppearance parses "dark", "light" or "unknown" (case-insensitive,
// surrounding space ignored). An empty string parses as AppearanceUnknown.
func ParseAppearance(s string) (Appearance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dark":
		return AppearanceDark, nil
	case "light":
		return AppearanceLight, nil
	case "", "unknown":
		return AppearanceUnknown, nil
	}
	return AppearanceUnknown, fmt.Errorf("forge: unknown appearance %q", s)
}

// NotifyAppearance records the host theme and calls the renderer's
// UpdateAppearance hook when the value changed. While unbound the value is
// only recorded; Bind hands it to the renderer.
//
// NotifyAppearance may be called from any goroutine. Concurrent calls are
// applied one at a time in arrival order. The hook runs synchronously on
// the calling goroutine.
func (c *Core) NotifyAppearance(a Appearance) {
	// Acquire with a background context cannot fail.
	_ = c.appearanceSem.Acquire(context.Background(), 1)
	defer c.appearanceSem.Release(1)

	if Appearance(c.appearance.Swap(int32(a))) == a {
		return
	}
	Logger().Debug("forge: appearance changed", "appearance", a, "bound", c.isSetup.Load())
	if c.isSetup.Load() {
		c.renderer.UpdateAppearance(a)
	}
}

// Appearance returns the last appearance reported by the host.
func (c *Core) Appearance() Appearance {
	return Appearance(c.appearance.Load())
}

// replayAppearance hands a known appearance to a freshly set up renderer.
func (c *Core) replayAppearance() {
	_ = c.appearanceSem.Acquire(context.Background(), 1)
	defer c.appearanceSem.Release(1)

	if a := Appearance(c.appearance.Load()); a != AppearanceUnknown {
		c.renderer.UpdateAppearance(a)
	}
}
