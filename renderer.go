// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

// Renderer is the application's rendering logic. Core calls the hooks on
// the host goroutine; none of them are called concurrently.
//
// Embed BaseRenderer to get no-op defaults for every hook.
type Renderer interface {
	InputHandler

	// SetupGraphicsState creates GPU resources for a new binding.
	// Returning an error fails the Bind.
	SetupGraphicsState(g Graphics) error

	// TeardownGraphicsState releases the resources created by setup.
	TeardownGraphicsState()

	// Update advances the simulation by one frame. It runs after a frame
	// permit has been acquired.
	Update()

	// Draw records GPU work for the frame.
	Draw(f *Frame)

	// Resize is called with the new drawable size in device pixels.
	Resize(size Size)

	// UpdateAppearance is called when the host theme changes.
	UpdateAppearance(a Appearance)
}

// BaseRenderer implements Renderer with no-op hooks.
type BaseRenderer struct {
	NopInput
}

var _ Renderer = (*BaseRenderer)(nil)

func (BaseRenderer) SetupGraphicsState(Graphics) error { return nil }
func (BaseRenderer) TeardownGraphicsState()            {}
func (BaseRenderer) Update()                           {}
func (BaseRenderer) Draw(*Frame)                       {}
func (BaseRenderer) Resize(Size)                       {}
func (BaseRenderer) UpdateAppearance(Appearance)       {}
