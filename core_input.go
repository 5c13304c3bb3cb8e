// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import "github.com/gogpu/gpucontext"

// The InputHandler methods of Core forward events to the renderer while a
// surface is bound and drop them otherwise.

func (c *Core) PointerMoved(ev gpucontext.PointerEvent) {
	if c.isSetup.Load() {
		c.renderer.PointerMoved(ev)
	}
}

func (c *Core) PointerPressed(ev gpucontext.PointerEvent) {
	if c.isSetup.Load() {
		c.renderer.PointerPressed(ev)
	}
}

func (c *Core) PointerReleased(ev gpucontext.PointerEvent) {
	if c.isSetup.Load() {
		c.renderer.PointerReleased(ev)
	}
}

func (c *Core) PointerEntered(ev gpucontext.PointerEvent) {
	if c.isSetup.Load() {
		c.renderer.PointerEntered(ev)
	}
}

func (c *Core) PointerExited(ev gpucontext.PointerEvent) {
	if c.isSetup.Load() {
		c.renderer.PointerExited(ev)
	}
}

func (c *Core) KeyPressed(key gpucontext.Key, mods gpucontext.Modifiers) {
	if c.isSetup.Load() {
		c.renderer.KeyPressed(key, mods)
	}
}

func (c *Core) KeyReleased(key gpucontext.Key, mods gpucontext.Modifiers) {
	if c.isSetup.Load() {
		c.renderer.KeyReleased(key, mods)
	}
}

func (c *Core) ModifiersChanged(mods gpucontext.Modifiers) {
	if c.isSetup.Load() {
		c.renderer.ModifiersChanged(mods)
	}
}

func (c *Core) TouchBegan(ev gpucontext.PointerEvent) {
	if c.isSetup.Load() {
		c.renderer.TouchBegan(ev)
	}
}

func (c *Core) TouchMoved(ev gpucontext.PointerEvent) {
	if c.isSetup.Load() {
		c.renderer.TouchMoved(ev)
	}
}

func (c *Core) TouchEnded(ev gpucontext.PointerEvent) {
	if c.isSetup.Load() {
		c.renderer.TouchEnded(ev)
	}
}

func (c *Core) TouchCancelled(ev gpucontext.PointerEvent) {
	if c.isSetup.Load() {
		c.renderer.TouchCancelled(ev)
	}
}

func (c *Core) Pinch(ev gpucontext.GestureEvent) {
	if c.isSetup.Load() {
		c.renderer.Pinch(ev)
	}
}

func (c *Core) Rotate(ev gpucontext.GestureEvent) {
	if c.isSetup.Load() {
		c.renderer.Rotate(ev)
	}
}

func (c *Core) Scroll(ev gpucontext.ScrollEvent) {
	if c.isSetup.Load() {
		c.renderer.Scroll(ev)
	}
}
