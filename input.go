// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import "github.com/gogpu/gpucontext"

// InputHandler receives input events, one method per category.
//
// Hosts deliver events on the goroutine that owns the UI event loop, one
// at a time. Embed NopInput to implement only the categories you need.
type InputHandler interface {
	PointerMoved(ev gpucontext.PointerEvent)
	PointerPressed(ev gpucontext.PointerEvent)
	PointerReleased(ev gpucontext.PointerEvent)
	PointerEntered(ev gpucontext.PointerEvent)
	PointerExited(ev gpucontext.PointerEvent)

	KeyPressed(key gpucontext.Key, mods gpucontext.Modifiers)
	KeyReleased(key gpucontext.Key, mods gpucontext.Modifiers)
	ModifiersChanged(mods gpucontext.Modifiers)

	TouchBegan(ev gpucontext.PointerEvent)
	TouchMoved(ev gpucontext.PointerEvent)
	TouchEnded(ev gpucontext.PointerEvent)
	TouchCancelled(ev gpucontext.PointerEvent)

	Pinch(ev gpucontext.GestureEvent)
	Rotate(ev gpucontext.GestureEvent)
	Scroll(ev gpucontext.ScrollEvent)
}

// NopInput implements InputHandler with no-op methods.
type NopInput struct{}

var _ InputHandler = NopInput{}

func (NopInput) PointerMoved(gpucontext.PointerEvent)             {}
func (NopInput) PointerPressed(gpucontext.PointerEvent)           {}
func (NopInput) PointerReleased(gpucontext.PointerEvent)          {}
func (NopInput) PointerEntered(gpucontext.PointerEvent)           {}
func (NopInput) PointerExited(gpucontext.PointerEvent)            {}
func (NopInput) KeyPressed(gpucontext.Key, gpucontext.Modifiers)  {}
func (NopInput) KeyReleased(gpucontext.Key, gpucontext.Modifiers) {}
func (NopInput) ModifiersChanged(gpucontext.Modifiers)            {}
func (NopInput) TouchBegan(gpucontext.PointerEvent)               {}
func (NopInput) TouchMoved(gpucontext.PointerEvent)               {}
func (NopInput) TouchEnded(gpucontext.PointerEvent)               {}
func (NopInput) TouchCancelled(gpucontext.PointerEvent)           {}
func (NopInput) Pinch(gpucontext.GestureEvent)                    {}
func (NopInput) Rotate(gpucontext.GestureEvent)                   {}
func (NopInput) Scroll(gpucontext.ScrollEvent)                    {}

// isModifierKey reports whether key is a modifier key itself.
func isModifierKey(key gpucontext.Key) bool {
	switch key {
	case gpucontext.KeyLeftShift, gpucontext.KeyRightShift,
		gpucontext.KeyLeftControl, gpucontext.KeyRightControl,
		gpucontext.KeyLeftAlt, gpucontext.KeyRightAlt,
		gpucontext.KeyLeftSuper, gpucontext.KeyRightSuper,
		gpucontext.KeyCapsLock, gpucontext.KeyNumLock:
		return true
	}
	return false
}
