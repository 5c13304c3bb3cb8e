// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
)

// Fanout routes host input events to an InputHandler.
//
// It filters out events delivered after Detach, events for a surface the
// target is no longer bound to, and key events while the window is not
// focused. Dispatch is serialized: at most one handler method runs at a
// time.
//
// Event-driven hosts call Attach with their gpucontext event source.
// Polling hosts call the Dispatch methods directly.
type Fanout struct {
	target InputHandler
	origin Surface

	detached atomic.Bool

	mu      sync.Mutex
	focused bool
	scale   float64
	mods    gpucontext.Modifiers
	buttons gpucontext.Buttons
	x, y    float64
}

// boundChecker is implemented by targets that know their bound surface,
// such as *Core.
type boundChecker interface {
	IsBoundTo(s Surface) bool
}

// resizeNotifier is implemented by targets that accept resize
// notifications, such as *Core.
type resizeNotifier interface {
	NotifyResize(width, height int)
}

// NewFanout creates a Fanout delivering to target. Events are accepted
// only while target reports being bound to origin; a nil origin, or a
// target that cannot report its binding, accepts all events.
func NewFanout(target InputHandler, origin Surface) *Fanout {
	return &Fanout{
		target:  target,
		origin:  origin,
		focused: true,
		scale:   1,
	}
}

// SetScale sets the device scale factor. Window sizes and event
// coordinates arrive in logical pixels and are multiplied by it, so
// handlers see surface pixels. Non-positive values reset it to 1.
func (f *Fanout) SetScale(scale float64) {
	if scale <= 0 {
		scale = 1
	}
	f.mu.Lock()
	f.scale = scale
	f.mu.Unlock()
}

// Attach registers the Fanout's callbacks on source. It uses every one of
// gpucontext.EventSource, PointerEventSource, GestureEventSource and
// ScrollEventSource that source implements. When the unified pointer or
// scroll interface is available the legacy mouse or wheel callbacks are not
// registered, so each event is delivered once.
func (f *Fanout) Attach(source any) {
	pes, hasPointer := source.(gpucontext.PointerEventSource)
	ses, hasScroll := source.(gpucontext.ScrollEventSource)

	if es, ok := source.(gpucontext.EventSource); ok {
		es.OnKeyPress(func(key gpucontext.Key, mods gpucontext.Modifiers) {
			f.DispatchKey(key, mods, true)
		})
		es.OnKeyRelease(func(key gpucontext.Key, mods gpucontext.Modifiers) {
			f.DispatchKey(key, mods, false)
		})
		es.OnResize(f.DispatchResize)
		es.OnFocus(f.DispatchFocus)

		if !hasPointer {
			es.OnMouseMove(f.mouseMove)
			es.OnMousePress(func(b gpucontext.MouseButton, x, y float64) {
				f.mouseButton(gpucontext.PointerDown, b, x, y)
			})
			es.OnMouseRelease(func(b gpucontext.MouseButton, x, y float64) {
				f.mouseButton(gpucontext.PointerUp, b, x, y)
			})
		}
		if !hasScroll {
			es.OnScroll(f.wheel)
		}
	}
	if hasPointer {
		pes.OnPointer(f.DispatchPointer)
	}
	if hasScroll {
		ses.OnScrollEvent(f.DispatchScroll)
	}
	if ges, ok := source.(gpucontext.GestureEventSource); ok {
		ges.OnGesture(f.DispatchGesture)
	}
}

// Detach stops delivery. Callbacks already registered on a source stay
// registered but drop every event.
func (f *Fanout) Detach() {
	f.detached.Store(true)
}

// accept reports whether events may currently be delivered.
func (f *Fanout) accept() bool {
	if f.detached.Load() {
		return false
	}
	if f.origin == nil {
		return true
	}
	if bc, ok := f.target.(boundChecker); ok {
		return bc.IsBoundTo(f.origin)
	}
	return true
}

// DispatchPointer delivers a pointer event. Touch pointers go to the touch
// methods, everything else to the pointer methods.
func (f *Fanout) DispatchPointer(ev gpucontext.PointerEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.accept() {
		return
	}
	f.x, f.y = ev.X, ev.Y
	f.buttons = ev.Buttons
	ev.X *= f.scale
	ev.Y *= f.scale

	if ev.PointerType == gpucontext.PointerTypeTouch {
		switch ev.Type {
		case gpucontext.PointerDown:
			f.target.TouchBegan(ev)
		case gpucontext.PointerMove:
			f.target.TouchMoved(ev)
		case gpucontext.PointerUp:
			f.target.TouchEnded(ev)
		case gpucontext.PointerCancel:
			f.target.TouchCancelled(ev)
		}
		return
	}

	switch ev.Type {
	case gpucontext.PointerDown:
		f.target.PointerPressed(ev)
	case gpucontext.PointerUp, gpucontext.PointerCancel:
		f.target.PointerReleased(ev)
	case gpucontext.PointerMove:
		f.target.PointerMoved(ev)
	case gpucontext.PointerEnter:
		f.target.PointerEntered(ev)
	case gpucontext.PointerLeave:
		f.target.PointerExited(ev)
	}
}

// DispatchKey delivers a key press or release. Key events are dropped
// while the window is unfocused. A modifier key, or any change in the
// modifier state, is also reported through ModifiersChanged.
func (f *Fanout) DispatchKey(key gpucontext.Key, mods gpucontext.Modifiers, pressed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.focused || !f.accept() {
		return
	}
	if pressed {
		f.target.KeyPressed(key, mods)
	} else {
		f.target.KeyReleased(key, mods)
	}
	if isModifierKey(key) || mods != f.mods {
		f.mods = mods
		f.target.ModifiersChanged(mods)
	}
}

// DispatchGesture delivers a gesture as Pinch when it zooms and as Rotate
// when it rotates. A gesture doing both is delivered to both.
func (f *Fanout) DispatchGesture(ev gpucontext.GestureEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.accept() {
		return
	}
	ev.Center = f.point(ev.Center)
	ev.TranslationDelta = f.point(ev.TranslationDelta)
	if ev.ZoomDelta != 0 && ev.ZoomDelta != 1 {
		f.target.Pinch(ev)
	}
	if ev.RotationDelta != 0 {
		f.target.Rotate(ev)
	}
}

// DispatchScroll delivers a scroll event.
func (f *Fanout) DispatchScroll(ev gpucontext.ScrollEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.accept() {
		return
	}
	ev.X *= f.scale
	ev.Y *= f.scale
	f.target.Scroll(ev)
}

// point scales p to surface pixels. Caller must hold f.mu.
func (f *Fanout) point(p gpucontext.Point) gpucontext.Point {
	return gpucontext.Point{X: p.X * f.scale, Y: p.Y * f.scale}
}

// DispatchResize forwards a window size in logical pixels to the target's
// NotifyResize, scaled to device pixels.
func (f *Fanout) DispatchResize(width, height int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.accept() {
		return
	}
	rn, ok := f.target.(resizeNotifier)
	if !ok {
		return
	}
	rn.NotifyResize(
		int(math.Round(float64(width)*f.scale)),
		int(math.Round(float64(height)*f.scale)))
}

// DispatchFocus records window focus. Losing focus clears the tracked
// modifier state.
func (f *Fanout) DispatchFocus(focused bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focused = focused
	if !focused {
		f.mods = 0
	}
}

func (f *Fanout) mouseMove(x, y float64) {
	f.DispatchPointer(gpucontext.PointerEvent{
		Type:        gpucontext.PointerMove,
		PointerID:   1,
		X:           x,
		Y:           y,
		PointerType: gpucontext.PointerTypeMouse,
		IsPrimary:   true,
		Button:      gpucontext.ButtonNone,
		Buttons:     f.currentButtons(),
	})
}

func (f *Fanout) mouseButton(typ gpucontext.PointerEventType, b gpucontext.MouseButton, x, y float64) {
	button, mask := mouseButton(b)
	buttons := f.currentButtons()
	if typ == gpucontext.PointerDown {
		buttons |= mask
	} else {
		buttons &^= mask
	}
	var pressure float32
	if buttons != gpucontext.ButtonsNone {
		pressure = 0.5
	}
	f.DispatchPointer(gpucontext.PointerEvent{
		Type:        typ,
		PointerID:   1,
		X:           x,
		Y:           y,
		Pressure:    pressure,
		PointerType: gpucontext.PointerTypeMouse,
		IsPrimary:   true,
		Button:      button,
		Buttons:     buttons,
	})
}

func (f *Fanout) wheel(dx, dy float64) {
	f.mu.Lock()
	x, y := f.x, f.y
	f.mu.Unlock()
	f.DispatchScroll(gpucontext.ScrollEvent{
		X:         x,
		Y:         y,
		DeltaX:    dx,
		DeltaY:    dy,
		DeltaMode: gpucontext.ScrollDeltaLine,
	})
}

func (f *Fanout) currentButtons() gpucontext.Buttons {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buttons
}

func mouseButton(b gpucontext.MouseButton) (gpucontext.Button, gpucontext.Buttons) {
	switch b {
	case gpucontext.MouseButtonLeft:
		return gpucontext.ButtonLeft, gpucontext.ButtonsLeft
	case gpucontext.MouseButtonRight:
		return gpucontext.ButtonRight, gpucontext.ButtonsRight
	case gpucontext.MouseButtonMiddle:
		return gpucontext.ButtonMiddle, gpucontext.ButtonsMiddle
	case gpucontext.MouseButton4:
		return gpucontext.ButtonX1, gpucontext.ButtonsX1
	case gpucontext.MouseButton5:
		return gpucontext.ButtonX2, gpucontext.ButtonsX2
	default:
		return gpucontext.ButtonNone, gpucontext.ButtonsNone
	}
}
