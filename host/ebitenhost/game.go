// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package ebitenhost runs a forge Core in an ebiten window.
//
// The Game binds nothing itself: the caller creates the Core, binds it to
// a software.Surface and hands both to New. Each ebiten tick polls input
// into a forge.Fanout, each draw produces one frame and copies the
// surface's front buffer to the screen.
package ebitenhost

import (
	"errors"
	"image"
	"math"

	"github.com/gogpu/forge"
	"github.com/gogpu/forge/driver/software"
	"github.com/gogpu/gpucontext"
	"github.com/hajimehoshi/ebiten/v2"
)

// mouseID is the pointer id of the mouse. Touches start after it.
const mouseID = 1

var mouseButtons = []struct {
	ebiten ebiten.MouseButton
	button gpucontext.Button
	mask   gpucontext.Buttons
}{
	{ebiten.MouseButtonLeft, gpucontext.ButtonLeft, gpucontext.ButtonsLeft},
	{ebiten.MouseButtonRight, gpucontext.ButtonRight, gpucontext.ButtonsRight},
	{ebiten.MouseButtonMiddle, gpucontext.ButtonMiddle, gpucontext.ButtonsMiddle},
}

// Game implements ebiten.Game over a forge Core.
type Game struct {
	core    *forge.Core
	surface *software.Surface
	fanout  *forge.Fanout
	in      inputSource

	outside image.Point
	scale   float64
	focused bool
	cursor  image.Point
	buttons gpucontext.Buttons
	touches map[ebiten.TouchID]image.Point

	keys     []ebiten.Key
	touchIDs []ebiten.TouchID
	blit     *ebiten.Image
	err      error
}

var _ ebiten.Game = (*Game)(nil)

// New returns a Game producing frames on core, which must be bound to
// surface.
func New(core *forge.Core, surface *software.Surface) *Game {
	return newGame(core, surface, ebitenInput{})
}

func newGame(core *forge.Core, surface *software.Surface, in inputSource) *Game {
	return &Game{
		core:    core,
		surface: surface,
		fanout:  forge.NewFanout(core, surface),
		in:      in,
		scale:   1,
		focused: true,
		touches: make(map[ebiten.TouchID]image.Point),
	}
}

// Run opens a resizable window and runs g until the window closes or the
// device is lost.
func Run(g *Game, title string, width, height int) error {
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(width, height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	defer g.fanout.Detach()
	return ebiten.RunGame(g)
}

// Fanout returns the dispatcher input is routed through.
func (g *Game) Fanout() *forge.Fanout { return g.fanout }

// Update polls input. It stops the game once a frame failed with
// forge.ErrDeviceLost.
func (g *Game) Update() error {
	if g.err != nil {
		return g.err
	}
	g.pollFocus()
	g.pollKeys()
	g.pollMouse()
	g.pollTouches()
	return nil
}

// Draw produces one frame and shows the latest presented image.
func (g *Game) Draw(screen *ebiten.Image) {
	if err := g.core.ProduceFrame(); err != nil {
		if errors.Is(err, forge.ErrDeviceLost) || errors.Is(err, forge.ErrClosed) {
			g.err = err
		}
		forge.Logger().Warn("ebitenhost: frame failed", "err", err)
	}
	front := g.surface.Front()
	if front == nil {
		return
	}
	fb, sb := front.Bounds(), screen.Bounds()
	if fb.Size() == sb.Size() {
		screen.WritePixels(front.Pix)
		return
	}
	if g.blit == nil || g.blit.Bounds().Size() != fb.Size() {
		if g.blit != nil {
			g.blit.Deallocate()
		}
		g.blit = ebiten.NewImage(fb.Dx(), fb.Dy())
	}
	g.blit.WritePixels(front.Pix)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(sb.Dx())/float64(fb.Dx()), float64(sb.Dy())/float64(fb.Dy()))
	screen.DrawImage(g.blit, op)
}

// Layout reports the screen in device pixels and forwards window size
// changes to the Core.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	scale := g.in.DeviceScaleFactor()
	if scale <= 0 {
		scale = 1
	}
	g.scale = scale
	g.fanout.SetScale(scale)
	if outside := image.Pt(outsideWidth, outsideHeight); outside != g.outside {
		g.outside = outside
		g.fanout.DispatchResize(outsideWidth, outsideHeight)
	}
	return int(math.Round(float64(outsideWidth) * scale)), int(math.Round(float64(outsideHeight) * scale))
}

func (g *Game) pollFocus() {
	if focused := g.in.IsFocused(); focused != g.focused {
		g.focused = focused
		g.fanout.DispatchFocus(focused)
	}
}

func (g *Game) pollKeys() {
	mods := modifiers(g.in.IsKeyPressed)

	g.keys = g.in.AppendJustPressedKeys(g.keys[:0])
	for _, k := range g.keys {
		if key := TranslateKey(k); key != gpucontext.KeyUnknown {
			g.fanout.DispatchKey(key, mods, true)
		}
	}
	g.keys = g.in.AppendJustReleasedKeys(g.keys[:0])
	for _, k := range g.keys {
		if key := TranslateKey(k); key != gpucontext.KeyUnknown {
			g.fanout.DispatchKey(key, mods, false)
		}
	}
}

func (g *Game) pollMouse() {
	x, y := g.in.CursorPosition()
	pos := image.Pt(x, y)
	if pos != g.cursor {
		g.cursor = pos
		g.fanout.DispatchPointer(g.mouseEvent(gpucontext.PointerMove, gpucontext.ButtonNone))
	}
	for _, mb := range mouseButtons {
		if g.in.IsMouseButtonJustPressed(mb.ebiten) {
			g.buttons |= mb.mask
			g.fanout.DispatchPointer(g.mouseEvent(gpucontext.PointerDown, mb.button))
		}
		if g.in.IsMouseButtonJustReleased(mb.ebiten) {
			g.buttons &^= mb.mask
			g.fanout.DispatchPointer(g.mouseEvent(gpucontext.PointerUp, mb.button))
		}
	}
	if dx, dy := g.in.Wheel(); dx != 0 || dy != 0 {
		x, y := g.logical(g.cursor)
		g.fanout.DispatchScroll(gpucontext.ScrollEvent{
			X:         x,
			Y:         y,
			DeltaX:    dx,
			DeltaY:    dy,
			DeltaMode: gpucontext.ScrollDeltaLine,
			Modifiers: modifiers(g.in.IsKeyPressed),
		})
	}
}

func (g *Game) mouseEvent(typ gpucontext.PointerEventType, button gpucontext.Button) gpucontext.PointerEvent {
	var pressure float32
	if g.buttons != gpucontext.ButtonsNone {
		pressure = 0.5
	}
	x, y := g.logical(g.cursor)
	return gpucontext.PointerEvent{
		Type:        typ,
		PointerID:   mouseID,
		X:           x,
		Y:           y,
		Pressure:    pressure,
		PointerType: gpucontext.PointerTypeMouse,
		IsPrimary:   true,
		Button:      button,
		Buttons:     g.buttons,
		Modifiers:   modifiers(g.in.IsKeyPressed),
	}
}

func (g *Game) pollTouches() {
	g.touchIDs = g.in.AppendJustReleasedTouchIDs(g.touchIDs[:0])
	for _, id := range g.touchIDs {
		if _, ok := g.touches[id]; !ok {
			continue
		}
		x, y := g.in.TouchPositionInPreviousTick(id)
		delete(g.touches, id)
		g.fanout.DispatchPointer(g.touchEvent(gpucontext.PointerUp, id, image.Pt(x, y), len(g.touches) == 0))
	}

	g.touchIDs = g.in.AppendTouchIDs(g.touchIDs[:0])
	for _, id := range g.touchIDs {
		x, y := g.in.TouchPosition(id)
		pos := image.Pt(x, y)
		last, ok := g.touches[id]
		switch {
		case !ok:
			primary := len(g.touches) == 0
			g.touches[id] = pos
			g.fanout.DispatchPointer(g.touchEvent(gpucontext.PointerDown, id, pos, primary))
		case last != pos:
			g.touches[id] = pos
			g.fanout.DispatchPointer(g.touchEvent(gpucontext.PointerMove, id, pos, len(g.touches) == 1))
		}
	}
}

func (g *Game) touchEvent(typ gpucontext.PointerEventType, id ebiten.TouchID, pos image.Point, primary bool) gpucontext.PointerEvent {
	x, y := g.logical(pos)
	ev := gpucontext.PointerEvent{
		Type:        typ,
		PointerID:   mouseID + 1 + int(id),
		X:           x,
		Y:           y,
		PointerType: gpucontext.PointerTypeTouch,
		IsPrimary:   primary,
		Button:      gpucontext.ButtonLeft,
		Buttons:     gpucontext.ButtonsLeft,
		Pressure:    0.5,
	}
	if typ == gpucontext.PointerUp {
		ev.Buttons = gpucontext.ButtonsNone
		ev.Pressure = 0
	}
	return ev
}

// logical converts a position on the screen, which Layout sizes in device
// pixels, to window points. The Fanout scales it back for the Core.
func (g *Game) logical(p image.Point) (float64, float64) {
	return float64(p.X) / g.scale, float64(p.Y) / g.scale
}
