// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ebitenhost

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// inputSource is the slice of ebiten's global input state the Game polls.
type inputSource interface {
	AppendJustPressedKeys(keys []ebiten.Key) []ebiten.Key
	AppendJustReleasedKeys(keys []ebiten.Key) []ebiten.Key
	IsKeyPressed(k ebiten.Key) bool

	CursorPosition() (x, y int)
	IsMouseButtonJustPressed(b ebiten.MouseButton) bool
	IsMouseButtonJustReleased(b ebiten.MouseButton) bool
	Wheel() (dx, dy float64)

	AppendTouchIDs(ids []ebiten.TouchID) []ebiten.TouchID
	AppendJustReleasedTouchIDs(ids []ebiten.TouchID) []ebiten.TouchID
	TouchPosition(id ebiten.TouchID) (x, y int)
	TouchPositionInPreviousTick(id ebiten.TouchID) (x, y int)

	IsFocused() bool
	DeviceScaleFactor() float64
}

// ebitenInput reads the live ebiten state.
type ebitenInput struct{}

func (ebitenInput) AppendJustPressedKeys(keys []ebiten.Key) []ebiten.Key {
	return inpututil.AppendJustPressedKeys(keys)
}

func (ebitenInput) AppendJustReleasedKeys(keys []ebiten.Key) []ebiten.Key {
	return inpututil.AppendJustReleasedKeys(keys)
}

func (ebitenInput) IsKeyPressed(k ebiten.Key) bool { return ebiten.IsKeyPressed(k) }
func (ebitenInput) CursorPosition() (int, int)     { return ebiten.CursorPosition() }

func (ebitenInput) IsMouseButtonJustPressed(b ebiten.MouseButton) bool {
	return inpututil.IsMouseButtonJustPressed(b)
}

func (ebitenInput) IsMouseButtonJustReleased(b ebiten.MouseButton) bool {
	return inpututil.IsMouseButtonJustReleased(b)
}

func (ebitenInput) Wheel() (float64, float64) { return ebiten.Wheel() }

func (ebitenInput) AppendTouchIDs(ids []ebiten.TouchID) []ebiten.TouchID {
	return ebiten.AppendTouchIDs(ids)
}

func (ebitenInput) AppendJustReleasedTouchIDs(ids []ebiten.TouchID) []ebiten.TouchID {
	return inpututil.AppendJustReleasedTouchIDs(ids)
}

func (ebitenInput) TouchPosition(id ebiten.TouchID) (int, int) { return ebiten.TouchPosition(id) }

func (ebitenInput) TouchPositionInPreviousTick(id ebiten.TouchID) (int, int) {
	return inpututil.TouchPositionInPreviousTick(id)
}

func (ebitenInput) IsFocused() bool { return ebiten.IsFocused() }

func (ebitenInput) DeviceScaleFactor() float64 {
	if m := ebiten.Monitor(); m != nil {
		return m.DeviceScaleFactor()
	}
	return 1
}
