// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

// Frame is one frame between BeginFrame and EndFrame. It is only valid on
// the goroutine that produced it, until EndFrame returns.
type Frame struct {
	index   uint64
	cmd     CommandBuffer
	surface Surface
	size    Size
	binding ViewBinding

	drawable Drawable
	fetched  bool

	// orphaned is set when the Core is unbound while the frame is being
	// prepared. Its permit is returned on EndFrame without submission.
	orphaned bool
	ended    bool
}

// Index returns the frame's sequence number, starting at 1.
func (f *Frame) Index() uint64 { return f.index }

// CommandBuffer returns the frame's command buffer.
func (f *Frame) CommandBuffer() CommandBuffer { return f.cmd }

// Size returns the drawable size the frame was begun against.
func (f *Frame) Size() Size { return f.size }

// Binding returns the view binding the frame was begun against.
func (f *Frame) Binding() ViewBinding { return f.binding }

// Drawable returns the surface's current drawable, fetching it on first
// use. It returns nil when the surface has no drawable ready; EndFrame
// then skips the frame.
func (f *Frame) Drawable() Drawable {
	if !f.fetched && !f.orphaned {
		f.fetched = true
		if d, ok := f.surface.NextDrawable(); ok {
			f.drawable = d
		}
	}
	return f.drawable
}

// discard abandons the command buffer and any fetched drawable.
func (f *Frame) discard() {
	if f.drawable != nil {
		f.drawable.Discard()
		f.drawable = nil
	}
	f.cmd.Discard()
}
