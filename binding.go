// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Size is a drawable size in device pixels.
type Size struct {
	Width  int
	Height int
}

// IsZero reports whether either dimension is zero or negative, which is the
// case for a surface that has not been laid out yet.
func (s Size) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

// String returns the size as "WxH".
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// ViewBinding is the association between a Core and a drawable surface.
// It is replaced as a whole on Bind and only DrawableSize changes between
// binds.
type ViewBinding struct {
	// ColorFormat is the pixel format of the drawable's color attachment.
	ColorFormat gputypes.TextureFormat

	// DepthFormat is the depth (or combined depth/stencil) format.
	DepthFormat gputypes.TextureFormat

	// StencilFormat is TextureFormatUndefined when the depth format carries
	// no stencil aspect. It is never defaulted to a separate stencil format.
	StencilFormat gputypes.TextureFormat

	// SampleCount is the multisampling factor, always >= 1.
	SampleCount int

	// DrawableSize is the current drawable size; may be zero.
	DrawableSize Size
}

// HasStencil reports whether a stencil aspect is available.
func (b ViewBinding) HasStencil() bool {
	return b.StencilFormat != gputypes.TextureFormatUndefined
}

// BindHints carries the host's format preferences for Bind.
// Zero values mean "no preference".
type BindHints struct {
	ColorFormat gputypes.TextureFormat
	DepthFormat gputypes.TextureFormat
	SampleCount int
}

// formatSupporter is implemented by devices that can answer per-format
// support queries beyond the feature set.
type formatSupporter interface {
	SupportsFormat(format gputypes.TextureFormat) bool
}

// NegotiateBinding resolves the formats and sample count for binding dev to
// surface.
//
// Depth policy: the hinted depth format is honored when the device supports
// it; otherwise Depth32FloatStencil8 is preferred when the device reports
// FeatureDepth32FloatStencil8, falling back to Depth32Float with no stencil.
func NegotiateBinding(dev Device, surface Surface, hints BindHints, preferredSamples int) ViewBinding {
	b := ViewBinding{
		ColorFormat:  hints.ColorFormat,
		DrawableSize: surface.DrawableSize(),
	}
	if b.ColorFormat == gputypes.TextureFormatUndefined {
		b.ColorFormat = surface.PreferredFormat()
	}
	if b.ColorFormat == gputypes.TextureFormatUndefined {
		b.ColorFormat = gputypes.TextureFormatBGRA8Unorm
	}

	b.DepthFormat = negotiateDepth(dev, hints.DepthFormat)
	if b.DepthFormat.HasStencil() {
		b.StencilFormat = b.DepthFormat
	}

	requested := hints.SampleCount
	if requested <= 0 {
		requested = preferredSamples
	}
	b.SampleCount = negotiateSampleCount(dev, requested)
	return b
}

func negotiateDepth(dev Device, hint gputypes.TextureFormat) gputypes.TextureFormat {
	if hint != gputypes.TextureFormatUndefined && hint.HasDepth() && supportsDepthFormat(dev, hint) {
		return hint
	}
	if supportsDepthFormat(dev, gputypes.TextureFormatDepth32FloatStencil8) {
		return gputypes.TextureFormatDepth32FloatStencil8
	}
	return gputypes.TextureFormatDepth32Float
}

func supportsDepthFormat(dev Device, f gputypes.TextureFormat) bool {
	if f == gputypes.TextureFormatDepth32FloatStencil8 &&
		!dev.Features().Contains(gputypes.FeatureDepth32FloatStencil8) {
		return false
	}
	if fs, ok := dev.(formatSupporter); ok {
		return fs.SupportsFormat(f)
	}
	return true
}

// negotiateSampleCount returns the largest power of two not above requested
// that the device supports. It never returns less than 1.
func negotiateSampleCount(dev Device, requested int) int {
	if requested <= 1 {
		return 1
	}
	n := 1
	for n*2 <= requested {
		n *= 2
	}
	for ; n > 1; n /= 2 {
		if dev.SupportsSampleCount(n) {
			return n
		}
	}
	return 1
}
