// Package forge binds an application's rendering logic to a drawable
// surface and paces frame production against GPU completion.
//
// # Overview
//
// A host creates a [Core] for a [Renderer], binds it to a [Surface] and
// calls [Core.ProduceFrame] on every display refresh. Each frame takes a
// permit from the Core's [FrameGate] before any CPU work starts; the permit
// is returned when the driver reports the frame's command buffer complete.
// With the default capacity of three the CPU can run at most three frames
// ahead of the GPU.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/forge"
//	    _ "github.com/gogpu/forge/driver/software"
//	)
//
//	type scene struct{ forge.BaseRenderer }
//
//	func (s *scene) Draw(f *forge.Frame) { /* record GPU work */ }
//
//	core, err := forge.New(&scene{})
//	if err != nil { ... }
//	if err := core.Bind(surface, forge.BindHints{}); err != nil { ... }
//	for running {
//	    if err := core.ProduceFrame(); err != nil { ... }
//	}
//	core.Close(ctx)
//
// # Drivers
//
// Devices come from drivers registered by name:
//   - driver/webgpu: github.com/gogpu/wgpu devices (preferred)
//   - driver/software: CPU device for headless use and tests
//
// Import a driver package for its side effect, or select one explicitly
// with [WithDriver].
//
// # Threading
//
// Bind, Unbind, the frame methods, NotifyResize and the input methods run
// on the host's UI goroutine. GPU completions arrive on driver goroutines
// and touch only the FrameGate. NotifyAppearance may be called from any
// goroutine.
package forge
