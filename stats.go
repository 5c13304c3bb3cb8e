// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import "sync/atomic"

// Stats is a snapshot of a Core's frame accounting.
type Stats struct {
	// Begun counts frames that acquired a permit.
	Begun uint64
	// Submitted counts frames committed to the GPU.
	Submitted uint64
	// Skipped counts frames dropped because no drawable was ready.
	Skipped uint64
	// Orphaned counts frames ended after their Core was unbound.
	Orphaned uint64
	// Failed counts frames whose commit returned an error.
	Failed uint64

	// Released and Discarded mirror the gate's counters; InFlight is the
	// number of permits currently held.
	Released  uint64
	Discarded uint64
	InFlight  int
}

type frameCounters struct {
	begun     atomic.Uint64
	submitted atomic.Uint64
	skipped   atomic.Uint64
	orphaned  atomic.Uint64
	failed    atomic.Uint64
}

// Stats returns the current frame accounting. It is safe to call from any
// goroutine.
func (c *Core) Stats() Stats {
	return Stats{
		Begun:     c.counters.begun.Load(),
		Submitted: c.counters.submitted.Load(),
		Skipped:   c.counters.skipped.Load(),
		Orphaned:  c.counters.orphaned.Load(),
		Failed:    c.counters.failed.Load(),
		Released:  c.gate.Released(),
		Discarded: c.gate.Discarded(),
		InFlight:  c.gate.Outstanding(),
	}
}
