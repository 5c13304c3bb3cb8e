// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// DefaultFrameGateCapacity is the number of frames that may be in flight
// at once when no capacity is configured (triple buffering).
const DefaultFrameGateCapacity = 3

// FrameGate is a bounded counting admission primitive. Each permit grants
// the right to prepare one frame; the permit is returned when the GPU
// reports the frame complete.
//
// Permits are held as tokens in a buffered channel, so Release never blocks
// and releases beyond capacity are discarded rather than accumulated. This
// keeps Available within [0, Capacity] even when a forced drain races with
// straggling completions.
//
// All methods are safe for concurrent use. Release is typically called from
// a GPU completion goroutine while Acquire runs on the frame-producing one.
type FrameGate struct {
	permits  chan struct{}
	capacity int

	released  atomic.Uint64
	discarded atomic.Uint64

	// changed is closed and replaced after every accepted release so that
	// WaitIdle can observe the gate filling up.
	mu      sync.Mutex
	changed chan struct{}
}

// NewFrameGate creates a gate with capacity free permits.
func NewFrameGate(capacity int) (*FrameGate, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	g := &FrameGate{
		permits:  make(chan struct{}, capacity),
		capacity: capacity,
		changed:  make(chan struct{}),
	}
	for range capacity {
		g.permits <- struct{}{}
	}
	return g, nil
}

// MustNewFrameGate is like NewFrameGate but panics on error.
func MustNewFrameGate(capacity int) *FrameGate {
	g, err := NewFrameGate(capacity)
	if err != nil {
		panic(err)
	}
	return g
}

// Acquire blocks until a permit is available and takes it.
func (g *FrameGate) Acquire() {
	<-g.permits
}

// AcquireContext is like Acquire but gives up when ctx is done.
// A cancelled call never consumes a permit.
func (g *FrameGate) AcquireContext(ctx context.Context) error {
	select {
	case <-g.permits:
		return nil
	default:
	}
	select {
	case <-g.permits:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a permit if one is free and reports whether it did.
func (g *FrameGate) TryAcquire() bool {
	select {
	case <-g.permits:
		return true
	default:
		return false
	}
}

// Release returns a permit and wakes one blocked Acquire.
// It reports false when the gate was already full and the release was
// discarded.
func (g *FrameGate) Release() bool {
	select {
	case g.permits <- struct{}{}:
	default:
		g.discarded.Add(1)
		return false
	}
	g.released.Add(1)

	g.mu.Lock()
	close(g.changed)
	g.changed = make(chan struct{})
	g.mu.Unlock()
	return true
}

// Drain releases Capacity permits unconditionally. It is the recovery path
// for teardown when outstanding completions are known never to fire.
// It returns the number of permits that were actually restored.
func (g *FrameGate) Drain() int {
	restored := 0
	for range g.capacity {
		if g.Release() {
			restored++
		}
	}
	return restored
}

// WaitIdle blocks until every permit has been returned or ctx is done.
func (g *FrameGate) WaitIdle(ctx context.Context) error {
	for {
		g.mu.Lock()
		if len(g.permits) == g.capacity {
			g.mu.Unlock()
			return nil
		}
		changed := g.changed
		g.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Capacity returns the fixed number of permits.
func (g *FrameGate) Capacity() int {
	return g.capacity
}

// Available returns the number of free permits.
func (g *FrameGate) Available() int {
	return len(g.permits)
}

// Outstanding returns the number of permits currently held by frames.
func (g *FrameGate) Outstanding() int {
	return g.capacity - len(g.permits)
}

// Released returns how many releases the gate has accepted.
func (g *FrameGate) Released() uint64 {
	return g.released.Load()
}

// Discarded returns how many releases were dropped because the gate was full.
func (g *FrameGate) Discarded() uint64 {
	return g.discarded.Load()
}
