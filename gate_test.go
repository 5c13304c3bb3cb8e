// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFrameGateInvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1, -100} {
		g, err := NewFrameGate(capacity)
		assert.ErrorIs(t, err, ErrInvalidCapacity, "capacity %d", capacity)
		assert.Nil(t, g)
	}
	assert.Panics(t, func() { MustNewFrameGate(0) })
}

func TestFrameGateStartsFull(t *testing.T) {
	g := MustNewFrameGate(DefaultFrameGateCapacity)
	assert.Equal(t, 3, g.Capacity())
	assert.Equal(t, 3, g.Available())
	assert.Equal(t, 0, g.Outstanding())
}

func TestFrameGateFourthAcquireBlocks(t *testing.T) {
	g := MustNewFrameGate(3)
	for range 3 {
		g.Acquire()
	}
	require.Equal(t, 0, g.Available())

	acquired := make(chan struct{})
	go func() {
		g.Acquire()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("4th Acquire returned without a Release")
	case <-time.After(50 * time.Millisecond):
	}

	require.True(t, g.Release())
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("4th Acquire did not return after Release")
	}
	assert.Equal(t, 0, g.Available())
}

func TestFrameGateReleaseClamps(t *testing.T) {
	g := MustNewFrameGate(2)
	assert.False(t, g.Release(), "release on a full gate must be discarded")
	assert.Equal(t, 2, g.Available())
	assert.Equal(t, uint64(1), g.Discarded())
	assert.Equal(t, uint64(0), g.Released())

	g.Acquire()
	assert.True(t, g.Release())
	assert.False(t, g.Release())
	assert.Equal(t, 2, g.Available())
	assert.Equal(t, uint64(1), g.Released())
	assert.Equal(t, uint64(2), g.Discarded())
}

func TestFrameGateTryAcquire(t *testing.T) {
	g := MustNewFrameGate(1)
	assert.True(t, g.TryAcquire())
	assert.False(t, g.TryAcquire())
	g.Release()
	assert.True(t, g.TryAcquire())
}

func TestFrameGateAcquireContextCancelled(t *testing.T) {
	g := MustNewFrameGate(1)
	g.Acquire()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := g.AcquireContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The cancelled call must not have consumed the next permit.
	g.Release()
	assert.Equal(t, 1, g.Available())
	require.NoError(t, g.AcquireContext(context.Background()))
	assert.Equal(t, 0, g.Available())
}

func TestFrameGateDrainWithOutstanding(t *testing.T) {
	tests := []struct {
		name     string
		inFlight int
	}{
		{"none in flight", 0},
		{"one in flight", 1},
		{"all in flight", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := MustNewFrameGate(3)
			for range tt.inFlight {
				g.Acquire()
			}

			restored := g.Drain()
			assert.Equal(t, tt.inFlight, restored)
			assert.Equal(t, g.Capacity(), g.Available())
			assert.Equal(t, uint64(3-tt.inFlight), g.Discarded())

			// Straggling completions after the drain are discarded.
			for range tt.inFlight {
				assert.False(t, g.Release())
			}
			assert.Equal(t, g.Capacity(), g.Available())
		})
	}
}

func TestFrameGateWaitIdle(t *testing.T) {
	g := MustNewFrameGate(3)
	require.NoError(t, g.WaitIdle(context.Background()), "full gate is idle")

	g.Acquire()
	g.Acquire()

	done := make(chan error, 1)
	go func() { done <- g.WaitIdle(context.Background()) }()

	g.Release()
	select {
	case <-done:
		t.Fatal("WaitIdle returned with a permit outstanding")
	case <-time.After(30 * time.Millisecond):
	}

	g.Release()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitIdle did not return after all permits came back")
	}
}

func TestFrameGateWaitIdleTimeout(t *testing.T) {
	g := MustNewFrameGate(2)
	g.Acquire()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, g.WaitIdle(ctx), context.DeadlineExceeded)
	assert.Equal(t, 1, g.Outstanding())
}

func TestFrameGateConcurrentBounds(t *testing.T) {
	const (
		capacity = 3
		workers  = 8
		rounds   = 500
	)
	g := MustNewFrameGate(capacity)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	violations := make(chan int, 1)

	// Observer.
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			if a := g.Available(); a < 0 || a > capacity {
				select {
				case violations <- a:
				default:
				}
			}
		}
	}()

	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rounds {
				if g.TryAcquire() {
					g.Release()
				}
				// Extra releases and drains must never push the count
				// above capacity.
				if (i+w)%7 == 0 {
					g.Release()
				}
				if (i+w)%97 == 0 {
					g.Drain()
				}
			}
		}()
	}
	wg.Wait()
	close(stop)

	select {
	case a := <-violations:
		t.Fatalf("Available() = %d, outside [0, %d]", a, capacity)
	default:
	}
	assert.Equal(t, capacity, g.Available())
}
