// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package webgpu_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/forge"
	"github.com/gogpu/forge/driver/webgpu"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearRenderer clears each drawable and records its size.
type clearRenderer struct {
	forge.BaseRenderer

	mu    sync.Mutex
	sizes []forge.Size
}

func (r *clearRenderer) Draw(f *forge.Frame) {
	d := f.Drawable()
	if d == nil {
		return
	}
	r.mu.Lock()
	r.sizes = append(r.sizes, d.Size())
	r.mu.Unlock()
	if cb, ok := f.CommandBuffer().(*webgpu.CommandBuffer); ok {
		cb.Clear(d, gputypes.Color{R: 0, G: 0.5, B: 0.5, A: 1})
	}
}

func newCore(t *testing.T, s *webgpu.Surface) (*forge.Core, *clearRenderer) {
	t.Helper()
	name := "webgpu-" + strings.ReplaceAll(t.Name(), "/", "-")
	forge.RegisterDriver(name, webgpu.NewDriver(
		webgpu.WithBackend(&noop.API{}),
		webgpu.WithCompletionTimeout(time.Second),
	))
	t.Cleanup(func() { forge.UnregisterDriver(name) })

	r := &clearRenderer{}
	core, err := forge.New(r, forge.WithDriver(name))
	require.NoError(t, err)
	if err := core.Bind(s, forge.BindHints{}); err != nil {
		t.Skipf("noop backend unavailable: %v", err)
	}
	t.Cleanup(func() { _ = core.Close(context.Background()) })
	return core, r
}

func TestDriverRegisteredOnImport(t *testing.T) {
	d, err := forge.LookupDriver(forge.DriverWebGPU)
	require.NoError(t, err)
	assert.Equal(t, forge.DriverWebGPU, d.Name())
}

func TestFramesCompleteOnNoopBackend(t *testing.T) {
	s := webgpu.NewSurface(64, 64)
	core, r := newCore(t, s)

	for i := range 5 {
		require.NoError(t, core.ProduceFrame(), "frame %d", i)
		require.Eventually(t, func() bool { return core.Gate().Available() == 3 },
			2*time.Second, time.Millisecond, "frame %d did not complete", i)
	}
	assert.Equal(t, uint64(5), core.Stats().Submitted)
	assert.Equal(t, uint64(5), s.Presented())
	assert.Len(t, r.sizes, 5)
}

func TestBindingOnNoopBackend(t *testing.T) {
	core, _ := newCore(t, webgpu.NewSurface(32, 32))

	b, ok := core.Binding()
	require.True(t, ok)
	assert.Equal(t, gputypes.TextureFormatBGRA8Unorm, b.ColorFormat)
	assert.True(t, b.DepthFormat.HasDepth())
	assert.Equal(t, 1, b.SampleCount)
}

func TestDeviceProviderExposesHAL(t *testing.T) {
	core, _ := newCore(t, webgpu.NewSurface(16, 16))

	p := core.DeviceProvider()
	require.NotNil(t, p)
	_, isDevice := p.Device().(hal.Device)
	assert.True(t, isDevice)
	_, isQueue := p.Queue().(hal.Queue)
	assert.True(t, isQueue)
	assert.NotNil(t, p.Adapter())
	assert.Equal(t, gputypes.TextureFormatBGRA8Unorm, p.SurfaceFormat())
}

func TestResizeRecreatesRenderTargets(t *testing.T) {
	core, r := newCore(t, webgpu.NewSurface(64, 64))

	require.NoError(t, core.ProduceFrame())
	core.NotifyResize(32, 16)
	require.NoError(t, core.ProduceFrame())
	require.NoError(t, core.Drain(context.Background()))

	require.Len(t, r.sizes, 2)
	assert.Equal(t, forge.Size{Width: 64, Height: 64}, r.sizes[0])
	assert.Equal(t, forge.Size{Width: 32, Height: 16}, r.sizes[1])
}

func TestMultisampleBinding(t *testing.T) {
	s := webgpu.NewSurface(16, 16)
	name := "webgpu-" + t.Name()
	forge.RegisterDriver(name, webgpu.NewDriver(webgpu.WithBackend(&noop.API{})))
	t.Cleanup(func() { forge.UnregisterDriver(name) })

	core, err := forge.New(&clearRenderer{}, forge.WithDriver(name), forge.WithPreferredSampleCount(4))
	require.NoError(t, err)
	if err := core.Bind(s, forge.BindHints{}); err != nil {
		t.Skipf("noop backend unavailable: %v", err)
	}
	defer core.Close(context.Background())

	b, _ := core.Binding()
	assert.Equal(t, 4, b.SampleCount)

	d, ok := s.NextDrawable()
	require.True(t, ok)
	wd := d.(*webgpu.Drawable)
	assert.NotNil(t, wd.View())
	assert.NotNil(t, wd.MultisampleView())
	d.Discard()
}

func TestReadFront(t *testing.T) {
	s := webgpu.NewSurface(20, 10)
	core, _ := newCore(t, s)

	_, err := s.ReadFront(time.Second)
	assert.ErrorIs(t, err, webgpu.ErrNoFrontBuffer)

	require.NoError(t, core.ProduceFrame())
	require.NoError(t, core.Drain(context.Background()))

	img, err := s.ReadFront(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
	assert.Equal(t, 10, img.Bounds().Dy())
}

func TestCreateShaderModule(t *testing.T) {
	core, _ := newCore(t, webgpu.NewSurface(8, 8))
	native := core.DeviceProvider().Device()
	require.NotNil(t, native)

	drv, err := forge.LookupDriver("webgpu-" + t.Name())
	require.NoError(t, err)
	dev, err := drv.Open(forge.DeviceOptions{Label: "shader test"})
	require.NoError(t, err)
	defer dev.Release()

	wd := dev.(*webgpu.Device)
	m, err := wd.CreateShaderModule("fill", `
@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}
`)
	require.NoError(t, err)
	wd.DestroyShaderModule(m)

	m, err = wd.CreateShaderModule("fill again", `
@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}
`)
	require.NoError(t, err)
	wd.DestroyShaderModule(m)
	assert.Equal(t, uint64(1), wd.ShaderCacheStats().Hits)

	_, err = wd.CreateShaderModule("broken", "fn (")
	assert.Error(t, err)
}

func TestReleasedDeviceRejectsWork(t *testing.T) {
	drv := webgpu.NewDriver(webgpu.WithBackend(&noop.API{}))
	dev, err := drv.Open(forge.DeviceOptions{})
	if err != nil {
		t.Skipf("noop backend unavailable: %v", err)
	}
	q, err := dev.NewCommandQueue()
	require.NoError(t, err)
	cb, err := q.NewCommandBuffer("late")
	require.NoError(t, err)

	dev.Release()
	dev.Release()

	assert.ErrorIs(t, cb.Commit(), webgpu.ErrReleased)
	_, err = q.NewCommandBuffer("after")
	assert.ErrorIs(t, err, webgpu.ErrReleased)
}

// stuckBackend wraps the noop backend with a queue that never reports a
// submission as completed.
type stuckBackend struct {
	noop.API
}

func (b stuckBackend) CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error) {
	inst, err := b.API.CreateInstance(desc)
	if err != nil {
		return nil, err
	}
	return stuckInstance{inst}, nil
}

type stuckInstance struct {
	hal.Instance
}

func (i stuckInstance) EnumerateAdapters(hint hal.Surface) []hal.ExposedAdapter {
	adapters := i.Instance.EnumerateAdapters(hint)
	for n := range adapters {
		adapters[n].Adapter = stuckAdapter{adapters[n].Adapter}
	}
	return adapters
}

type stuckAdapter struct {
	hal.Adapter
}

func (a stuckAdapter) Open(features gputypes.Features, limits gputypes.Limits) (hal.OpenDevice, error) {
	opened, err := a.Adapter.Open(features, limits)
	if err != nil {
		return opened, err
	}
	opened.Queue = stuckQueue{opened.Queue}
	return opened, nil
}

type stuckQueue struct {
	hal.Queue
}

func (stuckQueue) PollCompleted() uint64 { return 0 }

func TestCompletionTimeoutReturnsPermits(t *testing.T) {
	name := "webgpu-stuck-" + t.Name()
	forge.RegisterDriver(name, webgpu.NewDriver(
		webgpu.WithBackend(stuckBackend{}),
		webgpu.WithCompletionTimeout(50*time.Millisecond),
	))
	t.Cleanup(func() { forge.UnregisterDriver(name) })

	core, err := forge.New(&clearRenderer{}, forge.WithDriver(name))
	require.NoError(t, err)
	if err := core.Bind(webgpu.NewSurface(16, 16), forge.BindHints{}); err != nil {
		t.Skipf("noop backend unavailable: %v", err)
	}
	t.Cleanup(func() { _ = core.Close(context.Background()) })

	for i := range 3 {
		require.NoError(t, core.ProduceFrame(), "frame %d", i)
	}
	require.Eventually(t, func() bool { return core.Gate().Available() == 3 },
		2*time.Second, time.Millisecond, "abandoned submissions kept their permits")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = core.ProduceFrameContext(ctx)
	require.ErrorIs(t, err, forge.ErrDeviceLost)

	assert.Equal(t, 3, core.Gate().Available())
	assert.False(t, core.IsBound())
	assert.Equal(t, uint64(3), core.Stats().Submitted)
	assert.Equal(t, uint64(1), core.Stats().Failed)
}
