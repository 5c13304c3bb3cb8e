// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppearance(t *testing.T) {
	tests := []struct {
		in      string
		want    Appearance
		wantErr bool
	}{
		{"dark", AppearanceDark, false},
		{"  Light\n", AppearanceLight, false},
		{"DARK", AppearanceDark, false},
		{"", AppearanceUnknown, false},
		{"unknown", AppearanceUnknown, false},
		{"sepia", AppearanceUnknown, true},
	}
	for _, tt := range tests {
		got, err := ParseAppearance(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "ParseAppearance(%q)", tt.in)
			continue
		}
		require.NoError(t, err, "ParseAppearance(%q)", tt.in)
		assert.Equal(t, tt.want, got, "ParseAppearance(%q)", tt.in)
	}
}

func TestAppearanceString(t *testing.T) {
	assert.Equal(t, "unknown", AppearanceUnknown.String())
	assert.Equal(t, "dark", AppearanceDark.String())
	assert.Equal(t, "light", AppearanceLight.String())
	assert.Equal(t, "Appearance(7)", Appearance(7).String())
}

func TestNotifyAppearanceOnlyOnChange(t *testing.T) {
	core, _, _, r := newBoundCore(t)

	core.NotifyAppearance(AppearanceDark)
	core.NotifyAppearance(AppearanceDark)
	core.NotifyAppearance(AppearanceLight)
	core.NotifyAppearance(AppearanceLight)
	core.NotifyAppearance(AppearanceDark)

	assert.Equal(t, []Appearance{AppearanceDark, AppearanceLight, AppearanceDark}, r.appearanceLog())
	assert.Equal(t, AppearanceDark, core.Appearance())
}

func TestNotifyAppearanceIndependentOfFrames(t *testing.T) {
	core, _, _, r := newBoundCore(t)

	f, err := core.BeginFrame(t.Context())
	require.NoError(t, err)
	core.NotifyAppearance(AppearanceLight)
	assert.Equal(t, []Appearance{AppearanceLight}, r.appearanceLog())
	require.NoError(t, core.EndFrame(f))
}

func TestAppearanceReplayedAfterSetup(t *testing.T) {
	drv := registerMockDriver(t)
	r := &recordingRenderer{}
	core, err := New(r, WithDriver(drv.name))
	require.NoError(t, err)

	require.NoError(t, core.Bind(newMockSurface(10, 10), BindHints{}))
	assert.Empty(t, r.appearanceLog(), "unknown appearance is not replayed")
	core.Unbind()

	core.NotifyAppearance(AppearanceDark)
	assert.Empty(t, r.appearanceLog(), "unbound renderer is not notified")
	assert.Equal(t, AppearanceDark, core.Appearance())

	require.NoError(t, core.Bind(newMockSurface(10, 10), BindHints{}))
	assert.Equal(t, []Appearance{AppearanceDark}, r.appearanceLog())
}

func TestNotifyAppearanceConcurrent(t *testing.T) {
	core, _, _, r := newBoundCore(t)

	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				core.NotifyAppearance(AppearanceDark)
			} else {
				core.NotifyAppearance(AppearanceLight)
			}
		}()
	}
	wg.Wait()

	// Transitions are applied one at a time, so consecutive hook calls
	// always alternate and the last one matches the stored value.
	log := r.appearanceLog()
	require.NotEmpty(t, log)
	for i := 1; i < len(log); i++ {
		assert.NotEqual(t, log[i-1], log[i], "hook %d repeated the previous appearance", i)
	}
	assert.Equal(t, core.Appearance(), log[len(log)-1])
}
