// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package forge

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds the recognized Core settings.
//
// The zero value is usable: zero fields take their defaults in New.
type Config struct {
	// FrameGateCapacity is the number of frames allowed in flight.
	// Zero means DefaultFrameGateCapacity.
	FrameGateCapacity int `toml:"frame_gate_capacity" yaml:"frame_gate_capacity"`

	// PreferredSampleCount is used when Bind gets no sample count hint.
	// Zero means 1.
	PreferredSampleCount int `toml:"preferred_sample_count" yaml:"preferred_sample_count"`

	// LowPowerPreference selects a low power device at bind time.
	LowPowerPreference bool `toml:"low_power_preference" yaml:"low_power_preference"`

	// Driver names a registered driver. Empty selects DefaultDriver.
	Driver string `toml:"driver" yaml:"driver"`

	// DrainTimeout bounds how long Close waits for in-flight frames.
	// Zero waits as long as the Close context allows.
	DrainTimeout Duration `toml:"drain_timeout" yaml:"drain_timeout"`
}

// DefaultConfig returns the configuration New uses without options.
func DefaultConfig() Config {
	return Config{
		FrameGateCapacity:    DefaultFrameGateCapacity,
		PreferredSampleCount: 1,
		DrainTimeout:         Duration(time.Second),
	}
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.FrameGateCapacity < 0:
		return fmt.Errorf("%w: frame_gate_capacity %d", ErrInvalidConfig, c.FrameGateCapacity)
	case c.PreferredSampleCount < 0:
		return fmt.Errorf("%w: preferred_sample_count %d", ErrInvalidConfig, c.PreferredSampleCount)
	case c.DrainTimeout < 0:
		return fmt.Errorf("%w: drain_timeout %s", ErrInvalidConfig, c.DrainTimeout)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.FrameGateCapacity == 0 {
		c.FrameGateCapacity = DefaultFrameGateCapacity
	}
	if c.PreferredSampleCount == 0 {
		c.PreferredSampleCount = 1
	}
	return c
}

func (c Config) powerPreference() gputypes.PowerPreference {
	if c.LowPowerPreference {
		return gputypes.PowerPreferenceLowPower
	}
	return gputypes.PowerPreferenceNone
}

// LoadConfig reads a Config from a TOML (.toml) or YAML (.yaml, .yml)
// file. A leading "~" in path is expanded to the home directory. Fields
// missing from the file keep their DefaultConfig values; unknown fields
// are rejected.
func LoadConfig(path string) (Config, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return Config{}, fmt.Errorf("forge: expand config path: %w", err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return Config{}, fmt.Errorf("forge: read config: %w", err)
	}

	cfg := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(expanded)); ext {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&cfg)
	default:
		return Config{}, fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfig, ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, expanded, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Duration is a time.Duration that reads and writes as a Go duration
// string ("250ms", "2s") in config files.
type Duration time.Duration

// String returns the duration formatted like time.Duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
