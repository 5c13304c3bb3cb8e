// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shaderc compiles WGSL shaders for the hal-based drivers.
package shaderc

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/naga"
)

// ErrEmptySource is returned for blank shader source.
var ErrEmptySource = errors.New("shaderc: empty shader source")

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// Compile compiles WGSL source to SPIR-V words.
func Compile(wgsl string) ([]uint32, error) {
	if wgsl == "" {
		return nil, ErrEmptySource
	}
	code, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("shaderc: compile: %w", err)
	}
	return Words(code)
}

// Words converts little-endian SPIR-V bytes to words, checking the length
// and the magic number.
func Words(code []byte) ([]uint32, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("shaderc: spir-v length %d is not a positive multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("shaderc: bad spir-v magic %#08x", words[0])
	}
	return words, nil
}
