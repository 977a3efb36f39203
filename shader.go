// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpures

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// Shader errors.
var (
	// ErrShaderDestroyed is returned when operating on a destroyed shader.
	ErrShaderDestroyed = errors.New("gpures: shader has been destroyed")

	// ErrShaderDetached is returned when operating on a shader whose
	// handle was transferred away.
	ErrShaderDetached = errors.New("gpures: shader handle has been detached")

	// ErrShaderCompile is returned when WGSL compilation fails.
	ErrShaderCompile = errors.New("gpures: shader compilation failed")

	// ErrEmptyShaderSource is returned when compiling an empty source string.
	ErrEmptyShaderSource = errors.New("gpures: shader source is empty")
)

// compileWGSL compiles WGSL source to SPIR-V words.
//
// naga returns little-endian bytes; SPIR-V consumers want 32-bit words.
func compileWGSL(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShaderCompile, err)
	}
	spirvCode := make([]uint32, len(spirvBytes)/4)
	for i := range spirvCode {
		spirvCode[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return spirvCode, nil
}

// Shader owns exactly one raw HAL shader module handle.
//
// A Shader is a compiled module, not a pipeline stage: one module can
// carry both the vertex and fragment entry points and be referenced by
// any number of programs. Destroying a shader that a built pipeline
// references is safe; pipelines keep what they need.
//
// Shader is safe for concurrent read access.
type Shader struct {
	mu sync.RWMutex

	ctx       *Context
	device    hal.Device
	halModule hal.ShaderModule

	label string

	destroyed bool
	detached  bool
}

// NewShader compiles WGSL source and creates the shader module on the
// context's device.
//
// Compilation errors wrap ErrShaderCompile and carry naga's message,
// which includes the offending source location.
func NewShader(ctx *Context, source, label string) (*Shader, error) {
	device, _, err := ctx.ready()
	if err != nil {
		return nil, err
	}
	if source == "" {
		return nil, ErrEmptyShaderSource
	}

	spirvCode, err := compileWGSL(source)
	if err != nil {
		return nil, err
	}

	halModule, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: label,
		Source: hal.ShaderSource{
			SPIRV: spirvCode,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpures: shader module creation failed: %w", err)
	}

	s := &Shader{
		ctx:       ctx,
		device:    device,
		halModule: halModule,
		label:     label,
	}
	if err := ctx.track.register(KindShader, halModule); err != nil {
		device.DestroyShaderModule(halModule)
		return nil, err
	}
	Logger().Debug("gpures: shader compiled", "label", label, "words", len(spirvCode))
	return s, nil
}

// NewShaderSPIRV creates a shader module from precompiled SPIR-V words,
// skipping WGSL compilation.
func NewShaderSPIRV(ctx *Context, spirvCode []uint32, label string) (*Shader, error) {
	device, _, err := ctx.ready()
	if err != nil {
		return nil, err
	}
	if len(spirvCode) == 0 {
		return nil, ErrEmptyShaderSource
	}

	halModule, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: label,
		Source: hal.ShaderSource{
			SPIRV: spirvCode,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpures: shader module creation failed: %w", err)
	}

	s := &Shader{
		ctx:       ctx,
		device:    device,
		halModule: halModule,
		label:     label,
	}
	if err := ctx.track.register(KindShader, halModule); err != nil {
		device.DestroyShaderModule(halModule)
		return nil, err
	}
	return s, nil
}

// Label returns the shader's debug label.
func (s *Shader) Label() string {
	return s.label
}

// IsDestroyed returns true if the shader has been destroyed.
func (s *Shader) IsDestroyed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.destroyed
}

// IsDetached returns true if the handle was transferred away.
func (s *Shader) IsDetached() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detached
}

// Raw returns the underlying shader module handle, or nil after destroy
// or detach.
func (s *Shader) Raw() hal.ShaderModule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.destroyed || s.detached {
		return nil
	}
	return s.halModule
}

// raw returns the live handle or the sentinel error for the wrapper's state.
func (s *Shader) raw() (hal.ShaderModule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.destroyed {
		return nil, ErrShaderDestroyed
	}
	if s.detached {
		return nil, ErrShaderDetached
	}
	return s.halModule, nil
}

// Detach transfers ownership of the raw handle out of the wrapper.
func (s *Shader) Detach() (hal.ShaderModule, error) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil, ErrShaderDestroyed
	}
	if s.detached {
		s.mu.Unlock()
		return nil, ErrShaderDetached
	}
	s.detached = true
	halModule := s.halModule
	s.halModule = nil
	s.mu.Unlock()

	s.ctx.track.releaseDetached(KindShader, halModule)
	Logger().Debug("gpures: shader detached", "label", s.label)
	return halModule, nil
}

// Destroy releases the shader module handle. Exactly one release occurs
// for an owned handle; repeat calls and calls after Detach are no-ops.
func (s *Shader) Destroy() {
	s.mu.Lock()
	if s.destroyed || s.detached {
		s.destroyed = true
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	device := s.device
	halModule := s.halModule
	s.halModule = nil
	s.mu.Unlock()

	s.ctx.track.releaseDestroyed(KindShader, halModule)
	if device != nil && halModule != nil {
		device.DestroyShaderModule(halModule)
	}
	Logger().Debug("gpures: shader destroyed", "label", s.label)
}
