// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpures

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Sampler errors.
var (
	// ErrSamplerDestroyed is returned when operating on a destroyed sampler.
	ErrSamplerDestroyed = errors.New("gpures: sampler has been destroyed")

	// ErrSamplerDetached is returned when operating on a sampler whose
	// handle was transferred away.
	ErrSamplerDetached = errors.New("gpures: sampler handle has been detached")
)

// SamplerDescriptor describes a sampler to create.
type SamplerDescriptor struct {
	// Label is an optional debug name.
	Label string

	// AddressModeU controls wrapping on the U axis.
	AddressModeU gputypes.AddressMode

	// AddressModeV controls wrapping on the V axis.
	AddressModeV gputypes.AddressMode

	// AddressModeW controls wrapping on the W axis.
	AddressModeW gputypes.AddressMode

	// MagFilter is the magnification filter.
	MagFilter gputypes.FilterMode

	// MinFilter is the minification filter.
	MinFilter gputypes.FilterMode

	// MipmapFilter is the filter between mip levels.
	MipmapFilter gputypes.FilterMode
}

// Sampler owns exactly one raw HAL sampler handle.
//
// Sampler is safe for concurrent read access.
type Sampler struct {
	mu sync.RWMutex

	ctx        *Context
	device     hal.Device
	halSampler hal.Sampler

	descriptor SamplerDescriptor

	destroyed bool
	detached  bool
}

// NewSampler creates a sampler on the context's device and returns its
// owning wrapper.
func NewSampler(ctx *Context, desc SamplerDescriptor) (*Sampler, error) {
	device, _, err := ctx.ready()
	if err != nil {
		return nil, err
	}

	halSampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: desc.AddressModeU,
		AddressModeV: desc.AddressModeV,
		AddressModeW: desc.AddressModeW,
		MagFilter:    desc.MagFilter,
		MinFilter:    desc.MinFilter,
		MipmapFilter: desc.MipmapFilter,
	})
	if err != nil {
		return nil, fmt.Errorf("gpures: sampler creation failed: %w", err)
	}

	s := &Sampler{
		ctx:        ctx,
		device:     device,
		halSampler: halSampler,
		descriptor: desc,
	}
	if err := ctx.track.register(KindSampler, halSampler); err != nil {
		device.DestroySampler(halSampler)
		return nil, err
	}
	Logger().Debug("gpures: sampler created", "label", desc.Label)
	return s, nil
}

// NewLinearSampler creates a clamp-to-edge sampler with linear
// filtering, the common case for texture sampling.
func NewLinearSampler(ctx *Context, label string) (*Sampler, error) {
	return NewSampler(ctx, SamplerDescriptor{
		Label:        label,
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
}

// NewNearestSampler creates a clamp-to-edge sampler with nearest
// filtering, for pixel-exact lookups.
func NewNearestSampler(ctx *Context, label string) (*Sampler, error) {
	return NewSampler(ctx, SamplerDescriptor{
		Label:        label,
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
	})
}

// Label returns the sampler's debug label.
func (s *Sampler) Label() string {
	return s.descriptor.Label
}

// Descriptor returns a copy of the sampler descriptor.
func (s *Sampler) Descriptor() SamplerDescriptor {
	return s.descriptor
}

// IsDestroyed returns true if the sampler has been destroyed.
func (s *Sampler) IsDestroyed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.destroyed
}

// IsDetached returns true if the handle was transferred away.
func (s *Sampler) IsDetached() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detached
}

// Raw returns the underlying sampler handle, or nil after destroy or
// detach.
func (s *Sampler) Raw() hal.Sampler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.destroyed || s.detached {
		return nil
	}
	return s.halSampler
}

// Detach transfers ownership of the raw handle out of the wrapper.
func (s *Sampler) Detach() (hal.Sampler, error) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil, ErrSamplerDestroyed
	}
	if s.detached {
		s.mu.Unlock()
		return nil, ErrSamplerDetached
	}
	s.detached = true
	halSampler := s.halSampler
	s.halSampler = nil
	s.mu.Unlock()

	s.ctx.track.releaseDetached(KindSampler, halSampler)
	Logger().Debug("gpures: sampler detached", "label", s.descriptor.Label)
	return halSampler, nil
}

// Destroy releases the sampler handle. Exactly one release occurs for
// an owned handle; repeat calls and calls after Detach are no-ops.
func (s *Sampler) Destroy() {
	s.mu.Lock()
	if s.destroyed || s.detached {
		s.destroyed = true
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	device := s.device
	halSampler := s.halSampler
	s.halSampler = nil
	s.mu.Unlock()

	s.ctx.track.releaseDestroyed(KindSampler, halSampler)
	if device != nil && halSampler != nil {
		device.DestroySampler(halSampler)
	}
	Logger().Debug("gpures: sampler destroyed", "label", s.descriptor.Label)
}
