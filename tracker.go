// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpures

import (
	"errors"
	"fmt"
	"sync"
)

// Tracker errors.
var (
	// ErrHandleAlreadyOwned is returned when a raw handle is already owned
	// by another live wrapper.
	ErrHandleAlreadyOwned = errors.New("gpures: raw handle is already owned by a live wrapper")
)

// ResourceKind identifies the type of a tracked GPU resource.
type ResourceKind uint8

const (
	// KindBuffer is a GPU buffer.
	KindBuffer ResourceKind = iota

	// KindTexture is a GPU texture.
	KindTexture

	// KindTextureView is a view into a GPU texture.
	KindTextureView

	// KindSampler is a texture sampler.
	KindSampler

	// KindShader is a compiled shader module.
	KindShader

	// KindProgram is a linked pipeline layout with its shader modules.
	KindProgram

	// KindRenderTarget is an offscreen render target.
	KindRenderTarget

	kindCount
)

// String returns a human-readable name for the resource kind.
func (k ResourceKind) String() string {
	switch k {
	case KindBuffer:
		return "buffer"
	case KindTexture:
		return "texture"
	case KindTextureView:
		return "texture view"
	case KindSampler:
		return "sampler"
	case KindShader:
		return "shader"
	case KindProgram:
		return "program"
	case KindRenderTarget:
		return "render target"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Stats contains resource lifetime statistics for a Context.
type Stats struct {
	// Buffers is the number of live buffer wrappers.
	Buffers int

	// Textures is the number of live texture wrappers.
	Textures int

	// TextureViews is the number of live texture view wrappers.
	TextureViews int

	// Samplers is the number of live sampler wrappers.
	Samplers int

	// Shaders is the number of live shader wrappers.
	Shaders int

	// Programs is the number of live program wrappers.
	Programs int

	// RenderTargets is the number of live render target wrappers.
	RenderTargets int

	// Created is the total number of wrappers constructed.
	Created uint64

	// Destroyed is the total number of wrappers that released their handle.
	Destroyed uint64

	// Detached is the total number of wrappers whose handle was
	// transferred away without being released.
	Detached uint64
}

// Live returns the total number of live wrappers across all kinds.
func (s Stats) Live() int {
	return s.Buffers + s.Textures + s.TextureViews + s.Samplers +
		s.Shaders + s.Programs + s.RenderTargets
}

// String returns a human-readable string of the stats.
func (s Stats) String() string {
	return fmt.Sprintf("Resources[%d live, %d created, %d destroyed, %d detached]",
		s.Live(), s.Created, s.Destroyed, s.Detached)
}

// tracker is the per-context registry of live resource wrappers.
//
// It enforces the single-owner invariant (no two live wrappers for one
// raw handle) and provides the accounting behind Context.Stats.
// tracker is safe for concurrent use.
type tracker struct {
	mu sync.Mutex

	// owned maps raw HAL handles to the kind of their owning wrapper.
	// Backends may hand out nil or non-unique handles (the noop backend
	// does); those are counted but not identity-checked.
	owned map[any]ResourceKind

	// live holds the per-kind wrapper counts.
	live [kindCount]int

	created   uint64
	destroyed uint64
	detached  uint64
}

func newTracker() *tracker {
	return &tracker{
		owned: make(map[any]ResourceKind),
	}
}

// trackable reports whether a raw handle can participate in identity
// checks. Interface values holding nil pointers still compare distinct
// per allocation, so only true nils are excluded.
func trackable(raw any) bool {
	return raw != nil
}

// register records a newly constructed wrapper. It fails if the raw
// handle is already owned by a live wrapper, leaving the tracker
// unchanged.
func (t *tracker) register(kind ResourceKind, raw any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if trackable(raw) {
		if prev, ok := t.owned[raw]; ok {
			return fmt.Errorf("%w: handle is held by a %s wrapper", ErrHandleAlreadyOwned, prev)
		}
		t.owned[raw] = kind
	}
	t.live[kind]++
	t.created++
	return nil
}

// releaseDestroyed records that a wrapper released its handle.
func (t *tracker) releaseDestroyed(kind ResourceKind, raw any) {
	t.release(kind, raw, false)
}

// releaseDetached records that a wrapper transferred its handle away
// without releasing it.
func (t *tracker) releaseDetached(kind ResourceKind, raw any) {
	t.release(kind, raw, true)
}

func (t *tracker) release(kind ResourceKind, raw any, detached bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if trackable(raw) {
		delete(t.owned, raw)
	}
	if t.live[kind] > 0 {
		t.live[kind]--
	}
	if detached {
		t.detached++
	} else {
		t.destroyed++
	}
}

// stats returns a snapshot of the current counters.
func (t *tracker) stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Stats{
		Buffers:       t.live[KindBuffer],
		Textures:      t.live[KindTexture],
		TextureViews:  t.live[KindTextureView],
		Samplers:      t.live[KindSampler],
		Shaders:       t.live[KindShader],
		Programs:      t.live[KindProgram],
		RenderTargets: t.live[KindRenderTarget],
		Created:       t.created,
		Destroyed:     t.destroyed,
		Detached:      t.detached,
	}
}
