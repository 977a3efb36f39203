// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpures

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Mesh errors.
var (
	// ErrStrideMismatch is returned when a vertex type's size does not
	// match its layout stride.
	ErrStrideMismatch = errors.New("gpures: vertex type size does not match layout stride")

	// ErrNilLayout is returned when creating a mesh without a layout.
	ErrNilLayout = errors.New("gpures: vertex layout is nil")

	// ErrDrawRange is returned when a draw range exceeds the mesh length.
	ErrDrawRange = errors.New("gpures: draw range out of bounds")

	// ErrPartialPrimitive is returned when a draw count does not form
	// whole primitives for the mesh's mode.
	ErrPartialPrimitive = errors.New("gpures: draw count leaves a partial primitive")
)

// Mesh is a growable vertex buffer paired with its layout and draw
// mode: everything a render pass needs to draw it.
//
// V is the vertex struct; its in-memory size must equal the layout
// stride, which NewMesh checks once at construction.
type Mesh[V any] struct {
	verts  *TypedBuffer[V]
	layout *VertexLayout
	mode   DrawMode
}

// NewMesh creates a mesh with room for capacity vertices of V.
//
// The buffer carries Vertex usage plus the copy flags appends and
// compaction need.
func NewMesh[V any](ctx *Context, layout *VertexLayout, mode DrawMode, capacity uint64, label string) (*Mesh[V], error) {
	if layout == nil {
		return nil, ErrNilLayout
	}
	if size := elemSize[V](); size != layout.Stride() {
		return nil, fmt.Errorf("%w: sizeof(V)=%d, stride=%d",
			ErrStrideMismatch, size, layout.Stride())
	}
	verts, err := NewTypedBuffer[V](ctx, capacity, gputypes.BufferUsageVertex, label)
	if err != nil {
		return nil, err
	}
	return &Mesh[V]{
		verts:  verts,
		layout: layout,
		mode:   mode,
	}, nil
}

// Len returns the number of vertices in the mesh.
func (m *Mesh[V]) Len() uint64 { return m.verts.Len() }

// Cap returns the vertex capacity.
func (m *Mesh[V]) Cap() uint64 { return m.verts.Cap() }

// Layout returns the mesh's vertex layout.
func (m *Mesh[V]) Layout() *VertexLayout { return m.layout }

// Mode returns the mesh's draw mode.
func (m *Mesh[V]) Mode() DrawMode { return m.mode }

// Buffer returns the backing buffer wrapper.
func (m *Mesh[V]) Buffer() *Buffer { return m.verts.Buffer() }

// Push appends vertices to the mesh.
func (m *Mesh[V]) Push(vs []V) error { return m.verts.Push(vs) }

// Update overwrites vertices starting at index idx.
func (m *Mesh[V]) Update(idx uint64, vs []V) error { return m.verts.Update(idx, vs) }

// SwapRemove removes count vertices at index idx by moving the last
// count vertices into their place. Handy for removing whole primitives
// without re-uploading the tail.
func (m *Mesh[V]) SwapRemove(idx, count uint64) error { return m.verts.SwapRemove(idx, count) }

// Draw binds the vertex buffer to slot 0 and draws every vertex as one
// instance.
func (m *Mesh[V]) Draw(pass hal.RenderPassEncoder) error {
	return m.DrawRange(pass, 0, m.Len())
}

// DrawRange draws count vertices starting at first.
func (m *Mesh[V]) DrawRange(pass hal.RenderPassEncoder, first, count uint64) error {
	return m.DrawInstanced(pass, first, count, 1)
}

// DrawInstanced draws count vertices starting at first, instances
// times.
func (m *Mesh[V]) DrawInstanced(pass hal.RenderPassEncoder, first, count, instances uint64) error {
	if first > m.Len() || count > m.Len()-first {
		return fmt.Errorf("%w: %d vertices at %d of %d",
			ErrDrawRange, count, first, m.Len())
	}
	if vpp := uint64(m.mode.verticesPerPrimitive()); count%vpp != 0 {
		return fmt.Errorf("%w: %d vertices drawn as %s",
			ErrPartialPrimitive, count, m.mode)
	}
	halBuf, err := m.verts.Buffer().raw()
	if err != nil {
		return err
	}
	if count == 0 || instances == 0 {
		return nil
	}
	pass.SetVertexBuffer(0, halBuf, 0)
	pass.Draw(uint32(count), uint32(instances), uint32(first), 0)
	return nil
}

// Destroy releases the backing buffer. Idempotent.
func (m *Mesh[V]) Destroy() {
	m.verts.Destroy()
}
