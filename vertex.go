// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpures

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// Vertex layout errors.
var (
	// ErrEmptyVertexLayout is returned when a layout has no attributes.
	ErrEmptyVertexLayout = errors.New("gpures: vertex layout has no attributes")

	// ErrUnknownVertexFormat is returned for formats without a known size.
	ErrUnknownVertexFormat = errors.New("gpures: unknown vertex format")
)

// vertexFormatSize returns the byte size of a vertex attribute format.
func vertexFormatSize(format gputypes.VertexFormat) (uint64, error) {
	switch format {
	case gputypes.VertexFormatFloat32:
		return 4, nil
	case gputypes.VertexFormatFloat32x2:
		return 8, nil
	case gputypes.VertexFormatFloat32x3:
		return 12, nil
	case gputypes.VertexFormatFloat32x4:
		return 16, nil
	case gputypes.VertexFormatUint32:
		return 4, nil
	case gputypes.VertexFormatUint32x2:
		return 8, nil
	case gputypes.VertexFormatUint32x4:
		return 16, nil
	case gputypes.VertexFormatSint32:
		return 4, nil
	case gputypes.VertexFormatUnorm8x4:
		return 4, nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrUnknownVertexFormat, format)
	}
}

// VertexAttrib is one named attribute in a vertex layout.
type VertexAttrib struct {
	// Name is a debug name ("position", "uv").
	Name string

	// Format is the attribute's data format.
	Format gputypes.VertexFormat

	// ShaderLocation is the @location index in the vertex shader.
	ShaderLocation uint32
}

// VertexLayout describes the memory layout of one vertex buffer slot.
//
// Attribute offsets and the array stride are computed from the
// attribute order: attributes are packed back to back, the way vertex
// structs lay out their fields.
type VertexLayout struct {
	attribs []VertexAttrib
	stride  uint64
	step    gputypes.VertexStepMode
}

// NewVertexLayout builds a layout from attributes in field order.
func NewVertexLayout(attribs ...VertexAttrib) (*VertexLayout, error) {
	if len(attribs) == 0 {
		return nil, ErrEmptyVertexLayout
	}
	var stride uint64
	for _, a := range attribs {
		size, err := vertexFormatSize(a.Format)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		stride += size
	}
	return &VertexLayout{
		attribs: attribs,
		stride:  stride,
		step:    gputypes.VertexStepModeVertex,
	}, nil
}

// NewInstanceLayout builds a per-instance layout from attributes in
// field order.
func NewInstanceLayout(attribs ...VertexAttrib) (*VertexLayout, error) {
	layout, err := NewVertexLayout(attribs...)
	if err != nil {
		return nil, err
	}
	layout.step = gputypes.VertexStepModeInstance
	return layout, nil
}

// Stride returns the byte distance between consecutive vertices.
func (l *VertexLayout) Stride() uint64 {
	return l.stride
}

// Attribs returns the layout's attributes in declaration order.
func (l *VertexLayout) Attribs() []VertexAttrib {
	return l.attribs
}

// BufferLayout lowers the layout to the HAL's vertex buffer layout,
// with offsets computed from the attribute order.
func (l *VertexLayout) BufferLayout() gputypes.VertexBufferLayout {
	attrs := make([]gputypes.VertexAttribute, 0, len(l.attribs))
	var offset uint64
	for _, a := range l.attribs {
		size, _ := vertexFormatSize(a.Format)
		attrs = append(attrs, gputypes.VertexAttribute{
			Format:         a.Format,
			Offset:         offset,
			ShaderLocation: a.ShaderLocation,
		})
		offset += size
	}
	return gputypes.VertexBufferLayout{
		ArrayStride: l.stride,
		StepMode:    l.step,
		Attributes:  attrs,
	}
}

// DrawMode selects the primitive assembly for a draw.
type DrawMode int

// Draw modes.
const (
	DrawTriangles DrawMode = iota
	DrawTriangleStrip
	DrawLines
	DrawLineStrip
	DrawPoints
)

// String returns the draw mode name.
func (m DrawMode) String() string {
	switch m {
	case DrawTriangles:
		return "triangles"
	case DrawTriangleStrip:
		return "triangle-strip"
	case DrawLines:
		return "lines"
	case DrawLineStrip:
		return "line-strip"
	case DrawPoints:
		return "points"
	default:
		return "unknown"
	}
}

// Topology returns the HAL primitive topology for the draw mode.
func (m DrawMode) Topology() gputypes.PrimitiveTopology {
	switch m {
	case DrawTriangleStrip:
		return gputypes.PrimitiveTopologyTriangleStrip
	case DrawLines:
		return gputypes.PrimitiveTopologyLineList
	case DrawLineStrip:
		return gputypes.PrimitiveTopologyLineStrip
	case DrawPoints:
		return gputypes.PrimitiveTopologyPointList
	default:
		return gputypes.PrimitiveTopologyTriangleList
	}
}

// verticesPerPrimitive returns the vertex count of one primitive, for
// draw-range validation. Strips return 1 with a base handled by the
// caller.
func (m DrawMode) verticesPerPrimitive() uint32 {
	switch m {
	case DrawTriangles:
		return 3
	case DrawLines:
		return 2
	default:
		return 1
	}
}
