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

// Program errors.
var (
	// ErrProgramDestroyed is returned when operating on a destroyed program.
	ErrProgramDestroyed = errors.New("gpures: program has been destroyed")

	// ErrNilProgramDescriptor is returned when creating a program without a descriptor.
	ErrNilProgramDescriptor = errors.New("gpures: program descriptor is nil")

	// ErrNilShader is returned when a program descriptor has no shader.
	ErrNilShader = errors.New("gpures: program shader is nil")

	// ErrBindGroupRange is returned for an out-of-range bind group index.
	ErrBindGroupRange = errors.New("gpures: bind group index out of range")
)

// Default shader entry points.
const (
	defaultVertexEntry   = "vs_main"
	defaultFragmentEntry = "fs_main"
)

// ProgramDescriptor describes a render program to link.
type ProgramDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Shader is the compiled module holding both entry points.
	Shader *Shader

	// VertexEntry is the vertex entry point (default "vs_main").
	VertexEntry string

	// FragmentEntry is the fragment entry point (default "fs_main").
	FragmentEntry string

	// VertexLayouts describe the vertex buffer slots, in slot order.
	VertexLayouts []*VertexLayout

	// Mode selects primitive assembly (default DrawTriangles).
	Mode DrawMode

	// TargetFormat is the color attachment format the program renders to.
	TargetFormat gputypes.TextureFormat

	// Blend is the color blend state (nil disables blending).
	Blend *gputypes.BlendState

	// SampleCount is the MSAA sample count (0 defaults to 1).
	SampleCount uint32

	// DepthStencilFormat enables a depth/stencil attachment when set
	// (TextureFormatUndefined means none).
	DepthStencilFormat gputypes.TextureFormat

	// BindGroups declares the bind group layouts, outer index = group.
	BindGroups [][]gputypes.BindGroupLayoutEntry
}

// Program owns a linked render pipeline: its bind group layouts, its
// pipeline layout, and the pipeline itself.
//
// The shader module is referenced, not owned; the caller may destroy it
// after linking. Teardown releases the pieces in reverse creation
// order: pipeline, then pipeline layout, then bind group layouts.
//
// Program has no Detach: it owns several raw handles, and ownership of
// the set transfers meaningfully only as a whole, which Destroy-or-keep
// already covers.
type Program struct {
	mu sync.RWMutex

	ctx    *Context
	device hal.Device

	bindLayouts []hal.BindGroupLayout
	pipeLayout  hal.PipelineLayout
	pipeline    hal.RenderPipeline

	label string
	mode  DrawMode

	destroyed bool
}

// NewProgram links a render program on the context's device.
//
// On partial failure every piece created so far is released before the
// error returns; a failed NewProgram leaks nothing.
func NewProgram(ctx *Context, desc *ProgramDescriptor) (*Program, error) {
	device, _, err := ctx.ready()
	if err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, ErrNilProgramDescriptor
	}
	if desc.Shader == nil {
		return nil, ErrNilShader
	}
	shaderModule, err := desc.Shader.raw()
	if err != nil {
		return nil, err
	}

	vertexEntry := desc.VertexEntry
	if vertexEntry == "" {
		vertexEntry = defaultVertexEntry
	}
	fragmentEntry := desc.FragmentEntry
	if fragmentEntry == "" {
		fragmentEntry = defaultFragmentEntry
	}
	sampleCount := desc.SampleCount
	if sampleCount == 0 {
		sampleCount = 1
	}

	bindLayouts := make([]hal.BindGroupLayout, 0, len(desc.BindGroups))
	unwind := func() {
		for _, l := range bindLayouts {
			if l != nil {
				device.DestroyBindGroupLayout(l)
			}
		}
	}
	for group, entries := range desc.BindGroups {
		layout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s_group%d_layout", desc.Label, group),
			Entries: entries,
		})
		if err != nil {
			unwind()
			return nil, fmt.Errorf("gpures: create bind group layout %d: %w", group, err)
		}
		bindLayouts = append(bindLayouts, layout)
	}

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label + "_pipe_layout",
		BindGroupLayouts: bindLayouts,
	})
	if err != nil {
		unwind()
		return nil, fmt.Errorf("gpures: create pipeline layout: %w", err)
	}

	vertexBuffers := make([]gputypes.VertexBufferLayout, 0, len(desc.VertexLayouts))
	for _, l := range desc.VertexLayouts {
		vertexBuffers = append(vertexBuffers, l.BufferLayout())
	}

	pipeDesc := &hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: pipeLayout,
		Vertex: hal.VertexState{
			Module:     shaderModule,
			EntryPoint: vertexEntry,
			Buffers:    vertexBuffers,
		},
		Fragment: &hal.FragmentState{
			Module:     shaderModule,
			EntryPoint: fragmentEntry,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    desc.TargetFormat,
					Blend:     desc.Blend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: desc.Mode.Topology(),
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: sampleCount,
			Mask:  0xFFFFFFFF,
		},
	}
	if desc.DepthStencilFormat != gputypes.TextureFormatUndefined {
		pipeDesc.DepthStencil = &hal.DepthStencilState{
			Format:            desc.DepthStencilFormat,
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionLess,
			StencilFront: hal.StencilFaceState{
				Compare:     gputypes.CompareFunctionAlways,
				FailOp:      hal.StencilOperationKeep,
				DepthFailOp: hal.StencilOperationKeep,
				PassOp:      hal.StencilOperationKeep,
			},
			StencilBack: hal.StencilFaceState{
				Compare:     gputypes.CompareFunctionAlways,
				FailOp:      hal.StencilOperationKeep,
				DepthFailOp: hal.StencilOperationKeep,
				PassOp:      hal.StencilOperationKeep,
			},
			StencilReadMask:  0xFF,
			StencilWriteMask: 0xFF,
		}
	}

	pipeline, err := device.CreateRenderPipeline(pipeDesc)
	if err != nil {
		device.DestroyPipelineLayout(pipeLayout)
		unwind()
		return nil, fmt.Errorf("gpures: create render pipeline: %w", err)
	}

	p := &Program{
		ctx:         ctx,
		device:      device,
		bindLayouts: bindLayouts,
		pipeLayout:  pipeLayout,
		pipeline:    pipeline,
		label:       desc.Label,
		mode:        desc.Mode,
	}
	if err := ctx.track.register(KindProgram, pipeline); err != nil {
		device.DestroyRenderPipeline(pipeline)
		device.DestroyPipelineLayout(pipeLayout)
		unwind()
		return nil, err
	}
	Logger().Debug("gpures: program linked",
		"label", desc.Label, "groups", len(bindLayouts))
	return p, nil
}

// Label returns the program's debug label.
func (p *Program) Label() string {
	return p.label
}

// Mode returns the program's draw mode.
func (p *Program) Mode() DrawMode {
	return p.mode
}

// IsDestroyed returns true if the program has been destroyed.
func (p *Program) IsDestroyed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.destroyed
}

// Raw returns the underlying render pipeline handle, or nil after
// destroy.
func (p *Program) Raw() hal.RenderPipeline {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.destroyed {
		return nil
	}
	return p.pipeline
}

// BindGroupLayout returns the layout for bind group index group.
func (p *Program) BindGroupLayout(group int) (hal.BindGroupLayout, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.destroyed {
		return nil, ErrProgramDestroyed
	}
	if group < 0 || group >= len(p.bindLayouts) {
		return nil, fmt.Errorf("%w: group %d of %d", ErrBindGroupRange, group, len(p.bindLayouts))
	}
	return p.bindLayouts[group], nil
}

// CreateBindGroup creates a bind group against one of the program's
// group layouts. The caller releases it with ReleaseBindGroup when the
// frame's commands are retired.
func (p *Program) CreateBindGroup(group int, label string, entries []gputypes.BindGroupEntry) (hal.BindGroup, error) {
	layout, err := p.BindGroupLayout(group)
	if err != nil {
		return nil, err
	}
	bg, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("gpures: create bind group: %w", err)
	}
	return bg, nil
}

// ReleaseBindGroup destroys a bind group created by CreateBindGroup.
func (p *Program) ReleaseBindGroup(bg hal.BindGroup) {
	if bg != nil {
		p.device.DestroyBindGroup(bg)
	}
}

// UniformEntry builds a bind group entry for a uniform or storage
// buffer binding covering [offset, offset+size).
func UniformEntry(binding uint32, buf *Buffer, offset, size uint64) gputypes.BindGroupEntry {
	return gputypes.BindGroupEntry{
		Binding: binding,
		Resource: gputypes.BufferBinding{
			Buffer: buf.Raw().NativeHandle(),
			Offset: offset,
			Size:   size,
		},
	}
}

// UniformLayoutEntry declares a uniform buffer at a binding slot.
func UniformLayoutEntry(binding uint32, visibility gputypes.ShaderStage) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: visibility,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	}
}

// TextureLayoutEntry declares a sampled 2D texture at a binding slot,
// the slot a Texture's view occupies in a bind group.
func TextureLayoutEntry(binding uint32, visibility gputypes.ShaderStage) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: visibility,
		Texture: &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		},
	}
}

// SamplerLayoutEntry declares a filtering sampler at a binding slot.
func SamplerLayoutEntry(binding uint32, visibility gputypes.ShaderStage) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: visibility,
		Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
	}
}

// Bind sets the program's pipeline on a render pass.
func (p *Program) Bind(pass hal.RenderPassEncoder) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.destroyed {
		return ErrProgramDestroyed
	}
	pass.SetPipeline(p.pipeline)
	return nil
}

// Destroy releases the pipeline, pipeline layout, and bind group
// layouts, in that order. Idempotent.
func (p *Program) Destroy() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.destroyed = true
	device := p.device
	pipeline := p.pipeline
	pipeLayout := p.pipeLayout
	bindLayouts := p.bindLayouts
	p.pipeline = nil
	p.pipeLayout = nil
	p.bindLayouts = nil
	p.mu.Unlock()

	p.ctx.track.releaseDestroyed(KindProgram, pipeline)
	if device == nil {
		return
	}
	if pipeline != nil {
		device.DestroyRenderPipeline(pipeline)
	}
	if pipeLayout != nil {
		device.DestroyPipelineLayout(pipeLayout)
	}
	for _, l := range bindLayouts {
		if l != nil {
			device.DestroyBindGroupLayout(l)
		}
	}
	Logger().Debug("gpures: program destroyed", "label", p.label)
}
