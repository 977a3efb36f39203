// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpures

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

func linkTestProgram(t *testing.T, ctx *Context) *Program {
	t.Helper()

	shader, err := NewShader(ctx, testWGSL, "prog_shader")
	if err != nil {
		t.Fatalf("NewShader failed: %v", err)
	}
	defer shader.Destroy()

	layout, err := NewVertexLayout(
		VertexAttrib{Name: "position", Format: gputypes.VertexFormatFloat32x2, ShaderLocation: 0},
	)
	if err != nil {
		t.Fatalf("NewVertexLayout failed: %v", err)
	}

	prog, err := NewProgram(ctx, &ProgramDescriptor{
		Label:         "test_program",
		Shader:        shader,
		VertexLayouts: []*VertexLayout{layout},
		Mode:          DrawTriangles,
		TargetFormat:  gputypes.TextureFormatRGBA8Unorm,
		BindGroups: [][]gputypes.BindGroupLayoutEntry{
			{
				{
					Binding:    0,
					Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
					Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("NewProgram failed: %v", err)
	}
	return prog
}

func TestNewProgramValidation(t *testing.T) {
	ctx, cleanup := newNoopContext(t)
	defer cleanup()
	defer ctx.Close()

	if _, err := NewProgram(ctx, nil); !errors.Is(err, ErrNilProgramDescriptor) {
		t.Errorf("expected ErrNilProgramDescriptor, got %v", err)
	}
	if _, err := NewProgram(ctx, &ProgramDescriptor{}); !errors.Is(err, ErrNilShader) {
		t.Errorf("expected ErrNilShader, got %v", err)
	}

	// A destroyed shader cannot be linked.
	shader, err := NewShader(ctx, testWGSL, "dead")
	if err != nil {
		t.Fatalf("NewShader failed: %v", err)
	}
	shader.Destroy()
	if _, err := NewProgram(ctx, &ProgramDescriptor{Shader: shader}); !errors.Is(err, ErrShaderDestroyed) {
		t.Errorf("expected ErrShaderDestroyed, got %v", err)
	}
}

func TestProgramLinkAndDestroy(t *testing.T) {
	ctx, cleanup := newNoopContext(t)
	defer cleanup()
	defer ctx.Close()

	prog := linkTestProgram(t, ctx)
	if prog.Mode() != DrawTriangles {
		t.Errorf("expected DrawTriangles, got %v", prog.Mode())
	}

	if st := ctx.Stats(); st.Programs != 1 {
		t.Errorf("expected 1 live program, got %d", st.Programs)
	}

	prog.Destroy()
	prog.Destroy()

	if st := ctx.Stats(); st.Programs != 0 {
		t.Errorf("expected 0 live programs, got %d", st.Programs)
	}
	if prog.Raw() != nil {
		t.Error("expected nil Raw after destroy")
	}
	if err := prog.Bind(nil); !errors.Is(err, ErrProgramDestroyed) {
		t.Errorf("expected ErrProgramDestroyed, got %v", err)
	}
}

func TestProgramBindGroupLayout(t *testing.T) {
	ctx, cleanup := newNoopContext(t)
	defer cleanup()
	defer ctx.Close()

	prog := linkTestProgram(t, ctx)
	defer prog.Destroy()

	if _, err := prog.BindGroupLayout(0); err != nil {
		t.Errorf("BindGroupLayout(0) failed: %v", err)
	}
	if _, err := prog.BindGroupLayout(1); !errors.Is(err, ErrBindGroupRange) {
		t.Errorf("expected ErrBindGroupRange, got %v", err)
	}
	if _, err := prog.BindGroupLayout(-1); !errors.Is(err, ErrBindGroupRange) {
		t.Errorf("expected ErrBindGroupRange, got %v", err)
	}
}

func TestProgramCreateBindGroup(t *testing.T) {
	ctx, cleanup := newNoopContext(t)
	defer cleanup()
	defer ctx.Close()

	prog := linkTestProgram(t, ctx)
	defer prog.Destroy()

	uniforms, err := NewBuffer(ctx, &BufferDescriptor{
		Label: "uniforms",
		Size:  64,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		t.Fatalf("NewBuffer failed: %v", err)
	}
	defer uniforms.Destroy()

	bg, err := prog.CreateBindGroup(0, "test_bind", []gputypes.BindGroupEntry{
		UniformEntry(0, uniforms, 0, 64),
	})
	if err != nil {
		t.Fatalf("CreateBindGroup failed: %v", err)
	}
	prog.ReleaseBindGroup(bg)
}

func TestLayoutEntryHelpers(t *testing.T) {
	u := UniformLayoutEntry(0, gputypes.ShaderStageVertex)
	if u.Binding != 0 || u.Buffer == nil {
		t.Errorf("unexpected uniform entry %+v", u)
	}
	if u.Buffer.Type != gputypes.BufferBindingTypeUniform {
		t.Errorf("expected uniform binding type, got %v", u.Buffer.Type)
	}

	tx := TextureLayoutEntry(1, gputypes.ShaderStageFragment)
	if tx.Binding != 1 || tx.Texture == nil {
		t.Errorf("unexpected texture entry %+v", tx)
	}
	if tx.Texture.ViewDimension != gputypes.TextureViewDimension2D {
		t.Errorf("expected 2D view dimension, got %v", tx.Texture.ViewDimension)
	}
	if tx.Visibility != gputypes.ShaderStageFragment {
		t.Errorf("expected fragment visibility, got %v", tx.Visibility)
	}

	s := SamplerLayoutEntry(2, gputypes.ShaderStageFragment)
	if s.Binding != 2 || s.Sampler == nil {
		t.Errorf("unexpected sampler entry %+v", s)
	}
	if s.Sampler.Type != gputypes.SamplerBindingTypeFiltering {
		t.Errorf("expected filtering sampler, got %v", s.Sampler.Type)
	}
}

func TestProgramDrawIntoTarget(t *testing.T) {
	ctx, cleanup := newNoopContext(t)
	defer cleanup()
	defer ctx.Close()

	prog := linkTestProgram(t, ctx)
	defer prog.Destroy()

	layout, err := NewVertexLayout(
		VertexAttrib{Name: "position", Format: gputypes.VertexFormatFloat32x2, ShaderLocation: 0},
	)
	if err != nil {
		t.Fatalf("NewVertexLayout failed: %v", err)
	}
	type vec2 struct{ X, Y float32 }
	mesh, err := NewMesh[vec2](ctx, layout, DrawTriangles, 8, "tri")
	if err != nil {
		t.Fatalf("NewMesh failed: %v", err)
	}
	defer mesh.Destroy()
	if err := mesh.Push([]vec2{{0, 1}, {-1, -1}, {1, -1}}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	rt, err := NewRenderTarget(ctx, &RenderTargetDescriptor{
		Label:  "prog_target",
		Width:  64,
		Height: 64,
		Format: gputypes.TextureFormatRGBA8Unorm,
	})
	if err != nil {
		t.Fatalf("NewRenderTarget failed: %v", err)
	}
	defer rt.Destroy()

	device := ctx.Device()
	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "prog_test"})
	if err != nil {
		t.Fatalf("CreateCommandEncoder failed: %v", err)
	}
	if err := encoder.BeginEncoding("prog_test"); err != nil {
		t.Fatalf("BeginEncoding failed: %v", err)
	}
	pass, err := rt.BeginPass(encoder, &gputypes.Color{A: 1})
	if err != nil {
		t.Fatalf("BeginPass failed: %v", err)
	}
	if err := prog.Bind(pass); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if err := mesh.Draw(pass); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	pass.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		t.Fatalf("EndEncoding failed: %v", err)
	}
	defer device.FreeCommandBuffer(cmdBuf)
}
