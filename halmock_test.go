// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpures

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// =============================================================================
// Mock Types for Testing
// =============================================================================

// mockDevice is a test double for hal.Device that counts creations and
// releases per resource kind.
type mockDevice struct {
	createBufferFunc  func(*hal.BufferDescriptor) (hal.Buffer, error)
	createTextureFunc func(*hal.TextureDescriptor) (hal.Texture, error)
	createViewFunc    func(hal.Texture, *hal.TextureViewDescriptor) (hal.TextureView, error)
	createSamplerFunc func(*hal.SamplerDescriptor) (hal.Sampler, error)
	createShaderFunc  func(*hal.ShaderModuleDescriptor) (hal.ShaderModule, error)
	waitFunc          func() (bool, error)

	buffersCreated    int32
	buffersDestroyed  int32
	texturesCreated   int32
	texturesDestroyed int32
	viewsCreated      int32
	viewsDestroyed    int32
	samplersCreated   int32
	samplersDestroyed int32
	shadersCreated    int32
	shadersDestroyed  int32
}

func (d *mockDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	atomic.AddInt32(&d.buffersCreated, 1)
	if d.createBufferFunc != nil {
		return d.createBufferFunc(desc)
	}
	return &mockBuffer{size: desc.Size, label: desc.Label}, nil
}

func (d *mockDevice) DestroyBuffer(_ hal.Buffer) {
	atomic.AddInt32(&d.buffersDestroyed, 1)
}

func (d *mockDevice) CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error) {
	atomic.AddInt32(&d.texturesCreated, 1)
	if d.createTextureFunc != nil {
		return d.createTextureFunc(desc)
	}
	return &mockTexture{
		width:  desc.Size.Width,
		height: desc.Size.Height,
		format: desc.Format,
	}, nil
}

func (d *mockDevice) DestroyTexture(_ hal.Texture) {
	atomic.AddInt32(&d.texturesDestroyed, 1)
}

func (d *mockDevice) CreateTextureView(texture hal.Texture, desc *hal.TextureViewDescriptor) (hal.TextureView, error) {
	atomic.AddInt32(&d.viewsCreated, 1)
	if d.createViewFunc != nil {
		return d.createViewFunc(texture, desc)
	}
	return &mockTextureView{texture: texture, label: desc.Label}, nil
}

func (d *mockDevice) DestroyTextureView(_ hal.TextureView) {
	atomic.AddInt32(&d.viewsDestroyed, 1)
}

func (d *mockDevice) CreateSampler(desc *hal.SamplerDescriptor) (hal.Sampler, error) {
	atomic.AddInt32(&d.samplersCreated, 1)
	if d.createSamplerFunc != nil {
		return d.createSamplerFunc(desc)
	}
	return &mockSampler{label: desc.Label}, nil
}

func (d *mockDevice) DestroySampler(_ hal.Sampler) {
	atomic.AddInt32(&d.samplersDestroyed, 1)
}

func (d *mockDevice) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	atomic.AddInt32(&d.shadersCreated, 1)
	if d.createShaderFunc != nil {
		return d.createShaderFunc(desc)
	}
	return &mockShaderModule{label: desc.Label}, nil
}

func (d *mockDevice) DestroyShaderModule(_ hal.ShaderModule) {
	atomic.AddInt32(&d.shadersDestroyed, 1)
}

// Remaining hal.Device methods as no-ops; tests exercising command
// encoding use the noop backend instead.

//nolint:nilnil // Mock: unused interface methods.
func (d *mockDevice) CreateBindGroupLayout(_ *hal.BindGroupLayoutDescriptor) (hal.BindGroupLayout, error) {
	return nil, nil
}
func (d *mockDevice) DestroyBindGroupLayout(_ hal.BindGroupLayout) {}

//nolint:nilnil // Mock: unused interface methods.
func (d *mockDevice) CreateBindGroup(_ *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	return nil, nil
}
func (d *mockDevice) DestroyBindGroup(_ hal.BindGroup) {}

//nolint:nilnil // Mock: unused interface methods.
func (d *mockDevice) CreatePipelineLayout(_ *hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error) {
	return nil, nil
}
func (d *mockDevice) DestroyPipelineLayout(_ hal.PipelineLayout) {}

//nolint:nilnil // Mock: unused interface methods.
func (d *mockDevice) CreateRenderPipeline(_ *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	return nil, nil
}
func (d *mockDevice) DestroyRenderPipeline(_ hal.RenderPipeline) {}

//nolint:nilnil // Mock: unused interface methods.
func (d *mockDevice) CreateComputePipeline(_ *hal.ComputePipelineDescriptor) (hal.ComputePipeline, error) {
	return nil, nil
}
func (d *mockDevice) DestroyComputePipeline(_ hal.ComputePipeline) {}

//nolint:nilnil // Mock: unused interface methods.
func (d *mockDevice) CreateQuerySet(_ *hal.QuerySetDescriptor) (hal.QuerySet, error) {
	return nil, nil
}
func (d *mockDevice) DestroyQuerySet(_ hal.QuerySet) {}

//nolint:nilnil // Mock: unused interface methods.
func (d *mockDevice) CreateCommandEncoder(_ *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	return nil, nil
}

//nolint:nilnil // Mock: unused interface methods.
func (d *mockDevice) CreateRenderBundleEncoder(_ *hal.RenderBundleEncoderDescriptor) (hal.RenderBundleEncoder, error) {
	return nil, nil
}
func (d *mockDevice) DestroyRenderBundle(_ hal.RenderBundle) {}
func (d *mockDevice) FreeCommandBuffer(_ hal.CommandBuffer)  {}

//nolint:nilnil // Mock: unused interface methods.
func (d *mockDevice) CreateFence() (hal.Fence, error) { return nil, nil }
func (d *mockDevice) DestroyFence(_ hal.Fence)        {}
func (d *mockDevice) Wait(_ hal.Fence, _ uint64, _ time.Duration) (bool, error) {
	if d.waitFunc != nil {
		return d.waitFunc()
	}
	return true, nil
}
func (d *mockDevice) ResetFence(_ hal.Fence) error             { return nil }
func (d *mockDevice) GetFenceStatus(_ hal.Fence) (bool, error) { return true, nil }
func (d *mockDevice) WaitIdle() error                          { return nil }
func (d *mockDevice) Destroy()                                 {}

// mockQueue is a test double for hal.Queue that records writes.
type mockQueue struct {
	mu sync.Mutex

	bufferWrites  int
	lastOffset    uint64
	lastData      []byte
	textureWrites int
	lastTexData   []byte
	lastTexLayout hal.ImageDataLayout
	submits       int
}

func (q *mockQueue) WriteBuffer(_ hal.Buffer, offset uint64, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.bufferWrites++
	q.lastOffset = offset
	q.lastData = append([]byte(nil), data...)
	return nil
}

func (q *mockQueue) WriteTexture(_ *hal.ImageCopyTexture, data []byte, layout *hal.ImageDataLayout, _ *hal.Extent3D) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.textureWrites++
	q.lastTexData = append([]byte(nil), data...)
	q.lastTexLayout = *layout
	return nil
}

func (q *mockQueue) Submit(_ []hal.CommandBuffer, _ hal.Fence, _ uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.submits++
	return nil
}

func (q *mockQueue) Present(_ hal.Surface, _ hal.SurfaceTexture) error { return nil }

func (q *mockQueue) GetTimestampPeriod() float32 { return 1 }

func (q *mockQueue) ReadBuffer(_ hal.Buffer, _ uint64, data []byte) error {
	for i := range data {
		data[i] = 0
	}
	return nil
}

// mockBuffer is a test double for hal.Buffer.
type mockBuffer struct {
	size  uint64
	label string
}

// Destroy implements hal.Resource.
func (b *mockBuffer) Destroy() {}

// NativeHandle implements hal.NativeHandle.
func (b *mockBuffer) NativeHandle() uintptr { return 0 }

// mockTexture is a test double for hal.Texture.
type mockTexture struct {
	width  uint32
	height uint32
	format gputypes.TextureFormat
}

func (t *mockTexture) Destroy()              {}
func (t *mockTexture) NativeHandle() uintptr { return 0 }

// mockTextureView is a test double for hal.TextureView.
type mockTextureView struct {
	texture hal.Texture
	label   string
}

func (v *mockTextureView) Destroy()              {}
func (v *mockTextureView) NativeHandle() uintptr { return 0 }

// mockSampler is a test double for hal.Sampler.
type mockSampler struct {
	label string
}

func (s *mockSampler) Destroy()              {}
func (s *mockSampler) NativeHandle() uintptr { return 0 }

// mockShaderModule is a test double for hal.ShaderModule.
type mockShaderModule struct {
	label string
}

func (m *mockShaderModule) Destroy()              {}
func (m *mockShaderModule) NativeHandle() uintptr { return 0 }

// =============================================================================
// Test Context Helpers
// =============================================================================

// newMockContext creates a context backed by counting mocks.
func newMockContext(t *testing.T) (*Context, *mockDevice, *mockQueue) {
	t.Helper()
	device := &mockDevice{}
	queue := &mockQueue{}
	ctx, err := NewContext(device, queue)
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	return ctx, device, queue
}

// createNoopDevice creates a noop device and queue for tests that
// exercise command encoding. Returns the device, queue, and a cleanup
// function.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// newNoopContext creates a context on the noop backend.
func newNoopContext(t *testing.T) (*Context, func()) {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	ctx, err := NewContext(device, queue)
	if err != nil {
		cleanup()
		t.Fatalf("NewContext failed: %v", err)
	}
	return ctx, cleanup
}
