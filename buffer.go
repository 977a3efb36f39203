// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpures

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Buffer errors.
var (
	// ErrBufferDestroyed is returned when operating on a destroyed buffer.
	ErrBufferDestroyed = errors.New("gpures: buffer has been destroyed")

	// ErrBufferDetached is returned when operating on a buffer whose
	// handle was transferred away.
	ErrBufferDetached = errors.New("gpures: buffer handle has been detached")

	// ErrNilBufferDescriptor is returned when creating a buffer without a descriptor.
	ErrNilBufferDescriptor = errors.New("gpures: buffer descriptor is nil")

	// ErrInvalidBufferSize is returned when buffer size is invalid.
	ErrInvalidBufferSize = errors.New("gpures: invalid buffer size")

	// ErrEmptyBufferUsage is returned when buffer usage flags are empty.
	ErrEmptyBufferUsage = errors.New("gpures: buffer usage is empty")

	// ErrBufferRange is returned when an access range is out of bounds.
	ErrBufferRange = errors.New("gpures: buffer range out of bounds")
)

// readbackTimeout bounds the fence wait during buffer readback.
const readbackTimeout = 5 * time.Second

// copyBufferAlignment is the copy alignment required by WebGPU.
const copyBufferAlignment uint64 = 4

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Size is the buffer size in bytes. Rounded up to 4-byte copy
	// alignment at creation.
	Size uint64

	// Usage specifies how the buffer will be used.
	Usage gputypes.BufferUsage
}

// Buffer owns exactly one raw HAL buffer handle.
//
// The handle is released back to the device exactly once, on the first
// Destroy call. Detach transfers the handle out, after which the
// wrapper releases nothing.
//
// Buffer is safe for concurrent read access. Destroy and Detach are
// guarded; Write and Read should be externally ordered against them.
type Buffer struct {
	mu sync.RWMutex

	ctx       *Context
	device    hal.Device
	halBuffer hal.Buffer

	// descriptor holds the buffer configuration (immutable after creation).
	descriptor BufferDescriptor

	destroyed bool
	detached  bool
}

// NewBuffer creates a buffer on the context's device and returns its
// owning wrapper.
//
// Size must be non-zero and usage non-empty. Size is rounded up to the
// 4-byte copy alignment; Size() reports the aligned value.
//
// If the device refuses the allocation, the error is returned as-is to
// the caller: the wrapper does not retry, and nothing was allocated, so
// there is nothing to clean up.
func NewBuffer(ctx *Context, desc *BufferDescriptor) (*Buffer, error) {
	device, _, err := ctx.ready()
	if err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, ErrNilBufferDescriptor
	}
	if desc.Size == 0 {
		return nil, fmt.Errorf("%w: size is 0", ErrInvalidBufferSize)
	}
	if desc.Usage == 0 {
		return nil, ErrEmptyBufferUsage
	}

	alignedSize := (desc.Size + copyBufferAlignment - 1) &^ (copyBufferAlignment - 1)

	halBuffer, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  alignedSize,
		Usage: desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("gpures: buffer creation failed: %w", err)
	}

	resolvedDesc := *desc
	resolvedDesc.Size = alignedSize

	b := &Buffer{
		ctx:        ctx,
		device:     device,
		halBuffer:  halBuffer,
		descriptor: resolvedDesc,
	}
	if err := ctx.track.register(KindBuffer, halBuffer); err != nil {
		device.DestroyBuffer(halBuffer)
		return nil, err
	}
	Logger().Debug("gpures: buffer created", "label", desc.Label, "size", alignedSize)
	return b, nil
}

// NewStagingBuffer creates a staging buffer for CPU-GPU transfers.
//
// For uploads (forUpload true) the buffer carries MapWrite | CopySrc;
// for readback it carries MapRead | CopyDst.
func NewStagingBuffer(ctx *Context, size uint64, forUpload bool, label string) (*Buffer, error) {
	var usage gputypes.BufferUsage
	if forUpload {
		usage = gputypes.BufferUsageMapWrite | gputypes.BufferUsageCopySrc
	} else {
		usage = gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst
	}
	return NewBuffer(ctx, &BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
}

// Label returns the buffer's debug label.
func (b *Buffer) Label() string {
	return b.descriptor.Label
}

// Size returns the buffer size in bytes, after copy alignment.
func (b *Buffer) Size() uint64 {
	return b.descriptor.Size
}

// Usage returns the buffer usage flags.
func (b *Buffer) Usage() gputypes.BufferUsage {
	return b.descriptor.Usage
}

// Descriptor returns a copy of the buffer descriptor.
func (b *Buffer) Descriptor() BufferDescriptor {
	return b.descriptor
}

// IsDestroyed returns true if the buffer has been destroyed.
func (b *Buffer) IsDestroyed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.destroyed
}

// IsDetached returns true if the handle was transferred away.
func (b *Buffer) IsDetached() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.detached
}

// Raw returns the underlying buffer handle.
//
// Returns nil if the buffer has been destroyed or detached. The caller
// must not destroy the handle; the wrapper still owns it.
func (b *Buffer) Raw() hal.Buffer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.destroyed || b.detached {
		return nil
	}
	return b.halBuffer
}

// raw returns the live handle or the sentinel error for the wrapper's state.
func (b *Buffer) raw() (hal.Buffer, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.destroyed {
		return nil, ErrBufferDestroyed
	}
	if b.detached {
		return nil, ErrBufferDetached
	}
	return b.halBuffer, nil
}

// Write copies data into the buffer at the given byte offset via the
// context queue.
func (b *Buffer) Write(offset uint64, data []byte) error {
	halBuf, err := b.raw()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if offset > b.descriptor.Size || uint64(len(data)) > b.descriptor.Size-offset {
		return fmt.Errorf("%w: write %d bytes at %d into %d-byte buffer",
			ErrBufferRange, len(data), offset, b.descriptor.Size)
	}
	_, queue, err := b.ctx.ready()
	if err != nil {
		return err
	}
	queue.WriteBuffer(halBuf, offset, data)
	return nil
}

// Read copies size bytes starting at offset back to the CPU.
//
// Readback goes through a transient staging buffer: the range is copied
// on the GPU timeline, the submission is fenced, and the staging
// contents are read once the fence signals. The buffer must carry
// CopySrc usage.
func (b *Buffer) Read(offset, size uint64) ([]byte, error) {
	halBuf, err := b.raw()
	if err != nil {
		return nil, err
	}
	if offset > b.descriptor.Size || size > b.descriptor.Size-offset {
		return nil, fmt.Errorf("%w: read %d bytes at %d from %d-byte buffer",
			ErrBufferRange, size, offset, b.descriptor.Size)
	}
	if size == 0 {
		return nil, nil
	}
	device, queue, err := b.ctx.ready()
	if err != nil {
		return nil, err
	}

	stagingBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: b.descriptor.Label + " (staging)",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpures: create staging buffer: %w", err)
	}
	defer device.DestroyBuffer(stagingBuf)

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "gpures_buffer_read",
	})
	if err != nil {
		return nil, fmt.Errorf("gpures: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("gpures_buffer_read"); err != nil {
		return nil, fmt.Errorf("gpures: begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(halBuf, stagingBuf, []hal.BufferCopy{
		{SrcOffset: offset, DstOffset: 0, Size: size},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("gpures: end encoding: %w", err)
	}
	defer device.FreeCommandBuffer(cmdBuf)

	fence, err := device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("gpures: create fence: %w", err)
	}
	defer device.DestroyFence(fence)

	if err := queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("gpures: submit: %w", err)
	}
	ok, err := device.Wait(fence, 1, readbackTimeout)
	if err != nil {
		return nil, fmt.Errorf("gpures: wait for readback: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("gpures: readback timed out after %v", readbackTimeout)
	}

	out := make([]byte, size)
	if err := queue.ReadBuffer(stagingBuf, 0, out); err != nil {
		return nil, fmt.Errorf("gpures: readback: %w", err)
	}
	return out, nil
}

// Detach transfers ownership of the raw handle out of the wrapper.
//
// After Detach the caller is responsible for destroying the returned
// handle; the wrapper performs no release, now or at Destroy.
func (b *Buffer) Detach() (hal.Buffer, error) {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return nil, ErrBufferDestroyed
	}
	if b.detached {
		b.mu.Unlock()
		return nil, ErrBufferDetached
	}
	b.detached = true
	halBuf := b.halBuffer
	b.halBuffer = nil
	b.mu.Unlock()

	b.ctx.track.releaseDetached(KindBuffer, halBuf)
	Logger().Debug("gpures: buffer detached", "label", b.descriptor.Label)
	return halBuf, nil
}

// Destroy releases the buffer handle back to the device.
//
// Exactly one release occurs for an owned handle; calling Destroy again,
// or after Detach, is a no-op.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	if b.destroyed || b.detached {
		b.destroyed = true
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	device := b.device
	halBuf := b.halBuffer
	b.halBuffer = nil
	b.mu.Unlock()

	b.ctx.track.releaseDestroyed(KindBuffer, halBuf)
	if device != nil && halBuf != nil {
		device.DestroyBuffer(halBuf)
	}
	Logger().Debug("gpures: buffer destroyed", "label", b.descriptor.Label)
}
