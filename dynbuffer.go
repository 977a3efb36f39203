// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpures

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Dynamic buffer errors.
var (
	// ErrBufferFull is returned when a push would exceed capacity.
	ErrBufferFull = errors.New("gpures: dynamic buffer is full")

	// ErrOverlappingCopy is returned when a swap-remove would copy
	// overlapping regions.
	ErrOverlappingCopy = errors.New("gpures: swap-remove would copy overlapping regions")
)

// DynamicBuffer is a fixed-capacity GPU byte buffer that tracks a
// logical length, optimized for bulk appends.
//
// It owns a Buffer sized to the requested capacity and fills it
// front-to-back: Push appends, Update overwrites in place, and
// SwapRemove compacts by moving the tail into the removed hole on the
// GPU timeline. The backing store never reallocates, so raw handles
// given to bind groups stay valid for the buffer's whole life.
type DynamicBuffer struct {
	buf *Buffer

	// length is the number of valid bytes in the buffer.
	length uint64
}

// NewDynamicBuffer creates a dynamic buffer with the given byte
// capacity. CopySrc and CopyDst are added to the usage flags; appends
// and compaction need them.
func NewDynamicBuffer(ctx *Context, capacity uint64, usage gputypes.BufferUsage, label string) (*DynamicBuffer, error) {
	buf, err := NewBuffer(ctx, &BufferDescriptor{
		Label: label,
		Size:  capacity,
		Usage: usage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	return &DynamicBuffer{buf: buf}, nil
}

// Len returns the number of valid bytes in the buffer.
func (d *DynamicBuffer) Len() uint64 { return d.length }

// Cap returns the buffer capacity in bytes.
func (d *DynamicBuffer) Cap() uint64 { return d.buf.Size() }

// Buffer returns the backing buffer wrapper, for binding and draws.
func (d *DynamicBuffer) Buffer() *Buffer { return d.buf }

// Push appends data to the end of the buffer.
func (d *DynamicBuffer) Push(data []byte) error {
	n := uint64(len(data))
	if d.length+n > d.Cap() {
		return fmt.Errorf("%w: push %d into a %d/%d full buffer",
			ErrBufferFull, n, d.length, d.Cap())
	}
	if err := d.buf.Write(d.length, data); err != nil {
		return err
	}
	d.length += n
	return nil
}

// Update overwrites bytes starting at idx. The range must lie within
// the valid length.
func (d *DynamicBuffer) Update(idx uint64, data []byte) error {
	if idx > d.length || uint64(len(data)) > d.length-idx {
		return fmt.Errorf("%w: update %d bytes at %d with length %d",
			ErrBufferRange, len(data), idx, d.length)
	}
	return d.buf.Write(idx, data)
}

// SwapRemove removes count bytes at position i by moving the last count
// bytes of the buffer into their place, shrinking the length.
//
// When i addresses the tail itself, shrinking the length suffices and
// no copy is issued. WebGPU forbids same-buffer copies, so the move
// goes through a transient scratch buffer in a single fenced
// submission.
func (d *DynamicBuffer) SwapRemove(i, count uint64) error {
	if count > d.length {
		return fmt.Errorf("%w: remove %d from length %d", ErrBufferRange, count, d.length)
	}
	d.length -= count
	if i > d.length {
		d.length += count
		return fmt.Errorf("%w: index %d past length %d", ErrBufferRange, i, d.length)
	}
	if i == d.length {
		// Tail removal: decreasing the length is enough.
		return nil
	}
	// i <= d.length and count <= the original length here, so the sum
	// cannot wrap.
	if i+count > d.length {
		d.length += count
		return ErrOverlappingCopy
	}
	if err := d.moveTail(i, count); err != nil {
		d.length += count
		return err
	}
	return nil
}

// moveTail copies count bytes from the (already shrunk) tail position
// to offset i through a scratch buffer.
func (d *DynamicBuffer) moveTail(i, count uint64) error {
	halBuf, err := d.buf.raw()
	if err != nil {
		return err
	}
	device, queue, err := d.buf.ctx.ready()
	if err != nil {
		return err
	}

	scratch, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: d.buf.Label() + " (swap scratch)",
		Size:  count,
		Usage: gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("gpures: create scratch buffer: %w", err)
	}
	defer device.DestroyBuffer(scratch)

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "gpures_swap_remove",
	})
	if err != nil {
		return fmt.Errorf("gpures: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("gpures_swap_remove"); err != nil {
		return fmt.Errorf("gpures: begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(halBuf, scratch, []hal.BufferCopy{
		{SrcOffset: d.length, DstOffset: 0, Size: count},
	})
	encoder.CopyBufferToBuffer(scratch, halBuf, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: i, Size: count},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("gpures: end encoding: %w", err)
	}
	defer device.FreeCommandBuffer(cmdBuf)

	fence, err := device.CreateFence()
	if err != nil {
		return fmt.Errorf("gpures: create fence: %w", err)
	}
	defer device.DestroyFence(fence)

	if err := queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("gpures: submit: %w", err)
	}
	ok, err := device.Wait(fence, 1, readbackTimeout)
	if err != nil {
		return fmt.Errorf("gpures: wait for swap-remove: %w", err)
	}
	if !ok {
		return fmt.Errorf("gpures: swap-remove timed out after %v", readbackTimeout)
	}
	return nil
}

// Destroy releases the backing buffer. Idempotent.
func (d *DynamicBuffer) Destroy() {
	d.buf.Destroy()
	d.length = 0
}
