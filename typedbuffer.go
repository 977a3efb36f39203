// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpures

import (
	"unsafe"

	"github.com/gogpu/gputypes"
)

// TypedBuffer is a DynamicBuffer whose contents are elements of T.
//
// T must be a fixed-size value type without pointers (vertex structs,
// uniform blocks). Elements are uploaded with their in-memory layout,
// so T's field order and padding must match what the shader expects.
type TypedBuffer[T any] struct {
	dyn *DynamicBuffer

	// length is the number of valid elements.
	length uint64
}

// elemSize returns the size of T in bytes.
func elemSize[T any]() uint64 {
	var zero T
	return uint64(unsafe.Sizeof(zero))
}

// asBytes reinterprets a slice of T as its backing bytes without copying.
// Same trick GPU upload paths use throughout the ecosystem; the returned
// slice aliases vs and must not outlive it.
func asBytes[T any](vs []T) []byte {
	if len(vs) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&vs[0])), uintptr(len(vs))*unsafe.Sizeof(vs[0]))
}

// NewTypedBuffer creates a typed buffer holding up to capacity elements
// of T.
func NewTypedBuffer[T any](ctx *Context, capacity uint64, usage gputypes.BufferUsage, label string) (*TypedBuffer[T], error) {
	dyn, err := NewDynamicBuffer(ctx, capacity*elemSize[T](), usage, label)
	if err != nil {
		return nil, err
	}
	return &TypedBuffer[T]{dyn: dyn}, nil
}

// Len returns the number of valid elements.
func (b *TypedBuffer[T]) Len() uint64 { return b.length }

// Cap returns the element capacity.
func (b *TypedBuffer[T]) Cap() uint64 { return b.dyn.Cap() / elemSize[T]() }

// Buffer returns the backing buffer wrapper, for binding and draws.
func (b *TypedBuffer[T]) Buffer() *Buffer { return b.dyn.Buffer() }

// Push appends elements to the end of the buffer.
func (b *TypedBuffer[T]) Push(vs []T) error {
	if err := b.dyn.Push(asBytes(vs)); err != nil {
		return err
	}
	b.length += uint64(len(vs))
	return nil
}

// Update overwrites elements starting at element index idx.
func (b *TypedBuffer[T]) Update(idx uint64, vs []T) error {
	return b.dyn.Update(idx*elemSize[T](), asBytes(vs))
}

// SwapRemove removes count elements at element index idx by moving the
// buffer's last count elements into their place.
func (b *TypedBuffer[T]) SwapRemove(idx, count uint64) error {
	if err := b.dyn.SwapRemove(idx*elemSize[T](), count*elemSize[T]()); err != nil {
		return err
	}
	b.length -= count
	return nil
}

// Destroy releases the backing buffer. Idempotent.
func (b *TypedBuffer[T]) Destroy() {
	b.dyn.Destroy()
	b.length = 0
}
