// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpures

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Context errors.
var (
	// ErrNilContext is returned when constructing a resource without a context.
	ErrNilContext = errors.New("gpures: context is nil")

	// ErrContextClosed is returned when constructing a resource on a closed context.
	ErrContextClosed = errors.New("gpures: context has been closed")

	// ErrNilDevice is returned when creating a context without a device.
	ErrNilDevice = errors.New("gpures: device is nil")

	// ErrNilQueue is returned when creating a context without a queue.
	ErrNilQueue = errors.New("gpures: queue is nil")

	// ErrNilProvider is returned when creating a context from a nil provider.
	ErrNilProvider = errors.New("gpures: device provider is nil")

	// ErrNoHALBridge is returned when a provider does not expose HAL types.
	ErrNoHALBridge = errors.New("gpures: provider does not expose HAL device and queue")
)

// flushTimeout bounds the fence wait in Flush.
const flushTimeout = 5 * time.Second

// Context is the capability token required to construct any gpures
// resource. It stands in for the precondition "the GPU device is
// initialized and current": holding a valid *Context is the evidence.
//
// Key principle: gpures RECEIVES the device from the host, it does NOT
// create one. The host application creates the instance, adapter,
// device, and queue, and keeps ownership of them; Close only severs the
// context's references so later constructions fail fast.
//
// Constructing a resource against a device that was never initialized,
// or was destroyed behind the context's back, is a caller contract
// violation the library cannot detect. The HAL does not signal driver
// readiness through a recoverable error channel.
//
// Context is safe for concurrent use.
type Context struct {
	mu     sync.RWMutex
	device hal.Device
	queue  hal.Queue
	limits gputypes.Limits
	closed bool

	track *tracker
}

// Capabilities is a snapshot of the device limits relevant to resource
// creation decisions.
type Capabilities struct {
	// MaxTextureSize is the maximum 2D texture dimension in texels.
	MaxTextureSize uint32

	// MaxBufferSize is the maximum buffer size in bytes.
	MaxBufferSize uint64

	// MaxWorkgroupSize is the maximum compute workgroup size per axis.
	MaxWorkgroupSize [3]uint32
}

// NewContext creates a Context from a HAL device and queue, assuming
// default device limits.
//
// The device and queue must already be initialized by the host. The
// context does not take ownership of either.
func NewContext(device hal.Device, queue hal.Queue) (*Context, error) {
	return NewContextWithLimits(device, queue, nil)
}

// NewContextWithLimits creates a Context carrying the limits the host
// opened the adapter with. If limits is nil, default limits are
// assumed.
func NewContextWithLimits(device hal.Device, queue hal.Queue, limits *gputypes.Limits) (*Context, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	if queue == nil {
		return nil, ErrNilQueue
	}
	lim := gputypes.DefaultLimits()
	if limits != nil {
		lim = *limits
	}
	Logger().Debug("gpures: context created")
	return &Context{
		device: device,
		queue:  queue,
		limits: lim,
		track:  newTracker(),
	}, nil
}

// FromProvider creates a Context from a gpucontext.DeviceProvider,
// the device-sharing integration point used across the GoGPU stack.
//
// The provider must additionally expose the HAL bridge methods
// HalDevice() any and HalQueue() any returning hal.Device and
// hal.Queue, which host frameworks like gogpu implement.
func FromProvider(provider gpucontext.DeviceProvider) (*Context, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALBridge
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHALBridge)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHALBridge)
	}
	return NewContext(device, queue)
}

// Device returns the HAL device, or nil if the context has been closed.
func (c *Context) Device() hal.Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil
	}
	return c.device
}

// Queue returns the HAL queue, or nil if the context has been closed.
func (c *Context) Queue() hal.Queue {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil
	}
	return c.queue
}

// Capabilities returns the creation-relevant limits of the device this
// context wraps, as reported by the host at construction.
func (c *Context) Capabilities() Capabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Capabilities{
		MaxTextureSize: c.limits.MaxTextureDimension2D,
		MaxBufferSize:  c.limits.MaxBufferSize,
		MaxWorkgroupSize: [3]uint32{
			c.limits.MaxComputeWorkgroupSizeX,
			c.limits.MaxComputeWorkgroupSizeY,
			c.limits.MaxComputeWorkgroupSizeZ,
		},
	}
}

// Stats returns a snapshot of resource lifetime statistics for this
// context. Useful for leak checks: after destroying everything that was
// created, Stats().Live() returns to its earlier value.
func (c *Context) Stats() Stats {
	return c.track.stats()
}

// Flush submits an empty command batch with a fence and waits for the
// GPU to reach it, bounding the wait at a few seconds. Useful in
// teardown paths and tests to ensure prior work has drained.
func (c *Context) Flush() error {
	device, queue, err := c.ready()
	if err != nil {
		return err
	}

	fence, err := device.CreateFence()
	if err != nil {
		return fmt.Errorf("gpures: create flush fence: %w", err)
	}
	defer device.DestroyFence(fence)

	if err := queue.Submit(nil, fence, 1); err != nil {
		return fmt.Errorf("gpures: flush submit: %w", err)
	}
	ok, err := device.Wait(fence, 1, flushTimeout)
	if err != nil {
		return fmt.Errorf("gpures: flush wait: %w", err)
	}
	if !ok {
		return fmt.Errorf("gpures: flush wait timed out after %v", flushTimeout)
	}
	return nil
}

// Close severs the context's device and queue references. Resources can
// no longer be constructed on a closed context; live wrappers keep
// their own device reference and can still be destroyed.
//
// Close does not destroy the device: the host owns it. Close is
// idempotent.
func (c *Context) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.device = nil
	c.queue = nil
	c.mu.Unlock()

	if live := c.track.stats().Live(); live > 0 {
		Logger().Warn("gpures: context closed with live resources", "live", live)
	} else {
		Logger().Debug("gpures: context closed")
	}
}

// ready returns the device and queue for an operation, or an error if
// the context is nil or closed. The nil-receiver check makes the
// "no current context" contract violation fail with a clear error
// instead of a panic.
func (c *Context) ready() (hal.Device, hal.Queue, error) {
	if c == nil {
		return nil, nil, ErrNilContext
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, nil, ErrContextClosed
	}
	return c.device, c.queue, nil
}
