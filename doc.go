// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpures provides ownership wrappers for GPU resources in the
// GoGPU ecosystem.
//
// # Overview
//
// gpures ties the lifetime of raw gogpu/wgpu HAL handles (buffers,
// textures, samplers, shader modules, pipeline layouts) to Go wrapper
// values with an exactly-once destroy guarantee. Instead of manually
// pairing every CreateBuffer with a DestroyBuffer, callers construct a
// wrapper and call Destroy once when done; double destroys are no-ops,
// and transferring a handle out of a wrapper (Detach) guarantees the
// wrapper never releases it.
//
// # Quick Start
//
//	import "github.com/gogpu/gpures"
//
//	// The host application owns the device; gpures receives it.
//	ctx, err := gpures.NewContext(device, queue)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	buf, err := gpures.NewBuffer(ctx, &gpures.BufferDescriptor{
//	    Label: "vertices",
//	    Size:  4096,
//	    Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer buf.Destroy()
//
// # Ownership Model
//
// Every wrapper owns exactly one raw HAL handle. The library enforces:
//   - exactly one HAL destroy call per owned handle, on the first
//     Destroy; later calls are no-ops
//   - zero destroy calls for handles transferred away with Detach
//   - at most one live wrapper per raw handle, checked at construction
//     through the per-context tracker
//
// Go has no move semantics, so exclusive ownership is a runtime
// contract: a destroyed or detached wrapper reports Raw() == nil and
// rejects further operations with a sentinel error.
//
// # Context
//
// All constructors take a *Context, the capability token standing in
// for "the graphics API is initialized and current". gpures never
// creates a device; the host passes one in via NewContext or
// FromProvider. Destroying the device remains the host's job.
//
// # What gpures Is Not
//
// gpures is not a renderer. Window and surface creation, swapchains,
// scene management, and drawing algorithms are the caller's
// responsibility, as is making the device current before use.
package gpures

// Version information
const (
	// Version is the current version of the library
	Version = "0.2.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 2

	// VersionPatch is the patch version
	VersionPatch = 0
)
