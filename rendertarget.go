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

// Render target errors.
var (
	// ErrTargetDestroyed is returned when operating on a destroyed render target.
	ErrTargetDestroyed = errors.New("gpures: render target has been destroyed")

	// ErrNilTargetTexture is returned when wrapping a nil texture as a target.
	ErrNilTargetTexture = errors.New("gpures: render target texture is nil")

	// ErrNotRenderable is returned when a texture lacks RenderAttachment usage.
	ErrNotRenderable = errors.New("gpures: texture does not carry RenderAttachment usage")
)

// RenderTargetDescriptor describes an offscreen render target.
type RenderTargetDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Width and Height are the target dimensions in pixels.
	Width  uint32
	Height uint32

	// Format is the color attachment format.
	Format gputypes.TextureFormat

	// SampleCount is the MSAA sample count (0 defaults to 1).
	SampleCount uint32

	// DepthStencilFormat adds a depth/stencil attachment when set
	// (TextureFormatUndefined means none).
	DepthStencilFormat gputypes.TextureFormat
}

// RenderTarget is an offscreen rendering destination: a color texture,
// optionally a depth/stencil texture, and the render pass plumbing to
// draw into them.
//
// A target created by NewRenderTarget owns its textures and destroys
// them with itself. A target created by TargetForTexture borrows the
// caller's texture and destroys nothing.
type RenderTarget struct {
	mu sync.RWMutex

	ctx *Context

	color *Texture
	depth *Texture

	// owned marks targets that created (and must destroy) their textures.
	owned bool

	label     string
	destroyed bool
}

// NewRenderTarget creates an offscreen target with its own color
// texture, and a depth/stencil texture when the descriptor asks for
// one.
//
// The color texture carries RenderAttachment, TextureBinding, and
// CopySrc so the result can be sampled and read back.
func NewRenderTarget(ctx *Context, desc *RenderTargetDescriptor) (*RenderTarget, error) {
	if _, _, err := ctx.ready(); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, ErrNilTargetTexture
	}

	sampleCount := desc.SampleCount
	if sampleCount == 0 {
		sampleCount = 1
	}

	color, err := NewTexture(ctx, &TextureDescriptor{
		Label: desc.Label + "_color",
		Size: gputypes.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		SampleCount: sampleCount,
		Dimension:   gputypes.TextureDimension2D,
		Format:      desc.Format,
		Usage: gputypes.TextureUsageRenderAttachment |
			gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("gpures: create target color texture: %w", err)
	}

	var depth *Texture
	if desc.DepthStencilFormat != gputypes.TextureFormatUndefined {
		depth, err = NewTexture(ctx, &TextureDescriptor{
			Label: desc.Label + "_depth",
			Size: gputypes.Extent3D{
				Width:              desc.Width,
				Height:             desc.Height,
				DepthOrArrayLayers: 1,
			},
			SampleCount: sampleCount,
			Dimension:   gputypes.TextureDimension2D,
			Format:      desc.DepthStencilFormat,
			Usage:       gputypes.TextureUsageRenderAttachment,
		})
		if err != nil {
			color.Destroy()
			return nil, fmt.Errorf("gpures: create target depth texture: %w", err)
		}
	}

	rt := &RenderTarget{
		ctx:   ctx,
		color: color,
		depth: depth,
		owned: true,
		label: desc.Label,
	}
	if err := ctx.track.register(KindRenderTarget, rt); err != nil {
		if depth != nil {
			depth.Destroy()
		}
		color.Destroy()
		return nil, err
	}
	Logger().Debug("gpures: render target created",
		"label", desc.Label, "width", desc.Width, "height", desc.Height)
	return rt, nil
}

// TargetForTexture wraps an existing texture as a render target without
// taking ownership: destroying the target leaves the texture alive.
//
// The texture must carry RenderAttachment usage.
func TargetForTexture(ctx *Context, color *Texture) (*RenderTarget, error) {
	if _, _, err := ctx.ready(); err != nil {
		return nil, err
	}
	if color == nil {
		return nil, ErrNilTargetTexture
	}
	if color.Usage()&gputypes.TextureUsageRenderAttachment == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotRenderable, color.Label())
	}

	rt := &RenderTarget{
		ctx:   ctx,
		color: color,
		owned: false,
		label: color.Label(),
	}
	if err := ctx.track.register(KindRenderTarget, rt); err != nil {
		return nil, err
	}
	return rt, nil
}

// Label returns the target's debug label.
func (rt *RenderTarget) Label() string {
	return rt.label
}

// Width returns the target width in pixels.
func (rt *RenderTarget) Width() uint32 {
	return rt.color.Width()
}

// Height returns the target height in pixels.
func (rt *RenderTarget) Height() uint32 {
	return rt.color.Height()
}

// Format returns the color attachment format.
func (rt *RenderTarget) Format() gputypes.TextureFormat {
	return rt.color.Format()
}

// ColorTexture returns the color attachment texture.
func (rt *RenderTarget) ColorTexture() *Texture {
	return rt.color
}

// DepthTexture returns the depth/stencil texture, or nil when the
// target has none.
func (rt *RenderTarget) DepthTexture() *Texture {
	return rt.depth
}

// IsDestroyed returns true if the target has been destroyed.
func (rt *RenderTarget) IsDestroyed() bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.destroyed
}

// PassDescriptor builds a render pass descriptor targeting this
// target's attachments.
//
// A non-nil clear color starts the pass with LoadOpClear; nil loads the
// previous contents. The depth attachment, when present, always clears
// to depth 1 and stencil 0.
func (rt *RenderTarget) PassDescriptor(clear *gputypes.Color) (*hal.RenderPassDescriptor, error) {
	rt.mu.RLock()
	destroyed := rt.destroyed
	rt.mu.RUnlock()
	if destroyed {
		return nil, ErrTargetDestroyed
	}

	colorView, err := rt.color.DefaultView()
	if err != nil {
		return nil, err
	}

	attachment := hal.RenderPassColorAttachment{
		View:    colorView.Raw(),
		LoadOp:  gputypes.LoadOpLoad,
		StoreOp: gputypes.StoreOpStore,
	}
	if clear != nil {
		attachment.LoadOp = gputypes.LoadOpClear
		attachment.ClearValue = *clear
	}

	desc := &hal.RenderPassDescriptor{
		Label:            rt.label + "_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{attachment},
	}
	if rt.depth != nil {
		depthView, err := rt.depth.DefaultView()
		if err != nil {
			return nil, err
		}
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:              depthView.Raw(),
			DepthLoadOp:       gputypes.LoadOpClear,
			DepthStoreOp:      gputypes.StoreOpDiscard,
			DepthClearValue:   1.0,
			StencilLoadOp:     gputypes.LoadOpClear,
			StencilStoreOp:    gputypes.StoreOpDiscard,
			StencilClearValue: 0,
		}
	}
	return desc, nil
}

// BeginPass begins a render pass into the target on the given encoder.
func (rt *RenderTarget) BeginPass(encoder hal.CommandEncoder, clear *gputypes.Color) (hal.RenderPassEncoder, error) {
	desc, err := rt.PassDescriptor(clear)
	if err != nil {
		return nil, err
	}
	return encoder.BeginRenderPass(desc), nil
}

// ReadPixels reads the color attachment back to the CPU as
// tightly-packed pixel rows.
func (rt *RenderTarget) ReadPixels() ([]byte, error) {
	rt.mu.RLock()
	destroyed := rt.destroyed
	rt.mu.RUnlock()
	if destroyed {
		return nil, ErrTargetDestroyed
	}
	return rt.color.ReadPixels()
}

// ReleaseTextures transfers ownership of the target's textures to the
// caller and destroys the target wrapper. The returned textures stay
// live; depth is nil when the target had no depth attachment.
func (rt *RenderTarget) ReleaseTextures() (color, depth *Texture, err error) {
	rt.mu.Lock()
	if rt.destroyed {
		rt.mu.Unlock()
		return nil, nil, ErrTargetDestroyed
	}
	rt.destroyed = true
	color, depth = rt.color, rt.depth
	rt.owned = false
	rt.mu.Unlock()

	rt.ctx.track.releaseDetached(KindRenderTarget, rt)
	Logger().Debug("gpures: render target released textures", "label", rt.label)
	return color, depth, nil
}

// Destroy releases the target and, for owning targets, its textures.
// Idempotent.
func (rt *RenderTarget) Destroy() {
	rt.mu.Lock()
	if rt.destroyed {
		rt.mu.Unlock()
		return
	}
	rt.destroyed = true
	owned := rt.owned
	color, depth := rt.color, rt.depth
	rt.mu.Unlock()

	rt.ctx.track.releaseDestroyed(KindRenderTarget, rt)
	if owned {
		if depth != nil {
			depth.Destroy()
		}
		if color != nil {
			color.Destroy()
		}
	}
	Logger().Debug("gpures: render target destroyed", "label", rt.label)
}
