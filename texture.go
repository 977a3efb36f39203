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

// Texture errors.
var (
	// ErrTextureDestroyed is returned when operating on a destroyed texture.
	ErrTextureDestroyed = errors.New("gpures: texture has been destroyed")

	// ErrTextureDetached is returned when operating on a texture whose
	// handle was transferred away.
	ErrTextureDetached = errors.New("gpures: texture handle has been detached")

	// ErrTextureViewDestroyed is returned when operating on a destroyed view.
	ErrTextureViewDestroyed = errors.New("gpures: texture view has been destroyed")

	// ErrNilTextureDescriptor is returned when creating a texture without a descriptor.
	ErrNilTextureDescriptor = errors.New("gpures: texture descriptor is nil")

	// ErrInvalidTextureSize is returned when texture dimensions are invalid.
	ErrInvalidTextureSize = errors.New("gpures: invalid texture size")

	// ErrDefaultViewCreationFailed is returned when lazy default view creation fails.
	ErrDefaultViewCreationFailed = errors.New("gpures: failed to create default view")
)

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Size is the texture dimensions.
	Size gputypes.Extent3D

	// MipLevelCount is the number of mip levels (0 defaults to 1).
	MipLevelCount uint32

	// SampleCount is the number of samples per pixel (0 defaults to 1).
	SampleCount uint32

	// Dimension is the texture dimension (1D, 2D, 3D).
	Dimension gputypes.TextureDimension

	// Format is the texture pixel format.
	Format gputypes.TextureFormat

	// Usage specifies how the texture will be used.
	Usage gputypes.TextureUsage

	// ViewFormats are additional formats for texture views.
	ViewFormats []gputypes.TextureFormat
}

// TextureBinding names a (group, binding) slot a texture view is bound
// to in a shader. The WebGPU analog of a GL texture unit.
type TextureBinding struct {
	Group   uint32
	Binding uint32
}

// Texture owns exactly one raw HAL texture handle.
//
// The default view is created lazily with sync.Once and shares the
// texture's lifetime: destroying the texture destroys it too. Custom
// views are independent owners released by their own Destroy.
//
// Texture is safe for concurrent read access.
type Texture struct {
	mu sync.RWMutex

	ctx        *Context
	device     hal.Device
	halTexture hal.Texture

	// descriptor holds the texture configuration (immutable after creation).
	descriptor TextureDescriptor

	// defaultViewOnce ensures the default view is created exactly once.
	defaultViewOnce sync.Once
	defaultView     *TextureView
	defaultViewErr  error

	destroyed bool
	detached  bool
}

// NewTexture creates a texture on the context's device and returns its
// owning wrapper.
//
// Width and height must be non-zero. Zero MipLevelCount, SampleCount,
// and DepthOrArrayLayers default to 1, and Descriptor() reports the
// resolved values.
func NewTexture(ctx *Context, desc *TextureDescriptor) (*Texture, error) {
	device, _, err := ctx.ready()
	if err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, ErrNilTextureDescriptor
	}
	if desc.Size.Width == 0 || desc.Size.Height == 0 {
		return nil, fmt.Errorf("%w: width=%d, height=%d",
			ErrInvalidTextureSize, desc.Size.Width, desc.Size.Height)
	}

	resolvedDesc := *desc
	if resolvedDesc.MipLevelCount == 0 {
		resolvedDesc.MipLevelCount = 1
	}
	if resolvedDesc.SampleCount == 0 {
		resolvedDesc.SampleCount = 1
	}
	if resolvedDesc.Size.DepthOrArrayLayers == 0 {
		resolvedDesc.Size.DepthOrArrayLayers = 1
	}

	halTexture, err := device.CreateTexture(&hal.TextureDescriptor{
		Label: resolvedDesc.Label,
		Size: hal.Extent3D{
			Width:              resolvedDesc.Size.Width,
			Height:             resolvedDesc.Size.Height,
			DepthOrArrayLayers: resolvedDesc.Size.DepthOrArrayLayers,
		},
		MipLevelCount: resolvedDesc.MipLevelCount,
		SampleCount:   resolvedDesc.SampleCount,
		Dimension:     resolvedDesc.Dimension,
		Format:        resolvedDesc.Format,
		Usage:         resolvedDesc.Usage,
		ViewFormats:   resolvedDesc.ViewFormats,
	})
	if err != nil {
		return nil, fmt.Errorf("gpures: texture creation failed: %w", err)
	}

	t := &Texture{
		ctx:        ctx,
		device:     device,
		halTexture: halTexture,
		descriptor: resolvedDesc,
	}
	if err := ctx.track.register(KindTexture, halTexture); err != nil {
		device.DestroyTexture(halTexture)
		return nil, err
	}
	Logger().Debug("gpures: texture created",
		"label", resolvedDesc.Label,
		"width", resolvedDesc.Size.Width,
		"height", resolvedDesc.Size.Height)
	return t, nil
}

// NewTexture2D creates a 2D texture with common defaults: one mip
// level, one sample, one layer.
func NewTexture2D(
	ctx *Context,
	width, height uint32,
	format gputypes.TextureFormat,
	usage gputypes.TextureUsage,
	label string,
) (*Texture, error) {
	return NewTexture(ctx, &TextureDescriptor{
		Label: label,
		Size: gputypes.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
}

// Label returns the texture's debug label.
func (t *Texture) Label() string {
	return t.descriptor.Label
}

// Size returns the texture dimensions.
func (t *Texture) Size() gputypes.Extent3D {
	return t.descriptor.Size
}

// Width returns the texture width in pixels.
func (t *Texture) Width() uint32 {
	return t.descriptor.Size.Width
}

// Height returns the texture height in pixels.
func (t *Texture) Height() uint32 {
	return t.descriptor.Size.Height
}

// MipLevelCount returns the number of mip levels.
func (t *Texture) MipLevelCount() uint32 {
	return t.descriptor.MipLevelCount
}

// SampleCount returns the number of samples per pixel.
func (t *Texture) SampleCount() uint32 {
	return t.descriptor.SampleCount
}

// Format returns the texture pixel format.
func (t *Texture) Format() gputypes.TextureFormat {
	return t.descriptor.Format
}

// Usage returns the texture usage flags.
func (t *Texture) Usage() gputypes.TextureUsage {
	return t.descriptor.Usage
}

// Descriptor returns a copy of the resolved texture descriptor.
func (t *Texture) Descriptor() TextureDescriptor {
	return t.descriptor
}

// IsDestroyed returns true if the texture has been destroyed.
func (t *Texture) IsDestroyed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.destroyed
}

// IsDetached returns true if the handle was transferred away.
func (t *Texture) IsDetached() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.detached
}

// Raw returns the underlying texture handle.
//
// Returns nil if the texture has been destroyed or detached. The caller
// must not destroy the handle; the wrapper still owns it.
func (t *Texture) Raw() hal.Texture {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.destroyed || t.detached {
		return nil
	}
	return t.halTexture
}

// raw returns the live handle or the sentinel error for the wrapper's state.
func (t *Texture) raw() (hal.Texture, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.destroyed {
		return nil, ErrTextureDestroyed
	}
	if t.detached {
		return nil, ErrTextureDetached
	}
	return t.halTexture, nil
}

// DefaultView returns the default texture view, creating it lazily on
// first call.
//
// The default view covers all mip levels and array layers with the
// texture's native format, and is destroyed together with the texture.
// Safe for concurrent use; the view is created exactly once.
func (t *Texture) DefaultView() (*TextureView, error) {
	if _, err := t.raw(); err != nil {
		return nil, err
	}

	t.defaultViewOnce.Do(func() {
		t.defaultView, t.defaultViewErr = t.createDefaultView()
	})

	if t.defaultViewErr != nil {
		return nil, t.defaultViewErr
	}
	return t.defaultView, nil
}

func (t *Texture) createDefaultView() (*TextureView, error) {
	halTex, err := t.raw()
	if err != nil {
		return nil, err
	}

	// Zero values inherit format, dimension, and ranges from the texture.
	halDesc := &hal.TextureViewDescriptor{
		Label:           t.descriptor.Label + " (default view)",
		Format:          gputypes.TextureFormatUndefined,
		Dimension:       gputypes.TextureViewDimensionUndefined,
		Aspect:          gputypes.TextureAspectAll,
		BaseMipLevel:    0,
		MipLevelCount:   0,
		BaseArrayLayer:  0,
		ArrayLayerCount: 0,
	}

	halView, err := t.device.CreateTextureView(halTex, halDesc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDefaultViewCreationFailed, err)
	}

	view := &TextureView{
		ctx:        t.ctx,
		device:     t.device,
		halView:    halView,
		texture:    t,
		descriptor: resolveViewDescriptor(halDesc, t),
		isDefault:  true,
	}
	if err := t.ctx.track.register(KindTextureView, halView); err != nil {
		t.device.DestroyTextureView(halView)
		return nil, err
	}
	return view, nil
}

// CreateView creates a texture view with explicit parameters.
//
// A nil descriptor returns the default view. Custom views are owned by
// the caller and must be destroyed independently of the texture.
func (t *Texture) CreateView(desc *TextureViewDescriptor) (*TextureView, error) {
	if desc == nil {
		return t.DefaultView()
	}
	halTex, err := t.raw()
	if err != nil {
		return nil, err
	}

	halDesc := &hal.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          desc.Format,
		Dimension:       desc.Dimension,
		Aspect:          desc.Aspect,
		BaseMipLevel:    desc.BaseMipLevel,
		MipLevelCount:   desc.MipLevelCount,
		BaseArrayLayer:  desc.BaseArrayLayer,
		ArrayLayerCount: desc.ArrayLayerCount,
	}

	halView, err := t.device.CreateTextureView(halTex, halDesc)
	if err != nil {
		return nil, fmt.Errorf("gpures: create texture view: %w", err)
	}

	view := &TextureView{
		ctx:        t.ctx,
		device:     t.device,
		halView:    halView,
		texture:    t,
		descriptor: *desc,
		isDefault:  false,
	}
	if err := t.ctx.track.register(KindTextureView, halView); err != nil {
		t.device.DestroyTextureView(halView)
		return nil, err
	}
	return view, nil
}

// Detach transfers ownership of the raw texture handle out of the
// wrapper.
//
// The default view, if one was created, belongs to the wrapper rather
// than the raw handle and is destroyed. After Detach the caller is
// responsible for destroying the returned handle.
func (t *Texture) Detach() (hal.Texture, error) {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return nil, ErrTextureDestroyed
	}
	if t.detached {
		t.mu.Unlock()
		return nil, ErrTextureDetached
	}
	t.detached = true
	halTex := t.halTexture
	defaultView := t.defaultView
	t.halTexture = nil
	t.mu.Unlock()

	if defaultView != nil {
		defaultView.destroyInternal()
	}
	t.ctx.track.releaseDetached(KindTexture, halTex)
	Logger().Debug("gpures: texture detached", "label", t.descriptor.Label)
	return halTex, nil
}

// Destroy releases the texture handle and its default view.
//
// Exactly one release occurs for an owned handle; calling Destroy
// again, or after Detach, is a no-op. Custom views are not destroyed.
func (t *Texture) Destroy() {
	t.mu.Lock()
	if t.destroyed || t.detached {
		t.destroyed = true
		t.mu.Unlock()
		return
	}
	t.destroyed = true
	device := t.device
	halTex := t.halTexture
	defaultView := t.defaultView
	t.halTexture = nil
	t.mu.Unlock()

	if defaultView != nil {
		defaultView.destroyInternal()
	}
	t.ctx.track.releaseDestroyed(KindTexture, halTex)
	if device != nil && halTex != nil {
		device.DestroyTexture(halTex)
	}
	Logger().Debug("gpures: texture destroyed", "label", t.descriptor.Label)
}

// TextureView owns one raw HAL texture view handle.
//
// Default views share their texture's lifetime and ignore the public
// Destroy; custom views are released by their own Destroy, exactly
// once.
type TextureView struct {
	mu sync.RWMutex

	ctx     *Context
	device  hal.Device
	halView hal.TextureView

	// texture is the parent texture (retained reference).
	texture *Texture

	// descriptor holds the resolved view configuration.
	descriptor TextureViewDescriptor

	// isDefault marks the texture's lazily-created default view.
	isDefault bool

	destroyed bool
}

// TextureViewDescriptor describes a texture view to create.
type TextureViewDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Format is the view format (TextureFormatUndefined inherits from the texture).
	Format gputypes.TextureFormat

	// Dimension is the view dimension (TextureViewDimensionUndefined inherits).
	Dimension gputypes.TextureViewDimension

	// Aspect specifies which aspect to view (color, depth, stencil).
	Aspect gputypes.TextureAspect

	// BaseMipLevel is the first mip level in the view.
	BaseMipLevel uint32

	// MipLevelCount is the number of mip levels (0 means all remaining levels).
	MipLevelCount uint32

	// BaseArrayLayer is the first array layer in the view.
	BaseArrayLayer uint32

	// ArrayLayerCount is the number of array layers (0 means all remaining layers).
	ArrayLayerCount uint32
}

// Label returns the view's debug label.
func (v *TextureView) Label() string {
	return v.descriptor.Label
}

// Format returns the view's resolved format.
func (v *TextureView) Format() gputypes.TextureFormat {
	return v.descriptor.Format
}

// Texture returns the parent texture.
func (v *TextureView) Texture() *Texture {
	return v.texture
}

// Descriptor returns a copy of the resolved view descriptor.
func (v *TextureView) Descriptor() TextureViewDescriptor {
	return v.descriptor
}

// IsDefault returns true if this is the texture's default view.
func (v *TextureView) IsDefault() bool {
	return v.isDefault
}

// IsDestroyed returns true if the view has been destroyed.
func (v *TextureView) IsDestroyed() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.destroyed
}

// Raw returns the underlying texture view handle, or nil after destroy.
func (v *TextureView) Raw() hal.TextureView {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.destroyed {
		return nil
	}
	return v.halView
}

// Destroy releases the view handle.
//
// Default views are destroyed with their texture; calling Destroy on
// one is a no-op. Idempotent.
func (v *TextureView) Destroy() {
	if v.isDefault {
		Logger().Warn("gpures: ignoring Destroy on default view", "label", v.descriptor.Label)
		return
	}
	v.destroyInternal()
}

// destroyInternal releases both default and custom views.
func (v *TextureView) destroyInternal() {
	v.mu.Lock()
	if v.destroyed {
		v.mu.Unlock()
		return
	}
	v.destroyed = true
	device := v.device
	halView := v.halView
	v.halView = nil
	v.mu.Unlock()

	v.ctx.track.releaseDestroyed(KindTextureView, halView)
	if device != nil && halView != nil {
		device.DestroyTextureView(halView)
	}
}

// resolveViewDescriptor fills a view descriptor's inherited values from
// its texture.
func resolveViewDescriptor(halDesc *hal.TextureViewDescriptor, tex *Texture) TextureViewDescriptor {
	desc := TextureViewDescriptor{
		Label:           halDesc.Label,
		Format:          halDesc.Format,
		Dimension:       halDesc.Dimension,
		Aspect:          halDesc.Aspect,
		BaseMipLevel:    halDesc.BaseMipLevel,
		MipLevelCount:   halDesc.MipLevelCount,
		BaseArrayLayer:  halDesc.BaseArrayLayer,
		ArrayLayerCount: halDesc.ArrayLayerCount,
	}

	if desc.Format == gputypes.TextureFormatUndefined {
		desc.Format = tex.Format()
	}
	if desc.Dimension == gputypes.TextureViewDimensionUndefined {
		desc.Dimension = viewDimensionForTexture(tex.descriptor.Dimension)
	}
	if desc.MipLevelCount == 0 {
		desc.MipLevelCount = tex.MipLevelCount() - desc.BaseMipLevel
	}
	if desc.ArrayLayerCount == 0 {
		desc.ArrayLayerCount = tex.descriptor.Size.DepthOrArrayLayers - desc.BaseArrayLayer
	}

	return desc
}

// viewDimensionForTexture returns the default view dimension for a
// texture dimension.
func viewDimensionForTexture(dim gputypes.TextureDimension) gputypes.TextureViewDimension {
	switch dim {
	case gputypes.TextureDimension1D:
		return gputypes.TextureViewDimension1D
	case gputypes.TextureDimension2D:
		return gputypes.TextureViewDimension2D
	case gputypes.TextureDimension3D:
		return gputypes.TextureViewDimension3D
	default:
		return gputypes.TextureViewDimension2D
	}
}
