// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpures

import (
	"errors"
	"fmt"
	"image"
	stddraw "image/draw"

	"golang.org/x/image/draw"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Image transfer errors.
var (
	// ErrNilImage is returned when uploading a nil image.
	ErrNilImage = errors.New("gpures: image is nil")

	// ErrPixelDataSize is returned when raw pixel data does not match the
	// texture dimensions.
	ErrPixelDataSize = errors.New("gpures: pixel data size mismatch")

	// ErrUnsupportedFormat is returned for formats without a known pixel size.
	ErrUnsupportedFormat = errors.New("gpures: unsupported texture format")
)

// readbackRowAlignment is the BytesPerRow alignment WebGPU requires for
// texture-to-buffer copies.
const readbackRowAlignment = 256

// bytesPerPixel returns the pixel size for the formats gpures can
// transfer to and from the CPU.
func bytesPerPixel(format gputypes.TextureFormat) (uint32, error) {
	switch format {
	case gputypes.TextureFormatRGBA8Unorm,
		gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatBGRA8Unorm,
		gputypes.TextureFormatBGRA8UnormSrgb:
		return 4, nil
	case gputypes.TextureFormatR8Unorm:
		return 1, nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
}

// Write uploads raw pixel data covering the whole texture at mip
// level 0.
//
// The data length must equal width * height * bytesPerPixel for the
// texture's format, rows tightly packed.
func (t *Texture) Write(data []byte) error {
	halTex, err := t.raw()
	if err != nil {
		return err
	}
	bpp, err := bytesPerPixel(t.descriptor.Format)
	if err != nil {
		return err
	}
	width, height := t.Width(), t.Height()
	expected := uint64(width) * uint64(height) * uint64(bpp)
	if uint64(len(data)) != expected {
		return fmt.Errorf("%w: got %d bytes, want %d for %dx%d",
			ErrPixelDataSize, len(data), expected, width, height)
	}
	_, queue, err := t.ctx.ready()
	if err != nil {
		return err
	}

	queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  halTex,
			MipLevel: 0,
			Origin:   hal.Origin3D{X: 0, Y: 0, Z: 0},
			Aspect:   gputypes.TextureAspectAll,
		},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  width * bpp,
			RowsPerImage: height,
		},
		&hal.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

// WriteImage uploads an image.Image to the texture.
//
// The image is converted to RGBA, and scaled with bilinear filtering
// when its bounds do not match the texture size. The texture format
// must be a 4-byte RGBA or BGRA variant.
func (t *Texture) WriteImage(img image.Image) error {
	if img == nil {
		return ErrNilImage
	}
	bpp, err := bytesPerPixel(t.descriptor.Format)
	if err != nil {
		return err
	}
	if bpp != 4 {
		return fmt.Errorf("%w: WriteImage needs a 4-byte format, have %v",
			ErrUnsupportedFormat, t.descriptor.Format)
	}

	width, height := int(t.Width()), int(t.Height())
	rgba := imageToRGBA(img, width, height)
	if isBGRAFormat(t.descriptor.Format) {
		swapRedBlue(rgba.Pix)
	}
	return t.Write(rgba.Pix)
}

// imageToRGBA converts img to a tightly-packed RGBA image of the given
// size, scaling when the bounds differ.
func imageToRGBA(img image.Image, width, height int) *image.RGBA {
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	if bounds.Dx() == width && bounds.Dy() == height {
		stddraw.Draw(rgba, rgba.Bounds(), img, bounds.Min, stddraw.Src)
	} else {
		draw.BiLinear.Scale(rgba, rgba.Bounds(), img, bounds, draw.Src, nil)
	}
	return rgba
}

// isBGRAFormat reports whether the format stores blue first.
func isBGRAFormat(format gputypes.TextureFormat) bool {
	return format == gputypes.TextureFormatBGRA8Unorm ||
		format == gputypes.TextureFormatBGRA8UnormSrgb
}

// swapRedBlue swaps the R and B channels of 4-byte pixels in place.
func swapRedBlue(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}

// ReadPixels copies the texture's mip level 0 back to the CPU as
// tightly-packed pixel rows.
//
// The copy goes through a staging buffer with the 256-byte row
// alignment texture-to-buffer copies require; the padding is stripped
// before returning. The texture must carry CopySrc usage.
func (t *Texture) ReadPixels() ([]byte, error) {
	halTex, err := t.raw()
	if err != nil {
		return nil, err
	}
	bpp, err := bytesPerPixel(t.descriptor.Format)
	if err != nil {
		return nil, err
	}
	device, queue, err := t.ctx.ready()
	if err != nil {
		return nil, err
	}

	width, height := t.Width(), t.Height()
	unpaddedRow := width * bpp
	paddedRow := (unpaddedRow + readbackRowAlignment - 1) &^ uint32(readbackRowAlignment-1)
	stagingSize := uint64(paddedRow) * uint64(height)

	staging, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: t.descriptor.Label + " (readback)",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpures: create readback buffer: %w", err)
	}
	defer device.DestroyBuffer(staging)

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "gpures_read_pixels",
	})
	if err != nil {
		return nil, fmt.Errorf("gpures: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("gpures_read_pixels"); err != nil {
		return nil, fmt.Errorf("gpures: begin encoding: %w", err)
	}
	encoder.CopyTextureToBuffer(halTex, staging, []hal.BufferTextureCopy{
		{
			BufferLayout: hal.ImageDataLayout{
				Offset:       0,
				BytesPerRow:  paddedRow,
				RowsPerImage: height,
			},
			TextureBase: hal.ImageCopyTexture{
				Texture:  halTex,
				MipLevel: 0,
				Origin:   hal.Origin3D{X: 0, Y: 0, Z: 0},
				Aspect:   gputypes.TextureAspectAll,
			},
			Size: hal.Extent3D{
				Width:              width,
				Height:             height,
				DepthOrArrayLayers: 1,
			},
		},
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

	padded := make([]byte, stagingSize)
	if err := queue.ReadBuffer(staging, 0, padded); err != nil {
		return nil, fmt.Errorf("gpures: readback: %w", err)
	}

	if paddedRow == unpaddedRow {
		return padded, nil
	}
	out := make([]byte, uint64(unpaddedRow)*uint64(height))
	for y := uint32(0); y < height; y++ {
		copy(out[y*unpaddedRow:(y+1)*unpaddedRow], padded[y*paddedRow:y*paddedRow+unpaddedRow])
	}
	return out, nil
}

// ReadImage reads the texture back as an image.RGBA. BGRA formats are
// converted on the CPU.
func (t *Texture) ReadImage() (*image.RGBA, error) {
	bpp, err := bytesPerPixel(t.descriptor.Format)
	if err != nil {
		return nil, err
	}
	if bpp != 4 {
		return nil, fmt.Errorf("%w: ReadImage needs a 4-byte format, have %v",
			ErrUnsupportedFormat, t.descriptor.Format)
	}
	pix, err := t.ReadPixels()
	if err != nil {
		return nil, err
	}
	if isBGRAFormat(t.descriptor.Format) {
		swapRedBlue(pix)
	}
	rgba := image.NewRGBA(image.Rect(0, 0, int(t.Width()), int(t.Height())))
	copy(rgba.Pix, pix)
	return rgba, nil
}
