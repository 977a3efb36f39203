// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpures

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/gputypes"
)

func newTestImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0, A: 255})
		}
	}
	return img
}

func TestTextureWrite(t *testing.T) {
	ctx, _, queue := newMockContext(t)
	defer ctx.Close()

	tex, err := NewTexture2D(ctx, 4, 4, gputypes.TextureFormatRGBA8Unorm,
		gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopyDst, "upload")
	if err != nil {
		t.Fatalf("NewTexture2D failed: %v", err)
	}
	defer tex.Destroy()

	if err := tex.Write(make([]byte, 4*4*4)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if queue.textureWrites != 1 {
		t.Errorf("expected 1 texture write, got %d", queue.textureWrites)
	}
	if queue.lastTexLayout.BytesPerRow != 16 {
		t.Errorf("expected BytesPerRow 16, got %d", queue.lastTexLayout.BytesPerRow)
	}

	// Mismatched data size fails before the queue sees anything.
	if err := tex.Write(make([]byte, 10)); !errors.Is(err, ErrPixelDataSize) {
		t.Errorf("expected ErrPixelDataSize, got %v", err)
	}
	if queue.textureWrites != 1 {
		t.Errorf("expected no extra write, got %d", queue.textureWrites)
	}
}

func TestTextureWriteImage(t *testing.T) {
	ctx, _, queue := newMockContext(t)
	defer ctx.Close()

	tex, err := NewTexture2D(ctx, 4, 4, gputypes.TextureFormatRGBA8Unorm,
		gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopyDst, "img")
	if err != nil {
		t.Fatalf("NewTexture2D failed: %v", err)
	}
	defer tex.Destroy()

	if err := tex.WriteImage(nil); !errors.Is(err, ErrNilImage) {
		t.Errorf("expected ErrNilImage, got %v", err)
	}

	if err := tex.WriteImage(newTestImage(4, 4)); err != nil {
		t.Fatalf("WriteImage failed: %v", err)
	}
	if len(queue.lastTexData) != 64 {
		t.Errorf("expected 64 uploaded bytes, got %d", len(queue.lastTexData))
	}
	// Pixel (1, 0) carries R=1 in the test pattern.
	if queue.lastTexData[4] != 1 {
		t.Errorf("expected R=1 at pixel (1,0), got %d", queue.lastTexData[4])
	}
}

func TestTextureWriteImageScales(t *testing.T) {
	ctx, _, queue := newMockContext(t)
	defer ctx.Close()

	tex, err := NewTexture2D(ctx, 8, 8, gputypes.TextureFormatRGBA8Unorm,
		gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopyDst, "scaled")
	if err != nil {
		t.Fatalf("NewTexture2D failed: %v", err)
	}
	defer tex.Destroy()

	// A 4x4 source is scaled up to the 8x8 texture.
	if err := tex.WriteImage(newTestImage(4, 4)); err != nil {
		t.Fatalf("WriteImage failed: %v", err)
	}
	if len(queue.lastTexData) != 8*8*4 {
		t.Errorf("expected %d uploaded bytes, got %d", 8*8*4, len(queue.lastTexData))
	}
}

func TestTextureWriteImageBGRASwapsChannels(t *testing.T) {
	ctx, _, queue := newMockContext(t)
	defer ctx.Close()

	tex, err := NewTexture2D(ctx, 4, 4, gputypes.TextureFormatBGRA8Unorm,
		gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopyDst, "bgra")
	if err != nil {
		t.Fatalf("NewTexture2D failed: %v", err)
	}
	defer tex.Destroy()

	if err := tex.WriteImage(newTestImage(4, 4)); err != nil {
		t.Fatalf("WriteImage failed: %v", err)
	}
	// Pixel (1, 0) has R=1; in BGRA order the red value lands at byte 2.
	if queue.lastTexData[4+2] != 1 {
		t.Errorf("expected R=1 at BGRA byte 2, got %d", queue.lastTexData[4+2])
	}
}

func TestTextureWriteUnsupportedFormat(t *testing.T) {
	ctx, _, _ := newMockContext(t)
	defer ctx.Close()

	tex, err := NewTexture2D(ctx, 4, 4, gputypes.TextureFormatDepth24PlusStencil8,
		gputypes.TextureUsageRenderAttachment, "depth")
	if err != nil {
		t.Fatalf("NewTexture2D failed: %v", err)
	}
	defer tex.Destroy()

	if err := tex.Write(make([]byte, 64)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
	if err := tex.WriteImage(newTestImage(4, 4)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestTextureReadPixels(t *testing.T) {
	ctx, cleanup := newNoopContext(t)
	defer cleanup()
	defer ctx.Close()

	tex, err := NewTexture2D(ctx, 4, 4, gputypes.TextureFormatRGBA8Unorm,
		gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopySrc|gputypes.TextureUsageCopyDst,
		"readback")
	if err != nil {
		t.Fatalf("NewTexture2D failed: %v", err)
	}
	defer tex.Destroy()

	pix, err := tex.ReadPixels()
	if err != nil {
		t.Fatalf("ReadPixels failed: %v", err)
	}
	// Rows come back unpadded: 4 pixels * 4 bytes * 4 rows.
	if len(pix) != 64 {
		t.Errorf("expected 64 bytes, got %d", len(pix))
	}

	img, err := tex.ReadImage()
	if err != nil {
		t.Fatalf("ReadImage failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 4 {
		t.Errorf("expected 4x4 image, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestSwapRedBlue(t *testing.T) {
	pix := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	swapRedBlue(pix)
	want := []byte{3, 2, 1, 4, 7, 6, 5, 8}
	for i := range want {
		if pix[i] != want[i] {
			t.Fatalf("byte %d: expected %d, got %d", i, want[i], pix[i])
		}
	}
}
