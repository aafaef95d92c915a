// Package imaging is the image access adapter used by the forensics engine.
// It exposes the primitive codec operations the analyzers need and nothing
// more: decode, resize, re-encode at a JPEG quality, greyscale extraction,
// 3x3 convolution and pixel differencing.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	apperrors "github.com/anime-shed/forgery-inspector-go/internal/errors"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Raster is a tightly packed 8-bit sample buffer with its origin at (0,0).
type Raster struct {
	Samples  []uint8
	Width    int
	Height   int
	Channels int
}

// At returns the first-channel sample at (x, y).
func (r Raster) At(x, y int) uint8 {
	return r.Samples[(y*r.Width+x)*r.Channels]
}

// Len returns the number of pixels in the raster.
func (r Raster) Len() int {
	return r.Width * r.Height
}

// Kernel is a 3x3 convolution kernel.
type Kernel [3][3]float64

// HighPassKernel is the Laplacian-style edge kernel used for edge analysis.
var HighPassKernel = Kernel{
	{-1, -1, -1},
	{-1, 8, -1},
	{-1, -1, -1},
}

// Codec defines the image operations the analyzers consume.
type Codec interface {
	Decode(data []byte) (image.Image, string, error)
	DecodeConfig(data []byte) (image.Config, string, error)
	Resize(img image.Image, width, height int) image.Image
	Reencode(img image.Image, quality int) ([]byte, error)
	GreyscaleRaw(img image.Image) Raster
	Convolve(gray Raster, kernel Kernel) Raster
	Difference(ctx context.Context, a, b []byte) ([]byte, error)
}

// Differ computes the per-pixel absolute difference of two encoded images
// and returns the difference as an encoded image.
type Differ interface {
	Difference(ctx context.Context, a, b []byte) ([]byte, error)
}

// codec implements Codec with the standard decoders plus x/image formats.
type codec struct {
	differ Differ
}

// NewCodec creates a codec. A nil differ selects in-process differencing.
func NewCodec(differ Differ) Codec {
	if differ == nil {
		differ = NewLocalDiffer()
	}
	return &codec{differ: differ}
}

func (c *codec) Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", apperrors.NewImageDecodeError("failed to decode image", err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, "", apperrors.NewImageDecodeError(fmt.Sprintf("image has empty bounds %v", b), nil)
	}
	return img, format, nil
}

func (c *codec) DecodeConfig(data []byte) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", apperrors.NewImageDecodeError("failed to read image header", err)
	}
	return cfg, format, nil
}

// Resize scales img to exactly width x height, ignoring aspect ratio.
func (c *codec) Resize(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func (c *codec) Reencode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, apperrors.NewImageDecodeError(fmt.Sprintf("failed to re-encode image at quality %d", quality), err)
	}
	return buf.Bytes(), nil
}

// GreyscaleRaw returns single-channel luma samples.
func (c *codec) GreyscaleRaw(img image.Image) Raster {
	return greyscale(img)
}

// Convolve applies kernel to a single-channel raster. Borders replicate the
// nearest edge sample and results are clamped to [0,255].
func (c *codec) Convolve(gray Raster, kernel Kernel) Raster {
	w, h := gray.Width, gray.Height
	out := Raster{Samples: make([]uint8, w*h), Width: w, Height: h, Channels: 1}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float64
			for ky := -1; ky <= 1; ky++ {
				sy := clampInt(y+ky, 0, h-1)
				for kx := -1; kx <= 1; kx++ {
					sx := clampInt(x+kx, 0, w-1)
					acc += float64(gray.Samples[(sy*w+sx)*gray.Channels]) * kernel[ky+1][kx+1]
				}
			}
			out.Samples[y*w+x] = clampSample(acc)
		}
	}
	return out
}

func (c *codec) Difference(ctx context.Context, a, b []byte) ([]byte, error) {
	return c.differ.Difference(ctx, a, b)
}

func greyscale(img image.Image) Raster {
	bounds := img.Bounds()
	gray, ok := img.(*image.Gray)
	if !ok || bounds.Min != (image.Point{}) || gray.Stride != bounds.Dx() {
		gray = image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	}
	return Raster{
		Samples:  gray.Pix,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Channels: 1,
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampSample(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}
