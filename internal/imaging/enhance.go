package imaging

import (
	"bytes"
	"image"
	"image/png"
	"math"
)

// Enhance stretches a single-channel raster so its brightest sample maps to
// 255. A raster with no signal is returned at scale 1.
func Enhance(r Raster) *image.Gray {
	var maxSample uint8
	for i := 0; i < r.Len(); i++ {
		if s := r.Samples[i*r.Channels]; s > maxSample {
			maxSample = s
		}
	}

	scale := 1.0
	if maxSample > 0 {
		scale = 255.0 / float64(maxSample)
	}

	out := image.NewGray(image.Rect(0, 0, r.Width, r.Height))
	for i := 0; i < r.Len(); i++ {
		out.Pix[i] = uint8(math.Min(255, math.Round(float64(r.Samples[i*r.Channels])*scale)))
	}
	return out
}

// EncodePNG encodes img losslessly.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
