package analyzer

import (
	"context"
	"image"

	apperrors "github.com/anime-shed/forgery-inspector-go/internal/errors"
	"github.com/anime-shed/forgery-inspector-go/internal/imaging"
)

const (
	elaMaxIntensityThreshold = 50
	elaVarianceThreshold     = 1000
)

// AnalyzeELA re-encodes img at quality to A, re-encodes A again to B and
// measures the greyscale difference |A - B|. Any failure is fatal to the
// pipeline and is reported as an image decode error.
func AnalyzeELA(ctx context.Context, codec imaging.Codec, img image.Image, quality int) (*ELAResult, error) {
	first, err := codec.Reencode(img, quality)
	if err != nil {
		return nil, asDecodeError("first ELA re-encode failed", err)
	}
	decoded, _, err := codec.Decode(first)
	if err != nil {
		return nil, asDecodeError("failed to decode re-encoded image", err)
	}
	second, err := codec.Reencode(decoded, quality)
	if err != nil {
		return nil, asDecodeError("second ELA re-encode failed", err)
	}

	diffBytes, err := codec.Difference(imaging.WithQuality(ctx, quality), first, second)
	if err != nil {
		return nil, asDecodeError("ELA difference failed", err)
	}
	diffImage, _, err := codec.Decode(diffBytes)
	if err != nil {
		return nil, asDecodeError("failed to decode ELA difference", err)
	}

	diff := codec.GreyscaleRaw(diffImage)
	stats := ComputeStatistics(diff.Samples)
	histogram := intensityHistogram(diff.Samples)

	return &ELAResult{
		Quality:      quality,
		Statistics:   stats,
		HasAnomalies: stats.MaxIntensity > elaMaxIntensityThreshold || stats.Variance > elaVarianceThreshold,
		Histogram:    histogram,
		Peaks:        histogramPeaks(histogram, stats.Mean),
		Difference:   diff,
	}, nil
}

func intensityHistogram(samples []uint8) [256]int {
	var hist [256]int
	for _, s := range samples {
		hist[s]++
	}
	return hist
}

// histogramPeaks returns bins that are strict local maxima and whose count
// exceeds floor. The first and last bins are never peaks.
func histogramPeaks(hist [256]int, floor float64) []int {
	peaks := []int{}
	for i := 1; i < len(hist)-1; i++ {
		if hist[i] > hist[i-1] && hist[i] > hist[i+1] && float64(hist[i]) > floor {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

func asDecodeError(message string, err error) error {
	if apperrors.IsType(err, apperrors.ErrorTypeImageDecode) {
		return err
	}
	return apperrors.NewImageDecodeError(message, err)
}
