package analyzer

import (
	"context"
	"image"

	"github.com/anime-shed/forgery-inspector-go/internal/imaging"
)

const (
	compressionGridSize      = 100
	compressionBlockSize     = 8
	compressionReportedLimit = 10
)

// AnalyzeCompression down-samples img to a fixed grid and compares per-block
// mean intensity, a coarse proxy for local compression quality. Failures
// degrade to a result without inconsistency.
func AnalyzeCompression(ctx context.Context, codec imaging.Codec, img image.Image) (result *CompressionResult) {
	result = &CompressionResult{
		GridWidth:  compressionGridSize,
		GridHeight: compressionGridSize,
		BlockSize:  compressionBlockSize,
		Suspicion:  SuspicionLow,
	}
	defer recoverInto(&result.Error, func() {
		result.HasInconsistentCompression = false
	})

	if err := ctx.Err(); err != nil {
		result.Error = err.Error()
		return result
	}

	grid := codec.GreyscaleRaw(codec.Resize(img, compressionGridSize, compressionGridSize))
	blocks := sampleBlocks(grid, compressionBlockSize, blockMean)
	mean, stdDev := metricSpread(blocks)
	suspicious := outliers(blocks, mean, stdDev, 2)

	result.Blocks = blocks
	result.MeanQuality = mean
	result.QualityStdDev = stdDev
	result.SuspiciousBlockCount = len(suspicious)
	result.SuspiciousBlocks = firstN(suspicious, compressionReportedLimit)
	result.Suspicion = classifySuspicion(len(suspicious), 5, 2)
	result.HasInconsistentCompression = len(suspicious) > 5
	return result
}

// classifySuspicion maps an outlier count to a level: > high is high,
// > medium is medium.
func classifySuspicion(count, high, medium int) SuspicionLevel {
	switch {
	case count > high:
		return SuspicionHigh
	case count > medium:
		return SuspicionMedium
	default:
		return SuspicionLow
	}
}
