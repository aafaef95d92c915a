package analyzer

import (
	"context"
	"image"
	"math"

	"github.com/anime-shed/forgery-inspector-go/internal/imaging"
)

const (
	noiseBlockSize         = 16
	noiseVarianceThreshold = 1000
	noiseReportedLimit     = 10
)

// AnalyzeNoise measures global noise variance and flags 16x16 blocks whose
// variance is anomalous relative to the other blocks.
func AnalyzeNoise(ctx context.Context, codec imaging.Codec, img image.Image) (result *NoiseResult) {
	result = &NoiseResult{BlockSize: noiseBlockSize, Suspicion: SuspicionLow}
	defer recoverInto(&result.Error, func() {
		result.HasInconsistentNoise = false
	})

	if err := ctx.Err(); err != nil {
		result.Error = err.Error()
		return result
	}

	gray := codec.GreyscaleRaw(img)
	global := ComputeStatistics(gray.Samples)
	result.Mean = global.Mean
	result.Variance = global.Variance
	result.StandardDeviation = global.StandardDeviation
	// A flat image has no noise to speak of; report 0 rather than +Inf.
	if global.Variance > 0 {
		result.SignalToNoise = global.Mean / math.Sqrt(global.Variance)
	}

	blocks := sampleBlocks(gray, noiseBlockSize, blockVariance)
	mean, stdDev := metricSpread(blocks)
	inconsistent := outliers(blocks, mean, stdDev, 2)

	result.BlockCount = len(blocks)
	result.BlockMean = mean
	result.BlockStdDev = stdDev
	result.InconsistentBlockCount = len(inconsistent)
	result.InconsistentBlocks = firstN(inconsistent, noiseReportedLimit)
	result.Suspicion = classifySuspicion(len(inconsistent), 10, 5)
	result.HasInconsistentNoise = global.Variance > noiseVarianceThreshold
	return result
}
