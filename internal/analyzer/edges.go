package analyzer

import (
	"context"
	"image"
	"math"

	"github.com/anime-shed/forgery-inspector-go/internal/imaging"
)

const (
	edgeIntensityThreshold     = 50
	edgeInconsistencyThreshold = 0.3
	// baselineEdgeRatio is the edge density assumed for natural images.
	baselineEdgeRatio = 0.1
)

// AnalyzeEdges convolves the greyscale image with a high-pass kernel and
// compares the share of edge pixels against the natural-image baseline.
func AnalyzeEdges(ctx context.Context, codec imaging.Codec, img image.Image) (result *EdgeResult) {
	result = &EdgeResult{}
	defer recoverInto(&result.Error, func() {
		result.HasInconsistentEdges = false
	})

	if err := ctx.Err(); err != nil {
		result.Error = err.Error()
		return result
	}

	edges := codec.Convolve(codec.GreyscaleRaw(img), imaging.HighPassKernel)
	total := edges.Len()
	if total == 0 {
		result.Error = "image has no pixels"
		return result
	}

	var edgePixels, intensity int
	for i := 0; i < total; i++ {
		s := edges.Samples[i*edges.Channels]
		intensity += int(s)
		if s > edgeIntensityThreshold {
			edgePixels++
		}
	}

	result.EdgePixels = edgePixels
	result.TotalPixels = total
	result.EdgeRatio = float64(edgePixels) / float64(total)
	result.AverageEdgeIntensity = float64(intensity) / float64(total)
	result.InconsistencyScore = math.Abs(result.EdgeRatio - baselineEdgeRatio)
	result.HasInconsistentEdges = result.InconsistencyScore > edgeInconsistencyThreshold
	return result
}
