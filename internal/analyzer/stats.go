package analyzer

import (
	"image"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/anime-shed/forgery-inspector-go/internal/imaging"
)

// floatPool recycles sample buffers for gonum, which works on []float64.
var floatPool = sync.Pool{
	New: func() interface{} {
		s := make([]float64, 0, 4096)
		return &s
	},
}

func getFloats(n int) *[]float64 {
	buf := floatPool.Get().(*[]float64)
	if cap(*buf) < n {
		*buf = make([]float64, 0, n)
	}
	*buf = (*buf)[:0]
	return buf
}

func putFloats(buf *[]float64) {
	floatPool.Put(buf)
}

// ComputeStatistics returns population statistics over samples. An empty
// input yields the zero value.
func ComputeStatistics(samples []uint8) IntensityStatistics {
	if len(samples) == 0 {
		return IntensityStatistics{}
	}

	buf := getFloats(len(samples))
	defer putFloats(buf)

	minV, maxV := samples[0], samples[0]
	for _, s := range samples {
		if s < minV {
			minV = s
		}
		if s > maxV {
			maxV = s
		}
		*buf = append(*buf, float64(s))
	}

	mean, variance := stat.PopMeanVariance(*buf, nil)
	return IntensityStatistics{
		Mean:              mean,
		Variance:          variance,
		StandardDeviation: math.Sqrt(variance),
		MaxIntensity:      float64(maxV),
		MinIntensity:      float64(minV),
	}
}

// metricSpread returns the population mean and standard deviation of the
// block metrics.
func metricSpread(blocks []BlockSample) (mean, stdDev float64) {
	if len(blocks) == 0 {
		return 0, 0
	}
	metrics := make([]float64, len(blocks))
	for i, b := range blocks {
		metrics[i] = b.Metric
	}
	mean, variance := stat.PopMeanVariance(metrics, nil)
	return mean, math.Sqrt(variance)
}

// outliers returns the blocks whose metric deviates from mean by more than
// k standard deviations, in grid order.
func outliers(blocks []BlockSample, mean, stdDev, k float64) []BlockSample {
	var out []BlockSample
	for _, b := range blocks {
		if math.Abs(b.Metric-mean) > k*stdDev {
			out = append(out, b)
		}
	}
	return out
}

// partition splits a width x height plane into size x size cells in
// row-major order. The last row and column may be truncated.
func partition(width, height, size int) []image.Rectangle {
	if width <= 0 || height <= 0 || size <= 0 {
		return nil
	}
	cols := (width + size - 1) / size
	rows := (height + size - 1) / size
	cells := make([]image.Rectangle, 0, cols*rows)
	for y := 0; y < height; y += size {
		for x := 0; x < width; x += size {
			cells = append(cells, image.Rect(x, y, min(x+size, width), min(y+size, height)))
		}
	}
	return cells
}

// blockMean is the mean first-channel sample inside cell.
func blockMean(r imaging.Raster, cell image.Rectangle) float64 {
	var sum int
	for y := cell.Min.Y; y < cell.Max.Y; y++ {
		row := y * r.Width
		for x := cell.Min.X; x < cell.Max.X; x++ {
			sum += int(r.Samples[(row+x)*r.Channels])
		}
	}
	return float64(sum) / float64(cell.Dx()*cell.Dy())
}

// blockVariance is the two-pass population variance inside cell.
func blockVariance(r imaging.Raster, cell image.Rectangle) float64 {
	mean := blockMean(r, cell)
	var sumSq float64
	for y := cell.Min.Y; y < cell.Max.Y; y++ {
		row := y * r.Width
		for x := cell.Min.X; x < cell.Max.X; x++ {
			d := float64(r.Samples[(row+x)*r.Channels]) - mean
			sumSq += d * d
		}
	}
	return sumSq / float64(cell.Dx()*cell.Dy())
}

func sampleBlocks(r imaging.Raster, size int, metric func(imaging.Raster, image.Rectangle) float64) []BlockSample {
	cells := partition(r.Width, r.Height, size)
	blocks := make([]BlockSample, len(cells))
	for i, cell := range cells {
		blocks[i] = BlockSample{
			X:      cell.Min.X,
			Y:      cell.Min.Y,
			Width:  cell.Dx(),
			Height: cell.Dy(),
			Metric: metric(r, cell),
		}
	}
	return blocks
}

func firstN(blocks []BlockSample, n int) []BlockSample {
	if len(blocks) > n {
		return blocks[:n]
	}
	return blocks
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
