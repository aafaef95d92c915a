package analyzer

import (
	"math"

	"github.com/anime-shed/forgery-inspector-go/internal/imaging"
)

const (
	regionBlockSize    = 32
	mergeDistance      = 50.0
	maxSuspiciousAreas = 20
)

// ClassifyIntensity maps a mean block intensity to an area type.
func ClassifyIntensity(intensity float64) AreaType {
	switch {
	case intensity > 200:
		return AreaHighManipulation
	case intensity > 150:
		return AreaMediumManipulation
	case intensity > 100:
		return AreaLowManipulation
	default:
		return AreaNoise
	}
}

// DetectSuspiciousAreas flags 32x32 blocks of the ELA difference whose mean
// intensity exceeds threshold*255, merges nearby blocks and returns at most
// 20 areas in merge order.
func DetectSuspiciousAreas(diff imaging.Raster, threshold float64) []SuspiciousArea {
	limit := threshold * 255
	var flagged []SuspiciousArea
	for _, cell := range partition(diff.Width, diff.Height, regionBlockSize) {
		intensity := blockMean(diff, cell)
		if intensity <= limit {
			continue
		}
		flagged = append(flagged, newArea(cell.Min.X, cell.Min.Y, cell.Dx(), cell.Dy(), intensity))
	}

	merged := MergeSuspiciousAreas(flagged)
	if len(merged) > maxSuspiciousAreas {
		merged = merged[:maxSuspiciousAreas]
	}
	return merged
}

func newArea(x, y, w, h int, intensity float64) SuspiciousArea {
	return SuspiciousArea{
		X:           x,
		Y:           y,
		Width:       w,
		Height:      h,
		Confidence:  math.Min(intensity/255, 1),
		Type:        ClassifyIntensity(intensity),
		Intensity:   intensity,
		MergedCount: 1,
	}
}

// MergeSuspiciousAreas groups areas greedily: each unprocessed area seeds
// a group and absorbs every later unprocessed area whose center lies within
// 50 pixels of the seed's center. Distance is measured from the seed only,
// so results depend on input order.
func MergeSuspiciousAreas(areas []SuspiciousArea) []SuspiciousArea {
	merged := make([]SuspiciousArea, 0, len(areas))
	used := make([]bool, len(areas))

	for i, seed := range areas {
		if used[i] {
			continue
		}
		used[i] = true
		group := []SuspiciousArea{seed}
		sx, sy := seed.center()

		for j := i + 1; j < len(areas); j++ {
			if used[j] {
				continue
			}
			cx, cy := areas[j].center()
			if math.Hypot(cx-sx, cy-sy) <= mergeDistance {
				used[j] = true
				group = append(group, areas[j])
			}
		}

		if len(group) == 1 {
			merged = append(merged, seed)
			continue
		}
		merged = append(merged, mergeGroup(group))
	}
	return merged
}

func mergeGroup(group []SuspiciousArea) SuspiciousArea {
	minX, minY := group[0].X, group[0].Y
	maxX, maxY := group[0].X+group[0].Width, group[0].Y+group[0].Height
	var confidence, intensity float64
	for _, a := range group {
		minX = min(minX, a.X)
		minY = min(minY, a.Y)
		maxX = max(maxX, a.X+a.Width)
		maxY = max(maxY, a.Y+a.Height)
		confidence += a.Confidence
		intensity += a.Intensity
	}
	n := float64(len(group))
	avgIntensity := intensity / n

	return SuspiciousArea{
		X:           minX,
		Y:           minY,
		Width:       maxX - minX,
		Height:      maxY - minY,
		Confidence:  confidence / n,
		Type:        ClassifyIntensity(avgIntensity),
		Intensity:   avgIntensity,
		MergedCount: len(group),
	}
}
