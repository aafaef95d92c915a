package analyzer

import (
	"fmt"
	"strings"
)

// RiskTier is the human-readable band of a forgery score.
type RiskTier string

const (
	RiskHigh      RiskTier = "HIGH RISK"
	RiskMedium    RiskTier = "MEDIUM RISK"
	RiskLow       RiskTier = "LOW RISK"
	RiskAuthentic RiskTier = "appears authentic"
)

const (
	forgeryThreshold   = 0.6
	suspiciousAreaNorm = 10.0
	areaWeight         = 0.10
)

var (
	analyzerWeights = map[AnalyzerKind]float64{
		KindELA:         0.25,
		KindCompression: 0.20,
		KindMetadata:    0.15,
		KindNoise:       0.20,
		KindEdges:       0.10,
	}
	analyzerSeverity = map[AnalyzerKind]float64{
		KindELA:         0.8,
		KindCompression: 0.7,
		KindMetadata:    0.6,
		KindNoise:       0.5,
		KindEdges:       0.4,
	}
)

// Verdict is the aggregated outcome of one analysis.
type Verdict struct {
	Score          float64
	IsForgery      bool
	Tier           RiskTier
	FiredAnalyzers []AnalyzerKind
	AreaCount      int
}

// Aggregate combines exactly one result per analyzer kind and the number of
// suspicious areas into a verdict. Malformed input is a programming error
// and panics.
func Aggregate(results []AnalyzerResult, areaCount int) Verdict {
	if areaCount < 0 {
		panic(fmt.Sprintf("analyzer: negative suspicious area count %d", areaCount))
	}
	if len(results) != len(analyzerOrder) {
		panic(fmt.Sprintf("analyzer: aggregate needs %d results, got %d", len(analyzerOrder), len(results)))
	}

	byKind := make(map[AnalyzerKind]AnalyzerResult, len(results))
	for _, r := range results {
		if r == nil {
			panic("analyzer: nil analyzer result")
		}
		if _, dup := byKind[r.Kind()]; dup {
			panic(fmt.Sprintf("analyzer: duplicate %s result", r.Kind()))
		}
		byKind[r.Kind()] = r
	}

	var score float64
	fired := []AnalyzerKind{}
	for _, kind := range analyzerOrder {
		r, ok := byKind[kind]
		if !ok {
			panic(fmt.Sprintf("analyzer: missing %s result", kind))
		}
		if r.Flagged() {
			score += analyzerWeights[kind] * analyzerSeverity[kind]
			fired = append(fired, kind)
		}
	}
	score += areaWeight * min(float64(areaCount)/suspiciousAreaNorm, 1)
	score = clamp01(score)

	return Verdict{
		Score:          score,
		IsForgery:      score > forgeryThreshold,
		Tier:           RiskTierFor(score),
		FiredAnalyzers: fired,
		AreaCount:      areaCount,
	}
}

// RiskTierFor bands a score. Each bound is exclusive below.
func RiskTierFor(score float64) RiskTier {
	switch {
	case score > 0.8:
		return RiskHigh
	case score > 0.6:
		return RiskMedium
	case score > 0.3:
		return RiskLow
	default:
		return RiskAuthentic
	}
}

// GenerateReport renders a one-paragraph summary of v.
func GenerateReport(v Verdict) string {
	var b strings.Builder
	switch v.Tier {
	case RiskHigh:
		b.WriteString("HIGH RISK: strong indicators of forgery detected")
	case RiskMedium:
		b.WriteString("MEDIUM RISK: several indicators of manipulation detected")
	case RiskLow:
		b.WriteString("LOW RISK: minor inconsistencies detected")
	default:
		b.WriteString("Document appears authentic")
	}
	fmt.Fprintf(&b, " (score %.2f).", v.Score)

	if len(v.FiredAnalyzers) > 0 {
		names := make([]string, len(v.FiredAnalyzers))
		for i, k := range v.FiredAnalyzers {
			names[i] = string(k)
		}
		fmt.Fprintf(&b, " Flagged by: %s.", strings.Join(names, ", "))
	} else {
		b.WriteString(" No analyzer flagged an anomaly.")
	}
	if v.AreaCount > 0 {
		fmt.Fprintf(&b, " Suspicious areas: %d.", v.AreaCount)
	}
	return b.String()
}
