package models

import (
	"encoding/base64"
	"time"

	"github.com/anime-shed/forgery-inspector-go/internal/analyzer"
)

// ForgeryAnalysisResponse is the API view of one forgery analysis
type ForgeryAnalysisResponse struct {
	ID                string                    `json:"id"`
	Source            string                    `json:"source"`
	Timestamp         string                    `json:"timestamp"`
	ProcessingTimeSec float64                   `json:"processing_time_sec"`
	IsForgery         bool                      `json:"is_forgery"`
	ForgeryScore      float64                   `json:"forgery_score"`
	RiskTier          string                    `json:"risk_tier"`
	FiredAnalyzers    []string                  `json:"fired_analyzers"`
	SuspiciousAreas   []analyzer.SuspiciousArea `json:"suspicious_areas"`
	Report            string                    `json:"report"`
	Analyzers         AnalyzerDetails           `json:"analyzers"`

	// ELAImage is the base64 PNG of the enhanced ELA difference, if requested
	ELAImage string `json:"ela_image,omitempty"`
}

// AnalyzerDetails groups the individual analyzer outputs
type AnalyzerDetails struct {
	ELA         *analyzer.ELAResult         `json:"ela"`
	Compression *analyzer.CompressionResult `json:"compression"`
	Metadata    *analyzer.MetadataResult    `json:"metadata"`
	Noise       *analyzer.NoiseResult       `json:"noise"`
	Edges       *analyzer.EdgeResult        `json:"edges"`
}

// BatchItemResult is the outcome for one image of a batch
type BatchItemResult struct {
	Source string                   `json:"source"`
	Result *ForgeryAnalysisResponse `json:"result,omitempty"`
	Error  *ErrorResponse           `json:"error,omitempty"`
}

// BatchAnalysisResponse preserves the request order of its items
type BatchAnalysisResponse struct {
	Results   []BatchItemResult `json:"results"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// NewForgeryAnalysisResponse converts an engine result for the API.
func NewForgeryAnalysisResponse(id, source string, a *analyzer.ForgeryAnalysis) *ForgeryAnalysisResponse {
	fired := make([]string, len(a.FiredAnalyzers))
	for i, k := range a.FiredAnalyzers {
		fired[i] = string(k)
	}
	areas := a.SuspiciousAreas
	if areas == nil {
		areas = []analyzer.SuspiciousArea{}
	}

	resp := &ForgeryAnalysisResponse{
		ID:                id,
		Source:            source,
		Timestamp:         a.AnalyzedAt.UTC().Format(time.RFC3339),
		ProcessingTimeSec: a.ProcessingTime.Seconds(),
		IsForgery:         a.IsForgery,
		ForgeryScore:      a.ForgeryScore,
		RiskTier:          string(a.RiskTier),
		FiredAnalyzers:    fired,
		SuspiciousAreas:   areas,
		Report:            a.Report,
		Analyzers: AnalyzerDetails{
			ELA:         a.ELA,
			Compression: a.Compression,
			Metadata:    a.Metadata,
			Noise:       a.Noise,
			Edges:       a.Edges,
		},
	}
	if a.ELA != nil && len(a.ELA.EnhancedImage) > 0 {
		resp.ELAImage = base64.StdEncoding.EncodeToString(a.ELA.EnhancedImage)
	}
	return resp
}
