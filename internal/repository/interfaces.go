package repository

import (
	"context"
	"time"

	"github.com/anime-shed/forgery-inspector-go/internal/analyzer"
)

// ImageRepository resolves an image location to its encoded bytes.
type ImageRepository interface {
	// FetchImage retrieves the image at location
	FetchImage(ctx context.Context, location string) (analyzer.SourceImage, error)

	// ValidateImageURL reports whether some configured storage can serve location
	ValidateImageURL(location string) error
}

// AnalysisRepository stores completed analyses for later retrieval.
type AnalysisRepository interface {
	SaveAnalysisResult(ctx context.Context, record *AnalysisRecord) error
	GetAnalysisResult(ctx context.Context, id string) (*AnalysisRecord, error)
	// GetAnalysisHistory returns the stored analyses of source, newest first
	GetAnalysisHistory(ctx context.Context, source string) ([]*AnalysisRecord, error)
}

// AnalysisRecord is one stored analysis.
type AnalysisRecord struct {
	ID        string                    `json:"id"`
	Source    string                    `json:"source"`
	Timestamp time.Time                 `json:"timestamp"`
	Analysis  *analyzer.ForgeryAnalysis `json:"analysis"`
}
