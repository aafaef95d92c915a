package analyzer

import (
	"time"

	"github.com/anime-shed/forgery-inspector-go/internal/imaging"
)

// SourceImage is the encoded document image under analysis. The engine
// borrows the bytes and never mutates them.
type SourceImage struct {
	name string
	data []byte
}

// NewSourceImage wraps encoded image bytes. name is used for logging only.
func NewSourceImage(name string, data []byte) SourceImage {
	return SourceImage{name: name, data: data}
}

func (s SourceImage) Name() string  { return s.name }
func (s SourceImage) Bytes() []byte { return s.data }
func (s SourceImage) Len() int      { return len(s.data) }

// IntensityStatistics summarizes a set of 8-bit samples.
type IntensityStatistics struct {
	Mean              float64 `json:"mean"`
	Variance          float64 `json:"variance"`
	StandardDeviation float64 `json:"standard_deviation"`
	MaxIntensity      float64 `json:"max_intensity"`
	MinIntensity      float64 `json:"min_intensity"`
}

// BlockSample is one cell of a block-grid partition with a single derived
// metric (quality estimate, noise level or intensity).
type BlockSample struct {
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Metric float64 `json:"metric"`
}

// AreaType classifies a suspicious area.
type AreaType string

const (
	AreaTextModification   AreaType = "text_modification"
	AreaImageSplice        AreaType = "image_splice"
	AreaCopyMove           AreaType = "copy_move"
	AreaHighManipulation   AreaType = "high_manipulation"
	AreaMediumManipulation AreaType = "medium_manipulation"
	AreaLowManipulation    AreaType = "low_manipulation"
	AreaNoise              AreaType = "noise"
)

// SuspiciousArea is a possibly merged region flagged by the region detector.
// MergedCount > 1 marks a merged cluster.
type SuspiciousArea struct {
	X           int      `json:"x"`
	Y           int      `json:"y"`
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	Confidence  float64  `json:"confidence"`
	Type        AreaType `json:"type"`
	Intensity   float64  `json:"intensity"`
	MergedCount int      `json:"merged_count"`
}

func (a SuspiciousArea) center() (float64, float64) {
	return float64(a.X) + float64(a.Width)/2, float64(a.Y) + float64(a.Height)/2
}

// SuspicionLevel is the coarse classification of how many blocks stood out.
type SuspicionLevel string

const (
	SuspicionLow    SuspicionLevel = "low"
	SuspicionMedium SuspicionLevel = "medium"
	SuspicionHigh   SuspicionLevel = "high"
)

// ELAResult is the error-level analysis output.
type ELAResult struct {
	Quality      int                 `json:"quality"`
	Statistics   IntensityStatistics `json:"statistics"`
	HasAnomalies bool                `json:"has_anomalies"`
	Histogram    [256]int            `json:"histogram"`
	Peaks        []int               `json:"peaks"`
	// EnhancedImage is a PNG of the difference stretched to full range,
	// present only when requested.
	EnhancedImage []byte `json:"-"`

	// Difference is the greyscale difference image consumed by the
	// suspicious-region detector.
	Difference imaging.Raster `json:"-"`
}

// CompressionResult is the block-quality consistency output.
type CompressionResult struct {
	GridWidth                  int            `json:"grid_width"`
	GridHeight                 int            `json:"grid_height"`
	BlockSize                  int            `json:"block_size"`
	Blocks                     []BlockSample  `json:"blocks,omitempty"`
	SuspiciousBlocks           []BlockSample  `json:"suspicious_blocks,omitempty"`
	SuspiciousBlockCount       int            `json:"suspicious_block_count"`
	MeanQuality                float64        `json:"mean_quality"`
	QualityStdDev              float64        `json:"quality_std_dev"`
	Suspicion                  SuspicionLevel `json:"suspicion"`
	HasInconsistentCompression bool           `json:"has_inconsistent_compression"`
	Error                      string         `json:"error,omitempty"`
}

// NoiseResult is the global and block-wise noise variance output.
type NoiseResult struct {
	Mean                   float64        `json:"mean"`
	Variance               float64        `json:"variance"`
	StandardDeviation      float64        `json:"standard_deviation"`
	SignalToNoise          float64        `json:"signal_to_noise"`
	BlockSize              int            `json:"block_size"`
	BlockCount             int            `json:"block_count"`
	BlockMean              float64        `json:"block_mean"`
	BlockStdDev            float64        `json:"block_std_dev"`
	InconsistentBlocks     []BlockSample  `json:"inconsistent_blocks,omitempty"`
	InconsistentBlockCount int            `json:"inconsistent_block_count"`
	Suspicion              SuspicionLevel `json:"suspicion"`
	HasInconsistentNoise   bool           `json:"has_inconsistent_noise"`
	Error                  string         `json:"error,omitempty"`
}

// EdgeResult is the edge density output.
type EdgeResult struct {
	EdgePixels           int     `json:"edge_pixels"`
	TotalPixels          int     `json:"total_pixels"`
	EdgeRatio            float64 `json:"edge_ratio"`
	AverageEdgeIntensity float64 `json:"average_edge_intensity"`
	InconsistencyScore   float64 `json:"inconsistency_score"`
	HasInconsistentEdges bool    `json:"has_inconsistent_edges"`
	Error                string  `json:"error,omitempty"`
}

// MetadataResult is the capture/authoring metadata consistency output.
type MetadataResult struct {
	Enabled                 bool       `json:"enabled"`
	Format                  string     `json:"format,omitempty"`
	Width                   int        `json:"width,omitempty"`
	Height                  int        `json:"height,omitempty"`
	HasEXIF                 bool       `json:"has_exif"`
	CreatedAt               *time.Time `json:"created_at,omitempty"`
	Software                string     `json:"software,omitempty"`
	FutureTimestamp         bool       `json:"future_timestamp"`
	EditingSoftware         string     `json:"editing_software,omitempty"`
	Findings                []string   `json:"findings,omitempty"`
	HasInconsistentMetadata bool       `json:"has_inconsistent_metadata"`
	Error                   string     `json:"error,omitempty"`
}

// ForgeryAnalysis is the terminal result of one pipeline invocation.
type ForgeryAnalysis struct {
	IsForgery       bool               `json:"is_forgery"`
	ForgeryScore    float64            `json:"forgery_score"`
	RiskTier        RiskTier           `json:"risk_tier"`
	FiredAnalyzers  []AnalyzerKind     `json:"fired_analyzers"`
	SuspiciousAreas []SuspiciousArea   `json:"suspicious_areas"`
	ELA             *ELAResult         `json:"ela"`
	Compression     *CompressionResult `json:"compression"`
	Metadata        *MetadataResult    `json:"metadata"`
	Noise           *NoiseResult       `json:"noise"`
	Edges           *EdgeResult        `json:"edges"`
	Report          string             `json:"report"`

	AnalyzedAt     time.Time     `json:"analyzed_at"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// WithoutImages returns a copy that drops the ELA difference raster and the
// enhanced PNG, leaving only what serializes. The receiver is not modified.
func (a *ForgeryAnalysis) WithoutImages() *ForgeryAnalysis {
	c := *a
	if a.ELA != nil {
		ela := *a.ELA
		ela.Difference = imaging.Raster{}
		ela.EnhancedImage = nil
		c.ELA = &ela
	}
	return &c
}
