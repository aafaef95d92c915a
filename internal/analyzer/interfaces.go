package analyzer

// AnalyzerKind names one of the five independent analyzers.
type AnalyzerKind string

const (
	KindELA         AnalyzerKind = "ela"
	KindCompression AnalyzerKind = "compression"
	KindMetadata    AnalyzerKind = "metadata"
	KindNoise       AnalyzerKind = "noise"
	KindEdges       AnalyzerKind = "edges"
)

// analyzerOrder fixes the accumulation order of the aggregate score.
var analyzerOrder = []AnalyzerKind{KindELA, KindCompression, KindMetadata, KindNoise, KindEdges}

// AnalyzerResult is the closed set of per-analyzer results consumed by the
// aggregator. Only the result types in this package implement it.
type AnalyzerResult interface {
	Kind() AnalyzerKind
	Flagged() bool
	sealed()
}

func (r *ELAResult) Kind() AnalyzerKind { return KindELA }
func (r *ELAResult) Flagged() bool      { return r.HasAnomalies }
func (r *ELAResult) sealed()            {}

func (r *CompressionResult) Kind() AnalyzerKind { return KindCompression }
func (r *CompressionResult) Flagged() bool      { return r.HasInconsistentCompression }
func (r *CompressionResult) sealed()            {}

func (r *MetadataResult) Kind() AnalyzerKind { return KindMetadata }
func (r *MetadataResult) Flagged() bool      { return r.HasInconsistentMetadata }
func (r *MetadataResult) sealed()            {}

func (r *NoiseResult) Kind() AnalyzerKind { return KindNoise }
func (r *NoiseResult) Flagged() bool      { return r.HasInconsistentNoise }
func (r *NoiseResult) sealed()            {}

func (r *EdgeResult) Kind() AnalyzerKind { return KindEdges }
func (r *EdgeResult) Flagged() bool      { return r.HasInconsistentEdges }
func (r *EdgeResult) sealed()            {}
