package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/anime-shed/forgery-inspector-go/internal/errors"
	"github.com/anime-shed/forgery-inspector-go/internal/imaging"
	"github.com/anime-shed/forgery-inspector-go/internal/logger"
)

// Engine runs the forgery analysis pipeline. It holds no per-analysis
// state and is safe for concurrent use.
type Engine struct {
	codec imaging.Codec
	now   func() time.Time
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithClock overrides the clock used for the metadata future-timestamp
// check and the AnalyzedAt field.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine over codec. A nil codec uses in-process
// decoding and differencing.
func NewEngine(codec imaging.Codec, opts ...EngineOption) *Engine {
	if codec == nil {
		codec = imaging.NewCodec(nil)
	}
	e := &Engine{codec: codec, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type outcome struct {
	analysis *ForgeryAnalysis
	err      error
}

// Analyze runs every analyzer against src and aggregates a verdict. The
// only fatal failures are an undecodable image or a failed ELA step, both
// reported as image decode errors. When ctx ends first the outstanding work
// is abandoned and a timeout error is returned.
func (e *Engine) Analyze(ctx context.Context, src SourceImage, opts Options) (*ForgeryAnalysis, error) {
	opts = opts.normalized()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	done := make(chan outcome, 1)
	go func() {
		analysis, err := e.run(ctx, src, opts)
		done <- outcome{analysis: analysis, err: err}
	}()

	select {
	case res := <-done:
		return res.analysis, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("forgery analysis timed out", ctx.Err())
		}
		return nil, apperrors.NewProcessingError("forgery analysis cancelled", ctx.Err())
	}
}

func (e *Engine) run(ctx context.Context, src SourceImage, opts Options) (*ForgeryAnalysis, error) {
	started := e.now()
	log := logger.WithFields(logrus.Fields{"source": src.Name(), "size": src.Len()})

	img, _, err := e.codec.Decode(src.Bytes())
	if err != nil {
		return nil, asDecodeError("failed to decode source image", err)
	}

	var (
		ela         *ELAResult
		compression *CompressionResult
		metadata    *MetadataResult
		noise       *NoiseResult
		edges       *EdgeResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = apperrors.NewImageDecodeError("ELA step failed", fmt.Errorf("panic: %v", r))
			}
		}()
		ela, err = AnalyzeELA(gctx, e.codec, img, opts.ELAQuality)
		return err
	})
	g.Go(func() error {
		compression = AnalyzeCompression(gctx, e.codec, img)
		return nil
	})
	g.Go(func() error {
		metadata = AnalyzeMetadata(e.codec, src.Bytes(), opts.MetadataCheckEnabled, started)
		return nil
	})
	g.Go(func() error {
		noise = AnalyzeNoise(gctx, e.codec, img)
		return nil
	})
	g.Go(func() error {
		edges = AnalyzeEdges(gctx, e.codec, img)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	degraded := []struct {
		kind AnalyzerKind
		msg  string
	}{
		{KindCompression, compression.Error},
		{KindMetadata, metadata.Error},
		{KindNoise, noise.Error},
		{KindEdges, edges.Error},
	}
	for _, d := range degraded {
		if d.msg != "" {
			log.WithField("analyzer", d.kind).Warnf("analyzer degraded: %s", d.msg)
		}
	}

	areas := DetectSuspiciousAreas(ela.Difference, opts.SuspiciousAreaThreshold)

	if opts.IncludeELAImage {
		enhanced, err := imaging.EncodePNG(imaging.Enhance(ela.Difference))
		if err != nil {
			log.WithError(err).Warn("failed to render enhanced ELA image")
		} else {
			ela.EnhancedImage = enhanced
		}
	}

	verdict := Aggregate([]AnalyzerResult{ela, compression, metadata, noise, edges}, len(areas))

	return &ForgeryAnalysis{
		IsForgery:       verdict.IsForgery,
		ForgeryScore:    verdict.Score,
		RiskTier:        verdict.Tier,
		FiredAnalyzers:  verdict.FiredAnalyzers,
		SuspiciousAreas: areas,
		ELA:             ela,
		Compression:     compression,
		Metadata:        metadata,
		Noise:           noise,
		Edges:           edges,
		Report:          GenerateReport(verdict),
		AnalyzedAt:      started,
		ProcessingTime:  e.now().Sub(started),
	}, nil
}

// recoverInto turns a panic in a non-fatal analyzer into a degraded result.
// It must be deferred directly.
func recoverInto(errField *string, reset func()) {
	if r := recover(); r != nil {
		*errField = fmt.Sprintf("panic: %v", r)
		reset()
	}
}
