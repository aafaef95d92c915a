package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/forgery-inspector-go/internal/analyzer"
	apperrors "github.com/anime-shed/forgery-inspector-go/internal/errors"
	"github.com/anime-shed/forgery-inspector-go/internal/logger"
	"github.com/anime-shed/forgery-inspector-go/internal/observer"
	"github.com/anime-shed/forgery-inspector-go/internal/repository"
	"github.com/anime-shed/forgery-inspector-go/pkg/models"
	"github.com/anime-shed/forgery-inspector-go/pkg/validation"
)

// ForgeryAnalysisService defines the forgery analysis use cases
type ForgeryAnalysisService interface {
	AnalyzeURL(ctx context.Context, imageURL string, opts analyzer.Options) (*models.ForgeryAnalysisResponse, error)
	AnalyzeUpload(ctx context.Context, name string, data []byte, opts analyzer.Options) (*models.ForgeryAnalysisResponse, error)
	AnalyzeBatch(ctx context.Context, imageURLs []string, opts analyzer.Options) (*models.BatchAnalysisResponse, error)
	GetAnalysis(ctx context.Context, id string) (*models.ForgeryAnalysisResponse, error)

	// ResolveOptions applies request overrides to the configured defaults
	ResolveOptions(req *models.AnalysisOptionsRequest) analyzer.Options
	ValidateImageURL(imageURL string) error
}

// Engine runs one forgery analysis.
type Engine interface {
	Analyze(ctx context.Context, src analyzer.SourceImage, opts analyzer.Options) (*analyzer.ForgeryAnalysis, error)
}

// Config carries the service tunables.
type Config struct {
	AnalysisTimeout time.Duration
	MaxUploadBytes  int64
	Defaults        analyzer.Options
}

type forgeryAnalysisService struct {
	imageRepo  repository.ImageRepository
	results    repository.AnalysisRepository
	engine     Engine
	urls       *validation.URLValidator
	uploads    *validation.UploadValidator
	publisher  observer.Subject
	pool       *analyzer.WorkerPool
	timeout    time.Duration
	defaults   analyzer.Options
	generateID func() string
}

// NewForgeryAnalysisService creates the service. Batch items run on pool,
// which the caller owns.
func NewForgeryAnalysisService(
	imageRepository repository.ImageRepository,
	results repository.AnalysisRepository,
	engine Engine,
	publisher observer.Subject,
	pool *analyzer.WorkerPool,
	cfg Config,
) ForgeryAnalysisService {
	return &forgeryAnalysisService{
		imageRepo:  imageRepository,
		results:    results,
		engine:     engine,
		urls:       validation.NewURLValidator(),
		uploads:    validation.NewUploadValidator(cfg.MaxUploadBytes),
		publisher:  publisher,
		pool:       pool,
		timeout:    cfg.AnalysisTimeout,
		defaults:   cfg.Defaults,
		generateID: uuid.NewString,
	}
}

// AnalyzeURL fetches the image at imageURL and analyzes it
func (s *forgeryAnalysisService) AnalyzeURL(ctx context.Context, imageURL string, opts analyzer.Options) (*models.ForgeryAnalysisResponse, error) {
	if err := s.ValidateImageURL(imageURL); err != nil {
		return nil, err
	}

	s.notify(ctx, observer.AnalysisEvent{EventType: observer.AnalysisStarted, Source: imageURL})
	fetchStart := time.Now()

	src, err := s.imageRepo.FetchImage(ctx, imageURL)
	if err != nil {
		err = classifyFetchError(err)
		s.notify(ctx, observer.AnalysisEvent{
			EventType:      observer.ImageFetchFailed,
			Source:         imageURL,
			ProcessingTime: time.Since(fetchStart),
			ErrorMessage:   err.Error(),
		})
		s.notify(ctx, observer.AnalysisEvent{EventType: observer.AnalysisFailed, Source: imageURL, ErrorMessage: err.Error()})
		return nil, err
	}
	s.notify(ctx, observer.AnalysisEvent{
		EventType:      observer.ImageFetched,
		Source:         imageURL,
		ProcessingTime: time.Since(fetchStart),
		Success:        true,
		Metadata:       map[string]interface{}{"size_bytes": src.Len()},
	})

	return s.analyze(ctx, src, opts)
}

// AnalyzeUpload analyzes an image supplied directly by the caller
func (s *forgeryAnalysisService) AnalyzeUpload(ctx context.Context, name string, data []byte, opts analyzer.Options) (*models.ForgeryAnalysisResponse, error) {
	mime, err := s.uploads.ValidateUpload(data)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{"source": name, "mime_type": mime, "size_bytes": len(data)}).Debug("Accepted image upload")

	s.notify(ctx, observer.AnalysisEvent{EventType: observer.AnalysisStarted, Source: name})
	return s.analyze(ctx, analyzer.NewSourceImage(name, data), opts)
}

// AnalyzeBatch analyzes every URL on the worker pool. A failed item never
// affects the others and results keep the request order.
func (s *forgeryAnalysisService) AnalyzeBatch(ctx context.Context, imageURLs []string, opts analyzer.Options) (*models.BatchAnalysisResponse, error) {
	if len(imageURLs) == 0 {
		return nil, apperrors.NewValidationError("batch must contain at least one URL", nil)
	}

	results := make([]models.BatchItemResult, len(imageURLs))
	var wg sync.WaitGroup

	for i, imageURL := range imageURLs {
		results[i].Source = imageURL

		wg.Add(1)
		submitted := s.pool.Submit(func() {
			defer wg.Done()
			resp, err := s.AnalyzeURL(ctx, imageURL, opts)
			if err != nil {
				results[i].Error = ToErrorResponse(err)
				return
			}
			results[i].Result = resp
		})
		if !submitted {
			wg.Done()
			results[i].Error = ToErrorResponse(apperrors.NewInternalError("analysis pool is shut down", nil))
		}
	}
	wg.Wait()

	resp := &models.BatchAnalysisResponse{Results: results}
	for _, r := range results {
		if r.Error != nil {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}
	return resp, nil
}

// GetAnalysis returns a previously completed analysis
func (s *forgeryAnalysisService) GetAnalysis(ctx context.Context, id string) (*models.ForgeryAnalysisResponse, error) {
	record, err := s.results.GetAnalysisResult(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFoundError("analysis not found", err)
	}
	return models.NewForgeryAnalysisResponse(record.ID, record.Source, record.Analysis), nil
}

func (s *forgeryAnalysisService) ValidateImageURL(imageURL string) error {
	if err := s.urls.ValidateImageURL(imageURL); err != nil {
		return err
	}
	if err := s.imageRepo.ValidateImageURL(imageURL); err != nil {
		return apperrors.NewValidationError("unsupported image source", err)
	}
	return nil
}

func (s *forgeryAnalysisService) ResolveOptions(req *models.AnalysisOptionsRequest) analyzer.Options {
	opts := s.defaults
	if req == nil {
		return opts
	}
	if req.ELAQuality != nil {
		opts = opts.WithELAQuality(*req.ELAQuality)
	}
	if req.SuspiciousAreaThreshold != nil {
		opts = opts.WithThreshold(*req.SuspiciousAreaThreshold)
	}
	if req.MetadataCheckEnabled != nil {
		opts.MetadataCheckEnabled = *req.MetadataCheckEnabled
	}
	if req.IncludeELAImage {
		opts = opts.WithELAImage()
	}
	return opts
}

func (s *forgeryAnalysisService) analyze(ctx context.Context, src analyzer.SourceImage, opts analyzer.Options) (*models.ForgeryAnalysisResponse, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.engine.Analyze(ctx, src, opts)
	elapsed := time.Since(start)
	if err != nil {
		s.notify(ctx, observer.AnalysisEvent{
			EventType:      observer.AnalysisFailed,
			Source:         src.Name(),
			ProcessingTime: elapsed,
			ErrorMessage:   err.Error(),
		})
		return nil, err
	}

	record := &repository.AnalysisRecord{
		ID:        s.generateID(),
		Source:    src.Name(),
		Timestamp: result.AnalyzedAt,
		Analysis:  result.WithoutImages(),
	}
	if err := s.results.SaveAnalysisResult(ctx, record); err != nil {
		logger.WithError(err).WithField("source", src.Name()).Warn("Failed to store analysis result")
	}

	s.notify(ctx, observer.AnalysisEvent{
		EventType:      observer.AnalysisCompleted,
		Source:         src.Name(),
		ProcessingTime: elapsed,
		Success:        true,
		ForgeryScore:   result.ForgeryScore,
		IsForgery:      result.IsForgery,
		Metadata:       map[string]interface{}{"analysis_id": record.ID, "risk_tier": result.RiskTier},
	})
	if result.IsForgery {
		s.notify(ctx, observer.AnalysisEvent{
			EventType:    observer.ForgeryDetected,
			Source:       src.Name(),
			Success:      true,
			ForgeryScore: result.ForgeryScore,
			IsForgery:    true,
		})
	}

	return models.NewForgeryAnalysisResponse(record.ID, src.Name(), result), nil
}

func (s *forgeryAnalysisService) notify(ctx context.Context, event observer.AnalysisEvent) {
	if s.publisher != nil {
		s.publisher.NotifyObservers(ctx, event)
	}
}
