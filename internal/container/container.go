package container

import (
	"net/http"

	"github.com/anime-shed/forgery-inspector-go/internal/analyzer"
	"github.com/anime-shed/forgery-inspector-go/internal/config"
	"github.com/anime-shed/forgery-inspector-go/internal/imaging"
	"github.com/anime-shed/forgery-inspector-go/internal/logger"
	"github.com/anime-shed/forgery-inspector-go/internal/observer"
	"github.com/anime-shed/forgery-inspector-go/internal/repository"
	"github.com/anime-shed/forgery-inspector-go/internal/service"
	"github.com/anime-shed/forgery-inspector-go/internal/storage"
	"github.com/anime-shed/forgery-inspector-go/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config    *config.Config
	images    repository.ImageRepository
	pool      *analyzer.WorkerPool
	publisher *observer.EventPublisher
	metrics   *observer.MetricsObserver
	service   service.ForgeryAnalysisService
	handler   http.Handler
}

type options struct {
	localFiles bool
}

// Option adjusts how the container is wired.
type Option func(*options)

// WithLocalFileAccess lets Images resolve file:// URLs and plain paths.
// The service keeps rejecting them.
func WithLocalFileAccess() Option {
	return func(o *options) {
		o.localFiles = true
	}
}

// NewContainer builds the dependency graph from cfg
func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger.Configure(cfg.LogLevel)

	var differ imaging.Differ
	if cfg.DifferenceServiceURL != "" {
		differ = imaging.NewRemoteDiffer(cfg.DifferenceServiceURL, cfg.DifferenceTimeout)
		logger.WithField("url", cfg.DifferenceServiceURL).Info("Using remote difference service")
	}
	engine := analyzer.NewEngine(imaging.NewCodec(differ))

	var repoOpts []repository.RepositoryOption
	if cfg.AzureStorageAccount != "" && cfg.AzureStorageKey != "" {
		blob, err := storage.NewAzureStorage(cfg.AzureStorageAccount, cfg.AzureStorageKey, cfg.MaxRequestBodySize)
		if err != nil {
			return nil, err
		}
		repoOpts = append(repoOpts, repository.WithBlobStorage(blob))
	}
	if o.localFiles {
		repoOpts = append(repoOpts, repository.WithLocalFiles(storage.NewFileImageFetcher(cfg.MaxRequestBodySize)))
	}
	imageRepository := repository.NewImageRepository(
		storage.NewHTTPImageFetcher(cfg.ImageFetchTimeout, cfg.MaxRequestBodySize),
		repoOpts...,
	)

	publisher := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)

	pool := analyzer.NewWorkerPool(cfg.MaxConcurrentAnalyses)
	pool.Start()

	svc := service.NewForgeryAnalysisService(
		imageRepository,
		repository.NewMemoryAnalysisRepository(0),
		engine,
		publisher,
		pool,
		service.Config{
			AnalysisTimeout: cfg.AnalysisTimeout,
			MaxUploadBytes:  cfg.MaxRequestBodySize,
			Defaults:        AnalysisDefaults(cfg),
		},
	)

	return &Container{
		config:    cfg,
		images:    imageRepository,
		pool:      pool,
		publisher: publisher,
		metrics:   metrics,
		service:   svc,
		handler:   transport.NewHandler(svc, metrics, pool, cfg),
	}, nil
}

// AnalysisDefaults maps the configured engine defaults onto options.
func AnalysisDefaults(cfg *config.Config) analyzer.Options {
	opts := analyzer.DefaultOptions().
		WithELAQuality(cfg.ELAQuality).
		WithThreshold(cfg.SuspiciousAreaThreshold)
	if !cfg.MetadataCheckEnabled {
		opts = opts.WithoutMetadataCheck()
	}
	return opts
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Images returns the image source repository. Unlike the service it
// resolves local paths when WithLocalFileAccess was given.
func (c *Container) Images() repository.ImageRepository {
	return c.images
}

// Service returns the forgery analysis service
func (c *Container) Service() service.ForgeryAnalysisService {
	return c.service
}

// Metrics returns the analysis metrics observer
func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close stops the worker pool and drains pending events.
func (c *Container) Close() {
	c.pool.Close()
	c.publisher.Flush()
}
