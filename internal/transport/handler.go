package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/forgery-inspector-go/internal/analyzer"
	"github.com/anime-shed/forgery-inspector-go/internal/config"
	apperrors "github.com/anime-shed/forgery-inspector-go/internal/errors"
	"github.com/anime-shed/forgery-inspector-go/internal/logger"
	"github.com/anime-shed/forgery-inspector-go/internal/observer"
	"github.com/anime-shed/forgery-inspector-go/internal/service"
	"github.com/anime-shed/forgery-inspector-go/pkg/models"
)

const version = "1.0.0"

// MetricsSource exposes runtime counters for the metrics endpoint.
type MetricsSource interface {
	GetMetrics() observer.Metrics
}

// PoolStatsSource exposes worker pool counters.
type PoolStatsSource interface {
	GetStats() analyzer.PoolStats
}

type handler struct {
	svc     service.ForgeryAnalysisService
	metrics MetricsSource
	pool    PoolStatsSource
	cfg     *config.Config
}

func NewHandler(svc service.ForgeryAnalysisService, metrics MetricsSource, pool PoolStatsSource, cfg *config.Config) http.Handler {
	h := &handler{svc: svc, metrics: metrics, pool: pool, cfg: cfg}
	r := gin.Default()

	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	r.GET("/health", healthCheck)
	r.GET("/metrics", h.getMetrics)
	r.POST("/analyze", h.analyzeURL)
	r.POST("/analyze/upload", h.analyzeUpload)
	r.POST("/analyze/batch", h.analyzeBatch)
	r.GET("/analyses/:id", h.getAnalysis)

	return r
}

func (h *handler) analyzeURL(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()
	logRequest(c, "Processing forgery analysis request")

	var req models.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}

	resp, err := h.svc.AnalyzeURL(ctx, req.URL, h.svc.ResolveOptions(req.Options))
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "forgery analysis failed", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) analyzeUpload(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()
	logRequest(c, "Processing forgery analysis upload")

	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "missing image file", err)
		return
	}

	var opts models.AnalysisOptionsRequest
	if err := c.ShouldBind(&opts); err != nil {
		respondError(c, http.StatusBadRequest, "invalid analysis options", err)
		return
	}

	f, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "unreadable image file", err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, http.StatusBadRequest, "unreadable image file", err)
		return
	}

	resp, err := h.svc.AnalyzeUpload(ctx, file.Filename, data, h.svc.ResolveOptions(&opts))
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "forgery analysis failed", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) analyzeBatch(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()
	logRequest(c, "Processing batch forgery analysis request")

	var req models.BatchAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}

	resp, err := h.svc.AnalyzeBatch(ctx, req.URLs, h.svc.ResolveOptions(req.Options))
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "batch analysis failed", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) getAnalysis(c *gin.Context) {
	resp, err := h.svc.GetAnalysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "analysis lookup failed", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) getMetrics(c *gin.Context) {
	body := gin.H{}
	if h.metrics != nil {
		body["analyses"] = h.metrics.GetMetrics()
	}
	if h.pool != nil {
		body["worker_pool"] = h.pool.GetStats()
	}
	c.JSON(http.StatusOK, body)
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:  "available",
		Version: version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

func logRequest(c *gin.Context, msg string) {
	logger.WithFields(logrus.Fields{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"ip":         c.ClientIP(),
	}).Info(msg)
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		code = http.StatusRequestEntityTooLarge
	}

	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	body := service.ToErrorResponse(err)
	body.Error = http.StatusText(code)
	body.Message = fmt.Sprintf("%s: %s", message, body.Message)
	c.AbortWithStatusJSON(code, body)
}
