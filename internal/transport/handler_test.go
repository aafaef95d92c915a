package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anime-shed/forgery-inspector-go/internal/analyzer"
	"github.com/anime-shed/forgery-inspector-go/internal/config"
	apperrors "github.com/anime-shed/forgery-inspector-go/internal/errors"
	"github.com/anime-shed/forgery-inspector-go/internal/observer"
	"github.com/anime-shed/forgery-inspector-go/pkg/models"
)

type stubService struct {
	lastURL     string
	lastOptions analyzer.Options
	uploadName  string
	uploadSize  int
	err         error
}

func (s *stubService) AnalyzeURL(ctx context.Context, imageURL string, opts analyzer.Options) (*models.ForgeryAnalysisResponse, error) {
	s.lastURL = imageURL
	s.lastOptions = opts
	if s.err != nil {
		return nil, s.err
	}
	return &models.ForgeryAnalysisResponse{ID: "a1", Source: imageURL, ForgeryScore: 0.44, RiskTier: "LOW RISK"}, nil
}

func (s *stubService) AnalyzeUpload(ctx context.Context, name string, data []byte, opts analyzer.Options) (*models.ForgeryAnalysisResponse, error) {
	s.uploadName = name
	s.uploadSize = len(data)
	s.lastOptions = opts
	if s.err != nil {
		return nil, s.err
	}
	return &models.ForgeryAnalysisResponse{ID: "u1", Source: name}, nil
}

func (s *stubService) AnalyzeBatch(ctx context.Context, imageURLs []string, opts analyzer.Options) (*models.BatchAnalysisResponse, error) {
	resp := &models.BatchAnalysisResponse{}
	for _, u := range imageURLs {
		resp.Results = append(resp.Results, models.BatchItemResult{Source: u, Result: &models.ForgeryAnalysisResponse{Source: u}})
		resp.Succeeded++
	}
	return resp, nil
}

func (s *stubService) GetAnalysis(ctx context.Context, id string) (*models.ForgeryAnalysisResponse, error) {
	if id != "a1" {
		return nil, apperrors.NewNotFoundError("analysis not found", nil)
	}
	return &models.ForgeryAnalysisResponse{ID: id}, nil
}

func (s *stubService) ResolveOptions(req *models.AnalysisOptionsRequest) analyzer.Options {
	opts := analyzer.DefaultOptions()
	if req != nil && req.ELAQuality != nil {
		opts.ELAQuality = *req.ELAQuality
	}
	if req != nil && req.IncludeELAImage {
		opts.IncludeELAImage = true
	}
	return opts
}

func (s *stubService) ValidateImageURL(imageURL string) error { return nil }

type stubMetrics struct{}

func (stubMetrics) GetMetrics() observer.Metrics {
	return observer.Metrics{TotalAnalyses: 3, ForgeriesDetected: 1}
}

func newTestHandler(svc *stubService) http.Handler {
	gin.SetMode(gin.TestMode)
	cfg := config.Defaults()
	cfg.MaxRequestBodySize = 64 * 1024
	cfg.RequestTimeout = 5 * time.Second
	return NewHandler(svc, stubMetrics{}, analyzer.NewWorkerPool(1), cfg)
}

func TestHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(&stubService{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body models.HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "available" || body.Version == "" {
		t.Errorf("Unexpected health body %+v", body)
	}
}

func TestAnalyzeURL(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(svc)

	payload := `{"url":"https://example.com/id.jpg","options":{"ela_quality":80}}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastURL != "https://example.com/id.jpg" || svc.lastOptions.ELAQuality != 80 {
		t.Errorf("Request not forwarded: %q %+v", svc.lastURL, svc.lastOptions)
	}
	var body models.ForgeryAnalysisResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.ForgeryScore != 0.44 || body.RiskTier != "LOW RISK" {
		t.Errorf("Unexpected body %+v", body)
	}
}

func TestAnalyzeURL_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		svcErr  error
		want    int
	}{
		{"malformed json", `{"url":`, nil, http.StatusBadRequest},
		{"missing url", `{}`, nil, http.StatusBadRequest},
		{"undecodable image", `{"url":"https://example.com/x.jpg"}`, apperrors.NewImageDecodeError("failed to decode source image", nil), http.StatusUnprocessableEntity},
		{"timeout", `{"url":"https://example.com/x.jpg"}`, apperrors.NewTimeoutError("forgery analysis timed out", nil), http.StatusGatewayTimeout},
		{"oversized body", `{"url":"https://example.com/` + strings.Repeat("a", 70*1024) + `"}`, nil, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&stubService{err: tt.svcErr})
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(tt.payload))
			req.Header.Set("Content-Type", "application/json")
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			var body models.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("Expected JSON error body, got %q", rec.Body.String())
			}
			if body.Error != http.StatusText(tt.want) {
				t.Errorf("Expected error %q, got %q", http.StatusText(tt.want), body.Error)
			}
		})
	}
}

func TestAnalyzeUpload(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(svc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "passport.png")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("fake image bytes"))
	mw.WriteField("include_ela_image", "true")
	mw.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.uploadName != "passport.png" || svc.uploadSize != len("fake image bytes") {
		t.Errorf("Upload not forwarded: %q (%d bytes)", svc.uploadName, svc.uploadSize)
	}
	if !svc.lastOptions.IncludeELAImage {
		t.Error("Expected form options to be bound")
	}
}

func TestAnalyzeUpload_MissingFile(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze/upload", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	newTestHandler(&stubService{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestAnalyzeBatch(t *testing.T) {
	h := newTestHandler(&stubService{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze/batch", strings.NewReader(`{"urls":["https://example.com/a.jpg","https://example.com/b.jpg"]}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body models.BatchAnalysisResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Succeeded != 2 || len(body.Results) != 2 {
		t.Errorf("Unexpected batch body %+v", body)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/analyze/batch", strings.NewReader(`{"urls":[]}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty batch, got %d", rec.Code)
	}
}

func TestGetAnalysisAndMetrics(t *testing.T) {
	h := newTestHandler(&stubService{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analyses/a1", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analyses/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body struct {
		Analyses   observer.Metrics   `json:"analyses"`
		WorkerPool analyzer.PoolStats `json:"worker_pool"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Analyses.TotalAnalyses != 3 || body.Analyses.ForgeriesDetected != 1 {
		t.Errorf("Unexpected metrics %+v", body.Analyses)
	}
}
