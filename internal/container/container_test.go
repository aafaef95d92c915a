package container

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/anime-shed/forgery-inspector-go/internal/config"
)

func TestNewContainer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Defaults()
	cfg.LogLevel = "error"

	c, err := NewContainer(cfg)
	if err != nil {
		t.Fatalf("NewContainer failed: %v", err)
	}
	defer c.Close()

	if c.Service() == nil || c.Handler() == nil || c.Metrics() == nil {
		t.Fatal("Expected wired dependencies")
	}

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 from /health, got %d", rec.Code)
	}

	// local files stay unreachable from the HTTP service
	if err := c.Service().ValidateImageURL("file:///etc/passwd"); err == nil {
		t.Error("Expected file URLs to be rejected")
	}
}

func TestNewContainerWithLocalFiles(t *testing.T) {
	cfg := config.Defaults()
	cfg.LogLevel = "error"

	c, err := NewContainer(cfg, WithLocalFileAccess())
	if err != nil {
		t.Fatalf("NewContainer failed: %v", err)
	}
	defer c.Close()

	if err := c.Images().ValidateImageURL("/tmp/scan.png"); err != nil {
		t.Errorf("Expected local path to resolve, got %v", err)
	}
	if err := c.Service().ValidateImageURL("/tmp/scan.png"); err == nil {
		t.Error("Expected service to reject local paths")
	}
}

func TestAnalysisDefaults(t *testing.T) {
	cfg := config.Defaults()
	cfg.ELAQuality = 80
	cfg.SuspiciousAreaThreshold = 0.6
	cfg.MetadataCheckEnabled = false

	opts := AnalysisDefaults(cfg)
	if opts.ELAQuality != 80 || opts.SuspiciousAreaThreshold != 0.6 || opts.MetadataCheckEnabled {
		t.Errorf("Unexpected options %+v", opts)
	}

	raw, _ := json.Marshal(opts)
	if len(raw) == 0 {
		t.Error("Expected options to be serializable")
	}
}
