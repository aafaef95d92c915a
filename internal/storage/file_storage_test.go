package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/anime-shed/forgery-inspector-go/internal/errors"
)

func TestFileImageFetcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.png")
	if err := os.WriteFile(path, []byte("image bytes"), 0o600); err != nil {
		t.Fatal(err)
	}
	fetcher := NewFileImageFetcher(1024)

	for _, location := range []string{path, "file://" + path} {
		data, err := fetcher.FetchImage(context.Background(), location)
		if err != nil {
			t.Errorf("FetchImage(%q) failed: %v", location, err)
			continue
		}
		if string(data) != "image bytes" {
			t.Errorf("Unexpected content %q", data)
		}
	}

	_, err := fetcher.FetchImage(context.Background(), filepath.Join(dir, "missing.png"))
	if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		t.Errorf("Expected not found error, got %v", err)
	}

	_, err = NewFileImageFetcher(4).FetchImage(context.Background(), path)
	if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected size limit error, got %v", err)
	}
}

func TestParseBlobURL(t *testing.T) {
	tests := []struct {
		url       string
		container string
		blob      string
		wantErr   bool
	}{
		{"https://acct.blob.core.windows.net/scans/2024/id-card.jpg", "scans", "2024/id-card.jpg", false},
		{"azblob://scans/id-card.jpg", "scans", "id-card.jpg", false},
		{"https://acct.blob.core.windows.net/scans?blob=id-card.jpg", "scans", "id-card.jpg", false},
		{"https://acct.blob.core.windows.net/scans", "", "", true},
		{"azblob://", "", "", true},
	}

	for _, tt := range tests {
		container, blob, err := ParseBlobURL(tt.url)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseBlobURL(%q) expected error", tt.url)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseBlobURL(%q) unexpected error: %v", tt.url, err)
			continue
		}
		if container != tt.container || blob != tt.blob {
			t.Errorf("ParseBlobURL(%q) = %q, %q; want %q, %q", tt.url, container, blob, tt.container, tt.blob)
		}
	}
}
