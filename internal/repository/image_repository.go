package repository

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/anime-shed/forgery-inspector-go/internal/analyzer"
	"github.com/anime-shed/forgery-inspector-go/internal/storage"
)

// SourceRepository dispatches image locations to storage backends by URL
// scheme: http(s) to the HTTP fetcher, Azure blob hosts and azblob:// to
// blob storage, and file:// or bare paths to the local filesystem when
// enabled.
type SourceRepository struct {
	http  storage.ImageFetcher
	blob  storage.BlobStorage
	files storage.ImageFetcher
}

// RepositoryOption enables an optional backend.
type RepositoryOption func(*SourceRepository)

// WithBlobStorage serves Azure blob URLs from b.
func WithBlobStorage(b storage.BlobStorage) RepositoryOption {
	return func(r *SourceRepository) {
		r.blob = b
	}
}

// WithLocalFiles serves file:// URLs and plain paths from f. Never enable
// this for network-facing callers.
func WithLocalFiles(f storage.ImageFetcher) RepositoryOption {
	return func(r *SourceRepository) {
		r.files = f
	}
}

// NewImageRepository creates a repository over an HTTP fetcher.
func NewImageRepository(httpFetcher storage.ImageFetcher, opts ...RepositoryOption) *SourceRepository {
	r := &SourceRepository{http: httpFetcher}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FetchImage retrieves an image from location
func (r *SourceRepository) FetchImage(ctx context.Context, location string) (analyzer.SourceImage, error) {
	fetcher, err := r.resolve(location)
	if err != nil {
		return analyzer.SourceImage{}, err
	}
	data, err := fetcher.FetchImage(ctx, location)
	if err != nil {
		return analyzer.SourceImage{}, err
	}
	return analyzer.NewSourceImage(location, data), nil
}

// ValidateImageURL validates if the provided URL is acceptable
func (r *SourceRepository) ValidateImageURL(location string) error {
	_, err := r.resolve(location)
	return err
}

func (r *SourceRepository) resolve(location string) (storage.ImageFetcher, error) {
	if strings.TrimSpace(location) == "" {
		return nil, ErrInvalidImageURL
	}

	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImageURL, err)
	}

	var fetcher storage.ImageFetcher
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if r.blob != nil && strings.HasSuffix(strings.ToLower(u.Hostname()), ".blob.core.windows.net") {
			fetcher = r.blob
		} else {
			fetcher = r.http
		}
	case "azblob":
		if r.blob != nil {
			fetcher = r.blob
		}
	case "file", "":
		if r.files != nil {
			fetcher = r.files
		}
	}

	if fetcher == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, location)
	}
	return fetcher, nil
}
