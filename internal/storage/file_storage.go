package storage

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"strings"

	apperrors "github.com/anime-shed/forgery-inspector-go/internal/errors"
)

// FileImageFetcher reads images from the local filesystem. It accepts plain
// paths and file:// URLs.
type FileImageFetcher struct {
	maxBytes int64
}

func NewFileImageFetcher(maxBytes int64) *FileImageFetcher {
	return &FileImageFetcher{maxBytes: maxBytes}
}

func (f *FileImageFetcher) FetchImage(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewTimeoutError("file read cancelled", err)
	}

	path := location
	if strings.HasPrefix(location, "file://") {
		u, err := url.Parse(location)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid file URL", err)
		}
		path = u.Path
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewNotFoundError("image file not found", err)
		}
		return nil, apperrors.NewProcessingError("failed to open image file", err)
	}
	defer file.Close()

	return readLimited(file, f.maxBytes)
}
