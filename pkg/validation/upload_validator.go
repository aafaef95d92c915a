package validation

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	apperrors "github.com/anime-shed/forgery-inspector-go/internal/errors"
)

// supportedImageTypes are the formats the forgery engine can decode.
var supportedImageTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/bmp",
	"image/tiff",
	"image/webp",
}

// UploadValidator checks uploaded image payloads by size and sniffed type.
type UploadValidator struct {
	maxBytes int64
}

func NewUploadValidator(maxBytes int64) *UploadValidator {
	return &UploadValidator{maxBytes: maxBytes}
}

// ValidateUpload rejects empty or oversized payloads and anything whose
// content does not sniff as a supported image format. It returns the
// detected MIME type.
func (v *UploadValidator) ValidateUpload(data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperrors.NewValidationError("uploaded image is empty", nil)
	}
	if v.maxBytes > 0 && int64(len(data)) > v.maxBytes {
		return "", apperrors.NewValidationError(fmt.Sprintf("uploaded image exceeds %d bytes", v.maxBytes), nil)
	}

	detected := mimetype.Detect(data)
	for _, supported := range supportedImageTypes {
		if detected.Is(supported) {
			return supported, nil
		}
	}
	return "", apperrors.NewValidationError(fmt.Sprintf("unsupported image type %s", detected.String()), nil)
}
