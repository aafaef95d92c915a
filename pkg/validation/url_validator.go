package validation

import (
	"net/url"
	"strings"

	apperrors "github.com/anime-shed/forgery-inspector-go/internal/errors"
	"github.com/anime-shed/forgery-inspector-go/internal/storage"
)

const (
	maxSourceURLLength = 2048
	blobHostSuffix     = ".blob.core.windows.net"
)

var remoteSchemes = []string{"http", "https", "azblob"}

// URLValidator gates the image sources a caller may ask the service to fetch.
// Local files are never accepted here; only the CLI reads them, through the
// repository directly.
type URLValidator struct {
	allowedHosts []string
}

// URLValidatorOption configures a URLValidator
type URLValidatorOption func(*URLValidator)

// WithAllowedHosts restricts http(s) sources to the given hosts. An entry
// starting with "." also matches every subdomain.
func WithAllowedHosts(hosts ...string) URLValidatorOption {
	return func(v *URLValidator) {
		v.allowedHosts = append(v.allowedHosts, hosts...)
	}
}

// NewURLValidator accepts http(s) and azblob sources on any host unless
// restricted by options.
func NewURLValidator(opts ...URLValidatorOption) *URLValidator {
	v := &URLValidator{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateImageURL reports why imageURL cannot be analyzed, as a validation
// error, or nil.
func (v *URLValidator) ValidateImageURL(imageURL string) error {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}
	if len(imageURL) > maxSourceURLLength {
		return apperrors.NewValidationError("URL is too long", nil)
	}

	u, err := url.Parse(imageURL)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	scheme := strings.ToLower(u.Scheme)
	switch {
	case scheme == "" || scheme == "file":
		return apperrors.NewValidationError("local file sources are not accepted", nil)
	case !isRemoteScheme(scheme):
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}

	if u.Host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}
	// sources are logged and stored verbatim
	if u.User != nil {
		return apperrors.NewValidationError("URL must not embed credentials", nil)
	}

	if scheme == "azblob" || isBlobHost(u.Hostname()) {
		if _, _, err := storage.ParseBlobURL(imageURL); err != nil {
			return err
		}
		return nil
	}

	if !v.isHostAllowed(u.Hostname()) {
		return apperrors.NewValidationError("URL host not allowed", nil)
	}
	return nil
}

func isRemoteScheme(scheme string) bool {
	for _, s := range remoteSchemes {
		if scheme == s {
			return true
		}
	}
	return false
}

func isBlobHost(host string) bool {
	return strings.HasSuffix(strings.ToLower(host), blobHostSuffix)
}

func (v *URLValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, allowed := range v.allowedHosts {
		allowed = strings.ToLower(allowed)
		if host == allowed || host == strings.TrimPrefix(allowed, ".") {
			return true
		}
		if strings.HasPrefix(allowed, ".") && strings.HasSuffix(host, allowed) {
			return true
		}
	}
	return false
}
