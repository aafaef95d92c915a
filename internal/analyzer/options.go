package analyzer

import (
	"fmt"

	apperrors "github.com/anime-shed/forgery-inspector-go/internal/errors"
)

const (
	DefaultELAQuality              = 90
	DefaultSuspiciousAreaThreshold = 0.7
)

// Options configures one forgery analysis.
type Options struct {
	// ELAQuality is the JPEG quality used for both ELA re-compressions.
	// Zero selects DefaultELAQuality.
	ELAQuality int

	// SuspiciousAreaThreshold is the fraction of full intensity a 32x32
	// difference block must exceed to be flagged. Zero selects the default.
	SuspiciousAreaThreshold float64

	MetadataCheckEnabled bool

	// IncludeELAImage attaches a PNG of the stretched ELA difference.
	IncludeELAImage bool
}

// DefaultOptions returns default analysis options
func DefaultOptions() Options {
	return Options{
		ELAQuality:              DefaultELAQuality,
		SuspiciousAreaThreshold: DefaultSuspiciousAreaThreshold,
		MetadataCheckEnabled:    true,
	}
}

// WithELAQuality returns options using quality q for re-compression
func (opts Options) WithELAQuality(q int) Options {
	opts.ELAQuality = q
	return opts
}

// WithThreshold returns options with a custom suspicious-area threshold
func (opts Options) WithThreshold(threshold float64) Options {
	opts.SuspiciousAreaThreshold = threshold
	return opts
}

// WithoutMetadataCheck disables the metadata analyzer
func (opts Options) WithoutMetadataCheck() Options {
	opts.MetadataCheckEnabled = false
	return opts
}

// WithELAImage requests the enhanced ELA image in the result
func (opts Options) WithELAImage() Options {
	opts.IncludeELAImage = true
	return opts
}

// normalized fills unset numeric fields with their defaults.
func (opts Options) normalized() Options {
	if opts.ELAQuality == 0 {
		opts.ELAQuality = DefaultELAQuality
	}
	if opts.SuspiciousAreaThreshold == 0 {
		opts.SuspiciousAreaThreshold = DefaultSuspiciousAreaThreshold
	}
	return opts
}

// Validate reports out-of-range options as a validation error.
func (opts Options) Validate() error {
	if opts.ELAQuality < 1 || opts.ELAQuality > 100 {
		return apperrors.NewValidationError(fmt.Sprintf("ELA quality must be within 1..100, got %d", opts.ELAQuality), nil)
	}
	// written so that NaN fails too
	if !(opts.SuspiciousAreaThreshold > 0 && opts.SuspiciousAreaThreshold <= 1) {
		return apperrors.NewValidationError(fmt.Sprintf("suspicious area threshold must be within (0,1], got %g", opts.SuspiciousAreaThreshold), nil)
	}
	return nil
}
