package analyzer

import (
	"errors"
	"math"
	"testing"

	apperrors "github.com/anime-shed/forgery-inspector-go/internal/errors"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.ELAQuality != 90 {
		t.Errorf("Expected ELAQuality to be 90, got %d", opts.ELAQuality)
	}
	if opts.SuspiciousAreaThreshold != 0.7 {
		t.Errorf("Expected SuspiciousAreaThreshold to be 0.7, got %f", opts.SuspiciousAreaThreshold)
	}
	if !opts.MetadataCheckEnabled {
		t.Error("Expected MetadataCheckEnabled to be true by default")
	}
	if opts.IncludeELAImage {
		t.Error("Expected IncludeELAImage to be false by default")
	}
	if err := opts.Validate(); err != nil {
		t.Errorf("Default options should validate, got %v", err)
	}
}

func TestOptionBuilders(t *testing.T) {
	opts := DefaultOptions().WithELAQuality(75).WithThreshold(0.5).WithoutMetadataCheck().WithELAImage()

	if opts.ELAQuality != 75 {
		t.Errorf("Expected ELAQuality 75, got %d", opts.ELAQuality)
	}
	if opts.SuspiciousAreaThreshold != 0.5 {
		t.Errorf("Expected threshold 0.5, got %f", opts.SuspiciousAreaThreshold)
	}
	if opts.MetadataCheckEnabled {
		t.Error("Expected metadata check disabled")
	}
	if !opts.IncludeELAImage {
		t.Error("Expected ELA image requested")
	}

	// Builders return copies.
	base := DefaultOptions()
	_ = base.WithELAQuality(10)
	if base.ELAQuality != 90 {
		t.Error("Builder mutated the receiver")
	}
}

func TestOptionsNormalized(t *testing.T) {
	opts := Options{}.normalized()
	if opts.ELAQuality != DefaultELAQuality {
		t.Errorf("Expected default quality, got %d", opts.ELAQuality)
	}
	if opts.SuspiciousAreaThreshold != DefaultSuspiciousAreaThreshold {
		t.Errorf("Expected default threshold, got %f", opts.SuspiciousAreaThreshold)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"defaults", DefaultOptions(), false},
		{"quality 1", DefaultOptions().WithELAQuality(1), false},
		{"quality 100", DefaultOptions().WithELAQuality(100), false},
		{"quality 0", DefaultOptions().WithELAQuality(0), true},
		{"quality 101", DefaultOptions().WithELAQuality(101), true},
		{"threshold 1", DefaultOptions().WithThreshold(1), false},
		{"threshold 0", DefaultOptions().WithThreshold(0), true},
		{"threshold negative", DefaultOptions().WithThreshold(-0.1), true},
		{"threshold above 1", DefaultOptions().WithThreshold(1.01), true},
		{"threshold NaN", DefaultOptions().WithThreshold(math.NaN()), true},
		{"threshold +Inf", DefaultOptions().WithThreshold(math.Inf(1)), true},
		{"threshold -Inf", DefaultOptions().WithThreshold(math.Inf(-1)), true},
		{"normalized NaN", DefaultOptions().WithThreshold(math.NaN()).normalized(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperrors.ErrValidation) {
				t.Errorf("Expected validation error type, got %v", err)
			}
		})
	}
}
