package analyzer

import (
	"context"
	"testing"

	"github.com/anime-shed/forgery-inspector-go/internal/imaging"
)

func TestAnalyzeCompression_Uniform(t *testing.T) {
	result := AnalyzeCompression(context.Background(), imaging.NewCodec(nil), solidGray(200, 150, 90))

	if result.Error != "" {
		t.Fatalf("Unexpected error: %s", result.Error)
	}
	if result.GridWidth != 100 || result.GridHeight != 100 || result.BlockSize != 8 {
		t.Errorf("Unexpected grid %dx%d/%d", result.GridWidth, result.GridHeight, result.BlockSize)
	}
	// 100/8 rounds up to 13 cells per axis
	if len(result.Blocks) != 169 {
		t.Errorf("Expected 169 blocks, got %d", len(result.Blocks))
	}
	if result.SuspiciousBlockCount != 0 {
		t.Errorf("Expected no suspicious blocks, got %d", result.SuspiciousBlockCount)
	}
	if result.HasInconsistentCompression {
		t.Error("Uniform image should not be flagged")
	}
	if result.Suspicion != SuspicionLow {
		t.Errorf("Expected low suspicion, got %s", result.Suspicion)
	}
}

func TestAnalyzeCompression_BrightBlocks(t *testing.T) {
	img := solidGray(100, 100, 100)
	for i := 0; i < 4; i++ {
		fillBlock(img, i*16, 32, 8, 255)
		fillBlock(img, i*16, 64, 8, 255)
	}

	result := AnalyzeCompression(context.Background(), imaging.NewCodec(nil), img)

	if result.SuspiciousBlockCount != 8 {
		t.Errorf("Expected 8 suspicious blocks, got %d", result.SuspiciousBlockCount)
	}
	if !result.HasInconsistentCompression {
		t.Error("Expected inconsistent compression")
	}
	if result.Suspicion != SuspicionHigh {
		t.Errorf("Expected high suspicion, got %s", result.Suspicion)
	}
	if len(result.SuspiciousBlocks) > 10 {
		t.Errorf("Expected at most 10 reported blocks, got %d", len(result.SuspiciousBlocks))
	}
}

func TestAnalyzeCompression_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := AnalyzeCompression(ctx, imaging.NewCodec(nil), solidGray(10, 10, 0))
	if result.Error == "" {
		t.Error("Expected error for cancelled context")
	}
	if result.Flagged() {
		t.Error("Degraded result must not be flagged")
	}
}

func TestClassifySuspicion(t *testing.T) {
	tests := []struct {
		count int
		want  SuspicionLevel
	}{
		{0, SuspicionLow},
		{2, SuspicionLow},
		{3, SuspicionMedium},
		{5, SuspicionMedium},
		{6, SuspicionHigh},
	}
	for _, tt := range tests {
		if got := classifySuspicion(tt.count, 5, 2); got != tt.want {
			t.Errorf("classifySuspicion(%d) = %s, want %s", tt.count, got, tt.want)
		}
	}
}
