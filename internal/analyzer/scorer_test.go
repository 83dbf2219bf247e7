package analyzer

import (
	"image"
	"image/color"
	"testing"

	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
)

func createGray(width, height int, value uint8) *image.Gray {
	gray := image.NewGray(image.Rect(0, 0, width, height))
	for i := range gray.Pix {
		gray.Pix[i] = value
	}
	return gray
}

func createEdgeGray(width, height int) *image.Gray {
	gray := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x < width/2 {
				gray.Set(x, y, color.Gray{0})
			} else {
				gray.Set(x, y, color.Gray{255})
			}
		}
	}
	return gray
}

func createRampGray(width, height int) *image.Gray {
	gray := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gray.Set(x, y, color.Gray{uint8(x * 255 / (width - 1))})
		}
	}
	return gray
}

func createCheckerboard(width, height, square int) *image.Gray {
	gray := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if (x/square+y/square)%2 == 0 {
				gray.Set(x, y, color.Gray{0})
			} else {
				gray.Set(x, y, color.Gray{255})
			}
		}
	}
	return gray
}

func TestParseMetric(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Metric
		wantErr bool
	}{
		{"laplacian", "laplacian", MetricLaplacian, false},
		{"sobel", "sobel", MetricSobel, false},
		{"mixed case", "Laplacian", MetricLaplacian, false},
		{"upper case", "SOBEL", MetricSobel, false},
		{"unknown", "tenengrad", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMetric(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected an error")
				}
				if !apperrors.IsKind(err, apperrors.KindUnknownMetric) {
					t.Errorf("Expected unknown metric kind, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestNewScorerRejectsBadSobelKernel(t *testing.T) {
	for _, ksize := range []int{0, 1, 2, 4, 7} {
		if _, err := NewScorer(MetricSobel, ksize); err == nil {
			t.Errorf("Expected error for sobel kernel size %d", ksize)
		}
	}
	for _, ksize := range []int{3, 5} {
		if _, err := NewScorer(MetricSobel, ksize); err != nil {
			t.Errorf("Unexpected error for sobel kernel size %d: %v", ksize, err)
		}
	}
}

func TestUniformFrameScoresZero(t *testing.T) {
	uniform := createGray(64, 64, 128)

	for _, metric := range []Metric{MetricLaplacian, MetricSobel} {
		t.Run(string(metric), func(t *testing.T) {
			scorer, err := NewScorer(metric, 5)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			score, err := scorer.Score(uniform)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if score != 0 {
				t.Errorf("Expected score 0 for uniform frame, got %f", score)
			}
		})
	}
}

func TestSharpFrameOutscoresSmoothFrame(t *testing.T) {
	edge := createEdgeGray(64, 64)
	ramp := createRampGray(64, 64)

	for _, metric := range []Metric{MetricLaplacian, MetricSobel} {
		t.Run(string(metric), func(t *testing.T) {
			scorer, err := NewScorer(metric, 5)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			sharp, err := scorer.Score(edge)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			smooth, err := scorer.Score(ramp)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if sharp <= smooth {
				t.Errorf("Expected edge frame (%f) to outscore ramp frame (%f)", sharp, smooth)
			}
			if smooth < 0 {
				t.Errorf("Expected non-negative score, got %f", smooth)
			}
		})
	}
}

func TestLaplacianScoreIsRepeatable(t *testing.T) {
	scorer, err := NewScorer(MetricLaplacian, 5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	board := createCheckerboard(80, 80, 8)

	first, err := scorer.Score(board)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := scorer.Score(board)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("Expected repeated scoring to match: %f vs %f", first, second)
	}
	if first <= 0 {
		t.Errorf("Expected positive score for checkerboard, got %f", first)
	}
}

func TestSobelKernelSizesBothDetectEdges(t *testing.T) {
	edge := createEdgeGray(64, 64)

	for _, ksize := range []int{3, 5} {
		scorer, err := NewScorer(MetricSobel, ksize)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		score, err := scorer.Score(edge)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if score <= 0 {
			t.Errorf("Expected positive score for ksize %d, got %f", ksize, score)
		}
	}
}

func TestScoreRejectsTinyFrames(t *testing.T) {
	tests := []struct {
		name   string
		metric Metric
		width  int
		height int
	}{
		{"laplacian 2x2", MetricLaplacian, 2, 2},
		{"laplacian 1 row", MetricLaplacian, 10, 1},
		{"sobel below aperture", MetricSobel, 4, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer, err := NewScorer(tt.metric, 5)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			_, err = scorer.Score(createGray(tt.width, tt.height, 10))
			if err == nil {
				t.Fatal("Expected an error")
			}
			if !apperrors.IsKind(err, apperrors.KindInvalidImage) {
				t.Errorf("Expected invalid image kind, got %v", err)
			}
		})
	}
}

func TestScoreRejectsNilFrame(t *testing.T) {
	scorer, err := NewScorer(MetricLaplacian, 5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := scorer.Score(nil); err == nil {
		t.Error("Expected an error for nil frame")
	}
}

func TestScoreHandlesNonZeroOrigin(t *testing.T) {
	// SubImage regions keep their parent's coordinate space.
	parent := createEdgeGray(80, 80)
	sub, ok := parent.SubImage(image.Rect(10, 10, 70, 70)).(*image.Gray)
	if !ok {
		t.Fatal("Expected SubImage to return *image.Gray")
	}

	scorer, err := NewScorer(MetricLaplacian, 5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	score, err := scorer.Score(sub)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if score <= 0 {
		t.Errorf("Expected positive score for offset region, got %f", score)
	}
}
