package focus

import (
	"context"
	"image"
	"sync"
	"testing"

	"github.com/teddyrendahl/psbeam/internal/analyzer"
	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
)

// testFrame renders a frame with enough structure to score above zero.
func testFrame(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x * 255) / w)
			if x > w/2 {
				v = 255 - v
			}
			img.Pix[y*img.Stride+x] = v
		}
	}
	return img
}

// countingSource hands out the same frame and counts captures.
type countingSource struct {
	mu       sync.Mutex
	captures int
	frame    image.Image
	err      error
}

func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) Capture(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captures++
	if s.err != nil {
		return nil, s.err
	}
	return s.frame, nil
}

func (s *countingSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captures
}

func newTestPipeline(t *testing.T) (*analyzer.Preprocessor, analyzer.Scorer) {
	t.Helper()
	opts := analyzer.DefaultOptions()
	opts.BlurKernel = [2]int{3, 3}
	pre, err := analyzer.NewPreprocessor(opts)
	if err != nil {
		t.Fatalf("NewPreprocessor: %v", err)
	}
	scorer, err := analyzer.NewScorer(analyzer.MetricLaplacian, 0)
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}
	return pre, scorer
}

func TestAveragerCapturesSampleCount(t *testing.T) {
	pre, scorer := newTestPipeline(t)
	source := &countingSource{frame: testFrame(48, 48)}

	avg, err := NewAverager(source, pre, scorer, 3, false)
	if err != nil {
		t.Fatalf("NewAverager: %v", err)
	}
	if _, err := avg.Score(context.Background()); err != nil {
		t.Fatalf("Score: %v", err)
	}
	if source.count() != 3 {
		t.Errorf("captured %d frames, want 3", source.count())
	}
}

func TestAveragerSingleSampleMatchesDirectScore(t *testing.T) {
	pre, scorer := newTestPipeline(t)
	frame := testFrame(48, 48)
	source := &countingSource{frame: frame}

	avg, err := NewAverager(source, pre, scorer, 1, false)
	if err != nil {
		t.Fatalf("NewAverager: %v", err)
	}
	got, err := avg.Score(context.Background())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	gray, err := pre.Process(frame)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	want, err := scorer.Score(gray)
	if err != nil {
		t.Fatalf("direct Score: %v", err)
	}
	if got != want {
		t.Errorf("averaged score %v differs from direct score %v", got, want)
	}
}

func TestAveragerParallelMatchesSequential(t *testing.T) {
	pre, scorer := newTestPipeline(t)
	frame := testFrame(64, 64)

	seq, err := NewAverager(&countingSource{frame: frame}, pre, scorer, 4, false)
	if err != nil {
		t.Fatalf("NewAverager sequential: %v", err)
	}
	par, err := NewAverager(&countingSource{frame: frame}, pre, scorer, 4, true)
	if err != nil {
		t.Fatalf("NewAverager parallel: %v", err)
	}

	seqScore, err := seq.Score(context.Background())
	if err != nil {
		t.Fatalf("sequential Score: %v", err)
	}
	parScore, err := par.Score(context.Background())
	if err != nil {
		t.Fatalf("parallel Score: %v", err)
	}
	if seqScore != parScore {
		t.Errorf("parallel score %v differs from sequential %v", parScore, seqScore)
	}
	if seqScore <= 0 {
		t.Errorf("expected a positive score for a structured frame, got %v", seqScore)
	}
}

func TestAveragerRejectsBadArguments(t *testing.T) {
	pre, scorer := newTestPipeline(t)
	source := &countingSource{frame: testFrame(32, 32)}

	if _, err := NewAverager(source, pre, scorer, 0, false); !apperrors.IsKind(err, apperrors.KindInvalidConfig) {
		t.Errorf("sample count 0: expected invalid_config, got %v", err)
	}
	if _, err := NewAverager(nil, pre, scorer, 1, false); !apperrors.IsKind(err, apperrors.KindInvalidConfig) {
		t.Errorf("nil source: expected invalid_config, got %v", err)
	}
	if _, err := NewAverager(source, nil, scorer, 1, false); !apperrors.IsKind(err, apperrors.KindInvalidConfig) {
		t.Errorf("nil preprocessor: expected invalid_config, got %v", err)
	}
	if _, err := NewAverager(source, pre, nil, 1, false); !apperrors.IsKind(err, apperrors.KindInvalidConfig) {
		t.Errorf("nil scorer: expected invalid_config, got %v", err)
	}
}

func TestAveragerCanceledContext(t *testing.T) {
	pre, scorer := newTestPipeline(t)
	source := &countingSource{frame: testFrame(32, 32)}

	avg, err := NewAverager(source, pre, scorer, 2, false)
	if err != nil {
		t.Fatalf("NewAverager: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := avg.Score(ctx); !apperrors.IsKind(err, apperrors.KindCanceled) {
		t.Errorf("expected canceled, got %v", err)
	}
}

func TestAveragerPropagatesCaptureFailure(t *testing.T) {
	pre, scorer := newTestPipeline(t)
	source := &countingSource{err: apperrors.NewAcquisition("camera offline", nil)}

	avg, err := NewAverager(source, pre, scorer, 2, false)
	if err != nil {
		t.Fatalf("NewAverager: %v", err)
	}
	if _, err := avg.Score(context.Background()); !apperrors.IsKind(err, apperrors.KindAcquisition) {
		t.Errorf("expected acquisition, got %v", err)
	}
}
