package focus

import (
	"context"
	"image"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/teddyrendahl/psbeam/internal/analyzer"
	"github.com/teddyrendahl/psbeam/internal/camera"
	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
)

// Averager produces one sharpness score per trial by capturing a burst of
// frames and averaging their individual scores. Averaging over several
// frames suppresses shot noise and transient beam motion that would
// otherwise make neighboring trials incomparable.
type Averager struct {
	source   camera.Source
	pre      *analyzer.Preprocessor
	scorer   analyzer.Scorer
	samples  int
	parallel bool
}

// NewAverager wires a camera source to the scoring pipeline.
func NewAverager(source camera.Source, pre *analyzer.Preprocessor, scorer analyzer.Scorer, samples int, parallel bool) (*Averager, error) {
	if source == nil || pre == nil || scorer == nil {
		return nil, apperrors.NewInvalidConfig("averager requires a source, preprocessor and scorer", nil)
	}
	if samples < 1 {
		return nil, apperrors.NewInvalidConfig("sample count must be at least 1", nil)
	}
	return &Averager{source: source, pre: pre, scorer: scorer, samples: samples, parallel: parallel}, nil
}

// Score captures the configured number of frames and returns the mean of
// their sharpness scores. Frames are always captured one at a time; the
// camera is a serial device. In parallel mode the scoring work fans out
// across goroutines once all frames are in hand.
func (a *Averager) Score(ctx context.Context) (float64, error) {
	frames := make([]image.Image, a.samples)
	for i := range frames {
		if err := ctx.Err(); err != nil {
			return 0, apperrors.NewCanceled("sampling interrupted", err)
		}
		frame, err := a.source.Capture(ctx)
		if err != nil {
			return 0, err
		}
		frames[i] = frame
	}

	scores := make([]float64, a.samples)
	if a.parallel && a.samples > 1 {
		g, _ := errgroup.WithContext(ctx)
		for i := range frames {
			g.Go(func() error {
				score, err := a.scoreFrame(frames[i])
				if err != nil {
					return err
				}
				scores[i] = score
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}
	} else {
		for i, frame := range frames {
			score, err := a.scoreFrame(frame)
			if err != nil {
				return 0, err
			}
			scores[i] = score
		}
	}

	return stat.Mean(scores, nil), nil
}

func (a *Averager) scoreFrame(frame image.Image) (float64, error) {
	gray, err := a.pre.Process(frame)
	if err != nil {
		return 0, err
	}
	return a.scorer.Score(gray)
}
