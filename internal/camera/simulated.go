package camera

import (
	"context"
	"image"
	"math"
	"math/rand"
	"sync"

	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
)

// PositionFunc reads the current position of the rig axes a simulated
// camera tracks.
type PositionFunc func() ([]float64, error)

// SimulatedConfig configures a synthetic beam camera. The rendered frame
// is a Gaussian spot that widens and dims as the tracked axes move away
// from FocalPoint, so sharpness metrics fall off with defocus just like a
// real beam image.
type SimulatedConfig struct {
	Name string
	// FocalPoint is the axis position of perfect focus, one value per
	// tracked axis.
	FocalPoint []float64
	// Width and Height are the frame dimensions. Default 128x128.
	Width  int
	Height int
	// SpotSigma is the spot radius at perfect focus, in pixels.
	// Default 2.5.
	SpotSigma float64
	// DefocusGain widens the spot per unit of distance from focus.
	// Default 2.0.
	DefocusGain float64
	// Noise adds uniform pixel noise of the given amplitude. Zero keeps
	// frames fully deterministic.
	Noise float64
	Seed  int64
}

// SimulatedSource renders frames for rigs without a physical camera.
type SimulatedSource struct {
	cfg     SimulatedConfig
	readPos PositionFunc

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated builds a synthetic camera that tracks the given axes.
func NewSimulated(cfg SimulatedConfig, readPos PositionFunc) (*SimulatedSource, error) {
	if readPos == nil {
		return nil, apperrors.NewInvalidConfig("simulated camera requires a position reader", nil)
	}
	if len(cfg.FocalPoint) == 0 {
		return nil, apperrors.NewInvalidConfig("simulated camera requires a focal point", nil)
	}
	if cfg.Name == "" {
		cfg.Name = "simulated"
	}
	if cfg.Width <= 0 {
		cfg.Width = 128
	}
	if cfg.Height <= 0 {
		cfg.Height = 128
	}
	if cfg.SpotSigma <= 0 {
		cfg.SpotSigma = 2.5
	}
	if cfg.DefocusGain <= 0 {
		cfg.DefocusGain = 2.0
	}
	return &SimulatedSource{
		cfg:     cfg,
		readPos: readPos,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

func (s *SimulatedSource) Name() string {
	return s.cfg.Name
}

// Capture renders a frame for the current rig position.
func (s *SimulatedSource) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewCanceled("capture interrupted", err)
	}

	pos, err := s.readPos()
	if err != nil {
		return nil, apperrors.NewAcquisition("simulated camera: reading rig position failed", err)
	}
	if len(pos) != len(s.cfg.FocalPoint) {
		return nil, apperrors.NewAcquisition("simulated camera: axis count does not match focal point", nil)
	}

	var sq float64
	for i, p := range pos {
		d := p - s.cfg.FocalPoint[i]
		sq += d * d
	}
	defocus := math.Sqrt(sq)
	sigma := s.cfg.SpotSigma + s.cfg.DefocusGain*defocus

	return s.render(sigma), nil
}

// render draws a centered Gaussian spot. Total flux is held constant so
// defocusing both widens and dims the spot.
func (s *SimulatedSource) render(sigma float64) *image.Gray {
	w, h := s.cfg.Width, s.cfg.Height
	gray := image.NewGray(image.Rect(0, 0, w, h))

	cx := float64(w-1) / 2
	cy := float64(h-1) / 2
	peak := 255.0 * (s.cfg.SpotSigma / sigma)
	inv := 1.0 / (2 * sigma * sigma)

	s.mu.Lock()
	defer s.mu.Unlock()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			v := peak * math.Exp(-(dx*dx+dy*dy)*inv)
			if s.cfg.Noise > 0 {
				v += (s.rng.Float64()*2 - 1) * s.cfg.Noise
			}
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			gray.Pix[y*gray.Stride+x] = uint8(v + 0.5)
		}
	}
	return gray
}
