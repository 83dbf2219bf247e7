package analyzer

import (
	"image"
	"strings"
	"sync"

	"gonum.org/v1/gonum/stat"

	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
)

// Metric identifies a sharpness scoring method.
type Metric string

const (
	// MetricLaplacian scores sharpness as the variance of the Laplacian
	// response. High-frequency content raises the variance, so sharper
	// frames score higher.
	MetricLaplacian Metric = "laplacian"
	// MetricSobel scores sharpness as the mean of the variances of the
	// horizontal and vertical Sobel gradients.
	MetricSobel Metric = "sobel"
)

// ParseMetric resolves a metric name, case-insensitively.
func ParseMetric(name string) (Metric, error) {
	switch Metric(strings.ToLower(name)) {
	case MetricLaplacian:
		return MetricLaplacian, nil
	case MetricSobel:
		return MetricSobel, nil
	default:
		return "", apperrors.NewUnknownMetric(name)
	}
}

// Scorer computes a scalar sharpness score from a preprocessed grayscale
// frame. Scores are non-negative and only comparable between frames scored
// by the same metric under the same preprocessing.
type Scorer interface {
	// Metric reports which scoring method this scorer implements.
	Metric() Metric
	// Score returns the sharpness of the frame. A uniform frame scores
	// exactly zero.
	Score(gray *image.Gray) (float64, error)
}

// NewScorer builds the scorer for a metric. sobelKernelSize selects the
// Sobel aperture (3 or 5) and is ignored by the Laplacian metric.
func NewScorer(metric Metric, sobelKernelSize int) (Scorer, error) {
	switch metric {
	case MetricLaplacian:
		return newLaplacianScorer(), nil
	case MetricSobel:
		if sobelKernelSize != 3 && sobelKernelSize != 5 {
			return nil, apperrors.NewInvalidConfig("sobel kernel size must be 3 or 5", nil)
		}
		return newSobelScorer(sobelKernelSize), nil
	default:
		return nil, apperrors.NewUnknownMetric(string(metric))
	}
}

// laplacianScorer implements the Laplacian variance metric with Gonum.
type laplacianScorer struct {
	slicePool sync.Pool
}

func newLaplacianScorer() *laplacianScorer {
	return &laplacianScorer{
		slicePool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, 1024)
			},
		},
	}
}

func (ls *laplacianScorer) Metric() Metric { return MetricLaplacian }

// Score computes the variance of the 4-neighbour Laplacian over the frame
// interior.
func (ls *laplacianScorer) Score(gray *image.Gray) (float64, error) {
	if err := checkFrame(gray, 3); err != nil {
		return 0, err
	}
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	// Get reusable slice from pool
	data := ls.slicePool.Get().([]float64)
	if cap(data) < (width-2)*(height-2) {
		data = make([]float64, 0, (width-2)*(height-2))
	}
	defer func() { ls.slicePool.Put(data[:0]) }()

	// Laplacian kernel: [0, 1, 0; 1, -4, 1; 0, 1, 0]
	minX, minY := bounds.Min.X, bounds.Min.Y
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			center := float64(gray.GrayAt(minX+x, minY+y).Y)
			top := float64(gray.GrayAt(minX+x, minY+y-1).Y)
			bottom := float64(gray.GrayAt(minX+x, minY+y+1).Y)
			left := float64(gray.GrayAt(minX+x-1, minY+y).Y)
			right := float64(gray.GrayAt(minX+x+1, minY+y).Y)

			laplacian := -4*center + top + bottom + left + right
			data = append(data, laplacian)
		}
	}

	if len(data) < 2 {
		return 0, nil
	}

	// Use Gonum's variance calculation
	return stat.Variance(data, nil), nil
}

// sobelScorer implements the averaged Sobel gradient variance metric.
// The aperture is applied as separable smoothing and derivative kernels.
type sobelScorer struct {
	ksize     int
	smooth    []float64
	deriv     []float64
	slicePool sync.Pool
}

func newSobelScorer(ksize int) *sobelScorer {
	s := &sobelScorer{ksize: ksize}
	switch ksize {
	case 3:
		s.smooth = []float64{1, 2, 1}
		s.deriv = []float64{-1, 0, 1}
	case 5:
		s.smooth = []float64{1, 4, 6, 4, 1}
		s.deriv = []float64{-1, -2, 0, 2, 1}
	}
	s.slicePool = sync.Pool{
		New: func() interface{} {
			return make([]float64, 0, 1024)
		},
	}
	return s
}

func (ss *sobelScorer) Metric() Metric { return MetricSobel }

// Score convolves the frame with the horizontal and vertical Sobel
// operators and returns the mean of the two response variances.
func (ss *sobelScorer) Score(gray *image.Gray) (float64, error) {
	if err := checkFrame(gray, ss.ksize); err != nil {
		return 0, err
	}
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	minX, minY := bounds.Min.X, bounds.Min.Y

	radius := ss.ksize / 2
	innerW := width - 2*radius
	innerH := height - 2*radius

	gx := ss.slicePool.Get().([]float64)
	if cap(gx) < innerW*innerH {
		gx = make([]float64, 0, innerW*innerH)
	}
	defer func() { ss.slicePool.Put(gx[:0]) }()
	gy := ss.slicePool.Get().([]float64)
	if cap(gy) < innerW*innerH {
		gy = make([]float64, 0, innerW*innerH)
	}
	defer func() { ss.slicePool.Put(gy[:0]) }()

	for y := radius; y < height-radius; y++ {
		for x := radius; x < width-radius; x++ {
			var sumX, sumY float64
			for ky := -radius; ky <= radius; ky++ {
				for kx := -radius; kx <= radius; kx++ {
					v := float64(gray.GrayAt(minX+x+kx, minY+y+ky).Y)
					// Sobel X smooths vertically and differentiates
					// horizontally; Sobel Y is the transpose.
					sumX += v * ss.smooth[ky+radius] * ss.deriv[kx+radius]
					sumY += v * ss.deriv[ky+radius] * ss.smooth[kx+radius]
				}
			}
			gx = append(gx, sumX)
			gy = append(gy, sumY)
		}
	}

	if len(gx) < 2 {
		return 0, nil
	}

	// Mean of the per-direction variances
	return (stat.Variance(gx, nil) + stat.Variance(gy, nil)) / 2, nil
}

// checkFrame rejects frames too small for a kernel of the given extent.
func checkFrame(gray *image.Gray, minDim int) error {
	if gray == nil {
		return apperrors.NewInvalidImage("frame is nil", nil)
	}
	bounds := gray.Bounds()
	if bounds.Dx() < minDim || bounds.Dy() < minDim {
		return apperrors.NewInvalidImage("frame smaller than scoring kernel", nil)
	}
	return nil
}
