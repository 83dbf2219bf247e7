package analyzer

import (
	"image"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"github.com/muesli/smartcrop"

	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
)

// ROIMode selects how the scoring region is extracted from a frame.
type ROIMode string

const (
	// ROIFull scores the whole frame.
	ROIFull ROIMode = ""
	// ROICenter keeps a centered fraction of each dimension.
	ROICenter ROIMode = "center"
	// ROISmart asks smartcrop for the most feature-dense region of the
	// requested fractional size.
	ROISmart ROIMode = "smart"
)

// CleanupOp selects an optional morphological cleanup applied after
// equalization, before scoring.
type CleanupOp string

const (
	CleanupNone  CleanupOp = ""
	CleanupOpen  CleanupOp = "open"
	CleanupClose CleanupOp = "close"
)

// Options configure the frame normalization pipeline.
type Options struct {
	// ResizeFactor scales both frame dimensions before scoring. 1 keeps
	// the native resolution.
	ResizeFactor float64
	// BlurKernel is the Gaussian kernel extent (width, height).
	BlurKernel [2]int
	// BlurSigma is the Gaussian standard deviation. Zero derives it from
	// the kernel width.
	BlurSigma float64

	ROI         ROIMode
	ROIFraction float64

	Cleanup           CleanupOp
	CleanupIterations int
	CleanupKernel     Kernel
}

// DefaultOptions returns the pipeline defaults: native resolution, a 17x17
// blur kernel with derived sigma, full-frame scoring, no cleanup.
func DefaultOptions() Options {
	return Options{
		ResizeFactor:      1.0,
		BlurKernel:        [2]int{17, 17},
		BlurSigma:         0,
		ROIFraction:       1.0,
		CleanupIterations: 1,
		CleanupKernel:     DefaultKernel(),
	}
}

// Validate checks pipeline options before any frame is touched.
func (o Options) Validate() error {
	if o.ResizeFactor <= 0 {
		return apperrors.NewInvalidConfig("resize factor must be positive", nil)
	}
	if o.BlurKernel[0] <= 0 || o.BlurKernel[1] <= 0 {
		return apperrors.NewInvalidConfig("blur kernel dimensions must be positive", nil)
	}
	if o.BlurSigma < 0 {
		return apperrors.NewInvalidConfig("blur sigma must be non-negative", nil)
	}
	switch o.ROI {
	case ROIFull, ROICenter, ROISmart:
	default:
		return apperrors.NewInvalidConfig("unknown roi mode "+string(o.ROI), nil)
	}
	if o.ROI != ROIFull && (o.ROIFraction <= 0 || o.ROIFraction > 1) {
		return apperrors.NewInvalidConfig("roi fraction must be in (0, 1]", nil)
	}
	switch o.Cleanup {
	case CleanupNone:
	case CleanupOpen, CleanupClose:
		if o.CleanupIterations < 1 {
			return apperrors.NewInvalidConfig("cleanup iterations must be at least 1", nil)
		}
		if o.CleanupKernel.Width <= 0 || o.CleanupKernel.Height <= 0 {
			return apperrors.NewInvalidConfig("cleanup kernel dimensions must be positive", nil)
		}
	default:
		return apperrors.NewInvalidConfig("unknown cleanup op "+string(o.Cleanup), nil)
	}
	return nil
}

// Preprocessor normalizes raw camera frames into the canonical grayscale
// representation every scorer consumes. The same pipeline must run for
// every frame in a run so scores stay comparable.
type Preprocessor struct {
	opts  Options
	sigma float64
	crops smartcrop.Analyzer
}

// NewPreprocessor validates the options and builds the pipeline.
func NewPreprocessor(opts Options) (*Preprocessor, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	p := &Preprocessor{opts: opts, sigma: opts.BlurSigma}
	if p.sigma == 0 {
		p.sigma = sigmaForKernel(opts.BlurKernel[0])
	}
	if opts.ROI == ROISmart {
		p.crops = smartcrop.NewAnalyzer(linearResizer{})
	}
	return p, nil
}

// Process runs the pipeline: canonical 8-bit grayscale, region of
// interest, spatial resize, Gaussian blur, histogram equalization, then
// optional morphological cleanup.
func (p *Preprocessor) Process(img image.Image) (*image.Gray, error) {
	if img == nil {
		return nil, apperrors.NewInvalidImage("frame is nil", nil)
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, apperrors.NewInvalidImage("frame has no pixels", nil)
	}

	gray := toGray(img)

	if p.opts.ROI != ROIFull {
		region, err := p.selectROI(gray)
		if err != nil {
			return nil, err
		}
		gray = region
	}

	work := image.Image(gray)
	if p.opts.ResizeFactor != 1.0 {
		w := scaleDim(gray.Bounds().Dx(), p.opts.ResizeFactor)
		h := scaleDim(gray.Bounds().Dy(), p.opts.ResizeFactor)
		work = imaging.Resize(work, w, h, imaging.Linear)
	}
	if p.sigma > 0 {
		work = imaging.Blur(work, p.sigma)
	}

	out := toGray(work)
	equalizeHist(out)

	switch p.opts.Cleanup {
	case CleanupOpen:
		return Opening(out, p.opts.CleanupIterations, p.opts.CleanupIterations, p.opts.CleanupKernel)
	case CleanupClose:
		return Closing(out, p.opts.CleanupIterations, p.opts.CleanupIterations, p.opts.CleanupKernel)
	}
	return out, nil
}

// selectROI crops the configured scoring region out of the frame.
func (p *Preprocessor) selectROI(gray *image.Gray) (*image.Gray, error) {
	bounds := gray.Bounds()
	w := scaleDim(bounds.Dx(), p.opts.ROIFraction)
	h := scaleDim(bounds.Dy(), p.opts.ROIFraction)
	if w >= bounds.Dx() && h >= bounds.Dy() {
		return gray, nil
	}

	var rect image.Rectangle
	switch p.opts.ROI {
	case ROICenter:
		x0 := bounds.Min.X + (bounds.Dx()-w)/2
		y0 := bounds.Min.Y + (bounds.Dy()-h)/2
		rect = image.Rect(x0, y0, x0+w, y0+h)
	case ROISmart:
		crop, err := p.crops.FindBestCrop(gray, w, h)
		if err != nil {
			return nil, apperrors.NewInvalidImage("smart roi selection failed", err)
		}
		rect = crop.Intersect(bounds)
		if rect.Empty() {
			return nil, apperrors.NewInvalidImage("smart roi selected an empty region", nil)
		}
	}
	return toGray(gray.SubImage(rect)), nil
}

// linearResizer adapts imaging for smartcrop's downscaling hook.
type linearResizer struct{}

func (linearResizer) Resize(img image.Image, width, height uint) image.Image {
	return imaging.Resize(img, int(width), int(height), imaging.Linear)
}

// toGray copies any image into a zero-origin 8-bit grayscale buffer.
func toGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	return gray
}

// scaleDim scales a dimension by a factor, keeping at least one pixel.
func scaleDim(dim int, factor float64) int {
	scaled := int(math.Round(float64(dim) * factor))
	if scaled < 1 {
		scaled = 1
	}
	return scaled
}

// sigmaForKernel derives the Gaussian sigma from a kernel extent using the
// same relation OpenCV applies when sigma is left at zero.
func sigmaForKernel(ksize int) float64 {
	return 0.3*((float64(ksize)-1)*0.5-1) + 0.8
}

// equalizeHist spreads the grayscale histogram over the full 8-bit range
// in place. A constant frame is left untouched.
func equalizeHist(gray *image.Gray) {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	total := width * height
	if total == 0 {
		return
	}

	var hist [256]int
	for y := 0; y < height; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+width]
		for _, v := range row {
			hist[v]++
		}
	}

	first := 0
	for first < 256 && hist[first] == 0 {
		first++
	}
	if first == 256 || hist[first] == total {
		return
	}

	scale := 255.0 / float64(total-hist[first])
	var lut [256]uint8
	sum := 0
	for i := first + 1; i < 256; i++ {
		sum += hist[i]
		v := math.Round(float64(sum) * scale)
		if v > 255 {
			v = 255
		}
		lut[i] = uint8(v)
	}

	for y := 0; y < height; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+width]
		for i, v := range row {
			row[i] = lut[v]
		}
	}
}
