package analyzer

import (
	"image"

	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
)

// Kernel is a rectangular structuring element for morphological filtering.
// Every covered pixel participates in the min or max.
type Kernel struct {
	Width  int
	Height int
}

// DefaultKernel returns the conventional 5x5 structuring element.
func DefaultKernel() Kernel {
	return Kernel{Width: 5, Height: 5}
}

// Erode applies grayscale erosion: each output pixel becomes the minimum
// over the kernel window centered on it. Windows are clipped at the frame
// border. The input frame is never modified.
func Erode(gray *image.Gray, kernel Kernel, iterations int) (*image.Gray, error) {
	return morph(gray, kernel, iterations, true)
}

// Dilate applies grayscale dilation, the maximum counterpart of Erode.
func Dilate(gray *image.Gray, kernel Kernel, iterations int) (*image.Gray, error) {
	return morph(gray, kernel, iterations, false)
}

// Opening erodes then dilates, suppressing bright speckle smaller than the
// structuring element. erodeCount and dilateCount run in that order.
func Opening(gray *image.Gray, erodeCount, dilateCount int, kernel Kernel) (*image.Gray, error) {
	eroded, err := Erode(gray, kernel, erodeCount)
	if err != nil {
		return nil, err
	}
	return Dilate(eroded, kernel, dilateCount)
}

// Closing dilates then erodes, filling dark holes smaller than the
// structuring element. dilateCount runs before erodeCount.
func Closing(gray *image.Gray, erodeCount, dilateCount int, kernel Kernel) (*image.Gray, error) {
	dilated, err := Dilate(gray, kernel, dilateCount)
	if err != nil {
		return nil, err
	}
	return Erode(dilated, kernel, erodeCount)
}

func morph(gray *image.Gray, kernel Kernel, iterations int, takeMin bool) (*image.Gray, error) {
	if gray == nil {
		return nil, apperrors.NewInvalidImage("frame is nil", nil)
	}
	if kernel.Width <= 0 || kernel.Height <= 0 {
		return nil, apperrors.NewInvalidConfig("structuring element dimensions must be positive", nil)
	}
	if iterations < 0 {
		return nil, apperrors.NewInvalidConfig("iterations must be non-negative", nil)
	}

	src := toGray(gray)
	if iterations == 0 {
		return src, nil
	}

	// Anchor at the element center, biased up-left for even extents.
	offX := (kernel.Width - 1) / 2
	offY := (kernel.Height - 1) / 2
	width, height := src.Bounds().Dx(), src.Bounds().Dy()

	for it := 0; it < iterations; it++ {
		dst := image.NewGray(src.Bounds())
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				x0 := max(0, x-offX)
				x1 := min(width, x-offX+kernel.Width)
				y0 := max(0, y-offY)
				y1 := min(height, y-offY+kernel.Height)

				best := src.Pix[y0*src.Stride+x0]
				for wy := y0; wy < y1; wy++ {
					row := src.Pix[wy*src.Stride+x0 : wy*src.Stride+x1]
					for _, v := range row {
						if takeMin {
							if v < best {
								best = v
							}
						} else if v > best {
							best = v
						}
					}
				}
				dst.Pix[y*dst.Stride+x] = best
			}
		}
		src = dst
	}
	return src, nil
}
