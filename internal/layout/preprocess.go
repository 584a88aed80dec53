package layout

import (
	"image"

	"github.com/disintegration/imaging"
)

// DefaultThreshold splits the stretched luminance into ink and paper.
const DefaultThreshold = 150

// Preprocess converts img to grayscale, stretches its luminance to the full
// range and binarizes it: values below threshold become 0, the rest 255.
func Preprocess(img image.Image, threshold int) *image.Gray {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	lo, hi := uint8(255), uint8(0)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			v := gray.Pix[y*gray.Stride+x*4]
			out.Pix[y*out.Stride+x] = v
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	for i, v := range out.Pix {
		out.Pix[i] = binarize(stretch(v, lo, hi), threshold)
	}
	return out
}

// stretch maps [lo, hi] linearly onto [0, 255]. A flat image is unchanged.
func stretch(v, lo, hi uint8) uint8 {
	if hi <= lo {
		return v
	}
	return uint8((int(v) - int(lo)) * 255 / (int(hi) - int(lo)))
}

func binarize(v uint8, threshold int) uint8 {
	if int(v) < threshold {
		return 0
	}
	return 255
}
