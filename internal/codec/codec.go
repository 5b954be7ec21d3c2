package codec

import (
	"errors"

	"jpegfit/pkg/imgutil"
)

var (
	// ErrUnsupported is returned when no decoder understands a file.
	ErrUnsupported = errors.New("unsupported image format")
	// ErrNoPreview is returned when a raw file has no embedded JPEG preview.
	ErrNoPreview = errors.New("no embedded preview")
)

// Info is what can be learned about a file without keeping its pixels.
type Info struct {
	Width  int
	Height int
	Size   int64
	Kind   imgutil.Kind
}

// Image is a decoded, mutable working copy of one input file.
type Image interface {
	Width() int
	Height() int
	// Fit shrinks the image so both sides are at most maxDimension,
	// preserving aspect ratio. Images already inside the bound are left
	// untouched.
	Fit(maxDimension int) error
	// EncodeJPEG returns the image encoded as JPEG at quality (1-100). The
	// working copy is not modified.
	EncodeJPEG(quality int) ([]byte, error)
	Close()
}

// Engine opens files into Images.
type Engine interface {
	Name() string
	Probe(path string) (Info, error)
	Open(path string) (Image, error)
}

// FitDimensions returns the largest size with the aspect ratio of w x h that
// fits inside maxDimension x maxDimension. Sizes already inside the bound are
// returned unchanged.
func FitDimensions(w, h, maxDimension int) (int, int) {
	if w <= maxDimension && h <= maxDimension {
		return w, h
	}
	if w >= h {
		nh := int(float64(h)*float64(maxDimension)/float64(w) + 0.5)
		if nh < 1 {
			nh = 1
		}
		return maxDimension, nh
	}
	nw := int(float64(w)*float64(maxDimension)/float64(h) + 0.5)
	if nw < 1 {
		nw = 1
	}
	return nw, maxDimension
}
