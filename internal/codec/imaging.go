package codec

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"

	// Image format decoders
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/tiff" // TIFF support for DecodeConfig

	"jpegfit/pkg/imgutil"
)

// ImagingEngine decodes with the pure-Go image stack. Raw camera files are
// served from their embedded JPEG preview.
type ImagingEngine struct{}

func NewImagingEngine() *ImagingEngine {
	return &ImagingEngine{}
}

func (e *ImagingEngine) Name() string { return "imaging" }

func (e *ImagingEngine) Probe(path string) (Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Info{}, err
	}
	info := Info{Size: st.Size(), Kind: imgutil.KindForPath(path)}

	if info.Kind == imgutil.KindRaw {
		img, err := RawPreview(path)
		if err != nil {
			return info, err
		}
		b := img.Bounds()
		info.Width, info.Height = b.Dx(), b.Dy()
		return info, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return info, err
	}
	defer f.Close()

	if kind, err := imgutil.SniffReader(f); err == nil && kind != imgutil.KindUnknown {
		info.Kind = kind
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return info, err
	}

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		// Files with the raster extension but a raw body (DNG saved as .tif).
		if info.Kind == imgutil.KindTIFF {
			if img, rawErr := RawPreview(path); rawErr == nil {
				b := img.Bounds()
				info.Width, info.Height = b.Dx(), b.Dy()
				return info, nil
			}
		}
		return info, fmt.Errorf("%w: %s: %v", ErrUnsupported, path, err)
	}

	// Orientation is ignored; the bound applies to both axes alike.
	info.Width, info.Height = cfg.Width, cfg.Height
	return info, nil
}

func (e *ImagingEngine) Open(path string) (Image, error) {
	if imgutil.KindForPath(path) == imgutil.KindRaw {
		img, err := RawPreview(path)
		if err != nil {
			return nil, err
		}
		return NewImage(img), nil
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		if kind, sniffErr := imgutil.SniffFile(path); sniffErr == nil && kind == imgutil.KindTIFF {
			if preview, rawErr := RawPreview(path); rawErr == nil {
				return NewImage(preview), nil
			}
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupported, path, err)
	}
	return NewImage(img), nil
}

type imagingImage struct {
	img image.Image
}

// NewImage wraps an already decoded image.
func NewImage(img image.Image) Image {
	return &imagingImage{img: img}
}

func (i *imagingImage) Width() int  { return i.img.Bounds().Dx() }
func (i *imagingImage) Height() int { return i.img.Bounds().Dy() }

func (i *imagingImage) Fit(maxDimension int) error {
	if maxDimension <= 0 {
		return fmt.Errorf("invalid max dimension %d", maxDimension)
	}
	w, h := FitDimensions(i.Width(), i.Height(), maxDimension)
	if w == i.Width() && h == i.Height() {
		return nil
	}
	i.img = imaging.Resize(i.img, w, h, imaging.Lanczos)
	return nil
}

func (i *imagingImage) EncodeJPEG(quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, i.img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (i *imagingImage) Close() {
	i.img = nil
}
