package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"jpegfit/pkg/imgutil"
)

func TestFitDimensions(t *testing.T) {
	tests := []struct {
		name         string
		w, h, max    int
		wantW, wantH int
	}{
		{"inside", 4000, 3000, 7500, 4000, 3000},
		{"exact", 7500, 7500, 7500, 7500, 7500},
		{"landscape", 9000, 6000, 7500, 7500, 5000},
		{"portrait", 6000, 9000, 7500, 5000, 7500},
		{"square", 8000, 8000, 7500, 7500, 7500},
		{"sliver", 100000, 1, 100, 100, 1},
		{"rounding", 1001, 667, 500, 500, 333},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := FitDimensions(tt.w, tt.h, tt.max)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("FitDimensions(%d, %d, %d) = %dx%d, want %dx%d", tt.w, tt.h, tt.max, w, h, tt.wantW, tt.wantH)
			}
			if w > tt.max || h > tt.max {
				t.Errorf("result %dx%d exceeds bound %d", w, h, tt.max)
			}
		})
	}
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 13), B: uint8((x ^ y) * 3), A: 0xff})
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestImagingEngineProbeAndOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grad.png")
	writePNG(t, path, gradient(120, 80))

	engine := NewImagingEngine()
	info, err := engine.Probe(path)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if info.Width != 120 || info.Height != 80 || info.Kind != imgutil.KindPNG || info.Size <= 0 {
		t.Fatalf("unexpected info %+v", info)
	}

	img, err := engine.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer img.Close()

	if err := img.Fit(60); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if img.Width() != 60 || img.Height() != 40 {
		t.Fatalf("Fit produced %dx%d, want 60x40", img.Width(), img.Height())
	}

	hi, err := img.EncodeJPEG(100)
	if err != nil {
		t.Fatalf("EncodeJPEG(100): %v", err)
	}
	lo, err := img.EncodeJPEG(1)
	if err != nil {
		t.Fatalf("EncodeJPEG(1): %v", err)
	}
	if len(lo) >= len(hi) {
		t.Errorf("quality 1 (%d bytes) not smaller than quality 100 (%d bytes)", len(lo), len(hi))
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(lo))
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	if cfg.Width != 60 || cfg.Height != 40 {
		t.Errorf("encoded %dx%d, want 60x40", cfg.Width, cfg.Height)
	}
}

func TestImagingEngineFitNoop(t *testing.T) {
	img := NewImage(gradient(30, 20))
	if err := img.Fit(30); err != nil {
		t.Fatal(err)
	}
	if img.Width() != 30 || img.Height() != 20 {
		t.Fatalf("Fit changed an image inside the bound: %dx%d", img.Width(), img.Height())
	}
	if err := img.Fit(0); err == nil {
		t.Fatal("expected error for zero bound")
	}
}

func TestImagingEngineRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jpg")
	if err := os.WriteFile(path, []byte("definitely not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	engine := NewImagingEngine()
	if _, err := engine.Open(path); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Open error = %v, want ErrUnsupported", err)
	}
	if _, err := engine.Probe(path); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Probe error = %v, want ErrUnsupported", err)
	}
}

type tiffEntry struct {
	tag   uint16
	typ   uint16
	value uint32
	blob  int  // 1-based blob index; value becomes the blob offset
	size  int  // 1-based blob index; value becomes the blob length
	sub   bool // value becomes the SubIFD offset
}

func short(tag, v uint16) tiffEntry { return tiffEntry{tag: tag, typ: 3, value: uint32(v)} }
func blobAt(tag uint16, i int) tiffEntry { return tiffEntry{tag: tag, typ: 4, blob: i + 1} }
func blobLen(tag uint16, i int) tiffEntry { return tiffEntry{tag: tag, typ: 4, size: i + 1} }
func subIFD() tiffEntry { return tiffEntry{tag: tagSubIFDs, typ: 4, sub: true} }

// tiffFixture lays out a little-endian TIFF: the chain IFDs linked in order,
// an optional SubIFD, then the blobs.
type tiffFixture struct {
	magic []byte
	chain [][]tiffEntry
	sub   []tiffEntry
	blobs [][]byte
}

func (fx tiffFixture) write(t *testing.T, path string) {
	t.Helper()

	ifds := append([][]tiffEntry{}, fx.chain...)
	if fx.sub != nil {
		ifds = append(ifds, fx.sub)
	}
	offsets := make([]uint32, len(ifds))
	pos := uint32(8)
	for i, ifd := range ifds {
		offsets[i] = pos
		pos += uint32(2 + 12*len(ifd) + 4)
	}
	blobOffsets := make([]uint32, len(fx.blobs))
	for i, b := range fx.blobs {
		blobOffsets[i] = pos
		pos += uint32(len(b))
	}

	magic := fx.magic
	if magic == nil {
		magic = []byte{0x49, 0x49, 0x2a, 0x00}
	}

	var buf bytes.Buffer
	le := binary.LittleEndian
	buf.Write(magic)
	_ = binary.Write(&buf, le, offsets[0])
	for i, ifd := range ifds {
		_ = binary.Write(&buf, le, uint16(len(ifd)))
		for _, e := range ifd {
			v := e.value
			switch {
			case e.blob > 0:
				v = blobOffsets[e.blob-1]
			case e.size > 0:
				v = uint32(len(fx.blobs[e.size-1]))
			case e.sub:
				v = offsets[len(ifds)-1]
			}
			_ = binary.Write(&buf, le, e.tag)
			_ = binary.Write(&buf, le, e.typ)
			_ = binary.Write(&buf, le, uint32(1))
			if e.typ == 3 {
				_ = binary.Write(&buf, le, uint16(v))
				_ = binary.Write(&buf, le, uint16(0))
			} else {
				_ = binary.Write(&buf, le, v)
			}
		}
		next := uint32(0)
		if i+1 < len(fx.chain) {
			next = offsets[i+1]
		}
		_ = binary.Write(&buf, le, next)
	}
	if uint32(buf.Len()) != blobOffsetsStart(offsets, ifds) {
		t.Fatalf("layout mismatch at %d", buf.Len())
	}
	for _, b := range fx.blobs {
		buf.Write(b)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func blobOffsetsStart(offsets []uint32, ifds [][]tiffEntry) uint32 {
	last := len(ifds) - 1
	return offsets[last] + uint32(2+12*len(ifds[last])+4)
}

func jpegBlob(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// thumbnailOnly is a raw whose only image is an IFD1 JPEG.
func thumbnailOnly(t *testing.T, preview image.Image, orientation uint16) tiffFixture {
	return tiffFixture{
		chain: [][]tiffEntry{
			{short(tagOrientation, orientation)},
			{blobAt(tagJPEGOffset, 0), blobLen(tagJPEGLength, 0)},
		},
		blobs: [][]byte{jpegBlob(t, preview)},
	}
}

// cr2Layout puts the full-size JPEG in IFD0 strips and a thumbnail in IFD1.
func cr2Layout(full, thumb []byte) tiffFixture {
	return tiffFixture{
		chain: [][]tiffEntry{
			{
				short(tagCompression, compressionOldJPEG),
				blobAt(tagStripOffsets, 0),
				short(tagOrientation, 1),
				blobLen(tagStripByteCounts, 0),
			},
			{blobAt(tagJPEGOffset, 1), blobLen(tagJPEGLength, 1)},
		},
		blobs: [][]byte{full, thumb},
	}
}

func assertBounds(t *testing.T, img image.Image, w, h int) {
	t.Helper()
	if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
		t.Fatalf("preview %dx%d, want %dx%d", b.Dx(), b.Dy(), w, h)
	}
}

func TestRawPreview(t *testing.T) {
	path := filepath.Join(t.TempDir(), "IMG_0001.NEF")
	thumbnailOnly(t, gradient(64, 48), 1).write(t, path)

	img, err := RawPreview(path)
	if err != nil {
		t.Fatalf("RawPreview: %v", err)
	}
	assertBounds(t, img, 64, 48)

	engine := NewImagingEngine()
	info, err := engine.Probe(path)
	if err != nil {
		t.Fatalf("Probe raw: %v", err)
	}
	if info.Kind != imgutil.KindRaw || info.Width != 64 {
		t.Fatalf("unexpected raw info %+v", info)
	}
}

func TestRawPreviewAppliesOrientation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotated.cr2")
	thumbnailOnly(t, gradient(64, 48), 6).write(t, path)

	img, err := RawPreview(path)
	if err != nil {
		t.Fatalf("RawPreview: %v", err)
	}
	assertBounds(t, img, 48, 64)
}

func TestRawPreviewPrefersFullSizeStrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "IMG_0002.CR2")
	cr2Layout(jpegBlob(t, gradient(640, 480)), jpegBlob(t, gradient(32, 24))).write(t, path)

	img, err := RawPreview(path)
	if err != nil {
		t.Fatalf("RawPreview: %v", err)
	}
	assertBounds(t, img, 640, 480)
}

func TestRawPreviewFollowsSubIFDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "DSC_0003.NEF")
	fx := tiffFixture{
		chain: [][]tiffEntry{
			{short(tagOrientation, 1), subIFD()},
			{blobAt(tagJPEGOffset, 1), blobLen(tagJPEGLength, 1)},
		},
		sub:   []tiffEntry{blobAt(tagJPEGOffset, 0), blobLen(tagJPEGLength, 0)},
		blobs: [][]byte{jpegBlob(t, gradient(320, 240)), jpegBlob(t, gradient(32, 24))},
	}
	fx.write(t, path)

	img, err := RawPreview(path)
	if err != nil {
		t.Fatalf("RawPreview: %v", err)
	}
	assertBounds(t, img, 320, 240)
}

func TestRawPreviewSkipsUndecodableCandidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "IMG_0004.CR2")
	broken := append([]byte{0xff, 0xd8, 0xff, 0xc3}, make([]byte, 8192)...)
	cr2Layout(broken, jpegBlob(t, gradient(32, 24))).write(t, path)

	img, err := RawPreview(path)
	if err != nil {
		t.Fatalf("RawPreview: %v", err)
	}
	assertBounds(t, img, 32, 24)
}

func TestRawPreviewVendorMagic(t *testing.T) {
	tests := []struct {
		name  string
		file  string
		magic []byte
	}{
		{"olympus iiro", "P1010001.ORF", []byte{0x49, 0x49, 0x52, 0x4f}},
		{"olympus iirs", "P1010002.ORF", []byte{0x49, 0x49, 0x52, 0x53}},
		{"panasonic", "P1000003.RW2", []byte{0x49, 0x49, 0x55, 0x00}},
	}

	full := jpegBlob(t, gradient(160, 120))
	thumb := jpegBlob(t, gradient(32, 24))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			fx := cr2Layout(full, thumb)
			fx.magic = tt.magic
			fx.write(t, path)

			img, err := RawPreview(path)
			if err != nil {
				t.Fatalf("RawPreview: %v", err)
			}
			assertBounds(t, img, 160, 120)

			info, err := NewImagingEngine().Probe(path)
			if err != nil {
				t.Fatalf("Probe: %v", err)
			}
			if info.Kind != imgutil.KindRaw || info.Width != 160 || info.Height != 120 {
				t.Fatalf("unexpected info %+v", info)
			}
		})
	}
}

func TestIFDImageCandidates(t *testing.T) {
	strips := func(d ifdImage) ifdImage {
		d.stripOffsets = []int64{100, 150}
		d.stripCounts = []int64{50, 25}
		return d
	}
	tests := []struct {
		name string
		ifd  ifdImage
		want []previewRef
	}{
		{"old jpeg strips", strips(ifdImage{compression: compressionOldJPEG}), []previewRef{{100, 75}}},
		{"jpeg strips", strips(ifdImage{compression: compressionJPEG, photometric: 6}), []previewRef{{100, 75}}},
		{"cfa sensor data", strips(ifdImage{compression: compressionJPEG, photometric: photometricCFA}), nil},
		{"linear raw", strips(ifdImage{compression: compressionJPEG, photometric: photometricLinearRaw}), nil},
		{"uncompressed", strips(ifdImage{compression: 1}), nil},
		{"interchange", ifdImage{jpegOffset: 10, jpegLength: 20}, []previewRef{{10, 20}}},
		{"gapped strips", ifdImage{compression: compressionOldJPEG, stripOffsets: []int64{100, 200}, stripCounts: []int64{50, 50}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.ifd.candidates()
			if len(got) != len(tt.want) {
				t.Fatalf("candidates() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("candidates()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRawPreviewRejectsNonTIFF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odd.raf")
	if err := os.WriteFile(path, []byte("FUJIFILMCCD-RAW 0201"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := RawPreview(path); !errors.Is(err, ErrNoPreview) {
		t.Fatalf("RawPreview error = %v, want ErrNoPreview", err)
	}
}
