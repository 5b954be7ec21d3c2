package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"os"
	"sort"

	"github.com/disintegration/imaging"
	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"

	"jpegfit/pkg/imgutil"
)

const (
	tagCompression     = 0x0103
	tagPhotometric     = 0x0106
	tagStripOffsets    = 0x0111
	tagOrientation     = 0x0112
	tagStripByteCounts = 0x0117
	tagSubIFDs         = 0x014a
	tagJPEGOffset      = 0x0201
	tagJPEGLength      = 0x0202

	compressionOldJPEG = 6
	compressionJPEG    = 7

	photometricCFA       = 32803
	photometricLinearRaw = 34892

	maxSubIFDs = 16
)

type previewRef struct {
	offset int64
	length int64
}

// ifdImage holds the tags of one IFD that locate image data.
type ifdImage struct {
	compression  int64
	photometric  int64
	stripOffsets []int64
	stripCounts  []int64
	jpegOffset   int64
	jpegLength   int64
}

// candidates lists the JPEG streams this IFD points at. Strips count only
// when JPEG-compressed and not sensor data.
func (d *ifdImage) candidates() []previewRef {
	var refs []previewRef
	if d.jpegOffset > 0 && d.jpegLength > 0 {
		refs = append(refs, previewRef{offset: d.jpegOffset, length: d.jpegLength})
	}
	if d.compression != compressionOldJPEG && d.compression != compressionJPEG {
		return refs
	}
	if d.photometric == photometricCFA || d.photometric == photometricLinearRaw {
		return refs
	}
	if ref, ok := stripSpan(d.stripOffsets, d.stripCounts); ok {
		refs = append(refs, ref)
	}
	return refs
}

// stripSpan joins strips into one stream; they must be contiguous.
func stripSpan(offsets, counts []int64) (previewRef, bool) {
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return previewRef{}, false
	}
	ref := previewRef{offset: offsets[0]}
	for i := range offsets {
		if offsets[i] != ref.offset+ref.length {
			return previewRef{}, false
		}
		ref.length += counts[i]
	}
	return ref, true
}

// rawScan gathers image locations across the IFD chain and any SubIFDs.
type rawScan struct {
	ie          *exif.IfdEnumerate
	pass        int
	ifds        map[string]*ifdImage
	order       []string
	subIFDs     []uint32
	orientation int
}

func newRawScan(rs io.ReadSeeker, order binary.ByteOrder) (*rawScan, error) {
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, err
	}
	ti := exif.NewTagIndex()
	ti.SetUniversalSearch(true)

	return &rawScan{
		ie:          exif.NewIfdEnumerate(im, ti, exif.NewExifReadSeeker(rs), order),
		ifds:        map[string]*ifdImage{},
		orientation: 1,
	}, nil
}

func (s *rawScan) run(firstIFD uint32) error {
	if _, err := s.ie.Scan(exifcommon.IfdStandardIfdIdentity, firstIFD, s.visit, nil); err != nil {
		return err
	}

	seen := map[uint32]bool{firstIFD: true}
	for i := 0; i < len(s.subIFDs) && i < maxSubIFDs; i++ {
		offset := s.subIFDs[i]
		if offset == 0 || seen[offset] {
			continue
		}
		seen[offset] = true
		s.pass++
		// A broken SubIFD leaves the previews already found usable.
		_, _ = s.ie.Scan(exifcommon.IfdStandardIfdIdentity, offset, s.visit, nil)
	}
	return nil
}

func (s *rawScan) visit(ite *exif.IfdTagEntry) error {
	switch ite.TagId() {
	case tagCompression, tagPhotometric, tagStripOffsets, tagStripByteCounts,
		tagOrientation, tagSubIFDs, tagJPEGOffset, tagJPEGLength:
	default:
		return nil
	}

	raw, err := ite.Value()
	if err != nil {
		return nil
	}
	values := uints(raw)
	if len(values) == 0 {
		return nil
	}

	switch ite.TagId() {
	case tagOrientation:
		if s.pass == 0 && ite.IfdPath() == "IFD" {
			s.orientation = int(values[0])
		}
		return nil
	case tagSubIFDs:
		for _, v := range values {
			s.subIFDs = append(s.subIFDs, uint32(v))
		}
		return nil
	}

	key := fmt.Sprintf("%d/%s", s.pass, ite.IfdPath())
	d := s.ifds[key]
	if d == nil {
		d = &ifdImage{}
		s.ifds[key] = d
		s.order = append(s.order, key)
	}
	switch ite.TagId() {
	case tagCompression:
		d.compression = values[0]
	case tagPhotometric:
		d.photometric = values[0]
	case tagStripOffsets:
		d.stripOffsets = values
	case tagStripByteCounts:
		d.stripCounts = values
	case tagJPEGOffset:
		d.jpegOffset = values[0]
	case tagJPEGLength:
		d.jpegLength = values[0]
	}
	return nil
}

// previews returns the distinct in-bounds candidates, largest first.
func (s *rawScan) previews(size int64) []previewRef {
	seen := map[previewRef]bool{}
	var refs []previewRef
	for _, key := range s.order {
		for _, ref := range s.ifds[key].candidates() {
			if ref.offset <= 0 || ref.length <= 0 || ref.offset+ref.length > size || seen[ref] {
				continue
			}
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].length > refs[j].length })
	return refs
}

// tiffView presents a raw file with its vendor TIFF magic replaced by the
// standard one.
type tiffView struct {
	r     io.ReaderAt
	magic []byte
}

func (v tiffView) ReadAt(p []byte, off int64) (int, error) {
	n, err := v.r.ReadAt(p, off)
	for i := 0; i < n && off+int64(i) < int64(len(v.magic)); i++ {
		p[i] = v.magic[off+int64(i)]
	}
	return n, err
}

// RawPreview decodes the largest JPEG embedded in a TIFF-structured raw file
// (CR2, NEF, ARW, DNG, PEF, ORF, RW2, ...). It looks at JPEG streams named by
// JPEGInterchangeFormat and at JPEG-compressed strips, in the IFD chain and
// in SubIFDs. Offsets are relative to the TIFF header at the start of the
// file. Candidates that fail to decode are skipped.
func RawPreview(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}

	header := make([]byte, 8)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoPreview, path, err)
	}
	magic, ok := imgutil.TIFFMagic(header)
	if !ok {
		return nil, fmt.Errorf("%w: %s: not a TIFF container", ErrNoPreview, path)
	}
	eh, err := exif.ParseExifHeader(append(magic, header[4:]...))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoPreview, path, err)
	}

	scan, err := newRawScan(io.NewSectionReader(tiffView{r: f, magic: magic}, 0, st.Size()), eh.ByteOrder)
	if err != nil {
		return nil, err
	}
	if err := scan.run(eh.FirstIfdOffset); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoPreview, path, err)
	}

	lastErr := fmt.Errorf("%w: %s", ErrNoPreview, path)
	for _, ref := range scan.previews(st.Size()) {
		img, err := decodePreview(f, ref)
		if err != nil {
			lastErr = fmt.Errorf("%w: %s: %v", ErrNoPreview, path, err)
			continue
		}
		return orient(img, scan.orientation), nil
	}
	return nil, lastErr
}

func decodePreview(r io.ReaderAt, ref previewRef) (image.Image, error) {
	buf := make([]byte, ref.length)
	if _, err := r.ReadAt(buf, ref.offset); err != nil {
		return nil, fmt.Errorf("read preview: %w", err)
	}
	if kind, err := imgutil.DetectHeader(buf); err != nil || kind != imgutil.KindJPEG {
		return nil, fmt.Errorf("preview at %d is not a JPEG", ref.offset)
	}
	img, err := imaging.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decode preview at %d: %w", ref.offset, err)
	}
	return img, nil
}

func uints(value interface{}) []int64 {
	var out []int64
	switch v := value.(type) {
	case []uint32:
		for _, x := range v {
			out = append(out, int64(x))
		}
	case []uint16:
		for _, x := range v {
			out = append(out, int64(x))
		}
	case uint32:
		out = append(out, int64(v))
	case uint16:
		out = append(out, int64(v))
	}
	return out
}

func orient(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
