//go:build cgo && !novips

package vipscodec

import (
	"fmt"
	"os"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"jpegfit/internal/codec"
	"jpegfit/internal/logging"
	"jpegfit/pkg/imgutil"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
)

// Init starts libvips once per process and routes its log output through
// logger. Safe to call repeatedly.
func Init(logger *zap.Logger, concurrency int) (err error) {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}
	if logger == nil {
		logger = logging.Nop()
	}

	vipsLogLevel := vips.LogLevelWarning
	if logger.Core().Enabled(zapcore.DebugLevel) {
		vipsLogLevel = vips.LogLevelInfo
	} else if !logger.Core().Enabled(zapcore.WarnLevel) {
		vipsLogLevel = vips.LogLevelError
	}

	log := logger.Named("vips")
	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			log.Error(msg, zap.String("domain", domain))
		case vips.LogLevelWarning:
			log.Warn(msg, zap.String("domain", domain))
		default:
			log.Debug(msg, zap.String("domain", domain))
		}
	}, vipsLogLevel)

	if concurrency < 1 {
		concurrency = 1
	}

	// vips.Startup panics when the shared library cannot initialize.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("libvips startup: %v", r)
		}
	}()
	vips.Startup(&vips.Config{
		ConcurrencyLevel: concurrency,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsInitialized = true
	logger.Debug("libvips initialized", zap.String("version", vips.Version))
	return nil
}

// Shutdown releases libvips. It cannot be restarted afterwards.
func Shutdown() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
	}
}

func Available() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsInitialized
}

// Engine decodes through libvips, which reaches raw camera formats through
// its ImageMagick and libraw loaders when they are compiled in.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Name() string { return "vips" }

func (e *Engine) Probe(path string) (codec.Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return codec.Info{}, err
	}
	info := codec.Info{Size: st.Size(), Kind: imgutil.KindForPath(path)}

	ref, err := e.load(path)
	if err != nil {
		return info, err
	}
	defer ref.Close()

	info.Width, info.Height = ref.Width(), ref.Height()
	return info, nil
}

func (e *Engine) Open(path string) (codec.Image, error) {
	ref, err := e.load(path)
	if err != nil {
		return nil, err
	}
	return &vipsImage{ref: ref}, nil
}

func (e *Engine) load(path string) (*vips.ImageRef, error) {
	if !Available() {
		return nil, fmt.Errorf("libvips not initialized")
	}
	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", codec.ErrUnsupported, path, err)
	}
	return ref, nil
}

type vipsImage struct {
	ref *vips.ImageRef
}

func (i *vipsImage) Width() int  { return i.ref.Width() }
func (i *vipsImage) Height() int { return i.ref.Height() }

func (i *vipsImage) Fit(maxDimension int) error {
	if maxDimension <= 0 {
		return fmt.Errorf("invalid max dimension %d", maxDimension)
	}
	w, h := codec.FitDimensions(i.Width(), i.Height(), maxDimension)
	if w == i.Width() && h == i.Height() {
		return nil
	}
	if err := i.ref.Thumbnail(w, h, vips.InterestingNone); err != nil {
		return fmt.Errorf("vips resize: %w", err)
	}
	return nil
}

func (i *vipsImage) EncodeJPEG(quality int) ([]byte, error) {
	params := vips.NewJpegExportParams()
	params.Quality = quality
	buf, _, err := i.ref.ExportJpeg(params)
	if err != nil {
		return nil, fmt.Errorf("vips export: %w", err)
	}
	return buf, nil
}

func (i *vipsImage) Close() {
	if i.ref != nil {
		i.ref.Close()
		i.ref = nil
	}
}
