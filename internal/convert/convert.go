package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"

	"jpegfit/internal/codec"
	"jpegfit/internal/logging"
	"jpegfit/internal/planner"
)

var (
	ErrDecode          = errors.New("decode failed")
	ErrEncode          = errors.New("encode failed")
	ErrWrite           = errors.New("write failed")
	ErrOutputCollision = errors.New("output name already used in this session")
)

type Action int

const (
	ActionNone Action = iota
	ActionCopied
	ActionEncoded
)

func (a Action) String() string {
	switch a {
	case ActionCopied:
		return "copied"
	case ActionEncoded:
		return "encoded"
	default:
		return "none"
	}
}

// Outcome describes the single terminal action taken for one input.
type Outcome struct {
	Action     Action
	OutputPath string
	InputSize  int64
	OutputSize int64
	Plan       planner.Plan
}

// Converter copies compliant files into OutputDir and re-encodes the rest.
// One Converter serves one session folder and is safe for concurrent use.
type Converter struct {
	Engine       codec.Engine
	OutputDir    string
	MaxBytes     int64
	MaxDimension int
	Logger       *zap.Logger

	mu     sync.Mutex
	claims map[string]string

	foldOnce sync.Once
	fold     bool
}

func New(engine codec.Engine, outputDir string, maxBytes int64, maxDimension int, logger *zap.Logger) *Converter {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Converter{
		Engine:       engine,
		OutputDir:    outputDir,
		MaxBytes:     maxBytes,
		MaxDimension: maxDimension,
		Logger:       logger,
		claims:       make(map[string]string),
	}
}

// OutputName is the file name an encoded input is written under.
func OutputName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".jpg"
}

func (c *Converter) Convert(ctx context.Context, path string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	info, err := c.Engine.Probe(path)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	out := Outcome{InputSize: info.Size}

	if !planner.NeedsConversion(info.Size, info.Width, info.Height, c.MaxBytes, c.MaxDimension) {
		dest, err := c.claim(filepath.Base(path), path)
		if err != nil {
			return out, err
		}
		n, err := copyFile(path, dest)
		if err != nil {
			return out, fmt.Errorf("%w: %v", ErrWrite, err)
		}
		c.Logger.Debug("copied",
			zap.String("file", filepath.Base(path)),
			zap.Int64("bytes", n),
			zap.Int("width", info.Width),
			zap.Int("height", info.Height),
		)
		out.Action = ActionCopied
		out.OutputPath = dest
		out.OutputSize = n
		return out, nil
	}

	img, err := c.Engine.Open(path)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer img.Close()

	plan, data, err := planner.Decide(img, c.MaxBytes, c.MaxDimension)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if !plan.BudgetMet {
		c.Logger.Warn("size budget not met at minimum quality",
			zap.String("file", filepath.Base(path)),
			zap.Int64("bytes", plan.Size),
			zap.Int64("budget", c.MaxBytes),
		)
	}

	dest, err := c.claim(OutputName(path), path)
	if err != nil {
		return out, err
	}
	if err := writeFile(dest, data, 0o644); err != nil {
		return out, fmt.Errorf("%w: %v", ErrWrite, err)
	}

	c.Logger.Debug("encoded",
		zap.String("file", filepath.Base(path)),
		zap.Int("quality", plan.Quality),
		zap.Bool("resized", plan.Resized),
		zap.Int("width", plan.Width),
		zap.Int("height", plan.Height),
		zap.Int64("bytes", plan.Size),
	)

	out.Action = ActionEncoded
	out.OutputPath = dest
	out.OutputSize = plan.Size
	out.Plan = plan
	return out, nil
}

// claim reserves name in the session folder for src. Names compare
// case-insensitively when the output folder does.
func (c *Converter) claim(name, src string) (string, error) {
	c.foldOnce.Do(func() { c.fold = foldsCase(c.OutputDir) })
	key := name
	if c.fold {
		key = strings.ToLower(name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.claims == nil {
		c.claims = make(map[string]string)
	}
	if owner, ok := c.claims[key]; ok {
		return "", fmt.Errorf("%w: %s (taken by %s)", ErrOutputCollision, name, filepath.Base(owner))
	}
	c.claims[key] = src
	return filepath.Join(c.OutputDir, name), nil
}

// foldsCase reports whether dir resolves file names case-insensitively,
// by looking up a scratch file under its upper-case name. The platform
// default applies when dir cannot be probed.
func foldsCase(dir string) bool {
	f, err := os.CreateTemp(dir, ".jpegfit-case-*")
	if err != nil {
		return platformFoldsCase()
	}
	name := f.Name()
	_ = f.Close()
	defer os.Remove(name)

	orig, err := os.Stat(name)
	if err != nil {
		return platformFoldsCase()
	}
	st, err := os.Stat(filepath.Join(dir, strings.ToUpper(filepath.Base(name))))
	return err == nil && os.SameFile(orig, st)
}

func platformFoldsCase() bool {
	return runtime.GOOS == "darwin" || runtime.GOOS == "windows"
}

func copyFile(src, dest string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	st, err := in.Stat()
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".jpegfit-*.tmp")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(st.Mode().Perm()); err != nil {
		_ = tmp.Close()
		return 0, err
	}

	n, err := io.Copy(tmp, in)
	if err != nil {
		_ = tmp.Close()
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}

	return n, replaceFile(tmp.Name(), dest)
}

func writeFile(dest string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".jpegfit-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return replaceFile(tmp.Name(), dest)
}

func replaceFile(tmpPath, destPath string) error {
	if err := os.Rename(tmpPath, destPath); err == nil {
		return nil
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tmpPath, destPath)
}
