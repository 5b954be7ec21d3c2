package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"jpegfit/internal/planner"
	"jpegfit/internal/workers"
)

const (
	EnvPrefix = "JPEGFIT"

	DefaultMaxSizeMB    = 7.5
	DefaultMaxDimension = 7500
	// AutoWorkers sizes the pool from the available CPUs.
	AutoWorkers = -1

	EngineAuto    = "auto"
	EngineImaging = "imaging"
	EngineVips    = "vips"
)

type Config struct {
	InputDir     string
	OutputDir    string
	MaxSizeMB    float64
	MaxDimension int
	// Workers bounds concurrent jobs; 0 starts one goroutine per file.
	Workers     int
	Engine      string
	LogLevel    string
	LogFormat   string
	MetricsFile string
	NoTUI       bool
}

// MaxBytes is the byte budget derived from MaxSizeMB.
func (c Config) MaxBytes() int64 {
	return planner.MaxBytesFromMB(c.MaxSizeMB)
}

func (c Config) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("input folder must be set")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output folder must be set")
	}
	if c.MaxSizeMB <= 0 || c.MaxBytes() <= 0 {
		return fmt.Errorf("max-size-mb must be positive, got %v", c.MaxSizeMB)
	}
	if c.MaxDimension <= 0 {
		return fmt.Errorf("max-dimension must be positive, got %d", c.MaxDimension)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be zero or positive, got %d", c.Workers)
	}
	switch c.Engine {
	case EngineAuto, EngineImaging, EngineVips:
	default:
		return fmt.Errorf("unknown engine %q (want auto, imaging or vips)", c.Engine)
	}
	return nil
}

// baseDir is where the default ToConvert and Converted folders live: next to
// the executable, falling back to the working directory.
func baseDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// RegisterFlags declares every setting on fs with its default.
func RegisterFlags(fs *pflag.FlagSet) {
	base := baseDir()
	fs.StringP("input", "i", filepath.Join(base, "ToConvert"), "folder holding the images to convert")
	fs.StringP("output", "o", filepath.Join(base, "Converted"), "folder receiving one timestamped subfolder per run")
	fs.Float64("max-size-mb", DefaultMaxSizeMB, "maximum output size in megabytes")
	fs.Int("max-dimension", DefaultMaxDimension, "maximum output width and height in pixels")
	fs.IntP("workers", "w", AutoWorkers, "concurrent conversions (-1 = one per CPU, 0 = one per file)")
	fs.String("engine", EngineAuto, "image engine: auto, imaging or vips")
	fs.String("log-level", "warn", "log level: debug, info, warn or error")
	fs.String("log-format", "console", "log format: console or json")
	fs.String("metrics-file", "", "write Prometheus textfile metrics to this path")
	fs.Bool("no-tui", false, "plain progress output even on a terminal")
}

// Load resolves settings from flags, JPEGFIT_* environment variables and the
// registered defaults, in that order of precedence.
func Load(v *viper.Viper, fs *pflag.FlagSet) (Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, err
	}

	cfg := Config{
		InputDir:     v.GetString("input"),
		OutputDir:    v.GetString("output"),
		MaxSizeMB:    v.GetFloat64("max-size-mb"),
		MaxDimension: v.GetInt("max-dimension"),
		Workers:      v.GetInt("workers"),
		Engine:       strings.ToLower(v.GetString("engine")),
		LogLevel:     v.GetString("log-level"),
		LogFormat:    v.GetString("log-format"),
		MetricsFile:  v.GetString("metrics-file"),
		NoTUI:        v.GetBool("no-tui"),
	}
	if cfg.Workers == AutoWorkers {
		cfg.Workers = workers.Default()
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
