package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jpegfit/internal/codec"
	"jpegfit/internal/config"
	"jpegfit/internal/logging"
	"jpegfit/internal/workers"
)

var rootCmd = &cobra.Command{
	Use:   "jpegfit",
	Short: "jpegfit - shrink a folder of photos into size-capped JPEGs",
	Long: "jpegfit converts every image in the input folder (JPEG, PNG, TIFF and camera raw files)\n" +
		"into a JPEG that fits the size and dimension limits. Files already within the limits are\n" +
		"copied unchanged. Each run writes into a new timestamped folder under the output folder.",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

// errFailures signals a completed batch with failed files; the details were
// already printed.
var errFailures = errors.New("some files could not be converted")

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	config.RegisterFlags(rootCmd.PersistentFlags())
}

// setup loads configuration and the logger for a command invocation.
func setup(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(viper.New(), cmd.Flags())
	if err != nil {
		return cfg, nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

// openEngine picks the image engine. auto prefers libvips when the binary
// was built with it and the library starts, and uses the pure-Go engine
// otherwise.
func openEngine(cfg config.Config, logger *zap.Logger) (codec.Engine, func(), error) {
	noop := func() {}
	threads := workers.EngineThreads(cfg.Workers)
	switch cfg.Engine {
	case config.EngineImaging:
		return codec.NewImagingEngine(), noop, nil
	case config.EngineVips:
		return openVips(logger, threads)
	default:
		engine, shutdown, err := openVips(logger, threads)
		if err != nil {
			logger.Info("libvips unavailable, using pure-Go engine", zap.Error(err))
			return codec.NewImagingEngine(), noop, nil
		}
		return engine, shutdown, nil
	}
}
