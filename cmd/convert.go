package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"jpegfit/internal/batch"
	"jpegfit/internal/codec"
	"jpegfit/internal/config"
	"jpegfit/internal/convert"
	"jpegfit/internal/metrics"
	"jpegfit/internal/scan"
	"jpegfit/internal/tui"
)

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	engine, shutdown, err := openEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer shutdown()

	tty := !cfg.NoTUI && term.IsTerminal(int(os.Stdout.Fd()))
	return runConvert(cmd.Context(), cfg, convertEnv{
		out:    cmd.OutOrStdout(),
		logger: logger,
		engine: engine,
		tty:    tty,
		now:    time.Now,
	})
}

type convertEnv struct {
	out    io.Writer
	logger *zap.Logger
	engine codec.Engine
	tty    bool
	now    func() time.Time
}

func runConvert(ctx context.Context, cfg config.Config, env convertEnv) error {
	out := env.out

	created, err := scan.EnsureInput(cfg.InputDir)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(out, "'%s' folder does not exist, it has just been created.\n", cfg.InputDir)
		fmt.Fprintln(out, "Place your images in this folder and run the program again.")
		return nil
	}

	entries, err := scan.CountEntries(cfg.InputDir)
	if err != nil {
		return err
	}
	files, err := scan.List(cfg.InputDir)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, tui.RenderListing(entries, files))

	if len(files) == 0 {
		fmt.Fprintf(out, "No image files found in '%s' folder.\n", cfg.InputDir)
		return nil
	}

	started := env.now()
	session, err := scan.CreateSession(cfg.OutputDir, started)
	if err != nil {
		return err
	}
	env.logger.Info("starting conversion",
		zap.Int("files", len(files)),
		zap.String("session", session),
		zap.String("engine", env.engine.Name()),
		zap.Int("workers", cfg.Workers),
	)

	conv := convert.New(env.engine, session, cfg.MaxBytes(), cfg.MaxDimension, env.logger)

	updates := make(chan batch.ProgressUpdate, 64)
	uiDone := make(chan struct{})
	if env.tty {
		program := tea.NewProgram(tui.NewModel(updates),
			tea.WithOutput(out),
			tea.WithInput(nil),
			tea.WithoutSignalHandler(),
		)
		go func() {
			if _, err := program.Run(); err != nil {
				env.logger.Warn("progress display stopped", zap.Error(err))
			}
			// Keep the collector unblocked if the display quit early.
			for range updates {
			}
			close(uiDone)
		}()
	} else {
		fmt.Fprintln(out, "Converting...")
		renderer := tui.NewLineRenderer(out)
		go func() {
			renderer.Run(updates)
			close(uiDone)
		}()
	}

	summary, results, runErr := batch.Run(ctx, files, batch.Options{
		Workers:   cfg.Workers,
		Converter: conv,
		Logger:    env.logger,
	}, updates)
	close(updates)
	<-uiDone

	elapsed := env.now().Sub(started)
	if cfg.MetricsFile != "" {
		rec := metrics.NewRecorder()
		rec.Observe(results, elapsed, env.now())
		if err := rec.WriteTextfile(cfg.MetricsFile); err != nil {
			env.logger.Warn("could not write metrics", zap.String("path", cfg.MetricsFile), zap.Error(err))
		}
	}
	if runErr != nil {
		return fmt.Errorf("conversion interrupted after %d of %d files: %w", summary.Completed, summary.Total, runErr)
	}

	fmt.Fprintln(out, "Conversion completed!")
	fmt.Fprintln(out, tui.RenderSummary([]tui.SummaryRow{
		{Label: "Files processed", Value: fmt.Sprintf("%d", summary.Completed)},
		{Label: "Copied unchanged", Value: fmt.Sprintf("%d", summary.Copied)},
		{Label: "Re-encoded", Value: fmt.Sprintf("%d", summary.Encoded)},
		{Label: "Failed", Value: fmt.Sprintf("%d", summary.Failed)},
		{Label: "Input size", Value: tui.FormatBytes(summary.BytesIn)},
		{Label: "Output size", Value: tui.FormatBytes(summary.BytesOut)},
	}))

	overBudget := 0
	for _, res := range results {
		if res.Err == nil && res.Outcome.Action == convert.ActionEncoded && !res.Outcome.Plan.BudgetMet {
			overBudget++
		}
	}
	if overBudget > 0 {
		fmt.Fprintln(out, tui.RenderNotice(fmt.Sprintf("%d file(s) still exceed %s at the lowest quality.", overBudget, tui.FormatBytes(cfg.MaxBytes()))))
	}

	outPath := session
	if abs, absErr := filepath.Abs(session); absErr == nil {
		outPath = abs
	}
	fmt.Fprintf(out, "The converted images have been placed in the '%s' folder.\n", outPath)

	if failed := batch.Failures(results); len(failed) > 0 {
		fmt.Fprintln(out, tui.RenderFailures(failed))
		return fmt.Errorf("%w: %d of %d", errFailures, len(failed), summary.Total)
	}
	return nil
}
