package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"jpegfit/internal/convert"
	"jpegfit/internal/planner"
	"jpegfit/internal/tui"
)

var planCmd = &cobra.Command{
	Use:   "plan <file>",
	Short: "Show what a conversion would do to one file without writing anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
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

		info, err := engine.Probe(path)
		if err != nil {
			return fmt.Errorf("%w: %v", convert.ErrDecode, err)
		}

		rows := []tui.SummaryRow{
			{Label: "File", Value: filepath.Base(path)},
			{Label: "Format", Value: info.Kind.String()},
			{Label: "Size", Value: tui.FormatBytes(info.Size)},
			{Label: "Dimensions", Value: fmt.Sprintf("%dx%d", info.Width, info.Height)},
			{Label: "Engine", Value: engine.Name()},
		}

		if !planner.NeedsConversion(info.Size, info.Width, info.Height, cfg.MaxBytes(), cfg.MaxDimension) {
			rows = append(rows, tui.SummaryRow{Label: "Action", Value: "copy unchanged"})
			fmt.Fprintln(cmd.OutOrStdout(), tui.RenderSummary(rows))
			return nil
		}

		img, err := engine.Open(path)
		if err != nil {
			return fmt.Errorf("%w: %v", convert.ErrDecode, err)
		}
		defer img.Close()

		plan, _, err := planner.Decide(img, cfg.MaxBytes(), cfg.MaxDimension)
		if err != nil {
			return fmt.Errorf("%w: %v", convert.ErrEncode, err)
		}

		rows = append(rows,
			tui.SummaryRow{Label: "Action", Value: "re-encode as " + convert.OutputName(path)},
			tui.SummaryRow{Label: "Resized", Value: fmt.Sprintf("%t", plan.Resized)},
			tui.SummaryRow{Label: "Output dimensions", Value: fmt.Sprintf("%dx%d", plan.Width, plan.Height)},
			tui.SummaryRow{Label: "JPEG quality", Value: fmt.Sprintf("%d", plan.Quality)},
			tui.SummaryRow{Label: "Output size", Value: tui.FormatBytes(plan.Size)},
			tui.SummaryRow{Label: "Within budget", Value: fmt.Sprintf("%t", plan.BudgetMet)},
		)
		fmt.Fprintln(cmd.OutOrStdout(), tui.RenderSummary(rows))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
}
