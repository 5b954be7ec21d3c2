package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"jpegfit/pkg/imgutil"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the file extensions picked up from the input folder",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var raster, raw []string
		for _, ext := range imgutil.Extensions() {
			name := strings.TrimPrefix(ext, ".")
			if imgutil.KindForExt(ext) == imgutil.KindRaw {
				raw = append(raw, name)
			} else {
				raster = append(raster, name)
			}
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "raster: %s\n", strings.Join(raster, " "))
		fmt.Fprintf(out, "raw:    %s\n", strings.Join(raw, " "))
	},
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}
